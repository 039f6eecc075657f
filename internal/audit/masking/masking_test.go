package masking

import "testing"

func TestMaskMetadata(t *testing.T) {
	out := MaskMetadata(map[string]any{
		"slip_image_url": "https://cdn.example.com/slips/abc.jpg?sig=secret",
		"bank_account":   "1234567890",
		"invoice_id":     "42",
		"":               "dropped",
	})

	if got := out["slip_image_url"]; got != "https://cdn.example.com/****" {
		t.Fatalf("unexpected masked url %v", got)
	}
	if got := out["bank_account"]; got != "****7890" {
		t.Fatalf("unexpected masked account %v", got)
	}
	if got := out["invoice_id"]; got != "42" {
		t.Fatalf("non-sensitive key changed: %v", got)
	}
	if len(out) != 3 {
		t.Fatalf("expected empty key dropped, got %d keys", len(out))
	}
}

func TestMaskSecretShort(t *testing.T) {
	if got := MaskSecret("abc"); got != maskToken {
		t.Fatalf("expected full mask, got %q", got)
	}
	if got := MaskSecret("  "); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
