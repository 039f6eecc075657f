package masking

import (
	"net/url"
	"strings"
)

const maskToken = "****"

// sensitiveKeys are metadata keys whose values never reach the audit table verbatim.
var sensitiveKeys = map[string]struct{}{
	"slip_image_url": {},
	"tenant_phone":   {},
	"bank_account":   {},
}

// MaskSecret redacts a value while keeping its last four characters.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskURL keeps scheme and host and drops path and query, which often carry
// signed tokens for uploaded slips.
func MaskURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return MaskSecret(raw)
	}
	return u.Scheme + "://" + u.Host + "/" + maskToken
}

// MaskMetadata returns a copy of input with sensitive keys redacted.
func MaskMetadata(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	masked := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := sensitiveKeys[key]; ok {
			if s, isString := value.(string); isString {
				if strings.HasSuffix(key, "_url") {
					masked[key] = MaskURL(s)
				} else {
					masked[key] = MaskSecret(s)
				}
				continue
			}
		}
		masked[key] = value
	}
	return masked
}
