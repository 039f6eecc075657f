package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestUtilityItem(t *testing.T) {
	item := UtilityItem(ItemTypeWater, 120, 135, decimal.NewFromInt(18))
	assert.Equal(t, int64(15), item.Quantity)
	assert.True(t, item.Amount.Equal(decimal.NewFromInt(270)))
	assert.Equal(t, "Water 120-135 (15 units)", item.Description)
	assert.Nil(t, item.LateFeeMarker)
}

func TestRecomputeTotal(t *testing.T) {
	inv := Invoice{Items: []InvoiceItem{
		FlatItem(ItemTypeRent, "Rent", decimal.NewFromInt(3000)),
		UtilityItem(ItemTypeWater, 0, 5, decimal.RequireFromString("18.5")),
		LateFeeItem(2, decimal.NewFromInt(50), decimal.NewFromInt(100)),
	}}
	inv.RecomputeTotal()
	assert.Equal(t, "3192.50", inv.TotalAmount.StringFixed(2))
	assert.NotNil(t, inv.Item(ItemTypeLateFee).LateFeeMarker)
	assert.Nil(t, inv.Item(ItemTypeDamage))
}

func TestInvoiceStatus(t *testing.T) {
	assert.True(t, InvoiceStatusOverdue.Valid())
	assert.False(t, InvoiceStatus("draft").Valid())
	assert.True(t, InvoiceStatusPending.Open())
	assert.False(t, InvoiceStatusPaid.Open())
	assert.False(t, InvoiceStatusCancelled.Open())
}
