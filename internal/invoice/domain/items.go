package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UtilityItem prices a water or electric line from a reading pair.
func UtilityItem(t ItemType, previous, current int64, rate decimal.Decimal) InvoiceItem {
	units := current - previous
	return InvoiceItem{
		Type:        t,
		Description: UtilityDescription(t, previous, current),
		Quantity:    units,
		UnitAmount:  rate,
		Amount:      rate.Mul(decimal.NewFromInt(units)),
	}
}

func UtilityDescription(t ItemType, previous, current int64) string {
	label := "Water"
	if t == ItemTypeElectric {
		label = "Electricity"
	}
	return fmt.Sprintf("%s %d-%d (%d units)", label, previous, current, current-previous)
}

// FlatItem is a quantity-one charge such as rent or a move-out fee.
func FlatItem(t ItemType, description string, amount decimal.Decimal) InvoiceItem {
	return InvoiceItem{
		Type:        t,
		Description: description,
		Quantity:    1,
		UnitAmount:  amount,
		Amount:      amount,
	}
}

func LateFeeItem(days int64, perDay, amount decimal.Decimal) InvoiceItem {
	marker := LateFeeMarker
	return InvoiceItem{
		Type:          ItemTypeLateFee,
		Description:   fmt.Sprintf("Late fee (%d days)", days),
		Quantity:      days,
		UnitAmount:    perDay,
		Amount:        amount,
		LateFeeMarker: &marker,
	}
}
