package domain

import "github.com/shopspring/decimal"

// AssetBalance is an account balance snapshot for one asset.
type AssetBalance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// IsEmpty reports whether the asset holds nothing, free or locked.
func (b AssetBalance) IsEmpty() bool {
	return b.Free.IsZero() && b.Locked.IsZero()
}
