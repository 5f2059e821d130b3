package models

import "github.com/shopspring/decimal"

// Wallet holds a user's net asset value, the capital base every valuation
// is derived from. NetAssetValue only changes through settlement.
type Wallet struct {
	Base
	UserID        string          `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	NetAssetValue decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"net_asset_value"`
	Currency      string          `gorm:"type:char(3);not null;default:USD" json:"currency"`
}
