package models

import "github.com/shopspring/decimal"

// AssetClass is the report bucket an asset rolls up into.
type AssetClass string

const (
	AssetClassEquities AssetClass = "EQUITIES"
	AssetClassETFs     AssetClass = "ETFS"
	AssetClassREITs    AssetClass = "REITS"
	AssetClassBonds    AssetClass = "BONDS"
	AssetClassCash     AssetClass = "CASH"
	AssetClassOthers   AssetClass = "OTHERS"
)

// AssetClasses lists every class in report order.
var AssetClasses = []AssetClass{
	AssetClassEquities,
	AssetClassETFs,
	AssetClassREITs,
	AssetClassBonds,
	AssetClassCash,
	AssetClassOthers,
}

// IsValid reports whether c is a known asset class.
func (c AssetClass) IsValid() bool {
	for _, known := range AssetClasses {
		if c == known {
			return true
		}
	}
	return false
}

// Asset is a tradable instrument in the catalog.
type Asset struct {
	Base
	Symbol               string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"symbol"`
	Description          string          `json:"description"`
	Sector               string          `gorm:"index" json:"sector"`
	AssetClass           *AssetClass     `gorm:"type:varchar(16)" json:"asset_class,omitempty"`
	AllocationPercentage decimal.Decimal `gorm:"type:numeric(7,4);not null;default:0" json:"allocation_percentage"`
	CostPerShare         decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"cost_per_share"`
	ClosePrice           decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"close_price"`
}
