package models

import "github.com/shopspring/decimal"

// Portfolio is a named model portfolio that users subscribe to.
type Portfolio struct {
	Base
	Name                 string           `gorm:"uniqueIndex;not null" json:"name"`
	Description          string           `gorm:"not null" json:"description"`
	TimeHorizon          string           `gorm:"not null" json:"time_horizon"`
	RiskTolerance        string           `gorm:"not null" json:"risk_tolerance"`
	AllocationPercentage decimal.Decimal  `gorm:"type:numeric(7,4);not null;default:100" json:"allocation_percentage"`
	Assets               []PortfolioAsset `gorm:"foreignKey:PortfolioID" json:"assets,omitempty"`
}

// PortfolioAsset is a template holding of an asset inside a portfolio.
type PortfolioAsset struct {
	Base
	PortfolioID string          `gorm:"type:uuid;not null;uniqueIndex:idx_portfolio_asset" json:"portfolio_id"`
	AssetID     string          `gorm:"type:uuid;not null;uniqueIndex:idx_portfolio_asset;index" json:"asset_id"`
	Stock       decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0" json:"stock"`
	CostPrice   decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"cost_price"`
	CloseValue  decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"close_value"`
	LossGain    decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"loss_gain"`
	Asset       *Asset          `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}
