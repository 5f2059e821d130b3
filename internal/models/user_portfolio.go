package models

import "github.com/shopspring/decimal"

// UserPortfolio is a user's subscription to a portfolio. PortfolioValue is
// the sum of its assets' close values.
type UserPortfolio struct {
	Base
	UserID         string               `gorm:"type:uuid;not null;uniqueIndex:idx_user_portfolio;index" json:"user_id"`
	PortfolioID    string               `gorm:"type:uuid;not null;uniqueIndex:idx_user_portfolio;index" json:"portfolio_id"`
	PortfolioValue decimal.Decimal      `gorm:"type:numeric(20,4);not null;default:0" json:"portfolio_value"`
	Portfolio      *Portfolio           `gorm:"foreignKey:PortfolioID" json:"portfolio,omitempty"`
	UserAssets     []UserPortfolioAsset `gorm:"foreignKey:UserPortfolioID" json:"user_assets,omitempty"`
}

// UserPortfolioAsset is a user's valued holding of one portfolio asset.
// All four numeric fields are derived by the valuation formula.
type UserPortfolioAsset struct {
	Base
	UserPortfolioID  string          `gorm:"type:uuid;not null;uniqueIndex:idx_user_portfolio_asset" json:"user_portfolio_id"`
	PortfolioAssetID string          `gorm:"type:uuid;not null;uniqueIndex:idx_user_portfolio_asset;index" json:"portfolio_asset_id"`
	CostPrice        decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"cost_price"`
	Stock            decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0" json:"stock"`
	CloseValue       decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"close_value"`
	LossGain         decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"loss_gain"`
	PortfolioAsset   *PortfolioAsset `gorm:"foreignKey:PortfolioAssetID" json:"portfolio_asset,omitempty"`
}
