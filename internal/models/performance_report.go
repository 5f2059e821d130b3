package models

import (
	"time"

	"fundledger/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PerformanceReport is a daily snapshot of a user portfolio's valuation.
// This is immutable time-series data, no Base embed.
type PerformanceReport struct {
	ID              string                 `gorm:"type:uuid;primaryKey" json:"id"`
	UserPortfolioID string                 `gorm:"type:uuid;not null;uniqueIndex:idx_report_portfolio_date" json:"user_portfolio_id"`
	ReportDate      time.Time              `gorm:"type:date;not null;uniqueIndex:idx_report_portfolio_date;index" json:"report_date"`
	TotalCostPrice  decimal.Decimal        `gorm:"type:numeric(20,4);not null" json:"total_cost_price"`
	TotalCloseValue decimal.Decimal        `gorm:"type:numeric(20,4);not null" json:"total_close_value"`
	TotalLossGain   decimal.Decimal        `gorm:"type:numeric(20,4);not null" json:"total_loss_gain"`
	TotalPercentage decimal.Decimal        `gorm:"type:numeric(12,4);not null" json:"total_percentage"`
	CreatedAt       time.Time              `json:"created_at"`
	AssetBreakdown  []ReportAssetBreakdown `gorm:"foreignKey:ReportID" json:"asset_breakdown,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (r *PerformanceReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New()
	}
	return nil
}

// ReportAssetBreakdown is the per-asset-class slice of a report.
type ReportAssetBreakdown struct {
	ID             string          `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID       string          `gorm:"type:uuid;not null;index" json:"report_id"`
	AssetClass     AssetClass      `gorm:"type:varchar(16);not null" json:"asset_class"`
	Holdings       int             `gorm:"not null" json:"holdings"`
	TotalCashValue decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"total_cash_value"`
	Percentage     decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"percentage"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *ReportAssetBreakdown) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}
