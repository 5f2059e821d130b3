package services

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fundledger/internal/models"
	"fundledger/internal/testutil"
)

const testTimeout = 5 * time.Second

func newTestEngine(db *gorm.DB) ValuationEngine {
	return NewValuationEngine(db, testTimeout)
}

func decPtr(s string) *decimal.Decimal {
	d := testutil.D(s)
	return &d
}

func strPtr(s string) *string { return &s }

func reloadWallet(t *testing.T, db *gorm.DB, id string) *models.Wallet {
	t.Helper()
	var w models.Wallet
	if err := db.Where("id = ?", id).First(&w).Error; err != nil {
		t.Fatalf("failed to reload wallet: %v", err)
	}
	return &w
}

func reloadHolding(t *testing.T, db *gorm.DB, id string) *models.UserPortfolioAsset {
	t.Helper()
	var h models.UserPortfolioAsset
	if err := db.Where("id = ?", id).First(&h).Error; err != nil {
		t.Fatalf("failed to reload holding: %v", err)
	}
	return &h
}

func reloadUserPortfolio(t *testing.T, db *gorm.DB, id string) *models.UserPortfolio {
	t.Helper()
	var up models.UserPortfolio
	if err := db.Where("id = ?", id).First(&up).Error; err != nil {
		t.Fatalf("failed to reload user portfolio: %v", err)
	}
	return &up
}

// failTableUpdates makes every UPDATE against table fail, simulating a
// store fault partway through a transaction.
func failTableUpdates(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Update().Before("gorm:update").Register("test:fail_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New("injected update failure"))
		}
	})
	if err != nil {
		t.Fatalf("failed to register fault callback: %v", err)
	}
}

func reloadPortfolioAsset(t *testing.T, db *gorm.DB, id string) *models.PortfolioAsset {
	t.Helper()
	var pa models.PortfolioAsset
	if err := db.Where("id = ?", id).First(&pa).Error; err != nil {
		t.Fatalf("failed to reload portfolio asset: %v", err)
	}
	return &pa
}
