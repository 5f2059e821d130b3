package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/logger"
	"fundledger/internal/models"
	"fundledger/internal/valuation"
)

// valuationEngine recomputes user holdings from wallet NAV.
type valuationEngine struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewValuationEngine creates a new ValuationEngine.
func NewValuationEngine(db *gorm.DB, timeout time.Duration) ValuationEngine {
	return &valuationEngine{db: db, timeout: timeout}
}

// RecomputeForWallet fully overwrites every holding of the user's portfolios
// using nav. It must run inside the caller's transaction; any error aborts it.
func (e *valuationEngine) RecomputeForWallet(tx *gorm.DB, userID string, nav decimal.Decimal) ([]RecomputeResult, error) {
	var userPortfolios []models.UserPortfolio
	if err := tx.Where("user_id = ?", userID).
		Preload("UserAssets.PortfolioAsset.Asset").
		Order("created_at ASC").
		Find(&userPortfolios).Error; err != nil {
		return nil, translateDBError(err, nil, nil)
	}

	results := make([]RecomputeResult, 0, len(userPortfolios))
	for i := range userPortfolios {
		res, err := recomputeHoldings(tx, &userPortfolios[i], nav)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	logger.Get().Infow("recomputed wallet valuations",
		"user_id", userID,
		"nav", nav.String(),
		"user_portfolios", len(results),
	)
	return results, nil
}

// RecomputeUserPortfolio re-values a single user portfolio from its owner's
// wallet NAV in one transaction.
func (e *valuationEngine) RecomputeUserPortfolio(ctx context.Context, userPortfolioID string) (*RecomputeResult, error) {
	var result RecomputeResult
	err := runInTx(ctx, e.db, e.timeout, func(tx *gorm.DB) error {
		var up models.UserPortfolio
		if err := tx.Preload("UserAssets.PortfolioAsset.Asset").
			Where("id = ?", userPortfolioID).
			First(&up).Error; err != nil {
			return translateDBError(err, apperrors.ErrUserPortfolioNotFound, nil)
		}

		var wallet models.Wallet
		if err := tx.Where("user_id = ?", up.UserID).First(&wallet).Error; err != nil {
			return translateDBError(err, apperrors.ErrWalletNotFound, nil)
		}

		var err error
		result, err = recomputeHoldings(tx, &up, wallet.NetAssetValue)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// recomputeHoldings applies the valuation formula to every holding of up and
// writes portfolio_value as the sum of the new close values. up must be
// loaded with UserAssets.PortfolioAsset.Asset.
func recomputeHoldings(tx *gorm.DB, up *models.UserPortfolio, nav decimal.Decimal) (RecomputeResult, error) {
	res := RecomputeResult{
		UserPortfolioID: up.ID,
		TotalCostPrice:  decimal.Zero,
		PortfolioValue:  decimal.Zero,
	}

	for i := range up.UserAssets {
		holding := &up.UserAssets[i]
		if holding.PortfolioAsset == nil || holding.PortfolioAsset.Asset == nil {
			return res, apperrors.Wrap(apperrors.ErrInternalServer,
				fmt.Errorf("holding %s has no backing asset", holding.ID))
		}
		asset := holding.PortfolioAsset.Asset

		v := valuation.Valuate(nav, valuation.ClampAllocation(asset.AllocationPercentage), asset.CostPerShare, asset.ClosePrice)
		if err := writeHolding(tx, holding.ID, v); err != nil {
			return res, err
		}
		holding.CostPrice = v.CostPrice
		holding.Stock = v.Stock
		holding.CloseValue = v.CloseValue
		holding.LossGain = v.LossGain

		res.Count++
		res.TotalCostPrice = res.TotalCostPrice.Add(v.CostPrice)
		res.PortfolioValue = res.PortfolioValue.Add(v.CloseValue)
	}

	if err := tx.Model(&models.UserPortfolio{}).
		Where("id = ?", up.ID).
		Update("portfolio_value", res.PortfolioValue).Error; err != nil {
		return res, translateDBError(err, nil, nil)
	}
	up.PortfolioValue = res.PortfolioValue

	return res, nil
}

// writeHolding overwrites the four derived fields of one holding.
func writeHolding(tx *gorm.DB, id string, v valuation.Result) error {
	err := tx.Model(&models.UserPortfolioAsset{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"cost_price":  v.CostPrice,
			"stock":       v.Stock,
			"close_value": v.CloseValue,
			"loss_gain":   v.LossGain,
		}).Error
	return translateDBError(err, nil, nil)
}

// sumPortfolioValue recomputes portfolio_value from the stored holdings.
func sumPortfolioValue(tx *gorm.DB, userPortfolioID string) (decimal.Decimal, error) {
	var holdings []models.UserPortfolioAsset
	if err := tx.Select("close_value").
		Where("user_portfolio_id = ?", userPortfolioID).
		Find(&holdings).Error; err != nil {
		return decimal.Zero, translateDBError(err, nil, nil)
	}

	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(h.CloseValue)
	}
	if err := tx.Model(&models.UserPortfolio{}).
		Where("id = ?", userPortfolioID).
		Update("portfolio_value", total).Error; err != nil {
		return decimal.Zero, translateDBError(err, nil, nil)
	}
	return total, nil
}
