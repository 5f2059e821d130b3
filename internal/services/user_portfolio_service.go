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
	"fundledger/internal/pagination"
	"fundledger/internal/valuation"
)

// userPortfolioService manages user subscriptions to portfolio templates.
type userPortfolioService struct {
	db      *gorm.DB
	engine  ValuationEngine
	timeout time.Duration
}

// NewUserPortfolioService creates a new UserPortfolioServicer.
func NewUserPortfolioService(db *gorm.DB, engine ValuationEngine, timeout time.Duration) UserPortfolioServicer {
	return &userPortfolioService{db: db, engine: engine, timeout: timeout}
}

// Subscribe creates a user portfolio and snapshots every asset of the
// template into holdings valued at the user's wallet NAV.
func (s *userPortfolioService) Subscribe(ctx context.Context, userID, portfolioID string) (*models.UserPortfolio, error) {
	var up models.UserPortfolio
	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		wallet, err := walletForUser(tx, userID)
		if err != nil {
			return err
		}
		if err := ensurePortfolio(tx, portfolioID); err != nil {
			return err
		}

		up = models.UserPortfolio{UserID: userID, PortfolioID: portfolioID, PortfolioValue: decimal.Zero}
		if err := tx.Create(&up).Error; err != nil {
			return translateDBError(err, nil, apperrors.ErrDuplicateSubscription)
		}
		return snapshotHoldings(tx, &up, wallet.NetAssetValue)
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("user portfolio subscribed",
		"user_portfolio_id", up.ID,
		"user_id", userID,
		"portfolio_id", portfolioID,
		"holdings", len(up.UserAssets),
	)
	return &up, nil
}

// GetUserPortfolio returns a user portfolio with its portfolio and holdings.
func (s *userPortfolioService) GetUserPortfolio(id string) (*models.UserPortfolio, error) {
	var up models.UserPortfolio
	err := s.db.Preload("Portfolio").
		Preload("UserAssets", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("UserAssets.PortfolioAsset.Asset").
		Where("id = ?", id).
		First(&up).Error
	if err != nil {
		return nil, translateDBError(err, apperrors.ErrUserPortfolioNotFound, nil)
	}
	return &up, nil
}

// ListUserPortfolios returns subscriptions filtered by user and/or portfolio, newest first.
func (s *userPortfolioService) ListUserPortfolios(filter UserPortfolioFilter, page pagination.PageRequest) (*pagination.PageResponse[models.UserPortfolio], error) {
	page.Defaults()

	base := s.db.Model(&models.UserPortfolio{})
	if filter.UserID != "" {
		base = base.Where("user_id = ?", filter.UserID)
	}
	if filter.PortfolioID != "" {
		base = base.Where("portfolio_id = ?", filter.PortfolioID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var ups []models.UserPortfolio
	if err := base.Preload("Portfolio").
		Order("created_at DESC").
		Scopes(pagination.Paginate(page)).
		Find(&ups).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(ups, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateUserPortfolio switches the template, rebuilds holdings or re-values
// them. A rebuild already values at the current NAV, so Recompute is only
// applied when nothing was rebuilt.
func (s *userPortfolioService) UpdateUserPortfolio(ctx context.Context, id string, upd UserPortfolioUpdate) (*models.UserPortfolio, error) {
	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		var up models.UserPortfolio
		if err := tx.Where("id = ?", id).First(&up).Error; err != nil {
			return translateDBError(err, apperrors.ErrUserPortfolioNotFound, nil)
		}

		rebuild := upd.ResetAssets
		if upd.PortfolioID != nil && *upd.PortfolioID != up.PortfolioID {
			if err := ensurePortfolio(tx, *upd.PortfolioID); err != nil {
				return err
			}
			if err := tx.Model(&models.UserPortfolio{}).
				Where("id = ?", id).
				Update("portfolio_id", *upd.PortfolioID).Error; err != nil {
				return translateDBError(err, nil, apperrors.ErrDuplicateSubscription)
			}
			up.PortfolioID = *upd.PortfolioID
			rebuild = true
		}

		switch {
		case rebuild:
			wallet, err := walletForUser(tx, up.UserID)
			if err != nil {
				return err
			}
			if err := tx.Where("user_portfolio_id = ?", id).Delete(&models.UserPortfolioAsset{}).Error; err != nil {
				return translateDBError(err, nil, nil)
			}
			return snapshotHoldings(tx, &up, wallet.NetAssetValue)
		case upd.Recompute:
			wallet, err := walletForUser(tx, up.UserID)
			if err != nil {
				return err
			}
			if err := tx.Preload("UserAssets.PortfolioAsset.Asset").Where("id = ?", id).First(&up).Error; err != nil {
				return translateDBError(err, apperrors.ErrUserPortfolioNotFound, nil)
			}
			_, err = recomputeHoldings(tx, &up, wallet.NetAssetValue)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetUserPortfolio(id)
}

// Recompute re-values one user portfolio from its owner's wallet NAV.
func (s *userPortfolioService) Recompute(ctx context.Context, id string) (*RecomputeResult, error) {
	return s.engine.RecomputeUserPortfolio(ctx, id)
}

// Unsubscribe deletes a user portfolio and its holdings. Performance
// reports are kept.
func (s *userPortfolioService) Unsubscribe(ctx context.Context, id string) error {
	return runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		if err := tx.Where("user_portfolio_id = ?", id).Delete(&models.UserPortfolioAsset{}).Error; err != nil {
			return translateDBError(err, nil, nil)
		}
		res := tx.Where("id = ?", id).Delete(&models.UserPortfolio{})
		if res.Error != nil {
			return translateDBError(res.Error, nil, nil)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrUserPortfolioNotFound
		}
		return nil
	})
}

// snapshotHoldings creates one holding per asset line of up's portfolio,
// valued at nav, and sets portfolio_value to their close-value sum.
func snapshotHoldings(tx *gorm.DB, up *models.UserPortfolio, nav decimal.Decimal) error {
	var lines []models.PortfolioAsset
	if err := tx.Preload("Asset").
		Where("portfolio_id = ?", up.PortfolioID).
		Order("created_at ASC").
		Find(&lines).Error; err != nil {
		return translateDBError(err, nil, nil)
	}

	up.UserAssets = make([]models.UserPortfolioAsset, 0, len(lines))
	total := decimal.Zero
	for i := range lines {
		line := &lines[i]
		if line.Asset == nil {
			return apperrors.Wrap(apperrors.ErrInternalServer,
				fmt.Errorf("portfolio asset %s has no backing asset", line.ID))
		}
		v := valuation.Valuate(nav, valuation.ClampAllocation(line.Asset.AllocationPercentage), line.Asset.CostPerShare, line.Asset.ClosePrice)
		holding := models.UserPortfolioAsset{
			UserPortfolioID:  up.ID,
			PortfolioAssetID: line.ID,
			CostPrice:        v.CostPrice,
			Stock:            v.Stock,
			CloseValue:       v.CloseValue,
			LossGain:         v.LossGain,
		}
		if err := tx.Create(&holding).Error; err != nil {
			return translateDBError(err, nil, nil)
		}
		holding.PortfolioAsset = line
		up.UserAssets = append(up.UserAssets, holding)
		total = total.Add(v.CloseValue)
	}

	if err := tx.Model(&models.UserPortfolio{}).
		Where("id = ?", up.ID).
		Update("portfolio_value", total).Error; err != nil {
		return translateDBError(err, nil, nil)
	}
	up.PortfolioValue = total
	return nil
}

// walletForUser loads the user's wallet, distinguishing a missing user from
// a user without a wallet.
func walletForUser(tx *gorm.DB, userID string) (*models.Wallet, error) {
	var users int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&users).Error; err != nil {
		return nil, translateDBError(err, nil, nil)
	}
	if users == 0 {
		return nil, apperrors.ErrUserNotFound
	}

	var wallet models.Wallet
	if err := tx.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrWalletNotFound, nil)
	}
	return &wallet, nil
}

func ensurePortfolio(tx *gorm.DB, id string) error {
	var count int64
	if err := tx.Model(&models.Portfolio{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return translateDBError(err, nil, nil)
	}
	if count == 0 {
		return apperrors.ErrPortfolioNotFound
	}
	return nil
}
