package services

import (
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/models"
	"fundledger/internal/pagination"
	"fundledger/internal/valuation"
)

// portfolioService manages portfolio templates and their asset lines.
type portfolioService struct {
	db *gorm.DB
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(db *gorm.DB) PortfolioServicer {
	return &portfolioService{db: db}
}

// CreatePortfolio creates a portfolio template.
func (s *portfolioService) CreatePortfolio(in PortfolioInput) (*models.Portfolio, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Name is required")
	}
	allocation := decimal.NewFromInt(100)
	if in.AllocationPercentage != nil {
		allocation = *in.AllocationPercentage
	}
	if !valuation.ValidAllocation(allocation) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "allocation_percentage must be between 0 and 100")
	}

	portfolio := &models.Portfolio{
		Name:                 name,
		Description:          in.Description,
		TimeHorizon:          in.TimeHorizon,
		RiskTolerance:        in.RiskTolerance,
		AllocationPercentage: allocation,
	}
	if err := s.db.Create(portfolio).Error; err != nil {
		return nil, translateDBError(err, nil, apperrors.ErrDuplicatePortfolioName)
	}
	return portfolio, nil
}

// GetPortfolio returns a portfolio with its asset lines.
func (s *portfolioService) GetPortfolio(id string) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	err := s.db.Preload("Assets", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).Preload("Assets.Asset").Where("id = ?", id).First(&portfolio).Error
	if err != nil {
		return nil, translateDBError(err, apperrors.ErrPortfolioNotFound, nil)
	}
	return &portfolio, nil
}

// ListPortfolios returns portfolios ordered by name, optionally filtered by a name search.
func (s *portfolioService) ListPortfolios(search string, page pagination.PageRequest) (*pagination.PageResponse[models.Portfolio], error) {
	page.Defaults()

	base := s.db.Model(&models.Portfolio{})
	if q := strings.TrimSpace(search); q != "" {
		pattern := likePattern(q)
		base = base.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var portfolios []models.Portfolio
	if err := base.Order("name ASC").Scopes(pagination.Paginate(page)).Find(&portfolios).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(portfolios, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdatePortfolio applies a partial update to a portfolio template.
func (s *portfolioService) UpdatePortfolio(id string, upd PortfolioUpdate) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	if err := s.db.Where("id = ?", id).First(&portfolio).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrPortfolioNotFound, nil)
	}

	updates := map[string]interface{}{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Name cannot be empty")
		}
		portfolio.Name = name
		updates["name"] = name
	}
	setString(updates, "description", &portfolio.Description, upd.Description)
	setString(updates, "time_horizon", &portfolio.TimeHorizon, upd.TimeHorizon)
	setString(updates, "risk_tolerance", &portfolio.RiskTolerance, upd.RiskTolerance)
	if upd.AllocationPercentage != nil {
		if !valuation.ValidAllocation(*upd.AllocationPercentage) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "allocation_percentage must be between 0 and 100")
		}
		portfolio.AllocationPercentage = *upd.AllocationPercentage
		updates["allocation_percentage"] = portfolio.AllocationPercentage
	}

	if len(updates) > 0 {
		if err := s.db.Model(&portfolio).Updates(updates).Error; err != nil {
			return nil, translateDBError(err, nil, apperrors.ErrDuplicatePortfolioName)
		}
	}
	return &portfolio, nil
}

// DeletePortfolio removes a portfolio and its asset lines. Subscribed
// portfolios cannot be deleted.
func (s *portfolioService) DeletePortfolio(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var subscriptions int64
		if err := tx.Model(&models.UserPortfolio{}).Where("portfolio_id = ?", id).Count(&subscriptions).Error; err != nil {
			return translateDBError(err, nil, nil)
		}
		if subscriptions > 0 {
			return apperrors.ErrPortfolioInUse
		}

		if err := tx.Where("portfolio_id = ?", id).Delete(&models.PortfolioAsset{}).Error; err != nil {
			return translateDBError(err, nil, nil)
		}
		res := tx.Where("id = ?", id).Delete(&models.Portfolio{})
		if res.Error != nil {
			return translateDBError(res.Error, nil, nil)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrPortfolioNotFound
		}
		return nil
	})
}

// AddPortfolioAsset adds an asset line to a portfolio, valued at the asset's close price.
func (s *portfolioService) AddPortfolioAsset(portfolioID, assetID string, stock, costPrice decimal.Decimal) (*models.PortfolioAsset, error) {
	if stock.IsNegative() || costPrice.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "stock and cost_price cannot be negative")
	}

	var pa models.PortfolioAsset
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var portfolio models.Portfolio
		if err := tx.Select("id").Where("id = ?", portfolioID).First(&portfolio).Error; err != nil {
			return translateDBError(err, apperrors.ErrPortfolioNotFound, nil)
		}
		var asset models.Asset
		if err := tx.Where("id = ?", assetID).First(&asset).Error; err != nil {
			return translateDBError(err, apperrors.ErrAssetNotFound, nil)
		}

		v := valuation.Revalue(stock, costPrice, asset.ClosePrice)
		pa = models.PortfolioAsset{
			PortfolioID: portfolioID,
			AssetID:     assetID,
			Stock:       stock,
			CostPrice:   costPrice,
			CloseValue:  v.CloseValue,
			LossGain:    v.LossGain,
		}
		if err := tx.Create(&pa).Error; err != nil {
			return translateDBError(err, nil, apperrors.ErrDuplicatePortfolioAsset)
		}
		pa.Asset = &asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

// ListPortfolioAssets returns the asset lines of a portfolio.
func (s *portfolioService) ListPortfolioAssets(portfolioID string) ([]models.PortfolioAsset, error) {
	var count int64
	if err := s.db.Model(&models.Portfolio{}).Where("id = ?", portfolioID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrPortfolioNotFound
	}

	var assets []models.PortfolioAsset
	if err := s.db.Preload("Asset").
		Where("portfolio_id = ?", portfolioID).
		Order("created_at ASC").
		Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return assets, nil
}

// GetPortfolioAsset returns one asset line with its asset.
func (s *portfolioService) GetPortfolioAsset(id string) (*models.PortfolioAsset, error) {
	var pa models.PortfolioAsset
	if err := s.db.Preload("Asset").Where("id = ?", id).First(&pa).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrPortfolioAssetNotFound, nil)
	}
	return &pa, nil
}

// UpdatePortfolioAsset changes stock and/or cost price and re-derives close value and loss/gain.
func (s *portfolioService) UpdatePortfolioAsset(id string, stock, costPrice *decimal.Decimal) (*models.PortfolioAsset, error) {
	if (stock != nil && stock.IsNegative()) || (costPrice != nil && costPrice.IsNegative()) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "stock and cost_price cannot be negative")
	}

	var pa models.PortfolioAsset
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Asset").Where("id = ?", id).First(&pa).Error; err != nil {
			return translateDBError(err, apperrors.ErrPortfolioAssetNotFound, nil)
		}
		if stock != nil {
			pa.Stock = *stock
		}
		if costPrice != nil {
			pa.CostPrice = *costPrice
		}

		v := valuation.Revalue(pa.Stock, pa.CostPrice, pa.Asset.ClosePrice)
		pa.CloseValue = v.CloseValue
		pa.LossGain = v.LossGain
		return translateDBError(tx.Model(&models.PortfolioAsset{}).Where("id = ?", id).Updates(map[string]interface{}{
			"stock":       pa.Stock,
			"cost_price":  pa.CostPrice,
			"close_value": pa.CloseValue,
			"loss_gain":   pa.LossGain,
		}).Error, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

// RemovePortfolioAsset deletes an asset line no user holding references.
func (s *portfolioService) RemovePortfolioAsset(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.UserPortfolioAsset{}).Where("portfolio_asset_id = ?", id).Count(&refs).Error; err != nil {
			return translateDBError(err, nil, nil)
		}
		if refs > 0 {
			return apperrors.ErrPortfolioAssetInUse
		}
		res := tx.Where("id = ?", id).Delete(&models.PortfolioAsset{})
		if res.Error != nil {
			return translateDBError(res.Error, nil, nil)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrPortfolioAssetNotFound
		}
		return nil
	})
}
