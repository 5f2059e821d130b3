package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/logger"
	"fundledger/internal/models"
	"fundledger/internal/pagination"
	"fundledger/internal/valuation"
)

var assetSortColumns = []string{"symbol", "created_at", "close_price", "allocation_percentage", "sector"}

// assetService handles the asset catalog and propagates price edits to holdings.
type assetService struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewAssetService creates a new AssetServicer.
func NewAssetService(db *gorm.DB, timeout time.Duration) AssetServicer {
	return &assetService{db: db, timeout: timeout}
}

// CreateAsset adds an asset to the catalog.
func (s *assetService) CreateAsset(in AssetInput) (*models.Asset, error) {
	symbol := normalizeSymbol(in.Symbol)
	if symbol == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Symbol is required")
	}
	if err := validateAssetPricing(&in.AllocationPercentage, &in.CostPerShare, &in.ClosePrice); err != nil {
		return nil, err
	}
	if in.AssetClass != nil && !in.AssetClass.IsValid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid asset class")
	}

	asset := &models.Asset{
		Symbol:               symbol,
		Description:          in.Description,
		Sector:               in.Sector,
		AssetClass:           in.AssetClass,
		AllocationPercentage: in.AllocationPercentage,
		CostPerShare:         in.CostPerShare,
		ClosePrice:           in.ClosePrice,
	}
	if err := s.db.Create(asset).Error; err != nil {
		return nil, translateDBError(err, nil, apperrors.ErrDuplicateSymbol)
	}
	return asset, nil
}

// GetAsset returns an asset by ID.
func (s *assetService) GetAsset(id string) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.Where("id = ?", id).First(&asset).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrAssetNotFound, nil)
	}
	return &asset, nil
}

// GetAssetBySymbol returns an asset by its (case-insensitive) symbol.
func (s *assetService) GetAssetBySymbol(symbol string) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.Where("symbol = ?", normalizeSymbol(symbol)).First(&asset).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrAssetNotFound, nil)
	}
	return &asset, nil
}

// ListAssets returns a filtered, sorted and paginated list of assets.
func (s *assetService) ListAssets(filter AssetFilter, sort pagination.SortRequest, page pagination.PageRequest) (*pagination.PageResponse[models.Asset], error) {
	page.Defaults()

	base := s.db.Model(&models.Asset{})
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := likePattern(q)
		base = base.Where("LOWER(symbol) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if filter.Sector != "" {
		base = base.Where("LOWER(sector) = ?", strings.ToLower(filter.Sector))
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var assets []models.Asset
	if err := base.Order(sort.OrderClause(assetSortColumns, "symbol ASC")).
		Scopes(pagination.Paginate(page)).
		Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(assets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateAsset applies a partial update and, in the same transaction,
// cascades allocation, cost-per-share and close-price changes to every
// portfolio asset, user holding and user portfolio value derived from it.
func (s *assetService) UpdateAsset(ctx context.Context, id string, upd AssetUpdate) (*models.Asset, *CascadeResult, error) {
	if err := validateAssetPricing(upd.AllocationPercentage, upd.CostPerShare, upd.ClosePrice); err != nil {
		return nil, nil, err
	}
	if upd.Symbol != nil && normalizeSymbol(*upd.Symbol) == "" {
		return nil, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Symbol cannot be empty")
	}
	if upd.AssetClass != nil && !upd.AssetClass.IsValid() {
		return nil, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid asset class")
	}

	var asset models.Asset
	result := &CascadeResult{}
	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&asset).Error; err != nil {
			return translateDBError(err, apperrors.ErrAssetNotFound, nil)
		}

		changed := assetChanges{}
		updates := map[string]interface{}{}
		if upd.Symbol != nil {
			asset.Symbol = normalizeSymbol(*upd.Symbol)
			updates["symbol"] = asset.Symbol
		}
		setString(updates, "description", &asset.Description, upd.Description)
		setString(updates, "sector", &asset.Sector, upd.Sector)
		if upd.AssetClass != nil {
			asset.AssetClass = upd.AssetClass
			updates["asset_class"] = *upd.AssetClass
		}
		if upd.AllocationPercentage != nil && !upd.AllocationPercentage.Equal(asset.AllocationPercentage) {
			asset.AllocationPercentage = *upd.AllocationPercentage
			updates["allocation_percentage"] = asset.AllocationPercentage
			changed.allocation = true
		}
		if upd.CostPerShare != nil && !upd.CostPerShare.Equal(asset.CostPerShare) {
			asset.CostPerShare = *upd.CostPerShare
			updates["cost_per_share"] = asset.CostPerShare
			changed.costPerShare = true
		}
		if upd.ClosePrice != nil && !upd.ClosePrice.Equal(asset.ClosePrice) {
			asset.ClosePrice = *upd.ClosePrice
			updates["close_price"] = asset.ClosePrice
			changed.closePrice = true
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Asset{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return translateDBError(err, nil, apperrors.ErrDuplicateSymbol)
			}
		}
		if !changed.any() {
			return nil
		}
		return cascadeAsset(tx, &asset, changed, result)
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Get().Infow("asset updated",
		"asset_id", asset.ID,
		"symbol", asset.Symbol,
		"portfolio_assets", result.PortfolioAssets,
		"user_portfolio_assets", result.UserPortfolioAssets,
		"user_portfolios", result.UserPortfolios,
	)
	return &asset, result, nil
}

// DeleteAsset removes an asset that no portfolio references.
func (s *assetService) DeleteAsset(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.PortfolioAsset{}).Where("asset_id = ?", id).Count(&refs).Error; err != nil {
			return translateDBError(err, nil, nil)
		}
		if refs > 0 {
			return apperrors.ErrAssetInUse
		}
		res := tx.Where("id = ?", id).Delete(&models.Asset{})
		if res.Error != nil {
			return translateDBError(res.Error, nil, nil)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrAssetNotFound
		}
		return nil
	})
}

// assetChanges records which valuation inputs an update touched.
type assetChanges struct {
	allocation   bool
	costPerShare bool
	closePrice   bool
}

func (c assetChanges) any() bool {
	return c.allocation || c.costPerShare || c.closePrice
}

// cascadeAsset rewrites the rows derived from asset. Each derived field is
// recomputed only when one of its inputs changed, in the order
// costPrice → stock → closeValue → lossGain, reading the latest upstream value.
func cascadeAsset(tx *gorm.DB, asset *models.Asset, changed assetChanges, result *CascadeResult) error {
	var portfolioAssets []models.PortfolioAsset
	if err := tx.Where("asset_id = ?", asset.ID).Find(&portfolioAssets).Error; err != nil {
		return translateDBError(err, nil, nil)
	}
	if len(portfolioAssets) == 0 {
		return nil
	}

	paIDs := make([]string, len(portfolioAssets))
	for i, pa := range portfolioAssets {
		paIDs[i] = pa.ID
		if !changed.closePrice {
			continue
		}
		v := valuation.Revalue(pa.Stock, pa.CostPrice, asset.ClosePrice)
		if err := tx.Model(&models.PortfolioAsset{}).Where("id = ?", pa.ID).Updates(map[string]interface{}{
			"close_value": v.CloseValue,
			"loss_gain":   v.LossGain,
		}).Error; err != nil {
			return translateDBError(err, nil, nil)
		}
		result.PortfolioAssets++
	}

	var holdings []models.UserPortfolioAsset
	if err := tx.Where("portfolio_asset_id IN ?", paIDs).Find(&holdings).Error; err != nil {
		return translateDBError(err, nil, nil)
	}
	if len(holdings) == 0 {
		return nil
	}

	var navByPortfolio map[string]decimal.Decimal
	if changed.allocation {
		var err error
		if navByPortfolio, err = walletNAVsForHoldings(tx, holdings); err != nil {
			return err
		}
	}

	allocation := valuation.ClampAllocation(asset.AllocationPercentage)
	touched := map[string]struct{}{}
	for _, h := range holdings {
		updates := map[string]interface{}{}
		costPrice, stock, closeValue := h.CostPrice, h.Stock, h.CloseValue

		costDirty := changed.allocation
		if costDirty {
			costPrice = valuation.CostPrice(navByPortfolio[h.UserPortfolioID], allocation)
			updates["cost_price"] = costPrice
		}
		stockDirty := changed.costPerShare || costDirty
		if stockDirty {
			stock = valuation.Stock(costPrice, asset.CostPerShare)
			updates["stock"] = stock
		}
		closeDirty := changed.closePrice || stockDirty
		if closeDirty {
			closeValue = valuation.Revalue(stock, costPrice, asset.ClosePrice).CloseValue
			updates["close_value"] = closeValue
		}
		if costDirty || closeDirty {
			updates["loss_gain"] = closeValue.Sub(costPrice)
		}

		if err := tx.Model(&models.UserPortfolioAsset{}).Where("id = ?", h.ID).Updates(updates).Error; err != nil {
			return translateDBError(err, nil, nil)
		}
		result.UserPortfolioAssets++
		touched[h.UserPortfolioID] = struct{}{}
	}

	for upID := range touched {
		if _, err := sumPortfolioValue(tx, upID); err != nil {
			return err
		}
	}
	result.UserPortfolios = len(touched)
	return nil
}

// walletNAVsForHoldings maps each holding's user portfolio to its owner's NAV.
func walletNAVsForHoldings(tx *gorm.DB, holdings []models.UserPortfolioAsset) (map[string]decimal.Decimal, error) {
	upIDs := make([]string, 0, len(holdings))
	seen := map[string]struct{}{}
	for _, h := range holdings {
		if _, ok := seen[h.UserPortfolioID]; ok {
			continue
		}
		seen[h.UserPortfolioID] = struct{}{}
		upIDs = append(upIDs, h.UserPortfolioID)
	}

	var userPortfolios []models.UserPortfolio
	if err := tx.Select("id", "user_id").Where("id IN ?", upIDs).Find(&userPortfolios).Error; err != nil {
		return nil, translateDBError(err, nil, nil)
	}
	userIDs := make([]string, len(userPortfolios))
	for i, up := range userPortfolios {
		userIDs[i] = up.UserID
	}

	var wallets []models.Wallet
	if err := tx.Where("user_id IN ?", userIDs).Find(&wallets).Error; err != nil {
		return nil, translateDBError(err, nil, nil)
	}
	navByUser := make(map[string]decimal.Decimal, len(wallets))
	for _, w := range wallets {
		navByUser[w.UserID] = w.NetAssetValue
	}

	navs := make(map[string]decimal.Decimal, len(userPortfolios))
	for _, up := range userPortfolios {
		nav, ok := navByUser[up.UserID]
		if !ok {
			return nil, apperrors.WithMessage(apperrors.ErrWalletNotFound, "Wallet not found for user "+up.UserID)
		}
		navs[up.ID] = nav
	}
	return navs, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// validateAssetPricing rejects allocations outside [0,100] and negative prices.
// Nil values are skipped.
func validateAssetPricing(allocation, costPerShare, closePrice *decimal.Decimal) error {
	if allocation != nil && !valuation.ValidAllocation(*allocation) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "allocation_percentage must be between 0 and 100")
	}
	if costPerShare != nil && costPerShare.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "cost_per_share cannot be negative")
	}
	if closePrice != nil && closePrice.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "close_price cannot be negative")
	}
	return nil
}
