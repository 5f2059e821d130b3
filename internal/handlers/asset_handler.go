package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"fundledger/internal/models"
	"fundledger/internal/pagination"
	"fundledger/internal/services"
)

// AssetHandler handles asset catalog requests.
type AssetHandler struct {
	assetService services.AssetServicer
	auditService services.AuditServicer
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetService services.AssetServicer, auditService services.AuditServicer) *AssetHandler {
	return &AssetHandler{assetService: assetService, auditService: auditService}
}

// CreateAssetRequest represents the request payload for creating an asset
type CreateAssetRequest struct {
	Symbol               string             `json:"symbol" binding:"required,max=32"`
	Description          string             `json:"description" binding:"max=255"`
	Sector               string             `json:"sector" binding:"max=100"`
	AssetClass           *models.AssetClass `json:"asset_class" binding:"omitempty,asset_class"`
	AllocationPercentage decimal.Decimal    `json:"allocation_percentage" binding:"gte=0,lte=100"`
	CostPerShare         decimal.Decimal    `json:"cost_per_share" binding:"gte=0"`
	ClosePrice           decimal.Decimal    `json:"close_price" binding:"gte=0"`
}

// UpdateAssetRequest represents the request payload for a partial asset update
type UpdateAssetRequest struct {
	Symbol               *string            `json:"symbol" binding:"omitempty,min=1,max=32"`
	Description          *string            `json:"description" binding:"omitempty,max=255"`
	Sector               *string            `json:"sector" binding:"omitempty,max=100"`
	AssetClass           *models.AssetClass `json:"asset_class" binding:"omitempty,asset_class"`
	AllocationPercentage *decimal.Decimal   `json:"allocation_percentage" binding:"omitempty,gte=0,lte=100"`
	CostPerShare         *decimal.Decimal   `json:"cost_per_share" binding:"omitempty,gte=0"`
	ClosePrice           *decimal.Decimal   `json:"close_price" binding:"omitempty,gte=0"`
}

// UpdateAssetResponse carries the updated asset and the rows the cascade rewrote
type UpdateAssetResponse struct {
	Asset   models.Asset           `json:"asset"`
	Cascade services.CascadeResult `json:"cascade"`
}

// CreateAsset handles the creation of a catalog asset
// @Summary     Create an asset
// @Description Add an asset to the catalog (admin only)
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateAssetRequest true "Asset details"
// @Success     201 {object} models.Asset "Asset created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Symbol already exists"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets [post]
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	asset, err := h.assetService.CreateAsset(services.AssetInput{
		Symbol:               req.Symbol,
		Description:          req.Description,
		Sector:               req.Sector,
		AssetClass:           req.AssetClass,
		AllocationPercentage: req.AllocationPercentage,
		CostPerShare:         req.CostPerShare,
		ClosePrice:           req.ClosePrice,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_ASSET", "asset", asset.ID, c.ClientIP(),
		map[string]interface{}{"symbol": asset.Symbol})

	c.JSON(http.StatusCreated, gin.H{"asset": asset})
}

// ListAssets handles listing the asset catalog
// @Summary     List assets
// @Description Get a paginated list of assets with optional search and sector filter
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       q          query string false "Search symbol or description"
// @Param       sector     query string false "Filter by sector"
// @Param       sort_by    query string false "symbol, created_at, close_price, allocation_percentage or sector"
// @Param       sort_order query string false "asc or desc"
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Asset] "Paginated assets"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /assets [get]
func (h *AssetHandler) ListAssets(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	var sort pagination.SortRequest
	if err := c.ShouldBindQuery(&sort); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	filter := services.AssetFilter{Query: c.Query("q"), Sector: c.Query("sector")}
	result, err := h.assetService.ListAssets(filter, sort, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAsset handles fetching one asset
// @Summary     Get an asset
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Asset ID"
// @Success     200 {object} models.Asset "Asset"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /assets/{id} [get]
func (h *AssetHandler) GetAsset(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.assetService.GetAsset(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"asset": asset})
}

// GetAssetBySymbol handles fetching an asset by its ticker
// @Summary     Get an asset by symbol
// @Tags        assets
// @Produce     json
// @Security    BearerAuth
// @Param       symbol path string true "Ticker symbol"
// @Success     200 {object} models.Asset "Asset"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Router      /assets/symbol/{symbol} [get]
func (h *AssetHandler) GetAssetBySymbol(c *gin.Context) {
	asset, err := h.assetService.GetAssetBySymbol(c.Param("symbol"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"asset": asset})
}

// UpdateAsset handles a partial asset update and its valuation cascade
// @Summary     Update an asset
// @Description Patch an asset. Price and allocation changes are cascaded to every portfolio and user holding in the same transaction (admin only).
// @Tags        assets
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string             true "Asset ID"
// @Param       request body UpdateAssetRequest true "Fields to change"
// @Success     200 {object} UpdateAssetResponse "Asset updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Failure     409 {object} ErrorResponse "Symbol already exists"
// @Failure     503 {object} ErrorResponse "Operation timed out"
// @Router      /assets/{id} [patch]
func (h *AssetHandler) UpdateAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	asset, cascade, err := h.assetService.UpdateAsset(c.Request.Context(), id, services.AssetUpdate{
		Symbol:               req.Symbol,
		Description:          req.Description,
		Sector:               req.Sector,
		AssetClass:           req.AssetClass,
		AllocationPercentage: req.AllocationPercentage,
		CostPerShare:         req.CostPerShare,
		ClosePrice:           req.ClosePrice,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_ASSET", "asset", asset.ID, c.ClientIP(),
		map[string]interface{}{
			"close_price":           asset.ClosePrice.String(),
			"cost_per_share":        asset.CostPerShare.String(),
			"allocation_percentage": asset.AllocationPercentage.String(),
			"user_portfolios":       cascade.UserPortfolios,
		})

	c.JSON(http.StatusOK, UpdateAssetResponse{Asset: *asset, Cascade: *cascade})
}

// DeleteAsset handles removing an unreferenced asset
// @Summary     Delete an asset
// @Tags        assets
// @Security    BearerAuth
// @Param       id path string true "Asset ID"
// @Success     204 "Asset deleted"
// @Failure     404 {object} ErrorResponse "Asset not found"
// @Failure     409 {object} ErrorResponse "Asset is in use"
// @Router      /assets/{id} [delete]
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.assetService.DeleteAsset(id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_ASSET", "asset", id, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}
