package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"fundledger/internal/pagination"
	"fundledger/internal/services"
)

// PortfolioHandler handles portfolio templates and their assets.
type PortfolioHandler struct {
	portfolioService services.PortfolioServicer
	auditService     services.AuditServicer
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService services.PortfolioServicer, auditService services.AuditServicer) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService, auditService: auditService}
}

// CreatePortfolioRequest represents the request payload for creating a portfolio
type CreatePortfolioRequest struct {
	Name                 string           `json:"name" binding:"required,max=100"`
	Description          string           `json:"description" binding:"max=500"`
	TimeHorizon          string           `json:"time_horizon" binding:"max=100"`
	RiskTolerance        string           `json:"risk_tolerance" binding:"max=100"`
	AllocationPercentage *decimal.Decimal `json:"allocation_percentage" binding:"omitempty,gte=0,lte=100"`
}

// UpdatePortfolioRequest represents the request payload for a partial portfolio update
type UpdatePortfolioRequest struct {
	Name                 *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Description          *string          `json:"description" binding:"omitempty,max=500"`
	TimeHorizon          *string          `json:"time_horizon" binding:"omitempty,max=100"`
	RiskTolerance        *string          `json:"risk_tolerance" binding:"omitempty,max=100"`
	AllocationPercentage *decimal.Decimal `json:"allocation_percentage" binding:"omitempty,gte=0,lte=100"`
}

// AddPortfolioAssetRequest represents the request payload for adding an asset to a portfolio
type AddPortfolioAssetRequest struct {
	AssetID   string          `json:"asset_id" binding:"required,uuid"`
	Stock     decimal.Decimal `json:"stock" binding:"gte=0"`
	CostPrice decimal.Decimal `json:"cost_price" binding:"gte=0"`
}

// UpdatePortfolioAssetRequest represents the request payload for changing a portfolio asset
type UpdatePortfolioAssetRequest struct {
	Stock     *decimal.Decimal `json:"stock" binding:"omitempty,gte=0"`
	CostPrice *decimal.Decimal `json:"cost_price" binding:"omitempty,gte=0"`
}

// CreatePortfolio handles creating a portfolio template
// @Summary     Create a portfolio
// @Tags        portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreatePortfolioRequest true "Portfolio details"
// @Success     201 {object} models.Portfolio "Portfolio created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Name already exists"
// @Router      /portfolios [post]
func (h *PortfolioHandler) CreatePortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	portfolio, err := h.portfolioService.CreatePortfolio(services.PortfolioInput{
		Name:                 req.Name,
		Description:          req.Description,
		TimeHorizon:          req.TimeHorizon,
		RiskTolerance:        req.RiskTolerance,
		AllocationPercentage: req.AllocationPercentage,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_PORTFOLIO", "portfolio", portfolio.ID, c.ClientIP(),
		map[string]interface{}{"name": portfolio.Name})

	c.JSON(http.StatusCreated, gin.H{"portfolio": portfolio})
}

// ListPortfolios handles listing portfolio templates
// @Summary     List portfolios
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       q         query string false "Search name or description"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Portfolio] "Paginated portfolios"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /portfolios [get]
func (h *PortfolioHandler) ListPortfolios(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.portfolioService.ListPortfolios(c.Query("q"), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPortfolio handles fetching a portfolio with its assets
// @Summary     Get a portfolio
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     200 {object} models.Portfolio "Portfolio"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id} [get]
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio, err := h.portfolioService.GetPortfolio(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio})
}

// UpdatePortfolio handles a partial portfolio update
// @Summary     Update a portfolio
// @Tags        portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                 true "Portfolio ID"
// @Param       request body UpdatePortfolioRequest true "Fields to change"
// @Success     200 {object} models.Portfolio "Portfolio updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Failure     409 {object} ErrorResponse "Name already exists"
// @Router      /portfolios/{id} [patch]
func (h *PortfolioHandler) UpdatePortfolio(c *gin.Context) {
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

	var req UpdatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	portfolio, err := h.portfolioService.UpdatePortfolio(id, services.PortfolioUpdate{
		Name:                 req.Name,
		Description:          req.Description,
		TimeHorizon:          req.TimeHorizon,
		RiskTolerance:        req.RiskTolerance,
		AllocationPercentage: req.AllocationPercentage,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_PORTFOLIO", "portfolio", portfolio.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio})
}

// DeletePortfolio handles deleting an unsubscribed portfolio
// @Summary     Delete a portfolio
// @Tags        portfolios
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     204 "Portfolio deleted"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Failure     409 {object} ErrorResponse "Portfolio has subscriptions"
// @Router      /portfolios/{id} [delete]
func (h *PortfolioHandler) DeletePortfolio(c *gin.Context) {
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

	if err := h.portfolioService.DeletePortfolio(id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_PORTFOLIO", "portfolio", id, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}

// AddPortfolioAsset handles adding an asset to a portfolio template
// @Summary     Add an asset to a portfolio
// @Tags        portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Portfolio ID"
// @Param       request body AddPortfolioAssetRequest true "Holding details"
// @Success     201 {object} models.PortfolioAsset "Portfolio asset created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Portfolio or asset not found"
// @Failure     409 {object} ErrorResponse "Asset already in portfolio"
// @Router      /portfolios/{id}/assets [post]
func (h *PortfolioHandler) AddPortfolioAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddPortfolioAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	pa, err := h.portfolioService.AddPortfolioAsset(portfolioID, req.AssetID, req.Stock, req.CostPrice)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ADD_PORTFOLIO_ASSET", "portfolio_asset", pa.ID, c.ClientIP(),
		map[string]interface{}{"portfolio_id": portfolioID, "asset_id": req.AssetID})

	c.JSON(http.StatusCreated, gin.H{"portfolio_asset": pa})
}

// ListPortfolioAssets handles listing the assets of a portfolio template
// @Summary     List portfolio assets
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     200 {array} models.PortfolioAsset "Portfolio assets"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id}/assets [get]
func (h *PortfolioHandler) ListPortfolioAssets(c *gin.Context) {
	portfolioID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	assets, err := h.portfolioService.ListPortfolioAssets(portfolioID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolio_assets": assets})
}

// GetPortfolioAsset handles fetching a single portfolio asset
// @Summary     Get a portfolio asset
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio asset ID"
// @Success     200 {object} models.PortfolioAsset "Portfolio asset"
// @Failure     404 {object} ErrorResponse "Portfolio asset not found"
// @Router      /portfolio-assets/{id} [get]
func (h *PortfolioHandler) GetPortfolioAsset(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	pa, err := h.portfolioService.GetPortfolioAsset(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolio_asset": pa})
}

// UpdatePortfolioAsset handles changing stock or cost of a portfolio asset
// @Summary     Update a portfolio asset
// @Tags        portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                      true "Portfolio asset ID"
// @Param       request body UpdatePortfolioAssetRequest true "Fields to change"
// @Success     200 {object} models.PortfolioAsset "Portfolio asset updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Portfolio asset not found"
// @Router      /portfolio-assets/{id} [patch]
func (h *PortfolioHandler) UpdatePortfolioAsset(c *gin.Context) {
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

	var req UpdatePortfolioAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	pa, err := h.portfolioService.UpdatePortfolioAsset(id, req.Stock, req.CostPrice)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_PORTFOLIO_ASSET", "portfolio_asset", pa.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"portfolio_asset": pa})
}

// RemovePortfolioAsset handles removing an asset from a portfolio template
// @Summary     Remove a portfolio asset
// @Tags        portfolios
// @Security    BearerAuth
// @Param       id path string true "Portfolio asset ID"
// @Success     204 "Portfolio asset removed"
// @Failure     404 {object} ErrorResponse "Portfolio asset not found"
// @Failure     409 {object} ErrorResponse "Portfolio asset is held by users"
// @Router      /portfolio-assets/{id} [delete]
func (h *PortfolioHandler) RemovePortfolioAsset(c *gin.Context) {
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

	if err := h.portfolioService.RemovePortfolioAsset(id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REMOVE_PORTFOLIO_ASSET", "portfolio_asset", id, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}
