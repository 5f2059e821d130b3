package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/models"
	"fundledger/internal/pagination"
	"fundledger/internal/services"
	"fundledger/internal/uuid"
)

// UserPortfolioHandler handles user subscriptions to portfolios.
type UserPortfolioHandler struct {
	userPortfolioService services.UserPortfolioServicer
	auditService         services.AuditServicer
}

// NewUserPortfolioHandler creates a new UserPortfolioHandler.
func NewUserPortfolioHandler(userPortfolioService services.UserPortfolioServicer, auditService services.AuditServicer) *UserPortfolioHandler {
	return &UserPortfolioHandler{userPortfolioService: userPortfolioService, auditService: auditService}
}

// SubscribeRequest represents the request payload for subscribing a user to a portfolio
type SubscribeRequest struct {
	UserID      string `json:"user_id" binding:"required,uuid"`
	PortfolioID string `json:"portfolio_id" binding:"required,uuid"`
}

// UpdateUserPortfolioRequest represents the request payload for changing a subscription
type UpdateUserPortfolioRequest struct {
	PortfolioID *string `json:"portfolio_id" binding:"omitempty,uuid"`
	ResetAssets bool    `json:"reset_assets"`
	Recompute   bool    `json:"recompute"`
}

// Subscribe handles subscribing a user to a portfolio
// @Summary     Subscribe a user to a portfolio
// @Description Creates the user portfolio and values every holding from the user's wallet NAV (admin only)
// @Tags        user-portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body SubscribeRequest true "Subscription"
// @Success     201 {object} models.UserPortfolio "User portfolio created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "User, wallet or portfolio not found"
// @Failure     409 {object} ErrorResponse "Already subscribed"
// @Router      /user-portfolios [post]
func (h *UserPortfolioHandler) Subscribe(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	up, err := h.userPortfolioService.Subscribe(c.Request.Context(), req.UserID, req.PortfolioID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "SUBSCRIBE_PORTFOLIO", "user_portfolio", up.ID, c.ClientIP(),
		map[string]interface{}{"user_id": req.UserID, "portfolio_id": req.PortfolioID})

	c.JSON(http.StatusCreated, gin.H{"user_portfolio": up})
}

// ListUserPortfolios handles listing subscriptions. Investors only see their own.
// @Summary     List user portfolios
// @Tags        user-portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       user_id      query string false "Filter by user (admin only)"
// @Param       portfolio_id query string false "Filter by portfolio"
// @Param       page         query int    false "Page number (default 1)"
// @Param       page_size    query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.UserPortfolio] "Paginated user portfolios"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /user-portfolios [get]
func (h *UserPortfolioHandler) ListUserPortfolios(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	filter := services.UserPortfolioFilter{
		UserID:      c.Query("user_id"),
		PortfolioID: c.Query("portfolio_id"),
	}
	for _, v := range []string{filter.UserID, filter.PortfolioID} {
		if v != "" && !uuid.IsValid(v) {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid filter id"))
			return
		}
	}
	if !isAdmin(c) {
		filter.UserID = userID
	}

	result, err := h.userPortfolioService.ListUserPortfolios(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetUserPortfolio handles fetching a subscription with its holdings
// @Summary     Get a user portfolio
// @Tags        user-portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "User portfolio ID"
// @Success     200 {object} models.UserPortfolio "User portfolio"
// @Failure     404 {object} ErrorResponse "User portfolio not found"
// @Router      /user-portfolios/{id} [get]
func (h *UserPortfolioHandler) GetUserPortfolio(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	up, err := ownedUserPortfolio(c, h.userPortfolioService, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_portfolio": up})
}

// UpdateUserPortfolio handles switching, rebuilding or re-valuing a subscription
// @Summary     Update a user portfolio
// @Description Switching portfolio or reset_assets rebuilds holdings from the template; recompute re-values them from the wallet NAV (admin only)
// @Tags        user-portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                     true "User portfolio ID"
// @Param       request body UpdateUserPortfolioRequest true "Changes"
// @Success     200 {object} models.UserPortfolio "User portfolio updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "User portfolio not found"
// @Failure     409 {object} ErrorResponse "Already subscribed to the target portfolio"
// @Router      /user-portfolios/{id} [patch]
func (h *UserPortfolioHandler) UpdateUserPortfolio(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateUserPortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	up, err := h.userPortfolioService.UpdateUserPortfolio(c.Request.Context(), id, services.UserPortfolioUpdate{
		PortfolioID: req.PortfolioID,
		ResetAssets: req.ResetAssets,
		Recompute:   req.Recompute,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "UPDATE_USER_PORTFOLIO", "user_portfolio", up.ID, c.ClientIP(),
		map[string]interface{}{"portfolio_id": up.PortfolioID, "reset_assets": req.ResetAssets, "recompute": req.Recompute})

	c.JSON(http.StatusOK, gin.H{"user_portfolio": up})
}

// Recompute handles re-valuing one subscription from the wallet NAV
// @Summary     Recompute a user portfolio
// @Tags        user-portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "User portfolio ID"
// @Success     200 {object} services.RecomputeResult "Recompute result"
// @Failure     404 {object} ErrorResponse "User portfolio not found"
// @Failure     503 {object} ErrorResponse "Operation timed out"
// @Router      /user-portfolios/{id}/recompute [post]
func (h *UserPortfolioHandler) Recompute(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.userPortfolioService.Recompute(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Unsubscribe handles removing a subscription and its holdings
// @Summary     Delete a user portfolio
// @Tags        user-portfolios
// @Security    BearerAuth
// @Param       id path string true "User portfolio ID"
// @Success     204 "User portfolio deleted"
// @Failure     404 {object} ErrorResponse "User portfolio not found"
// @Router      /user-portfolios/{id} [delete]
func (h *UserPortfolioHandler) Unsubscribe(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.userPortfolioService.Unsubscribe(c.Request.Context(), id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "UNSUBSCRIBE_PORTFOLIO", "user_portfolio", id, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}

// ownedUserPortfolio loads a subscription and checks the caller may see it.
func ownedUserPortfolio(c *gin.Context, svc services.UserPortfolioServicer, id string) (*models.UserPortfolio, error) {
	up, err := svc.GetUserPortfolio(id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(c, up.UserID, apperrors.ErrUserPortfolioNotFound); err != nil {
		return nil, err
	}
	return up, nil
}
