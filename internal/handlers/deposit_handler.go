package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/models"
	"fundledger/internal/pagination"
	"fundledger/internal/services"
	"fundledger/internal/uuid"
)

// DepositHandler handles deposit settlement requests.
type DepositHandler struct {
	depositService services.DepositServicer
	auditService   services.AuditServicer
}

// NewDepositHandler creates a new DepositHandler.
func NewDepositHandler(depositService services.DepositServicer, auditService services.AuditServicer) *DepositHandler {
	return &DepositHandler{depositService: depositService, auditService: auditService}
}

// CreateDepositRequest represents the request payload for recording a deposit
type CreateDepositRequest struct {
	WalletID      string                   `json:"wallet_id" binding:"required,uuid"`
	UserID        string                   `json:"user_id" binding:"required,uuid"`
	Amount        decimal.Decimal          `json:"amount" binding:"gt=0"`
	TransactionID *string                  `json:"transaction_id" binding:"omitempty,min=1,max=100"`
	Status        models.TransactionStatus `json:"status" binding:"omitempty,tx_status"`
	Method        string                   `json:"method" binding:"max=50"`
	ReferenceNo   string                   `json:"reference_no" binding:"max=100"`
	MobileNo      string                   `json:"mobile_no" binding:"max=30"`
	AccountNo     string                   `json:"account_no" binding:"max=50"`
	Description   string                   `json:"description" binding:"max=500"`
}

// UpdateDepositRequest represents the request payload for a partial deposit update
type UpdateDepositRequest struct {
	WalletID      *string                   `json:"wallet_id" binding:"omitempty,uuid"`
	UserID        *string                   `json:"user_id" binding:"omitempty,uuid"`
	Amount        *decimal.Decimal          `json:"amount" binding:"omitempty,gt=0"`
	TransactionID *string                   `json:"transaction_id" binding:"omitempty,max=100"`
	Status        *models.TransactionStatus `json:"status" binding:"omitempty,tx_status"`
	Method        *string                   `json:"method" binding:"omitempty,max=50"`
	ReferenceNo   *string                   `json:"reference_no" binding:"omitempty,max=100"`
	MobileNo      *string                   `json:"mobile_no" binding:"omitempty,max=30"`
	AccountNo     *string                   `json:"account_no" binding:"omitempty,max=50"`
	Description   *string                   `json:"description" binding:"omitempty,max=500"`
}

// CreateDeposit handles recording a deposit
// @Summary     Create a deposit
// @Description Record a deposit. Creating it as APPROVED credits the wallet and re-values holdings immediately (admin only).
// @Tags        deposits
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateDepositRequest true "Deposit details"
// @Success     201 {object} models.Deposit "Deposit created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Wallet not found"
// @Failure     409 {object} ErrorResponse "Duplicate transaction ID"
// @Failure     503 {object} ErrorResponse "Operation timed out"
// @Router      /deposits [post]
func (h *DepositHandler) CreateDeposit(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	deposit, err := h.depositService.CreateDeposit(c.Request.Context(), services.DepositInput{
		WalletID:      req.WalletID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		TransactionID: req.TransactionID,
		Status:        req.Status,
		Method:        req.Method,
		ReferenceNo:   req.ReferenceNo,
		MobileNo:      req.MobileNo,
		AccountNo:     req.AccountNo,
		Description:   req.Description,
	}, actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "CREATE_DEPOSIT", "deposit", deposit.ID, c.ClientIP(),
		map[string]interface{}{"amount": deposit.Amount.String(), "status": deposit.Status, "wallet_id": deposit.WalletID})

	c.JSON(http.StatusCreated, gin.H{"deposit": deposit})
}

// ListDeposits handles listing deposits. Investors only see their own.
// @Summary     List deposits
// @Tags        deposits
// @Produce     json
// @Security    BearerAuth
// @Param       q          query string false "Search reference, transaction ID or description"
// @Param       user_id    query string false "Filter by user (admin only)"
// @Param       wallet_id  query string false "Filter by wallet"
// @Param       status     query string false "PENDING, APPROVED or REJECTED"
// @Param       sort_by    query string false "created_at, amount or status"
// @Param       sort_order query string false "asc or desc"
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Deposit] "Paginated deposits"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /deposits [get]
func (h *DepositHandler) ListDeposits(c *gin.Context) {
	filter, sort, page, err := parseSettlementQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.depositService.ListDeposits(filter, sort, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetDeposit handles fetching one deposit
// @Summary     Get a deposit
// @Tags        deposits
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Deposit ID"
// @Success     200 {object} models.Deposit "Deposit"
// @Failure     404 {object} ErrorResponse "Deposit not found"
// @Router      /deposits/{id} [get]
func (h *DepositHandler) GetDeposit(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	deposit, err := h.depositService.GetDeposit(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := authorizeOwner(c, deposit.UserID, apperrors.ErrDepositNotFound); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deposit": deposit})
}

// UpdateDeposit handles a partial deposit update
// @Summary     Update a deposit
// @Description Patch a deposit. Amount and status changes adjust the wallet by the signed difference (admin only).
// @Tags        deposits
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Deposit ID"
// @Param       request body UpdateDepositRequest true "Fields to change"
// @Success     200 {object} models.Deposit "Deposit updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Deposit not found"
// @Failure     409 {object} ErrorResponse "Invalid status transition or immutable field"
// @Router      /deposits/{id} [patch]
func (h *DepositHandler) UpdateDeposit(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	deposit, err := h.depositService.UpdateDeposit(c.Request.Context(), id, services.DepositUpdate{
		WalletID:      req.WalletID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		TransactionID: req.TransactionID,
		Status:        req.Status,
		Method:        req.Method,
		ReferenceNo:   req.ReferenceNo,
		MobileNo:      req.MobileNo,
		AccountNo:     req.AccountNo,
		Description:   req.Description,
	}, actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "UPDATE_DEPOSIT", "deposit", deposit.ID, c.ClientIP(),
		map[string]interface{}{"amount": deposit.Amount.String(), "status": deposit.Status})

	c.JSON(http.StatusOK, gin.H{"deposit": deposit})
}

// ApproveDeposit handles approving a pending deposit
// @Summary     Approve a deposit
// @Description Credits the wallet and re-values every holding of the user. Repeating the call is a no-op (admin only).
// @Tags        deposits
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Deposit ID"
// @Success     200 {object} models.Deposit "Deposit approved"
// @Failure     404 {object} ErrorResponse "Deposit not found"
// @Failure     409 {object} ErrorResponse "Deposit was rejected"
// @Failure     503 {object} ErrorResponse "Operation timed out"
// @Router      /deposits/{id}/approve [post]
func (h *DepositHandler) ApproveDeposit(c *gin.Context) {
	h.transition(c, "APPROVE_DEPOSIT", func(id string, actor services.Actor) (*models.Deposit, error) {
		return h.depositService.ApproveDeposit(c.Request.Context(), id, actor)
	})
}

// RejectDeposit handles rejecting a pending deposit
// @Summary     Reject a deposit
// @Tags        deposits
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Deposit ID"
// @Success     200 {object} models.Deposit "Deposit rejected"
// @Failure     404 {object} ErrorResponse "Deposit not found"
// @Failure     409 {object} ErrorResponse "Deposit was approved"
// @Router      /deposits/{id}/reject [post]
func (h *DepositHandler) RejectDeposit(c *gin.Context) {
	h.transition(c, "REJECT_DEPOSIT", func(id string, _ services.Actor) (*models.Deposit, error) {
		return h.depositService.RejectDeposit(c.Request.Context(), id)
	})
}

// ReverseDeposit handles reversing a deposit
// @Summary     Reverse a deposit
// @Description Marks the deposit rejected. An approved deposit is debited from the wallet and holdings are re-valued (admin only).
// @Tags        deposits
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Deposit ID"
// @Success     200 {object} models.Deposit "Deposit reversed"
// @Failure     404 {object} ErrorResponse "Deposit not found"
// @Failure     503 {object} ErrorResponse "Operation timed out"
// @Router      /deposits/{id}/reverse [post]
func (h *DepositHandler) ReverseDeposit(c *gin.Context) {
	h.transition(c, "REVERSE_DEPOSIT", func(id string, _ services.Actor) (*models.Deposit, error) {
		return h.depositService.ReverseDeposit(c.Request.Context(), id)
	})
}

// DeleteDeposit handles deleting a deposit that was never approved
// @Summary     Delete a deposit
// @Tags        deposits
// @Security    BearerAuth
// @Param       id path string true "Deposit ID"
// @Success     204 "Deposit deleted"
// @Failure     404 {object} ErrorResponse "Deposit not found"
// @Failure     409 {object} ErrorResponse "Deposit is approved"
// @Router      /deposits/{id} [delete]
func (h *DepositHandler) DeleteDeposit(c *gin.Context) {
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

	if err := h.depositService.DeleteDeposit(c.Request.Context(), id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "DELETE_DEPOSIT", "deposit", id, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}

func (h *DepositHandler) transition(c *gin.Context, action string, fn func(id string, actor services.Actor) (*models.Deposit, error)) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	deposit, err := fn(id, actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, action, "deposit", deposit.ID, c.ClientIP(),
		map[string]interface{}{"amount": deposit.Amount.String(), "status": deposit.Status, "wallet_id": deposit.WalletID})

	c.JSON(http.StatusOK, gin.H{"deposit": deposit})
}

// parseSettlementQuery binds the shared deposit/withdrawal list parameters.
// Investors are always scoped to their own records.
func parseSettlementQuery(c *gin.Context) (services.SettlementFilter, pagination.SortRequest, pagination.PageRequest, error) {
	var filter services.SettlementFilter
	var sort pagination.SortRequest
	var page pagination.PageRequest

	userID, err := getUserID(c)
	if err != nil {
		return filter, sort, page, err
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		return filter, sort, page, bindError(err)
	}
	if err := c.ShouldBindQuery(&sort); err != nil {
		return filter, sort, page, bindError(err)
	}

	filter.Query = c.Query("q")
	filter.UserID = c.Query("user_id")
	filter.WalletID = c.Query("wallet_id")
	for _, v := range []string{filter.UserID, filter.WalletID} {
		if v != "" && !uuid.IsValid(v) {
			return filter, sort, page, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid filter id")
		}
	}
	if v := c.Query("status"); v != "" {
		status := models.TransactionStatus(v)
		if !status.IsValid() {
			return filter, sort, page, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid status, must be PENDING, APPROVED or REJECTED")
		}
		filter.Status = status
	}
	if !isAdmin(c) {
		filter.UserID = userID
	}
	return filter, sort, page, nil
}
