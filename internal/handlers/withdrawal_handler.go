package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/models"
	"fundledger/internal/services"
)

// WithdrawalHandler handles withdrawal settlement requests.
type WithdrawalHandler struct {
	withdrawalService services.WithdrawalServicer
	auditService      services.AuditServicer
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalService services.WithdrawalServicer, auditService services.AuditServicer) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalService: withdrawalService, auditService: auditService}
}

// CreateWithdrawalRequest represents the request payload for requesting a withdrawal
type CreateWithdrawalRequest struct {
	WalletID        string          `json:"wallet_id" binding:"required,uuid"`
	UserID          string          `json:"user_id" binding:"required,uuid"`
	Amount          decimal.Decimal `json:"amount" binding:"gt=0"`
	ReferenceNo     string          `json:"reference_no" binding:"required,max=100"`
	Method          string          `json:"method" binding:"max=50"`
	BankName        string          `json:"bank_name" binding:"required,max=100"`
	BankAccountName string          `json:"bank_account_name" binding:"required,max=100"`
	BankBranch      string          `json:"bank_branch" binding:"required,max=100"`
	AccountNo       string          `json:"account_no" binding:"max=50"`
	AccountName     string          `json:"account_name" binding:"max=100"`
	Description     string          `json:"description" binding:"max=500"`
}

// UpdateWithdrawalRequest represents the request payload for changing a pending withdrawal
type UpdateWithdrawalRequest struct {
	Amount          *decimal.Decimal          `json:"amount" binding:"omitempty,gt=0"`
	ReferenceNo     *string                   `json:"reference_no" binding:"omitempty,min=1,max=100"`
	Method          *string                   `json:"method" binding:"omitempty,max=50"`
	BankName        *string                   `json:"bank_name" binding:"omitempty,min=1,max=100"`
	BankAccountName *string                   `json:"bank_account_name" binding:"omitempty,min=1,max=100"`
	BankBranch      *string                   `json:"bank_branch" binding:"omitempty,min=1,max=100"`
	AccountNo       *string                   `json:"account_no" binding:"omitempty,max=50"`
	AccountName     *string                   `json:"account_name" binding:"omitempty,max=100"`
	Description     *string                   `json:"description" binding:"omitempty,max=500"`
	Status          *models.TransactionStatus `json:"status" binding:"omitempty,tx_status"`
}

// ApproveWithdrawalRequest carries the settlement reference of a paid-out withdrawal
type ApproveWithdrawalRequest struct {
	TransactionID string `json:"transaction_id" binding:"required,max=100"`
}

// RejectWithdrawalRequest carries the optional rejection reason
type RejectWithdrawalRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// CreateWithdrawal handles requesting a withdrawal
// @Summary     Create a withdrawal
// @Description Record a pending withdrawal request. The wallet is debited on approval (admin only).
// @Tags        withdrawals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateWithdrawalRequest true "Withdrawal details"
// @Success     201 {object} models.Withdrawal "Withdrawal created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Wallet not found"
// @Router      /withdrawals [post]
func (h *WithdrawalHandler) CreateWithdrawal(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	withdrawal, err := h.withdrawalService.CreateWithdrawal(c.Request.Context(), services.WithdrawalInput{
		WalletID:        req.WalletID,
		UserID:          req.UserID,
		Amount:          req.Amount,
		ReferenceNo:     req.ReferenceNo,
		Method:          req.Method,
		BankName:        req.BankName,
		BankAccountName: req.BankAccountName,
		BankBranch:      req.BankBranch,
		AccountNo:       req.AccountNo,
		AccountName:     req.AccountName,
		Description:     req.Description,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "CREATE_WITHDRAWAL", "withdrawal", withdrawal.ID, c.ClientIP(),
		map[string]interface{}{"amount": withdrawal.Amount.String(), "wallet_id": withdrawal.WalletID})

	c.JSON(http.StatusCreated, gin.H{"withdrawal": withdrawal})
}

// ListWithdrawals handles listing withdrawals. Investors only see their own.
// @Summary     List withdrawals
// @Tags        withdrawals
// @Produce     json
// @Security    BearerAuth
// @Param       q          query string false "Search reference, transaction ID or bank"
// @Param       user_id    query string false "Filter by user (admin only)"
// @Param       wallet_id  query string false "Filter by wallet"
// @Param       status     query string false "PENDING, APPROVED or REJECTED"
// @Param       sort_by    query string false "created_at, amount or status"
// @Param       sort_order query string false "asc or desc"
// @Param       page       query int    false "Page number (default 1)"
// @Param       page_size  query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Withdrawal] "Paginated withdrawals"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /withdrawals [get]
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	filter, sort, page, err := parseSettlementQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.withdrawalService.ListWithdrawals(filter, sort, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetWithdrawal handles fetching one withdrawal
// @Summary     Get a withdrawal
// @Tags        withdrawals
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Withdrawal ID"
// @Success     200 {object} models.Withdrawal "Withdrawal"
// @Failure     404 {object} ErrorResponse "Withdrawal not found"
// @Router      /withdrawals/{id} [get]
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	withdrawal, err := h.withdrawalService.GetWithdrawal(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := authorizeOwner(c, withdrawal.UserID, apperrors.ErrWithdrawalNotFound); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawal": withdrawal})
}

// UpdateWithdrawal handles changing a pending withdrawal
// @Summary     Update a withdrawal
// @Tags        withdrawals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true "Withdrawal ID"
// @Param       request body UpdateWithdrawalRequest true "Fields to change"
// @Success     200 {object} models.Withdrawal "Withdrawal updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Withdrawal not found"
// @Failure     409 {object} ErrorResponse "Withdrawal is no longer pending"
// @Router      /withdrawals/{id} [patch]
func (h *WithdrawalHandler) UpdateWithdrawal(c *gin.Context) {
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

	var req UpdateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	withdrawal, err := h.withdrawalService.UpdateWithdrawal(c.Request.Context(), id, services.WithdrawalUpdate{
		Amount:          req.Amount,
		ReferenceNo:     req.ReferenceNo,
		Method:          req.Method,
		BankName:        req.BankName,
		BankAccountName: req.BankAccountName,
		BankBranch:      req.BankBranch,
		AccountNo:       req.AccountNo,
		AccountName:     req.AccountName,
		Description:     req.Description,
		Status:          req.Status,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "UPDATE_WITHDRAWAL", "withdrawal", withdrawal.ID, c.ClientIP(),
		map[string]interface{}{"amount": withdrawal.Amount.String()})

	c.JSON(http.StatusOK, gin.H{"withdrawal": withdrawal})
}

// ApproveWithdrawal handles approving a pending withdrawal
// @Summary     Approve a withdrawal
// @Description Debits the wallet when the NAV covers the amount and re-values the user's holdings (admin only)
// @Tags        withdrawals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                   true "Withdrawal ID"
// @Param       request body ApproveWithdrawalRequest true "Settlement reference"
// @Success     200 {object} models.Withdrawal "Withdrawal approved"
// @Failure     400 {object} ErrorResponse "Missing transaction ID"
// @Failure     404 {object} ErrorResponse "Withdrawal not found"
// @Failure     409 {object} ErrorResponse "Insufficient balance or withdrawal rejected"
// @Failure     503 {object} ErrorResponse "Operation timed out"
// @Router      /withdrawals/{id}/approve [post]
func (h *WithdrawalHandler) ApproveWithdrawal(c *gin.Context) {
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

	var req ApproveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction_id is required to approve a withdrawal"))
		return
	}

	withdrawal, err := h.withdrawalService.ApproveWithdrawal(c.Request.Context(), id, req.TransactionID, actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "APPROVE_WITHDRAWAL", "withdrawal", withdrawal.ID, c.ClientIP(),
		map[string]interface{}{"amount": withdrawal.Amount.String(), "transaction_id": req.TransactionID})

	c.JSON(http.StatusOK, gin.H{"withdrawal": withdrawal})
}

// RejectWithdrawal handles rejecting a pending withdrawal
// @Summary     Reject a withdrawal
// @Tags        withdrawals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                  true  "Withdrawal ID"
// @Param       request body RejectWithdrawalRequest false "Rejection reason"
// @Success     200 {object} models.Withdrawal "Withdrawal rejected"
// @Failure     404 {object} ErrorResponse "Withdrawal not found"
// @Failure     409 {object} ErrorResponse "Withdrawal is no longer pending"
// @Router      /withdrawals/{id}/reject [post]
func (h *WithdrawalHandler) RejectWithdrawal(c *gin.Context) {
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

	var req RejectWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(c, bindError(err))
		return
	}

	withdrawal, err := h.withdrawalService.RejectWithdrawal(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "REJECT_WITHDRAWAL", "withdrawal", withdrawal.ID, c.ClientIP(),
		map[string]interface{}{"reason": req.Reason})

	c.JSON(http.StatusOK, gin.H{"withdrawal": withdrawal})
}

// DeleteWithdrawal handles deleting a pending withdrawal
// @Summary     Delete a withdrawal
// @Tags        withdrawals
// @Security    BearerAuth
// @Param       id path string true "Withdrawal ID"
// @Success     204 "Withdrawal deleted"
// @Failure     404 {object} ErrorResponse "Withdrawal not found"
// @Failure     409 {object} ErrorResponse "Withdrawal is no longer pending"
// @Router      /withdrawals/{id} [delete]
func (h *WithdrawalHandler) DeleteWithdrawal(c *gin.Context) {
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

	if err := h.withdrawalService.DeleteWithdrawal(c.Request.Context(), id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "DELETE_WITHDRAWAL", "withdrawal", id, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}
