package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/logger"
	"fundledger/internal/models"
	"fundledger/internal/pagination"
)

var withdrawalSortColumns = []string{"created_at", "amount", "status"}

// withdrawalService drives the withdrawal settlement state machine.
type withdrawalService struct {
	db      *gorm.DB
	engine  ValuationEngine
	timeout time.Duration
}

// NewWithdrawalService creates a new WithdrawalServicer.
func NewWithdrawalService(db *gorm.DB, engine ValuationEngine, timeout time.Duration) WithdrawalServicer {
	return &withdrawalService{db: db, engine: engine, timeout: timeout}
}

// CreateWithdrawal records a pending withdrawal request.
func (s *withdrawalService) CreateWithdrawal(ctx context.Context, in WithdrawalInput) (*models.Withdrawal, error) {
	if !in.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Amount must be greater than zero")
	}
	if in.WalletID == "" || in.UserID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Wallet and user are required")
	}
	for field, value := range map[string]string{
		"reference_no":      in.ReferenceNo,
		"bank_name":         in.BankName,
		"bank_account_name": in.BankAccountName,
		"bank_branch":       in.BankBranch,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, field+" is required")
		}
	}
	if in.Status != "" && in.Status != models.StatusPending {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Withdrawals must be created as PENDING")
	}

	withdrawal := &models.Withdrawal{
		WalletID:        in.WalletID,
		UserID:          in.UserID,
		Amount:          in.Amount,
		ReferenceNo:     in.ReferenceNo,
		TransactionID:   normalizeTransactionID(in.TransactionID),
		Status:          models.StatusPending,
		Method:          in.Method,
		BankName:        in.BankName,
		BankAccountName: in.BankAccountName,
		BankBranch:      in.BankBranch,
		AccountNo:       in.AccountNo,
		AccountName:     in.AccountName,
		Description:     in.Description,
	}

	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		if _, err := loadOwnedWallet(tx, in.WalletID, in.UserID); err != nil {
			return err
		}
		if err := tx.Create(withdrawal).Error; err != nil {
			return translateDBError(err, nil, apperrors.ErrDuplicateTransactionID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// GetWithdrawal returns a withdrawal with its wallet.
func (s *withdrawalService) GetWithdrawal(id string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := s.db.Preload("Wallet").Where("id = ?", id).First(&withdrawal).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrWithdrawalNotFound, nil)
	}
	return &withdrawal, nil
}

// ListWithdrawals returns a filtered, sorted and paginated list of withdrawals.
func (s *withdrawalService) ListWithdrawals(filter SettlementFilter, sort pagination.SortRequest, page pagination.PageRequest) (*pagination.PageResponse[models.Withdrawal], error) {
	page.Defaults()

	base := applySettlementFilter(s.db.Model(&models.Withdrawal{}), filter,
		"reference_no", "transaction_id", "bank_name", "bank_account_name", "description")

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var withdrawals []models.Withdrawal
	if err := base.Order(sort.OrderClause(withdrawalSortColumns, "created_at DESC")).
		Scopes(pagination.Paginate(page)).
		Find(&withdrawals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(withdrawals, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateWithdrawal edits a pending withdrawal. Status moves only through
// approve and reject.
func (s *withdrawalService) UpdateWithdrawal(ctx context.Context, id string, upd WithdrawalUpdate) (*models.Withdrawal, error) {
	if upd.Status != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Use approve or reject to change withdrawal status")
	}
	if upd.Amount != nil && !upd.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Amount must be greater than zero")
	}
	for field, value := range map[string]*string{
		"reference_no":      upd.ReferenceNo,
		"bank_name":         upd.BankName,
		"bank_account_name": upd.BankAccountName,
		"bank_branch":       upd.BankBranch,
	} {
		if value != nil && strings.TrimSpace(*value) == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, field+" cannot be empty")
		}
	}

	var out models.Withdrawal
	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		w, err := loadWithdrawal(tx, id)
		if err != nil {
			return err
		}
		if w.Status != models.StatusPending {
			return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Only pending withdrawals can be edited")
		}

		changes := map[string]interface{}{}
		if upd.Amount != nil {
			w.Amount = *upd.Amount
			changes["amount"] = w.Amount
		}
		setString(changes, "reference_no", &w.ReferenceNo, upd.ReferenceNo)
		setString(changes, "method", &w.Method, upd.Method)
		setString(changes, "bank_name", &w.BankName, upd.BankName)
		setString(changes, "bank_account_name", &w.BankAccountName, upd.BankAccountName)
		setString(changes, "bank_branch", &w.BankBranch, upd.BankBranch)
		setString(changes, "account_no", &w.AccountNo, upd.AccountNo)
		setString(changes, "account_name", &w.AccountName, upd.AccountName)
		setString(changes, "description", &w.Description, upd.Description)

		if len(changes) > 0 {
			ok, err := transition(tx, &models.Withdrawal{}, id, models.StatusPending, changes)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Only pending withdrawals can be edited")
			}
		}
		out = *w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ApproveWithdrawal debits the wallet, records the settlement reference and
// recomputes valuations. The debit only applies when the NAV covers the
// amount. Approving an approved withdrawal is a no-op.
func (s *withdrawalService) ApproveWithdrawal(ctx context.Context, id, transactionID string, actor Actor) (*models.Withdrawal, error) {
	ref := normalizeTransactionID(&transactionID)
	if ref == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction_id is required to approve a withdrawal")
	}

	var out models.Withdrawal
	debited := false
	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		w, err := loadWithdrawal(tx, id)
		if err != nil {
			return err
		}
		switch w.Status {
		case models.StatusApproved:
			out = *w
			return nil
		case models.StatusRejected:
			return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Cannot approve a rejected withdrawal")
		}

		now := time.Now().UTC()
		ok, err := transition(tx, &models.Withdrawal{}, id, models.StatusPending, map[string]interface{}{
			"status":           models.StatusApproved,
			"transaction_id":   *ref,
			"approved_by_id":   actor.ID,
			"approved_by_name": actor.label(),
			"approved_at":      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			current, err := loadWithdrawal(tx, id)
			if err != nil {
				return err
			}
			if current.Status == models.StatusApproved {
				out = *current
				return nil
			}
			return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Cannot approve a rejected withdrawal")
		}

		nav, err := applyWalletDelta(tx, w.WalletID, w.Amount.Neg())
		if err != nil {
			return err
		}
		if _, err := s.engine.RecomputeForWallet(tx, w.UserID, nav); err != nil {
			return err
		}

		w.Status = models.StatusApproved
		w.TransactionID = ref
		w.ApprovedByID = actor.ID
		w.ApprovedByName = actor.label()
		w.ApprovedAt = &now
		out = *w
		debited = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if debited {
		logger.Get().Infow("withdrawal approved",
			"withdrawal_id", id,
			"user_id", out.UserID,
			"amount", out.Amount.String(),
			"transaction_id", *ref,
		)
	}
	return &out, nil
}

// RejectWithdrawal moves a pending withdrawal to REJECTED. The wallet is untouched.
func (s *withdrawalService) RejectWithdrawal(ctx context.Context, id string, actor Actor, reason string) (*models.Withdrawal, error) {
	var out models.Withdrawal
	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		w, err := loadWithdrawal(tx, id)
		if err != nil {
			return err
		}
		if w.Status != models.StatusPending {
			return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Only pending withdrawals can be rejected")
		}

		now := time.Now().UTC()
		ok, err := transition(tx, &models.Withdrawal{}, id, models.StatusPending, map[string]interface{}{
			"status":           models.StatusRejected,
			"rejected_by_id":   actor.ID,
			"rejected_by_name": actor.label(),
			"rejected_at":      now,
			"reject_reason":    reason,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Only pending withdrawals can be rejected")
		}

		w.Status = models.StatusRejected
		w.RejectedByID = actor.ID
		w.RejectedByName = actor.label()
		w.RejectedAt = &now
		w.RejectReason = reason
		out = *w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteWithdrawal removes a pending withdrawal.
func (s *withdrawalService) DeleteWithdrawal(ctx context.Context, id string) error {
	return runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status = ?", id, models.StatusPending).Delete(&models.Withdrawal{})
		if res.Error != nil {
			return translateDBError(res.Error, nil, nil)
		}
		if res.RowsAffected > 0 {
			return nil
		}
		if _, err := loadWithdrawal(tx, id); err != nil {
			return err
		}
		return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Only pending withdrawals can be deleted")
	})
}

func loadWithdrawal(tx *gorm.DB, id string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := tx.Where("id = ?", id).First(&w).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrWithdrawalNotFound, nil)
	}
	return &w, nil
}
