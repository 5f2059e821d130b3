package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/logger"
	"fundledger/internal/models"
	"fundledger/internal/pagination"
)

var depositSortColumns = []string{"created_at", "amount", "status"}

// depositService drives the deposit settlement state machine.
type depositService struct {
	db      *gorm.DB
	engine  ValuationEngine
	timeout time.Duration
}

// NewDepositService creates a new DepositServicer.
func NewDepositService(db *gorm.DB, engine ValuationEngine, timeout time.Duration) DepositServicer {
	return &depositService{db: db, engine: engine, timeout: timeout}
}

// CreateDeposit records a deposit. A deposit created directly as APPROVED
// credits the wallet and recomputes valuations in the same transaction.
func (s *depositService) CreateDeposit(ctx context.Context, in DepositInput, actor Actor) (*models.Deposit, error) {
	if !in.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Amount must be greater than zero")
	}
	if in.WalletID == "" || in.UserID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Wallet and user are required")
	}
	status := in.Status
	if status == "" {
		status = models.StatusPending
	}
	if !status.IsValid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid status")
	}

	deposit := &models.Deposit{
		WalletID:      in.WalletID,
		UserID:        in.UserID,
		Amount:        in.Amount,
		TransactionID: normalizeTransactionID(in.TransactionID),
		Status:        status,
		Method:        in.Method,
		ReferenceNo:   in.ReferenceNo,
		MobileNo:      in.MobileNo,
		AccountNo:     in.AccountNo,
		Description:   in.Description,
	}

	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		if _, err := loadOwnedWallet(tx, in.WalletID, in.UserID); err != nil {
			return err
		}
		if status == models.StatusApproved {
			now := time.Now().UTC()
			deposit.ApprovedAt = &now
			deposit.ApprovedBy = actor.label()
		}
		if err := tx.Create(deposit).Error; err != nil {
			return translateDBError(err, nil, apperrors.ErrDuplicateTransactionID)
		}
		if status == models.StatusApproved {
			return s.settle(tx, deposit.UserID, deposit.WalletID, deposit.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("deposit created",
		"deposit_id", deposit.ID,
		"user_id", deposit.UserID,
		"amount", deposit.Amount.String(),
		"status", deposit.Status,
	)
	return deposit, nil
}

// GetDeposit returns a deposit with its wallet.
func (s *depositService) GetDeposit(id string) (*models.Deposit, error) {
	var deposit models.Deposit
	if err := s.db.Preload("Wallet").Where("id = ?", id).First(&deposit).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrDepositNotFound, nil)
	}
	return &deposit, nil
}

// ListDeposits returns a filtered, sorted and paginated list of deposits.
func (s *depositService) ListDeposits(filter SettlementFilter, sort pagination.SortRequest, page pagination.PageRequest) (*pagination.PageResponse[models.Deposit], error) {
	page.Defaults()

	base := applySettlementFilter(s.db.Model(&models.Deposit{}), filter,
		"reference_no", "transaction_id", "description", "method")

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var deposits []models.Deposit
	if err := base.Order(sort.OrderClause(depositSortColumns, "created_at DESC")).
		Scopes(pagination.Paginate(page)).
		Find(&deposits).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(deposits, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// UpdateDeposit applies a partial update. The wallet moves by the signed
// delta implied by the status/amount change, followed by a recompute.
func (s *depositService) UpdateDeposit(ctx context.Context, id string, upd DepositUpdate, actor Actor) (*models.Deposit, error) {
	if upd.Amount != nil && !upd.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Amount must be greater than zero")
	}
	if upd.Status != nil && !upd.Status.IsValid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid status")
	}

	var out models.Deposit
	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		var d models.Deposit
		if err := tx.Where("id = ?", id).First(&d).Error; err != nil {
			return translateDBError(err, apperrors.ErrDepositNotFound, nil)
		}
		prevStatus, prevAmount := d.Status, d.Amount

		relink := (upd.WalletID != nil && *upd.WalletID != d.WalletID) ||
			(upd.UserID != nil && *upd.UserID != d.UserID)
		if relink {
			if d.Status == models.StatusApproved {
				return apperrors.WithMessage(apperrors.ErrImmutableField, "Wallet and user cannot change on an approved deposit")
			}
			if upd.WalletID != nil {
				d.WalletID = *upd.WalletID
			}
			if upd.UserID != nil {
				d.UserID = *upd.UserID
			}
			if _, err := loadOwnedWallet(tx, d.WalletID, d.UserID); err != nil {
				return err
			}
		}

		changes := map[string]interface{}{}
		if upd.Status != nil && *upd.Status != d.Status {
			if d.Status != models.StatusPending {
				return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition,
					"Only pending deposits can change status; reverse approved deposits instead")
			}
			d.Status = *upd.Status
			changes["status"] = d.Status
			if d.Status == models.StatusApproved {
				now := time.Now().UTC()
				d.ApprovedAt = &now
				d.ApprovedBy = actor.label()
				changes["approved_at"] = now
				changes["approved_by"] = d.ApprovedBy
			}
		}
		if upd.Amount != nil {
			d.Amount = *upd.Amount
			changes["amount"] = d.Amount
		}
		if relink {
			changes["wallet_id"] = d.WalletID
			changes["user_id"] = d.UserID
		}
		if upd.TransactionID != nil {
			d.TransactionID = normalizeTransactionID(upd.TransactionID)
			changes["transaction_id"] = d.TransactionID
		}
		setString(changes, "method", &d.Method, upd.Method)
		setString(changes, "reference_no", &d.ReferenceNo, upd.ReferenceNo)
		setString(changes, "mobile_no", &d.MobileNo, upd.MobileNo)
		setString(changes, "account_no", &d.AccountNo, upd.AccountNo)
		setString(changes, "description", &d.Description, upd.Description)

		if len(changes) > 0 {
			res := tx.Model(&models.Deposit{}).
				Where("id = ? AND status = ?", id, prevStatus).
				Updates(changes)
			if res.Error != nil {
				return translateDBError(res.Error, nil, apperrors.ErrDuplicateTransactionID)
			}
			if res.RowsAffected == 0 {
				return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Deposit was modified concurrently")
			}
		}

		delta := computeWalletDelta(prevStatus, prevAmount, d.Status, d.Amount)
		if !delta.IsZero() {
			if err := s.settle(tx, d.UserID, d.WalletID, delta); err != nil {
				return err
			}
		}

		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ApproveDeposit moves a pending deposit to APPROVED, credits the wallet and
// recomputes valuations. Approving an approved deposit is a no-op.
func (s *depositService) ApproveDeposit(ctx context.Context, id string, actor Actor) (*models.Deposit, error) {
	var out models.Deposit
	credited := false
	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		d, err := loadDeposit(tx, id)
		if err != nil {
			return err
		}
		switch d.Status {
		case models.StatusApproved:
			out = *d
			return nil
		case models.StatusRejected:
			return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Cannot approve a rejected deposit")
		}

		now := time.Now().UTC()
		ok, err := transition(tx, &models.Deposit{}, id, models.StatusPending, map[string]interface{}{
			"status":      models.StatusApproved,
			"approved_by": actor.label(),
			"approved_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			current, err := loadDeposit(tx, id)
			if err != nil {
				return err
			}
			if current.Status == models.StatusApproved {
				out = *current
				return nil
			}
			return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Cannot approve a rejected deposit")
		}

		if err := s.settle(tx, d.UserID, d.WalletID, d.Amount); err != nil {
			return err
		}
		d.Status = models.StatusApproved
		d.ApprovedBy = actor.label()
		d.ApprovedAt = &now
		out = *d
		credited = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if credited {
		logger.Get().Infow("deposit approved",
			"deposit_id", id,
			"user_id", out.UserID,
			"amount", out.Amount.String(),
			"approved_by", out.ApprovedBy,
		)
	}
	return &out, nil
}

// RejectDeposit moves a pending deposit to REJECTED. Approved deposits must
// be reversed instead.
func (s *depositService) RejectDeposit(ctx context.Context, id string) (*models.Deposit, error) {
	var out models.Deposit
	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		d, err := loadDeposit(tx, id)
		if err != nil {
			return err
		}
		switch d.Status {
		case models.StatusRejected:
			out = *d
			return nil
		case models.StatusApproved:
			return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Approved deposits must be reversed, not rejected")
		}

		ok, err := transition(tx, &models.Deposit{}, id, models.StatusPending, map[string]interface{}{
			"status": models.StatusRejected,
		})
		if err != nil {
			return err
		}
		if !ok {
			current, err := loadDeposit(tx, id)
			if err != nil {
				return err
			}
			if current.Status == models.StatusRejected {
				out = *current
				return nil
			}
			return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Approved deposits must be reversed, not rejected")
		}
		d.Status = models.StatusRejected
		out = *d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ReverseDeposit moves a deposit to REJECTED. If it had been approved the
// credit is taken back out of the wallet and valuations are recomputed.
func (s *depositService) ReverseDeposit(ctx context.Context, id string) (*models.Deposit, error) {
	var out models.Deposit
	debited := false
	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		d, err := loadDeposit(tx, id)
		if err != nil {
			return err
		}
		if d.Status == models.StatusRejected {
			out = *d
			return nil
		}

		now := time.Now().UTC()
		ok, err := transition(tx, &models.Deposit{}, id, d.Status, map[string]interface{}{
			"status":      models.StatusRejected,
			"reversed_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Deposit was modified concurrently")
		}

		if d.Status == models.StatusApproved {
			if err := s.settle(tx, d.UserID, d.WalletID, d.Amount.Neg()); err != nil {
				return err
			}
			debited = true
		}
		d.Status = models.StatusRejected
		d.ReversedAt = &now
		out = *d
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("deposit reversed",
		"deposit_id", id,
		"user_id", out.UserID,
		"amount", out.Amount.String(),
		"wallet_debited", debited,
	)
	return &out, nil
}

// DeleteDeposit removes a deposit that has not been approved.
func (s *depositService) DeleteDeposit(ctx context.Context, id string) error {
	return runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND status <> ?", id, models.StatusApproved).Delete(&models.Deposit{})
		if res.Error != nil {
			return translateDBError(res.Error, nil, nil)
		}
		if res.RowsAffected > 0 {
			return nil
		}
		if _, err := loadDeposit(tx, id); err != nil {
			return err
		}
		return apperrors.WithMessage(apperrors.ErrInvalidStatusTransition, "Approved deposits cannot be deleted; reverse them first")
	})
}

// settle moves the wallet by delta and recomputes the user's valuations
// against the resulting NAV.
func (s *depositService) settle(tx *gorm.DB, userID, walletID string, delta decimal.Decimal) error {
	nav, err := applyWalletDelta(tx, walletID, delta)
	if err != nil {
		return err
	}
	_, err = s.engine.RecomputeForWallet(tx, userID, nav)
	return err
}

func loadDeposit(tx *gorm.DB, id string) (*models.Deposit, error) {
	var d models.Deposit
	if err := tx.Where("id = ?", id).First(&d).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrDepositNotFound, nil)
	}
	return &d, nil
}

// transition performs a guarded status update. It reports false when the
// row was no longer in the from state.
func transition(tx *gorm.DB, model interface{}, id string, from models.TransactionStatus, changes map[string]interface{}) (bool, error) {
	res := tx.Model(model).Where("id = ? AND status = ?", id, from).Updates(changes)
	if res.Error != nil {
		return false, translateDBError(res.Error, nil, apperrors.ErrDuplicateTransactionID)
	}
	return res.RowsAffected > 0, nil
}

// setString records a string field change when next is non-nil.
func setString(changes map[string]interface{}, column string, field *string, next *string) {
	if next == nil {
		return
	}
	*field = *next
	changes[column] = *next
}
