package services

import (
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/models"
)

// applyWalletDelta moves the wallet NAV by delta with a single atomic SQL
// expression and returns the resulting NAV. Debits are guarded so the NAV
// never drops below zero.
func applyWalletDelta(tx *gorm.DB, walletID string, delta decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case delta.IsPositive():
		res := tx.Model(&models.Wallet{}).
			Where("id = ?", walletID).
			Update("net_asset_value", gorm.Expr("net_asset_value + ?", delta))
		if res.Error != nil {
			return decimal.Zero, translateDBError(res.Error, nil, nil)
		}
		if res.RowsAffected == 0 {
			return decimal.Zero, apperrors.ErrWalletNotFound
		}
	case delta.IsNegative():
		amount := delta.Neg()
		res := tx.Model(&models.Wallet{}).
			Where("id = ? AND net_asset_value >= ?", walletID, amount).
			Update("net_asset_value", gorm.Expr("net_asset_value - ?", amount))
		if res.Error != nil {
			return decimal.Zero, translateDBError(res.Error, nil, nil)
		}
		if res.RowsAffected == 0 {
			if _, err := walletNAV(tx, walletID); err != nil {
				return decimal.Zero, err
			}
			return decimal.Zero, apperrors.ErrInsufficientBalance
		}
	}
	return walletNAV(tx, walletID)
}

func walletNAV(tx *gorm.DB, walletID string) (decimal.Decimal, error) {
	var wallet models.Wallet
	if err := tx.Select("id", "net_asset_value").Where("id = ?", walletID).First(&wallet).Error; err != nil {
		return decimal.Zero, translateDBError(err, apperrors.ErrWalletNotFound, nil)
	}
	return wallet.NetAssetValue, nil
}

// loadOwnedWallet returns the wallet after checking both it and the user
// exist and that the wallet belongs to the user.
func loadOwnedWallet(tx *gorm.DB, walletID, userID string) (*models.Wallet, error) {
	var user models.User
	if err := tx.Select("id").Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrUserNotFound, nil)
	}
	var wallet models.Wallet
	if err := tx.Where("id = ?", walletID).First(&wallet).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrWalletNotFound, nil)
	}
	if wallet.UserID != userID {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Wallet does not belong to user")
	}
	return &wallet, nil
}

// computeWalletDelta returns the NAV change implied by moving a transaction
// from (prevStatus, prevAmount) to (nextStatus, nextAmount).
func computeWalletDelta(prevStatus models.TransactionStatus, prevAmount decimal.Decimal, nextStatus models.TransactionStatus, nextAmount decimal.Decimal) decimal.Decimal {
	wasApproved := prevStatus == models.StatusApproved
	isApproved := nextStatus == models.StatusApproved
	switch {
	case !wasApproved && isApproved:
		return nextAmount
	case wasApproved && !isApproved:
		return prevAmount.Neg()
	case wasApproved && isApproved:
		return nextAmount.Sub(prevAmount)
	}
	return decimal.Zero
}

// normalizeTransactionID trims the reference and maps blank to nil so the
// unique index ignores it.
func normalizeTransactionID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// label returns the actor's display name, falling back to its ID.
func (a Actor) label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// likePattern builds a case-insensitive LIKE pattern for free-text search.
func likePattern(q string) string {
	return "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
}

func applySettlementFilter(q *gorm.DB, f SettlementFilter, searchColumns ...string) *gorm.DB {
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.WalletID != "" {
		q = q.Where("wallet_id = ?", f.WalletID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if strings.TrimSpace(f.Query) != "" && len(searchColumns) > 0 {
		pattern := likePattern(f.Query)
		clauses := make([]string, len(searchColumns))
		args := make([]interface{}, len(searchColumns))
		for i, col := range searchColumns {
			clauses[i] = "LOWER(" + col + ") LIKE ?"
			args[i] = pattern
		}
		q = q.Where(strings.Join(clauses, " OR "), args...)
	}
	return q
}
