package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the settlement state of a deposit or withdrawal.
type TransactionStatus string

const (
	StatusPending  TransactionStatus = "PENDING"
	StatusApproved TransactionStatus = "APPROVED"
	StatusRejected TransactionStatus = "REJECTED"
)

// IsValid reports whether s is a known status.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Deposit credits a wallet once approved.
type Deposit struct {
	Base
	WalletID      string            `gorm:"type:uuid;not null;index" json:"wallet_id"`
	UserID        string            `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount        decimal.Decimal   `gorm:"type:numeric(20,4);not null" json:"amount"`
	TransactionID *string           `gorm:"uniqueIndex" json:"transaction_id,omitempty"`
	Status        TransactionStatus `gorm:"type:varchar(16);not null;default:PENDING;index" json:"status"`
	Method        string            `json:"method,omitempty"`
	ReferenceNo   string            `json:"reference_no,omitempty"`
	MobileNo      string            `json:"mobile_no,omitempty"`
	AccountNo     string            `json:"account_no,omitempty"`
	Description   string            `json:"description,omitempty"`
	ApprovedBy    string            `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time        `json:"approved_at,omitempty"`
	ReversedAt    *time.Time        `json:"reversed_at,omitempty"`
	Wallet        *Wallet           `gorm:"foreignKey:WalletID" json:"wallet,omitempty"`
}

// Withdrawal debits a wallet once approved.
type Withdrawal struct {
	Base
	WalletID        string            `gorm:"type:uuid;not null;index" json:"wallet_id"`
	UserID          string            `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount          decimal.Decimal   `gorm:"type:numeric(20,4);not null" json:"amount"`
	ReferenceNo     string            `gorm:"not null" json:"reference_no"`
	TransactionID   *string           `gorm:"uniqueIndex" json:"transaction_id,omitempty"`
	Status          TransactionStatus `gorm:"type:varchar(16);not null;default:PENDING;index" json:"status"`
	Method          string            `json:"method,omitempty"`
	BankName        string            `gorm:"not null" json:"bank_name"`
	BankAccountName string            `gorm:"not null" json:"bank_account_name"`
	BankBranch      string            `gorm:"not null" json:"bank_branch"`
	AccountNo       string            `json:"account_no,omitempty"`
	AccountName     string            `json:"account_name,omitempty"`
	Description     string            `json:"description,omitempty"`
	ApprovedByID    string            `json:"approved_by_id,omitempty"`
	ApprovedByName  string            `json:"approved_by_name,omitempty"`
	ApprovedAt      *time.Time        `json:"approved_at,omitempty"`
	RejectedByID    string            `json:"rejected_by_id,omitempty"`
	RejectedByName  string            `json:"rejected_by_name,omitempty"`
	RejectedAt      *time.Time        `json:"rejected_at,omitempty"`
	RejectReason    string            `json:"reject_reason,omitempty"`
	Wallet          *Wallet           `gorm:"foreignKey:WalletID" json:"wallet,omitempty"`
}
