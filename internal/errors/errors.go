// Package errors provides the application error taxonomy for fundledger.
// Every service-layer failure is an *AppError so handlers can map it to a
// status code without leaking internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Retryable  bool   `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches AppErrors by code so wrapped copies compare equal to their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Retryable:  sentinel.Retryable,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Retryable:  sentinel.Retryable,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}

	ErrInvalidAPIKey         = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
	ErrPipelineNotConfigured = &AppError{Code: "PIPELINE_NOT_CONFIGURED", Message: "Pipeline endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Transient errors. The store guarantees nothing was persisted; callers may retry.
var (
	ErrOperationTimeout = &AppError{Code: "OPERATION_TIMEOUT", Message: "Operation took too long. Try again.", StatusCode: http.StatusServiceUnavailable, Retryable: true}
	ErrTransientStore   = &AppError{Code: "TRANSIENT_STORE_ERROR", Message: "Temporary storage conflict. Try again.", StatusCode: http.StatusServiceUnavailable, Retryable: true}
)

// User & wallet errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrWalletNotFound = &AppError{Code: "WALLET_NOT_FOUND", Message: "Wallet not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Catalog errors.
var (
	ErrAssetNotFound           = &AppError{Code: "ASSET_NOT_FOUND", Message: "Asset not found", StatusCode: http.StatusNotFound}
	ErrDuplicateSymbol         = &AppError{Code: "DUPLICATE_SYMBOL", Message: "Asset symbol already exists", StatusCode: http.StatusConflict}
	ErrAssetInUse              = &AppError{Code: "ASSET_IN_USE", Message: "Asset is referenced by one or more portfolios", StatusCode: http.StatusConflict}
	ErrPortfolioNotFound       = &AppError{Code: "PORTFOLIO_NOT_FOUND", Message: "Portfolio not found", StatusCode: http.StatusNotFound}
	ErrDuplicatePortfolioName  = &AppError{Code: "DUPLICATE_PORTFOLIO_NAME", Message: "A portfolio with this name already exists", StatusCode: http.StatusConflict}
	ErrPortfolioInUse          = &AppError{Code: "PORTFOLIO_IN_USE", Message: "Portfolio has active subscriptions", StatusCode: http.StatusConflict}
	ErrPortfolioAssetNotFound  = &AppError{Code: "PORTFOLIO_ASSET_NOT_FOUND", Message: "Portfolio asset not found", StatusCode: http.StatusNotFound}
	ErrDuplicatePortfolioAsset = &AppError{Code: "DUPLICATE_PORTFOLIO_ASSET", Message: "Asset already exists in this portfolio", StatusCode: http.StatusConflict}
	ErrPortfolioAssetInUse     = &AppError{Code: "PORTFOLIO_ASSET_IN_USE", Message: "Portfolio asset is held by one or more user portfolios", StatusCode: http.StatusConflict}
)

// Subscription errors.
var (
	ErrUserPortfolioNotFound = &AppError{Code: "USER_PORTFOLIO_NOT_FOUND", Message: "User portfolio not found", StatusCode: http.StatusNotFound}
	ErrDuplicateSubscription = &AppError{Code: "DUPLICATE_SUBSCRIPTION", Message: "User already has this portfolio", StatusCode: http.StatusConflict}
)

// Settlement errors.
var (
	ErrDepositNotFound         = &AppError{Code: "DEPOSIT_NOT_FOUND", Message: "Deposit not found", StatusCode: http.StatusNotFound}
	ErrWithdrawalNotFound      = &AppError{Code: "WITHDRAWAL_NOT_FOUND", Message: "Withdrawal not found", StatusCode: http.StatusNotFound}
	ErrInvalidStatusTransition = &AppError{Code: "INVALID_STATUS_TRANSITION", Message: "Invalid status transition", StatusCode: http.StatusConflict}
	ErrInsufficientBalance     = &AppError{Code: "INSUFFICIENT_BALANCE", Message: "Insufficient wallet balance", StatusCode: http.StatusConflict}
	ErrDuplicateTransactionID  = &AppError{Code: "DUPLICATE_TRANSACTION_ID", Message: "Transaction ID already exists", StatusCode: http.StatusConflict}
	ErrImmutableField          = &AppError{Code: "IMMUTABLE_FIELD", Message: "Field cannot be changed in the current state", StatusCode: http.StatusConflict}
)

// Report errors.
var (
	ErrReportNotFound = &AppError{Code: "REPORT_NOT_FOUND", Message: "Report not found", StatusCode: http.StatusNotFound}
)
