package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fundledger/internal/models"
	"fundledger/internal/pagination"
)

// Actor identifies the operator performing a settlement transition.
type Actor struct {
	ID   string
	Name string
}

// UserServicer defines the contract for user and wallet lookups.
type UserServicer interface {
	CreateUser(email, password, name string, role models.UserRole, currency string) (*models.User, error)
	Authenticate(email, password string) (*models.User, error)
	GetUser(id string) (*models.User, error)
	GetWallet(id string) (*models.Wallet, error)
	GetWalletByUserID(userID string) (*models.Wallet, error)
}

// RecomputeResult summarises one recomputed user portfolio.
type RecomputeResult struct {
	UserPortfolioID string          `json:"user_portfolio_id"`
	Count           int             `json:"count"`
	TotalCostPrice  decimal.Decimal `json:"total_cost_price"`
	PortfolioValue  decimal.Decimal `json:"portfolio_value"`
}

// ValuationEngine rewrites the derived valuation of user holdings from the
// owning wallet's NAV.
type ValuationEngine interface {
	RecomputeForWallet(tx *gorm.DB, userID string, nav decimal.Decimal) ([]RecomputeResult, error)
	RecomputeUserPortfolio(ctx context.Context, userPortfolioID string) (*RecomputeResult, error)
}

// SettlementFilter holds optional filter parameters for listing deposits and withdrawals.
type SettlementFilter struct {
	Query    string
	UserID   string
	WalletID string
	Status   models.TransactionStatus
}

// DepositInput holds the fields of a new deposit.
type DepositInput struct {
	WalletID      string
	UserID        string
	Amount        decimal.Decimal
	TransactionID *string
	Status        models.TransactionStatus
	Method        string
	ReferenceNo   string
	MobileNo      string
	AccountNo     string
	Description   string
}

// DepositUpdate holds a partial deposit update. Nil fields are left unchanged.
type DepositUpdate struct {
	WalletID      *string
	UserID        *string
	Amount        *decimal.Decimal
	TransactionID *string
	Status        *models.TransactionStatus
	Method        *string
	ReferenceNo   *string
	MobileNo      *string
	AccountNo     *string
	Description   *string
}

// DepositServicer defines the deposit settlement state machine.
type DepositServicer interface {
	CreateDeposit(ctx context.Context, in DepositInput, actor Actor) (*models.Deposit, error)
	GetDeposit(id string) (*models.Deposit, error)
	ListDeposits(filter SettlementFilter, sort pagination.SortRequest, page pagination.PageRequest) (*pagination.PageResponse[models.Deposit], error)
	UpdateDeposit(ctx context.Context, id string, upd DepositUpdate, actor Actor) (*models.Deposit, error)
	ApproveDeposit(ctx context.Context, id string, actor Actor) (*models.Deposit, error)
	RejectDeposit(ctx context.Context, id string) (*models.Deposit, error)
	ReverseDeposit(ctx context.Context, id string) (*models.Deposit, error)
	DeleteDeposit(ctx context.Context, id string) error
}

// WithdrawalInput holds the fields of a new withdrawal.
type WithdrawalInput struct {
	WalletID        string
	UserID          string
	Amount          decimal.Decimal
	ReferenceNo     string
	TransactionID   *string
	Status          models.TransactionStatus
	Method          string
	BankName        string
	BankAccountName string
	BankBranch      string
	AccountNo       string
	AccountName     string
	Description     string
}

// WithdrawalUpdate holds a partial update of a pending withdrawal.
type WithdrawalUpdate struct {
	Amount          *decimal.Decimal
	ReferenceNo     *string
	Method          *string
	BankName        *string
	BankAccountName *string
	BankBranch      *string
	AccountNo       *string
	AccountName     *string
	Description     *string
	Status          *models.TransactionStatus
}

// WithdrawalServicer defines the withdrawal settlement state machine.
type WithdrawalServicer interface {
	CreateWithdrawal(ctx context.Context, in WithdrawalInput) (*models.Withdrawal, error)
	GetWithdrawal(id string) (*models.Withdrawal, error)
	ListWithdrawals(filter SettlementFilter, sort pagination.SortRequest, page pagination.PageRequest) (*pagination.PageResponse[models.Withdrawal], error)
	UpdateWithdrawal(ctx context.Context, id string, upd WithdrawalUpdate) (*models.Withdrawal, error)
	ApproveWithdrawal(ctx context.Context, id, transactionID string, actor Actor) (*models.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, id string, actor Actor, reason string) (*models.Withdrawal, error)
	DeleteWithdrawal(ctx context.Context, id string) error
}

// AssetInput holds the fields of a new catalog asset.
type AssetInput struct {
	Symbol               string
	Description          string
	Sector               string
	AssetClass           *models.AssetClass
	AllocationPercentage decimal.Decimal
	CostPerShare         decimal.Decimal
	ClosePrice           decimal.Decimal
}

// AssetUpdate holds a partial asset update. Nil fields are left unchanged.
type AssetUpdate struct {
	Symbol               *string
	Description          *string
	Sector               *string
	AssetClass           *models.AssetClass
	AllocationPercentage *decimal.Decimal
	CostPerShare         *decimal.Decimal
	ClosePrice           *decimal.Decimal
}

// AssetFilter holds optional filter parameters for listing assets.
type AssetFilter struct {
	Query  string
	Sector string
}

// CascadeResult counts the rows rewritten by an asset update.
type CascadeResult struct {
	PortfolioAssets     int `json:"portfolio_assets"`
	UserPortfolioAssets int `json:"user_portfolio_assets"`
	UserPortfolios      int `json:"user_portfolios"`
}

// AssetServicer defines the asset catalog and its mutation cascade.
type AssetServicer interface {
	CreateAsset(in AssetInput) (*models.Asset, error)
	GetAsset(id string) (*models.Asset, error)
	GetAssetBySymbol(symbol string) (*models.Asset, error)
	ListAssets(filter AssetFilter, sort pagination.SortRequest, page pagination.PageRequest) (*pagination.PageResponse[models.Asset], error)
	UpdateAsset(ctx context.Context, id string, upd AssetUpdate) (*models.Asset, *CascadeResult, error)
	DeleteAsset(id string) error
}

// PortfolioInput holds the fields of a new portfolio. A nil allocation defaults to 100.
type PortfolioInput struct {
	Name                 string
	Description          string
	TimeHorizon          string
	RiskTolerance        string
	AllocationPercentage *decimal.Decimal
}

// PortfolioUpdate holds a partial portfolio update.
type PortfolioUpdate struct {
	Name                 *string
	Description          *string
	TimeHorizon          *string
	RiskTolerance        *string
	AllocationPercentage *decimal.Decimal
}

// PortfolioServicer defines the portfolio template catalog.
type PortfolioServicer interface {
	CreatePortfolio(in PortfolioInput) (*models.Portfolio, error)
	GetPortfolio(id string) (*models.Portfolio, error)
	ListPortfolios(search string, page pagination.PageRequest) (*pagination.PageResponse[models.Portfolio], error)
	UpdatePortfolio(id string, upd PortfolioUpdate) (*models.Portfolio, error)
	DeletePortfolio(id string) error
	AddPortfolioAsset(portfolioID, assetID string, stock, costPrice decimal.Decimal) (*models.PortfolioAsset, error)
	ListPortfolioAssets(portfolioID string) ([]models.PortfolioAsset, error)
	GetPortfolioAsset(id string) (*models.PortfolioAsset, error)
	UpdatePortfolioAsset(id string, stock, costPrice *decimal.Decimal) (*models.PortfolioAsset, error)
	RemovePortfolioAsset(id string) error
}

// UserPortfolioFilter holds optional filter parameters for listing subscriptions.
type UserPortfolioFilter struct {
	UserID      string
	PortfolioID string
}

// UserPortfolioUpdate describes a subscription change. Switching portfolio
// or ResetAssets rebuilds the holdings; Recompute re-values them.
type UserPortfolioUpdate struct {
	PortfolioID *string
	ResetAssets bool
	Recompute   bool
}

// UserPortfolioServicer defines user subscriptions to portfolios.
type UserPortfolioServicer interface {
	Subscribe(ctx context.Context, userID, portfolioID string) (*models.UserPortfolio, error)
	GetUserPortfolio(id string) (*models.UserPortfolio, error)
	ListUserPortfolios(filter UserPortfolioFilter, page pagination.PageRequest) (*pagination.PageResponse[models.UserPortfolio], error)
	UpdateUserPortfolio(ctx context.Context, id string, upd UserPortfolioUpdate) (*models.UserPortfolio, error)
	Recompute(ctx context.Context, id string) (*RecomputeResult, error)
	Unsubscribe(ctx context.Context, id string) error
}

// BatchSummary is the outcome of generating reports for every user portfolio.
// Skipped portfolios are counted in Success.
type BatchSummary struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Total   int      `json:"total"`
	Errors  []string `json:"errors"`
}

// ReportQuery selects a window of reports. Start/End override Period.
type ReportQuery struct {
	Period string
	Start  *time.Time
	End    *time.Time
}

// DayChange identifies the report with the highest or lowest loss/gain in a window.
type DayChange struct {
	Date       time.Time       `json:"date"`
	LossGain   decimal.Decimal `json:"loss_gain"`
	Percentage decimal.Decimal `json:"percentage"`
}

// ReportStatistics summarises performance over a reporting window.
type ReportStatistics struct {
	UserPortfolioID  string          `json:"user_portfolio_id"`
	Period           string          `json:"period"`
	Currency         string          `json:"currency"`
	ReportCount      int             `json:"report_count"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	StartValue       decimal.Decimal `json:"start_value"`
	TotalGrowth      decimal.Decimal `json:"total_growth"`
	GrowthPercentage decimal.Decimal `json:"growth_percentage"`
	AvgDailyGain     decimal.Decimal `json:"avg_daily_gain"`
	BestDay          *DayChange      `json:"best_day,omitempty"`
	WorstDay         *DayChange      `json:"worst_day,omitempty"`
	Display          StatsDisplay    `json:"display"`
}

// StatsDisplay carries currency-formatted strings for clients.
type StatsDisplay struct {
	CurrentValue string `json:"current_value"`
	StartValue   string `json:"start_value"`
	TotalGrowth  string `json:"total_growth"`
	AvgDailyGain string `json:"avg_daily_gain"`
}

// ReportServicer defines the performance report generator.
type ReportServicer interface {
	GenerateReport(ctx context.Context, userPortfolioID string, date time.Time) (*models.PerformanceReport, bool, error)
	GenerateAllReports(ctx context.Context, date time.Time) (*BatchSummary, error)
	GetLatestReport(userPortfolioID string) (*models.PerformanceReport, error)
	ListReports(userPortfolioID string, q ReportQuery) ([]models.PerformanceReport, error)
	GetReport(id string) (*models.PerformanceReport, error)
	GetStatistics(userPortfolioID, period string) (*ReportStatistics, error)
	CleanupReports(ctx context.Context, daysToKeep int) (int64, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(actorID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
