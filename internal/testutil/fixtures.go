package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"fundledger/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates an investor with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email, models.RoleInvestor)
}

// CreateTestUserWithEmail creates a user with the given email and role. The
// email is stored normalised, matching what registration persists.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string, role models.UserRole) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: string(hash),
		Name:     "Test User",
		Role:     role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestWallet creates a USD wallet holding nav for the user.
func CreateTestWallet(t *testing.T, db *gorm.DB, userID, nav string) *models.Wallet {
	t.Helper()

	wallet := &models.Wallet{
		UserID:        userID,
		NetAssetValue: D(nav),
		Currency:      "USD",
	}
	if err := db.Create(wallet).Error; err != nil {
		t.Fatalf("failed to create test wallet: %v", err)
	}
	return wallet
}

// CreateTestAsset creates an asset with a unique symbol.
func CreateTestAsset(t *testing.T, db *gorm.DB, allocation, costPerShare, closePrice string) *models.Asset {
	t.Helper()

	asset := &models.Asset{
		Symbol:               fmt.Sprintf("TST%d", nextID()),
		Description:          "Test asset",
		Sector:               "Technology",
		AllocationPercentage: D(allocation),
		CostPerShare:         D(costPerShare),
		ClosePrice:           D(closePrice),
	}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}
	return asset
}

// CreateTestPortfolio creates a portfolio with a unique name.
func CreateTestPortfolio(t *testing.T, db *gorm.DB) *models.Portfolio {
	t.Helper()

	portfolio := &models.Portfolio{
		Name:                 fmt.Sprintf("Test Portfolio %d", nextID()),
		Description:          "Balanced growth",
		TimeHorizon:          "5 years",
		RiskTolerance:        "moderate",
		AllocationPercentage: decimal.NewFromInt(100),
	}
	if err := db.Create(portfolio).Error; err != nil {
		t.Fatalf("failed to create test portfolio: %v", err)
	}
	return portfolio
}

// CreateTestPortfolioAsset adds asset to portfolio with the given stock and cost price.
func CreateTestPortfolioAsset(t *testing.T, db *gorm.DB, portfolioID string, asset *models.Asset, stock, costPrice string) *models.PortfolioAsset {
	t.Helper()

	closeValue := asset.ClosePrice.Mul(D(stock))
	pa := &models.PortfolioAsset{
		PortfolioID: portfolioID,
		AssetID:     asset.ID,
		Stock:       D(stock),
		CostPrice:   D(costPrice),
		CloseValue:  closeValue,
		LossGain:    closeValue.Sub(D(costPrice)),
	}
	if err := db.Create(pa).Error; err != nil {
		t.Fatalf("failed to create test portfolio asset: %v", err)
	}
	return pa
}

// CreateTestUserPortfolio subscribes userID to portfolioID without any holdings.
func CreateTestUserPortfolio(t *testing.T, db *gorm.DB, userID, portfolioID string) *models.UserPortfolio {
	t.Helper()

	up := &models.UserPortfolio{
		UserID:      userID,
		PortfolioID: portfolioID,
	}
	if err := db.Create(up).Error; err != nil {
		t.Fatalf("failed to create test user portfolio: %v", err)
	}
	return up
}

// CreateTestUserPortfolioAsset creates a user holding with explicit derived values.
func CreateTestUserPortfolioAsset(t *testing.T, db *gorm.DB, userPortfolioID, portfolioAssetID, costPrice, stock, closeValue string) *models.UserPortfolioAsset {
	t.Helper()

	upa := &models.UserPortfolioAsset{
		UserPortfolioID:  userPortfolioID,
		PortfolioAssetID: portfolioAssetID,
		CostPrice:        D(costPrice),
		Stock:            D(stock),
		CloseValue:       D(closeValue),
		LossGain:         D(closeValue).Sub(D(costPrice)),
	}
	if err := db.Create(upa).Error; err != nil {
		t.Fatalf("failed to create test user portfolio asset: %v", err)
	}
	return upa
}

// CreateTestDeposit creates a deposit in the given status.
func CreateTestDeposit(t *testing.T, db *gorm.DB, wallet *models.Wallet, amount string, status models.TransactionStatus) *models.Deposit {
	t.Helper()

	deposit := &models.Deposit{
		WalletID:    wallet.ID,
		UserID:      wallet.UserID,
		Amount:      D(amount),
		Status:      status,
		Method:      "bank",
		ReferenceNo: fmt.Sprintf("DEP-%d", nextID()),
	}
	if err := db.Create(deposit).Error; err != nil {
		t.Fatalf("failed to create test deposit: %v", err)
	}
	return deposit
}

// CreateTestWithdrawal creates a withdrawal in the given status.
func CreateTestWithdrawal(t *testing.T, db *gorm.DB, wallet *models.Wallet, amount string, status models.TransactionStatus) *models.Withdrawal {
	t.Helper()

	withdrawal := &models.Withdrawal{
		WalletID:        wallet.ID,
		UserID:          wallet.UserID,
		Amount:          D(amount),
		Status:          status,
		ReferenceNo:     fmt.Sprintf("WD-%d", nextID()),
		BankName:        "First Bank",
		BankAccountName: "Test User",
		BankBranch:      "Main",
	}
	if err := db.Create(withdrawal).Error; err != nil {
		t.Fatalf("failed to create test withdrawal: %v", err)
	}
	return withdrawal
}

// ScenarioFixture is a user subscribed to a single-asset portfolio.
type ScenarioFixture struct {
	User           *models.User
	Wallet         *models.Wallet
	Asset          *models.Asset
	Portfolio      *models.Portfolio
	PortfolioAsset *models.PortfolioAsset
	UserPortfolio  *models.UserPortfolio
	Holding        *models.UserPortfolioAsset
}

// CreateValuedScenario builds NAV=1000, allocation 20%, costPerShare 10,
// closePrice 12, which values the holding at cost 200, stock 20, close 240.
func CreateValuedScenario(t *testing.T, db *gorm.DB) *ScenarioFixture {
	t.Helper()

	f := &ScenarioFixture{}
	f.User = CreateTestUser(t, db)
	f.Wallet = CreateTestWallet(t, db, f.User.ID, "1000")
	f.Asset = CreateTestAsset(t, db, "20", "10", "12")
	f.Portfolio = CreateTestPortfolio(t, db)
	f.PortfolioAsset = CreateTestPortfolioAsset(t, db, f.Portfolio.ID, f.Asset, "100", "1000")
	f.UserPortfolio = CreateTestUserPortfolio(t, db, f.User.ID, f.Portfolio.ID)
	f.Holding = CreateTestUserPortfolioAsset(t, db, f.UserPortfolio.ID, f.PortfolioAsset.ID, "200", "20", "240")
	if err := db.Model(f.UserPortfolio).Update("portfolio_value", D("240")).Error; err != nil {
		t.Fatalf("failed to set portfolio value: %v", err)
	}
	f.UserPortfolio.PortfolioValue = D("240")
	return f
}
