package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"fundledger/internal/models"
	"fundledger/internal/pagination"
	"fundledger/internal/testutil"
)

var admin = Actor{ID: "00000000-0000-7000-8000-000000000001", Name: "Ops Admin"}

func newDepositService(db *gorm.DB) DepositServicer {
	return NewDepositService(db, newTestEngine(db), testTimeout)
}

func TestComputeWalletDelta(t *testing.T) {
	d := testutil.D
	cases := []struct {
		name       string
		prevStatus models.TransactionStatus
		prevAmount string
		nextStatus models.TransactionStatus
		nextAmount string
		want       string
	}{
		{"pending_to_approved", models.StatusPending, "100", models.StatusApproved, "100", "100"},
		{"pending_to_approved_new_amount", models.StatusPending, "100", models.StatusApproved, "150", "150"},
		{"approved_to_rejected", models.StatusApproved, "100", models.StatusRejected, "100", "-100"},
		{"approved_amount_up", models.StatusApproved, "100", models.StatusApproved, "130", "30"},
		{"approved_amount_down", models.StatusApproved, "100", models.StatusApproved, "40", "-60"},
		{"pending_amount_change", models.StatusPending, "100", models.StatusPending, "500", "0"},
		{"pending_to_rejected", models.StatusPending, "100", models.StatusRejected, "100", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := computeWalletDelta(tc.prevStatus, d(tc.prevAmount), tc.nextStatus, d(tc.nextAmount))
			testutil.AssertDecimal(t, "delta", tc.want, got)
		})
	}
}

func TestCreateDeposit(t *testing.T) {
	t.Run("defaults_to_pending", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)

		dep, err := svc.CreateDeposit(context.Background(), DepositInput{
			WalletID: f.Wallet.ID, UserID: f.User.ID, Amount: testutil.D("500"),
		}, admin)
		testutil.AssertNoError(t, err)

		if dep.Status != models.StatusPending {
			t.Errorf("expected PENDING, got %s", dep.Status)
		}
		testutil.AssertDecimal(t, "nav", "1000", reloadWallet(t, db, f.Wallet.ID).NetAssetValue)
	})

	t.Run("approved_on_create_credits_wallet", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)

		dep, err := svc.CreateDeposit(context.Background(), DepositInput{
			WalletID: f.Wallet.ID, UserID: f.User.ID, Amount: testutil.D("500"), Status: models.StatusApproved,
		}, admin)
		testutil.AssertNoError(t, err)

		if dep.ApprovedAt == nil || dep.ApprovedBy != "Ops Admin" {
			t.Errorf("expected approval metadata, got %v / %q", dep.ApprovedAt, dep.ApprovedBy)
		}
		testutil.AssertDecimal(t, "nav", "1500", reloadWallet(t, db, f.Wallet.ID).NetAssetValue)
		testutil.AssertDecimal(t, "close_value", "360", reloadHolding(t, db, f.Holding.ID).CloseValue)
	})

	t.Run("zero_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)

		_, err := svc.CreateDeposit(context.Background(), DepositInput{
			WalletID: f.Wallet.ID, UserID: f.User.ID, Amount: testutil.D("0"),
		}, admin)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("wallet_not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateDeposit(context.Background(), DepositInput{
			WalletID: "0192d5f4-0000-7000-8000-000000000000", UserID: user.ID, Amount: testutil.D("10"),
		}, admin)
		testutil.AssertAppError(t, err, "WALLET_NOT_FOUND")
	})

	t.Run("wallet_of_other_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		other := testutil.CreateTestUser(t, db)

		_, err := svc.CreateDeposit(context.Background(), DepositInput{
			WalletID: f.Wallet.ID, UserID: other.ID, Amount: testutil.D("10"),
		}, admin)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("duplicate_transaction_id", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		txID := "BANK-001"

		_, err := svc.CreateDeposit(context.Background(), DepositInput{
			WalletID: f.Wallet.ID, UserID: f.User.ID, Amount: testutil.D("10"), TransactionID: &txID,
		}, admin)
		testutil.AssertNoError(t, err)

		_, err = svc.CreateDeposit(context.Background(), DepositInput{
			WalletID: f.Wallet.ID, UserID: f.User.ID, Amount: testutil.D("20"), TransactionID: &txID,
		}, admin)
		testutil.AssertAppError(t, err, "DUPLICATE_TRANSACTION_ID")
	})
}

func TestApproveDeposit(t *testing.T) {
	t.Run("credits_wallet_and_recomputes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)

		approved, err := svc.ApproveDeposit(context.Background(), dep.ID, admin)
		testutil.AssertNoError(t, err)

		if approved.Status != models.StatusApproved {
			t.Errorf("expected APPROVED, got %s", approved.Status)
		}
		testutil.AssertDecimal(t, "nav", "1500", reloadWallet(t, db, f.Wallet.ID).NetAssetValue)

		h := reloadHolding(t, db, f.Holding.ID)
		testutil.AssertDecimal(t, "cost_price", "300", h.CostPrice)
		testutil.AssertDecimal(t, "stock", "30", h.Stock)
		testutil.AssertDecimal(t, "close_value", "360", h.CloseValue)
		testutil.AssertDecimal(t, "loss_gain", "60", h.LossGain)
		testutil.AssertDecimal(t, "portfolio_value", "360", reloadUserPortfolio(t, db, f.UserPortfolio.ID).PortfolioValue)
	})

	t.Run("approve_recomputes_every_portfolio", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)

		asset := testutil.CreateTestAsset(t, db, "50", "5", "4")
		portfolio := testutil.CreateTestPortfolio(t, db)
		pa := testutil.CreateTestPortfolioAsset(t, db, portfolio.ID, asset, "200", "1000")
		second := testutil.CreateTestUserPortfolio(t, db, f.User.ID, portfolio.ID)
		holding := testutil.CreateTestUserPortfolioAsset(t, db, second.ID, pa.ID, "500", "100", "400")

		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)
		_, err := svc.ApproveDeposit(context.Background(), dep.ID, admin)
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "first_value", "360", reloadUserPortfolio(t, db, f.UserPortfolio.ID).PortfolioValue)
		testutil.AssertDecimal(t, "second_value", "600", reloadUserPortfolio(t, db, second.ID).PortfolioValue)

		h := reloadHolding(t, db, holding.ID)
		testutil.AssertDecimal(t, "second_cost", "750", h.CostPrice)
		testutil.AssertDecimal(t, "second_stock", "150", h.Stock)
		testutil.AssertDecimal(t, "first_close", "360", reloadHolding(t, db, f.Holding.ID).CloseValue)
	})

	t.Run("idempotent_when_approved", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)

		_, err := svc.ApproveDeposit(context.Background(), dep.ID, admin)
		testutil.AssertNoError(t, err)
		again, err := svc.ApproveDeposit(context.Background(), dep.ID, admin)
		testutil.AssertNoError(t, err)

		if again.Status != models.StatusApproved {
			t.Errorf("expected APPROVED, got %s", again.Status)
		}
		testutil.AssertDecimal(t, "nav", "1500", reloadWallet(t, db, f.Wallet.ID).NetAssetValue)
		testutil.AssertDecimal(t, "close_value", "360", reloadHolding(t, db, f.Holding.ID).CloseValue)
	})

	t.Run("rejected_conflict", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusRejected)

		_, err := svc.ApproveDeposit(context.Background(), dep.ID, admin)
		testutil.AssertAppError(t, err, "INVALID_STATUS_TRANSITION")
		testutil.AssertDecimal(t, "nav", "1000", reloadWallet(t, db, f.Wallet.ID).NetAssetValue)
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)

		_, err := svc.ApproveDeposit(context.Background(), "0192d5f4-0000-7000-8000-000000000000", admin)
		testutil.AssertAppError(t, err, "DEPOSIT_NOT_FOUND")
	})

	t.Run("rolls_back_on_recompute_failure", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)
		failTableUpdates(t, db, "user_portfolios")

		_, err := svc.ApproveDeposit(context.Background(), dep.ID, admin)
		testutil.AssertAppError(t, err, "INTERNAL_ERROR")

		testutil.AssertDecimal(t, "nav", "1000", reloadWallet(t, db, f.Wallet.ID).NetAssetValue)
		h := reloadHolding(t, db, f.Holding.ID)
		testutil.AssertDecimal(t, "cost_price", "200", h.CostPrice)
		testutil.AssertDecimal(t, "close_value", "240", h.CloseValue)
		testutil.AssertDecimal(t, "portfolio_value", "240", reloadUserPortfolio(t, db, f.UserPortfolio.ID).PortfolioValue)

		var current models.Deposit
		db.Where("id = ?", dep.ID).First(&current)
		if current.Status != models.StatusPending {
			t.Errorf("expected deposit to stay PENDING, got %s", current.Status)
		}
	})

	t.Run("expired_deadline", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)

		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		_, err := svc.ApproveDeposit(ctx, dep.ID, admin)
		testutil.AssertAppError(t, err, "OPERATION_TIMEOUT")
		testutil.AssertDecimal(t, "nav", "1000", reloadWallet(t, db, f.Wallet.ID).NetAssetValue)
	})
}

func TestRejectDeposit(t *testing.T) {
	t.Run("pending_to_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)

		rejected, err := svc.RejectDeposit(context.Background(), dep.ID)
		testutil.AssertNoError(t, err)
		if rejected.Status != models.StatusRejected {
			t.Errorf("expected REJECTED, got %s", rejected.Status)
		}

		_, err = svc.RejectDeposit(context.Background(), dep.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "nav", "1000", reloadWallet(t, db, f.Wallet.ID).NetAssetValue)
	})

	t.Run("approved_conflict", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusApproved)

		_, err := svc.RejectDeposit(context.Background(), dep.ID)
		testutil.AssertAppError(t, err, "INVALID_STATUS_TRANSITION")
	})
}

func TestReverseDeposit(t *testing.T) {
	t.Run("approved_debits_and_recomputes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)

		_, err := svc.ApproveDeposit(context.Background(), dep.ID, admin)
		testutil.AssertNoError(t, err)

		reversed, err := svc.ReverseDeposit(context.Background(), dep.ID)
		testutil.AssertNoError(t, err)

		if reversed.Status != models.StatusRejected || reversed.ReversedAt == nil {
			t.Errorf("expected REJECTED with reversed_at, got %s / %v", reversed.Status, reversed.ReversedAt)
		}
		testutil.AssertDecimal(t, "nav", "1000", reloadWallet(t, db, f.Wallet.ID).NetAssetValue)
		h := reloadHolding(t, db, f.Holding.ID)
		testutil.AssertDecimal(t, "cost_price", "200", h.CostPrice)
		testutil.AssertDecimal(t, "close_value", "240", h.CloseValue)
	})

	t.Run("pending_has_no_wallet_effect", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)

		reversed, err := svc.ReverseDeposit(context.Background(), dep.ID)
		testutil.AssertNoError(t, err)
		if reversed.Status != models.StatusRejected {
			t.Errorf("expected REJECTED, got %s", reversed.Status)
		}
		testutil.AssertDecimal(t, "nav", "1000", reloadWallet(t, db, f.Wallet.ID).NetAssetValue)
	})

	t.Run("insufficient_balance_keeps_approval", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "5000", models.StatusApproved)

		_, err := svc.ReverseDeposit(context.Background(), dep.ID)
		testutil.AssertAppError(t, err, "INSUFFICIENT_BALANCE")

		var current models.Deposit
		db.Where("id = ?", dep.ID).First(&current)
		if current.Status != models.StatusApproved {
			t.Errorf("expected deposit to stay APPROVED, got %s", current.Status)
		}
	})
}

func TestUpdateDeposit(t *testing.T) {
	t.Run("approved_amount_change_moves_wallet", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)
		_, err := svc.ApproveDeposit(context.Background(), dep.ID, admin)
		testutil.AssertNoError(t, err)

		amount := testutil.D("300")
		updated, err := svc.UpdateDeposit(context.Background(), dep.ID, DepositUpdate{Amount: &amount}, admin)
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "amount", "300", updated.Amount)
		testutil.AssertDecimal(t, "nav", "1300", reloadWallet(t, db, f.Wallet.ID).NetAssetValue)
		testutil.AssertDecimal(t, "cost_price", "260", reloadHolding(t, db, f.Holding.ID).CostPrice)
	})

	t.Run("pending_to_approved_credits", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)

		status := models.StatusApproved
		_, err := svc.UpdateDeposit(context.Background(), dep.ID, DepositUpdate{Status: &status}, admin)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "nav", "1500", reloadWallet(t, db, f.Wallet.ID).NetAssetValue)
	})

	t.Run("pending_to_approved_records_approver", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)

		status := models.StatusApproved
		updated, err := svc.UpdateDeposit(context.Background(), dep.ID, DepositUpdate{Status: &status}, admin)
		testutil.AssertNoError(t, err)
		if updated.ApprovedAt == nil || updated.ApprovedBy != "Ops Admin" {
			t.Errorf("expected approval metadata, got %v / %q", updated.ApprovedAt, updated.ApprovedBy)
		}

		var stored models.Deposit
		testutil.AssertNoError(t, db.First(&stored, "id = ?", dep.ID).Error)
		if stored.ApprovedBy != "Ops Admin" {
			t.Errorf("expected stored approver %q, got %q", "Ops Admin", stored.ApprovedBy)
		}
	})

	t.Run("approved_status_change_conflict", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusApproved)

		status := models.StatusPending
		_, err := svc.UpdateDeposit(context.Background(), dep.ID, DepositUpdate{Status: &status}, admin)
		testutil.AssertAppError(t, err, "INVALID_STATUS_TRANSITION")
	})

	t.Run("approved_relink_forbidden", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		other := testutil.CreateTestUser(t, db)
		otherWallet := testutil.CreateTestWallet(t, db, other.ID, "0")
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusApproved)

		_, err := svc.UpdateDeposit(context.Background(), dep.ID, DepositUpdate{WalletID: &otherWallet.ID, UserID: &other.ID}, admin)
		testutil.AssertAppError(t, err, "IMMUTABLE_FIELD")
	})

	t.Run("pending_relink_allowed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		other := testutil.CreateTestUser(t, db)
		otherWallet := testutil.CreateTestWallet(t, db, other.ID, "0")
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)

		updated, err := svc.UpdateDeposit(context.Background(), dep.ID, DepositUpdate{WalletID: &otherWallet.ID, UserID: &other.ID}, admin)
		testutil.AssertNoError(t, err)
		if updated.WalletID != otherWallet.ID {
			t.Errorf("expected wallet %s, got %s", otherWallet.ID, updated.WalletID)
		}
	})
}

func TestDeleteDeposit(t *testing.T) {
	t.Run("approved_conflict", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusApproved)

		err := svc.DeleteDeposit(context.Background(), dep.ID)
		testutil.AssertAppError(t, err, "INVALID_STATUS_TRANSITION")
	})

	t.Run("pending_deleted", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)
		f := testutil.CreateValuedScenario(t, db)
		dep := testutil.CreateTestDeposit(t, db, f.Wallet, "500", models.StatusPending)

		testutil.AssertNoError(t, svc.DeleteDeposit(context.Background(), dep.ID))
		_, err := svc.GetDeposit(dep.ID)
		testutil.AssertAppError(t, err, "DEPOSIT_NOT_FOUND")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newDepositService(db)

		err := svc.DeleteDeposit(context.Background(), "0192d5f4-0000-7000-8000-000000000000")
		testutil.AssertAppError(t, err, "DEPOSIT_NOT_FOUND")
	})
}

func TestListDeposits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newDepositService(db)
	f := testutil.CreateValuedScenario(t, db)
	testutil.CreateTestDeposit(t, db, f.Wallet, "300", models.StatusPending)
	testutil.CreateTestDeposit(t, db, f.Wallet, "100", models.StatusPending)
	testutil.CreateTestDeposit(t, db, f.Wallet, "200", models.StatusRejected)

	t.Run("filter_by_status_sorted_by_amount", func(t *testing.T) {
		result, err := svc.ListDeposits(
			SettlementFilter{Status: models.StatusPending},
			pagination.SortRequest{SortBy: "amount", SortOrder: "asc"},
			pagination.PageRequest{},
		)
		testutil.AssertNoError(t, err)

		if result.TotalItems != 2 {
			t.Fatalf("expected 2 pending deposits, got %d", result.TotalItems)
		}
		testutil.AssertDecimal(t, "first_amount", "100", result.Data[0].Amount)
		testutil.AssertDecimal(t, "second_amount", "300", result.Data[1].Amount)
	})

	t.Run("filter_by_user", func(t *testing.T) {
		result, err := svc.ListDeposits(SettlementFilter{UserID: f.User.ID}, pagination.SortRequest{}, pagination.PageRequest{PageSize: 2})
		testutil.AssertNoError(t, err)

		if result.TotalItems != 3 || len(result.Data) != 2 || result.TotalPages != 2 {
			t.Errorf("unexpected page: total=%d len=%d pages=%d", result.TotalItems, len(result.Data), result.TotalPages)
		}
	})
}
