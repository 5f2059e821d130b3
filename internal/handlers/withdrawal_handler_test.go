package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/models"
	"fundledger/internal/pagination"
	"fundledger/internal/services"
)

const withdrawalID = "0190a0c4-0000-7000-8000-0000000f0001"

type mockWithdrawalService struct {
	createWithdrawalFn  func(ctx context.Context, in services.WithdrawalInput) (*models.Withdrawal, error)
	getWithdrawalFn     func(id string) (*models.Withdrawal, error)
	listWithdrawalsFn   func(filter services.SettlementFilter, sort pagination.SortRequest, page pagination.PageRequest) (*pagination.PageResponse[models.Withdrawal], error)
	updateWithdrawalFn  func(ctx context.Context, id string, upd services.WithdrawalUpdate) (*models.Withdrawal, error)
	approveWithdrawalFn func(ctx context.Context, id, transactionID string, actor services.Actor) (*models.Withdrawal, error)
	rejectWithdrawalFn  func(ctx context.Context, id string, actor services.Actor, reason string) (*models.Withdrawal, error)
	deleteWithdrawalFn  func(ctx context.Context, id string) error
}

var _ services.WithdrawalServicer = (*mockWithdrawalService)(nil)

func (m *mockWithdrawalService) CreateWithdrawal(ctx context.Context, in services.WithdrawalInput) (*models.Withdrawal, error) {
	if m.createWithdrawalFn != nil {
		return m.createWithdrawalFn(ctx, in)
	}
	return &models.Withdrawal{}, nil
}

func (m *mockWithdrawalService) GetWithdrawal(id string) (*models.Withdrawal, error) {
	if m.getWithdrawalFn != nil {
		return m.getWithdrawalFn(id)
	}
	w := &models.Withdrawal{UserID: investorID}
	w.ID = id
	return w, nil
}

func (m *mockWithdrawalService) ListWithdrawals(filter services.SettlementFilter, sort pagination.SortRequest, page pagination.PageRequest) (*pagination.PageResponse[models.Withdrawal], error) {
	if m.listWithdrawalsFn != nil {
		return m.listWithdrawalsFn(filter, sort, page)
	}
	result := pagination.NewPageResponse[models.Withdrawal](nil, 1, 20, 0)
	return &result, nil
}

func (m *mockWithdrawalService) UpdateWithdrawal(ctx context.Context, id string, upd services.WithdrawalUpdate) (*models.Withdrawal, error) {
	if m.updateWithdrawalFn != nil {
		return m.updateWithdrawalFn(ctx, id, upd)
	}
	return &models.Withdrawal{}, nil
}

func (m *mockWithdrawalService) ApproveWithdrawal(ctx context.Context, id, transactionID string, actor services.Actor) (*models.Withdrawal, error) {
	if m.approveWithdrawalFn != nil {
		return m.approveWithdrawalFn(ctx, id, transactionID, actor)
	}
	return &models.Withdrawal{Status: models.StatusApproved}, nil
}

func (m *mockWithdrawalService) RejectWithdrawal(ctx context.Context, id string, actor services.Actor, reason string) (*models.Withdrawal, error) {
	if m.rejectWithdrawalFn != nil {
		return m.rejectWithdrawalFn(ctx, id, actor, reason)
	}
	return &models.Withdrawal{Status: models.StatusRejected}, nil
}

func (m *mockWithdrawalService) DeleteWithdrawal(ctx context.Context, id string) error {
	if m.deleteWithdrawalFn != nil {
		return m.deleteWithdrawalFn(ctx, id)
	}
	return nil
}

func setupWithdrawalRouter(svc services.WithdrawalServicer, uid string, role models.UserRole) *gin.Engine {
	h := NewWithdrawalHandler(svc, &mockAuditService{})
	r := gin.New()
	r.Use(injectUser(uid, role))
	r.POST("/withdrawals", h.CreateWithdrawal)
	r.GET("/withdrawals", h.ListWithdrawals)
	r.GET("/withdrawals/:id", h.GetWithdrawal)
	r.PATCH("/withdrawals/:id", h.UpdateWithdrawal)
	r.POST("/withdrawals/:id/approve", h.ApproveWithdrawal)
	r.POST("/withdrawals/:id/reject", h.RejectWithdrawal)
	r.DELETE("/withdrawals/:id", h.DeleteWithdrawal)
	return r
}

func TestWithdrawalHandler_CreateWithdrawal(t *testing.T) {
	t.Run("returns_201_on_success", func(t *testing.T) {
		var got services.WithdrawalInput
		svc := &mockWithdrawalService{
			createWithdrawalFn: func(_ context.Context, in services.WithdrawalInput) (*models.Withdrawal, error) {
				got = in
				return &models.Withdrawal{Amount: in.Amount, Status: models.StatusPending}, nil
			},
		}
		body := `{"wallet_id":"` + walletID + `","user_id":"` + investorID + `","amount":"300","reference_no":"W-1",` +
			`"bank_name":"First Bank","bank_account_name":"Jane Doe","bank_branch":"Main"}`
		rec := doRequest(setupWithdrawalRouter(svc, adminID, models.RoleAdmin), http.MethodPost, "/withdrawals", body)
		assertStatus(t, rec, http.StatusCreated)
		if !got.Amount.Equal(decimal.NewFromInt(300)) || got.BankName != "First Bank" {
			t.Errorf("unexpected input: %+v", got)
		}
	})

	t.Run("returns_400_without_bank_details", func(t *testing.T) {
		body := `{"wallet_id":"` + walletID + `","user_id":"` + investorID + `","amount":"300","reference_no":"W-1"}`
		rec := doRequest(setupWithdrawalRouter(&mockWithdrawalService{}, adminID, models.RoleAdmin), http.MethodPost, "/withdrawals", body)
		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestWithdrawalHandler_ApproveWithdrawal(t *testing.T) {
	t.Run("passes_transaction_id_and_actor", func(t *testing.T) {
		var gotRef string
		var gotActor services.Actor
		svc := &mockWithdrawalService{
			approveWithdrawalFn: func(_ context.Context, _, ref string, actor services.Actor) (*models.Withdrawal, error) {
				gotRef, gotActor = ref, actor
				return &models.Withdrawal{Status: models.StatusApproved}, nil
			},
		}
		rec := doRequest(setupWithdrawalRouter(svc, adminID, models.RoleAdmin), http.MethodPost,
			"/withdrawals/"+withdrawalID+"/approve", `{"transaction_id":"TX-9"}`)
		assertStatus(t, rec, http.StatusOK)
		if gotRef != "TX-9" || gotActor.ID != adminID {
			t.Errorf("unexpected call: ref=%s actor=%+v", gotRef, gotActor)
		}
	})

	t.Run("returns_400_without_transaction_id", func(t *testing.T) {
		called := false
		svc := &mockWithdrawalService{
			approveWithdrawalFn: func(context.Context, string, string, services.Actor) (*models.Withdrawal, error) {
				called = true
				return &models.Withdrawal{}, nil
			},
		}
		rec := doRequest(setupWithdrawalRouter(svc, adminID, models.RoleAdmin), http.MethodPost,
			"/withdrawals/"+withdrawalID+"/approve", "")
		assertStatus(t, rec, http.StatusBadRequest)
		if called {
			t.Error("service must not be called without a transaction id")
		}
	})

	t.Run("returns_409_on_insufficient_balance", func(t *testing.T) {
		svc := &mockWithdrawalService{
			approveWithdrawalFn: func(context.Context, string, string, services.Actor) (*models.Withdrawal, error) {
				return nil, apperrors.ErrInsufficientBalance
			},
		}
		rec := doRequest(setupWithdrawalRouter(svc, adminID, models.RoleAdmin), http.MethodPost,
			"/withdrawals/"+withdrawalID+"/approve", `{"transaction_id":"TX-9"}`)
		assertStatus(t, rec, http.StatusConflict)
		assertErrorCode(t, parseJSON(t, rec), "INSUFFICIENT_BALANCE")
	})
}

func TestWithdrawalHandler_RejectWithdrawal(t *testing.T) {
	t.Run("passes_reason", func(t *testing.T) {
		var gotReason string
		svc := &mockWithdrawalService{
			rejectWithdrawalFn: func(_ context.Context, _ string, _ services.Actor, reason string) (*models.Withdrawal, error) {
				gotReason = reason
				return &models.Withdrawal{Status: models.StatusRejected, RejectReason: reason}, nil
			},
		}
		rec := doRequest(setupWithdrawalRouter(svc, adminID, models.RoleAdmin), http.MethodPost,
			"/withdrawals/"+withdrawalID+"/reject", `{"reason":"bank details mismatch"}`)
		assertStatus(t, rec, http.StatusOK)
		if gotReason != "bank details mismatch" {
			t.Errorf("unexpected reason %q", gotReason)
		}
	})

	t.Run("accepts_empty_body", func(t *testing.T) {
		rec := doRequest(setupWithdrawalRouter(&mockWithdrawalService{}, adminID, models.RoleAdmin), http.MethodPost,
			"/withdrawals/"+withdrawalID+"/reject", "")
		assertStatus(t, rec, http.StatusOK)
	})

	t.Run("returns_409_when_not_pending", func(t *testing.T) {
		svc := &mockWithdrawalService{
			rejectWithdrawalFn: func(context.Context, string, services.Actor, string) (*models.Withdrawal, error) {
				return nil, apperrors.ErrInvalidStatusTransition
			},
		}
		rec := doRequest(setupWithdrawalRouter(svc, adminID, models.RoleAdmin), http.MethodPost,
			"/withdrawals/"+withdrawalID+"/reject", "")
		assertStatus(t, rec, http.StatusConflict)
	})
}

func TestWithdrawalHandler_GetAndList(t *testing.T) {
	t.Run("other_investor_gets_404", func(t *testing.T) {
		rec := doRequest(setupWithdrawalRouter(&mockWithdrawalService{}, otherID, models.RoleInvestor), http.MethodGet,
			"/withdrawals/"+withdrawalID, "")
		assertStatus(t, rec, http.StatusNotFound)
		assertErrorCode(t, parseJSON(t, rec), "WITHDRAWAL_NOT_FOUND")
	})

	t.Run("list_passes_sort", func(t *testing.T) {
		var gotSort pagination.SortRequest
		svc := &mockWithdrawalService{
			listWithdrawalsFn: func(_ services.SettlementFilter, sort pagination.SortRequest, _ pagination.PageRequest) (*pagination.PageResponse[models.Withdrawal], error) {
				gotSort = sort
				result := pagination.NewPageResponse[models.Withdrawal](nil, 1, 20, 0)
				return &result, nil
			},
		}
		rec := doRequest(setupWithdrawalRouter(svc, adminID, models.RoleAdmin), http.MethodGet,
			"/withdrawals?sort_by=amount&sort_order=desc", "")
		assertStatus(t, rec, http.StatusOK)
		if gotSort.SortBy != "amount" || gotSort.SortOrder != "desc" {
			t.Errorf("unexpected sort: %+v", gotSort)
		}
	})
}
