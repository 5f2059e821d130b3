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

const (
	depositID = "0190a0c4-0000-7000-8000-0000000d0001"
	walletID  = "0190a0c4-0000-7000-8000-0000000e0001"
)

type mockDepositService struct {
	createDepositFn  func(ctx context.Context, in services.DepositInput, actor services.Actor) (*models.Deposit, error)
	getDepositFn     func(id string) (*models.Deposit, error)
	listDepositsFn   func(filter services.SettlementFilter, sort pagination.SortRequest, page pagination.PageRequest) (*pagination.PageResponse[models.Deposit], error)
	updateDepositFn  func(ctx context.Context, id string, upd services.DepositUpdate, actor services.Actor) (*models.Deposit, error)
	approveDepositFn func(ctx context.Context, id string, actor services.Actor) (*models.Deposit, error)
	rejectDepositFn  func(ctx context.Context, id string) (*models.Deposit, error)
	reverseDepositFn func(ctx context.Context, id string) (*models.Deposit, error)
	deleteDepositFn  func(ctx context.Context, id string) error
}

var _ services.DepositServicer = (*mockDepositService)(nil)

func (m *mockDepositService) CreateDeposit(ctx context.Context, in services.DepositInput, actor services.Actor) (*models.Deposit, error) {
	if m.createDepositFn != nil {
		return m.createDepositFn(ctx, in, actor)
	}
	return &models.Deposit{}, nil
}

func (m *mockDepositService) GetDeposit(id string) (*models.Deposit, error) {
	if m.getDepositFn != nil {
		return m.getDepositFn(id)
	}
	d := &models.Deposit{UserID: investorID}
	d.ID = id
	return d, nil
}

func (m *mockDepositService) ListDeposits(filter services.SettlementFilter, sort pagination.SortRequest, page pagination.PageRequest) (*pagination.PageResponse[models.Deposit], error) {
	if m.listDepositsFn != nil {
		return m.listDepositsFn(filter, sort, page)
	}
	result := pagination.NewPageResponse[models.Deposit](nil, 1, 20, 0)
	return &result, nil
}

func (m *mockDepositService) UpdateDeposit(ctx context.Context, id string, upd services.DepositUpdate, actor services.Actor) (*models.Deposit, error) {
	if m.updateDepositFn != nil {
		return m.updateDepositFn(ctx, id, upd, actor)
	}
	return &models.Deposit{}, nil
}

func (m *mockDepositService) ApproveDeposit(ctx context.Context, id string, actor services.Actor) (*models.Deposit, error) {
	if m.approveDepositFn != nil {
		return m.approveDepositFn(ctx, id, actor)
	}
	return &models.Deposit{Status: models.StatusApproved}, nil
}

func (m *mockDepositService) RejectDeposit(ctx context.Context, id string) (*models.Deposit, error) {
	if m.rejectDepositFn != nil {
		return m.rejectDepositFn(ctx, id)
	}
	return &models.Deposit{Status: models.StatusRejected}, nil
}

func (m *mockDepositService) ReverseDeposit(ctx context.Context, id string) (*models.Deposit, error) {
	if m.reverseDepositFn != nil {
		return m.reverseDepositFn(ctx, id)
	}
	return &models.Deposit{Status: models.StatusRejected}, nil
}

func (m *mockDepositService) DeleteDeposit(ctx context.Context, id string) error {
	if m.deleteDepositFn != nil {
		return m.deleteDepositFn(ctx, id)
	}
	return nil
}

func setupDepositRouter(svc services.DepositServicer, audit services.AuditServicer, uid string, role models.UserRole) *gin.Engine {
	h := NewDepositHandler(svc, audit)
	r := gin.New()
	r.Use(injectUser(uid, role))
	r.POST("/deposits", h.CreateDeposit)
	r.GET("/deposits", h.ListDeposits)
	r.GET("/deposits/:id", h.GetDeposit)
	r.PATCH("/deposits/:id", h.UpdateDeposit)
	r.POST("/deposits/:id/approve", h.ApproveDeposit)
	r.POST("/deposits/:id/reject", h.RejectDeposit)
	r.POST("/deposits/:id/reverse", h.ReverseDeposit)
	r.DELETE("/deposits/:id", h.DeleteDeposit)
	return r
}

func TestDepositHandler_CreateDeposit(t *testing.T) {
	body := `{"wallet_id":"` + walletID + `","user_id":"` + investorID + `","amount":"250.50","reference_no":"REF-1"}`

	t.Run("returns_201_on_success", func(t *testing.T) {
		var got services.DepositInput
		var gotActor services.Actor
		svc := &mockDepositService{
			createDepositFn: func(_ context.Context, in services.DepositInput, actor services.Actor) (*models.Deposit, error) {
				got, gotActor = in, actor
				return &models.Deposit{Amount: in.Amount, Status: models.StatusPending}, nil
			},
		}
		audit := &mockAuditService{}
		rec := doRequest(setupDepositRouter(svc, audit, adminID, models.RoleAdmin), http.MethodPost, "/deposits", body)
		assertStatus(t, rec, http.StatusCreated)
		if !got.Amount.Equal(decimal.RequireFromString("250.5")) || got.ReferenceNo != "REF-1" {
			t.Errorf("unexpected input: %+v", got)
		}
		if gotActor.ID != adminID || gotActor.Name != "ops@example.com" {
			t.Errorf("unexpected actor: %+v", gotActor)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "CREATE_DEPOSIT" {
			t.Errorf("unexpected audit: %+v", audit.entries)
		}
	})

	t.Run("returns_400_on_zero_amount", func(t *testing.T) {
		zero := `{"wallet_id":"` + walletID + `","user_id":"` + investorID + `","amount":"0"}`
		rec := doRequest(setupDepositRouter(&mockDepositService{}, &mockAuditService{}, adminID, models.RoleAdmin), http.MethodPost, "/deposits", zero)
		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("returns_400_on_unknown_status", func(t *testing.T) {
		bad := `{"wallet_id":"` + walletID + `","user_id":"` + investorID + `","amount":"10","status":"REVERSED"}`
		rec := doRequest(setupDepositRouter(&mockDepositService{}, &mockAuditService{}, adminID, models.RoleAdmin), http.MethodPost, "/deposits", bad)
		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("returns_409_on_duplicate_transaction_id", func(t *testing.T) {
		svc := &mockDepositService{
			createDepositFn: func(context.Context, services.DepositInput, services.Actor) (*models.Deposit, error) {
				return nil, apperrors.ErrDuplicateTransactionID
			},
		}
		rec := doRequest(setupDepositRouter(svc, &mockAuditService{}, adminID, models.RoleAdmin), http.MethodPost, "/deposits", body)
		assertStatus(t, rec, http.StatusConflict)
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_TRANSACTION_ID")
	})
}

func TestDepositHandler_ListDeposits(t *testing.T) {
	capture := func(got *services.SettlementFilter) *mockDepositService {
		return &mockDepositService{
			listDepositsFn: func(filter services.SettlementFilter, _ pagination.SortRequest, _ pagination.PageRequest) (*pagination.PageResponse[models.Deposit], error) {
				*got = filter
				result := pagination.NewPageResponse[models.Deposit](nil, 1, 20, 0)
				return &result, nil
			},
		}
	}

	t.Run("investor_is_scoped_to_self", func(t *testing.T) {
		var got services.SettlementFilter
		r := setupDepositRouter(capture(&got), &mockAuditService{}, investorID, models.RoleInvestor)
		rec := doRequest(r, http.MethodGet, "/deposits?status=APPROVED&user_id="+otherID, "")
		assertStatus(t, rec, http.StatusOK)
		if got.UserID != investorID || got.Status != models.StatusApproved {
			t.Errorf("unexpected filter: %+v", got)
		}
	})

	t.Run("rejects_unknown_status", func(t *testing.T) {
		var got services.SettlementFilter
		r := setupDepositRouter(capture(&got), &mockAuditService{}, adminID, models.RoleAdmin)
		rec := doRequest(r, http.MethodGet, "/deposits?status=DONE", "")
		assertStatus(t, rec, http.StatusBadRequest)
	})
}

func TestDepositHandler_GetDeposit(t *testing.T) {
	t.Run("other_investor_gets_404", func(t *testing.T) {
		r := setupDepositRouter(&mockDepositService{}, &mockAuditService{}, otherID, models.RoleInvestor)
		rec := doRequest(r, http.MethodGet, "/deposits/"+depositID, "")
		assertStatus(t, rec, http.StatusNotFound)
		assertErrorCode(t, parseJSON(t, rec), "DEPOSIT_NOT_FOUND")
	})
}

func TestDepositHandler_Transitions(t *testing.T) {
	t.Run("approve_passes_actor_and_audits", func(t *testing.T) {
		var gotActor services.Actor
		svc := &mockDepositService{
			approveDepositFn: func(_ context.Context, id string, actor services.Actor) (*models.Deposit, error) {
				gotActor = actor
				d := &models.Deposit{Status: models.StatusApproved, Amount: decimal.NewFromInt(100)}
				d.ID = id
				return d, nil
			},
		}
		audit := &mockAuditService{}
		rec := doRequest(setupDepositRouter(svc, audit, adminID, models.RoleAdmin), http.MethodPost, "/deposits/"+depositID+"/approve", "")
		assertStatus(t, rec, http.StatusOK)
		if gotActor.ID != adminID {
			t.Errorf("expected actor %s, got %s", adminID, gotActor.ID)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "APPROVE_DEPOSIT" || audit.entries[0].resourceID != depositID {
			t.Errorf("unexpected audit: %+v", audit.entries)
		}
		deposit := parseJSON(t, rec)["deposit"].(map[string]interface{})
		if deposit["status"] != "APPROVED" {
			t.Errorf("expected APPROVED, got %v", deposit["status"])
		}
	})

	t.Run("approve_rejected_returns_409", func(t *testing.T) {
		svc := &mockDepositService{
			approveDepositFn: func(context.Context, string, services.Actor) (*models.Deposit, error) {
				return nil, apperrors.ErrInvalidStatusTransition
			},
		}
		audit := &mockAuditService{}
		rec := doRequest(setupDepositRouter(svc, audit, adminID, models.RoleAdmin), http.MethodPost, "/deposits/"+depositID+"/approve", "")
		assertStatus(t, rec, http.StatusConflict)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_STATUS_TRANSITION")
		if len(audit.entries) != 0 {
			t.Error("failed transitions must not be audited")
		}
	})

	t.Run("reverse_returns_rejected", func(t *testing.T) {
		called := false
		svc := &mockDepositService{
			reverseDepositFn: func(context.Context, string) (*models.Deposit, error) {
				called = true
				return &models.Deposit{Status: models.StatusRejected}, nil
			},
		}
		rec := doRequest(setupDepositRouter(svc, &mockAuditService{}, adminID, models.RoleAdmin), http.MethodPost, "/deposits/"+depositID+"/reverse", "")
		assertStatus(t, rec, http.StatusOK)
		if !called {
			t.Error("expected ReverseDeposit to be called")
		}
	})

	t.Run("update_passes_partial_fields", func(t *testing.T) {
		var got services.DepositUpdate
		svc := &mockDepositService{
			updateDepositFn: func(_ context.Context, _ string, upd services.DepositUpdate, _ services.Actor) (*models.Deposit, error) {
				got = upd
				return &models.Deposit{}, nil
			},
		}
		rec := doRequest(setupDepositRouter(svc, &mockAuditService{}, adminID, models.RoleAdmin), http.MethodPatch, "/deposits/"+depositID, `{"amount":"75"}`)
		assertStatus(t, rec, http.StatusOK)
		if got.Amount == nil || !got.Amount.Equal(decimal.NewFromInt(75)) || got.Status != nil || got.WalletID != nil {
			t.Errorf("unexpected update: %+v", got)
		}
	})

	t.Run("delete_approved_returns_409", func(t *testing.T) {
		svc := &mockDepositService{
			deleteDepositFn: func(context.Context, string) error { return apperrors.ErrInvalidStatusTransition },
		}
		rec := doRequest(setupDepositRouter(svc, &mockAuditService{}, adminID, models.RoleAdmin), http.MethodDelete, "/deposits/"+depositID, "")
		assertStatus(t, rec, http.StatusConflict)
	})
}
