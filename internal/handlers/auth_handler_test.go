package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/middleware"
	"fundledger/internal/models"
	"fundledger/internal/services"
	"fundledger/internal/validator"
)

const (
	adminID    = "0190a0c4-0000-7000-8000-00000000a001"
	investorID = "0190a0c4-0000-7000-8000-00000000b001"
	otherID    = "0190a0c4-0000-7000-8000-00000000c001"
)

// --- mock services ---

type mockUserService struct {
	createUserFn        func(email, password, name string, role models.UserRole, currency string) (*models.User, error)
	authenticateFn      func(email, password string) (*models.User, error)
	getUserFn           func(id string) (*models.User, error)
	getWalletFn         func(id string) (*models.Wallet, error)
	getWalletByUserIDFn func(userID string) (*models.Wallet, error)
}

var _ services.UserServicer = (*mockUserService)(nil)

func (m *mockUserService) CreateUser(email, password, name string, role models.UserRole, currency string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(email, password, name, role, currency)
	}
	return &models.User{}, nil
}

func (m *mockUserService) Authenticate(email, password string) (*models.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(email, password)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUser(id string) (*models.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(id)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetWallet(id string) (*models.Wallet, error) {
	if m.getWalletFn != nil {
		return m.getWalletFn(id)
	}
	return &models.Wallet{}, nil
}

func (m *mockUserService) GetWalletByUserID(userID string) (*models.Wallet, error) {
	if m.getWalletByUserIDFn != nil {
		return m.getWalletByUserIDFn(userID)
	}
	return &models.Wallet{}, nil
}

type auditEntry struct {
	actorID    string
	action     string
	resourceID string
}

type mockAuditService struct {
	entries []auditEntry
}

var _ services.AuditServicer = (*mockAuditService)(nil)

func (m *mockAuditService) Log(actorID, action, _, resourceID, _ string, _ map[string]interface{}) {
	m.entries = append(m.entries, auditEntry{actorID: actorID, action: action, resourceID: resourceID})
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	r := gin.New()
	r.POST("/auth/login", handler.Login)
	r.GET("/profile", injectUser(investorID, models.RoleInvestor), handler.GetProfile)
	r.POST("/users", injectUser(adminID, models.RoleAdmin), handler.CreateUser)
	r.GET("/users/:id", injectUser(investorID, models.RoleInvestor), handler.GetUser)
	return r
}

func injectUser(uid string, role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, uid)
		c.Set(middleware.EmailKey, "ops@example.com")
		c.Set(middleware.RoleKey, role)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func newTestUser(id, email string, role models.UserRole) *models.User {
	u := &models.User{Email: email, Name: "Test User", Role: role}
	u.ID = id
	u.Wallet = &models.Wallet{UserID: id, NetAssetValue: decimal.NewFromInt(1000), Currency: "USD"}
	return u
}

// --- tests ---

func TestAuthHandler_Login(t *testing.T) {
	t.Run("returns_200_with_token", func(t *testing.T) {
		userSvc := &mockUserService{
			authenticateFn: func(email, _ string) (*models.User, error) {
				return newTestUser(investorID, email, models.RoleInvestor), nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}))

		rec := doRequest(r, http.MethodPost, "/auth/login", `{"email":"jane@example.com","password":"secret123"}`)
		assertStatus(t, rec, http.StatusOK)

		result := parseJSON(t, rec)
		token, _ := result["token"].(string)
		if token == "" {
			t.Fatal("expected token in response")
		}
		claims, err := middleware.ParseToken(token)
		if err != nil {
			t.Fatalf("token did not parse: %v", err)
		}
		if claims.UserID != investorID || claims.Role != models.RoleInvestor {
			t.Errorf("unexpected claims: %+v", claims)
		}
		user := result["user"].(map[string]interface{})
		if user["email"] != "jane@example.com" {
			t.Errorf("expected email jane@example.com, got %v", user["email"])
		}
	})

	t.Run("returns_401_on_invalid_credentials", func(t *testing.T) {
		userSvc := &mockUserService{
			authenticateFn: func(_, _ string) (*models.User, error) {
				return nil, apperrors.ErrInvalidCredentials
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}))

		rec := doRequest(r, http.MethodPost, "/auth/login", `{"email":"jane@example.com","password":"wrong"}`)
		assertStatus(t, rec, http.StatusUnauthorized)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_CREDENTIALS")
	})

	t.Run("returns_400_on_invalid_input", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockAuditService{}))

		rec := doRequest(r, http.MethodPost, "/auth/login", `{"email":"not-an-email"}`)
		assertStatus(t, rec, http.StatusBadRequest)
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestAuthHandler_GetProfile(t *testing.T) {
	t.Run("returns_profile_with_wallet", func(t *testing.T) {
		var gotID string
		userSvc := &mockUserService{
			getUserFn: func(id string) (*models.User, error) {
				gotID = id
				return newTestUser(id, "jane@example.com", models.RoleInvestor), nil
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}))

		rec := doRequest(r, http.MethodGet, "/profile", "")
		assertStatus(t, rec, http.StatusOK)
		if gotID != investorID {
			t.Errorf("expected lookup of %s, got %s", investorID, gotID)
		}
		user := parseJSON(t, rec)["user"].(map[string]interface{})
		wallet := user["wallet"].(map[string]interface{})
		if wallet["net_asset_value"] != "1000" {
			t.Errorf("expected NAV 1000, got %v", wallet["net_asset_value"])
		}
	})

	t.Run("returns_401_without_user", func(t *testing.T) {
		r := gin.New()
		h := NewAuthHandler(&mockUserService{}, &mockAuditService{})
		r.GET("/profile", h.GetProfile)

		rec := doRequest(r, http.MethodGet, "/profile", "")
		assertStatus(t, rec, http.StatusUnauthorized)
		assertErrorCode(t, parseJSON(t, rec), "UNAUTHORIZED")
	})
}

func TestAuthHandler_CreateUser(t *testing.T) {
	t.Run("returns_201_and_audits", func(t *testing.T) {
		userSvc := &mockUserService{
			createUserFn: func(email, _, _ string, role models.UserRole, currency string) (*models.User, error) {
				if role != models.RoleInvestor || currency != "EUR" {
					return nil, fmt.Errorf("unexpected role %q currency %q", role, currency)
				}
				return newTestUser(otherID, email, role), nil
			},
		}
		audit := &mockAuditService{}
		r := setupAuthRouter(NewAuthHandler(userSvc, audit))

		body := `{"email":"new@example.com","password":"password123","name":"New","role":"investor","currency":"EUR"}`
		rec := doRequest(r, http.MethodPost, "/users", body)
		assertStatus(t, rec, http.StatusCreated)
		if len(audit.entries) != 1 || audit.entries[0].action != "CREATE_USER" || audit.entries[0].actorID != adminID {
			t.Errorf("unexpected audit entries: %+v", audit.entries)
		}
	})

	t.Run("returns_400_on_unknown_role", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockUserService{}, &mockAuditService{}))

		body := `{"email":"new@example.com","password":"password123","name":"New","role":"root"}`
		rec := doRequest(r, http.MethodPost, "/users", body)
		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("returns_409_on_duplicate_email", func(t *testing.T) {
		userSvc := &mockUserService{
			createUserFn: func(_, _, _ string, _ models.UserRole, _ string) (*models.User, error) {
				return nil, apperrors.ErrDuplicateEmail
			},
		}
		r := setupAuthRouter(NewAuthHandler(userSvc, &mockAuditService{}))

		body := `{"email":"dup@example.com","password":"password123","name":"Dup"}`
		rec := doRequest(r, http.MethodPost, "/users", body)
		assertStatus(t, rec, http.StatusConflict)
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_EMAIL")
	})
}

func TestAuthHandler_GetUser(t *testing.T) {
	r := setupAuthRouter(NewAuthHandler(&mockUserService{
		getUserFn: func(id string) (*models.User, error) {
			return newTestUser(id, "jane@example.com", models.RoleInvestor), nil
		},
	}, &mockAuditService{}))

	t.Run("investor_reads_self", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/users/"+investorID, "")
		assertStatus(t, rec, http.StatusOK)
	})

	t.Run("investor_cannot_read_other_user", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/users/"+otherID, "")
		assertStatus(t, rec, http.StatusNotFound)
		assertErrorCode(t, parseJSON(t, rec), "USER_NOT_FOUND")
	})

	t.Run("rejects_malformed_id", func(t *testing.T) {
		rec := doRequest(r, http.MethodGet, "/users/42", "")
		assertStatus(t, rec, http.StatusBadRequest)
	})
}
