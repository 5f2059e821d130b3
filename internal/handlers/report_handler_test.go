package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/models"
	"fundledger/internal/services"
)

const reportID = "0190a0c4-0000-7000-8000-0000000f7001"

type mockReportService struct {
	generateReportFn     func(ctx context.Context, userPortfolioID string, date time.Time) (*models.PerformanceReport, bool, error)
	generateAllReportsFn func(ctx context.Context, date time.Time) (*services.BatchSummary, error)
	getLatestReportFn    func(userPortfolioID string) (*models.PerformanceReport, error)
	listReportsFn        func(userPortfolioID string, q services.ReportQuery) ([]models.PerformanceReport, error)
	getReportFn          func(id string) (*models.PerformanceReport, error)
	getStatisticsFn      func(userPortfolioID, period string) (*services.ReportStatistics, error)
	cleanupReportsFn     func(ctx context.Context, daysToKeep int) (int64, error)
}

var _ services.ReportServicer = (*mockReportService)(nil)

func (m *mockReportService) GenerateReport(ctx context.Context, userPortfolioID string, date time.Time) (*models.PerformanceReport, bool, error) {
	if m.generateReportFn != nil {
		return m.generateReportFn(ctx, userPortfolioID, date)
	}
	return &models.PerformanceReport{UserPortfolioID: userPortfolioID, ReportDate: date}, true, nil
}

func (m *mockReportService) GenerateAllReports(ctx context.Context, date time.Time) (*services.BatchSummary, error) {
	if m.generateAllReportsFn != nil {
		return m.generateAllReportsFn(ctx, date)
	}
	return &services.BatchSummary{Errors: []string{}}, nil
}

func (m *mockReportService) GetLatestReport(userPortfolioID string) (*models.PerformanceReport, error) {
	if m.getLatestReportFn != nil {
		return m.getLatestReportFn(userPortfolioID)
	}
	return &models.PerformanceReport{UserPortfolioID: userPortfolioID}, nil
}

func (m *mockReportService) ListReports(userPortfolioID string, q services.ReportQuery) ([]models.PerformanceReport, error) {
	if m.listReportsFn != nil {
		return m.listReportsFn(userPortfolioID, q)
	}
	return []models.PerformanceReport{}, nil
}

func (m *mockReportService) GetReport(id string) (*models.PerformanceReport, error) {
	if m.getReportFn != nil {
		return m.getReportFn(id)
	}
	return &models.PerformanceReport{ID: id, UserPortfolioID: userPortfolioID}, nil
}

func (m *mockReportService) GetStatistics(userPortfolioID, period string) (*services.ReportStatistics, error) {
	if m.getStatisticsFn != nil {
		return m.getStatisticsFn(userPortfolioID, period)
	}
	return &services.ReportStatistics{UserPortfolioID: userPortfolioID, Period: period}, nil
}

func (m *mockReportService) CleanupReports(ctx context.Context, daysToKeep int) (int64, error) {
	if m.cleanupReportsFn != nil {
		return m.cleanupReportsFn(ctx, daysToKeep)
	}
	return 0, nil
}

func setupReportRouter(svc services.ReportServicer, audit services.AuditServicer, uid string, role models.UserRole) *gin.Engine {
	h := NewReportHandler(svc, &mockUserPortfolioService{}, audit)
	r := gin.New()
	r.POST("/pipeline/reports/generate-all", h.GenerateAllReports)

	authed := r.Group("", injectUser(uid, role))
	authed.POST("/user-portfolios/:id/reports", h.GenerateReport)
	authed.GET("/user-portfolios/:id/reports", h.ListReports)
	authed.GET("/user-portfolios/:id/reports/latest", h.GetLatestReport)
	authed.GET("/user-portfolios/:id/reports/stats", h.GetStatistics)
	authed.POST("/reports/generate-all", h.GenerateAllReports)
	authed.DELETE("/reports/cleanup", h.CleanupReports)
	authed.GET("/reports/:id", h.GetReport)
	return r
}

func TestReportHandler_GenerateReport(t *testing.T) {
	t.Run("returns_201_for_new_report", func(t *testing.T) {
		var gotDate time.Time
		svc := &mockReportService{
			generateReportFn: func(_ context.Context, id string, date time.Time) (*models.PerformanceReport, bool, error) {
				gotDate = date
				return &models.PerformanceReport{ID: reportID, UserPortfolioID: id, ReportDate: date}, true, nil
			},
		}
		audit := &mockAuditService{}
		r := setupReportRouter(svc, audit, adminID, models.RoleAdmin)
		rec := doRequest(r, http.MethodPost, "/user-portfolios/"+userPortfolioID+"/reports", `{"date":"2026-03-14"}`)
		assertStatus(t, rec, http.StatusCreated)
		if gotDate.Format(time.DateOnly) != "2026-03-14" {
			t.Errorf("expected 2026-03-14, got %s", gotDate)
		}
		if parseJSON(t, rec)["created"] != true {
			t.Error("expected created=true")
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "GENERATE_REPORT" {
			t.Errorf("unexpected audit: %+v", audit.entries)
		}
	})

	t.Run("returns_200_for_existing_report", func(t *testing.T) {
		svc := &mockReportService{
			generateReportFn: func(_ context.Context, id string, date time.Time) (*models.PerformanceReport, bool, error) {
				return &models.PerformanceReport{ID: reportID, UserPortfolioID: id, ReportDate: date}, false, nil
			},
		}
		audit := &mockAuditService{}
		r := setupReportRouter(svc, audit, adminID, models.RoleAdmin)
		rec := doRequest(r, http.MethodPost, "/user-portfolios/"+userPortfolioID+"/reports", "")
		assertStatus(t, rec, http.StatusOK)
		if parseJSON(t, rec)["created"] != false {
			t.Error("expected created=false")
		}
		if len(audit.entries) != 0 {
			t.Error("an existing report must not be audited again")
		}
	})

	t.Run("returns_400_on_bad_date", func(t *testing.T) {
		r := setupReportRouter(&mockReportService{}, &mockAuditService{}, adminID, models.RoleAdmin)
		rec := doRequest(r, http.MethodPost, "/user-portfolios/"+userPortfolioID+"/reports", `{"date":"14/03/2026"}`)
		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("returns_404_for_unknown_portfolio", func(t *testing.T) {
		svc := &mockReportService{
			generateReportFn: func(context.Context, string, time.Time) (*models.PerformanceReport, bool, error) {
				return nil, false, apperrors.ErrUserPortfolioNotFound
			},
		}
		r := setupReportRouter(svc, &mockAuditService{}, adminID, models.RoleAdmin)
		rec := doRequest(r, http.MethodPost, "/user-portfolios/"+userPortfolioID+"/reports", "")
		assertStatus(t, rec, http.StatusNotFound)
	})
}

func TestReportHandler_GenerateAllReports(t *testing.T) {
	svc := &mockReportService{
		generateAllReportsFn: func(context.Context, time.Time) (*services.BatchSummary, error) {
			return &services.BatchSummary{Success: 3, Failed: 1, Skipped: 1, Total: 4, Errors: []string{"x: boom"}}, nil
		},
	}

	t.Run("returns_200_with_failures_in_summary", func(t *testing.T) {
		r := setupReportRouter(svc, &mockAuditService{}, adminID, models.RoleAdmin)
		rec := doRequest(r, http.MethodPost, "/reports/generate-all", "")
		assertStatus(t, rec, http.StatusOK)
		summary := parseJSON(t, rec)["summary"].(map[string]interface{})
		if summary["failed"] != float64(1) || summary["total"] != float64(4) {
			t.Errorf("unexpected summary: %v", summary)
		}
	})

	t.Run("pipeline_caller_is_audited_as_pipeline", func(t *testing.T) {
		audit := &mockAuditService{}
		r := setupReportRouter(svc, audit, adminID, models.RoleAdmin)
		rec := doRequest(r, http.MethodPost, "/pipeline/reports/generate-all", "")
		assertStatus(t, rec, http.StatusOK)
		if len(audit.entries) != 1 || audit.entries[0].actorID != pipelineActor {
			t.Errorf("unexpected audit: %+v", audit.entries)
		}
	})
}

func TestReportHandler_ListReports(t *testing.T) {
	t.Run("passes_period_and_range", func(t *testing.T) {
		var got services.ReportQuery
		svc := &mockReportService{
			listReportsFn: func(_ string, q services.ReportQuery) ([]models.PerformanceReport, error) {
				got = q
				return []models.PerformanceReport{{ID: reportID}}, nil
			},
		}
		r := setupReportRouter(svc, &mockAuditService{}, investorID, models.RoleInvestor)
		rec := doRequest(r, http.MethodGet, "/user-portfolios/"+userPortfolioID+"/reports?period=weekly&start_date=2026-03-01&end_date=2026-03-10", "")
		assertStatus(t, rec, http.StatusOK)
		if got.Period != "weekly" || got.Start == nil || got.End == nil {
			t.Fatalf("unexpected query: %+v", got)
		}
		if got.Start.Format(time.DateOnly) != "2026-03-01" || got.End.Format(time.DateOnly) != "2026-03-10" {
			t.Errorf("unexpected range %s..%s", got.Start, got.End)
		}
		if parseJSON(t, rec)["count"] != float64(1) {
			t.Error("expected count 1")
		}
	})

	t.Run("rejects_unknown_period", func(t *testing.T) {
		r := setupReportRouter(&mockReportService{}, &mockAuditService{}, adminID, models.RoleAdmin)
		rec := doRequest(r, http.MethodGet, "/user-portfolios/"+userPortfolioID+"/reports?period=yearly", "")
		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("rejects_inverted_range", func(t *testing.T) {
		r := setupReportRouter(&mockReportService{}, &mockAuditService{}, adminID, models.RoleAdmin)
		rec := doRequest(r, http.MethodGet, "/user-portfolios/"+userPortfolioID+"/reports?start_date=2026-03-10&end_date=2026-03-01", "")
		assertStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("other_investor_gets_404", func(t *testing.T) {
		r := setupReportRouter(&mockReportService{}, &mockAuditService{}, otherID, models.RoleInvestor)
		rec := doRequest(r, http.MethodGet, "/user-portfolios/"+userPortfolioID+"/reports", "")
		assertStatus(t, rec, http.StatusNotFound)
	})
}

func TestReportHandler_LatestAndStats(t *testing.T) {
	t.Run("latest_returns_404_when_none", func(t *testing.T) {
		svc := &mockReportService{
			getLatestReportFn: func(string) (*models.PerformanceReport, error) { return nil, apperrors.ErrReportNotFound },
		}
		r := setupReportRouter(svc, &mockAuditService{}, investorID, models.RoleInvestor)
		rec := doRequest(r, http.MethodGet, "/user-portfolios/"+userPortfolioID+"/reports/latest", "")
		assertStatus(t, rec, http.StatusNotFound)
		assertErrorCode(t, parseJSON(t, rec), "REPORT_NOT_FOUND")
	})

	t.Run("stats_default_to_monthly", func(t *testing.T) {
		var gotPeriod string
		svc := &mockReportService{
			getStatisticsFn: func(id, period string) (*services.ReportStatistics, error) {
				gotPeriod = period
				return &services.ReportStatistics{
					UserPortfolioID: id,
					Period:          period,
					CurrentValue:    decimal.NewFromInt(1200),
					Display:         services.StatsDisplay{CurrentValue: "$1,200.00"},
				}, nil
			},
		}
		r := setupReportRouter(svc, &mockAuditService{}, investorID, models.RoleInvestor)
		rec := doRequest(r, http.MethodGet, "/user-portfolios/"+userPortfolioID+"/reports/stats", "")
		assertStatus(t, rec, http.StatusOK)
		if gotPeriod != services.PeriodMonthly {
			t.Errorf("expected monthly, got %q", gotPeriod)
		}
		stats := parseJSON(t, rec)["statistics"].(map[string]interface{})
		display := stats["display"].(map[string]interface{})
		if display["current_value"] != "$1,200.00" {
			t.Errorf("unexpected display: %v", display)
		}
	})
}

func TestReportHandler_GetReport(t *testing.T) {
	t.Run("owner_can_read", func(t *testing.T) {
		r := setupReportRouter(&mockReportService{}, &mockAuditService{}, investorID, models.RoleInvestor)
		rec := doRequest(r, http.MethodGet, "/reports/"+reportID, "")
		assertStatus(t, rec, http.StatusOK)
	})

	t.Run("other_investor_gets_404", func(t *testing.T) {
		r := setupReportRouter(&mockReportService{}, &mockAuditService{}, otherID, models.RoleInvestor)
		rec := doRequest(r, http.MethodGet, "/reports/"+reportID, "")
		assertStatus(t, rec, http.StatusNotFound)
		assertErrorCode(t, parseJSON(t, rec), "REPORT_NOT_FOUND")
	})
}

func TestReportHandler_CleanupReports(t *testing.T) {
	t.Run("passes_days_and_audits", func(t *testing.T) {
		var gotDays int
		svc := &mockReportService{
			cleanupReportsFn: func(_ context.Context, days int) (int64, error) {
				gotDays = days
				return 7, nil
			},
		}
		audit := &mockAuditService{}
		r := setupReportRouter(svc, audit, adminID, models.RoleAdmin)
		rec := doRequest(r, http.MethodDelete, "/reports/cleanup?days_to_keep=30", "")
		assertStatus(t, rec, http.StatusOK)
		if gotDays != 30 {
			t.Errorf("expected 30 days, got %d", gotDays)
		}
		if parseJSON(t, rec)["deleted"] != float64(7) {
			t.Error("expected deleted=7")
		}
		if len(audit.entries) != 1 || audit.entries[0].action != "CLEANUP_REPORTS" {
			t.Errorf("unexpected audit: %+v", audit.entries)
		}
	})

	t.Run("defaults_to_configured_retention", func(t *testing.T) {
		gotDays := -1
		svc := &mockReportService{
			cleanupReportsFn: func(_ context.Context, days int) (int64, error) {
				gotDays = days
				return 0, nil
			},
		}
		r := setupReportRouter(svc, &mockAuditService{}, adminID, models.RoleAdmin)
		rec := doRequest(r, http.MethodDelete, "/reports/cleanup", "")
		assertStatus(t, rec, http.StatusOK)
		if gotDays != 0 {
			t.Errorf("expected 0 (use retention), got %d", gotDays)
		}
	})

	t.Run("rejects_non_positive_days", func(t *testing.T) {
		r := setupReportRouter(&mockReportService{}, &mockAuditService{}, adminID, models.RoleAdmin)
		rec := doRequest(r, http.MethodDelete, "/reports/cleanup?days_to_keep=0", "")
		assertStatus(t, rec, http.StatusBadRequest)
	})
}
