package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/middleware"
	"fundledger/internal/services"
)

// pipelineActor is recorded in the audit log for API-key callers.
const pipelineActor = "pipeline"

// ReportHandler handles performance report requests.
type ReportHandler struct {
	reportService        services.ReportServicer
	userPortfolioService services.UserPortfolioServicer
	auditService         services.AuditServicer
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService services.ReportServicer, userPortfolioService services.UserPortfolioServicer, auditService services.AuditServicer) *ReportHandler {
	return &ReportHandler{
		reportService:        reportService,
		userPortfolioService: userPortfolioService,
		auditService:         auditService,
	}
}

// GenerateReportRequest optionally pins the report day. Defaults to today (UTC).
type GenerateReportRequest struct {
	Date string `json:"date"`
}

// BatchResponse wraps a batch generation summary
type BatchResponse struct {
	Message string                `json:"message"`
	Date    string                `json:"date"`
	Summary services.BatchSummary `json:"summary"`
}

// GenerateReport handles generating today's report for one user portfolio
// @Summary     Generate a performance report
// @Description Snapshot the portfolio valuation for a day. Returns 201 for a new report and 200 with the existing report when one already exists for that day (admin only).
// @Tags        reports
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                true  "User portfolio ID"
// @Param       request body GenerateReportRequest false "Report day (YYYY-MM-DD)"
// @Success     201 {object} models.PerformanceReport "Report created"
// @Success     200 {object} models.PerformanceReport "Report already existed"
// @Failure     400 {object} ErrorResponse "Invalid date"
// @Failure     404 {object} ErrorResponse "User portfolio not found"
// @Router      /user-portfolios/{id}/reports [post]
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	date, err := bindReportDate(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, created, err := h.reportService.GenerateReport(c.Request.Context(), id, date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.auditService.Log(actorID, "GENERATE_REPORT", "performance_report", report.ID, c.ClientIP(),
			map[string]interface{}{"user_portfolio_id": id, "report_date": report.ReportDate.Format(time.DateOnly)})
	}

	c.JSON(status, gin.H{"report": report, "created": created})
}

// GenerateAllReports handles generating today's report for every user portfolio
// @Summary     Generate reports for all user portfolios
// @Description Runs the batch generator. Per-portfolio failures are reported in the summary and never fail the request.
// @Tags        reports
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body GenerateReportRequest false "Report day (YYYY-MM-DD)"
// @Success     200 {object} BatchResponse "Batch summary"
// @Failure     400 {object} ErrorResponse "Invalid date"
// @Router      /reports/generate-all [post]
func (h *ReportHandler) GenerateAllReports(c *gin.Context) {
	actorID := c.GetString(middleware.UserIDKey)
	if actorID == "" {
		actorID = pipelineActor
	}

	date, err := bindReportDate(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.reportService.GenerateAllReports(c.Request.Context(), date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "GENERATE_ALL_REPORTS", "performance_report", "", c.ClientIP(),
		map[string]interface{}{"success": summary.Success, "failed": summary.Failed, "skipped": summary.Skipped})

	c.JSON(http.StatusOK, BatchResponse{
		Message: "Report generation completed",
		Date:    date.UTC().Format(time.DateOnly),
		Summary: *summary,
	})
}

// ListReports handles listing reports of a user portfolio
// @Summary     List performance reports
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       id         path  string true  "User portfolio ID"
// @Param       period     query string false "daily, weekly or monthly (default daily)"
// @Param       start_date query string false "Start day (YYYY-MM-DD), overrides period"
// @Param       end_date   query string false "End day (YYYY-MM-DD), defaults to today"
// @Success     200 {array} models.PerformanceReport "Reports, newest first"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "User portfolio not found"
// @Router      /user-portfolios/{id}/reports [get]
func (h *ReportHandler) ListReports(c *gin.Context) {
	id, err := h.ownedPortfolioID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	q := services.ReportQuery{Period: c.DefaultQuery("period", services.PeriodDaily)}
	if !validPeriod(q.Period) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid period, must be daily, weekly or monthly"))
		return
	}
	if v := c.Query("start_date"); v != "" {
		t, err := parseReportDate(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid start_date format, use YYYY-MM-DD"))
			return
		}
		q.Start = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := parseReportDate(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid end_date format, use YYYY-MM-DD"))
			return
		}
		q.End = &t
	}
	if q.Start != nil && q.End != nil && q.Start.After(*q.End) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "start_date must not be after end_date"))
		return
	}

	reports, err := h.reportService.ListReports(id, q)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// GetLatestReport handles fetching the newest report of a user portfolio
// @Summary     Get the latest performance report
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "User portfolio ID"
// @Success     200 {object} models.PerformanceReport "Latest report"
// @Failure     404 {object} ErrorResponse "No report found"
// @Router      /user-portfolios/{id}/reports/latest [get]
func (h *ReportHandler) GetLatestReport(c *gin.Context) {
	id, err := h.ownedPortfolioID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.reportService.GetLatestReport(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

// GetStatistics handles computing performance statistics for a window
// @Summary     Get performance statistics
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       id     path  string true  "User portfolio ID"
// @Param       period query string false "daily, weekly or monthly (default monthly)"
// @Success     200 {object} services.ReportStatistics "Statistics"
// @Failure     400 {object} ErrorResponse "Invalid period"
// @Failure     404 {object} ErrorResponse "No reports found for this period"
// @Router      /user-portfolios/{id}/reports/stats [get]
func (h *ReportHandler) GetStatistics(c *gin.Context) {
	id, err := h.ownedPortfolioID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	period := c.DefaultQuery("period", services.PeriodMonthly)
	if !validPeriod(period) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid period, must be daily, weekly or monthly"))
		return
	}

	stats, err := h.reportService.GetStatistics(id, period)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"statistics": stats})
}

// GetReport handles fetching one report
// @Summary     Get a performance report
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Report ID"
// @Success     200 {object} models.PerformanceReport "Report"
// @Failure     404 {object} ErrorResponse "Report not found"
// @Router      /reports/{id} [get]
func (h *ReportHandler) GetReport(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.reportService.GetReport(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if !isAdmin(c) {
		if _, err := ownedUserPortfolio(c, h.userPortfolioService, report.UserPortfolioID); err != nil {
			respondWithError(c, apperrors.ErrReportNotFound)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

// CleanupReports handles deleting reports past the retention window
// @Summary     Delete old performance reports
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       days_to_keep query int false "Days to keep (default from configuration)"
// @Success     200 {object} map[string]interface{} "Deleted count"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /reports/cleanup [delete]
func (h *ReportHandler) CleanupReports(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	days := 0
	if v := c.Query("days_to_keep"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days < 1 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "days_to_keep must be a positive integer"))
			return
		}
	}

	deleted, err := h.reportService.CleanupReports(c.Request.Context(), days)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, "CLEANUP_REPORTS", "performance_report", "", c.ClientIP(),
		map[string]interface{}{"days_to_keep": days, "deleted": deleted})

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ownedPortfolioID parses the user portfolio path ID and checks the caller
// may read it. Admins skip the lookup.
func (h *ReportHandler) ownedPortfolioID(c *gin.Context) (string, error) {
	id, err := parsePathID(c, "id")
	if err != nil {
		return "", err
	}
	if isAdmin(c) {
		return id, nil
	}
	if _, err := ownedUserPortfolio(c, h.userPortfolioService, id); err != nil {
		return "", err
	}
	return id, nil
}

// bindReportDate reads the optional report day from the request body.
func bindReportDate(c *gin.Context) (time.Time, error) {
	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return time.Time{}, bindError(err)
	}
	if req.Date == "" {
		return time.Now().UTC(), nil
	}
	date, err := parseReportDate(req.Date)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid date format, use YYYY-MM-DD")
	}
	return date, nil
}

// parseReportDate accepts YYYY-MM-DD or RFC3339.
func parseReportDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func validPeriod(period string) bool {
	switch period {
	case services.PeriodDaily, services.PeriodWeekly, services.PeriodMonthly:
		return true
	}
	return false
}
