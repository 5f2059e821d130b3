package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "fundledger/internal/errors"
	"fundledger/internal/logger"
	"fundledger/internal/models"
	"fundledger/internal/valuation"
)

// Report periods accepted by ListReports and GetStatistics.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

var etfSymbols = map[string]bool{
	"qqq": true, "spy": true, "voo": true, "iwm": true, "soxx": true, "xlk": true, "vti": true,
}

// reportService generates and queries daily performance reports.
type reportService struct {
	db            *gorm.DB
	timeout       time.Duration
	retentionDays int
	currency      string
	now           func() time.Time
}

// NewReportService creates a new ReportServicer. retentionDays is used by
// CleanupReports when the caller passes no explicit value; currency formats
// statistics for users without a wallet.
func NewReportService(db *gorm.DB, timeout time.Duration, retentionDays int, currency string) ReportServicer {
	return &reportService{
		db:            db,
		timeout:       timeout,
		retentionDays: retentionDays,
		currency:      currency,
		now:           time.Now,
	}
}

// GenerateReport snapshots the current valuation of a user portfolio for
// the UTC day of date. An existing report for that day is returned with
// created=false.
func (s *reportService) GenerateReport(ctx context.Context, userPortfolioID string, date time.Time) (*models.PerformanceReport, bool, error) {
	day := reportDay(date)

	existing, err := s.findReport(userPortfolioID, day)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	var report *models.PerformanceReport
	err = runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		var up models.UserPortfolio
		if err := tx.Preload("UserAssets.PortfolioAsset.Asset").
			Where("id = ?", userPortfolioID).
			First(&up).Error; err != nil {
			return translateDBError(err, apperrors.ErrUserPortfolioNotFound, nil)
		}

		built, err := buildReport(&up, day)
		if err != nil {
			return err
		}
		report = built
		return tx.Create(report).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, findErr := s.findReport(userPortfolioID, day)
		if findErr != nil {
			return nil, false, findErr
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}

	logger.Get().Infow("performance report generated",
		"report_id", report.ID,
		"user_portfolio_id", userPortfolioID,
		"report_date", day.Format(time.DateOnly),
		"total_close_value", report.TotalCloseValue.String(),
	)
	return report, true, nil
}

// GenerateAllReports generates the day's report for every user portfolio.
// Portfolios that already have one are skipped and counted as successes;
// a failure is recorded and the batch continues.
func (s *reportService) GenerateAllReports(ctx context.Context, date time.Time) (*BatchSummary, error) {
	day := reportDay(date)

	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.UserPortfolio{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, translateDBError(err, nil, nil)
	}

	summary := &BatchSummary{Total: len(ids), Errors: []string{}}
	for _, id := range ids {
		if ctx.Err() != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", id, apperrors.ErrOperationTimeout.Message))
			continue
		}

		_, created, err := s.GenerateReport(ctx, id, day)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", id, err.Error()))
			logger.Get().Errorw("performance report failed",
				"user_portfolio_id", id,
				"report_date", day.Format(time.DateOnly),
				"error", err,
			)
			continue
		}
		summary.Success++
		if !created {
			summary.Skipped++
		}
	}

	logger.Get().Infow("performance report batch finished",
		"report_date", day.Format(time.DateOnly),
		"total", summary.Total,
		"success", summary.Success,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// GetLatestReport returns the most recent report of a user portfolio.
func (s *reportService) GetLatestReport(userPortfolioID string) (*models.PerformanceReport, error) {
	var report models.PerformanceReport
	if err := s.db.Preload("AssetBreakdown").
		Where("user_portfolio_id = ?", userPortfolioID).
		Order("report_date DESC").
		First(&report).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrReportNotFound, nil)
	}
	return &report, nil
}

// ListReports returns reports within the query window, newest first.
func (s *reportService) ListReports(userPortfolioID string, q ReportQuery) ([]models.PerformanceReport, error) {
	start, end := s.window(q)

	var reports []models.PerformanceReport
	if err := s.db.Preload("AssetBreakdown").
		Where("user_portfolio_id = ? AND report_date >= ? AND report_date <= ?", userPortfolioID, start, end).
		Order("report_date DESC").
		Find(&reports).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return reports, nil
}

// GetReport returns a single report with its breakdown.
func (s *reportService) GetReport(id string) (*models.PerformanceReport, error) {
	var report models.PerformanceReport
	if err := s.db.Preload("AssetBreakdown").Where("id = ?", id).First(&report).Error; err != nil {
		return nil, translateDBError(err, apperrors.ErrReportNotFound, nil)
	}
	return &report, nil
}

// GetStatistics summarises the reports of a user portfolio over period
// (default monthly).
func (s *reportService) GetStatistics(userPortfolioID, period string) (*ReportStatistics, error) {
	if period == "" {
		period = PeriodMonthly
	}
	reports, err := s.ListReports(userPortfolioID, ReportQuery{Period: period})
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrReportNotFound, "No reports found for this period")
	}

	latest := reports[0]
	oldest := reports[len(reports)-1]
	stats := &ReportStatistics{
		UserPortfolioID: userPortfolioID,
		Period:          period,
		Currency:        s.currencyFor(userPortfolioID),
		ReportCount:     len(reports),
		CurrentValue:    latest.TotalCloseValue,
		StartValue:      oldest.TotalCloseValue,
	}
	stats.TotalGrowth = stats.CurrentValue.Sub(stats.StartValue)
	stats.GrowthPercentage = valuation.Percentage(stats.TotalGrowth, stats.StartValue)

	sum := decimal.Zero
	best, worst := &reports[0], &reports[0]
	for i := range reports {
		r := &reports[i]
		sum = sum.Add(r.TotalLossGain)
		if r.TotalLossGain.GreaterThan(best.TotalLossGain) {
			best = r
		}
		if r.TotalLossGain.LessThan(worst.TotalLossGain) {
			worst = r
		}
	}
	stats.AvgDailyGain = sum.DivRound(decimal.NewFromInt(int64(len(reports))), valuation.MoneyScale)
	stats.BestDay = &DayChange{Date: best.ReportDate, LossGain: best.TotalLossGain, Percentage: best.TotalPercentage}
	stats.WorstDay = &DayChange{Date: worst.ReportDate, LossGain: worst.TotalLossGain, Percentage: worst.TotalPercentage}

	stats.Display = StatsDisplay{
		CurrentValue: formatMoney(stats.CurrentValue, stats.Currency),
		StartValue:   formatMoney(stats.StartValue, stats.Currency),
		TotalGrowth:  formatMoney(stats.TotalGrowth, stats.Currency),
		AvgDailyGain: formatMoney(stats.AvgDailyGain, stats.Currency),
	}
	return stats, nil
}

// CleanupReports deletes reports dated before today minus daysToKeep,
// together with their breakdowns. A non-positive daysToKeep uses the
// configured retention.
func (s *reportService) CleanupReports(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		daysToKeep = s.retentionDays
	}
	cutoff := reportDay(s.now()).AddDate(0, 0, -daysToKeep)

	var deleted int64
	err := runInTx(ctx, s.db, s.timeout, func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.PerformanceReport{}).
			Where("report_date < ?", cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("report_id IN ?", ids).Delete(&models.ReportAssetBreakdown{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.PerformanceReport{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}

	logger.Get().Infow("performance reports cleaned up",
		"cutoff", cutoff.Format(time.DateOnly),
		"deleted", deleted,
	)
	return deleted, nil
}

func (s *reportService) findReport(userPortfolioID string, day time.Time) (*models.PerformanceReport, error) {
	var reports []models.PerformanceReport
	if err := s.db.Preload("AssetBreakdown").
		Where("user_portfolio_id = ? AND report_date = ?", userPortfolioID, day).
		Limit(1).
		Find(&reports).Error; err != nil {
		return nil, translateDBError(err, nil, nil)
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return &reports[0], nil
}

// window resolves the date range of a query. Explicit bounds win over the period.
func (s *reportService) window(q ReportQuery) (time.Time, time.Time) {
	today := reportDay(s.now())
	end := today
	if q.End != nil {
		end = reportDay(*q.End)
	}
	if q.Start != nil {
		return reportDay(*q.Start), end
	}

	switch q.Period {
	case PeriodWeekly:
		return today.AddDate(0, 0, -7), end
	case PeriodMonthly:
		return today.AddDate(0, -1, 0), end
	default:
		return today.AddDate(0, 0, -1), end
	}
}

func (s *reportService) currencyFor(userPortfolioID string) string {
	var wallet models.Wallet
	err := s.db.Joins("JOIN user_portfolios ON user_portfolios.user_id = wallets.user_id").
		Where("user_portfolios.id = ?", userPortfolioID).
		First(&wallet).Error
	if err != nil || wallet.Currency == "" {
		return s.currency
	}
	return wallet.Currency
}

// buildReport aggregates the holdings of up into a report with one
// breakdown row per asset class.
func buildReport(up *models.UserPortfolio, day time.Time) (*models.PerformanceReport, error) {
	type bucket struct {
		holdings int
		cash     decimal.Decimal
	}
	buckets := make(map[models.AssetClass]*bucket, len(models.AssetClasses))
	for _, class := range models.AssetClasses {
		buckets[class] = &bucket{cash: decimal.Zero}
	}

	totalCost, totalClose, totalLossGain := decimal.Zero, decimal.Zero, decimal.Zero
	for i := range up.UserAssets {
		h := &up.UserAssets[i]
		if h.PortfolioAsset == nil || h.PortfolioAsset.Asset == nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer,
				fmt.Errorf("holding %s has no backing asset", h.ID))
		}
		totalCost = totalCost.Add(h.CostPrice)
		totalClose = totalClose.Add(h.CloseValue)
		totalLossGain = totalLossGain.Add(h.LossGain)

		b := buckets[ClassifyAsset(h.PortfolioAsset.Asset)]
		b.holdings++
		b.cash = b.cash.Add(h.CloseValue)
	}

	report := &models.PerformanceReport{
		UserPortfolioID: up.ID,
		ReportDate:      day,
		TotalCostPrice:  totalCost,
		TotalCloseValue: totalClose,
		TotalLossGain:   totalLossGain,
		TotalPercentage: valuation.Percentage(totalLossGain, totalCost),
		AssetBreakdown:  make([]models.ReportAssetBreakdown, 0, len(models.AssetClasses)),
	}
	for _, class := range models.AssetClasses {
		b := buckets[class]
		report.AssetBreakdown = append(report.AssetBreakdown, models.ReportAssetBreakdown{
			AssetClass:     class,
			Holdings:       b.holdings,
			TotalCashValue: b.cash,
			Percentage:     valuation.Percentage(b.cash, totalClose),
		})
	}
	return report, nil
}

// ClassifyAsset buckets an asset for reporting. An explicit asset class
// wins; otherwise symbol, description and sector keywords decide, falling
// back to EQUITIES.
func ClassifyAsset(asset *models.Asset) models.AssetClass {
	if asset.AssetClass != nil && asset.AssetClass.IsValid() {
		return *asset.AssetClass
	}

	symbol := strings.ToLower(asset.Symbol)
	description := strings.ToLower(asset.Description)
	sector := strings.ToLower(asset.Sector)

	switch {
	case strings.Contains(description, "etf"),
		strings.Contains(description, "exchange traded fund"),
		etfSymbols[symbol]:
		return models.AssetClassETFs
	case strings.Contains(sector, "real estate"),
		strings.Contains(sector, "reit"),
		strings.Contains(description, "reit"):
		return models.AssetClassREITs
	case strings.Contains(sector, "bond"),
		strings.Contains(symbol, "bond"),
		strings.Contains(description, "bond"),
		strings.Contains(description, "treasury"):
		return models.AssetClassBonds
	case symbol == "cash", description == "cash", symbol == "usd":
		return models.AssetClassCash
	}
	return models.AssetClassEquities
}

// reportDay truncates t to midnight UTC.
func reportDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// formatMoney renders amount in currency's minor units, e.g. "$1,234.50".
func formatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
