package reports

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	dateLayout       = "2006-01-02"
	topProductsLimit = 5
)

// Service builds sales reports for the store's local business day.
type Service struct {
	repo      RepositoryPort
	cache     *Cache
	location  *time.Location
	formatter Formatter
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the report service. cache may be nil; a nil location
// means UTC.
func NewService(repo RepositoryPort, cache *Cache, location *time.Location, formatter Formatter, logger *slog.Logger) *Service {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, location: location, formatter: formatter, logger: logger, now: time.Now}
}

// ParseDate reads a YYYY-MM-DD date in the store's location. Empty means today.
func (s *Service) ParseDate(value string) (time.Time, error) {
	if value == "" {
		y, m, d := s.now().In(s.location).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, s.location), nil
	}
	day, err := time.ParseInLocation(dateLayout, value, s.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be %s", ErrInvalidRange, dateLayout)
	}
	return day, nil
}

// DailySummary returns the summary for the business day starting at day.
func (s *Service) DailySummary(ctx context.Context, day time.Time) (DailySummary, error) {
	from := day.In(s.location)
	to := from.AddDate(0, 0, 1)
	date := from.Format(dateLayout)

	key, err := s.cache.BuildKey(ctx, "daily", date)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.Any("error", err))
		return s.loadDaily(ctx, date, from, to)
	}
	var summary DailySummary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		return s.loadDaily(ctx, date, from, to)
	})
	return summary, err
}

func (s *Service) loadDaily(ctx context.Context, date string, from, to time.Time) (DailySummary, error) {
	totals, err := s.repo.Totals(ctx, from, to)
	if err != nil {
		return DailySummary{}, fmt.Errorf("reports: totals: %w", err)
	}
	payments, err := s.repo.PaymentBreakdown(ctx, from, to)
	if err != nil {
		return DailySummary{}, fmt.Errorf("reports: payments: %w", err)
	}
	top, err := s.repo.TopProducts(ctx, from, to, topProductsLimit)
	if err != nil {
		return DailySummary{}, fmt.Errorf("reports: top products: %w", err)
	}
	if payments == nil {
		payments = []PaymentTotal{}
	}
	if top == nil {
		top = []ProductSales{}
	}
	return DailySummary{
		Date:          date,
		Totals:        totals,
		Revenue:       totals.Revenue(),
		GrossProfit:   totals.GrossProfit(),
		AverageTicket: totals.AverageTicket(),
		Payments:      payments,
		TopProducts:   top,
		GeneratedAt:   s.now().UTC(),
	}, nil
}

// ExportDaily writes per-day totals for the inclusive range [from, to] as CSV.
func (s *Service) ExportDaily(ctx context.Context, w io.Writer, from, to time.Time) error {
	if to.Before(from) {
		return fmt.Errorf("%w: to is before from", ErrInvalidRange)
	}
	if to.Sub(from) > MaxExportDays*24*time.Hour {
		return fmt.Errorf("%w: at most %d days", ErrInvalidRange, MaxExportDays)
	}
	days, err := s.repo.DailyTotals(ctx, from, to.AddDate(0, 0, 1), s.location.String())
	if err != nil {
		return fmt.Errorf("reports: daily totals: %w", err)
	}
	return WriteDailyCSV(w, days, s.formatter)
}
