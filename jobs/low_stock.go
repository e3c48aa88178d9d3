package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/kasirku/kasirku/internal/jobs"
	"github.com/kasirku/kasirku/internal/products"
)

// LowStockSource lists products at or below min_stock_alert.
// products.Service satisfies it.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]products.Product, error)
}

// LowStockAlertJob logs one warning per low product and publishes the count.
type LowStockAlertJob struct {
	Source  LowStockSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

func NewLowStockAlertJob(source LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockAlertJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockAlertJob{Source: source, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *LowStockAlertJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("low stock alert: handler not configured")
	}
	tracker := j.Metrics.Track(TaskLowStockAlert)
	items, err := j.Source.LowStock(ctx)
	if err != nil {
		j.Logger.Error("low stock scan failed", slog.Any("error", err))
		return tracker.End(err)
	}
	for _, p := range items {
		j.Logger.Warn("product stock low",
			slog.String("product_id", p.ID),
			slog.String("sku", p.SKU),
			slog.String("name", p.Name),
			slog.Int("stock", p.StockQuantity),
			slog.Int("min_stock_alert", p.MinStockAlert),
		)
	}
	j.Metrics.SetLowStock(len(items))
	j.Logger.Info("low stock scan completed", slog.Int("products", len(items)))
	return tracker.End(nil)
}
