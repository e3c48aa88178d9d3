package products

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/shared"
)

// LowStockNotifier is told when a stock move leaves a product at or below
// its alert level. jobs.Client satisfies it.
type LowStockNotifier interface {
	EnqueueLowStockAlert(ctx context.Context) error
}

type Service struct {
	repo     Repository
	logger   *slog.Logger
	notifier LowStockNotifier
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// SetLowStockNotifier registers n for threshold crossings.
func (s *Service) SetLowStockNotifier(n LowStockNotifier) {
	s.notifier = n
}

// NotifyLowStock enqueues a low stock scan when n is set. Failures are logged.
func NotifyLowStock(ctx context.Context, n LowStockNotifier, logger *slog.Logger) {
	if n == nil {
		return
	}
	if err := n.EnqueueLowStockAlert(ctx); err != nil {
		logger.Warn("enqueue low stock alert", slog.Any("error", err))
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	if strings.TrimSpace(id) == "" {
		return Product{}, fmt.Errorf("%w: product id required", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Product, error) {
	p := Product{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(in.Name),
		SKU:           strings.TrimSpace(in.SKU),
		Barcode:       strings.TrimSpace(in.Barcode),
		CategoryID:    in.CategoryID,
		Description:   in.Description,
		CostPrice:     round2(in.CostPrice),
		SellPrice:     round2(in.SellPrice),
		StockQuantity: in.StockQuantity,
		MinStockAlert: DefaultMinStockAlert,
		Unit:          strings.TrimSpace(in.Unit),
		IsActive:      true,
		IsTaxable:     true,
	}
	if in.MinStockAlert != nil {
		p.MinStockAlert = *in.MinStockAlert
	}
	if in.IsTaxable != nil {
		p.IsTaxable = *in.IsTaxable
	}
	if p.Unit == "" {
		p.Unit = DefaultUnit
	}
	if err := s.validate(p); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.SKU != nil {
		p.SKU = strings.TrimSpace(*in.SKU)
	}
	if in.Barcode != nil {
		p.Barcode = strings.TrimSpace(*in.Barcode)
	}
	if in.CategoryID != nil {
		p.CategoryID = *in.CategoryID
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.CostPrice != nil {
		p.CostPrice = round2(*in.CostPrice)
	}
	if in.SellPrice != nil {
		p.SellPrice = round2(*in.SellPrice)
	}
	if in.MinStockAlert != nil {
		p.MinStockAlert = *in.MinStockAlert
	}
	if in.Unit != nil {
		p.Unit = strings.TrimSpace(*in.Unit)
	}
	if in.IsTaxable != nil {
		p.IsTaxable = *in.IsTaxable
	}
	if err := s.validate(p); err != nil {
		return Product{}, err
	}
	return s.repo.Update(ctx, p)
}

// Delete deactivates the product; sales history keeps referencing it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: product id required", httpx.ErrValidation)
	}
	return s.repo.Deactivate(ctx, id)
}

// AdjustStock applies a manual stock correction and records who made it.
func (s *Service) AdjustStock(ctx context.Context, actor shared.Principal, id string, in AdjustStockInput) (StockMovement, error) {
	if in.Quantity == 0 {
		return StockMovement{}, fmt.Errorf("%w: quantity must not be zero", httpx.ErrValidation)
	}
	typ := MovementAdjustment
	if in.Type != "" {
		typ = MovementType(in.Type)
	}
	var (
		movement StockMovement
		before   Product
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, w StockWriter) error {
		p, m, err := MoveStock(ctx, w, MovementRequest{
			ProductID:     id,
			Type:          typ,
			Delta:         in.Quantity,
			ReferenceType: string(MovementAdjustment),
			UserID:        actor.UserID,
			Reason:        in.Reason,
			Notes:         in.Notes,
		})
		before, movement = p, m
		return err
	})
	if err != nil {
		return StockMovement{}, err
	}
	s.logger.Info("stock adjusted",
		slog.String("product_id", id),
		slog.Int("quantity", movement.Quantity),
		slog.Int("new_stock", movement.NewStock),
		slog.String("user_id", actor.UserID))
	if before.IsActive && movement.NewStock <= before.MinStockAlert {
		NotifyLowStock(ctx, s.notifier, s.logger)
	}
	return movement, nil
}

func (s *Service) Movements(ctx context.Context, id string, limit int) ([]StockMovement, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, id, limit)
}

// LowStock lists active products at or below their alert threshold.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.LowStock(ctx)
}
