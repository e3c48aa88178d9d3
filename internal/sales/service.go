package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kasirku/kasirku/internal/platform/httpx"
	"github.com/kasirku/kasirku/internal/products"
	"github.com/kasirku/kasirku/internal/shared"
)

var errTransactionNumberTaken = errors.New("sales: transaction number collision")

const numberAttempts = 3

// IdempotencyGuard claims request keys so retried checkouts are not applied
// twice. shared.IdempotencyStore satisfies it.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Release(ctx context.Context, key string) error
}

// ChangeNotifier is told when completed sales change so derived data such as
// cached reports can be invalidated.
type ChangeNotifier interface {
	Bump(ctx context.Context) error
}

// SaleObserver records sales for metrics. observability.Metrics satisfies it.
type SaleObserver interface {
	ObserveSale(paymentMethod, status string, amount float64)
}

// Service handles sales business logic.
type Service struct {
	repo        RepositoryPort
	idempotency IdempotencyGuard
	logger      *slog.Logger
	notifier    ChangeNotifier
	lowStock    products.LowStockNotifier
	observer    SaleObserver
	now         func() time.Time
	newNumber   func(time.Time) string
}

// NewService creates a new sales service. idempotency may be nil.
func NewService(repo RepositoryPort, idempotency IdempotencyGuard, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		idempotency: idempotency,
		logger:      logger,
		now:         time.Now,
		newNumber:   NewTransactionNumber,
	}
}

// SetChangeNotifier registers n to be bumped after sales are created or voided.
func (s *Service) SetChangeNotifier(n ChangeNotifier) {
	s.notifier = n
}

// SetLowStockNotifier registers n for sales that leave a product at or below
// its alert level.
func (s *Service) SetLowStockNotifier(n products.LowStockNotifier) {
	s.lowStock = n
}

// SetObserver registers o to count created and voided sales.
func (s *Service) SetObserver(o SaleObserver) {
	s.observer = o
}

func (s *Service) observe(trx *Transaction) {
	if s.observer != nil {
		s.observer.ObserveSale(string(trx.PaymentMethod), string(trx.Status), trx.TotalAmount)
	}
}

func (s *Service) notify(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Bump(ctx); err != nil {
		s.logger.Warn("notify sales change", slog.Any("error", err))
	}
}

// ============================================================================
// CHECKOUT
// ============================================================================

// CreateTransaction prices the cart from current product rows, decrements
// stock and stores the sale in one database transaction.
func (s *Service) CreateTransaction(ctx context.Context, cashierID string, req CreateTransactionRequest, idempotencyKey string) (*Transaction, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	method := PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", httpx.ErrValidation, req.PaymentMethod)
	}

	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, "sales"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, ErrDuplicateOrder
			}
			return nil, fmt.Errorf("sales: claim idempotency key: %w", err)
		}
	}

	var (
		trx *Transaction
		low bool
		err error
	)
	for attempt := 0; attempt < numberAttempts; attempt++ {
		trx, low, err = s.checkout(ctx, cashierID, method, req)
		if !errors.Is(err, errTransactionNumberTaken) {
			break
		}
	}
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			if relErr := s.idempotency.Release(ctx, idempotencyKey); relErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", relErr))
			}
		}
		return nil, err
	}

	s.logger.Info("transaction created",
		slog.String("transaction_number", trx.TransactionNumber),
		slog.String("cashier_id", cashierID),
		slog.Float64("total", trx.TotalAmount),
		slog.Int("items", trx.ItemCount))
	s.observe(trx)
	s.notify(ctx)
	if low {
		products.NotifyLowStock(ctx, s.lowStock, s.logger)
	}
	return trx, nil
}

// checkout runs one attempt. low reports whether any line left its product
// at or below the alert level.
func (s *Service) checkout(ctx context.Context, cashierID string, method PaymentMethod, req CreateTransactionRequest) (*Transaction, bool, error) {
	now := s.now().UTC()
	trx := Transaction{
		ID:                uuid.NewString(),
		TransactionNumber: s.newNumber(s.now()),
		CashierID:         cashierID,
		CustomerID:        req.CustomerID,
		DiscountPercent:   req.DiscountPercent,
		TaxPercent:        req.TaxPercent,
		PaymentMethod:     method,
		PaymentStatus:     PaymentStatusCompleted,
		Status:            StatusCompleted,
		Notes:             strings.TrimSpace(req.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	low := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		low = false
		items := make([]Item, 0, len(req.Items))
		for _, line := range req.Items {
			product, moved, err := products.MoveStock(ctx, tx, products.MovementRequest{
				ProductID:     line.ProductID,
				Type:          products.MovementSale,
				Delta:         -line.Quantity,
				ReferenceID:   trx.ID,
				ReferenceType: "transaction",
				UserID:        cashierID,
			})
			if err != nil {
				return err
			}
			if moved.NewStock <= product.MinStockAlert {
				low = true
			}
			gross, discount, final := CalculateLine(line.Quantity, product.SellPrice, line.DiscountPercent, line.DiscountAmount)
			items = append(items, Item{
				ID:              uuid.NewString(),
				TransactionID:   trx.ID,
				ProductID:       product.ID,
				ProductName:     product.Name,
				ProductSKU:      product.SKU,
				Quantity:        line.Quantity,
				UnitPrice:       product.SellPrice,
				TotalPrice:      gross,
				DiscountAmount:  discount,
				DiscountPercent: line.DiscountPercent,
				FinalPrice:      final,
				CostPrice:       product.CostPrice,
				Taxable:         product.IsTaxable,
				CreatedAt:       now,
			})
			trx.ItemCount += line.Quantity
		}

		totals := CalculateTotals(items, req.DiscountPercent, req.TaxPercent)
		trx.Subtotal = totals.Subtotal
		trx.DiscountAmount = totals.DiscountAmount
		trx.TaxAmount = totals.TaxAmount
		trx.TotalAmount = totals.Total

		paid := round2(req.AmountPaid)
		if paid == 0 && method != PaymentCash {
			paid = trx.TotalAmount
		}
		if paid < trx.TotalAmount {
			return fmt.Errorf("%w: total %.2f, paid %.2f", ErrUnderpaid, trx.TotalAmount, paid)
		}
		trx.AmountPaid = paid
		trx.ChangeAmount = round2(paid - trx.TotalAmount)

		if err := tx.InsertTransaction(ctx, trx); err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, items); err != nil {
			return err
		}
		trx.Items = items
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &trx, low, nil
}

// ============================================================================
// QUERIES
// ============================================================================

// GetTransaction returns a transaction with its items.
func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	trx, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &trx, nil
}

// ListTransactions returns transactions matching filter.
func (s *Service) ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	return s.repo.List(ctx, filter)
}

// ============================================================================
// CHANGES
// ============================================================================

// UpdateTransaction edits notes or moves between pending and completed.
// Cancelled and refunded transactions are final.
func (s *Service) UpdateTransaction(ctx context.Context, id string, req UpdateTransactionRequest) (*Transaction, error) {
	var updated Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trx, err := tx.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		if trx.Status == StatusCancelled || trx.Status == StatusRefunded {
			return fmt.Errorf("%w: transaction is %s", ErrInvalidStatus, trx.Status)
		}
		if req.Notes != nil {
			trx.Notes = strings.TrimSpace(*req.Notes)
		}
		if req.Status != nil {
			next := Status(*req.Status)
			if next != StatusPending && next != StatusCompleted {
				return fmt.Errorf("%w: cannot set status %s", ErrInvalidStatus, next)
			}
			trx.Status = next
			if next == StatusPending {
				trx.PaymentStatus = PaymentStatusPending
			} else {
				trx.PaymentStatus = PaymentStatusCompleted
			}
		}
		if err := tx.UpdateTransaction(ctx, trx); err != nil {
			return err
		}
		updated = trx
		return nil
	})
	if err != nil {
		return nil, err
	}
	if req.Status != nil {
		s.notify(ctx)
	}
	return &updated, nil
}

// VoidTransaction cancels a sale and returns its stock.
func (s *Service) VoidTransaction(ctx context.Context, actorID, id, reason string) (*Transaction, error) {
	var voided Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trx, err := tx.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		if trx.Status == StatusCancelled || trx.Status == StatusRefunded {
			return fmt.Errorf("%w: transaction is %s", ErrInvalidStatus, trx.Status)
		}
		for _, it := range trx.Items {
			if _, _, err := products.MoveStock(ctx, tx, products.MovementRequest{
				ProductID:     it.ProductID,
				Type:          products.MovementReturn,
				Delta:         it.Quantity,
				ReferenceID:   trx.ID,
				ReferenceType: "transaction",
				UserID:        actorID,
				Reason:        reason,
			}); err != nil {
				return err
			}
		}
		trx.Status = StatusCancelled
		trx.PaymentStatus = PaymentStatusRefunded
		if err := tx.UpdateTransaction(ctx, trx); err != nil {
			return err
		}
		voided = trx
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("transaction voided",
		slog.String("transaction_number", voided.TransactionNumber),
		slog.String("actor_id", actorID))
	s.observe(&voided)
	s.notify(ctx)
	return &voided, nil
}
