package products

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kasirku/kasirku/internal/shared"
)

// StockWriter is the transactional surface needed to move stock. LockProduct
// must hold the row until the surrounding transaction ends.
type StockWriter interface {
	LockProduct(ctx context.Context, id string) (Product, error)
	SetStock(ctx context.Context, id string, stock int) error
	InsertMovement(ctx context.Context, m StockMovement) error
}

// MovementRequest describes a stock change to apply.
type MovementRequest struct {
	ProductID     string
	Type          MovementType
	Delta         int
	ReferenceID   string
	ReferenceType string
	UserID        string
	Reason        string
	Notes         string
}

// MoveStock locks the product, applies the delta and appends a ledger row.
// It returns the product as it was before the move. Stock never goes
// negative.
func MoveStock(ctx context.Context, w StockWriter, req MovementRequest) (Product, StockMovement, error) {
	if req.Delta == 0 {
		return Product{}, StockMovement{}, errors.New("products: zero stock movement")
	}
	p, err := w.LockProduct(ctx, req.ProductID)
	if err != nil {
		return Product{}, StockMovement{}, err
	}
	if req.Type == MovementSale && !p.IsActive {
		return Product{}, StockMovement{}, fmt.Errorf("%w: %s", ErrInactiveProduct, p.SKU)
	}
	next := p.StockQuantity + req.Delta
	if next < 0 {
		return Product{}, StockMovement{}, fmt.Errorf("%w: %s has %d", ErrInsufficientStock, p.SKU, p.StockQuantity)
	}
	if err := w.SetStock(ctx, p.ID, next); err != nil {
		return Product{}, StockMovement{}, err
	}
	m := StockMovement{
		ID:            uuid.NewString(),
		ProductID:     p.ID,
		Type:          req.Type,
		Quantity:      req.Delta,
		PreviousStock: p.StockQuantity,
		NewStock:      next,
		UnitCost:      p.CostPrice,
		TotalValue:    round2(math.Abs(float64(req.Delta)) * p.CostPrice),
		ReferenceID:   req.ReferenceID,
		ReferenceType: req.ReferenceType,
		UserID:        req.UserID,
		Reason:        req.Reason,
		Notes:         req.Notes,
		CreatedAt:     time.Now().UTC(),
	}
	if err := w.InsertMovement(ctx, m); err != nil {
		return Product{}, StockMovement{}, err
	}
	return p, m, nil
}

// TxStore implements StockWriter on an open pgx transaction. Other packages
// embed it to move stock inside their own transactions.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps tx.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

// LockProduct selects the product row FOR UPDATE.
func (s *TxStore) LockProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(s.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

// SetStock overwrites stock_quantity.
func (s *TxStore) SetStock(ctx context.Context, id string, stock int) error {
	_, err := s.tx.Exec(ctx, `UPDATE products SET stock_quantity = $2, updated_at = NOW() WHERE id = $1`, id, stock)
	return err
}

// InsertMovement appends a stock_movements row.
func (s *TxStore) InsertMovement(ctx context.Context, m StockMovement) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_movements
		(id, product_id, type, quantity, previous_stock, new_stock, unit_cost, total_value,
		 reference_id, reference_type, user_id, reason, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid, NULLIF($10, ''), NULLIF($11, '')::uuid, NULLIF($12, ''), NULLIF($13, ''), $14)`,
		m.ID, m.ProductID, string(m.Type), m.Quantity, m.PreviousStock, m.NewStock, m.UnitCost, m.TotalValue,
		m.ReferenceID, m.ReferenceType, m.UserID, m.Reason, m.Notes, m.CreatedAt)
	return err
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var _ StockWriter = (*TxStore)(nil)
