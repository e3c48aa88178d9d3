package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasirku/kasirku/internal/platform/db"
	"github.com/kasirku/kasirku/internal/products"
	"github.com/kasirku/kasirku/internal/shared"
)

// RepositoryPort is the persistence surface used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]Transaction, int, error)
}

// TxRepository exposes transactional operations. Stock moves go through the
// embedded products.StockWriter so sales and adjustments share one ledger.
type TxRepository interface {
	products.StockWriter
	InsertTransaction(ctx context.Context, trx Transaction) error
	InsertItems(ctx context.Context, items []Item) error
	LockTransaction(ctx context.Context, id string) (Transaction, error)
	UpdateTransaction(ctx context.Context, trx Transaction) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx wraps callback in a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxStore: products.NewTxStore(tx), tx: tx})
	})
}

// queryer is satisfied by both the pool and an open transaction.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const transactionColumns = `id, transaction_number, cashier_id, COALESCE(customer_id::text, ''),
	subtotal, COALESCE(discount_amount, 0), COALESCE(discount_percent, 0), COALESCE(tax_amount, 0), COALESCE(tax_percent, 0),
	total_amount, amount_paid, COALESCE(change_amount, 0), payment_method, COALESCE(payment_status, 'completed'),
	item_count, COALESCE(status, 'completed'), COALESCE(notes, ''), created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t                         Transaction
		method, payStatus, status string
	)
	err := row.Scan(&t.ID, &t.TransactionNumber, &t.CashierID, &t.CustomerID,
		&t.Subtotal, &t.DiscountAmount, &t.DiscountPercent, &t.TaxAmount, &t.TaxPercent,
		&t.TotalAmount, &t.AmountPaid, &t.ChangeAmount, &method, &payStatus,
		&t.ItemCount, &status, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Transaction{}, err
	}
	t.PaymentMethod = PaymentMethod(method)
	t.PaymentStatus = PaymentStatus(payStatus)
	t.Status = Status(status)
	return t, nil
}

func loadItems(ctx context.Context, q queryer, transactionID string) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, transaction_id, product_id, product_name, product_sku, quantity::int,
		unit_price, total_price, COALESCE(discount_amount, 0), COALESCE(discount_percent, 0), final_price,
		COALESCE(cost_price, 0), created_at
		FROM transaction_items WHERE transaction_id = $1 ORDER BY created_at, id`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.ProductID, &it.ProductName, &it.ProductSKU, &it.Quantity,
			&it.UnitPrice, &it.TotalPrice, &it.DiscountAmount, &it.DiscountPercent, &it.FinalPrice,
			&it.CostPrice, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func getTransaction(ctx context.Context, q queryer, id string, lock bool) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	t, err := scanTransaction(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, shared.ErrNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	t.Items, err = loadItems(ctx, q, id)
	return t, err
}

// Get fetches a transaction with its items.
func (r *Repository) Get(ctx context.Context, id string) (Transaction, error) {
	return getTransaction(ctx, r.pool, id, false)
}

// List returns transactions newest first, without items.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	var (
		conditions []string
		args       []any
	)
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if filter.CashierID != "" {
		args = append(args, filter.CashierID)
		conditions = append(conditions, fmt.Sprintf("cashier_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, max(filter.Offset, 0))
	query := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, whereClause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

type txRepo struct {
	*products.TxStore
	tx pgx.Tx
}

func (r *txRepo) InsertTransaction(ctx context.Context, t Transaction) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO transactions
		(id, transaction_number, cashier_id, customer_id, subtotal, discount_amount, discount_percent,
		 tax_amount, tax_percent, total_amount, amount_paid, change_amount, payment_method, payment_status,
		 item_count, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NULLIF($17, ''), $18, $18)`,
		t.ID, t.TransactionNumber, t.CashierID, t.CustomerID, t.Subtotal, t.DiscountAmount, t.DiscountPercent,
		t.TaxAmount, t.TaxPercent, t.TotalAmount, t.AmountPaid, t.ChangeAmount, string(t.PaymentMethod), string(t.PaymentStatus),
		t.ItemCount, string(t.Status), t.Notes, t.CreatedAt)
	if shared.IsUniqueViolation(err) {
		return errTransactionNumberTaken
	}
	return err
}

func (r *txRepo) InsertItems(ctx context.Context, items []Item) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`INSERT INTO transaction_items
			(id, transaction_id, product_id, product_name, product_sku, quantity, unit_price, total_price,
			 discount_amount, discount_percent, final_price, cost_price, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			it.ID, it.TransactionID, it.ProductID, it.ProductName, it.ProductSKU, it.Quantity, it.UnitPrice, it.TotalPrice,
			it.DiscountAmount, it.DiscountPercent, it.FinalPrice, it.CostPrice, it.CreatedAt)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepo) LockTransaction(ctx context.Context, id string) (Transaction, error) {
	return getTransaction(ctx, r.tx, id, true)
}

func (r *txRepo) UpdateTransaction(ctx context.Context, t Transaction) error {
	tag, err := r.tx.Exec(ctx, `UPDATE transactions
		SET status = $2, payment_status = $3, notes = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $1`, t.ID, string(t.Status), string(t.PaymentStatus), t.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
