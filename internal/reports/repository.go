package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort exposes the aggregate queries used by Service. Periods are
// half open: [from, to).
type RepositoryPort interface {
	Totals(ctx context.Context, from, to time.Time) (Totals, error)
	PaymentBreakdown(ctx context.Context, from, to time.Time) ([]PaymentTotal, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error)
	DailyTotals(ctx context.Context, from, to time.Time, tz string) ([]DayTotals, error)
}

// Repository reads sales aggregates from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const totalsSelect = `COUNT(*), COALESCE(SUM(t.item_count), 0), COALESCE(SUM(t.subtotal), 0),
	COALESCE(SUM(t.discount_amount), 0), COALESCE(SUM(t.tax_amount), 0), COALESCE(SUM(t.total_amount), 0)`

func (r *Repository) Totals(ctx context.Context, from, to time.Time) (Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, `SELECT `+totalsSelect+`
		FROM transactions t
		WHERE t.status = 'completed' AND t.created_at >= $1 AND t.created_at < $2`, from, to).
		Scan(&t.Transactions, &t.ItemsSold, &t.GrossSales, &t.Discounts, &t.Tax, &t.NetSales)
	if err != nil {
		return Totals{}, err
	}
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(i.cost_price * i.quantity), 0)
		FROM transaction_items i
		JOIN transactions t ON t.id = i.transaction_id
		WHERE t.status = 'completed' AND t.created_at >= $1 AND t.created_at < $2`, from, to).
		Scan(&t.Cost)
	return t, err
}

func (r *Repository) PaymentBreakdown(ctx context.Context, from, to time.Time) ([]PaymentTotal, error) {
	rows, err := r.pool.Query(ctx, `SELECT t.payment_method, COUNT(*), COALESCE(SUM(t.total_amount), 0)
		FROM transactions t
		WHERE t.status = 'completed' AND t.created_at >= $1 AND t.created_at < $2
		GROUP BY t.payment_method
		ORDER BY t.payment_method`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PaymentTotal
	for rows.Next() {
		var p PaymentTotal
		if err := rows.Scan(&p.Method, &p.Transactions, &p.Amount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.product_id, i.product_name, i.product_sku,
			SUM(i.quantity), COALESCE(SUM(i.final_price), 0)
		FROM transaction_items i
		JOIN transactions t ON t.id = i.transaction_id
		WHERE t.status = 'completed' AND t.created_at >= $1 AND t.created_at < $2
		GROUP BY i.product_id, i.product_name, i.product_sku
		ORDER BY SUM(i.final_price) DESC, i.product_name
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProductSales
	for rows.Next() {
		var p ProductSales
		if err := rows.Scan(&p.ProductID, &p.Name, &p.SKU, &p.Quantity, &p.Revenue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) DailyTotals(ctx context.Context, from, to time.Time, tz string) ([]DayTotals, error) {
	rows, err := r.pool.Query(ctx, `WITH days AS (
			SELECT tx.*, to_char(tx.created_at AT TIME ZONE $3, 'YYYY-MM-DD') AS day
			FROM transactions tx
			WHERE tx.status = 'completed' AND tx.created_at >= $1 AND tx.created_at < $2
		), costs AS (
			SELECT d.day, SUM(i.cost_price * i.quantity) AS cost
			FROM transaction_items i
			JOIN days d ON d.id = i.transaction_id
			GROUP BY d.day
		)
		SELECT t.day, `+totalsSelect+`, COALESCE(MAX(c.cost), 0)
		FROM days t
		LEFT JOIN costs c ON c.day = t.day
		GROUP BY t.day
		ORDER BY t.day`, from, to, tz)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DayTotals
	for rows.Next() {
		var d DayTotals
		if err := rows.Scan(&d.Date, &d.Totals.Transactions, &d.Totals.ItemsSold, &d.Totals.GrossSales,
			&d.Totals.Discounts, &d.Totals.Tax, &d.Totals.NetSales, &d.Totals.Cost); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
