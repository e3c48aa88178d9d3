package products

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasirku/kasirku/internal/platform/db"
	"github.com/kasirku/kasirku/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	Deactivate(ctx context.Context, id string) error
	ListMovements(ctx context.Context, productID string, limit int) ([]StockMovement, error)
	LowStock(ctx context.Context) ([]Product, error)
	WithTx(ctx context.Context, fn func(context.Context, StockWriter) error) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const productColumns = `id, name, sku, COALESCE(barcode, ''), COALESCE(category_id::text, ''), COALESCE(description, ''),
	cost_price, sell_price, stock_quantity, COALESCE(min_stock_alert, 0), COALESCE(unit, 'pcs'), is_active, is_taxable,
	created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Barcode, &p.CategoryID, &p.Description,
		&p.CostPrice, &p.SellPrice, &p.StockQuantity, &p.MinStockAlert, &p.Unit, &p.IsActive, &p.IsTaxable,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}

	if !filter.IncludeInactive {
		where += ` AND is_active = TRUE`
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		where += ` AND category_id = $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR sku ILIKE $` + n + ` OR barcode ILIKE $` + n + `)`
	}
	if filter.LowStockOnly {
		where += ` AND stock_quantity <= COALESCE(min_stock_alert, 0)`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := max(filter.Offset, 0)
	args = append(args, limit, offset)
	query := `SELECT ` + productColumns + ` FROM products` + where +
		` ORDER BY name LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	created, err := scanProduct(r.db.QueryRow(ctx, `INSERT INTO products
		(id, name, sku, barcode, category_id, description, cost_price, sell_price, stock_quantity,
		 min_stock_alert, unit, is_active, is_taxable, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, '')::uuid, NULLIF($6, ''), $7, $8, $9, $10, $11, TRUE, $12, NOW(), NOW())
		RETURNING `+productColumns,
		p.ID, p.Name, p.SKU, p.Barcode, p.CategoryID, p.Description, p.CostPrice, p.SellPrice, p.StockQuantity,
		p.MinStockAlert, p.Unit, p.IsTaxable))
	if shared.IsUniqueViolation(err) {
		return Product{}, ErrSKUTaken
	}
	return created, err
}

func (r *repository) Update(ctx context.Context, p Product) (Product, error) {
	updated, err := scanProduct(r.db.QueryRow(ctx, `UPDATE products SET
		name = $2, sku = $3, barcode = NULLIF($4, ''), category_id = NULLIF($5, '')::uuid, description = NULLIF($6, ''),
		cost_price = $7, sell_price = $8, min_stock_alert = $9, unit = $10, is_taxable = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Name, p.SKU, p.Barcode, p.CategoryID, p.Description, p.CostPrice, p.SellPrice,
		p.MinStockAlert, p.Unit, p.IsTaxable))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Product{}, shared.ErrNotFound
	case shared.IsUniqueViolation(err):
		return Product{}, ErrSKUTaken
	}
	return updated, err
}

func (r *repository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListMovements(ctx context.Context, productID string, limit int) ([]StockMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT id, product_id, type, quantity::int, previous_stock::int, new_stock::int,
		COALESCE(unit_cost, 0), COALESCE(total_value, 0), COALESCE(reference_id::text, ''), COALESCE(reference_type, ''),
		COALESCE(user_id::text, ''), COALESCE(reason, ''), COALESCE(notes, ''), created_at
		FROM stock_movements WHERE product_id = $1 ORDER BY created_at DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockMovement
	for rows.Next() {
		var (
			m   StockMovement
			typ string
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &typ, &m.Quantity, &m.PreviousStock, &m.NewStock,
			&m.UnitCost, &m.TotalValue, &m.ReferenceID, &m.ReferenceType, &m.UserID, &m.Reason, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) LowStock(ctx context.Context) ([]Product, error) {
	products, _, err := r.List(ctx, ListFilter{LowStockOnly: true, Limit: 200})
	return products, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, StockWriter) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}
