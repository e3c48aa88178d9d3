package products

import (
	"fmt"
	"time"

	"github.com/kasirku/kasirku/internal/platform/httpx"
)

// Errors returned by the products package.
var (
	ErrSKUTaken          = fmt.Errorf("products: sku already exists: %w", httpx.ErrDuplicate)
	ErrInsufficientStock = fmt.Errorf("products: insufficient stock: %w", httpx.ErrConflict)
	ErrInactiveProduct   = fmt.Errorf("products: product is inactive: %w", httpx.ErrConflict)
)

// Defaults applied to new products.
const (
	DefaultUnit          = "pcs"
	DefaultMinStockAlert = 10
)

type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	SKU           string    `json:"sku"`
	Barcode       string    `json:"barcode,omitempty"`
	CategoryID    string    `json:"categoryId,omitempty"`
	Description   string    `json:"description,omitempty"`
	CostPrice     float64   `json:"costPrice"`
	SellPrice     float64   `json:"sellPrice"`
	StockQuantity int       `json:"stockQuantity"`
	MinStockAlert int       `json:"minStockAlert"`
	Unit          string    `json:"unit"`
	IsActive      bool      `json:"isActive"`
	IsTaxable     bool      `json:"isTaxable"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// LowStock reports whether the product is at or below its alert threshold.
func (p Product) LowStock() bool {
	return p.StockQuantity <= p.MinStockAlert
}

type ListFilter struct {
	Search          string
	CategoryID      string
	LowStockOnly    bool
	IncludeInactive bool
	Limit           int
	Offset          int
}

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementSale       MovementType = "sale"
	MovementPurchase   MovementType = "purchase"
	MovementAdjustment MovementType = "adjustment"
	MovementReturn     MovementType = "return"
	MovementDamage     MovementType = "damage"
)

// StockMovement is one row of the stock ledger. Quantity is positive for
// stock in and negative for stock out.
type StockMovement struct {
	ID            string       `json:"id"`
	ProductID     string       `json:"productId"`
	Type          MovementType `json:"type"`
	Quantity      int          `json:"quantity"`
	PreviousStock int          `json:"previousStock"`
	NewStock      int          `json:"newStock"`
	UnitCost      float64      `json:"unitCost"`
	TotalValue    float64      `json:"totalValue"`
	ReferenceID   string       `json:"referenceId,omitempty"`
	ReferenceType string       `json:"referenceType,omitempty"`
	UserID        string       `json:"userId,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}
