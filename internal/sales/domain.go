package sales

import (
	"fmt"
	"time"

	"github.com/kasirku/kasirku/internal/platform/httpx"
)

var (
	ErrInvalidStatus  = fmt.Errorf("sales: invalid status transition: %w", httpx.ErrConflict)
	ErrUnderpaid      = fmt.Errorf("sales: amount paid is less than total: %w", httpx.ErrValidation)
	ErrEmptyCart      = fmt.Errorf("sales: transaction has no items: %w", httpx.ErrValidation)
	ErrDuplicateOrder = fmt.Errorf("sales: request already processed: %w", httpx.ErrConflict)
)

// ============================================================================
// TRANSACTION
// ============================================================================

type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentEWallet PaymentMethod = "ewallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentEWallet:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type Transaction struct {
	ID                string        `json:"id"`
	TransactionNumber string        `json:"transactionNumber"`
	CashierID         string        `json:"cashierId"`
	CustomerID        string        `json:"customerId,omitempty"`
	Subtotal          float64       `json:"subtotal"`
	DiscountAmount    float64       `json:"discountAmount"`
	DiscountPercent   float64       `json:"discountPercent"`
	TaxAmount         float64       `json:"taxAmount"`
	TaxPercent        float64       `json:"taxPercent"`
	TotalAmount       float64       `json:"totalAmount"`
	AmountPaid        float64       `json:"amountPaid"`
	ChangeAmount      float64       `json:"changeAmount"`
	PaymentMethod     PaymentMethod `json:"paymentMethod"`
	PaymentStatus     PaymentStatus `json:"paymentStatus"`
	ItemCount         int           `json:"itemCount"`
	Status            Status        `json:"status"`
	Notes             string        `json:"notes,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
	Items             []Item        `json:"items,omitempty"`
}

type Item struct {
	ID              string    `json:"id"`
	TransactionID   string    `json:"transactionId"`
	ProductID       string    `json:"productId"`
	ProductName     string    `json:"productName"`
	ProductSKU      string    `json:"productSku"`
	Quantity        int       `json:"quantity"`
	UnitPrice       float64   `json:"unitPrice"`
	TotalPrice      float64   `json:"totalPrice"`
	DiscountAmount  float64   `json:"discountAmount"`
	DiscountPercent float64   `json:"discountPercent"`
	FinalPrice      float64   `json:"finalPrice"`
	CostPrice       float64   `json:"costPrice"`
	Taxable         bool      `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ============================================================================
// REQUESTS
// ============================================================================

type CreateItemRequest struct {
	ProductID       string  `json:"productId" validate:"required"`
	Quantity        int     `json:"quantity" validate:"required,gt=0"`
	DiscountPercent float64 `json:"discountPercent" validate:"gte=0,lte=100"`
	DiscountAmount  float64 `json:"discountAmount" validate:"gte=0"`
}

type CreateTransactionRequest struct {
	Items           []CreateItemRequest `json:"items" validate:"required,min=1,dive"`
	CustomerID      string              `json:"customerId" validate:"omitempty,uuid"`
	DiscountPercent float64             `json:"discountPercent" validate:"gte=0,lte=100"`
	TaxPercent      float64             `json:"taxPercent" validate:"gte=0,lte=100"`
	PaymentMethod   string              `json:"paymentMethod" validate:"required,oneof=cash card ewallet"`
	AmountPaid      float64             `json:"amountPaid" validate:"gte=0"`
	Notes           string              `json:"notes" validate:"omitempty,max=1000"`
}

// UpdateTransactionRequest edits bookkeeping fields. Cancellation goes
// through Void so stock is returned.
type UpdateTransactionRequest struct {
	Notes  *string `json:"notes" validate:"omitempty,max=1000"`
	Status *string `json:"status" validate:"omitempty,oneof=pending completed"`
}

type ListFilter struct {
	From      time.Time
	To        time.Time
	CashierID string
	Status    Status
	Limit     int
	Offset    int
}
