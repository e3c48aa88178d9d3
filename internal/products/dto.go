package products

type CreateInput struct {
	Name          string  `json:"name" validate:"required,max=255"`
	SKU           string  `json:"sku" validate:"required,max=100"`
	Barcode       string  `json:"barcode" validate:"omitempty,max=100"`
	CategoryID    string  `json:"categoryId" validate:"omitempty,uuid"`
	Description   string  `json:"description"`
	CostPrice     float64 `json:"costPrice" validate:"gte=0"`
	SellPrice     float64 `json:"sellPrice" validate:"gte=0"`
	StockQuantity int     `json:"stockQuantity" validate:"gte=0"`
	MinStockAlert *int    `json:"minStockAlert" validate:"omitempty,gte=0"`
	Unit          string  `json:"unit" validate:"omitempty,max=20"`
	IsTaxable     *bool   `json:"isTaxable"`
}

// UpdateInput changes catalogue fields. Stock is only changed through
// adjustments so every change leaves a ledger row.
type UpdateInput struct {
	Name          *string  `json:"name" validate:"omitempty,min=1,max=255"`
	SKU           *string  `json:"sku" validate:"omitempty,min=1,max=100"`
	Barcode       *string  `json:"barcode" validate:"omitempty,max=100"`
	CategoryID    *string  `json:"categoryId" validate:"omitempty,uuid"`
	Description   *string  `json:"description"`
	CostPrice     *float64 `json:"costPrice" validate:"omitempty,gte=0"`
	SellPrice     *float64 `json:"sellPrice" validate:"omitempty,gte=0"`
	MinStockAlert *int     `json:"minStockAlert" validate:"omitempty,gte=0"`
	Unit          *string  `json:"unit" validate:"omitempty,min=1,max=20"`
	IsTaxable     *bool    `json:"isTaxable"`
}

type AdjustStockInput struct {
	Quantity int    `json:"quantity" validate:"required,ne=0"`
	Type     string `json:"type" validate:"omitempty,oneof=adjustment purchase damage return"`
	Reason   string `json:"reason" validate:"omitempty,max=100"`
	Notes    string `json:"notes"`
}
