package products

import (
	"fmt"
	"strings"

	"github.com/kasirku/kasirku/internal/platform/httpx"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: product sku is required", httpx.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", httpx.ErrValidation)
	}
	if p.CostPrice < 0 || p.SellPrice < 0 {
		return fmt.Errorf("%w: prices must not be negative", httpx.ErrValidation)
	}
	if p.StockQuantity < 0 || p.MinStockAlert < 0 {
		return fmt.Errorf("%w: stock values must not be negative", httpx.ErrValidation)
	}
	return nil
}
