package reports

import (
	"fmt"
	"time"

	"github.com/kasirku/kasirku/internal/platform/httpx"
)

// MaxExportDays bounds a CSV export range.
const MaxExportDays = 366

var ErrInvalidRange = fmt.Errorf("reports: invalid date range: %w", httpx.ErrValidation)

// Totals aggregates completed transactions over a period.
type Totals struct {
	Transactions int     `json:"transactions"`
	ItemsSold    int     `json:"itemsSold"`
	GrossSales   float64 `json:"grossSales"`
	Discounts    float64 `json:"discounts"`
	Tax          float64 `json:"tax"`
	NetSales     float64 `json:"netSales"`
	Cost         float64 `json:"cost"`
}

// Revenue is sales after discounts and before tax.
func (t Totals) Revenue() float64 {
	return round2(t.GrossSales - t.Discounts)
}

// GrossProfit is revenue less cost of goods sold.
func (t Totals) GrossProfit() float64 {
	return round2(t.Revenue() - t.Cost)
}

// AverageTicket is net sales per transaction.
func (t Totals) AverageTicket() float64 {
	if t.Transactions == 0 {
		return 0
	}
	return round2(t.NetSales / float64(t.Transactions))
}

type PaymentTotal struct {
	Method       string  `json:"method"`
	Transactions int     `json:"transactions"`
	Amount       float64 `json:"amount"`
}

type ProductSales struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku"`
	Quantity  int     `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

// DailySummary is the dashboard view of one business day.
type DailySummary struct {
	Date          string         `json:"date"`
	Totals        Totals         `json:"totals"`
	Revenue       float64        `json:"revenue"`
	GrossProfit   float64        `json:"grossProfit"`
	AverageTicket float64        `json:"averageTicket"`
	Payments      []PaymentTotal `json:"payments"`
	TopProducts   []ProductSales `json:"topProducts"`
	GeneratedAt   time.Time      `json:"generatedAt"`
}

// DayTotals is one row of a multi-day export.
type DayTotals struct {
	Date   string
	Totals Totals
}
