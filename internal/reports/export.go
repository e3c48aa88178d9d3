package reports

import (
	"encoding/csv"
	"io"
)

var exportHeader = []string{
	"Date", "Transactions", "Items Sold", "Gross Sales", "Discounts",
	"Revenue", "Tax", "Net Sales", "Cost", "Gross Profit",
}

// WriteDailyCSV emits one row per day plus a total row.
func WriteDailyCSV(w io.Writer, days []DayTotals, f Formatter) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	var sum Totals
	for _, d := range days {
		if err := writer.Write(row(d.Date, d.Totals, f)); err != nil {
			return err
		}
		sum.Transactions += d.Totals.Transactions
		sum.ItemsSold += d.Totals.ItemsSold
		sum.GrossSales += d.Totals.GrossSales
		sum.Discounts += d.Totals.Discounts
		sum.Tax += d.Totals.Tax
		sum.NetSales += d.Totals.NetSales
		sum.Cost += d.Totals.Cost
	}
	if err := writer.Write(row("Total", sum, f)); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func row(label string, t Totals, f Formatter) []string {
	return []string{
		label,
		f.Count(t.Transactions),
		f.Count(t.ItemsSold),
		f.Money(t.GrossSales),
		f.Money(t.Discounts),
		f.Money(t.Revenue()),
		f.Money(t.Tax),
		f.Money(t.NetSales),
		f.Money(t.Cost),
		f.Money(t.GrossProfit()),
	}
}
