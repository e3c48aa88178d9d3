package reports

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLocale formats amounts the way Indonesian receipts do.
const DefaultLocale = "id"

// Formatter renders amounts with locale digit grouping.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter parses locale as a BCP 47 tag, falling back to DefaultLocale.
func NewFormatter(locale string) Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Indonesian
	}
	return Formatter{printer: message.NewPrinter(tag)}
}

// Money formats v with two decimals.
func (f Formatter) Money(v float64) string {
	return f.printer.Sprintf("%.2f", v)
}

// Count formats an integer with grouping.
func (f Formatter) Count(v int) string {
	return f.printer.Sprintf("%d", v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
