package pricing

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var labelPrinter = message.NewPrinter(language.AmericanEnglish)

// FromPriceLabel renders cents as the storefront "From $X.XX" label.
func FromPriceLabel(cents int64) string {
	return labelPrinter.Sprintf("From $%.2f", float64(cents)/100)
}
