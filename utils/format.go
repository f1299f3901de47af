// utils/format.go
package utils

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCredits renders an amount with digit grouping, e.g. "1,250 credits".
func FormatCredits(n int64) string {
	if n == 1 || n == -1 {
		return printer.Sprintf("%d credit", n)
	}
	return printer.Sprintf("%d credits", n)
}
