// Package utils provides shared utility functions.
package utils

import (
	"fmt"
)

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPnL formats a profit/loss amount with an explicit sign.
func FormatPnL(pnl float64) string {
	if pnl > 0 {
		return fmt.Sprintf("+%.2f", pnl)
	}
	return fmt.Sprintf("%.2f", pnl)
}

// FormatPrice formats a price with five significant decimals, the
// convention for FX quotes.
func FormatPrice(price float64) string {
	return fmt.Sprintf("%.5f", price)
}

// FormatRatio formats a unitless ratio such as profit factor or Sharpe.
func FormatRatio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
