package exporter

import (
	"fmt"
	"strconv"
)

// formatFloat formats a float64 for CSV output at full precision, so a
// report can be parsed back to the exact estimate.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return fmt.Sprintf("%d", i)
}
