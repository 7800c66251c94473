package frame

import (
	"math"
	"strconv"
	"time"
)

// FormatValue renders a cell for text outputs (CSV, fallback string
// conversions). nil renders as the empty string.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return formatFloat(t)
	case time.Time:
		if t.Equal(Day(t)) {
			return t.Format(DateLayout)
		}
		return t.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// formatFloat keeps a trailing ".0" on integral values so float columns
// survive a CSV round trip as floats.
func formatFloat(v float64) string {
	a := math.Abs(v)
	if a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
