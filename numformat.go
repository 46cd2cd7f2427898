package mqjs

import (
	"math"
	"strconv"
	"strings"
)

func itoa(i int64) string { return strconv.FormatInt(i, 10) }

// ftoa formats a float the way Number.prototype.toString/String(n)
// must: integral values below 1e21
// print in full with no trailing ".0", everything else uses the
// shortest round-tripping decimal.
func ftoa(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0" // both zeros; String(-0) is "0"
	case math.Abs(f) >= 1e-6 && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		// Exponent form; JS writes the exponent without zero padding.
		return strings.Replace(strconv.FormatFloat(f, 'e', -1, 64), "e-0", "e-", 1)
	}
}
