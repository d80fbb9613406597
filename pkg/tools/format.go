package tools

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatCurrency renders a dollar amount the way an analyst would say it:
// $1.2B, $1.2M, $845K, or $1,234 for small values. Negative amounts keep
// the sign in front of the dollar symbol.
func FormatCurrency(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	switch {
	case v >= 1e9:
		return sign + "$" + trimZero(v/1e9) + "B"
	case v >= 1e6:
		return sign + "$" + trimZero(v/1e6) + "M"
	case v >= 1e4:
		return sign + "$" + trimZero(v/1e3) + "K"
	default:
		return sign + "$" + groupThousands(int64(v+0.5))
	}
}

// FormatPercent renders a percentage with one decimal place: "12.5%".
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// trimZero formats with one decimal and drops a trailing ".0".
func trimZero(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
