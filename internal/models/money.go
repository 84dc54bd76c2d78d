package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor currency units (cents).
type Money int64

// ParseMoney accepts "1500", "1500.5", "1,500.50" and a leading minus sign.
// More than two decimal places is an error.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("invalid amount %q: at most two decimal places", s)
	}

	var units int64
	if whole != "" {
		w, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || w < 0 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		if w > math.MaxInt64/100 {
			return 0, fmt.Errorf("amount %q out of range", s)
		}
		units = w * 100
	}
	if frac != "" {
		for len(frac) < 2 {
			frac += "0"
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		units += f
	}

	if neg {
		units = -units
	}
	return Money(units), nil
}

// Float returns the amount in major units.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// String renders the amount with two decimals and no grouping, e.g. "-1234.50".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Format renders the amount the way receipts and listings show it: "KSh 1,234.50".
func (m Money) Format(currency string) string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s %s%s.%02d", currency, sign, groupThousands(v/100), v%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Float(), 'f', -1, 64)), nil
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
