package domain

import (
	"strconv"
	"strings"
)

// FormatMoney renders an amount with space separated thousand groups, e.g. "12 000 so'm".
func FormatMoney(amount int64, sign string) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}

	if sign != "" {
		b.WriteByte(' ')
		b.WriteString(sign)
	}
	return b.String()
}

// ParseAmount reads a positive amount typed by a user. Spaces, underscores
// and commas used as thousand separators are ignored.
func ParseAmount(s string) (int64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', ',', '\u00a0':
			return -1
		}
		return r
	}, strings.TrimSpace(s))

	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
