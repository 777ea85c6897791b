// Package format renders amounts, dates and badges for dashboard payloads.
// Values are stored raw and only formatted here.
package format

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// Currency formats amount in en-US grouping with no fraction digits,
// e.g. 45000 -> "$45,000". Unknown codes fall back to USD.
func Currency(amount float64, code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		unit = currency.USD
	}
	symbol, ok := symbols[unit.String()]
	if !ok {
		symbol = unit.String() + " "
	}
	rounded := int64(math.Round(amount))
	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}
	return sign + symbol + printer.Sprintf("%d", rounded)
}

// CurrencyPtr formats an optional amount; nil renders as zero.
func CurrencyPtr(amount *float64, code string) string {
	if amount == nil {
		return Currency(0, code)
	}
	return Currency(*amount, code)
}

// ParseCurrency reads back a string produced by Currency.
func ParseCurrency(s string) (float64, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strconv.ParseFloat(b.String(), 64)
}

// ParseNumber parses s as a float, returning def when it is not a number.
func ParseNumber(s string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return def
	}
	return v
}

// Compact shortens large amounts for chart ticks: 1.2M, 45.0k.
func Compact(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000_000:
		return strconv.FormatFloat(v/1_000_000_000, 'f', 1, 64) + "B"
	case abs >= 1_000_000:
		return strconv.FormatFloat(v/1_000_000, 'f', 1, 64) + "M"
	case abs >= 1_000:
		return strconv.FormatFloat(v/1_000, 'f', 1, 64) + "k"
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

const (
	isoDate     = "2006-01-02"
	displayDate = "Jan 2, 2006"
	displayTime = "Jan 2, 2006, 03:04 PM"
)

var dateLayouts = []string{
	isoDate,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
	displayDate,
}

// ParseDate accepts the date shapes the backend and the forms produce.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Date renders t as "Jan 2, 2006". The zero time renders empty.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(displayDate)
}

// DateString formats a stored date string, or returns "" if unparseable.
func DateString(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return ""
	}
	return Date(t)
}

// DateTime renders t with minutes.
func DateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(displayTime)
}

// ToISODate normalises s to YYYY-MM-DD.
func ToISODate(s string) (string, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	return t.Format(isoDate), true
}

// StatusColor maps an order or invoice status to its badge class.
func StatusColor(status string) string {
	switch status {
	case "Active":
		return "badge-blue"
	case "Completed", "Paid":
		return "badge-green"
	case "Pending":
		return "badge-yellow"
	case "Overdue":
		return "badge-red"
	default:
		return "badge-gray"
	}
}

// SourceIcon maps an intake channel to its icon name.
func SourceIcon(channel string) string {
	switch channel {
	case "Email":
		return "mail"
	case "Telegram":
		return "send"
	case "Chat":
		return "message-circle"
	case "Web":
		return "globe"
	default:
		return "file"
	}
}
