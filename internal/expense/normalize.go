package expense

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// maxPayeeRunes is the widest payee the template's merged cell can show.
const maxPayeeRunes = 30

// MissingFieldError reports a required field absent from the extraction payload.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required field %q is missing", e.Field)
}

// AmountFormatError reports an amount value that could not be parsed as a number.
type AmountFormatError struct {
	Value string
}

func (e *AmountFormatError) Error() string {
	return fmt.Sprintf("cannot parse amount %q", e.Value)
}

// InvalidAmountError reports an amount that parsed but is not positive.
type InvalidAmountError struct {
	Amount float64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("amount must be positive, got %v", e.Amount)
}

// Normalize coerces a loosely-shaped extraction payload into a Record.
//
// Dates in YYYY/MM/DD or YYYY-MM-DD are accepted; anything else falls back
// to today rather than failing, since receipt dates are often OCR-garbled
// and the user reviews the result before it is committed. Amounts lose
// thousands separators and yen markers before parsing. Overlong payees are
// truncated to 30 characters, not rejected.
func Normalize(raw map[string]any) (*Record, error) {
	for _, field := range []string{"date", "payee", "content", "amount"} {
		if _, ok := raw[field]; !ok {
			return nil, &MissingFieldError{Field: field}
		}
	}

	amount, err := normalizeAmount(raw["amount"])
	if err != nil {
		return nil, err
	}

	return &Record{
		Date:    normalizeDate(stringify(raw["date"])),
		Payee:   truncateRunes(strings.TrimSpace(stringify(raw["payee"])), maxPayeeRunes),
		Content: strings.TrimSpace(stringify(raw["content"])),
		Amount:  amount,
	}, nil
}

// Validate is the strict pre-commit check, run immediately before a write to
// the ledger. Unlike Normalize it rejects instead of coercing: the user may
// have hand-edited any field in the confirmation step.
func Validate(date, payee, content string, amount float64) error {
	if _, err := time.Parse("2006/01/02", date); err != nil {
		return fmt.Errorf("date must be in YYYY/MM/DD format")
	}
	if n := utf8.RuneCountInString(payee); n < 1 || n > maxPayeeRunes {
		return fmt.Errorf("payee must be 1-%d characters", maxPayeeRunes)
	}
	if content == "" {
		return fmt.Errorf("content must not be empty")
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be a positive number")
	}
	return nil
}

// normalizeDate re-serializes a date to YYYY/MM/DD, substituting today when
// the value does not parse under either accepted format.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	var layout string
	switch {
	case strings.Contains(s, "/"):
		layout = "2006/01/02"
	case strings.Contains(s, "-"):
		layout = "2006-01-02"
	default:
		return time.Now().Format("2006/01/02")
	}
	d, err := time.Parse(layout, s)
	if err != nil {
		return time.Now().Format("2006/01/02")
	}
	return d.Format("2006/01/02")
}

// currencyMarkers are stripped from amount strings before numeric parsing.
var currencyMarkers = []string{",", "，", "¥", "￥", "円"}

func normalizeAmount(v any) (float64, error) {
	original := stringify(v)
	s := original
	for _, marker := range currencyMarkers {
		s = strings.ReplaceAll(s, marker, "")
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "yen"))
	s = strings.TrimSpace(strings.TrimSuffix(s, "Yen"))

	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &AmountFormatError{Value: original}
	}
	if amount <= 0 {
		return 0, &InvalidAmountError{Amount: amount}
	}
	return amount, nil
}

// stringify renders an arbitrary payload value as text. JSON numbers arrive
// as float64; line-item arrays are joined the way the receipt would read.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, "、")
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
