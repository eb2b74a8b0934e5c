package receiving

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	moneyPlaces = 2
	// unitPricePlaces keeps derived per-unit prices precise enough that multiplying back by
	// a pack denominator stays within one minor currency unit.
	unitPricePlaces = 6
	quantityPlaces  = 4
	ratePlaces      = 4
)

var hundred = decimal.NewFromInt(100)

// Coerce converts loosely typed input into a decimal. Malformed input degrades to zero.
func Coerce(v any) decimal.Decimal {
	switch n := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return n
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero
		}
		return *n
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(n)
	case float32:
		return Coerce(float64(n))
	case int:
		return decimal.NewFromInt(int64(n))
	case int32:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case json.Number:
		return Coerce(string(n))
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.Zero
}

// CoerceInt converts loosely typed input into an integer count, truncating fractions.
func CoerceInt(v any) int64 {
	return Coerce(v).Truncate(0).IntPart()
}

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// RoundUnit rounds a derived per-unit price.
func RoundUnit(d decimal.Decimal) decimal.Decimal {
	return d.Round(unitPricePlaces)
}

// RoundQuantity rounds a stored quantity.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(quantityPlaces)
}

// FormatCurrency renders an amount with the ISO-4217 code and locale digit grouping,
// e.g. "INR 1,234.50". Unknown codes fall back to the bare grouped number.
func FormatCurrency(amount decimal.Decimal, code string, tag language.Tag) string {
	p := message.NewPrinter(tag)
	value := Round2(amount).InexactFloat64()
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return p.Sprintf("%.2f", value)
	}
	return p.Sprintf("%s %.2f", unit.String(), value)
}

// Amount is a JSON decimal that accepts numbers or numeric strings. Malformed values
// decode as zero rather than failing the request.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	a.Decimal = coerceJSON(data)
	return nil
}

// MarshalJSON renders the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// Count is a JSON integer that accepts numbers or numeric strings.
type Count int64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	*c = Count(coerceJSON(data).Truncate(0).IntPart())
	return nil
}

func coerceJSON(data []byte) decimal.Decimal {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return decimal.Zero
	}
	return Coerce(raw)
}

func percentOf(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

func fmtAmount(d decimal.Decimal) string {
	return Round2(d).StringFixed(moneyPlaces)
}
