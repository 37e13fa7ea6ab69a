package writeback

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FieldKind is the value type a remote field accepts.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindNumber   FieldKind = "number"
	KindDate     FieldKind = "date"
	KindDateTime FieldKind = "datetime"
)

// Default layouts used when a field does not declare its own.
const (
	DefaultDateLayout     = "2006-01-02"
	DefaultDateTimeLayout = time.RFC3339
)

// Value is a coerced field value ready to be sent to a connector.
type Value struct {
	Kind   FieldKind
	Text   string
	Number float64
}

// dateLayouts lists accepted input formats in priority order: ISO 8601 first,
// then the unambiguous numeric forms, then US month-first and finally
// day-first forms.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
}

// ParseDate parses s with the first accepted layout that matches.
//
// Inputs carrying an offset keep it, so formatting the result again yields
// the calendar date that was written.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Coerce converts raw into the representation a field of kind expects.
// Layout formats date and datetime values; empty selects the default for the
// kind. Text and unknown kinds pass raw through unchanged.
func Coerce(raw string, kind FieldKind, layout string) (Value, error) {
	switch kind {
	case KindNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return Value{}, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
		}
		return Value{Kind: KindNumber, Text: strconv.FormatFloat(n, 'f', -1, 64), Number: n}, nil

	case KindDate, KindDateTime:
		t, err := ParseDate(raw)
		if err != nil {
			return Value{}, err
		}
		if layout == "" {
			layout = DefaultDateLayout
			if kind == KindDateTime {
				layout = DefaultDateTimeLayout
			}
		}
		return Value{Kind: kind, Text: t.Format(layout)}, nil

	default:
		return Value{Kind: KindText, Text: raw}, nil
	}
}
