// Package rank generates LexoRank-style order keys for backlog ordering.
//
// A rank is a body followed by a "|" separator and an optional bucket suffix.
// Ranks compare byte by byte. New keys are produced by shifting the last body
// byte by one. There is no carry: past '9' comes ':' and below '0' comes '/',
// which keeps previously persisted ranks stable. A body already ending in
// 0xFF (or 0x00) grows by another 0xFF (or 0x00) byte instead; the grown
// lower key sorts first only when a separator follows it.
package rank

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Separator terminates the rank body.
	Separator = "|"

	// Default is the rank given to items that carry none.
	Default = "00000|"
)

// RelativeOrder places a new item relative to existing ones.
type RelativeOrder string

const (
	Above RelativeOrder = "above"
	Below RelativeOrder = "below"
)

// ErrUnknownOrder is returned by ParseRelativeOrder.
var ErrUnknownOrder = errors.New("unknown relative order")

// ParseRelativeOrder accepts "above" or "below", ignoring case.
func ParseRelativeOrder(s string) (RelativeOrder, error) {
	switch o := RelativeOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case Above, Below:
		return o, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOrder, s)
	}
}

// HigherPriority returns a rank that sorts immediately after r.
func HigherPriority(r string) string {
	return shift(r, true)
}

// LowerPriority returns a rank that sorts immediately before r.
func LowerPriority(r string) string {
	return shift(r, false)
}

// Adjacent returns a rank for an item placed above every rank in existing
// (sorting after the highest) or below all of them. Empty ranks are ignored;
// with none left the result is Default.
func Adjacent(existing []string, order RelativeOrder) string {
	var lowest, highest string
	found := false
	for _, r := range existing {
		if r == "" {
			continue
		}
		if !found || r < lowest {
			lowest = r
		}
		if !found || r > highest {
			highest = r
		}
		found = true
	}
	if !found {
		return Default
	}
	if order == Above {
		return HigherPriority(highest)
	}
	return LowerPriority(lowest)
}

func shift(r string, up bool) string {
	body, suffix := split(r)
	if body == "" {
		body = "0"
	}

	b := []byte(body)
	last := len(b) - 1
	switch {
	case up && b[last] == 0xFF:
		b = append(b, 0xFF)
	case up:
		b[last]++
	case b[last] == 0x00:
		b = append(b, 0x00)
	default:
		b[last]--
	}
	return string(b) + suffix
}

// split separates the body from the separator and anything after it. A rank
// without a separator is all body.
func split(r string) (body, suffix string) {
	idx := strings.LastIndex(r, Separator)
	if idx < 0 {
		return r, ""
	}
	return r[:idx], r[idx:]
}
