package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// Cell dates are day-first. Only the two separators that the activity
// formatter and manual sheet edits produce are recognized.
const (
	dateLayoutSlash = "02/01/2006"
	dateLayoutDot   = "02.01.2006"
)

// DateFormatError reports a cell value that could not be parsed as a date.
type DateFormatError struct {
	Value string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("unrecognized date format: %q", e.Value)
}

// ParseDate parses a normalized cell value as a day-first calendar date.
// Values using "/" or "." separators are accepted; anything else fails with a
// *DateFormatError carrying the offending string.
func ParseDate(s string) (time.Time, error) {
	s = Normalize(s)

	var layout string
	switch {
	case strings.Contains(s, "/"):
		layout = dateLayoutSlash
	case strings.Contains(s, "."):
		layout = dateLayoutDot
	default:
		return time.Time{}, &DateFormatError{Value: s}
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, &DateFormatError{Value: s}
	}
	return t, nil
}

// DatesEqual compares two raw cell values as calendar dates. When both values
// parse, the dates are compared; when either fails to parse, it falls back to
// comparing the normalized strings. It never fails: parse errors are
// downgraded to the string comparison, by contract.
func DatesEqual(a, b string) bool {
	da, errA := ParseDate(a)
	db, errB := ParseDate(b)
	if errA == nil && errB == nil {
		return da.Equal(db)
	}
	return Normalize(a) == Normalize(b)
}

// ValuesEqual compares an existing cell against a new value for all non-date
// mapped fields. Identical raw strings short-circuit before any normalization.
func ValuesEqual(existing, new string) bool {
	if existing == new {
		return true
	}
	return Normalize(existing) == Normalize(new)
}
