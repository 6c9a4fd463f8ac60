package reconcile

import "fmt"

// Field identifies one of the semantic activity attributes a user can map to
// a worksheet column.
type Field string

const (
	FieldDate      Field = "date"
	FieldDistance  Field = "distance"
	FieldDuration  Field = "duration"
	FieldPace      Field = "pace"
	FieldHeartRate Field = "heart_rate"
)

// Fields lists the recognized fields in canonical order. Header rows
// synthesized for empty worksheets follow this order.
var Fields = []Field{FieldDate, FieldDistance, FieldDuration, FieldPace, FieldHeartRate}

// IsValidField reports whether name is one of the recognized mapping fields.
func IsValidField(name string) bool {
	for _, f := range Fields {
		if string(f) == name {
			return true
		}
	}
	return false
}

// HeaderNotFoundError reports a requested header that is absent from the
// worksheet's header row. The caller surfaces the header name to the user and
// preserves the requested mapping for retry.
type HeaderNotFoundError struct {
	Header string
}

func (e *HeaderNotFoundError) Error() string {
	return fmt.Sprintf("header %q not found in worksheet", e.Header)
}

// EmptyMappingError is returned when an empty worksheet needs a header row but
// no fields are mapped, so there is nothing to synthesize one from.
type EmptyMappingError struct{}

func (e *EmptyMappingError) Error() string {
	return "no field mappings provided and worksheet is empty"
}

// ResolveColumns resolves each requested field→header selection to a
// zero-based column index in the header row. The first column whose header
// exactly equals the requested header wins. A requested header missing from
// the row fails with a *HeaderNotFoundError naming it.
func ResolveColumns(headers []string, mapping map[Field]string) (map[Field]int, error) {
	columns := make(map[Field]int, len(mapping))
	for field, header := range mapping {
		idx := -1
		for i, h := range headers {
			if h == header {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, &HeaderNotFoundError{Header: header}
		}
		columns[field] = idx
	}
	return columns, nil
}

// HeaderRow builds the header row to synthesize for an empty worksheet: the
// mapped header names in canonical field order. Returns an *EmptyMappingError
// when nothing is mapped.
func HeaderRow(mapping map[Field]string) ([]string, error) {
	var headers []string
	for _, f := range Fields {
		if h, ok := mapping[f]; ok && h != "" {
			headers = append(headers, h)
		}
	}
	if len(headers) == 0 {
		return nil, &EmptyMappingError{}
	}
	return headers, nil
}
