// Package reconcile implements the core sheet reconciliation logic: deciding,
// per imported activity, whether to update an existing worksheet row in place
// or append a new one, and computing the minimal set of cell writes needed.
// Comparisons are normalization-aware so that formatting artifacts introduced
// by the spreadsheet backend never count as user-visible changes.
package reconcile

import "strings"

// Normalize strips the leading single-quote marker Google Sheets prepends to a
// cell to force text formatting. All other values are returned unchanged.
func Normalize(cell string) string {
	return strings.TrimPrefix(cell, "'")
}
