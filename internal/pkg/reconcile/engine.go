package reconcile

// Activity is one formatted activity ready to be written to a worksheet. All
// fields are display strings produced by the activity formatter.
type Activity struct {
	Date      string `json:"date"`
	Distance  string `json:"distance"`
	Duration  string `json:"duration"`
	Pace      string `json:"pace"`
	HeartRate string `json:"heart_rate"`
	Name      string `json:"name"`
	Type      string `json:"type"`
}

// FieldValue returns the activity's value for a mapped field.
func (a Activity) FieldValue(f Field) string {
	switch f {
	case FieldDate:
		return a.Date
	case FieldDistance:
		return a.Distance
	case FieldDuration:
		return a.Duration
	case FieldPace:
		return a.Pace
	case FieldHeartRate:
		return a.HeartRate
	}
	return ""
}

// RowWrite is a whole-row range write for an appended activity. Values is
// padded to the header row's width, with non-mapped positions empty.
type RowWrite struct {
	Row    int // 1-based spreadsheet row
	Values []string
}

// CellWrite is a single-cell write for an in-place update.
type CellWrite struct {
	Row   int // 1-based spreadsheet row
	Col   int // 0-based column index
	Value string
}

// Plan is the computed set of writes for one reconciliation run, with counts
// of how the batch partitioned.
type Plan struct {
	RowWrites  []RowWrite
	CellWrites []CellWrite

	Appended  int
	Updated   int
	Unchanged int
}

// dateIndex maps existing raw date strings to their 1-based row numbers,
// preserving first-insertion order. Re-inserting an identical raw string
// keeps its position but replaces the row, so among existing rows sharing a
// raw date only the last one stays reachable for update. That shadowing
// mirrors the historical behaviour and is deliberate, if not ideal.
type dateIndex struct {
	keys []string
	rows map[string]int
}

func newDateIndex() *dateIndex {
	return &dateIndex{rows: make(map[string]int)}
}

func (ix *dateIndex) put(raw string, row int) {
	if _, ok := ix.rows[raw]; !ok {
		ix.keys = append(ix.keys, raw)
	}
	ix.rows[raw] = row
}

// lookup scans in insertion order with the date-aware comparator; an exact-key
// lookup would miss stored values that differ from the formatted date only by
// normalization artifacts or separator choice.
func (ix *dateIndex) lookup(date string) (int, bool) {
	for _, k := range ix.keys {
		if DatesEqual(k, date) {
			return ix.rows[k], true
		}
	}
	return 0, false
}

// sheetView is the engine's working copy of the worksheet: the point-in-time
// snapshot plus the writes scheduled so far in this run, so later activities
// in the batch compare against what the sheet will contain, not what it did.
type sheetView struct {
	rows [][]string
}

func newSheetView(snapshot [][]string) *sheetView {
	rows := make([][]string, len(snapshot))
	copy(rows, snapshot)
	return &sheetView{rows: rows}
}

// cell reads the 1-based row, 0-based column, treating rows beyond the view
// and missing trailing cells as empty. Rows read from the sheets API vary in
// length per row.
func (v *sheetView) cell(row, col int) string {
	if row < 1 || row > len(v.rows) || col < 0 {
		return ""
	}
	r := v.rows[row-1]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

func (v *sheetView) setCell(row, col int, value string) {
	for row > len(v.rows) {
		v.rows = append(v.rows, nil)
	}
	r := v.rows[row-1]
	if col >= len(r) {
		grown := make([]string, col+1)
		copy(grown, r)
		r = grown
	} else {
		r = append([]string(nil), r...)
	}
	r[col] = value
	v.rows[row-1] = r
}

func (v *sheetView) appendRow(row int, values []string) {
	for row > len(v.rows) {
		v.rows = append(v.rows, nil)
	}
	v.rows[row-1] = values
}

// BuildPlan partitions a formatted batch into in-place updates and appended
// rows against a point-in-time worksheet snapshot.
//
// snapshot row 0 is the header row; data row i corresponds to spreadsheet row
// i+1. columns maps each mapped field to its 0-based column index.
//
// Updates compare cell by cell and only schedule writes for cells that
// actually differ; unmapped columns are never touched, which is what keeps
// formulas and manually-added columns intact. Appends produce one full-width
// row write and immediately register their date so that later activities in
// the same batch can match them.
func BuildPlan(activities []Activity, columns map[Field]int, snapshot [][]string) *Plan {
	plan := &Plan{}
	if len(snapshot) == 0 {
		return plan
	}

	headerWidth := len(snapshot[0])
	dateCol, dateMapped := columns[FieldDate]

	index := newDateIndex()
	if dateMapped {
		for i := 1; i < len(snapshot); i++ {
			row := snapshot[i]
			if dateCol < len(row) && row[dateCol] != "" {
				index.put(row[dateCol], i+1)
			}
		}
	}

	view := newSheetView(snapshot)
	nextRow := len(snapshot) + 1

	for _, activity := range activities {
		targetRow := 0
		if dateMapped {
			if row, ok := index.lookup(activity.Date); ok {
				targetRow = row
			}
		}

		if targetRow == 0 {
			// Append: sparse mapped values are padded to the header width
			// only here, at the write boundary.
			values := make([]string, headerWidth)
			for field, col := range columns {
				if col < headerWidth {
					values[col] = activity.FieldValue(field)
				}
			}
			plan.RowWrites = append(plan.RowWrites, RowWrite{Row: nextRow, Values: values})
			plan.Appended++
			view.appendRow(nextRow, values)
			if dateMapped {
				index.put(activity.Date, nextRow)
			}
			nextRow++
			continue
		}

		changed := 0
		for _, field := range Fields {
			col, ok := columns[field]
			if !ok {
				continue
			}
			existing := view.cell(targetRow, col)
			value := activity.FieldValue(field)

			var equal bool
			if field == FieldDate {
				// An empty date cell always counts as changed so the date
				// gets written even though DatesEqual("", "") would hold.
				equal = existing != "" && DatesEqual(existing, value)
			} else {
				equal = ValuesEqual(existing, value)
			}
			if !equal {
				plan.CellWrites = append(plan.CellWrites, CellWrite{Row: targetRow, Col: col, Value: value})
				view.setCell(targetRow, col, value)
				changed++
			}
		}
		if changed > 0 {
			plan.Updated++
		} else {
			plan.Unchanged++
		}
	}

	return plan
}
