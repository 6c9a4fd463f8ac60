package database

import (
	"time"
)

// SpreadsheetConfig represents a configured target spreadsheet. SheetID may be
// empty, in which case the spreadsheet is resolved by name at import time.
type SpreadsheetConfig struct {
	ID               int       `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	SheetID          string    `json:"sheet_id" db:"sheet_id"`
	IsDefault        bool      `json:"is_default" db:"is_default"`
	IncludeDate      bool      `json:"include_date" db:"include_date"`
	IncludeDistance  bool      `json:"include_distance" db:"include_distance"`
	IncludeTime      bool      `json:"include_time" db:"include_time"`
	IncludePace      bool      `json:"include_pace" db:"include_pace"`
	IncludeHR        bool      `json:"include_hr" db:"include_hr"`
	DefaultWorksheet string    `json:"default_worksheet" db:"default_worksheet"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// FieldMapping binds one activity field to a spreadsheet header for a
// particular spreadsheet and worksheet
type FieldMapping struct {
	ID            int       `json:"id" db:"id"`
	SpreadsheetID int       `json:"spreadsheet_id" db:"spreadsheet_id"`
	WorksheetName string    `json:"worksheet_name" db:"worksheet_name"`
	FieldName     string    `json:"field_name" db:"field_name"`
	HeaderName    string    `json:"header_name" db:"header_name"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// CreateSpreadsheetRequest represents the data needed to register a spreadsheet
type CreateSpreadsheetRequest struct {
	Name             string
	SheetID          string
	IsDefault        bool
	DefaultWorksheet string
}

// UpdateSpreadsheetRequest represents the data for a full spreadsheet update
type UpdateSpreadsheetRequest struct {
	ID               int
	Name             string
	SheetID          string
	IncludeDate      bool
	IncludeDistance  bool
	IncludeTime      bool
	IncludePace      bool
	IncludeHR        bool
	DefaultWorksheet string
}
