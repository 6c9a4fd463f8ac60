package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrDefaultSpreadsheet is returned when attempting to delete the spreadsheet
// currently marked as default
var ErrDefaultSpreadsheet = errors.New("cannot delete the default spreadsheet")

// SpreadsheetRepository handles database operations for spreadsheet configurations
type SpreadsheetRepository struct {
	db *sql.DB
}

// NewSpreadsheetRepository creates a new spreadsheet repository
func NewSpreadsheetRepository(db *sql.DB) *SpreadsheetRepository {
	return &SpreadsheetRepository{db: db}
}

const spreadsheetColumns = `id, name, sheet_id, is_default, include_date, include_distance,
	   include_time, include_pace, include_hr, default_worksheet, created_at`

func scanSpreadsheet(row interface{ Scan(dest ...interface{}) error }) (*SpreadsheetConfig, error) {
	var s SpreadsheetConfig
	err := row.Scan(
		&s.ID, &s.Name, &s.SheetID, &s.IsDefault,
		&s.IncludeDate, &s.IncludeDistance, &s.IncludeTime, &s.IncludePace, &s.IncludeHR,
		&s.DefaultWorksheet, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns all spreadsheet configurations, default first then by name
func (r *SpreadsheetRepository) List(ctx context.Context) ([]*SpreadsheetConfig, error) {
	query := `
		SELECT ` + spreadsheetColumns + `
		FROM spreadsheets
		ORDER BY is_default DESC, name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*SpreadsheetConfig
	for rows.Next() {
		config, err := scanSpreadsheet(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}

	return configs, rows.Err()
}

// GetByID retrieves a spreadsheet configuration by ID.
// Returns nil without error when no row exists.
func (r *SpreadsheetRepository) GetByID(ctx context.Context, id int) (*SpreadsheetConfig, error) {
	query := `
		SELECT ` + spreadsheetColumns + `
		FROM spreadsheets
		WHERE id = $1
	`

	config, err := scanSpreadsheet(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return config, nil
}

// GetDefault retrieves the spreadsheet configuration marked as default.
// Returns nil without error when none is marked.
func (r *SpreadsheetRepository) GetDefault(ctx context.Context) (*SpreadsheetConfig, error) {
	query := `
		SELECT ` + spreadsheetColumns + `
		FROM spreadsheets
		WHERE is_default = true
	`

	config, err := scanSpreadsheet(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return config, nil
}

// Create registers a new spreadsheet configuration. Creating a new default
// unsets the previous one in the same transaction so there is never a moment
// with two defaults visible to other readers.
func (r *SpreadsheetRepository) Create(ctx context.Context, req *CreateSpreadsheetRequest) (*SpreadsheetConfig, error) {
	query := `
		INSERT INTO spreadsheets (name, sheet_id, is_default, default_worksheet, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + spreadsheetColumns

	worksheet := req.DefaultWorksheet
	if worksheet == "" {
		worksheet = "Sheet1"
	}

	if !req.IsDefault {
		return scanSpreadsheet(r.db.QueryRowContext(
			ctx, query,
			req.Name, req.SheetID, false, worksheet, time.Now(),
		))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE spreadsheets SET is_default = false WHERE is_default = true`); err != nil {
		return nil, err
	}

	config, err := scanSpreadsheet(tx.QueryRowContext(
		ctx, query,
		req.Name, req.SheetID, true, worksheet, time.Now(),
	))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return config, nil
}

// Update replaces the editable fields of a spreadsheet configuration
func (r *SpreadsheetRepository) Update(ctx context.Context, req *UpdateSpreadsheetRequest) (*SpreadsheetConfig, error) {
	query := `
		UPDATE spreadsheets
		SET name = $1, sheet_id = $2, include_date = $3, include_distance = $4,
			include_time = $5, include_pace = $6, include_hr = $7, default_worksheet = $8
		WHERE id = $9
		RETURNING ` + spreadsheetColumns

	config, err := scanSpreadsheet(r.db.QueryRowContext(
		ctx, query,
		req.Name, req.SheetID,
		req.IncludeDate, req.IncludeDistance, req.IncludeTime, req.IncludePace, req.IncludeHR,
		req.DefaultWorksheet, req.ID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return config, nil
}

// Delete removes a spreadsheet configuration. The default spreadsheet cannot
// be deleted; mark another one default first.
func (r *SpreadsheetRepository) Delete(ctx context.Context, id int) error {
	config, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if config == nil {
		return sql.ErrNoRows
	}
	if config.IsDefault {
		return ErrDefaultSpreadsheet
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM spreadsheets WHERE id = $1`, id)
	return err
}

// SetDefault marks one spreadsheet as default, unsetting any previous default.
// Both updates run in a single transaction so there is never a moment with
// two defaults or none visible to other readers.
func (r *SpreadsheetRepository) SetDefault(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE spreadsheets SET is_default = false WHERE is_default = true`); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `UPDATE spreadsheets SET is_default = true WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("spreadsheet %d not found: %w", id, sql.ErrNoRows)
	}

	return tx.Commit()
}

// SeedDefault inserts an initial default spreadsheet when none exists yet.
// Used on startup when the configuration names a spreadsheet.
func (r *SpreadsheetRepository) SeedDefault(ctx context.Context, name, sheetID string) error {
	if name == "" && sheetID == "" {
		return nil
	}

	existing, err := r.GetDefault(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	_, err = r.Create(ctx, &CreateSpreadsheetRequest{
		Name:      name,
		SheetID:   sheetID,
		IsDefault: true,
	})
	return err
}
