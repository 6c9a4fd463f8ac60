package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/reconcile"
)

// MappingRepository handles database operations for header mappings
type MappingRepository struct {
	db *sql.DB
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(db *sql.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// Get retrieves the stored header mapping for a spreadsheet and worksheet.
// Fields without a stored mapping are absent from the result.
func (r *MappingRepository) Get(ctx context.Context, spreadsheetID int, worksheet string) (map[reconcile.Field]string, error) {
	query := `
		SELECT field_name, header_name
		FROM header_mappings
		WHERE spreadsheet_id = $1 AND worksheet_name = $2
	`

	rows, err := r.db.QueryContext(ctx, query, spreadsheetID, worksheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mapping := make(map[reconcile.Field]string)
	for rows.Next() {
		var fieldName, headerName string
		if err := rows.Scan(&fieldName, &headerName); err != nil {
			return nil, err
		}
		mapping[reconcile.Field(fieldName)] = headerName
	}

	return mapping, rows.Err()
}

// Replace swaps the stored mapping for a spreadsheet and worksheet with the
// given one inside a single transaction. Fields mapped to an empty header are
// treated as unmapped and not stored. Inserts run in canonical field order so
// the operation is deterministic.
func (r *MappingRepository) Replace(ctx context.Context, spreadsheetID int, worksheet string, mapping map[reconcile.Field]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	deleteQuery := `DELETE FROM header_mappings WHERE spreadsheet_id = $1 AND worksheet_name = $2`
	if _, err := tx.ExecContext(ctx, deleteQuery, spreadsheetID, worksheet); err != nil {
		return err
	}

	insertQuery := `
		INSERT INTO header_mappings (spreadsheet_id, worksheet_name, field_name, header_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	now := time.Now()
	for _, field := range reconcile.Fields {
		header, ok := mapping[field]
		if !ok || header == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, insertQuery, spreadsheetID, worksheet, string(field), header, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}
