// Package sync orchestrates the import pipeline: fetching activities from
// Strava, reconciling them against a worksheet snapshot and executing the
// resulting write plan.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/database"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/google"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/metrics"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/reconcile"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/retry"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/strava"
)

// ErrorKind classifies import failures for the HTTP layer
type ErrorKind string

const (
	ErrAuthExpired           ErrorKind = "auth_expired"
	ErrUpstreamUnavailable   ErrorKind = "upstream_unavailable"
	ErrHeaderNotFound        ErrorKind = "header_not_found"
	ErrEmptyMapping          ErrorKind = "empty_mapping"
	ErrWorksheetCreateFailed ErrorKind = "worksheet_create_failed"
)

// ImportError is a structured import failure. PreservedMapping echoes the
// requested field mapping back to the client so a failed attempt can be
// corrected and retried without re-entering it.
type ImportError struct {
	Kind             ErrorKind
	Header           string
	PreservedMapping map[reconcile.Field]string
	Cause            error
}

func (e *ImportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("import error (%s): %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("import error (%s)", e.Kind)
}

func (e *ImportError) Unwrap() error {
	return e.Cause
}

// ImportResult summarizes a confirmed import run
type ImportResult struct {
	Spreadsheet       string `json:"spreadsheet"`
	Worksheet         string `json:"worksheet"`
	Appended          int    `json:"appended"`
	Updated           int    `json:"updated"`
	Unchanged         int    `json:"unchanged"`
	CellWriteFailures int    `json:"cell_write_failures"`
	Warning           string `json:"warning,omitempty"`
}

// ImportRequest carries everything needed to confirm an import
type ImportRequest struct {
	Activities []reconcile.Activity
	Config     *database.SpreadsheetConfig
	Worksheet  string
	Mapping    map[reconcile.Field]string
}

// ActivitySource lists Strava activities for a bearer token
type ActivitySource interface {
	ListActivities(ctx context.Context, accessToken string, params strava.ListActivitiesParams) ([]strava.Activity, error)
}

// SheetsGateway is the spreadsheet access surface the import pipeline needs
type SheetsGateway interface {
	OpenSpreadsheet(ctx context.Context, spreadsheetID, name string) (*google.SpreadsheetInfo, error)
	ListWorksheets(ctx context.Context, spreadsheetID string) ([]google.WorksheetInfo, error)
	EnsureWorksheet(ctx context.Context, spreadsheetID, title string) (bool, error)
	ReadAllValues(ctx context.Context, spreadsheetID, worksheet string) ([][]string, error)
	WorksheetHeaders(ctx context.Context, spreadsheetID, worksheet string) ([]string, error)
	WriteRow(ctx context.Context, spreadsheetID, worksheet string, row int, values []string) error
	WriteCell(ctx context.Context, spreadsheetID, worksheet string, row, col int, value string) error
	ValidateAccess(ctx context.Context, spreadsheetID string) error
}

// MappingStore persists field→header mappings
type MappingStore interface {
	Get(ctx context.Context, spreadsheetID int, worksheet string) (map[reconcile.Field]string, error)
	Replace(ctx context.Context, spreadsheetID int, worksheet string, mapping map[reconcile.Field]string) error
}

// SpreadsheetStore persists spreadsheet configurations
type SpreadsheetStore interface {
	Update(ctx context.Context, req *database.UpdateSpreadsheetRequest) (*database.SpreadsheetConfig, error)
}

// ImportService drives the preview/confirm import flow
type ImportService struct {
	activities   ActivitySource
	sheets       SheetsGateway
	mappings     MappingStore
	spreadsheets SpreadsheetStore
	logger       *logger.Logger
}

// NewImportService creates a new import service
func NewImportService(
	activities ActivitySource,
	sheets SheetsGateway,
	mappings MappingStore,
	spreadsheets SpreadsheetStore,
	log *logger.Logger,
) *ImportService {
	return &ImportService{
		activities:   activities,
		sheets:       sheets,
		mappings:     mappings,
		spreadsheets: spreadsheets,
		logger:       log.WithContext("component", "import_service"),
	}
}

// PreviewActivities fetches and formats activities without touching any
// spreadsheet. A single malformed record aborts the whole batch so the user
// never confirms a partially formatted preview.
func (s *ImportService) PreviewActivities(ctx context.Context, accessToken string, params strava.ListActivitiesParams) ([]reconcile.Activity, error) {
	raw, err := s.activities.ListActivities(ctx, accessToken, params)
	if err != nil {
		if strava.IsReauthRequired(err) {
			return nil, &ImportError{Kind: ErrAuthExpired, Cause: err}
		}
		return nil, &ImportError{Kind: ErrUpstreamUnavailable, Cause: err}
	}

	formatted, err := strava.FormatActivities(raw)
	if err != nil {
		s.logger.Error("Activity batch failed formatting",
			"error", err,
			"activity_count", len(raw))
		return nil, err
	}

	s.logger.Info("Previewed activity batch",
		"activity_count", len(formatted))

	return formatted, nil
}

// ConfirmImport persists the requested mapping, reconciles the batch against
// the live worksheet and executes the plan. Failures before any write return
// an *ImportError carrying the requested mapping; individual cell write
// failures after that point are tolerated and surfaced as a warning.
func (s *ImportService) ConfirmImport(ctx context.Context, req *ImportRequest) (*ImportResult, error) {
	startTime := time.Now()

	worksheet := req.Worksheet
	if worksheet == "" {
		worksheet = req.Config.DefaultWorksheet
	}
	if worksheet == "" {
		worksheet = "Sheet1"
	}

	runLogger := s.logger.WithContext(
		"spreadsheet_config_id", req.Config.ID,
		"worksheet", worksheet,
		"activity_count", len(req.Activities))

	// Aborted runs still count in the metrics
	fail := func(err error) (*ImportResult, error) {
		metrics.RecordImport("failure", 0, 0, 0, 0, time.Since(startTime))
		return nil, err
	}

	// An empty header means the field is not mapped. Drop those entries up
	// front so they are neither persisted nor resolved against the sheet.
	mapping := make(map[reconcile.Field]string, len(req.Mapping))
	for field, header := range req.Mapping {
		if header != "" {
			mapping[field] = header
		}
	}
	if len(mapping) == 0 {
		return fail(&ImportError{
			Kind:             ErrEmptyMapping,
			PreservedMapping: req.Mapping,
			Cause:            &reconcile.EmptyMappingError{},
		})
	}

	// Mapping and column preferences are stored before any spreadsheet work,
	// so a later failure never loses what the user just configured
	if err := s.persistMappingAndPreferences(ctx, req.Config, worksheet, mapping); err != nil {
		return fail(fmt.Errorf("failed to persist mapping: %w", err))
	}

	var info *google.SpreadsheetInfo
	openErr := retry.WithExponentialBackoff(ctx, retry.DefaultConfig(), s.logger, "open_spreadsheet", func() error {
		var err error
		info, err = s.sheets.OpenSpreadsheet(ctx, req.Config.SheetID, req.Config.Name)
		return err
	})
	if openErr != nil {
		runLogger.Error("Failed to open spreadsheet", "error", openErr)
		return fail(&ImportError{
			Kind:             ErrUpstreamUnavailable,
			PreservedMapping: req.Mapping,
			Cause:            openErr,
		})
	}

	if _, err := s.sheets.EnsureWorksheet(ctx, info.ID, worksheet); err != nil {
		runLogger.Error("Failed to get or create worksheet", "error", err)
		return fail(&ImportError{
			Kind:             ErrWorksheetCreateFailed,
			PreservedMapping: req.Mapping,
			Cause:            err,
		})
	}

	snapshot, err := s.sheets.ReadAllValues(ctx, info.ID, worksheet)
	if err != nil {
		runLogger.Error("Failed to read worksheet snapshot", "error", err)
		return fail(&ImportError{
			Kind:             ErrUpstreamUnavailable,
			PreservedMapping: req.Mapping,
			Cause:            err,
		})
	}

	// An empty worksheet gets a header row synthesized from the mapping, so
	// resolution below always has a row 1 to work with
	if len(snapshot) == 0 {
		headerRow, err := reconcile.HeaderRow(mapping)
		if err != nil {
			return fail(&ImportError{
				Kind:             ErrEmptyMapping,
				PreservedMapping: req.Mapping,
				Cause:            err,
			})
		}
		if err := s.sheets.WriteRow(ctx, info.ID, worksheet, 1, headerRow); err != nil {
			runLogger.Error("Failed to write synthesized header row", "error", err)
			return fail(&ImportError{
				Kind:             ErrUpstreamUnavailable,
				PreservedMapping: req.Mapping,
				Cause:            err,
			})
		}
		snapshot = [][]string{headerRow}
		runLogger.Info("Synthesized header row for empty worksheet",
			"headers", headerRow)
	}

	columns, err := reconcile.ResolveColumns(snapshot[0], mapping)
	if err != nil {
		var headerErr *reconcile.HeaderNotFoundError
		if errors.As(err, &headerErr) {
			runLogger.Warn("Requested header missing from worksheet",
				"header", headerErr.Header)
			return fail(&ImportError{
				Kind:             ErrHeaderNotFound,
				Header:           headerErr.Header,
				PreservedMapping: req.Mapping,
				Cause:            err,
			})
		}
		return fail(err)
	}

	plan := reconcile.BuildPlan(req.Activities, columns, snapshot)

	failures, writeErrs := s.executePlan(ctx, runLogger, info.ID, worksheet, plan)

	result := &ImportResult{
		Spreadsheet:       info.Title,
		Worksheet:         worksheet,
		Appended:          plan.Appended,
		Updated:           plan.Updated,
		Unchanged:         plan.Unchanged,
		CellWriteFailures: failures,
	}

	outcome := "success"
	if failures > 0 {
		outcome = "partial"
		result.Warning = fmt.Sprintf("%d of %d writes failed; the worksheet may be partially updated", failures, len(plan.RowWrites)+len(plan.CellWrites))
		runLogger.Warn("Import completed with write failures",
			"failed_writes", failures,
			"errors", writeErrs)
	}

	metrics.RecordImport(outcome, result.Appended, result.Updated, result.Unchanged, failures, time.Since(startTime))

	runLogger.Info("Import completed",
		"appended", result.Appended,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"cell_write_failures", failures,
		"duration_ms", time.Since(startTime).Milliseconds())

	return result, nil
}

// executePlan issues the planned writes, tolerating individual failures.
// Returns the failed write count and the aggregated errors.
func (s *ImportService) executePlan(ctx context.Context, runLogger *logger.Logger, spreadsheetID, worksheet string, plan *reconcile.Plan) (int, error) {
	var writeErrs *multierror.Error
	failures := 0

	for _, rw := range plan.RowWrites {
		if err := s.sheets.WriteRow(ctx, spreadsheetID, worksheet, rw.Row, rw.Values); err != nil {
			failures++
			writeErrs = multierror.Append(writeErrs, fmt.Errorf("append row %d: %w", rw.Row, err))
			runLogger.Error("Failed to append row",
				"row", rw.Row,
				"error", err)
		}
	}

	for _, cw := range plan.CellWrites {
		if err := s.sheets.WriteCell(ctx, spreadsheetID, worksheet, cw.Row, cw.Col, cw.Value); err != nil {
			failures++
			writeErrs = multierror.Append(writeErrs, fmt.Errorf("update cell r%dc%d: %w", cw.Row, cw.Col, err))
			runLogger.Error("Failed to update cell",
				"row", cw.Row,
				"col", cw.Col,
				"error", err)
		}
	}

	return failures, writeErrs.ErrorOrNil()
}

// persistMappingAndPreferences saves the mapping wholesale and derives the
// per-field column preferences from which fields are mapped
func (s *ImportService) persistMappingAndPreferences(ctx context.Context, config *database.SpreadsheetConfig, worksheet string, mapping map[reconcile.Field]string) error {
	if err := s.mappings.Replace(ctx, config.ID, worksheet, mapping); err != nil {
		return err
	}

	mapped := func(f reconcile.Field) bool { return mapping[f] != "" }

	_, err := s.spreadsheets.Update(ctx, &database.UpdateSpreadsheetRequest{
		ID:               config.ID,
		Name:             config.Name,
		SheetID:          config.SheetID,
		IncludeDate:      mapped(reconcile.FieldDate),
		IncludeDistance:  mapped(reconcile.FieldDistance),
		IncludeTime:      mapped(reconcile.FieldDuration),
		IncludePace:      mapped(reconcile.FieldPace),
		IncludeHR:        mapped(reconcile.FieldHeartRate),
		DefaultWorksheet: worksheet,
	})
	return err
}
