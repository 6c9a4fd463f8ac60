package sync

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/database"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/google"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/reconcile"
)

// sheetURLPattern matches the document ID inside a pasted Google Sheets URL
var sheetURLPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// ExtractSheetID accepts either a bare spreadsheet ID or a full Google Sheets
// URL and returns the document ID
func ExtractSheetID(input string) string {
	input = strings.TrimSpace(input)
	if m := sheetURLPattern.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return input
}

// SpreadsheetRepo is the persistence surface for spreadsheet configurations
type SpreadsheetRepo interface {
	List(ctx context.Context) ([]*database.SpreadsheetConfig, error)
	GetByID(ctx context.Context, id int) (*database.SpreadsheetConfig, error)
	GetDefault(ctx context.Context) (*database.SpreadsheetConfig, error)
	Create(ctx context.Context, req *database.CreateSpreadsheetRequest) (*database.SpreadsheetConfig, error)
	Update(ctx context.Context, req *database.UpdateSpreadsheetRequest) (*database.SpreadsheetConfig, error)
	Delete(ctx context.Context, id int) error
	SetDefault(ctx context.Context, id int) error
}

// SpreadsheetService manages spreadsheet configurations and exposes worksheet
// metadata for the mapping UI
type SpreadsheetService struct {
	repo     SpreadsheetRepo
	mappings MappingStore
	sheets   SheetsGateway
	logger   *logger.Logger
}

// NewSpreadsheetService creates a new spreadsheet service
func NewSpreadsheetService(repo SpreadsheetRepo, mappings MappingStore, sheets SheetsGateway, log *logger.Logger) *SpreadsheetService {
	return &SpreadsheetService{
		repo:     repo,
		mappings: mappings,
		sheets:   sheets,
		logger:   log.WithContext("component", "spreadsheet_service"),
	}
}

// List returns all configured spreadsheets, default first
func (s *SpreadsheetService) List(ctx context.Context) ([]*database.SpreadsheetConfig, error) {
	return s.repo.List(ctx)
}

// Get returns a single configuration, nil when it does not exist
func (s *SpreadsheetService) Get(ctx context.Context, id int) (*database.SpreadsheetConfig, error) {
	return s.repo.GetByID(ctx, id)
}

// GetDefault returns the default configuration, nil when none is set
func (s *SpreadsheetService) GetDefault(ctx context.Context) (*database.SpreadsheetConfig, error) {
	return s.repo.GetDefault(ctx)
}

// Create registers a new spreadsheet after verifying the service account can
// actually open it. The sheet ID may be a full URL pasted from the browser.
func (s *SpreadsheetService) Create(ctx context.Context, req *database.CreateSpreadsheetRequest) (*database.SpreadsheetConfig, error) {
	req.SheetID = ExtractSheetID(req.SheetID)

	if req.SheetID != "" {
		if err := s.sheets.ValidateAccess(ctx, req.SheetID); err != nil {
			s.logger.Warn("Spreadsheet access verification failed",
				"sheet_id", req.SheetID,
				"error", err)
			return nil, fmt.Errorf("spreadsheet is not accessible: %w", err)
		}
	}

	config, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Created spreadsheet configuration",
		"spreadsheet_config_id", config.ID,
		"name", config.Name)

	return config, nil
}

// Update modifies an existing configuration
func (s *SpreadsheetService) Update(ctx context.Context, req *database.UpdateSpreadsheetRequest) (*database.SpreadsheetConfig, error) {
	req.SheetID = ExtractSheetID(req.SheetID)
	return s.repo.Update(ctx, req)
}

// Delete removes a configuration. The default configuration cannot be
// deleted; promote another one first.
func (s *SpreadsheetService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// SetDefault promotes the given configuration to be the default
func (s *SpreadsheetService) SetDefault(ctx context.Context, id int) error {
	return s.repo.SetDefault(ctx, id)
}

// Worksheets lists the worksheet tabs of a configured spreadsheet
func (s *SpreadsheetService) Worksheets(ctx context.Context, id int) ([]google.WorksheetInfo, error) {
	config, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, fmt.Errorf("spreadsheet configuration %d not found", id)
	}

	info, err := s.sheets.OpenSpreadsheet(ctx, config.SheetID, config.Name)
	if err != nil {
		return nil, err
	}

	return s.sheets.ListWorksheets(ctx, info.ID)
}

// Headers returns the first row of a worksheet for the mapping UI
func (s *SpreadsheetService) Headers(ctx context.Context, id int, worksheet string) ([]string, error) {
	config, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, fmt.Errorf("spreadsheet configuration %d not found", id)
	}

	info, err := s.sheets.OpenSpreadsheet(ctx, config.SheetID, config.Name)
	if err != nil {
		return nil, err
	}

	if worksheet == "" {
		worksheet = config.DefaultWorksheet
	}

	return s.sheets.WorksheetHeaders(ctx, info.ID, worksheet)
}

// Mapping returns the stored field mapping for a worksheet, empty when none
// has been saved yet
func (s *SpreadsheetService) Mapping(ctx context.Context, id int, worksheet string) (map[reconcile.Field]string, error) {
	config, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if config == nil {
		return nil, fmt.Errorf("spreadsheet configuration %d not found", id)
	}

	if worksheet == "" {
		worksheet = config.DefaultWorksheet
	}

	return s.mappings.Get(ctx, config.ID, worksheet)
}
