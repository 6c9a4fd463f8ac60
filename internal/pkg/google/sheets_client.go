package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
)

// WorksheetInfo describes a single worksheet (tab) within a spreadsheet
type WorksheetInfo struct {
	SheetID int64  `json:"sheet_id"`
	Title   string `json:"title"`
	Index   int64  `json:"index"`
}

// SpreadsheetInfo contains metadata about a Google Spreadsheet
type SpreadsheetInfo struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	URL        string          `json:"url"`
	Worksheets []WorksheetInfo `json:"worksheets"`
}

// SheetsClient provides Google Sheets access authenticated as a service
// account. The account is granted access by sharing the spreadsheet with its
// email address, so there is no per-user OAuth flow on the Google side.
type SheetsClient struct {
	sheetsService *sheets.Service
	driveService  *drive.Service
	logger        *logger.Logger
}

// NewSheetsClient creates a Sheets client from a service account key file
func NewSheetsClient(ctx context.Context, credentialsFile string, log *logger.Logger) (*SheetsClient, error) {
	clientLogger := log.WithContext("component", "google_sheets_client")

	clientLogger.Debug("Creating Google Sheets API service",
		"credentials_file", credentialsFile)

	sheetsService, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		clientLogger.Error("Failed to create Google Sheets service", "error", err)
		return nil, &AuthError{
			Type:    "SERVICE_CREATION_FAILED",
			Message: "Failed to create Google Sheets API service from credentials file",
			Cause:   err,
		}
	}

	// Drive access is read-only and only used to resolve spreadsheets by
	// name when no ID is configured
	driveService, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveReadonlyScope))
	if err != nil {
		clientLogger.Error("Failed to create Google Drive service", "error", err)
		return nil, &AuthError{
			Type:    "SERVICE_CREATION_FAILED",
			Message: "Failed to create Google Drive API service from credentials file",
			Cause:   err,
		}
	}

	clientLogger.Debug("Successfully created Google API services")

	return &SheetsClient{
		sheetsService: sheetsService,
		driveService:  driveService,
		logger:        clientLogger,
	}, nil
}

// OpenSpreadsheet resolves a spreadsheet by ID when one is given, otherwise by
// name via a Drive search. Returns metadata including the worksheet list.
func (c *SheetsClient) OpenSpreadsheet(ctx context.Context, spreadsheetID, name string) (*SpreadsheetInfo, error) {
	startTime := time.Now()

	if spreadsheetID == "" {
		resolved, err := c.findSpreadsheetByName(ctx, name)
		if err != nil {
			return nil, err
		}
		spreadsheetID = resolved
	}

	c.logger.Debug("Opening Google Spreadsheet",
		"spreadsheet_id", spreadsheetID)

	spreadsheet, err := c.sheetsService.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, c.handleSheetsAPIError(err, "open spreadsheet", spreadsheetID)
	}

	info := &SpreadsheetInfo{
		ID:         spreadsheet.SpreadsheetId,
		Title:      spreadsheet.Properties.Title,
		URL:        spreadsheet.SpreadsheetUrl,
		Worksheets: worksheetInfos(spreadsheet),
	}

	c.logger.Info("Successfully opened Google Spreadsheet",
		"spreadsheet_id", info.ID,
		"title", info.Title,
		"worksheet_count", len(info.Worksheets),
		"open_duration_ms", time.Since(startTime).Milliseconds())

	return info, nil
}

// findSpreadsheetByName searches Drive for a spreadsheet with the exact title
func (c *SheetsClient) findSpreadsheetByName(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", &SheetsError{
			Type:    "NOT_FOUND",
			Message: "No spreadsheet ID or name configured",
		}
	}

	c.logger.Debug("Resolving spreadsheet by name via Drive search",
		"spreadsheet_name", name)

	query := fmt.Sprintf(
		"name = '%s' and mimeType = 'application/vnd.google-apps.spreadsheet' and trashed = false",
		strings.ReplaceAll(name, "'", "\\'"))

	fileList, err := c.driveService.Files.List().
		Q(query).
		Fields("files(id, name)").
		PageSize(2).
		Context(ctx).
		Do()
	if err != nil {
		c.logger.Error("Drive search for spreadsheet failed",
			"error", err,
			"spreadsheet_name", name)
		return "", &NetworkError{
			Operation: "spreadsheet_search",
			Message:   "Failed to search Drive for spreadsheet by name",
			Cause:     err,
		}
	}

	if len(fileList.Files) == 0 {
		c.logger.Warn("No spreadsheet found with configured name",
			"spreadsheet_name", name)
		return "", &SheetsError{
			Type:    "NOT_FOUND",
			Message: fmt.Sprintf("No spreadsheet named %q is shared with the service account", name),
		}
	}

	if len(fileList.Files) > 1 {
		c.logger.Warn("Multiple spreadsheets match configured name, using first",
			"spreadsheet_name", name,
			"first_id", fileList.Files[0].Id)
	}

	return fileList.Files[0].Id, nil
}

// ListWorksheets returns the worksheets of a spreadsheet in sheet order
func (c *SheetsClient) ListWorksheets(ctx context.Context, spreadsheetID string) ([]WorksheetInfo, error) {
	spreadsheet, err := c.sheetsService.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, c.handleSheetsAPIError(err, "list worksheets", spreadsheetID)
	}
	return worksheetInfos(spreadsheet), nil
}

// EnsureWorksheet creates the named worksheet if it does not exist.
// Returns true when a new worksheet was created.
func (c *SheetsClient) EnsureWorksheet(ctx context.Context, spreadsheetID, title string) (bool, error) {
	worksheets, err := c.ListWorksheets(ctx, spreadsheetID)
	if err != nil {
		return false, err
	}

	for _, ws := range worksheets {
		if ws.Title == title {
			c.logger.Debug("Worksheet already exists",
				"spreadsheet_id", spreadsheetID,
				"worksheet", title)
			return false, nil
		}
	}

	c.logger.Info("Creating missing worksheet",
		"spreadsheet_id", spreadsheetID,
		"worksheet", title)

	request := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: title},
				},
			},
		},
	}

	if _, err := c.sheetsService.Spreadsheets.BatchUpdate(spreadsheetID, request).Context(ctx).Do(); err != nil {
		return false, c.handleSheetsAPIError(err, "create worksheet", spreadsheetID)
	}

	return true, nil
}

// ReadAllValues reads the entire used range of a worksheet. Cells are
// returned as strings exactly as stored; rows may be ragged.
func (c *SheetsClient) ReadAllValues(ctx context.Context, spreadsheetID, worksheet string) ([][]string, error) {
	startTime := time.Now()
	readRange := quoteWorksheet(worksheet)

	resp, err := c.sheetsService.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, c.handleSheetsAPIError(err, "read values", spreadsheetID)
	}

	values := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = cellString(cell)
		}
		values[i] = cells
	}

	c.logger.Debug("Read worksheet values",
		"spreadsheet_id", spreadsheetID,
		"worksheet", worksheet,
		"row_count", len(values),
		"read_duration_ms", time.Since(startTime).Milliseconds())

	return values, nil
}

// WorksheetHeaders reads the first row of a worksheet
func (c *SheetsClient) WorksheetHeaders(ctx context.Context, spreadsheetID, worksheet string) ([]string, error) {
	readRange := quoteWorksheet(worksheet) + "!1:1"

	resp, err := c.sheetsService.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, c.handleSheetsAPIError(err, "read headers", spreadsheetID)
	}

	if len(resp.Values) == 0 {
		return nil, nil
	}

	headers := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		headers[i] = cellString(cell)
	}
	return headers, nil
}

// WriteRow writes a full row starting at column A of the given 1-based row.
// Values are written RAW so formatted strings land in cells unmodified.
func (c *SheetsClient) WriteRow(ctx context.Context, spreadsheetID, worksheet string, row int, values []string) error {
	writeRange := fmt.Sprintf("%s!A%d", quoteWorksheet(worksheet), row)
	return c.writeRange(ctx, spreadsheetID, writeRange, values)
}

// WriteCell writes a single cell at the 1-based row and 0-based column
func (c *SheetsClient) WriteCell(ctx context.Context, spreadsheetID, worksheet string, row, col int, value string) error {
	writeRange := fmt.Sprintf("%s!%s%d", quoteWorksheet(worksheet), columnLetter(col), row)
	return c.writeRange(ctx, spreadsheetID, writeRange, []string{value})
}

func (c *SheetsClient) writeRange(ctx context.Context, spreadsheetID, writeRange string, values []string) error {
	startTime := time.Now()

	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{row},
	}

	_, err := c.sheetsService.Spreadsheets.Values.Update(spreadsheetID, writeRange, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		c.logger.Error("Failed to write values to Google Spreadsheet",
			"error", err,
			"spreadsheet_id", spreadsheetID,
			"write_range", writeRange)
		return c.handleSheetsAPIError(err, "write values", spreadsheetID)
	}

	c.logger.Debug("Wrote values to spreadsheet",
		"spreadsheet_id", spreadsheetID,
		"write_range", writeRange,
		"cell_count", len(values),
		"write_duration_ms", time.Since(startTime).Milliseconds())

	return nil
}

// ValidateAccess verifies that the service account can read the spreadsheet
func (c *SheetsClient) ValidateAccess(ctx context.Context, spreadsheetID string) error {
	startTime := time.Now()
	c.logger.Debug("Validating Google Sheets access",
		"spreadsheet_id", spreadsheetID)

	spreadsheet, err := c.sheetsService.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return c.handleSheetsAPIError(err, "access validation", spreadsheetID)
	}

	c.logger.Info("Google Sheets access validation successful",
		"spreadsheet_id", spreadsheetID,
		"spreadsheet_title", spreadsheet.Properties.Title,
		"validation_duration_ms", time.Since(startTime).Milliseconds())

	return nil
}

func worksheetInfos(spreadsheet *sheets.Spreadsheet) []WorksheetInfo {
	infos := make([]WorksheetInfo, 0, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties == nil {
			continue
		}
		infos = append(infos, WorksheetInfo{
			SheetID: sheet.Properties.SheetId,
			Title:   sheet.Properties.Title,
			Index:   sheet.Properties.Index,
		})
	}
	return infos
}

// quoteWorksheet wraps a worksheet title in single quotes for A1 notation,
// escaping embedded quotes per the Sheets grammar
func quoteWorksheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// columnLetter converts a 0-based column index to its A1 letter form
func columnLetter(col int) string {
	letters := ""
	n := col
	for {
		letters = string(rune('A'+n%26)) + letters
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return letters
}

func cellString(cell interface{}) string {
	if s, ok := cell.(string); ok {
		return s
	}
	return fmt.Sprint(cell)
}

// handleSheetsAPIError processes Google Sheets API errors and returns appropriate error types
func (c *SheetsClient) handleSheetsAPIError(err error, operation, spreadsheetID string) error {
	c.logger.Error("Google Sheets API error",
		"error", err,
		"operation", operation,
		"spreadsheet_id", spreadsheetID)

	errorString := err.Error()

	switch {
	case strings.Contains(errorString, "403") || strings.Contains(errorString, "Forbidden"):
		c.logger.Warn("Permission denied for Google Sheets access",
			"spreadsheet_id", spreadsheetID)
		return &SheetsError{
			SpreadsheetID: spreadsheetID,
			Type:          "PERMISSION_DENIED",
			Message:       "The service account does not have access to this spreadsheet",
			Cause:         err,
		}
	case strings.Contains(errorString, "404") || strings.Contains(errorString, "Not Found"):
		c.logger.Warn("Google Spreadsheet not found",
			"spreadsheet_id", spreadsheetID)
		return &SheetsError{
			SpreadsheetID: spreadsheetID,
			Type:          "NOT_FOUND",
			Message:       "Spreadsheet not found",
			Cause:         err,
		}
	case strings.Contains(errorString, "400") || strings.Contains(errorString, "Bad Request"):
		return &SheetsError{
			SpreadsheetID: spreadsheetID,
			Type:          "INVALID_REQUEST",
			Message:       "Invalid request format",
			Cause:         err,
		}
	case strings.Contains(errorString, "429"):
		c.logger.Warn("Google Sheets API rate limit exceeded",
			"spreadsheet_id", spreadsheetID)
		return &APIError{
			StatusCode: 429,
			Type:       "RATE_LIMITED",
			Message:    "Google Sheets API rate limit exceeded",
			Cause:      err,
		}
	default:
		return &NetworkError{
			Operation: operation,
			Message:   "Google Sheets API error",
			Cause:     err,
		}
	}
}
