package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/database"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/google"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/reconcile"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/strava"
)

type fakeGateway struct {
	snapshot [][]string

	openErr   error
	ensureErr error
	readErr   error

	// writeErrs keys are "row:<n>" for row writes and "cell:<r>:<c>" for
	// cell writes; any write whose key is present fails with that error
	writeErrs map[string]error

	rowWrites  []reconcile.RowWrite
	cellWrites []reconcile.CellWrite
}

func (g *fakeGateway) OpenSpreadsheet(ctx context.Context, spreadsheetID, name string) (*google.SpreadsheetInfo, error) {
	if g.openErr != nil {
		return nil, g.openErr
	}
	return &google.SpreadsheetInfo{ID: spreadsheetID, Title: "Training Log"}, nil
}

func (g *fakeGateway) ListWorksheets(ctx context.Context, spreadsheetID string) ([]google.WorksheetInfo, error) {
	return []google.WorksheetInfo{{SheetID: 0, Title: "Sheet1", Index: 0}}, nil
}

func (g *fakeGateway) EnsureWorksheet(ctx context.Context, spreadsheetID, title string) (bool, error) {
	if g.ensureErr != nil {
		return false, g.ensureErr
	}
	return false, nil
}

func (g *fakeGateway) ReadAllValues(ctx context.Context, spreadsheetID, worksheet string) ([][]string, error) {
	if g.readErr != nil {
		return nil, g.readErr
	}
	return g.snapshot, nil
}

func (g *fakeGateway) WorksheetHeaders(ctx context.Context, spreadsheetID, worksheet string) ([]string, error) {
	if len(g.snapshot) == 0 {
		return nil, nil
	}
	return g.snapshot[0], nil
}

func (g *fakeGateway) WriteRow(ctx context.Context, spreadsheetID, worksheet string, row int, values []string) error {
	if err := g.writeErrs[fmt.Sprintf("row:%d", row)]; err != nil {
		return err
	}
	g.rowWrites = append(g.rowWrites, reconcile.RowWrite{Row: row, Values: values})
	return nil
}

func (g *fakeGateway) WriteCell(ctx context.Context, spreadsheetID, worksheet string, row, col int, value string) error {
	if err := g.writeErrs[fmt.Sprintf("cell:%d:%d", row, col)]; err != nil {
		return err
	}
	g.cellWrites = append(g.cellWrites, reconcile.CellWrite{Row: row, Col: col, Value: value})
	return nil
}

func (g *fakeGateway) ValidateAccess(ctx context.Context, spreadsheetID string) error {
	return g.openErr
}

type fakeMappings struct {
	stored   map[reconcile.Field]string
	replaced bool
}

func (m *fakeMappings) Get(ctx context.Context, spreadsheetID int, worksheet string) (map[reconcile.Field]string, error) {
	return m.stored, nil
}

func (m *fakeMappings) Replace(ctx context.Context, spreadsheetID int, worksheet string, mapping map[reconcile.Field]string) error {
	m.replaced = true
	m.stored = mapping
	return nil
}

type fakeSpreadsheets struct {
	lastUpdate *database.UpdateSpreadsheetRequest
}

func (s *fakeSpreadsheets) Update(ctx context.Context, req *database.UpdateSpreadsheetRequest) (*database.SpreadsheetConfig, error) {
	s.lastUpdate = req
	return &database.SpreadsheetConfig{ID: req.ID, Name: req.Name, SheetID: req.SheetID}, nil
}

type fakeSource struct {
	activities []strava.Activity
	err        error
}

func (s *fakeSource) ListActivities(ctx context.Context, accessToken string, params strava.ListActivitiesParams) ([]strava.Activity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.activities, nil
}

func newTestImportService(gw *fakeGateway, mappings *fakeMappings, sheets *fakeSpreadsheets, source *fakeSource) *ImportService {
	if mappings == nil {
		mappings = &fakeMappings{}
	}
	if sheets == nil {
		sheets = &fakeSpreadsheets{}
	}
	if source == nil {
		source = &fakeSource{}
	}
	return NewImportService(source, gw, mappings, sheets, logger.New("sync-test"))
}

func testConfig() *database.SpreadsheetConfig {
	return &database.SpreadsheetConfig{
		ID:               1,
		Name:             "Training Log",
		SheetID:          "sheet-123",
		DefaultWorksheet: "Sheet1",
	}
}

func fullMapping() map[reconcile.Field]string {
	return map[reconcile.Field]string{
		reconcile.FieldDate:     "Date",
		reconcile.FieldDistance: "Km",
		reconcile.FieldDuration: "Time",
	}
}

func TestConfirmImport(t *testing.T) {
	ctx := context.Background()

	t.Run("appends new activities and updates changed cells", func(t *testing.T) {
		gw := &fakeGateway{snapshot: [][]string{
			{"Date", "Km", "Time"},
			{"01/03/2024", "5,0", "00:30:00"},
		}}
		mappings := &fakeMappings{}
		svc := newTestImportService(gw, mappings, nil, nil)

		result, err := svc.ConfirmImport(ctx, &ImportRequest{
			Activities: []reconcile.Activity{
				{Date: "01/03/2024", Distance: "5,2", Duration: "00:30:00"},
				{Date: "02/03/2024", Distance: "10,0", Duration: "01:00:00"},
			},
			Config:  testConfig(),
			Mapping: fullMapping(),
		})
		if err != nil {
			t.Fatalf("ConfirmImport failed: %v", err)
		}

		if result.Appended != 1 || result.Updated != 1 || result.Unchanged != 0 {
			t.Errorf("counts = %d/%d/%d, want 1/1/0", result.Appended, result.Updated, result.Unchanged)
		}
		if result.CellWriteFailures != 0 || result.Warning != "" {
			t.Errorf("unexpected failures: %d %q", result.CellWriteFailures, result.Warning)
		}
		if result.Spreadsheet != "Training Log" || result.Worksheet != "Sheet1" {
			t.Errorf("unexpected target: %q %q", result.Spreadsheet, result.Worksheet)
		}

		if len(gw.rowWrites) != 1 {
			t.Fatalf("row writes = %d, want 1", len(gw.rowWrites))
		}
		if gw.rowWrites[0].Row != 3 {
			t.Errorf("appended to row %d, want 3", gw.rowWrites[0].Row)
		}
		if len(gw.cellWrites) != 1 || gw.cellWrites[0].Value != "5,2" {
			t.Errorf("cell writes = %+v, want one write of 5,2", gw.cellWrites)
		}
		if !mappings.replaced {
			t.Error("mapping was not persisted")
		}
	})

	t.Run("persists column preferences from mapped fields", func(t *testing.T) {
		gw := &fakeGateway{snapshot: [][]string{{"Date", "Km", "Time"}}}
		sheets := &fakeSpreadsheets{}
		svc := newTestImportService(gw, nil, sheets, nil)

		_, err := svc.ConfirmImport(ctx, &ImportRequest{
			Config:  testConfig(),
			Mapping: fullMapping(),
		})
		if err != nil {
			t.Fatalf("ConfirmImport failed: %v", err)
		}

		upd := sheets.lastUpdate
		if upd == nil {
			t.Fatal("preferences were not persisted")
		}
		if !upd.IncludeDate || !upd.IncludeDistance || !upd.IncludeTime {
			t.Errorf("mapped fields not enabled: %+v", upd)
		}
		if upd.IncludePace || upd.IncludeHR {
			t.Errorf("unmapped fields enabled: %+v", upd)
		}
		if upd.DefaultWorksheet != "Sheet1" {
			t.Errorf("DefaultWorksheet = %q, want Sheet1", upd.DefaultWorksheet)
		}
	})

	t.Run("synthesizes header row on empty worksheet", func(t *testing.T) {
		gw := &fakeGateway{snapshot: nil}
		svc := newTestImportService(gw, nil, nil, nil)

		result, err := svc.ConfirmImport(ctx, &ImportRequest{
			Activities: []reconcile.Activity{
				{Date: "01/03/2024", Distance: "5,0", Duration: "00:30:00"},
			},
			Config:  testConfig(),
			Mapping: fullMapping(),
		})
		if err != nil {
			t.Fatalf("ConfirmImport failed: %v", err)
		}

		if len(gw.rowWrites) != 2 {
			t.Fatalf("row writes = %d, want header plus one append", len(gw.rowWrites))
		}
		header := gw.rowWrites[0]
		if header.Row != 1 {
			t.Errorf("header written to row %d, want 1", header.Row)
		}
		want := []string{"Date", "Km", "Time"}
		if len(header.Values) != len(want) {
			t.Fatalf("header = %v, want %v", header.Values, want)
		}
		for i := range want {
			if header.Values[i] != want[i] {
				t.Errorf("header[%d] = %q, want %q", i, header.Values[i], want[i])
			}
		}
		if result.Appended != 1 {
			t.Errorf("Appended = %d, want 1", result.Appended)
		}
	})

	t.Run("empty mapping on empty worksheet preserves mapping", func(t *testing.T) {
		gw := &fakeGateway{snapshot: nil}
		svc := newTestImportService(gw, nil, nil, nil)

		mapping := map[reconcile.Field]string{}
		_, err := svc.ConfirmImport(ctx, &ImportRequest{
			Config:  testConfig(),
			Mapping: mapping,
		})

		var impErr *ImportError
		if !errors.As(err, &impErr) {
			t.Fatalf("expected *ImportError, got %v", err)
		}
		if impErr.Kind != ErrEmptyMapping {
			t.Errorf("Kind = %q, want %q", impErr.Kind, ErrEmptyMapping)
		}
		if impErr.PreservedMapping == nil {
			t.Error("PreservedMapping not set")
		}
	})

	t.Run("drops unmapped fields with blank headers", func(t *testing.T) {
		gw := &fakeGateway{snapshot: nil}
		svc := newTestImportService(gw, nil, nil, nil)

		result, err := svc.ConfirmImport(ctx, &ImportRequest{
			Activities: []reconcile.Activity{
				{Date: "01/03/2024", Distance: "5,0"},
			},
			Config: testConfig(),
			Mapping: map[reconcile.Field]string{
				reconcile.FieldDate: "Date",
				reconcile.FieldPace: "",
			},
		})
		if err != nil {
			t.Fatalf("ConfirmImport failed: %v", err)
		}

		if len(gw.rowWrites) == 0 {
			t.Fatal("no rows written")
		}
		header := gw.rowWrites[0]
		if len(header.Values) != 1 || header.Values[0] != "Date" {
			t.Errorf("header = %v, want [Date]", header.Values)
		}
		if result.Appended != 1 {
			t.Errorf("Appended = %d, want 1", result.Appended)
		}
	})

	t.Run("mapping of only blank headers aborts before any writes", func(t *testing.T) {
		gw := &fakeGateway{snapshot: nil}
		svc := newTestImportService(gw, nil, nil, nil)

		_, err := svc.ConfirmImport(ctx, &ImportRequest{
			Config: testConfig(),
			Mapping: map[reconcile.Field]string{
				reconcile.FieldDate: "",
				reconcile.FieldPace: "",
			},
		})

		var impErr *ImportError
		if !errors.As(err, &impErr) {
			t.Fatalf("expected *ImportError, got %v", err)
		}
		if impErr.Kind != ErrEmptyMapping {
			t.Errorf("Kind = %q, want %q", impErr.Kind, ErrEmptyMapping)
		}
		if len(gw.rowWrites) != 0 {
			t.Errorf("rows written despite unusable mapping: %v", gw.rowWrites)
		}
	})

	t.Run("missing header preserves mapping and names the header", func(t *testing.T) {
		gw := &fakeGateway{snapshot: [][]string{{"Date", "Km"}}}
		svc := newTestImportService(gw, nil, nil, nil)

		_, err := svc.ConfirmImport(ctx, &ImportRequest{
			Config:  testConfig(),
			Mapping: fullMapping(),
		})

		var impErr *ImportError
		if !errors.As(err, &impErr) {
			t.Fatalf("expected *ImportError, got %v", err)
		}
		if impErr.Kind != ErrHeaderNotFound {
			t.Errorf("Kind = %q, want %q", impErr.Kind, ErrHeaderNotFound)
		}
		if impErr.Header != "Time" {
			t.Errorf("Header = %q, want Time", impErr.Header)
		}
		if impErr.PreservedMapping[reconcile.FieldDuration] != "Time" {
			t.Error("PreservedMapping lost the requested mapping")
		}
		if len(gw.rowWrites) != 0 && len(gw.cellWrites) != 0 {
			t.Error("writes issued despite header resolution failure")
		}
	})

	t.Run("worksheet create failure aborts before any writes", func(t *testing.T) {
		gw := &fakeGateway{
			snapshot:  [][]string{{"Date", "Km", "Time"}},
			ensureErr: errors.New("insufficient permissions"),
		}
		svc := newTestImportService(gw, nil, nil, nil)

		_, err := svc.ConfirmImport(ctx, &ImportRequest{
			Activities: []reconcile.Activity{{Date: "01/03/2024"}},
			Config:     testConfig(),
			Worksheet:  "March",
			Mapping:    fullMapping(),
		})

		var impErr *ImportError
		if !errors.As(err, &impErr) {
			t.Fatalf("expected *ImportError, got %v", err)
		}
		if impErr.Kind != ErrWorksheetCreateFailed {
			t.Errorf("Kind = %q, want %q", impErr.Kind, ErrWorksheetCreateFailed)
		}
		if len(gw.rowWrites) != 0 || len(gw.cellWrites) != 0 {
			t.Error("writes issued despite worksheet failure")
		}
	})

	t.Run("failed cell write does not abort the run", func(t *testing.T) {
		gw := &fakeGateway{
			snapshot: [][]string{
				{"Date", "Km", "Time"},
				{"01/03/2024", "5,0", "00:30:00"},
				{"02/03/2024", "8,0", "00:45:00"},
			},
			writeErrs: map[string]error{
				"cell:2:1": errors.New("quota exceeded"),
			},
		}
		svc := newTestImportService(gw, nil, nil, nil)

		result, err := svc.ConfirmImport(ctx, &ImportRequest{
			Activities: []reconcile.Activity{
				{Date: "01/03/2024", Distance: "5,5", Duration: "00:30:00"},
				{Date: "02/03/2024", Distance: "8,5", Duration: "00:45:00"},
			},
			Config:  testConfig(),
			Mapping: fullMapping(),
		})
		if err != nil {
			t.Fatalf("ConfirmImport failed: %v", err)
		}

		if result.CellWriteFailures != 1 {
			t.Errorf("CellWriteFailures = %d, want 1", result.CellWriteFailures)
		}
		if result.Warning == "" {
			t.Error("expected a warning for partial writes")
		}
		if result.Updated != 2 {
			t.Errorf("Updated = %d, want 2", result.Updated)
		}
		if len(gw.cellWrites) != 1 {
			t.Errorf("surviving cell writes = %d, want 1", len(gw.cellWrites))
		}
	})

	t.Run("defaults worksheet from configuration", func(t *testing.T) {
		gw := &fakeGateway{snapshot: [][]string{{"Date", "Km", "Time"}}}
		svc := newTestImportService(gw, nil, nil, nil)

		config := testConfig()
		config.DefaultWorksheet = "Log"

		result, err := svc.ConfirmImport(ctx, &ImportRequest{
			Config:  config,
			Mapping: fullMapping(),
		})
		if err != nil {
			t.Fatalf("ConfirmImport failed: %v", err)
		}
		if result.Worksheet != "Log" {
			t.Errorf("Worksheet = %q, want Log", result.Worksheet)
		}
	})
}

func TestPreviewActivities(t *testing.T) {
	ctx := context.Background()

	t.Run("formats fetched activities", func(t *testing.T) {
		source := &fakeSource{activities: []strava.Activity{
			{ID: 1, Name: "Morning Run", Distance: 5000, MovingTime: 1800, StartDate: "2024-03-01T07:00:00Z"},
		}}
		svc := newTestImportService(&fakeGateway{}, nil, nil, source)

		got, err := svc.PreviewActivities(ctx, "token", strava.ListActivitiesParams{})
		if err != nil {
			t.Fatalf("PreviewActivities failed: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("activities = %d, want 1", len(got))
		}
		if got[0].Date != "01/03/2024" {
			t.Errorf("Date = %q, want 01/03/2024", got[0].Date)
		}
		if got[0].Distance != "5,0" {
			t.Errorf("Distance = %q, want 5,0", got[0].Distance)
		}
	})

	t.Run("classifies auth failures", func(t *testing.T) {
		source := &fakeSource{err: &strava.AuthError{Type: "REAUTH_REQUIRED", Message: "refresh token revoked"}}
		svc := newTestImportService(&fakeGateway{}, nil, nil, source)

		_, err := svc.PreviewActivities(ctx, "token", strava.ListActivitiesParams{})

		var impErr *ImportError
		if !errors.As(err, &impErr) {
			t.Fatalf("expected *ImportError, got %v", err)
		}
		if impErr.Kind != ErrAuthExpired {
			t.Errorf("Kind = %q, want %q", impErr.Kind, ErrAuthExpired)
		}
	})

	t.Run("classifies upstream failures", func(t *testing.T) {
		source := &fakeSource{err: &strava.APIError{Type: "RATE_LIMITED", Message: "too many requests"}}
		svc := newTestImportService(&fakeGateway{}, nil, nil, source)

		_, err := svc.PreviewActivities(ctx, "token", strava.ListActivitiesParams{})

		var impErr *ImportError
		if !errors.As(err, &impErr) {
			t.Fatalf("expected *ImportError, got %v", err)
		}
		if impErr.Kind != ErrUpstreamUnavailable {
			t.Errorf("Kind = %q, want %q", impErr.Kind, ErrUpstreamUnavailable)
		}
	})
}

func TestExtractSheetID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare id", "1AbC_d-EfG", "1AbC_d-EfG"},
		{"full url", "https://docs.google.com/spreadsheets/d/1AbC_d-EfG/edit#gid=0", "1AbC_d-EfG"},
		{"url without fragment", "https://docs.google.com/spreadsheets/d/1AbC_d-EfG", "1AbC_d-EfG"},
		{"whitespace trimmed", "  1AbC_d-EfG  ", "1AbC_d-EfG"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractSheetID(tt.input); got != tt.want {
				t.Errorf("ExtractSheetID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
