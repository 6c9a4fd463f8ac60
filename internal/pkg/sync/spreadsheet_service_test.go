package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/database"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
)

type fakeRepo struct {
	configs    map[int]*database.SpreadsheetConfig
	lastCreate *database.CreateSpreadsheetRequest
}

func (r *fakeRepo) List(ctx context.Context) ([]*database.SpreadsheetConfig, error) {
	var out []*database.SpreadsheetConfig
	for _, c := range r.configs {
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id int) (*database.SpreadsheetConfig, error) {
	return r.configs[id], nil
}

func (r *fakeRepo) GetDefault(ctx context.Context) (*database.SpreadsheetConfig, error) {
	for _, c := range r.configs {
		if c.IsDefault {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) Create(ctx context.Context, req *database.CreateSpreadsheetRequest) (*database.SpreadsheetConfig, error) {
	r.lastCreate = req
	return &database.SpreadsheetConfig{ID: 1, Name: req.Name, SheetID: req.SheetID}, nil
}

func (r *fakeRepo) Update(ctx context.Context, req *database.UpdateSpreadsheetRequest) (*database.SpreadsheetConfig, error) {
	return &database.SpreadsheetConfig{ID: req.ID, Name: req.Name, SheetID: req.SheetID}, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id int) error     { return nil }
func (r *fakeRepo) SetDefault(ctx context.Context, id int) error { return nil }

func TestSpreadsheetServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("extracts sheet ID from pasted URL", func(t *testing.T) {
		repo := &fakeRepo{configs: map[int]*database.SpreadsheetConfig{}}
		svc := NewSpreadsheetService(repo, &fakeMappings{}, &fakeGateway{}, logger.New("sync-test"))

		config, err := svc.Create(ctx, &database.CreateSpreadsheetRequest{
			Name:    "Training Log",
			SheetID: "https://docs.google.com/spreadsheets/d/1AbC_d-EfG/edit#gid=0",
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if config.SheetID != "1AbC_d-EfG" {
			t.Errorf("SheetID = %q, want 1AbC_d-EfG", config.SheetID)
		}
		if repo.lastCreate.SheetID != "1AbC_d-EfG" {
			t.Errorf("persisted SheetID = %q, want extracted ID", repo.lastCreate.SheetID)
		}
	})

	t.Run("rejects inaccessible spreadsheets", func(t *testing.T) {
		repo := &fakeRepo{configs: map[int]*database.SpreadsheetConfig{}}
		gw := &fakeGateway{openErr: errors.New("403 forbidden")}
		svc := NewSpreadsheetService(repo, &fakeMappings{}, gw, logger.New("sync-test"))

		_, err := svc.Create(ctx, &database.CreateSpreadsheetRequest{
			Name:    "Training Log",
			SheetID: "1AbC_d-EfG",
		})
		if err == nil {
			t.Fatal("expected error for inaccessible spreadsheet")
		}
		if repo.lastCreate != nil {
			t.Error("configuration persisted despite failed access check")
		}
	})
}

func TestSpreadsheetServiceWorksheets(t *testing.T) {
	ctx := context.Background()

	repo := &fakeRepo{configs: map[int]*database.SpreadsheetConfig{
		1: {ID: 1, Name: "Training Log", SheetID: "sheet-123", DefaultWorksheet: "Sheet1"},
	}}
	svc := NewSpreadsheetService(repo, &fakeMappings{}, &fakeGateway{}, logger.New("sync-test"))

	t.Run("lists worksheets for a known configuration", func(t *testing.T) {
		worksheets, err := svc.Worksheets(ctx, 1)
		if err != nil {
			t.Fatalf("Worksheets failed: %v", err)
		}
		if len(worksheets) != 1 || worksheets[0].Title != "Sheet1" {
			t.Errorf("worksheets = %+v, want single Sheet1", worksheets)
		}
	})

	t.Run("fails for an unknown configuration", func(t *testing.T) {
		if _, err := svc.Worksheets(ctx, 99); err == nil {
			t.Fatal("expected error for missing configuration")
		}
	})
}
