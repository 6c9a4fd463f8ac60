package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/database"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/google"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/reconcile"
)

// SpreadsheetServicer manages spreadsheet configurations and exposes
// worksheet metadata
type SpreadsheetServicer interface {
	List(ctx context.Context) ([]*database.SpreadsheetConfig, error)
	Get(ctx context.Context, id int) (*database.SpreadsheetConfig, error)
	Create(ctx context.Context, req *database.CreateSpreadsheetRequest) (*database.SpreadsheetConfig, error)
	Update(ctx context.Context, req *database.UpdateSpreadsheetRequest) (*database.SpreadsheetConfig, error)
	Delete(ctx context.Context, id int) error
	SetDefault(ctx context.Context, id int) error
	Worksheets(ctx context.Context, id int) ([]google.WorksheetInfo, error)
	Headers(ctx context.Context, id int, worksheet string) ([]string, error)
	Mapping(ctx context.Context, id int, worksheet string) (map[reconcile.Field]string, error)
}

// SpreadsheetHandler handles spreadsheet configuration HTTP requests
type SpreadsheetHandler struct {
	service SpreadsheetServicer
	logger  *logger.Logger
}

// NewSpreadsheetHandler creates a new spreadsheet handler
func NewSpreadsheetHandler(service SpreadsheetServicer, log *logger.Logger) *SpreadsheetHandler {
	return &SpreadsheetHandler{
		service: service,
		logger:  log.WithContext("component", "spreadsheet_handler"),
	}
}

// CreateSpreadsheetBody is the body for POST /api/spreadsheets. SheetID
// accepts either a bare document ID or a full Google Sheets URL.
type CreateSpreadsheetBody struct {
	Name             string `json:"name"`
	SheetID          string `json:"sheet_id"`
	IsDefault        bool   `json:"is_default"`
	DefaultWorksheet string `json:"default_worksheet,omitempty"`
}

// UpdateSpreadsheetBody is the body for PUT /api/spreadsheets/{id}
type UpdateSpreadsheetBody struct {
	Name             string `json:"name"`
	SheetID          string `json:"sheet_id"`
	IncludeDate      bool   `json:"include_date"`
	IncludeDistance  bool   `json:"include_distance"`
	IncludeTime      bool   `json:"include_time"`
	IncludePace      bool   `json:"include_pace"`
	IncludeHR        bool   `json:"include_hr"`
	DefaultWorksheet string `json:"default_worksheet,omitempty"`
}

// List handles GET /api/spreadsheets
func (h *SpreadsheetHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list spreadsheet configurations", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list spreadsheets")
		return
	}
	if configs == nil {
		configs = []*database.SpreadsheetConfig{}
	}
	writeJSON(w, h.logger, http.StatusOK, configs)
}

// Get handles GET /api/spreadsheets/{id}
func (h *SpreadsheetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	config, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load spreadsheet configuration",
			"spreadsheet_config_id", id,
			"error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load spreadsheet")
		return
	}
	if config == nil {
		writeError(w, h.logger, http.StatusNotFound, "NOT_FOUND", "Spreadsheet configuration not found")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, config)
}

// Create handles POST /api/spreadsheets
func (h *SpreadsheetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateSpreadsheetBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON in request body")
		return
	}

	if strings.TrimSpace(body.Name) == "" && strings.TrimSpace(body.SheetID) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "MISSING_IDENTIFIER", "Either a name or a sheet ID is required")
		return
	}

	config, err := h.service.Create(r.Context(), &database.CreateSpreadsheetRequest{
		Name:             body.Name,
		SheetID:          body.SheetID,
		IsDefault:        body.IsDefault,
		DefaultWorksheet: body.DefaultWorksheet,
	})
	if err != nil {
		h.logger.Warn("Failed to create spreadsheet configuration",
			"name", body.Name,
			"error", err)
		writeError(w, h.logger, http.StatusBadRequest, "CREATE_FAILED", err.Error())
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, config)
}

// Update handles PUT /api/spreadsheets/{id}
func (h *SpreadsheetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	var body UpdateSpreadsheetBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON in request body")
		return
	}

	config, err := h.service.Update(r.Context(), &database.UpdateSpreadsheetRequest{
		ID:               id,
		Name:             body.Name,
		SheetID:          body.SheetID,
		IncludeDate:      body.IncludeDate,
		IncludeDistance:  body.IncludeDistance,
		IncludeTime:      body.IncludeTime,
		IncludePace:      body.IncludePace,
		IncludeHR:        body.IncludeHR,
		DefaultWorksheet: body.DefaultWorksheet,
	})
	if err != nil {
		h.logger.Error("Failed to update spreadsheet configuration",
			"spreadsheet_config_id", id,
			"error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update spreadsheet")
		return
	}
	if config == nil {
		writeError(w, h.logger, http.StatusNotFound, "NOT_FOUND", "Spreadsheet configuration not found")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, config)
}

// Delete handles DELETE /api/spreadsheets/{id}
func (h *SpreadsheetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrDefaultSpreadsheet) {
			writeError(w, h.logger, http.StatusConflict, "IS_DEFAULT", "The default spreadsheet cannot be deleted; promote another one first")
			return
		}
		h.logger.Error("Failed to delete spreadsheet configuration",
			"spreadsheet_config_id", id,
			"error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete spreadsheet")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]bool{"success": true})
}

// SetDefault handles POST /api/spreadsheets/{id}/default
func (h *SpreadsheetHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	if err := h.service.SetDefault(r.Context(), id); err != nil {
		h.logger.Error("Failed to set default spreadsheet",
			"spreadsheet_config_id", id,
			"error", err)
		writeError(w, h.logger, http.StatusNotFound, "NOT_FOUND", "Spreadsheet configuration not found")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]bool{"success": true})
}

// Worksheets handles GET /api/spreadsheets/{id}/worksheets
func (h *SpreadsheetHandler) Worksheets(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	worksheets, err := h.service.Worksheets(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to list worksheets",
			"spreadsheet_config_id", id,
			"error", err)
		writeError(w, h.logger, http.StatusBadGateway, "SHEETS_ERROR", "Failed to list worksheets")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{"worksheets": worksheets})
}

// Headers handles GET /api/spreadsheets/{id}/headers?worksheet=...
func (h *SpreadsheetHandler) Headers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	headers, err := h.service.Headers(r.Context(), id, r.URL.Query().Get("worksheet"))
	if err != nil {
		h.logger.Error("Failed to read worksheet headers",
			"spreadsheet_config_id", id,
			"error", err)
		writeError(w, h.logger, http.StatusBadGateway, "SHEETS_ERROR", "Failed to read worksheet headers")
		return
	}
	if headers == nil {
		headers = []string{}
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{"headers": headers})
}

// Mapping handles GET /api/spreadsheets/{id}/mapping?worksheet=...
func (h *SpreadsheetHandler) Mapping(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}

	config, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load spreadsheet configuration",
			"spreadsheet_config_id", id,
			"error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load spreadsheet")
		return
	}
	if config == nil {
		writeError(w, h.logger, http.StatusNotFound, "NOT_FOUND", "Spreadsheet configuration not found")
		return
	}

	mapping, err := h.service.Mapping(r.Context(), id, r.URL.Query().Get("worksheet"))
	if err != nil {
		h.logger.Error("Failed to load stored mapping",
			"spreadsheet_config_id", id,
			"error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load stored mapping")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"mapping": mappingToStrings(mapping),
		"preferences": map[string]bool{
			"include_date":     config.IncludeDate,
			"include_distance": config.IncludeDistance,
			"include_time":     config.IncludeTime,
			"include_pace":     config.IncludePace,
			"include_hr":       config.IncludeHR,
		},
	})
}

func (h *SpreadsheetHandler) idParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_ID", "Invalid spreadsheet ID")
		return 0, false
	}
	return id, true
}
