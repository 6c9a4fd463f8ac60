package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tracksync/strava-sheets-sync/internal/pkg/api/middleware"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/database"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/logger"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/reconcile"
	"github.com/tracksync/strava-sheets-sync/internal/pkg/strava"
	syncsvc "github.com/tracksync/strava-sheets-sync/internal/pkg/sync"
)

// ImportServicer is the import orchestration surface the handler needs
type ImportServicer interface {
	PreviewActivities(ctx context.Context, accessToken string, params strava.ListActivitiesParams) ([]reconcile.Activity, error)
	ConfirmImport(ctx context.Context, req *syncsvc.ImportRequest) (*syncsvc.ImportResult, error)
}

// ConfigResolver resolves spreadsheet configurations and stored mappings
type ConfigResolver interface {
	Get(ctx context.Context, id int) (*database.SpreadsheetConfig, error)
	GetDefault(ctx context.Context) (*database.SpreadsheetConfig, error)
	Mapping(ctx context.Context, id int, worksheet string) (map[reconcile.Field]string, error)
}

// ImportHandler handles activity preview, import confirmation and the
// one-shot daily sync
type ImportHandler struct {
	importService ImportServicer
	configs       ConfigResolver
	logger        *logger.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importService ImportServicer, configs ConfigResolver, log *logger.Logger) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		configs:       configs,
		logger:        log.WithContext("component", "import_handler"),
	}
}

// PreviewRequest selects the activity window to fetch from Strava.
// Timestamps are RFC 3339.
type PreviewRequest struct {
	After   string `json:"after,omitempty"`
	Before  string `json:"before,omitempty"`
	Page    int    `json:"page,omitempty"`
	PerPage int    `json:"per_page,omitempty"`
}

// ImportConfirmRequest is the body for POST /api/import
type ImportConfirmRequest struct {
	SpreadsheetID int                  `json:"spreadsheet_id"`
	Worksheet     string               `json:"worksheet,omitempty"`
	Mapping       map[string]string    `json:"mapping"`
	Activities    []reconcile.Activity `json:"activities"`
}

// Preview handles POST /api/activities/preview
func (h *ImportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := middleware.GetAccessTokenFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated")
		return
	}

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON in request body")
		return
	}

	params, err := listParamsFromRequest(&req)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_WINDOW", err.Error())
		return
	}

	activities, err := h.importService.PreviewActivities(r.Context(), accessToken, params)
	if err != nil {
		h.writeImportError(w, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"activities": activities,
		"count":      len(activities),
	})
}

// Confirm handles POST /api/import
func (h *ImportHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ImportConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON in request body")
		return
	}

	mapping, err := parseMapping(req.Mapping)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_MAPPING", err.Error())
		return
	}

	config, err := h.configs.Get(r.Context(), req.SpreadsheetID)
	if err != nil {
		h.logger.Error("Failed to load spreadsheet configuration",
			"spreadsheet_config_id", req.SpreadsheetID,
			"error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load spreadsheet configuration")
		return
	}
	if config == nil {
		writeError(w, h.logger, http.StatusNotFound, "NOT_FOUND", "Spreadsheet configuration not found")
		return
	}

	result, err := h.importService.ConfirmImport(r.Context(), &syncsvc.ImportRequest{
		Activities: req.Activities,
		Config:     config,
		Worksheet:  req.Worksheet,
		Mapping:    mapping,
	})
	if err != nil {
		h.writeImportError(w, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}

// SyncToday handles POST /api/sync/today. It imports today's activities into
// the default spreadsheet using the mapping stored from the last import.
func (h *ImportHandler) SyncToday(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := middleware.GetAccessTokenFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated")
		return
	}

	config, err := h.configs.GetDefault(r.Context())
	if err != nil {
		h.logger.Error("Failed to load default spreadsheet configuration", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load default spreadsheet configuration")
		return
	}
	if config == nil {
		writeError(w, h.logger, http.StatusConflict, "NO_DEFAULT_SPREADSHEET", "No default spreadsheet is configured")
		return
	}

	mapping, err := h.configs.Mapping(r.Context(), config.ID, config.DefaultWorksheet)
	if err != nil {
		h.logger.Error("Failed to load stored mapping",
			"spreadsheet_config_id", config.ID,
			"error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load stored mapping")
		return
	}
	if len(mapping) == 0 {
		writeError(w, h.logger, http.StatusConflict, "NO_STORED_MAPPING", "No field mapping stored; run a manual import first")
		return
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	activities, err := h.importService.PreviewActivities(r.Context(), accessToken, strava.ListActivitiesParams{
		After: &midnight,
	})
	if err != nil {
		h.writeImportError(w, err)
		return
	}

	result, err := h.importService.ConfirmImport(r.Context(), &syncsvc.ImportRequest{
		Activities: activities,
		Config:     config,
		Worksheet:  config.DefaultWorksheet,
		Mapping:    mapping,
	})
	if err != nil {
		h.writeImportError(w, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}

// writeImportError maps structured import failures onto HTTP responses.
// Mapping-related failures use 422 and echo the preserved mapping.
func (h *ImportHandler) writeImportError(w http.ResponseWriter, err error) {
	var impErr *syncsvc.ImportError
	if !errors.As(err, &impErr) {
		h.logger.Error("Unexpected import error", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
		return
	}

	switch impErr.Kind {
	case syncsvc.ErrAuthExpired:
		writeError(w, h.logger, http.StatusUnauthorized, "AUTH_EXPIRED", "Strava authorization expired; please reconnect")
	case syncsvc.ErrUpstreamUnavailable:
		writeError(w, h.logger, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "An upstream service is unavailable; try again later")
	case syncsvc.ErrHeaderNotFound:
		writeJSON(w, h.logger, http.StatusUnprocessableEntity, ErrorResponse{
			Error:            "HEADER_NOT_FOUND",
			Message:          fmt.Sprintf("Header %q was not found in the worksheet", impErr.Header),
			Header:           impErr.Header,
			PreservedMapping: mappingToStrings(impErr.PreservedMapping),
		})
	case syncsvc.ErrEmptyMapping:
		writeJSON(w, h.logger, http.StatusUnprocessableEntity, ErrorResponse{
			Error:            "EMPTY_MAPPING",
			Message:          "At least one field must be mapped to a header",
			PreservedMapping: mappingToStrings(impErr.PreservedMapping),
		})
	case syncsvc.ErrWorksheetCreateFailed:
		writeJSON(w, h.logger, http.StatusUnprocessableEntity, ErrorResponse{
			Error:            "WORKSHEET_CREATE_FAILED",
			Message:          "The worksheet could not be created",
			PreservedMapping: mappingToStrings(impErr.PreservedMapping),
		})
	default:
		writeError(w, h.logger, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}

func listParamsFromRequest(req *PreviewRequest) (strava.ListActivitiesParams, error) {
	params := strava.ListActivitiesParams{
		Page:    req.Page,
		PerPage: req.PerPage,
	}

	if req.After != "" {
		t, err := time.Parse(time.RFC3339, req.After)
		if err != nil {
			return params, fmt.Errorf("invalid after timestamp: %v", err)
		}
		params.After = &t
	}
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			return params, fmt.Errorf("invalid before timestamp: %v", err)
		}
		params.Before = &t
	}
	if params.After != nil && params.Before != nil && params.Before.Before(*params.After) {
		return params, fmt.Errorf("before timestamp precedes after timestamp")
	}

	return params, nil
}

// parseMapping converts a wire mapping to field keys. Entries with an empty
// header mean the field is not mapped and are dropped rather than rejected,
// matching how form submissions report unchecked columns.
func parseMapping(raw map[string]string) (map[reconcile.Field]string, error) {
	mapping := make(map[reconcile.Field]string, len(raw))
	for name, header := range raw {
		if !reconcile.IsValidField(name) {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		if header == "" {
			continue
		}
		mapping[reconcile.Field(name)] = header
	}
	return mapping, nil
}

func mappingToStrings(mapping map[reconcile.Field]string) map[string]string {
	if mapping == nil {
		return nil
	}
	out := make(map[string]string, len(mapping))
	for field, header := range mapping {
		out[string(field)] = header
	}
	return out
}
