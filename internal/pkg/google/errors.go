package google

import (
	"errors"
	"fmt"
)

// AuthError represents authentication-related errors in Google API interactions
type AuthError struct {
	Type    string
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("google auth error (%s): %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("google auth error (%s): %s", e.Type, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// APIError represents general Google API errors
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Cause      error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("google api error (status %d, type %s): %s (caused by: %v)",
			e.StatusCode, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("google api error (status %d, type %s): %s",
		e.StatusCode, e.Type, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// NetworkError represents network-related errors during API calls
type NetworkError struct {
	Operation string
	Message   string
	Cause     error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("google network error during %s: %s (caused by: %v)",
			e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("google network error during %s: %s", e.Operation, e.Message)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// SheetsError represents Google Sheets-specific errors
type SheetsError struct {
	SpreadsheetID string
	Type          string
	Message       string
	Cause         error
}

func (e *SheetsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("google sheets error (spreadsheet %s, type %s): %s (caused by: %v)",
			e.SpreadsheetID, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("google sheets error (spreadsheet %s, type %s): %s",
		e.SpreadsheetID, e.Type, e.Message)
}

func (e *SheetsError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether an error indicates a missing spreadsheet
func IsNotFound(err error) bool {
	var sheetsErr *SheetsError
	if errors.As(err, &sheetsErr) {
		return sheetsErr.Type == "NOT_FOUND"
	}
	return false
}

// IsPermissionDenied reports whether an error indicates the service account
// has not been granted access to the spreadsheet
func IsPermissionDenied(err error) bool {
	var sheetsErr *SheetsError
	if errors.As(err, &sheetsErr) {
		return sheetsErr.Type == "PERMISSION_DENIED"
	}
	return false
}
