package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three fatal failure classes of a run.
var (
	// ErrMalformedFeed indicates the bikeshare feed violates its expected schema.
	ErrMalformedFeed = errors.New("malformed feed")

	// ErrBackendUnavailable indicates the geodata backend could not be queried.
	// The existing-entity set is then incomplete and the run must abort.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrInvalidConfiguration indicates unknown or contradictory options.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// MalformedFeedError describes the first schema violation found in a feed.
type MalformedFeedError struct {
	Document  string // e.g. "station_information"
	Index     int    // record index, -1 when not record-specific
	StationID string
	Field     string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *MalformedFeedError) Error() string {
	where := e.Document
	if where == "" {
		where = "feed"
	}
	if e.Index >= 0 {
		where = fmt.Sprintf("%s record %d", where, e.Index)
	}
	if e.StationID != "" {
		where = fmt.Sprintf("%s (station %s)", where, e.StationID)
	}
	if e.Field != "" {
		return fmt.Sprintf("malformed %s: field %s: %s", where, e.Field, e.Message)
	}
	return fmt.Sprintf("malformed %s: %s", where, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *MalformedFeedError) Unwrap() error { return e.Err }

// Is implements errors.Is support
func (e *MalformedFeedError) Is(target error) bool { return target == ErrMalformedFeed }

// NewMalformedFeedError creates a record-level MalformedFeedError.
func NewMalformedFeedError(document string, index int, stationID, field, message string) *MalformedFeedError {
	return &MalformedFeedError{
		Document:  document,
		Index:     index,
		StationID: stationID,
		Field:     field,
		Message:   message,
	}
}

// WrapMalformedFeed wraps a decode failure of a whole document.
func WrapMalformedFeed(document string, err error) error {
	if err == nil {
		return nil
	}
	return &MalformedFeedError{Document: document, Index: -1, Message: err.Error(), Err: err}
}

// BackendUnavailableError represents a failed query against the geodata backend.
type BackendUnavailableError struct {
	Backend    string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *BackendUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s unavailable (status %d): %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %s unavailable: %s", e.Backend, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// Is implements errors.Is support
func (e *BackendUnavailableError) Is(target error) bool { return target == ErrBackendUnavailable }

// NewBackendUnavailableError creates a BackendUnavailableError.
func NewBackendUnavailableError(backend string, statusCode int, message string, err error) *BackendUnavailableError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &BackendUnavailableError{
		Backend:    backend,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// InvalidConfigurationError represents a rejected option value.
type InvalidConfigurationError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface
func (e *InvalidConfigurationError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("invalid configuration for %s: %s", e.Option, e.Message)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Message)
}

// Is implements errors.Is support
func (e *InvalidConfigurationError) Is(target error) bool { return target == ErrInvalidConfiguration }

// NewInvalidConfigurationError creates an InvalidConfigurationError.
func NewInvalidConfigurationError(option string, value any, message string) *InvalidConfigurationError {
	return &InvalidConfigurationError{Option: option, Value: value, Message: message}
}

// IsMalformedFeed checks if an error is a feed schema violation
func IsMalformedFeed(err error) bool {
	return errors.Is(err, ErrMalformedFeed)
}

// IsBackendUnavailable checks if an error is a geodata backend failure
func IsBackendUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsInvalidConfiguration checks if an error is a configuration error
func IsInvalidConfiguration(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}
