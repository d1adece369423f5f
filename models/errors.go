package models

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable is returned when no trained artifact is loaded.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrDatasetUnavailable is returned when the source dataset is missing or unreadable.
	ErrDatasetUnavailable = errors.New("dataset unavailable")
	// ErrTrainingFailure is returned when fitting or evaluation cannot complete.
	ErrTrainingFailure = errors.New("training failure")
)

// EncodingError reports a structurally invalid numeric field on one record.
// An unknown category value is never an EncodingError.
type EncodingError struct {
	Row    int
	Field  string
	Value  string
	Reason string
}

func (e *EncodingError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("encoding: row %d: field %s=%q: %s", e.Row, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("encoding: field %s=%q: %s", e.Field, e.Value, e.Reason)
}
