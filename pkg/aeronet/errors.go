package aeronet

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error classes. Use errors.Is to tell them apart.
var (
	// ErrValidation is returned when the merged option set is incomplete or
	// contains unknown keys. No request is made in that case.
	ErrValidation = errors.New("invalid aeronet options")

	// ErrTransport is returned when the request fails or the service answers
	// with a non-2xx status.
	ErrTransport = errors.New("aeronet request failed")

	// ErrColumnMissing is returned when time derivation needs a column the
	// payload does not have.
	ErrColumnMissing = errors.New("required column missing")

	// ErrMalformedPayload is returned when the payload cannot be read as an
	// AERONET CSV table.
	ErrMalformedPayload = errors.New("malformed aeronet payload")
)

// ValidationKind says which option rule was broken.
type ValidationKind string

const (
	ValidationMissingRequired ValidationKind = "missing required options"
	ValidationMissingDataType ValidationKind = "missing data type, need one of"
	ValidationUnknownOption   ValidationKind = "unknown options"
)

// ValidationError names the offending option keys. For
// ValidationMissingDataType, Keys lists the accepted data types.
type ValidationError struct {
	Kind ValidationKind
	Keys []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(e.Keys, ", "))
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Is reports whether target is ErrTransport.
func (e *StatusError) Is(target error) bool {
	return target == ErrTransport
}

// ColumnError names the columns that were looked up and not found.
type ColumnError struct {
	Columns []string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s: %s", ErrColumnMissing, strings.Join(e.Columns, ", "))
}

// Is reports whether target is ErrColumnMissing.
func (e *ColumnError) Is(target error) bool {
	return target == ErrColumnMissing
}
