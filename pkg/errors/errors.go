// Package errors holds the typed failures raised by lineage and result reconciliation.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// HTTPConvertible is implemented by every typed error in this package.
type HTTPConvertible interface {
	error
	ToHTTPError() *httperror.HTTPError
}

// NotFoundError means an experiment identifier did not resolve and could not be auto-provisioned.
// MissingParent names the parent a treatment variant needed when that is the reason.
type NotFoundError struct {
	Identifier    string
	MissingParent string
}

func NewNotFoundError(identifier string) *NotFoundError {
	return &NotFoundError{Identifier: identifier}
}

func NewMissingParentError(identifier, parent string) *NotFoundError {
	return &NotFoundError{Identifier: identifier, MissingParent: parent}
}

func (e *NotFoundError) Error() string {
	if e.MissingParent != "" {
		return fmt.Sprintf("experiment '%s' not found and cannot be created: parent experiment '%s' does not exist", e.Identifier, e.MissingParent)
	}
	return fmt.Sprintf("experiment '%s' not found (matched ignoring case, hyphens, underscores and spaces)", e.Identifier)
}

func (e *NotFoundError) ToHTTPError() *httperror.HTTPError {
	out := httperror.NewHTTPError(http.StatusNotFound, e.Error()).AddMetaValue("identifier", e.Identifier)
	if e.MissingParent != "" {
		out.AddMetaValue("missing_parent", e.MissingParent)
	}
	return out
}

// ValidationError blocks a whole row. Row is 1-based; zero means a single-record call.
type ValidationError struct {
	Row     int
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func NewValidationErrorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) AtRow(row int) *ValidationError {
	e.Row = row
	return e
}

func (e *ValidationError) Error() string {
	path := []string{}
	if e.Row > 0 {
		path = append(path, fmt.Sprintf("row %d", e.Row))
	}
	if e.Field != "" {
		path = append(path, fmt.Sprintf("field '%s'", e.Field))
	}
	if len(path) == 0 {
		return e.Message
	}
	return strings.Join(path, " -> ") + ": " + e.Message
}

func (e *ValidationError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Error()).AddMetaValue("row", e.Row).AddMetaValue("field", e.Field)
}

// DataQualityWarning is non-fatal: a dropped cell or a fuzzy identifier match.
type DataQualityWarning struct {
	Row     int    `json:"row,omitempty"`
	Field   string `json:"field,omitempty"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (w DataQualityWarning) String() string {
	prefix := ""
	if w.Row > 0 {
		prefix = fmt.Sprintf("row %d: ", w.Row)
	}
	if w.Field != "" {
		return fmt.Sprintf("%sfield '%s': %s", prefix, w.Field, w.Message)
	}
	return prefix + w.Message
}

// FatalMigrationError is raised when an ancestor walk revisits an experiment.
// It aborts chain propagation for that lineage family only.
type FatalMigrationError struct {
	ExperimentID string
	Chain        []int64
}

func (e *FatalMigrationError) Error() string {
	return fmt.Sprintf("lineage cycle detected while walking ancestors of '%s' (visited %v)", e.ExperimentID, e.Chain)
}

func (e *FatalMigrationError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusInternalServerError, e.Error()).AddMetaValue("experiment_id", e.ExperimentID)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return stderrors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}

func IsFatalMigration(err error) bool {
	var target *FatalMigrationError
	return stderrors.As(err, &target)
}

// ToHTTPError converts typed errors for the transport layer and passes everything else through.
func ToHTTPError(err error) error {
	if err == nil {
		return nil
	}
	var convertible HTTPConvertible
	if stderrors.As(err, &convertible) {
		return convertible.ToHTTPError()
	}
	return err
}
