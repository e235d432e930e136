// Package errors provides the error taxonomy for the Taverna Player client.
//
// Every failure the portal client reports matches a base error, so callers
// can branch with errors.Is and decide on any retry of the whole operation
// themselves. A malformed catalog entry also matches ErrPrecondition. Wrapped
// error types add the operation, the HTTP status or the offending port name.
//
// # Error Types
//
// Base errors (sentinel errors):
//   - ErrPrecondition - bad or missing arguments, caught before any network call
//   - ErrUnreachable - the portal URL could not be contacted
//   - ErrCatalogFetch - the workflow catalog could not be retrieved
//   - ErrUnknownWorkflow - the catalog does not list the requested workflow
//   - ErrTemplateFetch - the run template could not be retrieved
//   - ErrMissingInput - a required input port has no value and no default
//   - ErrRunCreation - the portal refused or lost a new run
//   - ErrRunQuery - polling the run state failed
//   - ErrRunCancelled - the run ended in the cancelled state
//   - ErrRunOutput - the output bundle could not be retrieved or decoded
//   - ErrRunLog - the run log could not be retrieved
//   - ErrMalformed - a response or description lacks expected keys
//   - ErrNotFound, ErrInvalid - configuration file errors
//
// Wrapped error types (add context):
//   - PortalError{Op, Err, Status, ID} - a failed portal call
//   - MissingInputError{Port} - the port that blocked input resolution
//   - RunCreationError{Kind, Status, Err} - a failed run submission
//   - ConfigError{Path, Err} - configuration errors
//
// # Usage
//
//	run, err := client.RunWorkflow(ctx, 42, "analysis", inputs)
//	if errors.IsRunCancelled(err) {
//	    // the portal cancelled the run, no outputs exist
//	}
//	if mi, ok := errors.AsMissingInputError(err); ok {
//	    fmt.Println("supply a value for", mi.Port)
//	}
package errors

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	// ErrPrecondition indicates bad or missing call arguments.
	ErrPrecondition = baseError("precondition failed")

	// ErrUnreachable indicates the portal could not be contacted.
	ErrUnreachable = baseError("portal unreachable")

	// ErrCatalogFetch indicates the workflow catalog could not be retrieved.
	ErrCatalogFetch = baseError("unable to retrieve workflow descriptions")

	// ErrUnknownWorkflow indicates the catalog does not list a workflow.
	ErrUnknownWorkflow = baseError("unknown workflow")

	// ErrTemplateFetch indicates a run template could not be retrieved.
	ErrTemplateFetch = baseError("unable to retrieve run template")

	// ErrMissingInput indicates a required input port has no value.
	ErrMissingInput = baseError("missing input")

	// ErrRunCreation indicates a new run could not be created or located.
	ErrRunCreation = baseError("unable to create run")

	// ErrRunQuery indicates the run state could not be read.
	ErrRunQuery = baseError("error reading run information")

	// ErrRunCancelled indicates the run was cancelled on the portal.
	ErrRunCancelled = baseError("run was cancelled")

	// ErrRunOutput indicates the output bundle could not be read.
	ErrRunOutput = baseError("error reading outputs")

	// ErrRunLog indicates the run log could not be read.
	ErrRunLog = baseError("error reading log")

	// ErrMalformed indicates a response lacks expected keys.
	ErrMalformed = baseError("malformed response")

	// ErrNotFound indicates a file or resource was not found.
	ErrNotFound = baseError("not found")

	// ErrInvalid indicates validation failed.
	ErrInvalid = baseError("invalid")
)

// baseError is a string that implements error.
type baseError string

func (e baseError) Error() string { return string(e) }

// PortalError represents a failed call against the portal.
type PortalError struct {
	// Op is the operation being performed (e.g., "list workflows", "poll run").
	Op string
	// Err is the underlying error.
	Err error
	// Status is the HTTP status code, 0 for transport failures.
	Status int
	// ID identifies the workflow or run involved (optional).
	ID string
}

func (e *PortalError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Err)
	if e.ID != "" {
		msg = fmt.Sprintf("%s %q: %s", e.Op, e.ID, e.Err)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	return msg
}

func (e *PortalError) Unwrap() error { return e.Err }

// MissingInputError names the input port that has neither a caller value nor
// a template default.
type MissingInputError struct {
	Port string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("no value specified for %s", e.Port)
}

func (e *MissingInputError) Unwrap() error { return ErrMissingInput }

// CreationKind distinguishes the two ways run submission fails.
type CreationKind string

const (
	// CreateFailed means the portal answered the POST with an error status.
	CreateFailed CreationKind = "create failed"
	// LocateFailed means the POST succeeded but no run id could be resolved.
	LocateFailed CreationKind = "locate new run failed"
)

// RunCreationError represents a failed run submission.
type RunCreationError struct {
	Kind CreationKind
	// Status is the HTTP status code of the POST (0 if not applicable).
	Status int
	// Err is the underlying cause (optional).
	Err error
}

func (e *RunCreationError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrRunCreation, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

// Is reports a match against ErrRunCreation so errors.Is works on both the
// base error and the cause.
func (e *RunCreationError) Is(target error) bool { return target == ErrRunCreation }

func (e *RunCreationError) Unwrap() error { return e.Err }

// ConfigError represents an error related to configuration.
type ConfigError struct {
	// Path is the configuration file path (optional).
	Path string
	// Err is the underlying error.
	Err error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %s", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Wrap adds context to an error by wrapping it with an operation name.
// The returned error implements Unwrap() allowing errors.Is and errors.As
// to work with the wrapped error.
func Wrap(err error, op string) error {
	return &wrappedError{op: op, err: err}
}

// wrappedError is an error with an operation context.
type wrappedError struct {
	op  string
	err error
}

func (e *wrappedError) Error() string { return fmt.Sprintf("%s: %s", e.op, e.err) }
func (e *wrappedError) Unwrap() error { return e.err }

// Precondition returns an ErrPrecondition carrying a description of the bad
// argument.
func Precondition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// Malformed returns an ErrMalformed carrying a description of what is missing.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// IsPrecondition reports whether err is or wraps ErrPrecondition.
func IsPrecondition(err error) bool { return errors.Is(err, ErrPrecondition) }

// IsUnreachable reports whether err is or wraps ErrUnreachable.
func IsUnreachable(err error) bool { return errors.Is(err, ErrUnreachable) }

// IsCatalogFetch reports whether err is or wraps ErrCatalogFetch.
func IsCatalogFetch(err error) bool { return errors.Is(err, ErrCatalogFetch) }

// IsUnknownWorkflow reports whether err is or wraps ErrUnknownWorkflow.
func IsUnknownWorkflow(err error) bool { return errors.Is(err, ErrUnknownWorkflow) }

// IsTemplateFetch reports whether err is or wraps ErrTemplateFetch.
func IsTemplateFetch(err error) bool { return errors.Is(err, ErrTemplateFetch) }

// IsMissingInput reports whether err is or wraps ErrMissingInput.
func IsMissingInput(err error) bool { return errors.Is(err, ErrMissingInput) }

// IsRunCreation reports whether err is or wraps ErrRunCreation.
func IsRunCreation(err error) bool { return errors.Is(err, ErrRunCreation) }

// IsRunQuery reports whether err is or wraps ErrRunQuery.
func IsRunQuery(err error) bool { return errors.Is(err, ErrRunQuery) }

// IsRunCancelled reports whether err is or wraps ErrRunCancelled.
func IsRunCancelled(err error) bool { return errors.Is(err, ErrRunCancelled) }

// IsRunOutput reports whether err is or wraps ErrRunOutput.
func IsRunOutput(err error) bool { return errors.Is(err, ErrRunOutput) }

// IsRunLog reports whether err is or wraps ErrRunLog.
func IsRunLog(err error) bool { return errors.Is(err, ErrRunLog) }

// IsMalformed reports whether err is or wraps ErrMalformed.
func IsMalformed(err error) bool { return errors.Is(err, ErrMalformed) }

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalid reports whether err is or wraps ErrInvalid.
func IsInvalid(err error) bool { return errors.Is(err, ErrInvalid) }

// AsPortalError reports whether err can be typed as a *PortalError.
func AsPortalError(err error) (*PortalError, bool) {
	var pe *PortalError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// AsMissingInputError reports whether err can be typed as a *MissingInputError.
func AsMissingInputError(err error) (*MissingInputError, bool) {
	var me *MissingInputError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// AsRunCreationError reports whether err can be typed as a *RunCreationError.
func AsRunCreationError(err error) (*RunCreationError, bool) {
	var ce *RunCreationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// AsConfigError reports whether err can be typed as a *ConfigError.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
