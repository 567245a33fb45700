// Package contract provides HTTP transport layer contracts including
// RFC 7807 Problem Details for machine-readable error responses.
//
// This file implements Problem type using github.com/moogar0880/problems
// for RFC 7807 compliance with project-specific extensions.
package contract

import (
	"encoding/json"
	"net/http"

	"github.com/moogar0880/problems"

	"github.com/p2repo/cdenrich/internal/transport/http/ctxutil"
)

const (
	ProblemTypeValidationErrorSlug    = "validation-error"
	ProblemTypeNotFoundSlug           = "not-found"
	ProblemTypeConflictSlug           = "conflict"
	ProblemTypeInternalErrorSlug      = "internal-error"
	ProblemTypeUnauthorizedSlug       = "unauthorized"
	ProblemTypeForbiddenSlug          = "forbidden"
	ProblemTypeRateLimitSlug          = "rate-limit-exceeded"
	ProblemTypeServiceUnavailableSlug = "service-unavailable"

	ContentTypeProblemJSON = "application/problem+json"
)

// FieldError represents a single field validation error with code.
// This extends ValidationError to include an error code per field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationError represents a single field validation error.
// Kept for backward compatibility.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Problem represents an RFC 7807 Problem Details response with project-specific extensions.
// It embeds the moogar0880/problems DefaultProblem for core RFC 7807 compliance
// and adds extension fields for error correlation and validation details.
//
// Thread-safety: Problem instances are not safe for concurrent modification.
// Create a new Problem for each error response.
type Problem struct {
	*problems.DefaultProblem

	// Extension fields
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`

	// Errors contains per-field validation errors
	Errors []FieldError `json:"errors,omitempty"`

	// ValidationErrors is for backward compatibility
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
}

// NewProblem creates a new Problem from a problems.DefaultProblem.
// It copies the core RFC 7807 fields from the library type.
func NewProblem(status int, title, detail string) *Problem {
	baseProblem := problems.NewStatusProblem(status)
	baseProblem.Detail = detail
	baseProblem.Title = title // Override title if provided

	return &Problem{
		DefaultProblem: baseProblem,
	}
}

// NewProblemWithType creates a Problem with a custom type URI.
func NewProblemWithType(typeURI string, status int, title, detail string) *Problem {
	baseProblem := problems.NewStatusProblem(status)
	baseProblem.Type = typeURI
	baseProblem.Title = title
	baseProblem.Detail = detail

	return &Problem{
		DefaultProblem: baseProblem,
	}
}

// NewFieldValidationProblem creates a Problem for validation errors with FieldError details.
// It populates the Errors field with per-field validation details including error codes,
// and extracts request_id and trace_id from the request context.
//
// Each FieldError carries its own per-field error code; the same entries are
// mirrored into ValidationErrors without codes.
func NewFieldValidationProblem(r *http.Request, fieldErrors []FieldError) *Problem {
	baseProblem := problems.NewDetailedProblem(http.StatusBadRequest, "One or more fields failed validation")
	baseProblem.Type = ProblemTypeURL(ProblemTypeValidationErrorSlug)
	baseProblem.Title = "Validation Error"

	problem := &Problem{
		DefaultProblem:   baseProblem,
		Code:             CodeValRequired,
		Errors:           fieldErrors,
		ValidationErrors: fieldErrorsToValidationErrors(fieldErrors),
	}

	if r != nil {
		problem.Instance = r.URL.Path
		populateProblemIDs(r, problem)
	}

	return problem
}

// FromError creates a Problem from any error, via MapErrorToCode's priority
// order (enrichment.Kind, then resilience codeGetter, then a SYS-001
// fallback). The enrichment manager itself never surfaces an error over
// HTTP; this exists for the admin surface's own operational failures
// (readiness probe failures, /debug/status, /debug/submit-test).
func FromError(r *http.Request, err error) *Problem {
	if err == nil {
		def := GetErrorCodeInfo(CodeSysInternal)
		return NewProblem(def.HTTPStatus, def.Title, def.DetailTemplate)
	}

	code := MapErrorToCode(err)
	info := GetErrorCodeInfo(code)

	detail := err.Error()
	if info.HTTPStatus >= 500 {
		detail = info.DetailTemplate
	}

	baseProblem := problems.NewDetailedProblem(info.HTTPStatus, detail)
	baseProblem.Type = ProblemTypeURL(info.ProblemTypeSlug)
	baseProblem.Title = info.Title

	problem := &Problem{
		DefaultProblem: baseProblem,
		Code:           info.Code,
	}

	if r != nil {
		problem.Instance = r.URL.Path
		populateProblemIDs(r, problem)
	}

	return problem
}

// NewProblemForCode builds a Problem directly from a taxonomy code, for sites
// that already know the precise code (middleware rejecting a request before
// any domain error exists) rather than needing FromError's classification.
func NewProblemForCode(r *http.Request, code string) *Problem {
	info := GetErrorCodeInfo(code)

	baseProblem := problems.NewDetailedProblem(info.HTTPStatus, info.DetailTemplate)
	baseProblem.Type = ProblemTypeURL(info.ProblemTypeSlug)
	baseProblem.Title = info.Title

	problem := &Problem{
		DefaultProblem: baseProblem,
		Code:           info.Code,
	}

	if r != nil {
		problem.Instance = r.URL.Path
		populateProblemIDs(r, problem)
	}

	return problem
}

// populateProblemIDs extracts request_id and trace_id from context and sets them on the Problem.
func populateProblemIDs(r *http.Request, problem *Problem) {
	if r == nil || problem == nil {
		return
	}

	problem.RequestID = ctxutil.GetRequestID(r.Context())
	if traceID := ctxutil.GetTraceID(r.Context()); traceID != "" && traceID != ctxutil.EmptyTraceID {
		problem.TraceID = traceID
	}
}

// WriteProblem writes the Problem as an RFC 7807 JSON response.
// It sets the Content-Type to application/problem+json and writes the status code.
func WriteProblem(w http.ResponseWriter, problem *Problem) {
	if problem == nil {
		problem = NewProblem(http.StatusInternalServerError, "Internal Server Error", "An internal error occurred")
	}
	if problem.Status == 0 {
		problem.Status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(problem.Status)

	// We use json.NewEncoder which respects the json tags on the Problem struct.
	// Note: We explicitly ignore the encoding error here because we've already written
	// the status code and headers. If encoding fails, we cannot send a different
	// status code or useful error response at this point.
	_ = json.NewEncoder(w).Encode(problem)
}

// fieldErrorsToValidationErrors converts FieldError slice to ValidationError slice for backward compatibility.
func fieldErrorsToValidationErrors(fieldErrors []FieldError) []ValidationError {
	if len(fieldErrors) == 0 {
		return nil
	}
	legacyErrors := make([]ValidationError, len(fieldErrors))
	for i, fe := range fieldErrors {
		legacyErrors[i] = ValidationError{
			Field:   fe.Field,
			Message: fe.Message,
		}
	}
	return legacyErrors
}
