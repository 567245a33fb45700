// Package contract provides HTTP transport layer contracts including
// RFC 7807 Problem Details for machine-readable error responses.
//
// This file provides error code mapping utilities that convert various error types
// to their corresponding error codes from the taxonomy defined in codes.go.
package contract

import (
	"errors"
	"strings"

	"github.com/p2repo/cdenrich/internal/domain/enrichment"
)

// codeGetter is an interface for errors that have an error code.
// This allows us to check for resilience errors without importing infra/resilience.
type codeGetter interface {
	GetCode() string
}

// kindToCode maps an enrichment.Kind surfaced on a Request's Future (only
// KindInterrupted and the opt-in KindMaxAttemptsExceeded ever are) to the
// admin surface's error-code taxonomy.
var kindToCode = map[enrichment.Kind]string{
	enrichment.KindInterrupted:         CodeSysUnavailable,
	enrichment.KindMaxAttemptsExceeded: CodeResMaxRetriesExceeded,
}

// MapErrorToCode determines the error code for any error type.
// It follows a priority order:
//  1. enrichment.Error → mapped via the Kind lookup above
//  2. Errors implementing codeGetter with RES-xxx codes → resilience errors
//  3. Unknown errors → SYS-001 (Internal Server Error)
//
// This function provides a centralized way to determine error codes
// without needing to know the specific error type.
func MapErrorToCode(err error) string {
	if err == nil {
		return CodeSysInternal
	}

	if kind, ok := enrichment.KindOf(err); ok {
		if code, ok := kindToCode[kind]; ok {
			return code
		}
		return CodeSysInternal
	}

	// Errors with GetCode() method (e.g., ResilienceError).
	// This avoids importing infra/resilience directly (depguard requirement).
	var codeErr codeGetter
	if errors.As(err, &codeErr) {
		code := codeErr.GetCode()
		if strings.HasPrefix(code, "RES-") {
			return mapResilienceCode(code)
		}
	}

	return CodeSysInternal
}

// mapResilienceCode maps resilience error codes.
// Resilience errors already use the correct RES-xxx format.
func mapResilienceCode(code string) string {
	switch code {
	case CodeResCircuitOpen:
		return CodeResCircuitOpen
	case CodeResBulkheadFull:
		return CodeResBulkheadFull
	case CodeResTimeoutExceeded:
		return CodeResTimeoutExceeded
	case CodeResMaxRetriesExceeded:
		return CodeResMaxRetriesExceeded
	default:
		// Unknown resilience code, fallback to service unavailable
		return CodeSysUnavailable
	}
}

// MapErrorToHTTPStatus returns the HTTP status code for any error type.
// Convenience function that combines MapErrorToCode with HTTPStatusForCode.
func MapErrorToHTTPStatus(err error) int {
	code := MapErrorToCode(err)
	return HTTPStatusForCode(code)
}

// IsClientError returns true if the error should result in a 4xx response.
func IsClientError(err error) bool {
	status := MapErrorToHTTPStatus(err)
	return status >= 400 && status < 500
}

// IsServerError returns true if the error should result in a 5xx response.
func IsServerError(err error) bool {
	status := MapErrorToHTTPStatus(err)
	return status >= 500
}
