package contract_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/p2repo/cdenrich/internal/domain/enrichment"
	"github.com/p2repo/cdenrich/internal/infra/resilience"
	"github.com/p2repo/cdenrich/internal/transport/http/contract"
)

// mockCodeError implements codeGetter interface for testing
type mockCodeError struct {
	code string
}

func (e *mockCodeError) Error() string {
	return "mock error"
}

func (e *mockCodeError) GetCode() string {
	return e.code
}

func TestMapErrorToCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns SYS-001",
			err:      nil,
			wantCode: contract.CodeSysInternal,
		},
		{
			name:     "interrupted kind maps to service unavailable",
			err:      enrichment.NewError(enrichment.KindInterrupted, "shutdown"),
			wantCode: contract.CodeSysUnavailable,
		},
		{
			name:     "max attempts exceeded maps to retry limit exceeded",
			err:      enrichment.NewError(enrichment.KindMaxAttemptsExceeded, "gave up"),
			wantCode: contract.CodeResMaxRetriesExceeded,
		},
		{
			name: "resilience circuit open",
			err: &resilience.ResilienceError{
				Code:    resilience.ErrCodeCircuitOpen,
				Message: "circuit open",
			},
			wantCode: contract.CodeResCircuitOpen,
		},
		{
			name: "resilience bulkhead full",
			err: &resilience.ResilienceError{
				Code:    resilience.ErrCodeBulkheadFull,
				Message: "bulkhead full",
			},
			wantCode: contract.CodeResBulkheadFull,
		},
		{
			name: "resilience timeout exceeded",
			err: &resilience.ResilienceError{
				Code:    resilience.ErrCodeTimeoutExceeded,
				Message: "timeout",
			},
			wantCode: contract.CodeResTimeoutExceeded,
		},
		{
			name: "resilience unknown code",
			err: &resilience.ResilienceError{
				Code:    "RES-999",
				Message: "unknown resilience error",
			},
			wantCode: contract.CodeSysUnavailable,
		},
		{
			name: "generic code getter non-RES",
			err: &mockCodeError{
				code: "CUSTOM-001",
			},
			wantCode: contract.CodeSysInternal,
		},
		{
			name:     "unknown error returns SYS-001",
			err:      fmt.Errorf("some random error"),
			wantCode: contract.CodeSysInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contract.MapErrorToCode(tt.err)
			if got != tt.wantCode {
				t.Errorf("MapErrorToCode() = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestMapErrorToCode_WrappedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "wrapped enrichment error",
			err:      fmt.Errorf("operation failed: %w", enrichment.NewError(enrichment.KindInterrupted, "shutdown")),
			wantCode: contract.CodeSysUnavailable,
		},
		{
			name: "wrapped resilience error",
			err: fmt.Errorf("call failed: %w", &resilience.ResilienceError{
				Code:    resilience.ErrCodeCircuitOpen,
				Message: "circuit open",
			}),
			wantCode: contract.CodeResCircuitOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contract.MapErrorToCode(tt.err)
			if got != tt.wantCode {
				t.Errorf("MapErrorToCode() = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "interrupted → 503",
			err:        enrichment.NewError(enrichment.KindInterrupted, "shutdown"),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "resilience circuit open → 503",
			err: &resilience.ResilienceError{
				Code: resilience.ErrCodeCircuitOpen,
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "unknown error → 500",
			err:        fmt.Errorf("unknown"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contract.MapErrorToHTTPStatus(tt.err)
			if got != tt.wantStatus {
				t.Errorf("MapErrorToHTTPStatus() = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestIsClientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "resilience error is not client error",
			err: &resilience.ResilienceError{
				Code: resilience.ErrCodeCircuitOpen,
			},
			want: false,
		},
		{
			name: "interrupted is not a client error",
			err:  enrichment.NewError(enrichment.KindInterrupted, "shutdown"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contract.IsClientError(tt.err)
			if got != tt.want {
				t.Errorf("IsClientError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsServerError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "resilience error is server error",
			err: &resilience.ResilienceError{
				Code: resilience.ErrCodeCircuitOpen,
			},
			want: true,
		},
		{
			name: "interrupted is a server-side condition",
			err:  enrichment.NewError(enrichment.KindInterrupted, "shutdown"),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contract.IsServerError(tt.err)
			if got != tt.want {
				t.Errorf("IsServerError() = %v, want %v", got, tt.want)
			}
		})
	}
}
