package contract_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p2repo/cdenrich/internal/domain/enrichment"
	"github.com/p2repo/cdenrich/internal/transport/http/contract"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	require.Equal(t, contract.ContentTypeProblemJSON, rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewProblem(t *testing.T) {
	p := contract.NewProblem(http.StatusServiceUnavailable, "Service Unavailable", "draining")

	assert.Equal(t, http.StatusServiceUnavailable, p.Status)
	assert.Equal(t, "Service Unavailable", p.Title)
	assert.Equal(t, "draining", p.Detail)
}

func TestNewProblemForCode(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/debug/status", nil)

	p := contract.NewProblemForCode(req, contract.CodeRateLimitExceeded)

	assert.Equal(t, http.StatusTooManyRequests, p.Status)
	assert.Equal(t, contract.CodeRateLimitExceeded, p.Code)
	assert.Equal(t, "/debug/status", p.Instance)
	assert.Contains(t, p.Type, contract.ProblemTypeRateLimitSlug)
}

func TestFromError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	t.Run("enrichment interruption maps to 503", func(t *testing.T) {
		err := enrichment.NewError(enrichment.KindInterrupted, "manager stopped")

		p := contract.FromError(req, err)

		assert.Equal(t, http.StatusServiceUnavailable, p.Status)
		assert.Equal(t, contract.CodeSysUnavailable, p.Code)
		// 5xx details must not leak the raw error text.
		assert.NotContains(t, p.Detail, "manager stopped")
	})

	t.Run("unknown error maps to SYS-001", func(t *testing.T) {
		p := contract.FromError(req, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, p.Status)
		assert.Equal(t, contract.CodeSysInternal, p.Code)
	})

	t.Run("nil error still yields a 500 problem", func(t *testing.T) {
		p := contract.FromError(req, nil)

		assert.Equal(t, http.StatusInternalServerError, p.Status)
	})
}

func TestWriteProblem(t *testing.T) {
	t.Run("writes problem+json with status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/debug/status", nil)

		contract.WriteProblem(rec, contract.NewProblemForCode(req, contract.CodeSysUnavailable))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decodeProblem(t, rec)
		assert.Equal(t, "Service Unavailable", body["title"])
		assert.Equal(t, contract.CodeSysUnavailable, body["code"])
		assert.Equal(t, "/debug/status", body["instance"])
	})

	t.Run("nil problem degrades to a 500", func(t *testing.T) {
		rec := httptest.NewRecorder()

		contract.WriteProblem(rec, nil)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeProblem(t, rec)
		assert.Equal(t, "Internal Server Error", body["title"])
	})
}

func TestNewFieldValidationProblem(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/debug/submit-test", nil)
	fieldErrors := []contract.FieldError{
		{Field: "uri", Message: "uri is required", Code: contract.CodeValRequired},
	}

	p := contract.NewFieldValidationProblem(req, fieldErrors)

	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, contract.CodeValRequired, p.Code)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "uri", p.Errors[0].Field)
	require.Len(t, p.ValidationErrors, 1)
	assert.Equal(t, "uri is required", p.ValidationErrors[0].Message)
}
