package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	enrichapp "github.com/p2repo/cdenrich/internal/app/enrichment"
	"github.com/p2repo/cdenrich/internal/transport/http/contract"
)

// StatusHandler serves a read-only snapshot of queue, active-set, and
// rate-limit tracker state.
type StatusHandler struct {
	manager *enrichapp.Manager
}

// NewStatusHandler constructs a StatusHandler.
func NewStatusHandler(manager *enrichapp.Manager) *StatusHandler {
	return &StatusHandler{manager: manager}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := contract.WriteJSON(w, http.StatusOK, contract.DataResponse[enrichapp.Status]{
		Data: h.manager.Status(),
	}); err != nil {
		slog.Default().Error("writing status response failed", slog.String("error", err.Error()))
	}
}

// submitTestRequest is the development-only enrichment probe body.
type submitTestRequest struct {
	URI string `json:"uri" validate:"required,url"`
}

// submitTestResponse reports what the probe observed.
type submitTestResponse struct {
	URI string `json:"uri"`
	// Resolved is true when the submission completed synchronously (a
	// cache hit or a negative-cache hit).
	Resolved bool `json:"resolved"`
	// Properties holds whatever the manager annotated onto the probe
	// component; empty until the future resolves.
	Properties map[string]string `json:"properties,omitempty"`
}

// probeComponent is a throwaway component for /debug/submit-test.
type probeComponent struct {
	mu    sync.Mutex
	props map[string]string
}

func (c *probeComponent) AddProperty(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.props == nil {
		c.props = make(map[string]string)
	}
	c.props[name] = value
}

func (c *probeComponent) properties() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.props))
	for k, v := range c.props {
		out[k] = v
	}
	return out
}

// SubmitTestHandler lets an operator push a single enrichment through the
// manager from a development shell. Never mounted outside development.
type SubmitTestHandler struct {
	manager *enrichapp.Manager
	logger  *slog.Logger
}

// NewSubmitTestHandler constructs a SubmitTestHandler.
func NewSubmitTestHandler(manager *enrichapp.Manager, logger *slog.Logger) *SubmitTestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmitTestHandler{manager: manager, logger: logger}
}

func (h *SubmitTestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req submitTestRequest
	validationErrors, err := contract.DecodeAndValidateJSON(r.Body, &req)
	if err != nil {
		contract.WriteProblem(w, contract.NewProblemForCode(r, contract.CodeValInvalidJSON))
		return
	}
	if len(validationErrors) > 0 {
		fieldErrors := make([]contract.FieldError, len(validationErrors))
		for i, ve := range validationErrors {
			fieldErrors[i] = contract.FieldError{Field: ve.Field, Message: ve.Message, Code: contract.CodeValInvalidFormat}
		}
		contract.WriteProblem(w, contract.NewFieldValidationProblem(r, fieldErrors))
		return
	}
	if _, err := url.ParseRequestURI(req.URI); err != nil {
		contract.WriteProblem(w, contract.NewProblemForCode(r, contract.CodeValInvalidFormat))
		return
	}

	component := &probeComponent{}
	future, err := h.manager.Submit(r.Context(), component, req.URI)
	if err != nil {
		contract.WriteProblem(w, contract.FromError(r, err))
		return
	}

	resp := submitTestResponse{URI: req.URI, Resolved: future.IsDone()}
	status := http.StatusAccepted
	if resp.Resolved {
		status = http.StatusOK
		resp.Properties = component.properties()
	}
	if err := contract.WriteJSON(w, status, contract.DataResponse[submitTestResponse]{Data: resp}); err != nil {
		h.logger.Error("writing submit-test response failed", slog.String("error", err.Error()))
	}
}
