package ownerhandler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/divs-identity/divs-agent/api"
	"github.com/divs-identity/divs-agent/interfaces"
	"github.com/divs-identity/divs-agent/workflow"
)

// Workflow is the owner-side request workflow.
type Workflow interface {
	LoadRequests(ctx context.Context) (workflow.Snapshot, error)
	Approve(ctx context.Context, id interfaces.RequestID) (workflow.Outcome, error)
	Reject(ctx context.Context, id interfaces.RequestID) (workflow.Outcome, error)
}

// Handler serves the owner's dashboard.
type Handler struct {
	workflow Workflow
	log      *slog.Logger
}

func NewHandler(wf Workflow, log *slog.Logger) *Handler {
	return &Handler{
		workflow: wf,
		log:      log,
	}
}

// RegisterRoutes configures the HTTP router with owner endpoints:
//   - GET /api/owner/requests - requests addressed to the wallet
//   - POST /api/owner/requests/{id}/approve - share the requested fields and approve
//   - POST /api/owner/requests/{id}/reject - reject
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/owner/requests", h.HandleList)
	r.Post("/api/owner/requests/{id}/approve", h.HandleApprove)
	r.Post("/api/owner/requests/{id}/reject", h.HandleReject)
}

// HandleList returns a workflow.Snapshot of the wallet's requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.workflow.LoadRequests(r.Context())
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}
	api.WriteJSON(w, h.log, http.StatusOK, snapshot)
}

// HandleApprove runs an approval and returns its workflow.Outcome. Approval
// blocks until both chain writes are confirmed.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workflow.Approve)
}

// HandleReject rejects a request and returns its workflow.Outcome.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workflow.Reject)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, interfaces.RequestID) (workflow.Outcome, error)) {
	id, err := ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}

	outcome, err := op(r.Context(), id)
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{
			Step:   workflow.FailedStep(err),
			Notice: &outcome.Notice,
		})
		return
	}
	api.WriteJSON(w, h.log, http.StatusOK, outcome)
}

// ParseRequestID parses a decimal request id from a URL. Zero is a valid id;
// unknown ids are reported by the gateway.
func ParseRequestID(raw string) (interfaces.RequestID, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid request id %q", interfaces.ErrInvalidArgument, raw)
	}
	return interfaces.RequestID(id), nil
}
