package requesterhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/divs-identity/divs-agent/api"
	"github.com/divs-identity/divs-agent/api/ownerhandler"
	"github.com/divs-identity/divs-agent/interfaces"
	"github.com/divs-identity/divs-agent/workflow"
)

// Workflow is the requester-side workflow.
type Workflow interface {
	Requests(ctx context.Context, filter workflow.StatusFilter) ([]interfaces.DataRequest, error)
	Create(ctx context.Context, owner ethcommon.Address, fields []string) (interfaces.DataRequest, string, error)
	FetchData(ctx context.Context, id interfaces.RequestID) (*workflow.SharedData, error)
}

// Handler serves the requester's endpoints and the field catalogue.
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

// RegisterRoutes configures the HTTP router with requester endpoints:
//   - GET /api/requester/requests?status= - requests made by the wallet
//   - POST /api/requester/requests - file a new request
//   - GET /api/requester/requests/{id}/data - data shared for an approved request
//   - GET /api/fields - the selectable field catalogue
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/requester/requests", h.HandleList)
	r.Post("/api/requester/requests", h.HandleCreate)
	r.Get("/api/requester/requests/{id}/data", h.HandleData)
	r.Get("/api/fields", h.HandleFields)
}

// HandleList returns an api.RequestsResponse.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := workflow.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}

	requests, err := h.workflow.Requests(r.Context(), filter)
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}
	api.WriteJSON(w, h.log, http.StatusOK, api.RequestsResponse{
		Filter:   filter.String(),
		Requests: requests,
	})
}

// HandleCreate files a request described by an api.CreateRequestBody and
// responds 201 with an api.CreateRequestResponse once it is mined.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body api.CreateRequestBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, api.MaxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		api.WriteError(w, h.log, fmt.Errorf("%w: %v", interfaces.ErrInvalidArgument, err), api.ErrorResponse{})
		return
	}

	req, txHash, err := h.workflow.Create(r.Context(), body.Owner, body.Fields)
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}
	api.WriteJSON(w, h.log, http.StatusCreated, api.CreateRequestResponse{
		Request: req,
		TxHash:  txHash,
		Notice: interfaces.Notice{
			ID:      uuid.NewString(),
			Level:   interfaces.NoticeSuccess,
			Message: fmt.Sprintf("Request %s sent to %s", req.ID, req.Owner.Hex()),
		},
	})
}

// HandleData returns the workflow.SharedData of an approved request.
func (h *Handler) HandleData(w http.ResponseWriter, r *http.Request) {
	id, err := ownerhandler.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}

	data, err := h.workflow.FetchData(r.Context(), id)
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}
	api.WriteJSON(w, h.log, http.StatusOK, data)
}

func (h *Handler) HandleFields(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, h.log, http.StatusOK, map[string]any{"fields": workflow.Fields()})
}
