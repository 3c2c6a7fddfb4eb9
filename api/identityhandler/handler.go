package identityhandler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/divs-identity/divs-agent/api"
	"github.com/divs-identity/divs-agent/cryptoutils"
	"github.com/divs-identity/divs-agent/interfaces"
	"github.com/divs-identity/divs-agent/workflow"
)

// Registrar manages the wallet's own identity entry.
type Registrar interface {
	Profile(ctx context.Context) (interfaces.UserProfile, error)
	Record(ctx context.Context) (cryptoutils.IdentityData, error)
	Register(ctx context.Context, data cryptoutils.IdentityData) (*workflow.Registration, error)
	Update(ctx context.Context, data cryptoutils.IdentityData) (*workflow.Registration, error)
}

type Handler struct {
	registrar Registrar
	log       *slog.Logger
}

func NewHandler(registrar Registrar, log *slog.Logger) *Handler {
	return &Handler{
		registrar: registrar,
		log:       log,
	}
}

// RegisterRoutes configures the HTTP router with identity endpoints:
//   - GET /api/identity - the wallet's registry entry
//   - GET /api/identity/record - the wallet's decrypted record
//   - POST /api/identity - register a record
//   - PUT /api/identity - replace the record
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/identity", h.HandleProfile)
	r.Get("/api/identity/record", h.HandleRecord)
	r.Post("/api/identity", h.HandleRegister)
	r.Put("/api/identity", h.HandleUpdate)
}

func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.registrar.Profile(r.Context())
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}
	api.WriteJSON(w, h.log, http.StatusOK, profile)
}

func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.registrar.Record(r.Context())
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}
	api.WriteJSON(w, h.log, http.StatusOK, record)
}

// HandleRegister reads a JSON object of identity fields and responds 201
// with the workflow.Registration.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	data, err := readRecord(w, r)
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}

	reg, err := h.registrar.Register(r.Context(), data)
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}
	api.WriteJSON(w, h.log, http.StatusCreated, reg)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	data, err := readRecord(w, r)
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}

	reg, err := h.registrar.Update(r.Context(), data)
	if err != nil {
		api.WriteError(w, h.log, err, api.ErrorResponse{})
		return
	}
	api.WriteJSON(w, h.log, http.StatusOK, reg)
}

func readRecord(w http.ResponseWriter, r *http.Request) (cryptoutils.IdentityData, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, api.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", interfaces.ErrInvalidArgument, err)
	}
	data, err := cryptoutils.ParseIdentityData(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidArgument, err)
	}
	return data, nil
}
