package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/divs-identity/divs-agent/interfaces"
)

// StatusFor maps an error returned by the workflow to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrInvalidArgument),
		errors.Is(err, interfaces.ErrInvalidContentID):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrRequestNotFound),
		errors.Is(err, interfaces.ErrUserNotRegistered),
		errors.Is(err, interfaces.ErrContentNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrTerminalState),
		errors.Is(err, interfaces.ErrRequestBusy),
		errors.Is(err, interfaces.ErrAlreadyRegistered),
		errors.Is(err, interfaces.ErrNotApproved):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrWalletUnavailable),
		errors.Is(err, interfaces.ErrWrongNetwork),
		errors.Is(err, interfaces.ErrNoTransactOpts):
		return http.StatusServiceUnavailable
	}

	var txErr *interfaces.TxError
	if errors.As(err, &txErr) ||
		errors.Is(err, interfaces.ErrDecryption) ||
		errors.Is(err, interfaces.ErrBackendUnavailable) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteError writes err as an ErrorResponse with the status StatusFor picks.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error, resp ErrorResponse) {
	status := StatusFor(err)
	resp.Error = err.Error()
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "status", status, "err", err)
	} else {
		log.Debug("Request refused", "status", status, "err", err)
	}
	WriteJSON(w, log, status, resp)
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}
