package api

import (
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/divs-identity/divs-agent/interfaces"
)

// MaxBodySize is the largest request body the API reads (1MB).
const MaxBodySize = 1024 * 1024

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Step names the workflow step that failed, when one did.
	Step string `json:"step,omitempty"`

	// Notice is the user-facing notice of a failed workflow operation.
	Notice *interfaces.Notice `json:"notice,omitempty"`
}

// CreateRequestBody is the body of POST /api/requester/requests.
type CreateRequestBody struct {
	Owner  ethcommon.Address `json:"owner"`
	Fields []string          `json:"fields"`
}

// CreateRequestResponse acknowledges a filed request.
type CreateRequestResponse struct {
	Request interfaces.DataRequest `json:"request"`
	TxHash  string                 `json:"tx_hash"`
	Notice  interfaces.Notice      `json:"notice"`
}

// RequestsResponse lists requests made by the wallet.
type RequestsResponse struct {
	Filter   string                   `json:"filter"`
	Requests []interfaces.DataRequest `json:"requests"`
}

// StatusResponse is the body of health and drain endpoints.
type StatusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}
