package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/divs-identity/divs-agent/cryptoutils"
	"github.com/divs-identity/divs-agent/interfaces"
	"github.com/divs-identity/divs-agent/metrics"
)

// StatusFilter selects requests by status. The zero value matches all.
type StatusFilter struct {
	status *interfaces.RequestStatus
}

// ParseStatusFilter accepts "all", an empty string, or a status name.
func ParseStatusFilter(raw string) (StatusFilter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return StatusFilter{}, nil
	}
	status, err := interfaces.ParseRequestStatus(raw)
	if err != nil {
		return StatusFilter{}, fmt.Errorf("%w: %v", interfaces.ErrInvalidArgument, err)
	}
	return StatusFilter{status: &status}, nil
}

// FilterBy matches requests in status only.
func FilterBy(status interfaces.RequestStatus) StatusFilter {
	return StatusFilter{status: &status}
}

func (f StatusFilter) Match(status interfaces.RequestStatus) bool {
	return f.status == nil || *f.status == status
}

func (f StatusFilter) String() string {
	if f.status == nil {
		return "all"
	}
	return strings.ToLower(f.status.String())
}

// SharedData is the decrypted payload an owner shared for a request.
type SharedData struct {
	Request   interfaces.DataRequest   `json:"request"`
	Owner     ethcommon.Address        `json:"owner"`
	Fields    cryptoutils.IdentityData `json:"fields"`
	ContentID interfaces.ContentID     `json:"content_id"`
}

// Requester drives the requester's side: filing requests and reading the
// data of approved ones.
type Requester struct {
	log     *slog.Logger
	gateway interfaces.ContractGateway
	pinner  interfaces.Pinner
	wallet  interfaces.Wallet
	metrics *metrics.Metrics
}

func NewRequester(log *slog.Logger, gateway interfaces.ContractGateway, pinner interfaces.Pinner, wallet interfaces.Wallet, m *metrics.Metrics) *Requester {
	return &Requester{
		log:     log,
		gateway: gateway,
		pinner:  pinner,
		wallet:  wallet,
		metrics: m,
	}
}

// Requests lists the requests made by the wallet that match filter.
func (r *Requester) Requests(ctx context.Context, filter StatusFilter) ([]interfaces.DataRequest, error) {
	all, err := r.gateway.RequestsForRequester(ctx, r.wallet.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to load requests: %w", err)
	}

	out := make([]interfaces.DataRequest, 0, len(all))
	for _, req := range all {
		if filter.Match(req.Status) {
			out = append(out, req)
		}
	}
	return out, nil
}

// Create files a request for fields of owner's identity.
func (r *Requester) Create(ctx context.Context, owner ethcommon.Address, fields []string) (interfaces.DataRequest, string, error) {
	if owner == (ethcommon.Address{}) {
		return interfaces.DataRequest{}, "", fmt.Errorf("%w: owner address is required", interfaces.ErrInvalidArgument)
	}
	fields, err := ValidateFields(fields)
	if err != nil {
		return interfaces.DataRequest{}, "", err
	}

	profile, err := r.gateway.User(ctx, owner)
	if err != nil {
		return interfaces.DataRequest{}, "", fmt.Errorf("failed to look up owner: %w", err)
	}
	if !profile.Registered {
		return interfaces.DataRequest{}, "", fmt.Errorf("%w: %s", interfaces.ErrUserNotRegistered, owner.Hex())
	}

	id, receipt, err := r.gateway.CreateRequest(ctx, owner, fields)
	if err != nil {
		r.metrics.IncrementOutcome("create", "failure")
		return interfaces.DataRequest{}, "", err
	}
	r.metrics.IncrementOutcome("create", "success")
	r.log.Info("Data request created", "request", id.String(), "owner", owner.Hex(), "fields", fields)

	return interfaces.DataRequest{
		ID:        id,
		Requester: r.wallet.Address(),
		Owner:     owner,
		Fields:    fields,
		Status:    interfaces.StatusPending,
	}, receipt.TxHash.Hex(), nil
}

// FetchData returns the fields an owner shared for an approved request.
// The owner keeps a single requester pointer, so the payload read is the
// most recent one the owner sealed; it is narrowed to the request's fields.
func (r *Requester) FetchData(ctx context.Context, id interfaces.RequestID) (*SharedData, error) {
	req, err := r.gateway.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Requester != r.wallet.Address() {
		return nil, fmt.Errorf("%w: request %s was made by %s", interfaces.ErrNotOwner, id, req.Requester.Hex())
	}
	if req.Status != interfaces.StatusApproved {
		return nil, fmt.Errorf("%w: request %s is %s", interfaces.ErrNotApproved, id, req.Status)
	}

	owner, err := r.gateway.User(ctx, req.Owner)
	if err != nil {
		return nil, fmt.Errorf("failed to look up owner: %w", err)
	}
	if owner.RequesterIPFSHash.IsZero() {
		return nil, fmt.Errorf("%w: owner %s has shared nothing", interfaces.ErrContentNotFound, req.Owner.Hex())
	}

	sealed, err := r.pinner.Fetch(ctx, owner.RequesterIPFSHash)
	if err != nil {
		r.metrics.IncrementFailure("fetch_data", StepFetch)
		return nil, err
	}
	plaintext, err := r.wallet.Decrypt(ctx, sealed)
	if err != nil {
		r.metrics.IncrementFailure("fetch_data", StepDecrypt)
		return nil, err
	}
	record, err := cryptoutils.ParseIdentityData(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrDecryption, err)
	}

	return &SharedData{
		Request:   req,
		Owner:     req.Owner,
		Fields:    cryptoutils.SelectFields(record, req.Fields),
		ContentID: owner.RequesterIPFSHash,
	}, nil
}
