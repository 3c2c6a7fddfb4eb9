package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/divs-identity/divs-agent/cryptoutils"
	"github.com/divs-identity/divs-agent/interfaces"
	"github.com/divs-identity/divs-agent/metrics"
)

// ViewState is the state of the owner's request list.
type ViewState string

const (
	ViewIdle    ViewState = "idle"
	ViewLoading ViewState = "loading"
	ViewReady   ViewState = "ready"
	ViewError   ViewState = "error"
)

// RequestState is the per-request state seen by the owner, including the
// transient states of an operation in flight.
type RequestState string

const (
	StatePending   RequestState = "pending"
	StateApproving RequestState = "approving"
	StateApproved  RequestState = "approved"
	StateRejecting RequestState = "rejecting"
	StateRejected  RequestState = "rejected"
)

func stateOf(status interfaces.RequestStatus) RequestState {
	switch status {
	case interfaces.StatusApproved:
		return StateApproved
	case interfaces.StatusRejected:
		return StateRejected
	default:
		return StatePending
	}
}

// Approval steps, in execution order.
const (
	StepOwnPointer   = "own_pointer"
	StepFetch        = "fetch"
	StepDecrypt      = "decrypt"
	StepRequesterKey = "requester_key"
	StepSeal         = "seal"
	StepPin          = "pin"
	StepSetPointer   = "set_pointer"
	StepApprove      = "approve"
	StepReject       = "reject"
)

// StepError identifies the workflow step an operation failed at.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step recorded in err, if any.
func FailedStep(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	return ""
}

// RequestView is a request with its owner-side state.
type RequestView struct {
	interfaces.DataRequest
	State RequestState `json:"state"`
}

// Snapshot is the owner's request list as last loaded.
type Snapshot struct {
	State    ViewState     `json:"state"`
	Error    string        `json:"error,omitempty"`
	Requests []RequestView `json:"requests"`
}

// Outcome is the result of an approve or reject.
type Outcome struct {
	Request   interfaces.DataRequest `json:"request"`
	State     RequestState           `json:"state"`
	Notice    interfaces.Notice      `json:"notice"`
	ContentID interfaces.ContentID   `json:"content_id,omitempty"`
	TxHash    string                 `json:"tx_hash,omitempty"`
}

func newNotice(level interfaces.NoticeLevel, format string, args ...any) interfaces.Notice {
	return interfaces.Notice{
		ID:      uuid.NewString(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithGuard replaces the process-local in-flight guard.
func WithGuard(g Guard) Option {
	return func(c *Controller) { c.guard = g }
}

// WithJournal replaces the process-local approval journal.
func WithJournal(j Journal) Option {
	return func(c *Controller) { c.journal = j }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller drives the owner's side of data requests: listing them and
// approving or rejecting one at a time. It is safe for concurrent use.
type Controller struct {
	log     *slog.Logger
	gateway interfaces.ContractGateway
	pinner  interfaces.Pinner
	wallet  interfaces.Wallet
	guard   Guard
	journal Journal
	metrics *metrics.Metrics

	mu       sync.Mutex
	view     ViewState
	viewErr  error
	requests []interfaces.DataRequest
	inflight map[interfaces.RequestID]RequestState
}

func NewController(log *slog.Logger, gateway interfaces.ContractGateway, pinner interfaces.Pinner, wallet interfaces.Wallet, opts ...Option) *Controller {
	c := &Controller{
		log:      log,
		gateway:  gateway,
		pinner:   pinner,
		wallet:   wallet,
		guard:    NewMemoryGuard(),
		journal:  NewMemoryJournal(),
		view:     ViewIdle,
		inflight: make(map[interfaces.RequestID]RequestState),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// LoadRequests fetches every request addressed to the wallet.
func (c *Controller) LoadRequests(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	c.view = ViewLoading
	c.viewErr = nil
	c.mu.Unlock()

	requests, err := c.gateway.RequestsForUser(ctx, c.wallet.Address())

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.view = ViewError
		c.viewErr = err
		c.log.Error("Failed to load requests", "owner", c.wallet.Address(), "err", err)
		return c.snapshotLocked(), fmt.Errorf("failed to load requests: %w", err)
	}
	c.view = ViewReady
	c.requests = requests
	return c.snapshotLocked(), nil
}

// Snapshot returns the last loaded request list.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the owner-side state of a loaded request.
func (c *Controller) State(id interfaces.RequestID) (RequestState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.inflight[id]; ok {
		return state, true
	}
	for _, r := range c.requests {
		if r.ID == id {
			return stateOf(r.Status), true
		}
	}
	return "", false
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.view, Requests: make([]RequestView, 0, len(c.requests))}
	if c.viewErr != nil {
		snap.Error = c.viewErr.Error()
	}
	for _, r := range c.requests {
		state, ok := c.inflight[r.ID]
		if !ok {
			state = stateOf(r.Status)
		}
		r.Fields = slices.Clone(r.Fields)
		snap.Requests = append(snap.Requests, RequestView{DataRequest: r, State: state})
	}
	return snap
}

func (c *Controller) begin(id interfaces.RequestID, state RequestState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[id] = state
}

// finish clears the transient state and caches the request as last read.
func (c *Controller) finish(req interfaces.DataRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, req.ID)
	for i := range c.requests {
		if c.requests[i].ID == req.ID {
			c.requests[i] = req
			return
		}
	}
}

// acquire takes the in-flight guard and re-reads the request, refusing
// anything the wallet cannot transition.
func (c *Controller) acquire(ctx context.Context, id interfaces.RequestID) (interfaces.DataRequest, func(), error) {
	release, err := c.guard.Acquire(ctx, "request:"+id.String())
	if err != nil {
		return interfaces.DataRequest{}, nil, err
	}

	req, err := c.gateway.Request(ctx, id)
	if err != nil {
		release()
		return interfaces.DataRequest{}, nil, err
	}
	if req.Owner != c.wallet.Address() {
		release()
		return req, nil, fmt.Errorf("%w: request %s belongs to %s", interfaces.ErrNotOwner, id, req.Owner.Hex())
	}
	if req.Status != interfaces.StatusPending {
		release()
		c.finish(req)
		return req, nil, fmt.Errorf("%w: request %s is %s", interfaces.ErrTerminalState, id, req.Status)
	}
	return req, release, nil
}

// Approve shares the requested fields with the requester and marks the
// request approved. The steps run in order and stop at the first failure;
// nothing is rolled back. The requester pointer is confirmed on-chain
// before the approval is submitted.
func (c *Controller) Approve(ctx context.Context, id interfaces.RequestID) (Outcome, error) {
	req, release, err := c.acquire(ctx, id)
	if err != nil {
		return c.refused(req, "approve", err), err
	}
	defer release()

	log := c.log.With("request", id.String(), "requester", req.Requester.Hex())
	c.begin(id, StateApproving)

	cid, receipt, err := c.approve(ctx, log, req)
	if err != nil {
		c.finish(req)
		step := FailedStep(err)
		c.metrics.IncrementFailure("approve", step)
		c.metrics.IncrementOutcome("approve", "failure")
		log.Error("Approval failed", "step", step, "err", err)
		return Outcome{
			Request: req,
			State:   StatePending,
			Notice:  newNotice(interfaces.NoticeError, "Approval of request %s failed at %s: %v", id, step, err),
		}, err
	}

	req.Status = interfaces.StatusApproved
	c.finish(req)
	c.metrics.IncrementOutcome("approve", "success")
	log.Info("Request approved", "cid", cid, "tx", receipt.TxHash.Hex())

	return Outcome{
		Request:   req,
		State:     StateApproved,
		Notice:    newNotice(interfaces.NoticeSuccess, "Request %s approved", id),
		ContentID: cid,
		TxHash:    receipt.TxHash.Hex(),
	}, nil
}

func (c *Controller) approve(ctx context.Context, log *slog.Logger, req interfaces.DataRequest) (interfaces.ContentID, *types.Receipt, error) {
	cid, resumed := c.resumable(ctx, log, req.ID)
	if !resumed {
		var err error
		cid, err = c.shareFields(ctx, req)
		if err != nil {
			return "", nil, err
		}
	}

	receipt, err := c.gateway.Approve(ctx, req.ID)
	if err != nil {
		if interfaces.IsSubmitted(err) {
			log.Warn("Approval submitted but not confirmed", "err", err)
		}
		return cid, nil, &StepError{Step: StepApprove, Err: err}
	}

	if err := c.journal.Clear(ctx, req.ID); err != nil {
		log.Warn("Failed to clear approval journal", "err", err)
	}
	return cid, receipt, nil
}

// resumable reports whether a previous attempt already confirmed the
// requester pointer for this request and nothing has overwritten it since.
func (c *Controller) resumable(ctx context.Context, log *slog.Logger, id interfaces.RequestID) (interfaces.ContentID, bool) {
	recorded, err := c.journal.Lookup(ctx, id)
	if err != nil {
		log.Warn("Failed to read approval journal", "err", err)
		return "", false
	}
	if recorded.IsZero() {
		return "", false
	}

	profile, err := c.gateway.User(ctx, c.wallet.Address())
	if err != nil {
		log.Warn("Failed to read requester pointer", "err", err)
		return "", false
	}
	if profile.RequesterIPFSHash != recorded {
		log.Info("Journaled pointer was overwritten, sharing again", "journaled", recorded, "onchain", profile.RequesterIPFSHash)
		return "", false
	}

	log.Info("Resuming approval from journal", "cid", recorded)
	return recorded, true
}

// shareFields runs the approval up to and including the pointer write.
func (c *Controller) shareFields(ctx context.Context, req interfaces.DataRequest) (interfaces.ContentID, error) {
	pointer, err := c.gateway.OwnPointer(ctx)
	if err != nil {
		return "", &StepError{Step: StepOwnPointer, Err: err}
	}

	sealed, err := c.pinner.Fetch(ctx, pointer)
	if err != nil {
		return "", &StepError{Step: StepFetch, Err: err}
	}

	plaintext, err := c.wallet.Decrypt(ctx, sealed)
	if err != nil {
		return "", &StepError{Step: StepDecrypt, Err: err}
	}
	record, err := cryptoutils.ParseIdentityData(plaintext)
	if err != nil {
		return "", &StepError{Step: StepDecrypt, Err: fmt.Errorf("%w: %v", interfaces.ErrDecryption, err)}
	}

	requester, err := c.gateway.GetUser(ctx, req.Requester)
	if err != nil {
		return "", &StepError{Step: StepRequesterKey, Err: err}
	}
	if !requester.Registered || requester.PublicKey == "" {
		return "", &StepError{Step: StepRequesterKey, Err: fmt.Errorf("%w: %s", interfaces.ErrUserNotRegistered, req.Requester.Hex())}
	}

	payload, err := cryptoutils.SelectAndEncrypt(requester.PublicKey, record, req.Fields)
	if err != nil {
		return "", &StepError{Step: StepSeal, Err: err}
	}
	encoded, err := payload.Marshal()
	if err != nil {
		return "", &StepError{Step: StepSeal, Err: err}
	}

	cid, err := c.pinner.Pin(ctx, encoded, fmt.Sprintf("divs-request-%s", req.ID))
	if err != nil {
		return "", &StepError{Step: StepPin, Err: err}
	}

	if _, err := c.gateway.SetOwnerPointer(ctx, cid); err != nil {
		return cid, &StepError{Step: StepSetPointer, Err: err}
	}
	if err := c.journal.Record(ctx, req.ID, cid); err != nil {
		c.log.Warn("Failed to record approval journal", "request", req.ID.String(), "err", err)
	}
	return cid, nil
}

// Reject marks a pending request rejected.
func (c *Controller) Reject(ctx context.Context, id interfaces.RequestID) (Outcome, error) {
	req, release, err := c.acquire(ctx, id)
	if err != nil {
		return c.refused(req, "reject", err), err
	}
	defer release()

	c.begin(id, StateRejecting)

	receipt, err := c.gateway.Reject(ctx, id)
	if err != nil {
		err = &StepError{Step: StepReject, Err: err}
		c.finish(req)
		c.metrics.IncrementFailure("reject", StepReject)
		c.metrics.IncrementOutcome("reject", "failure")
		c.log.Error("Rejection failed", "request", id.String(), "err", err)
		return Outcome{
			Request: req,
			State:   StatePending,
			Notice:  newNotice(interfaces.NoticeError, "Rejection of request %s failed: %v", id, err),
		}, err
	}

	req.Status = interfaces.StatusRejected
	c.finish(req)
	c.metrics.IncrementOutcome("reject", "success")
	c.log.Info("Request rejected", "request", id.String(), "tx", receipt.TxHash.Hex())

	return Outcome{
		Request: req,
		State:   StateRejected,
		Notice:  newNotice(interfaces.NoticeSuccess, "Request %s rejected", id),
		TxHash:  receipt.TxHash.Hex(),
	}, nil
}

// refused builds the outcome of an operation that never started.
func (c *Controller) refused(req interfaces.DataRequest, operation string, err error) Outcome {
	c.metrics.IncrementOutcome(operation, "refused")

	level := interfaces.NoticeError
	if errors.Is(err, interfaces.ErrTerminalState) || errors.Is(err, interfaces.ErrRequestBusy) {
		level = interfaces.NoticeWarn
	}
	return Outcome{
		Request: req,
		State:   stateOf(req.Status),
		Notice:  newNotice(level, "Cannot %s request: %v", operation, err),
	}
}
