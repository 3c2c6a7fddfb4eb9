package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/divs-identity/divs-agent/bindings/datarequest"
	"github.com/divs-identity/divs-agent/bindings/identity"
	"github.com/divs-identity/divs-agent/interfaces"
)

// maxParallelReads bounds the per-id reads issued by RequestsForRequester.
const maxParallelReads = 8

// ErrNoRequestEvent is returned when a createRequest receipt carries no RequestCreated log.
var ErrNoRequestEvent = errors.New("receipt has no RequestCreated event")

// OnchainGateway implements the interfaces.ContractGateway interface against
// the deployed Identity and DataRequest contracts.
type OnchainGateway struct {
	identity     *identity.Identity
	requests     *datarequest.DataRequest
	backend      bind.DeployBackend
	identityAddr common.Address
	requestAddr  common.Address
	auth         *bind.TransactOpts
	writeCheck   func() error
}

// NewOnchainGateway creates a gateway for the two registry contracts. It
// requires a ContractBackend for calls and transactions and a DeployBackend
// to wait for receipts.
func NewOnchainGateway(client bind.ContractBackend, backend bind.DeployBackend, identityAddr, requestAddr common.Address) (*OnchainGateway, error) {
	identityContract, err := identity.NewIdentity(identityAddr, client)
	if err != nil {
		return nil, fmt.Errorf("failed to bind identity registry: %w", err)
	}

	requestContract, err := datarequest.NewDataRequest(requestAddr, client)
	if err != nil {
		return nil, fmt.Errorf("failed to bind data request registry: %w", err)
	}

	return &OnchainGateway{
		identity:     identityContract,
		requests:     requestContract,
		backend:      backend,
		identityAddr: identityAddr,
		requestAddr:  requestAddr,
	}, nil
}

// SetTransactOpts sets the transaction options required for functions that modify state.
// This must be called before using any methods that send transactions to the blockchain.
// Calls are issued from auth.From as well, which getUserIPFSHash depends on.
func (c *OnchainGateway) SetTransactOpts(auth *bind.TransactOpts) {
	c.auth = auth
}

// SetWriteCheck installs a precondition evaluated before every transaction.
// The agent uses it to refuse writes while connected to the wrong network.
func (c *OnchainGateway) SetWriteCheck(check func() error) {
	c.writeCheck = check
}

func (c *OnchainGateway) callOpts(ctx context.Context) *bind.CallOpts {
	opts := &bind.CallOpts{Context: ctx}
	if c.auth != nil {
		opts.From = c.auth.From
	}
	return opts
}

// RequestsForUser returns every request addressed to owner.
func (c *OnchainGateway) RequestsForUser(ctx context.Context, owner common.Address) ([]interfaces.DataRequest, error) {
	raw, err := c.requests.GetDetailedUserRequests(c.callOpts(ctx), owner)
	if err != nil {
		return nil, fmt.Errorf("getDetailedUserRequests: %w", err)
	}

	out := make([]interfaces.DataRequest, 0, len(raw))
	for _, r := range raw {
		req, err := convertRequest(r)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// RequestsForRequester lists request ids made by requester and reads every
// request through requests(id) in parallel. Fields come from the owners'
// getDetailedUserRequests lists. The result keeps the registry order.
func (c *OnchainGateway) RequestsForRequester(ctx context.Context, requester common.Address) ([]interfaces.DataRequest, error) {
	ids, err := c.requests.GetRequestsByRequester(c.callOpts(ctx), requester)
	if err != nil {
		return nil, fmt.Errorf("getRequestsByRequester: %w", err)
	}

	summaries := make([]datarequest.DataRequestSummary, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, id := range ids {
		g.Go(func() error {
			summary, err := c.requests.Requests(c.callOpts(gctx), id)
			if err != nil {
				return fmt.Errorf("requests(%s): %w", id, err)
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var owners []common.Address
	for _, s := range summaries {
		if !slices.Contains(owners, s.User) {
			owners = append(owners, s.User)
		}
	}

	var mu sync.Mutex
	fields := make(map[common.Address]map[string][]string, len(owners))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for _, owner := range owners {
		g.Go(func() error {
			byID, err := c.fieldsByID(gctx, owner)
			if err != nil {
				return err
			}
			mu.Lock()
			fields[owner] = byID
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]interfaces.DataRequest, len(summaries))
	for i, s := range summaries {
		req, err := withFields(s, fields[s.User])
		if err != nil {
			return nil, err
		}
		out[i] = req
	}
	return out, nil
}

// Request returns a single request, or ErrRequestNotFound. The public
// requests(id) getter omits the fields array, so fields are taken from the
// owner's getDetailedUserRequests list.
func (c *OnchainGateway) Request(ctx context.Context, id interfaces.RequestID) (interfaces.DataRequest, error) {
	summary, err := c.requests.Requests(c.callOpts(ctx), new(big.Int).SetUint64(uint64(id)))
	if err != nil {
		return interfaces.DataRequest{}, fmt.Errorf("requests(%s): %w", id, err)
	}
	if summary.Requester == (common.Address{}) {
		return interfaces.DataRequest{}, fmt.Errorf("%w: %s", interfaces.ErrRequestNotFound, id)
	}

	byID, err := c.fieldsByID(ctx, summary.User)
	if err != nil {
		return interfaces.DataRequest{}, err
	}
	return withFields(summary, byID)
}

// fieldsByID maps request ids addressed to owner to their requested fields.
func (c *OnchainGateway) fieldsByID(ctx context.Context, owner common.Address) (map[string][]string, error) {
	raw, err := c.requests.GetDetailedUserRequests(c.callOpts(ctx), owner)
	if err != nil {
		return nil, fmt.Errorf("getDetailedUserRequests(%s): %w", owner.Hex(), err)
	}
	byID := make(map[string][]string, len(raw))
	for _, r := range raw {
		if r.Id != nil {
			byID[r.Id.String()] = r.Fields
		}
	}
	return byID, nil
}

func withFields(s datarequest.DataRequestSummary, byID map[string][]string) (interfaces.DataRequest, error) {
	if s.Id == nil {
		return interfaces.DataRequest{}, errors.New("request without id")
	}
	fields, ok := byID[s.Id.String()]
	if !ok {
		return interfaces.DataRequest{}, fmt.Errorf("request %s missing from getDetailedUserRequests(%s)", s.Id, s.User.Hex())
	}
	return convertRequest(datarequest.DataRequestContractRequest{
		Id:        s.Id,
		Requester: s.Requester,
		User:      s.User,
		Fields:    fields,
		Status:    s.Status,
	})
}

// Approve submits approveRequest and waits for it to be mined.
func (c *OnchainGateway) Approve(ctx context.Context, id interfaces.RequestID) (*types.Receipt, error) {
	return c.transact(ctx, "approveRequest", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.requests.ApproveRequest(opts, new(big.Int).SetUint64(uint64(id)))
	})
}

// Reject submits rejectRequest and waits for it to be mined.
func (c *OnchainGateway) Reject(ctx context.Context, id interfaces.RequestID) (*types.Receipt, error) {
	return c.transact(ctx, "rejectRequest", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.requests.RejectRequest(opts, new(big.Int).SetUint64(uint64(id)))
	})
}

// SetOwnerPointer submits setRequesterIpfsHash and waits for it to be mined.
func (c *OnchainGateway) SetOwnerPointer(ctx context.Context, id interfaces.ContentID) (*types.Receipt, error) {
	return c.transact(ctx, "setRequesterIpfsHash", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.identity.SetRequesterIpfsHash(opts, id.String())
	})
}

// OwnPointer returns the encrypted record pointer of the configured signer.
func (c *OnchainGateway) OwnPointer(ctx context.Context) (interfaces.ContentID, error) {
	if c.auth == nil {
		return "", interfaces.ErrNoTransactOpts
	}
	hash, err := c.identity.GetUserIPFSHash(c.callOpts(ctx))
	if err != nil {
		return "", fmt.Errorf("getUserIPFSHash: %w", err)
	}
	if hash == "" {
		return "", interfaces.ErrUserNotRegistered
	}
	return interfaces.ContentID(hash), nil
}

// GetUser reads an identity entry through getUser.
func (c *OnchainGateway) GetUser(ctx context.Context, addr common.Address) (interfaces.UserProfile, error) {
	user, err := c.identity.GetUser(c.callOpts(ctx), addr)
	if err != nil {
		return interfaces.UserProfile{}, fmt.Errorf("getUser(%s): %w", addr.Hex(), err)
	}
	return convertUser(user), nil
}

// User reads an identity entry through the public users mapping.
func (c *OnchainGateway) User(ctx context.Context, addr common.Address) (interfaces.UserProfile, error) {
	user, err := c.identity.Users(c.callOpts(ctx), addr)
	if err != nil {
		return interfaces.UserProfile{}, fmt.Errorf("users(%s): %w", addr.Hex(), err)
	}
	return convertUser(user), nil
}

// RegisterUser creates the signer's identity entry.
func (c *OnchainGateway) RegisterUser(ctx context.Context, id interfaces.ContentID, publicKey string) (*types.Receipt, error) {
	return c.transact(ctx, "registerUser", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.identity.RegisterUser(opts, id.String(), publicKey)
	})
}

// UpdatePointer replaces the signer's own encrypted record pointer.
func (c *OnchainGateway) UpdatePointer(ctx context.Context, id interfaces.ContentID) (*types.Receipt, error) {
	return c.transact(ctx, "updateIpfsHash", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.identity.UpdateIpfsHash(opts, id.String())
	})
}

// CreateRequest files a data request and returns the id assigned by the
// contract, taken from the RequestCreated event in the receipt.
func (c *OnchainGateway) CreateRequest(ctx context.Context, owner common.Address, fields []string) (interfaces.RequestID, *types.Receipt, error) {
	receipt, err := c.transact(ctx, "createRequest", func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.requests.CreateRequest(opts, owner, fields)
	})
	if err != nil {
		return 0, receipt, err
	}

	for _, log := range receipt.Logs {
		if log == nil || log.Address != c.requestAddr {
			continue
		}
		event, err := c.requests.ParseRequestCreated(*log)
		if err != nil {
			continue
		}
		if !event.Id.IsUint64() {
			return 0, receipt, fmt.Errorf("request id %s out of range", event.Id)
		}
		return interfaces.RequestID(event.Id.Uint64()), receipt, nil
	}
	return 0, receipt, ErrNoRequestEvent
}

// transact signs and submits a transaction through submit, then blocks until
// it is mined. Submission and confirmation failures are reported as
// *interfaces.TxError with the matching stage.
func (c *OnchainGateway) transact(ctx context.Context, method string, submit func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Receipt, error) {
	if c.auth == nil {
		return nil, interfaces.ErrNoTransactOpts
	}
	if c.writeCheck != nil {
		if err := c.writeCheck(); err != nil {
			return nil, &interfaces.TxError{Stage: interfaces.StageSubmit, Method: method, Err: err}
		}
	}

	opts := *c.auth
	opts.Context = ctx

	tx, err := submit(&opts)
	if err != nil {
		return nil, &interfaces.TxError{Stage: interfaces.StageSubmit, Method: method, Err: err}
	}

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, &interfaces.TxError{Stage: interfaces.StageConfirm, Method: method, TxHash: tx.Hash(), Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, &interfaces.TxError{Stage: interfaces.StageConfirm, Method: method, TxHash: tx.Hash(), Err: interfaces.ErrReverted}
	}
	return receipt, nil
}

func convertRequest(r datarequest.DataRequestContractRequest) (interfaces.DataRequest, error) {
	if r.Id == nil || !r.Id.IsUint64() {
		return interfaces.DataRequest{}, fmt.Errorf("request id %v out of range", r.Id)
	}
	status := interfaces.RequestStatus(r.Status)
	if !status.Valid() {
		return interfaces.DataRequest{}, fmt.Errorf("request %s has unknown status %d", r.Id, r.Status)
	}
	fields := r.Fields
	if fields == nil {
		fields = []string{}
	}
	return interfaces.DataRequest{
		ID:        interfaces.RequestID(r.Id.Uint64()),
		Requester: r.Requester,
		Owner:     r.User,
		Fields:    fields,
		Status:    status,
	}, nil
}

func convertUser(u identity.IdentityUser) interfaces.UserProfile {
	var id uint64
	if u.Id != nil && u.Id.IsUint64() {
		id = u.Id.Uint64()
	}
	return interfaces.UserProfile{
		ID:                id,
		Wallet:            u.Wallet,
		IPFSHash:          interfaces.ContentID(u.IpfsHash),
		RequesterIPFSHash: interfaces.ContentID(u.RequesterIpfsHash),
		PublicKey:         u.PublicKey,
		Registered:        u.Registered,
	}
}
