package registry

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/divs-identity/divs-agent/interfaces"
)

// MockGatewayClient provides a simple in-memory implementation of the ContractGateway
// interface for testing purposes without requiring a blockchain connection.
// It enforces the same rules as the contracts: request ids are assigned in
// order starting at 1, only the addressed owner may approve or reject, and
// terminal requests revert further transitions.
// The client starts in a read-only state - call SetSigner to enable transaction operations.
type MockGatewayClient struct {
	mutex            sync.RWMutex
	signer           common.Address
	allowTransacting bool
	users            map[common.Address]interfaces.UserProfile
	requests         []interfaces.DataRequest
	failures         map[string]error
	calls            map[string]int
	nonce            uint64
}

// NewMockGatewayClient creates a new mock gateway with empty registries.
func NewMockGatewayClient() *MockGatewayClient {
	return &MockGatewayClient{
		users:    make(map[common.Address]interfaces.UserProfile),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// SetSigner enables write operations and makes addr the sender of every
// subsequent call and transaction.
func (m *MockGatewayClient) SetSigner(addr common.Address) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.signer = addr
	m.allowTransacting = true
}

// FailNext makes the next transaction to method fail at stage with err.
func (m *MockGatewayClient) FailNext(method string, stage interfaces.TxStage, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failures[method] = &interfaces.TxError{Stage: stage, Method: method, Err: err}
}

// Calls returns how many transactions to method were mined successfully.
func (m *MockGatewayClient) Calls(method string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.calls[method]
}

// SeedUser registers addr directly, bypassing signer checks.
func (m *MockGatewayClient) SeedUser(addr common.Address, pointer interfaces.ContentID, publicKey string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.users[addr] = interfaces.UserProfile{
		ID:         uint64(len(m.users) + 1),
		Wallet:     addr,
		IPFSHash:   pointer,
		PublicKey:  publicKey,
		Registered: true,
	}
}

// SeedRequest files a pending request directly and returns its id.
func (m *MockGatewayClient) SeedRequest(requester, owner common.Address, fields []string) interfaces.RequestID {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.appendRequest(requester, owner, fields)
}

func (m *MockGatewayClient) appendRequest(requester, owner common.Address, fields []string) interfaces.RequestID {
	id := interfaces.RequestID(len(m.requests) + 1)
	m.requests = append(m.requests, interfaces.DataRequest{
		ID:        id,
		Requester: requester,
		Owner:     owner,
		Fields:    slices.Clone(fields),
		Status:    interfaces.StatusPending,
	})
	return id
}

// RequestsForUser returns every request addressed to owner.
func (m *MockGatewayClient) RequestsForUser(ctx context.Context, owner common.Address) ([]interfaces.DataRequest, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := []interfaces.DataRequest{}
	for _, r := range m.requests {
		if r.Owner == owner {
			out = append(out, cloneRequest(r))
		}
	}
	return out, nil
}

// RequestsForRequester returns every request made by requester.
func (m *MockGatewayClient) RequestsForRequester(ctx context.Context, requester common.Address) ([]interfaces.DataRequest, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := []interfaces.DataRequest{}
	for _, r := range m.requests {
		if r.Requester == requester {
			out = append(out, cloneRequest(r))
		}
	}
	return out, nil
}

// Request returns a single request or ErrRequestNotFound.
func (m *MockGatewayClient) Request(ctx context.Context, id interfaces.RequestID) (interfaces.DataRequest, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	r, ok := m.lookup(id)
	if !ok {
		return interfaces.DataRequest{}, fmt.Errorf("%w: %s", interfaces.ErrRequestNotFound, id)
	}
	return cloneRequest(*r), nil
}

// Approve marks a pending request addressed to the signer as approved.
func (m *MockGatewayClient) Approve(ctx context.Context, id interfaces.RequestID) (*types.Receipt, error) {
	return m.transition(id, "approveRequest", interfaces.StatusApproved)
}

// Reject marks a pending request addressed to the signer as rejected.
func (m *MockGatewayClient) Reject(ctx context.Context, id interfaces.RequestID) (*types.Receipt, error) {
	return m.transition(id, "rejectRequest", interfaces.StatusRejected)
}

func (m *MockGatewayClient) transition(id interfaces.RequestID, method string, to interfaces.RequestStatus) (*types.Receipt, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.begin(method); err != nil {
		return nil, err
	}

	r, ok := m.lookup(id)
	if !ok {
		return nil, revert(method, "unknown request")
	}
	if r.Owner != m.signer {
		return nil, revert(method, "not the request owner")
	}
	if r.Status != interfaces.StatusPending {
		return nil, revert(method, "request already processed")
	}

	r.Status = to
	return m.mine(method), nil
}

// SetOwnerPointer stores the signer's requester-scoped payload pointer.
func (m *MockGatewayClient) SetOwnerPointer(ctx context.Context, id interfaces.ContentID) (*types.Receipt, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	const method = "setRequesterIpfsHash"
	if err := m.begin(method); err != nil {
		return nil, err
	}
	user, ok := m.users[m.signer]
	if !ok {
		return nil, revert(method, "user not registered")
	}
	user.RequesterIPFSHash = id
	m.users[m.signer] = user
	return m.mine(method), nil
}

// OwnPointer returns the signer's own record pointer.
func (m *MockGatewayClient) OwnPointer(ctx context.Context) (interfaces.ContentID, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if !m.allowTransacting {
		return "", interfaces.ErrNoTransactOpts
	}
	user, ok := m.users[m.signer]
	if !ok || user.IPFSHash == "" {
		return "", interfaces.ErrUserNotRegistered
	}
	return user.IPFSHash, nil
}

// GetUser returns the entry of addr; unregistered addresses yield a zero profile.
func (m *MockGatewayClient) GetUser(ctx context.Context, addr common.Address) (interfaces.UserProfile, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.users[addr], nil
}

// User returns the entry of addr; unregistered addresses yield a zero profile.
func (m *MockGatewayClient) User(ctx context.Context, addr common.Address) (interfaces.UserProfile, error) {
	return m.GetUser(ctx, addr)
}

// RegisterUser creates the signer's entry. Registering twice reverts.
func (m *MockGatewayClient) RegisterUser(ctx context.Context, id interfaces.ContentID, publicKey string) (*types.Receipt, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	const method = "registerUser"
	if err := m.begin(method); err != nil {
		return nil, err
	}
	if _, ok := m.users[m.signer]; ok {
		return nil, revert(method, "user already registered")
	}
	m.users[m.signer] = interfaces.UserProfile{
		ID:         uint64(len(m.users) + 1),
		Wallet:     m.signer,
		IPFSHash:   id,
		PublicKey:  publicKey,
		Registered: true,
	}
	return m.mine(method), nil
}

// UpdatePointer replaces the signer's own record pointer.
func (m *MockGatewayClient) UpdatePointer(ctx context.Context, id interfaces.ContentID) (*types.Receipt, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	const method = "updateIpfsHash"
	if err := m.begin(method); err != nil {
		return nil, err
	}
	user, ok := m.users[m.signer]
	if !ok {
		return nil, revert(method, "user not registered")
	}
	user.IPFSHash = id
	m.users[m.signer] = user
	return m.mine(method), nil
}

// CreateRequest files a request from the signer to a registered owner.
func (m *MockGatewayClient) CreateRequest(ctx context.Context, owner common.Address, fields []string) (interfaces.RequestID, *types.Receipt, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	const method = "createRequest"
	if err := m.begin(method); err != nil {
		return 0, nil, err
	}
	if _, ok := m.users[owner]; !ok {
		return 0, nil, revert(method, "user not registered")
	}
	if len(fields) == 0 {
		return 0, nil, revert(method, "no fields requested")
	}
	id := m.appendRequest(m.signer, owner, fields)
	return id, m.mine(method), nil
}

// begin checks write permission and consumes an injected failure. Callers hold the lock.
func (m *MockGatewayClient) begin(method string) error {
	if !m.allowTransacting {
		return interfaces.ErrNoTransactOpts
	}
	if err, ok := m.failures[method]; ok {
		delete(m.failures, method)
		return err
	}
	return nil
}

func (m *MockGatewayClient) mine(method string) *types.Receipt {
	m.calls[method]++
	m.nonce++

	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], m.nonce)
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.Hash(sha256.Sum256(append(seed[:], method...))),
	}
}

func (m *MockGatewayClient) lookup(id interfaces.RequestID) (*interfaces.DataRequest, bool) {
	if id == 0 || int(id) > len(m.requests) {
		return nil, false
	}
	return &m.requests[id-1], true
}

func revert(method, reason string) error {
	return &interfaces.TxError{
		Stage:  interfaces.StageSubmit,
		Method: method,
		Err:    fmt.Errorf("%w: %s", interfaces.ErrReverted, reason),
	}
}

func cloneRequest(r interfaces.DataRequest) interfaces.DataRequest {
	r.Fields = slices.Clone(r.Fields)
	return r
}
