package registry

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/divs-identity/divs-agent/interfaces"
)

// MockGateway mocks the ContractGateway interface
type MockGateway struct {
	mock.Mock
}

// RequestsForUser mocks the RequestsForUser method
func (m *MockGateway) RequestsForUser(ctx context.Context, owner common.Address) ([]interfaces.DataRequest, error) {
	args := m.Called(ctx, owner)
	requests, _ := args.Get(0).([]interfaces.DataRequest)
	return requests, args.Error(1)
}

// RequestsForRequester mocks the RequestsForRequester method
func (m *MockGateway) RequestsForRequester(ctx context.Context, requester common.Address) ([]interfaces.DataRequest, error) {
	args := m.Called(ctx, requester)
	requests, _ := args.Get(0).([]interfaces.DataRequest)
	return requests, args.Error(1)
}

// Request mocks the Request method
func (m *MockGateway) Request(ctx context.Context, id interfaces.RequestID) (interfaces.DataRequest, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(interfaces.DataRequest), args.Error(1)
}

// Approve mocks the Approve method
func (m *MockGateway) Approve(ctx context.Context, id interfaces.RequestID) (*types.Receipt, error) {
	args := m.Called(ctx, id)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

// Reject mocks the Reject method
func (m *MockGateway) Reject(ctx context.Context, id interfaces.RequestID) (*types.Receipt, error) {
	args := m.Called(ctx, id)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

// SetOwnerPointer mocks the SetOwnerPointer method
func (m *MockGateway) SetOwnerPointer(ctx context.Context, id interfaces.ContentID) (*types.Receipt, error) {
	args := m.Called(ctx, id)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

// OwnPointer mocks the OwnPointer method
func (m *MockGateway) OwnPointer(ctx context.Context) (interfaces.ContentID, error) {
	args := m.Called(ctx)
	return args.Get(0).(interfaces.ContentID), args.Error(1)
}

// GetUser mocks the GetUser method
func (m *MockGateway) GetUser(ctx context.Context, addr common.Address) (interfaces.UserProfile, error) {
	args := m.Called(ctx, addr)
	return args.Get(0).(interfaces.UserProfile), args.Error(1)
}

// User mocks the User method
func (m *MockGateway) User(ctx context.Context, addr common.Address) (interfaces.UserProfile, error) {
	args := m.Called(ctx, addr)
	return args.Get(0).(interfaces.UserProfile), args.Error(1)
}

// RegisterUser mocks the RegisterUser method
func (m *MockGateway) RegisterUser(ctx context.Context, id interfaces.ContentID, publicKey string) (*types.Receipt, error) {
	args := m.Called(ctx, id, publicKey)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

// UpdatePointer mocks the UpdatePointer method
func (m *MockGateway) UpdatePointer(ctx context.Context, id interfaces.ContentID) (*types.Receipt, error) {
	args := m.Called(ctx, id)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

// CreateRequest mocks the CreateRequest method
func (m *MockGateway) CreateRequest(ctx context.Context, owner common.Address, fields []string) (interfaces.RequestID, *types.Receipt, error) {
	args := m.Called(ctx, owner, fields)
	receipt, _ := args.Get(1).(*types.Receipt)
	return args.Get(0).(interfaces.RequestID), receipt, args.Error(2)
}

var (
	_ interfaces.ContractGateway = (*OnchainGateway)(nil)
	_ interfaces.ContractGateway = (*MockGatewayClient)(nil)
	_ interfaces.ContractGateway = (*MockGateway)(nil)
)
