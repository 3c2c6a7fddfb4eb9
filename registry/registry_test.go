package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divs-identity/divs-agent/bindings/datarequest"
	"github.com/divs-identity/divs-agent/bindings/identity"
	"github.com/divs-identity/divs-agent/interfaces"
)

var (
	identityAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	requestAddr  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	ownerAddr    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	peerAddr     = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// fakeChain answers contract calls from canned outputs and mines every sent
// transaction immediately with a configurable status.
type fakeChain struct {
	bind.ContractBackend

	identityABI abi.ABI
	requestABI  abi.ABI

	mu        sync.Mutex
	outputs   map[string]func(args []any) []any
	callers   []common.Address
	methods   []string
	sent      []*types.Transaction
	receipts  map[common.Hash]*types.Receipt
	status    uint64
	sendErr   error
	neverMine bool
	logs      func(tx *types.Transaction) []*types.Log
}

func newFakeChain(t *testing.T) *fakeChain {
	identityABI, err := abi.JSON(strings.NewReader(identity.IdentityABI))
	require.NoError(t, err)
	requestABI, err := abi.JSON(strings.NewReader(datarequest.DataRequestABI))
	require.NoError(t, err)

	return &fakeChain{
		identityABI: identityABI,
		requestABI:  requestABI,
		outputs:     make(map[string]func(args []any) []any),
		receipts:    make(map[common.Hash]*types.Receipt),
		status:      types.ReceiptStatusSuccessful,
	}
}

func (f *fakeChain) method(to *common.Address, data []byte) (*abi.Method, []any, error) {
	parsed := f.identityABI
	if to != nil && *to == requestAddr {
		parsed = f.requestABI
	}
	if len(data) < 4 {
		return nil, nil, errors.New("short calldata")
	}
	m, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return m, args, nil
}

func (f *fakeChain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeChain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m, args, err := f.method(call.To, call.Data)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.callers = append(f.callers, call.From)
	f.methods = append(f.methods, m.Name)
	out, ok := f.outputs[m.Name]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("unexpected call to %s", m.Name)
	}
	return m.Outputs.Pack(out(args)...)
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	if f.neverMine {
		return nil
	}

	receipt := &types.Receipt{Status: f.status, TxHash: tx.Hash()}
	if f.logs != nil {
		receipt.Logs = f.logs(tx)
	}
	f.receipts[tx.Hash()] = receipt
	return nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if receipt, ok := f.receipts[txHash]; ok {
		return receipt, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) sentMethod(t *testing.T, i int) (string, []any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	require.Greater(t, len(f.sent), i)
	m, args, err := f.method(f.sent[i].To(), f.sent[i].Data())
	require.NoError(t, err)
	return m.Name, args
}

func testTransactor(t *testing.T) *bind.TransactOpts {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(1337))
	require.NoError(t, err)

	// Fixed gas settings keep the bound contract from estimating.
	auth.GasPrice = big.NewInt(1)
	auth.GasLimit = 200000
	auth.Nonce = big.NewInt(0)
	return auth
}

func newTestGateway(t *testing.T) (*OnchainGateway, *fakeChain, *bind.TransactOpts) {
	chain := newFakeChain(t)
	gw, err := NewOnchainGateway(chain, chain, identityAddr, requestAddr)
	require.NoError(t, err)

	auth := testTransactor(t)
	gw.SetTransactOpts(auth)
	return gw, chain, auth
}

func contractRequest(id int64, requester, owner common.Address, status uint8, fields ...string) datarequest.DataRequestContractRequest {
	return datarequest.DataRequestContractRequest{
		Id:        big.NewInt(id),
		Requester: requester,
		User:      owner,
		Fields:    fields,
		Status:    status,
	}
}

func TestOnchainGateway_RequestsForUser(t *testing.T) {
	gw, chain, _ := newTestGateway(t)

	chain.outputs["getDetailedUserRequests"] = func(args []any) []any {
		require.Equal(t, ownerAddr, args[0].(common.Address))
		return []any{[]datarequest.DataRequestContractRequest{
			contractRequest(1, peerAddr, ownerAddr, 0, "Name", "DOB"),
			contractRequest(2, peerAddr, ownerAddr, 2, "Phone"),
		}}
	}

	requests, err := gw.RequestsForUser(context.Background(), ownerAddr)
	require.NoError(t, err)
	require.Len(t, requests, 2)

	assert.Equal(t, interfaces.RequestID(1), requests[0].ID)
	assert.Equal(t, peerAddr, requests[0].Requester)
	assert.Equal(t, ownerAddr, requests[0].Owner)
	assert.Equal(t, []string{"Name", "DOB"}, requests[0].Fields)
	assert.Equal(t, interfaces.StatusPending, requests[0].Status)
	assert.Equal(t, interfaces.StatusRejected, requests[1].Status)
}

// summaryOutput answers the public requests(uint256) getter.
func summaryOutput(r datarequest.DataRequestContractRequest) []any {
	return []any{r.Id, r.Requester, r.User, r.Status}
}

func TestOnchainGateway_RequestsForRequesterKeepsOrder(t *testing.T) {
	gw, chain, _ := newTestGateway(t)

	otherOwner := common.HexToAddress("0x3333333333333333333333333333333333333333")
	ids := []*big.Int{big.NewInt(7), big.NewInt(3), big.NewInt(11), big.NewInt(5)}
	chain.outputs["getRequestsByRequester"] = func(args []any) []any {
		return []any{ids}
	}
	chain.outputs["requests"] = func(args []any) []any {
		id := args[0].(*big.Int)
		owner := ownerAddr
		if id.Int64() == 11 {
			owner = otherOwner
		}
		return summaryOutput(contractRequest(id.Int64(), peerAddr, owner, 1))
	}
	chain.outputs["getDetailedUserRequests"] = func(args []any) []any {
		if args[0].(common.Address) == otherOwner {
			return []any{[]datarequest.DataRequestContractRequest{
				contractRequest(11, peerAddr, otherOwner, 1, "Phone"),
			}}
		}
		return []any{[]datarequest.DataRequestContractRequest{
			contractRequest(3, peerAddr, ownerAddr, 1, "Name"),
			contractRequest(5, peerAddr, ownerAddr, 1, "DOB"),
			contractRequest(7, peerAddr, ownerAddr, 1, "Name", "Address"),
		}}
	}

	requests, err := gw.RequestsForRequester(context.Background(), peerAddr)
	require.NoError(t, err)
	require.Len(t, requests, len(ids))
	for i, id := range ids {
		assert.Equal(t, interfaces.RequestID(id.Uint64()), requests[i].ID)
		assert.Equal(t, interfaces.StatusApproved, requests[i].Status)
	}
	assert.Equal(t, []string{"Name", "Address"}, requests[0].Fields)
	assert.Equal(t, otherOwner, requests[2].Owner)
	assert.Equal(t, []string{"Phone"}, requests[2].Fields)
}

func TestOnchainGateway_Request(t *testing.T) {
	gw, chain, _ := newTestGateway(t)

	chain.outputs["requests"] = func(args []any) []any {
		id := args[0].(*big.Int)
		if id.Int64() == 9 {
			return summaryOutput(contractRequest(0, common.Address{}, common.Address{}, 0))
		}
		return summaryOutput(contractRequest(id.Int64(), peerAddr, ownerAddr, 0))
	}
	chain.outputs["getDetailedUserRequests"] = func(args []any) []any {
		require.Equal(t, ownerAddr, args[0].(common.Address))
		return []any{[]datarequest.DataRequestContractRequest{
			contractRequest(0, peerAddr, ownerAddr, 2, "Phone"),
			contractRequest(4, peerAddr, ownerAddr, 0, "Address"),
		}}
	}

	req, err := gw.Request(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, interfaces.RequestID(4), req.ID)
	assert.Equal(t, peerAddr, req.Requester)
	assert.Equal(t, ownerAddr, req.Owner)
	assert.Equal(t, []string{"Address"}, req.Fields)
	assert.Equal(t, interfaces.StatusPending, req.Status)

	req, err = gw.Request(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, interfaces.RequestID(0), req.ID)
	assert.Equal(t, []string{"Phone"}, req.Fields)
	assert.Equal(t, interfaces.StatusRejected, req.Status)

	_, err = gw.Request(context.Background(), 9)
	assert.ErrorIs(t, err, interfaces.ErrRequestNotFound)
}

func TestOnchainGateway_RequestMissingFromOwnerList(t *testing.T) {
	gw, chain, _ := newTestGateway(t)

	chain.outputs["requests"] = func(args []any) []any {
		return summaryOutput(contractRequest(6, peerAddr, ownerAddr, 0))
	}
	chain.outputs["getDetailedUserRequests"] = func(args []any) []any {
		return []any{[]datarequest.DataRequestContractRequest{}}
	}

	_, err := gw.Request(context.Background(), 6)
	require.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrRequestNotFound)
}

// The DataRequest registry only exposes requests, getRequestsByRequester and
// getDetailedUserRequests for reads; the gateway must not need anything else.
func TestOnchainGateway_ReadsUseRegistryGetters(t *testing.T) {
	gw, chain, _ := newTestGateway(t)

	chain.outputs["getRequestsByRequester"] = func(args []any) []any {
		return []any{[]*big.Int{big.NewInt(1)}}
	}
	chain.outputs["requests"] = func(args []any) []any {
		return summaryOutput(contractRequest(1, peerAddr, ownerAddr, 0))
	}
	chain.outputs["getDetailedUserRequests"] = func(args []any) []any {
		return []any{[]datarequest.DataRequestContractRequest{
			contractRequest(1, peerAddr, ownerAddr, 0, "Name"),
		}}
	}

	_, err := gw.Request(context.Background(), 1)
	require.NoError(t, err)
	_, err = gw.RequestsForRequester(context.Background(), peerAddr)
	require.NoError(t, err)
	_, err = gw.RequestsForUser(context.Background(), ownerAddr)
	require.NoError(t, err)

	chain.mu.Lock()
	defer chain.mu.Unlock()
	for _, name := range chain.methods {
		assert.Contains(t, []string{"requests", "getRequestsByRequester", "getDetailedUserRequests"}, name)
	}
	_, err = chain.requestABI.MethodById(crypto.Keccak256([]byte("getRequest(uint256)"))[:4])
	assert.Error(t, err)
}

func TestOnchainGateway_Users(t *testing.T) {
	gw, chain, auth := newTestGateway(t)

	user := identity.IdentityUser{
		Id:                big.NewInt(3),
		Wallet:            ownerAddr,
		IpfsHash:          "bafkreiown",
		RequesterIpfsHash: "bafkreishared",
		PublicKey:         "cHVia2V5",
		Registered:        true,
	}
	chain.outputs["getUser"] = func(args []any) []any { return []any{user} }
	chain.outputs["users"] = func(args []any) []any {
		return []any{user.Id, user.Wallet, user.IpfsHash, user.RequesterIpfsHash, user.PublicKey, user.Registered}
	}
	chain.outputs["getUserIPFSHash"] = func(args []any) []any { return []any{"bafkreiown"} }

	expected := interfaces.UserProfile{
		ID:                3,
		Wallet:            ownerAddr,
		IPFSHash:          "bafkreiown",
		RequesterIPFSHash: "bafkreishared",
		PublicKey:         "cHVia2V5",
		Registered:        true,
	}

	profile, err := gw.GetUser(context.Background(), ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, expected, profile)

	profile, err = gw.User(context.Background(), ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, expected, profile)

	pointer, err := gw.OwnPointer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, interfaces.ContentID("bafkreiown"), pointer)

	// getUserIPFSHash resolves msg.sender, so calls must come from the signer.
	chain.mu.Lock()
	assert.Contains(t, chain.callers, auth.From)
	chain.mu.Unlock()
}

func TestOnchainGateway_OwnPointerUnregistered(t *testing.T) {
	gw, chain, _ := newTestGateway(t)
	chain.outputs["getUserIPFSHash"] = func(args []any) []any { return []any{""} }

	_, err := gw.OwnPointer(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrUserNotRegistered)
}

func TestOnchainGateway_Writes(t *testing.T) {
	tests := []struct {
		name   string
		call   func(gw *OnchainGateway) (*types.Receipt, error)
		method string
		check  func(t *testing.T, args []any)
	}{
		{
			name:   "approve",
			call:   func(gw *OnchainGateway) (*types.Receipt, error) { return gw.Approve(context.Background(), 5) },
			method: "approveRequest",
			check: func(t *testing.T, args []any) {
				assert.Equal(t, int64(5), args[0].(*big.Int).Int64())
			},
		},
		{
			name:   "reject",
			call:   func(gw *OnchainGateway) (*types.Receipt, error) { return gw.Reject(context.Background(), 6) },
			method: "rejectRequest",
			check: func(t *testing.T, args []any) {
				assert.Equal(t, int64(6), args[0].(*big.Int).Int64())
			},
		},
		{
			name: "set owner pointer",
			call: func(gw *OnchainGateway) (*types.Receipt, error) {
				return gw.SetOwnerPointer(context.Background(), "bafkreinew")
			},
			method: "setRequesterIpfsHash",
			check: func(t *testing.T, args []any) {
				assert.Equal(t, "bafkreinew", args[0].(string))
			},
		},
		{
			name: "register user",
			call: func(gw *OnchainGateway) (*types.Receipt, error) {
				return gw.RegisterUser(context.Background(), "bafkreireg", "cHVi")
			},
			method: "registerUser",
			check: func(t *testing.T, args []any) {
				assert.Equal(t, "bafkreireg", args[0].(string))
				assert.Equal(t, "cHVi", args[1].(string))
			},
		},
		{
			name: "update pointer",
			call: func(gw *OnchainGateway) (*types.Receipt, error) {
				return gw.UpdatePointer(context.Background(), "bafkreiupd")
			},
			method: "updateIpfsHash",
			check: func(t *testing.T, args []any) {
				assert.Equal(t, "bafkreiupd", args[0].(string))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, chain, _ := newTestGateway(t)

			receipt, err := tt.call(gw)
			require.NoError(t, err)
			assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

			method, args := chain.sentMethod(t, 0)
			assert.Equal(t, tt.method, method)
			tt.check(t, args)
		})
	}
}

func TestOnchainGateway_WriteFailures(t *testing.T) {
	t.Run("no transact opts", func(t *testing.T) {
		chain := newFakeChain(t)
		gw, err := NewOnchainGateway(chain, chain, identityAddr, requestAddr)
		require.NoError(t, err)

		_, err = gw.Approve(context.Background(), 1)
		assert.ErrorIs(t, err, interfaces.ErrNoTransactOpts)
		assert.Empty(t, chain.sent)
	})

	t.Run("write check refuses", func(t *testing.T) {
		gw, chain, _ := newTestGateway(t)
		gw.SetWriteCheck(func() error { return interfaces.ErrWrongNetwork })

		_, err := gw.Reject(context.Background(), 1)
		assert.ErrorIs(t, err, interfaces.ErrWrongNetwork)
		assert.False(t, interfaces.IsSubmitted(err))
		assert.Empty(t, chain.sent)
	})

	t.Run("submit failure", func(t *testing.T) {
		gw, chain, _ := newTestGateway(t)
		chain.sendErr = errors.New("insufficient funds")

		_, err := gw.Approve(context.Background(), 1)
		var txErr *interfaces.TxError
		require.ErrorAs(t, err, &txErr)
		assert.Equal(t, interfaces.StageSubmit, txErr.Stage)
		assert.Equal(t, "approveRequest", txErr.Method)
		assert.False(t, interfaces.IsSubmitted(err))
	})

	t.Run("reverted receipt", func(t *testing.T) {
		gw, chain, _ := newTestGateway(t)
		chain.status = types.ReceiptStatusFailed

		receipt, err := gw.SetOwnerPointer(context.Background(), "bafkreinew")
		require.NotNil(t, receipt)
		assert.ErrorIs(t, err, interfaces.ErrReverted)

		var txErr *interfaces.TxError
		require.ErrorAs(t, err, &txErr)
		assert.Equal(t, interfaces.StageConfirm, txErr.Stage)
		assert.Equal(t, chain.sent[0].Hash(), txErr.TxHash)
		assert.True(t, interfaces.IsSubmitted(err))
	})

	t.Run("confirmation cancelled", func(t *testing.T) {
		gw, chain, _ := newTestGateway(t)
		chain.neverMine = true

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := gw.Reject(ctx, 1)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, interfaces.IsSubmitted(err))
	})
}

func TestOnchainGateway_CreateRequest(t *testing.T) {
	gw, chain, auth := newTestGateway(t)

	event := chain.requestABI.Events["RequestCreated"]
	chain.logs = func(tx *types.Transaction) []*types.Log {
		data, err := event.Inputs.NonIndexed().Pack([]string{"Name", "Phone"})
		require.NoError(t, err)
		return []*types.Log{
			// Unrelated log from another contract is skipped.
			{Address: identityAddr, Topics: []common.Hash{{0x01}}},
			{
				Address: requestAddr,
				Topics: []common.Hash{
					event.ID,
					common.BigToHash(big.NewInt(42)),
					common.BytesToHash(auth.From.Bytes()),
					common.BytesToHash(ownerAddr.Bytes()),
				},
				Data: data,
			},
		}
	}

	id, receipt, err := gw.CreateRequest(context.Background(), ownerAddr, []string{"Name", "Phone"})
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, interfaces.RequestID(42), id)

	method, args := chain.sentMethod(t, 0)
	assert.Equal(t, "createRequest", method)
	assert.Equal(t, ownerAddr, args[0].(common.Address))
	assert.Equal(t, []string{"Name", "Phone"}, args[1].([]string))
}

func TestOnchainGateway_CreateRequestWithoutEvent(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	_, _, err := gw.CreateRequest(context.Background(), ownerAddr, []string{"Name"})
	assert.ErrorIs(t, err, ErrNoRequestEvent)
}
