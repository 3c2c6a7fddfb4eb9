package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/divs-identity/divs-agent/cryptoutils"
	"github.com/divs-identity/divs-agent/interfaces"
	"github.com/divs-identity/divs-agent/registry"
	"github.com/divs-identity/divs-agent/storage"
	"github.com/divs-identity/divs-agent/wallet"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	gateway   *registry.MockGatewayClient
	pinner    *storage.MemoryPinner
	owner     *wallet.LocalWallet
	requester *wallet.LocalWallet
	record    cryptoutils.IdentityData
	recordID  interfaces.ContentID
}

func newTestWallet(t *testing.T) *wallet.LocalWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	w, err := wallet.NewLocalWallet(key, big.NewInt(1337))
	require.NoError(t, err)
	return w
}

// newFixture registers an owner holding record and a requester with no
// record of its own. The gateway signs as the owner.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		gateway:   registry.NewMockGatewayClient(),
		pinner:    storage.NewMemoryPinner(),
		owner:     newTestWallet(t),
		requester: newTestWallet(t),
		record: cryptoutils.IdentityData{
			"Name":    "Alice",
			"DOB":     "1990-01-01",
			"Address": "1 Main St",
			"Phone":   "+15550100",
		},
	}

	ownerKey, err := f.owner.EncryptionPublicKey()
	require.NoError(t, err)
	f.recordID = f.pinSealed(t, ownerKey, f.record)
	f.gateway.SeedUser(f.owner.Address(), f.recordID, ownerKey)

	requesterKey, err := f.requester.EncryptionPublicKey()
	require.NoError(t, err)
	f.gateway.SeedUser(f.requester.Address(), "", requesterKey)

	f.gateway.SetSigner(f.owner.Address())
	return f
}

func (f *fixture) pinSealed(t *testing.T, publicKey string, record cryptoutils.IdentityData) interfaces.ContentID {
	t.Helper()
	plaintext, err := record.Marshal()
	require.NoError(t, err)
	payload, err := cryptoutils.Encrypt(publicKey, plaintext)
	require.NoError(t, err)
	encoded, err := payload.Marshal()
	require.NoError(t, err)
	id, err := f.pinner.Pin(context.Background(), encoded, "record")
	require.NoError(t, err)
	return id
}

func (f *fixture) controller(opts ...Option) *Controller {
	return NewController(discardLogger(), f.gateway, f.pinner, f.owner, opts...)
}

func (f *fixture) status(t *testing.T, id interfaces.RequestID) interfaces.RequestStatus {
	t.Helper()
	req, err := f.gateway.Request(context.Background(), id)
	require.NoError(t, err)
	return req.Status
}

// shared decrypts, as the requester, the payload the owner points at.
func (f *fixture) shared(t *testing.T) cryptoutils.IdentityData {
	t.Helper()
	ctx := context.Background()
	profile, err := f.gateway.User(ctx, f.owner.Address())
	require.NoError(t, err)
	sealed, err := f.pinner.Fetch(ctx, profile.RequesterIPFSHash)
	require.NoError(t, err)
	plaintext, err := f.requester.Decrypt(ctx, sealed)
	require.NoError(t, err)
	record, err := cryptoutils.ParseIdentityData(plaintext)
	require.NoError(t, err)
	return record
}

func TestApprove_SharesExactlyRequestedFields(t *testing.T) {
	tests := []struct {
		name     string
		fields   []string
		expected cryptoutils.IdentityData
	}{
		{
			name:     "single field",
			fields:   []string{"Name"},
			expected: cryptoutils.IdentityData{"Name": "Alice"},
		},
		{
			name:     "several fields",
			fields:   []string{"DOB", "Phone"},
			expected: cryptoutils.IdentityData{"DOB": "1990-01-01", "Phone": "+15550100"},
		},
		{
			name:     "fields missing from the record are skipped",
			fields:   []string{"Address", "panNumber"},
			expected: cryptoutils.IdentityData{"Address": "1 Main St"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.gateway.SeedRequest(f.requester.Address(), f.owner.Address(), tt.fields)

			outcome, err := f.controller().Approve(context.Background(), id)
			require.NoError(t, err)

			assert.Equal(t, StateApproved, outcome.State)
			assert.Equal(t, interfaces.NoticeSuccess, outcome.Notice.Level)
			assert.NotEmpty(t, outcome.Notice.ID)
			assert.False(t, outcome.ContentID.IsZero())
			assert.Equal(t, interfaces.StatusApproved, f.status(t, id))
			assert.Equal(t, tt.expected, f.shared(t))
		})
	}
}

func TestApprove_PointerWriteFailureLeavesPending(t *testing.T) {
	f := newFixture(t)
	id := f.gateway.SeedRequest(f.requester.Address(), f.owner.Address(), []string{"Name"})
	f.gateway.FailNext("setRequesterIpfsHash", interfaces.StageConfirm, errors.New("not mined"))

	c := f.controller()
	outcome, err := c.Approve(context.Background(), id)
	require.Error(t, err)

	var txErr *interfaces.TxError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, interfaces.StageConfirm, txErr.Stage)
	assert.Equal(t, StepSetPointer, FailedStep(err))

	assert.Equal(t, StatePending, outcome.State)
	assert.Equal(t, interfaces.NoticeError, outcome.Notice.Level)
	assert.Equal(t, interfaces.StatusPending, f.status(t, id))
	assert.Equal(t, 0, f.gateway.Calls("approveRequest"))
}

func TestApprove_RefusesTerminalRequests(t *testing.T) {
	f := newFixture(t)
	approved := f.gateway.SeedRequest(f.requester.Address(), f.owner.Address(), []string{"Name"})
	rejected := f.gateway.SeedRequest(f.requester.Address(), f.owner.Address(), []string{"DOB"})

	c := f.controller()
	_, err := c.Approve(context.Background(), approved)
	require.NoError(t, err)
	_, err = c.Reject(context.Background(), rejected)
	require.NoError(t, err)

	for _, id := range []interfaces.RequestID{approved, rejected} {
		outcome, err := c.Approve(context.Background(), id)
		assert.ErrorIs(t, err, interfaces.ErrTerminalState)
		assert.Equal(t, interfaces.NoticeWarn, outcome.Notice.Level)

		_, err = c.Reject(context.Background(), id)
		assert.ErrorIs(t, err, interfaces.ErrTerminalState)
	}

	assert.Equal(t, 1, f.gateway.Calls("setRequesterIpfsHash"))
	assert.Equal(t, 1, f.gateway.Calls("approveRequest"))
	assert.Equal(t, 1, f.gateway.Calls("rejectRequest"))
}

func TestApprove_RefusesOtherOwnersRequests(t *testing.T) {
	f := newFixture(t)
	id := f.gateway.SeedRequest(f.owner.Address(), f.requester.Address(), []string{"Name"})

	_, err := f.controller().Approve(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrNotOwner)
	_, err = f.controller().Reject(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrNotOwner)

	assert.Equal(t, interfaces.StatusPending, f.status(t, id))
}

func TestApprove_UnknownRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller().Approve(context.Background(), 99)
	assert.ErrorIs(t, err, interfaces.ErrRequestNotFound)
}

func TestApprove_BusyRequest(t *testing.T) {
	f := newFixture(t)
	id := f.gateway.SeedRequest(f.requester.Address(), f.owner.Address(), []string{"Name"})

	guard := NewMemoryGuard()
	c := f.controller(WithGuard(guard))

	release, err := guard.Acquire(context.Background(), "request:"+id.String())
	require.NoError(t, err)

	_, err = c.Approve(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrRequestBusy)
	_, err = c.Reject(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrRequestBusy)

	release()

	_, err = c.Approve(context.Background(), id)
	require.NoError(t, err)
}

func TestApprove_ResumesFromJournal(t *testing.T) {
	f := newFixture(t)
	id := f.gateway.SeedRequest(f.requester.Address(), f.owner.Address(), []string{"Name", "DOB"})
	f.gateway.FailNext("approveRequest", interfaces.StageSubmit, errors.New("nonce too low"))

	journal := NewMemoryJournal()
	c := f.controller(WithJournal(journal))

	outcome, err := c.Approve(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, StepApprove, FailedStep(err))
	assert.Equal(t, StatePending, outcome.State)

	recorded, err := journal.Lookup(context.Background(), id)
	require.NoError(t, err)
	require.False(t, recorded.IsZero())
	pinned := f.pinner.Len()

	outcome, err = c.Approve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, recorded, outcome.ContentID)
	assert.Equal(t, StateApproved, outcome.State)

	assert.Equal(t, 1, f.gateway.Calls("setRequesterIpfsHash"))
	assert.Equal(t, pinned, f.pinner.Len())

	cleared, err := journal.Lookup(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, cleared.IsZero())
}

func TestApprove_StaleJournalSharesAgain(t *testing.T) {
	f := newFixture(t)
	id := f.gateway.SeedRequest(f.requester.Address(), f.owner.Address(), []string{"Phone"})
	f.gateway.FailNext("approveRequest", interfaces.StageSubmit, errors.New("nonce too low"))

	c := f.controller()
	_, err := c.Approve(context.Background(), id)
	require.Error(t, err)

	// Another approval overwrote the requester pointer in the meantime.
	_, err = f.gateway.SetOwnerPointer(context.Background(), "bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy")
	require.NoError(t, err)

	_, err = c.Approve(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, 3, f.gateway.Calls("setRequesterIpfsHash"))
	assert.Equal(t, cryptoutils.IdentityData{"Phone": "+15550100"}, f.shared(t))
}

func TestApprove_DecryptionFailure(t *testing.T) {
	f := newFixture(t)

	// The owner's record is sealed for somebody else.
	otherKey, err := f.requester.EncryptionPublicKey()
	require.NoError(t, err)
	foreign := f.pinSealed(t, otherKey, f.record)
	_, err = f.gateway.UpdatePointer(context.Background(), foreign)
	require.NoError(t, err)

	id := f.gateway.SeedRequest(f.requester.Address(), f.owner.Address(), []string{"Name"})

	c := f.controller()
	outcome, err := c.Approve(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrDecryption)
	assert.Equal(t, StepDecrypt, FailedStep(err))
	assert.Equal(t, StatePending, outcome.State)

	state, ok := c.State(id)
	assert.False(t, ok)
	assert.Empty(t, state)
	assert.Equal(t, 0, f.gateway.Calls("setRequesterIpfsHash"))
}

func TestApprove_UnregisteredRequester(t *testing.T) {
	f := newFixture(t)
	stranger := newTestWallet(t)
	id := f.gateway.SeedRequest(stranger.Address(), f.owner.Address(), []string{"Name"})

	_, err := f.controller().Approve(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrUserNotRegistered)
	assert.Equal(t, StepRequesterKey, FailedStep(err))
	assert.Equal(t, 1, f.pinner.Len())
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	id := f.gateway.SeedRequest(f.requester.Address(), f.owner.Address(), []string{"Name"})

	outcome, err := f.controller().Reject(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateRejected, outcome.State)
	assert.NotEmpty(t, outcome.TxHash)
	assert.Equal(t, interfaces.StatusRejected, f.status(t, id))
	assert.Equal(t, 0, f.gateway.Calls("setRequesterIpfsHash"))
}

func TestReject_Failure(t *testing.T) {
	f := newFixture(t)
	id := f.gateway.SeedRequest(f.requester.Address(), f.owner.Address(), []string{"Name"})
	f.gateway.FailNext("rejectRequest", interfaces.StageSubmit, errors.New("insufficient funds"))

	outcome, err := f.controller().Reject(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, StepReject, FailedStep(err))
	assert.Equal(t, StatePending, outcome.State)
	assert.Equal(t, interfaces.StatusPending, f.status(t, id))
}

func TestLoadRequests(t *testing.T) {
	f := newFixture(t)
	first := f.gateway.SeedRequest(f.requester.Address(), f.owner.Address(), []string{"Name"})
	second := f.gateway.SeedRequest(f.requester.Address(), f.owner.Address(), []string{"DOB"})
	f.gateway.SeedRequest(f.owner.Address(), f.requester.Address(), []string{"Phone"})

	c := f.controller()
	assert.Equal(t, ViewIdle, c.Snapshot().State)

	snap, err := c.LoadRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ViewReady, snap.State)
	require.Len(t, snap.Requests, 2)
	assert.Equal(t, first, snap.Requests[0].ID)
	assert.Equal(t, StatePending, snap.Requests[0].State)

	_, err = c.Reject(context.Background(), second)
	require.NoError(t, err)

	state, ok := c.State(second)
	require.True(t, ok)
	assert.Equal(t, StateRejected, state)
	assert.Equal(t, StateRejected, c.Snapshot().Requests[1].State)
}

func TestLoadRequests_Error(t *testing.T) {
	f := newFixture(t)
	gateway := &registry.MockGateway{}
	gateway.On("RequestsForUser", mock.Anything, f.owner.Address()).Return(nil, interfaces.ErrBackendUnavailable)

	c := NewController(discardLogger(), gateway, f.pinner, f.owner)
	snap, err := c.LoadRequests(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
	assert.Equal(t, ViewError, snap.State)
	assert.NotEmpty(t, snap.Error)
	assert.Empty(t, snap.Requests)

	gateway.AssertExpectations(t)
}

func TestRequester_Flow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requester := NewRequester(discardLogger(), f.gateway, f.pinner, f.requester, nil)

	f.gateway.SetSigner(f.requester.Address())
	req, txHash, err := requester.Create(ctx, f.owner.Address(), []string{"Name", "Address", "Name"})
	require.NoError(t, err)
	assert.NotEmpty(t, txHash)
	assert.Equal(t, []string{"Name", "Address"}, req.Fields)
	assert.Equal(t, interfaces.StatusPending, req.Status)

	_, err = requester.FetchData(ctx, req.ID)
	assert.ErrorIs(t, err, interfaces.ErrNotApproved)

	f.gateway.SetSigner(f.owner.Address())
	_, err = f.controller().Approve(ctx, req.ID)
	require.NoError(t, err)

	f.gateway.SetSigner(f.requester.Address())
	data, err := requester.FetchData(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, f.owner.Address(), data.Owner)
	assert.Equal(t, cryptoutils.IdentityData{"Name": "Alice", "Address": "1 Main St"}, data.Fields)

	approved, err := requester.Requests(ctx, FilterBy(interfaces.StatusApproved))
	require.NoError(t, err)
	require.Len(t, approved, 1)

	pending, err := requester.Requests(ctx, FilterBy(interfaces.StatusPending))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRequester_CreateValidation(t *testing.T) {
	f := newFixture(t)
	f.gateway.SetSigner(f.requester.Address())
	requester := NewRequester(discardLogger(), f.gateway, f.pinner, f.requester, nil)
	ctx := context.Background()

	_, _, err := requester.Create(ctx, ethcommon.Address{}, []string{"Name"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)

	_, _, err = requester.Create(ctx, f.owner.Address(), nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)

	_, _, err = requester.Create(ctx, f.owner.Address(), []string{"Salary"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)

	_, _, err = requester.Create(ctx, newTestWallet(t).Address(), []string{"Name"})
	assert.ErrorIs(t, err, interfaces.ErrUserNotRegistered)

	assert.Equal(t, 0, f.gateway.Calls("createRequest"))
}

func TestRequester_FetchDataOfOthers(t *testing.T) {
	f := newFixture(t)
	id := f.gateway.SeedRequest(f.owner.Address(), f.requester.Address(), []string{"Name"})

	requester := NewRequester(discardLogger(), f.gateway, f.pinner, f.requester, nil)
	_, err := requester.FetchData(context.Background(), id)
	assert.ErrorIs(t, err, interfaces.ErrNotOwner)
}

func TestParseStatusFilter(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
		wantErr  bool
	}{
		{raw: "", expected: "all"},
		{raw: "all", expected: "all"},
		{raw: "Pending", expected: "pending"},
		{raw: "approved", expected: "approved"},
		{raw: "REJECTED", expected: "rejected"},
		{raw: "done", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			filter, err := ParseStatusFilter(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, filter.String())
		})
	}

	all := StatusFilter{}
	assert.True(t, all.Match(interfaces.StatusRejected))
	assert.False(t, FilterBy(interfaces.StatusPending).Match(interfaces.StatusApproved))
}

func TestRegistrar(t *testing.T) {
	ctx := context.Background()
	gateway := registry.NewMockGatewayClient()
	pinner := storage.NewMemoryPinner()
	owner := newTestWallet(t)
	gateway.SetSigner(owner.Address())

	registrar := NewRegistrar(discardLogger(), gateway, pinner, owner, nil)

	_, err := registrar.Profile(ctx)
	assert.ErrorIs(t, err, interfaces.ErrUserNotRegistered)
	_, err = registrar.Update(ctx, cryptoutils.IdentityData{"Name": "Bob"})
	assert.ErrorIs(t, err, interfaces.ErrUserNotRegistered)
	_, err = registrar.Register(ctx, cryptoutils.IdentityData{})
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)

	reg, err := registrar.Register(ctx, cryptoutils.IdentityData{"Name": "Bob", "DOB": "1985-05-05"})
	require.NoError(t, err)
	assert.False(t, reg.ContentID.IsZero())

	profile, err := registrar.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, reg.ContentID, profile.IPFSHash)
	publicKey, err := owner.EncryptionPublicKey()
	require.NoError(t, err)
	assert.Equal(t, publicKey, profile.PublicKey)

	record, err := registrar.Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, cryptoutils.IdentityData{"Name": "Bob", "DOB": "1985-05-05"}, record)

	_, err = registrar.Register(ctx, cryptoutils.IdentityData{"Name": "Bob"})
	assert.ErrorIs(t, err, interfaces.ErrAlreadyRegistered)

	updated, err := registrar.Update(ctx, cryptoutils.IdentityData{"Name": "Robert"})
	require.NoError(t, err)
	assert.NotEqual(t, reg.ContentID, updated.ContentID)

	record, err = registrar.Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, cryptoutils.IdentityData{"Name": "Robert"}, record)
}

func TestValidateFields(t *testing.T) {
	fields, err := ValidateFields([]string{"DOB", "Name", "DOB"})
	require.NoError(t, err)
	assert.Equal(t, []string{"DOB", "Name"}, fields)

	_, err = ValidateFields(nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)

	_, err = ValidateFields([]string{"name"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)

	catalogue := Fields()
	require.Len(t, catalogue, 5)
	catalogue[0].Name = "changed"
	assert.Equal(t, "Name", Fields()[0].Name)
}
