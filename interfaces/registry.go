package interfaces

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractGateway issues reads and confirmed writes against the Identity and
// DataRequest registries. Write methods return only after the transaction is
// mined; failures are *TxError values.
type ContractGateway interface {
	// RequestsForUser returns every request addressed to owner.
	RequestsForUser(ctx context.Context, owner ethcommon.Address) ([]DataRequest, error)

	// RequestsForRequester returns every request made by requester, in
	// registry order.
	RequestsForRequester(ctx context.Context, requester ethcommon.Address) ([]DataRequest, error)

	// Request returns a single request. ErrRequestNotFound if unknown.
	Request(ctx context.Context, id RequestID) (DataRequest, error)

	// Approve marks a request approved.
	Approve(ctx context.Context, id RequestID) (*types.Receipt, error)

	// Reject marks a request rejected.
	Reject(ctx context.Context, id RequestID) (*types.Receipt, error)

	// SetOwnerPointer records the content identifier of the payload most
	// recently sealed for a requester.
	SetOwnerPointer(ctx context.Context, id ContentID) (*types.Receipt, error)

	// OwnPointer returns the signer's own encrypted record pointer.
	OwnPointer(ctx context.Context) (ContentID, error)

	// GetUser returns the registry entry of an address.
	GetUser(ctx context.Context, addr ethcommon.Address) (UserProfile, error)

	// User reads the public users mapping of the Identity registry.
	User(ctx context.Context, addr ethcommon.Address) (UserProfile, error)

	// RegisterUser creates the signer's identity entry.
	RegisterUser(ctx context.Context, id ContentID, publicKey string) (*types.Receipt, error)

	// UpdatePointer replaces the signer's own encrypted record pointer.
	UpdatePointer(ctx context.Context, id ContentID) (*types.Receipt, error)

	// CreateRequest files a request for fields of owner's identity.
	CreateRequest(ctx context.Context, owner ethcommon.Address, fields []string) (RequestID, *types.Receipt, error)
}
