package interfaces

import (
	"errors"

	"github.com/divs-identity/divs-agent/cryptoutils"
)

var (
	// ErrWalletUnavailable is returned when no usable signing key is configured.
	ErrWalletUnavailable = errors.New("wallet unavailable")

	// ErrWrongNetwork is returned when the RPC endpoint serves another chain.
	ErrWrongNetwork = errors.New("connected to the wrong network")

	// ErrNoTransactOpts is returned when a write is attempted without a signer.
	ErrNoTransactOpts = errors.New("no authorized transactor available")

	// ErrReverted is returned when a mined transaction has a failed status.
	ErrReverted = errors.New("transaction reverted")

	// ErrContentNotFound is returned when pinned content cannot be found.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a pinning backend is not reachable.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned for malformed or unsupported backend URIs.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")

	// ErrInvalidContentID is returned for strings that are not CIDs.
	ErrInvalidContentID = errors.New("invalid content identifier")

	// ErrDecryption is returned when ciphertext cannot be opened.
	ErrDecryption = cryptoutils.ErrDecryptionFailed

	// ErrRequestNotFound is returned for unknown request ids.
	ErrRequestNotFound = errors.New("request not found")

	// ErrUserNotRegistered is returned when an address has no identity entry.
	ErrUserNotRegistered = errors.New("user not registered")

	// ErrTerminalState is returned when approving or rejecting a request that
	// is already approved or rejected.
	ErrTerminalState = errors.New("request already in a terminal state")

	// ErrNotOwner is returned when acting on a request addressed to another owner.
	ErrNotOwner = errors.New("request is not addressed to this wallet")

	// ErrNotApproved is returned when fetching data for a request that has not
	// been approved.
	ErrNotApproved = errors.New("request not approved")

	// ErrInvalidArgument is returned for malformed caller input such as an
	// unknown field name or status filter.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyRegistered is returned when registering an address twice.
	ErrAlreadyRegistered = errors.New("user already registered")

	// ErrRequestBusy is returned while another transition of the same request
	// is in flight.
	ErrRequestBusy = errors.New("request has an operation in flight")
)
