package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Wallet is the injected signing and decryption capability of the operator.
type Wallet interface {
	// Address is the account the wallet signs for.
	Address() ethcommon.Address

	// ChainID is the chain the wallet signs transactions for.
	ChainID() *big.Int

	// TransactOpts returns signing options bound to ctx.
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)

	// EncryptionPublicKey returns the base64 x25519 public key that others
	// encrypt to.
	EncryptionPublicKey() (string, error)

	// Decrypt opens a serialized EncryptedPayload addressed to this wallet.
	Decrypt(ctx context.Context, payload []byte) ([]byte, error)
}
