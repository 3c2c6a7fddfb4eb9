// Package wallet provides the signing and decryption capability of the
// operator's account and the checks that bind it to the expected network.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/divs-identity/divs-agent/cryptoutils"
	"github.com/divs-identity/divs-agent/interfaces"
)

// DefaultChainID is Polygon Amoy, the network the registries are deployed on.
var DefaultChainID = big.NewInt(80002)

// LocalWallet implements interfaces.Wallet with an in-process secp256k1 key.
// The same key signs transactions and, used as an x25519 secret, opens
// payloads sealed for its encryption public key.
type LocalWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

// NewLocalWallet wraps key for chainID.
func NewLocalWallet(key *ecdsa.PrivateKey, chainID *big.Int) (*LocalWallet, error) {
	if key == nil {
		return nil, interfaces.ErrWalletUnavailable
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id %v", chainID)
	}

	return &LocalWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).Set(chainID),
	}, nil
}

// Address is the account the wallet signs for.
func (w *LocalWallet) Address() common.Address {
	return w.address
}

// ChainID returns a copy of the chain id transactions are signed for.
func (w *LocalWallet) ChainID() *big.Int {
	return new(big.Int).Set(w.chainID)
}

// TransactOpts returns EIP-155 signing options bound to ctx.
func (w *LocalWallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, w.chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrWalletUnavailable, err)
	}
	opts.Context = ctx
	return opts, nil
}

// EncryptionPublicKey returns the base64 x25519 public key derived from the
// signing key, as eth_getEncryptionPublicKey does.
func (w *LocalWallet) EncryptionPublicKey() (string, error) {
	return cryptoutils.EncryptionPublicKey(crypto.FromECDSA(w.key))
}

// Decrypt opens a serialized payload addressed to this wallet. Every failure
// wraps interfaces.ErrDecryption.
func (w *LocalWallet) Decrypt(ctx context.Context, payload []byte) ([]byte, error) {
	parsed, err := cryptoutils.ParsePayload(payload)
	if err != nil {
		return nil, err
	}

	plaintext, err := cryptoutils.Decrypt(crypto.FromECDSA(w.key), parsed)
	if err != nil {
		if errors.Is(err, interfaces.ErrDecryption) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", interfaces.ErrDecryption, err)
	}
	return plaintext, nil
}

var _ interfaces.Wallet = (*LocalWallet)(nil)
