package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/divs-identity/divs-agent/cryptoutils"
	"github.com/divs-identity/divs-agent/interfaces"
	"github.com/divs-identity/divs-agent/metrics"
)

// Registration is the result of pinning the owner's record.
type Registration struct {
	Profile   interfaces.UserProfile `json:"profile"`
	ContentID interfaces.ContentID   `json:"content_id"`
	TxHash    string                 `json:"tx_hash"`
	Notice    interfaces.Notice      `json:"notice"`
}

// Registrar manages the wallet's own identity entry. The record is always
// sealed for the wallet's encryption key before it is pinned.
type Registrar struct {
	log     *slog.Logger
	gateway interfaces.ContractGateway
	pinner  interfaces.Pinner
	wallet  interfaces.Wallet
	metrics *metrics.Metrics
}

func NewRegistrar(log *slog.Logger, gateway interfaces.ContractGateway, pinner interfaces.Pinner, wallet interfaces.Wallet, m *metrics.Metrics) *Registrar {
	return &Registrar{
		log:     log,
		gateway: gateway,
		pinner:  pinner,
		wallet:  wallet,
		metrics: m,
	}
}

// Profile returns the wallet's registry entry.
func (r *Registrar) Profile(ctx context.Context) (interfaces.UserProfile, error) {
	profile, err := r.gateway.User(ctx, r.wallet.Address())
	if err != nil {
		return interfaces.UserProfile{}, err
	}
	if !profile.Registered {
		return profile, fmt.Errorf("%w: %s", interfaces.ErrUserNotRegistered, r.wallet.Address().Hex())
	}
	return profile, nil
}

// Record fetches and decrypts the wallet's own identity record.
func (r *Registrar) Record(ctx context.Context) (cryptoutils.IdentityData, error) {
	pointer, err := r.gateway.OwnPointer(ctx)
	if err != nil {
		return nil, err
	}
	sealed, err := r.pinner.Fetch(ctx, pointer)
	if err != nil {
		return nil, err
	}
	plaintext, err := r.wallet.Decrypt(ctx, sealed)
	if err != nil {
		return nil, err
	}
	record, err := cryptoutils.ParseIdentityData(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrDecryption, err)
	}
	return record, nil
}

// Register seals data for the wallet, pins it and creates the registry entry.
func (r *Registrar) Register(ctx context.Context, data cryptoutils.IdentityData) (*Registration, error) {
	profile, err := r.gateway.User(ctx, r.wallet.Address())
	if err != nil {
		return nil, err
	}
	if profile.Registered {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAlreadyRegistered, r.wallet.Address().Hex())
	}

	publicKey, cid, err := r.seal(ctx, data)
	if err != nil {
		r.metrics.IncrementOutcome("register", "failure")
		return nil, err
	}

	receipt, err := r.gateway.RegisterUser(ctx, cid, publicKey)
	if err != nil {
		r.metrics.IncrementOutcome("register", "failure")
		return nil, err
	}
	r.metrics.IncrementOutcome("register", "success")
	r.log.Info("Identity registered", "wallet", r.wallet.Address().Hex(), "cid", cid)

	return &Registration{
		Profile: interfaces.UserProfile{
			Wallet:     r.wallet.Address(),
			IPFSHash:   cid,
			PublicKey:  publicKey,
			Registered: true,
		},
		ContentID: cid,
		TxHash:    receipt.TxHash.Hex(),
		Notice:    newNotice(interfaces.NoticeSuccess, "Identity registered"),
	}, nil
}

// Update re-pins data and points the registry entry at the new record.
func (r *Registrar) Update(ctx context.Context, data cryptoutils.IdentityData) (*Registration, error) {
	profile, err := r.Profile(ctx)
	if err != nil {
		return nil, err
	}

	_, cid, err := r.seal(ctx, data)
	if err != nil {
		r.metrics.IncrementOutcome("update", "failure")
		return nil, err
	}

	receipt, err := r.gateway.UpdatePointer(ctx, cid)
	if err != nil {
		r.metrics.IncrementOutcome("update", "failure")
		return nil, err
	}
	r.metrics.IncrementOutcome("update", "success")
	r.log.Info("Identity updated", "wallet", r.wallet.Address().Hex(), "cid", cid, "previous", profile.IPFSHash)

	profile.IPFSHash = cid
	return &Registration{
		Profile:   profile,
		ContentID: cid,
		TxHash:    receipt.TxHash.Hex(),
		Notice:    newNotice(interfaces.NoticeSuccess, "Identity updated"),
	}, nil
}

func (r *Registrar) seal(ctx context.Context, data cryptoutils.IdentityData) (string, interfaces.ContentID, error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("%w: identity record is empty", interfaces.ErrInvalidArgument)
	}

	publicKey, err := r.wallet.EncryptionPublicKey()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", interfaces.ErrWalletUnavailable, err)
	}
	plaintext, err := data.Marshal()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", interfaces.ErrInvalidArgument, err)
	}
	payload, err := cryptoutils.Encrypt(publicKey, plaintext)
	if err != nil {
		return "", "", err
	}
	encoded, err := payload.Marshal()
	if err != nil {
		return "", "", err
	}

	cid, err := r.pinner.Pin(ctx, encoded, "divs-identity-"+r.wallet.Address().Hex())
	if err != nil {
		return "", "", err
	}
	return publicKey, cid, nil
}
