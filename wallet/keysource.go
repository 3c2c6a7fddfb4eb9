package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/vault/api"

	"github.com/divs-identity/divs-agent/interfaces"
)

const (
	// KeystorePasswordEnv holds the passphrase of keystore:// key files.
	KeystorePasswordEnv = "DIVS_KEYSTORE_PASSWORD"

	// VaultTokenEnv holds the token used for vault:// key sources.
	VaultTokenEnv = "VAULT_TOKEN"

	defaultVaultField = "private_key"
)

// KeyLoader resolves key source strings into private keys.
//
// Supported sources:
//   - 0x-prefixed or bare hex private key
//   - keystore:///path/to/UTC--file (passphrase from DIVS_KEYSTORE_PASSWORD)
//   - vault://host:8200/mount/path?field=private_key[&insecure=true] (KV v2, token from VAULT_TOKEN)
type KeyLoader struct {
	Getenv     func(string) string
	HTTPClient *http.Client
}

// NewKeyLoader returns a loader reading the process environment.
func NewKeyLoader() *KeyLoader {
	return &KeyLoader{
		Getenv:     os.Getenv,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Load resolves source into a private key. Every failure wraps
// interfaces.ErrWalletUnavailable.
func (l *KeyLoader) Load(ctx context.Context, source string) (*ecdsa.PrivateKey, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: no key source configured", interfaces.ErrWalletUnavailable)
	}

	var (
		key *ecdsa.PrivateKey
		err error
	)
	switch {
	case strings.HasPrefix(source, "keystore://"):
		key, err = l.loadKeystore(strings.TrimPrefix(source, "keystore://"))
	case strings.HasPrefix(source, "vault://"):
		key, err = l.loadVault(ctx, source)
	default:
		key, err = parseHexKey(source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrWalletUnavailable, err)
	}
	return key, nil
}

func parseHexKey(raw string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex private key: %w", err)
	}
	return key, nil
}

func (l *KeyLoader) loadKeystore(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore file: %w", err)
	}

	key, err := keystore.DecryptKey(data, l.Getenv(KeystorePasswordEnv))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore file: %w", err)
	}
	return key.PrivateKey, nil
}

// loadVault reads the key from a KV v2 secret.
func (l *KeyLoader) loadVault(ctx context.Context, source string) (*ecdsa.PrivateKey, error) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("invalid vault URI: %w", err)
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("vault URI must be vault://host/mount/path")
	}
	mountPath, dataPath := parts[0], parts[1]

	field := u.Query().Get("field")
	if field == "" {
		field = defaultVaultField
	}

	scheme := "https"
	if u.Query().Get("insecure") == "true" {
		scheme = "http"
	}

	config := api.DefaultConfig()
	config.Address = fmt.Sprintf("%s://%s", scheme, u.Host)
	if l.HTTPClient != nil {
		config.HttpClient = l.HTTPClient
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token := l.Getenv(VaultTokenEnv); token != "" {
		client.SetToken(token)
	}

	path := fmt.Sprintf("%s/data/%s", mountPath, dataPath)
	secret, err := client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}
	raw, ok := data[field].(string)
	if !ok {
		return nil, fmt.Errorf("field %q not found in Vault secret", field)
	}
	return parseHexKey(raw)
}
