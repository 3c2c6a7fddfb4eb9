package cryptoutils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// EncryptionVersion is the only envelope version understood by this package.
const EncryptionVersion = "x25519-xsalsa20-poly1305"

const nonceSize = 24

var (
	// ErrDecryptionFailed is returned when a payload cannot be authenticated
	// or is malformed.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrUnsupportedVersion is returned for envelopes of another scheme.
	ErrUnsupportedVersion = errors.New("unsupported encryption version")

	// ErrInvalidPublicKey is returned for malformed recipient keys.
	ErrInvalidPublicKey = errors.New("invalid encryption public key")
)

// EncryptedPayload is a sealed message addressed to one x25519 public key.
type EncryptedPayload struct {
	Version        string `json:"version"`
	Nonce          string `json:"nonce"`
	EphemPublicKey string `json:"ephemPublicKey"`
	Ciphertext     string `json:"ciphertext"`
}

// Marshal serializes the payload as pinned.
func (p *EncryptedPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// ParsePayload decodes a pinned payload. Both raw JSON and the 0x-prefixed
// hex encoding accepted by eth_decrypt are understood.
func ParsePayload(data []byte) (*EncryptedPayload, error) {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "0x") {
		decoded, err := hex.DecodeString(text[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: bad hex envelope: %v", ErrDecryptionFailed, err)
		}
		text = string(decoded)
	}

	var payload EncryptedPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("%w: bad envelope: %v", ErrDecryptionFailed, err)
	}
	return &payload, nil
}

// EncryptionPublicKey returns the base64 x25519 public key for a 32-byte
// private key.
func EncryptionPublicKey(privateKey []byte) (string, error) {
	if len(privateKey) != curve25519.ScalarSize {
		return "", fmt.Errorf("private key must be %d bytes, got %d", curve25519.ScalarSize, len(privateKey))
	}

	pub, err := curve25519.X25519(privateKey, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("failed to derive public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}

// Encrypt seals plaintext for the holder of publicKey (base64 x25519).
func Encrypt(publicKey string, plaintext []byte) (*EncryptedPayload, error) {
	peerBytes, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil || len(peerBytes) != 32 {
		return nil, ErrInvalidPublicKey
	}
	var peer [32]byte
	copy(peer[:], peerBytes)

	ephemPub, ephemPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := box.Seal(nil, plaintext, &nonce, &peer, ephemPriv)

	return &EncryptedPayload{
		Version:        EncryptionVersion,
		Nonce:          base64.StdEncoding.EncodeToString(nonce[:]),
		EphemPublicKey: base64.StdEncoding.EncodeToString(ephemPub[:]),
		Ciphertext:     base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// Decrypt opens payload with a 32-byte private key.
func Decrypt(privateKey []byte, payload *EncryptedPayload) ([]byte, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrDecryptionFailed)
	}
	if payload.Version != EncryptionVersion {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, payload.Version)
	}
	if len(privateKey) != 32 {
		return nil, fmt.Errorf("%w: private key must be 32 bytes", ErrDecryptionFailed)
	}

	nonceBytes, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil || len(nonceBytes) != nonceSize {
		return nil, fmt.Errorf("%w: bad nonce", ErrDecryptionFailed)
	}
	ephemBytes, err := base64.StdEncoding.DecodeString(payload.EphemPublicKey)
	if err != nil || len(ephemBytes) != 32 {
		return nil, fmt.Errorf("%w: bad ephemeral key", ErrDecryptionFailed)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", ErrDecryptionFailed)
	}

	var nonce [nonceSize]byte
	var ephem, priv [32]byte
	copy(nonce[:], nonceBytes)
	copy(ephem[:], ephemBytes)
	copy(priv[:], privateKey)

	plaintext, ok := box.Open(nil, ciphertext, &nonce, &ephem, &priv)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
