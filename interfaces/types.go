package interfaces

import (
	"errors"
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/divs-identity/divs-agent/cryptoutils"
)

type IdentityData = cryptoutils.IdentityData
type EncryptedPayload = cryptoutils.EncryptedPayload

// ContentID is an IPFS content identifier as returned by the pinning service.
type ContentID string

// ParseContentID validates s as a CID (v0 or v1).
func ParseContentID(s string) (ContentID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidContentID)
	}
	if _, err := cid.Decode(s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidContentID, err)
	}
	return ContentID(s), nil
}

// ComputeContentID derives a CIDv1 (raw codec, sha2-256) for data. Backends
// without native content addressing key objects by this identifier.
func ComputeContentID(data []byte) (ContentID, error) {
	hash, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return ContentID(cid.NewCidV1(cid.Raw, hash).String()), nil
}

// String returns the identifier as text.
func (id ContentID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is unset.
func (id ContentID) IsZero() bool {
	return id == ""
}

// RequestID is the identifier assigned to a data request by the registry.
type RequestID uint64

func (id RequestID) String() string {
	return fmt.Sprintf("%d", uint64(id))
}

// RequestStatus mirrors the on-chain status enum of the DataRequest registry.
type RequestStatus uint8

const (
	StatusPending RequestStatus = iota
	StatusApproved
	StatusRejected
)

var statusNames = []string{"Pending", "Approved", "Rejected"}

func (s RequestStatus) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(s))
}

// IsTerminal reports whether no further transition is defined out of s.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is one of the defined statuses.
func (s RequestStatus) Valid() bool {
	return int(s) < len(statusNames)
}

// MarshalText renders the status by name.
func (s RequestStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name, case-insensitively.
func (s *RequestStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseRequestStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseRequestStatus parses a status name such as "approved".
func ParseRequestStatus(name string) (RequestStatus, error) {
	for i, n := range statusNames {
		if strings.EqualFold(n, name) {
			return RequestStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown request status %q", name)
}

// DataRequest is a requester's ask for a subset of an owner's identity fields.
type DataRequest struct {
	ID        RequestID         `json:"id"`
	Requester ethcommon.Address `json:"requester"`
	Owner     ethcommon.Address `json:"owner"`
	Fields    []string          `json:"fields"`
	Status    RequestStatus     `json:"status"`
}

// UserProfile is the Identity registry entry of an address.
type UserProfile struct {
	ID                uint64            `json:"id"`
	Wallet            ethcommon.Address `json:"wallet"`
	IPFSHash          ContentID         `json:"ipfs_hash"`
	RequesterIPFSHash ContentID         `json:"requester_ipfs_hash"`
	PublicKey         string            `json:"public_key"`
	Registered        bool              `json:"registered"`
}

// NoticeLevel classifies a user-facing notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarn    NoticeLevel = "warn"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing message produced by an operation. The ID lets a
// caller update or dismiss the notice it was handed.
type Notice struct {
	ID      string      `json:"id"`
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// TxStage identifies where a chain write failed.
type TxStage string

const (
	StageSubmit  TxStage = "submit"
	StageConfirm TxStage = "confirm"
)

// TxError reports a failed chain write.
type TxError struct {
	Stage  TxStage
	Method string
	TxHash ethcommon.Hash
	Err    error
}

func (e *TxError) Error() string {
	if e.Stage == StageConfirm {
		return fmt.Sprintf("%s: %s failed (tx %s): %v", e.Method, e.Stage, e.TxHash.Hex(), e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Method, e.Stage, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// IsSubmitted reports whether err is a write failure that happened after the
// transaction reached the network.
func IsSubmitted(err error) bool {
	var txErr *TxError
	return errors.As(err, &txErr) && txErr.Stage == StageConfirm
}
