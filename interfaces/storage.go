package interfaces

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Pinner stores payloads in a content-addressed store and reads them back.
type Pinner interface {
	// Pin stores payload under a human-readable name and returns its
	// content identifier.
	Pin(ctx context.Context, payload []byte, name string) (ContentID, error)

	// Fetch returns the bytes pinned under id.
	Fetch(ctx context.Context, id ContentID) ([]byte, error)

	// Available reports whether the backend can currently accept pins.
	Available(ctx context.Context) bool

	// Name returns an identifier for logging.
	Name() string

	// LocationURI returns the URI identifying this backend, credentials masked.
	LocationURI() string
}

// PinnerFactory builds pinning backends from location URIs.
type PinnerFactory interface {
	// PinnerFor creates a backend from a location.
	// Supports pinata://, ipfs://, s3://, file://
	PinnerFor(location PinnerLocation) (Pinner, error)

	// CreateMultiPinner aggregates several backends.
	CreateMultiPinner(locations []PinnerLocation) (Pinner, error)
}

// PinnerLocation is a parsed backend URI.
type PinnerLocation struct {
	Raw    string
	Scheme string
	Host   string
	Path   string
	Query  url.Values
	User   *url.Userinfo
}

// NewPinnerLocation parses and validates a backend URI.
func NewPinnerLocation(uri string) (PinnerLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return PinnerLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "pinata", "ipfs", "s3", "file":
	default:
		return PinnerLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return PinnerLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		User:   parsed.User,
	}, nil
}

// String returns the original URI.
func (loc PinnerLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc PinnerLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}
