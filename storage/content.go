package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"

	"github.com/divs-identity/divs-agent/interfaces"
)

// maxFetchSize bounds the content any backend reads back.
const maxFetchSize = 16 * 1024 * 1024

var (
	// ErrContentMismatch is returned when stored bytes do not hash to the requested CID.
	ErrContentMismatch = errors.New("content does not match its identifier")

	// ErrContentTooLarge is returned when stored content exceeds maxFetchSize.
	ErrContentTooLarge = errors.New("content exceeds fetch size limit")
)

// readContent reads r up to maxFetchSize bytes and fails rather than truncate.
func readContent(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFetchSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxFetchSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrContentTooLarge, maxFetchSize)
	}
	return data, nil
}

// mirror is implemented by backends that derive their own identifiers but can
// also keep a copy under an identifier assigned by another backend.
type mirror interface {
	Mirror(ctx context.Context, id interfaces.ContentID, payload []byte) error
}

// verifyContent checks data against id when id is a raw-codec CID. Other
// codecs hash a DAG encoding of the data and are accepted as is.
func verifyContent(id interfaces.ContentID, data []byte) error {
	c, err := cid.Decode(id.String())
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrInvalidContentID, err)
	}
	if c.Type() != cid.Raw {
		return nil
	}

	sum, err := c.Prefix().Sum(data)
	if err != nil {
		return fmt.Errorf("failed to hash content: %w", err)
	}
	if !sum.Equals(c) {
		return fmt.Errorf("%w: expected %s, got %s", ErrContentMismatch, c, sum)
	}
	return nil
}
