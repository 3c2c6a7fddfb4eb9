package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divs-identity/divs-agent/interfaces"
)

func TestFilePinner_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	pinner, err := NewFilePinner(dir, discardLogger())
	require.NoError(t, err)

	payloads := [][]byte{
		[]byte(`{"name":"A"}`),
		[]byte(``),
		[]byte("\x00\x01binary\xff"),
	}

	for _, payload := range payloads {
		id, err := pinner.Pin(context.Background(), payload, "p.json")
		require.NoError(t, err)

		expected, err := interfaces.ComputeContentID(payload)
		require.NoError(t, err)
		assert.Equal(t, expected, id)

		data, err := pinner.Fetch(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	}

	assert.True(t, pinner.Available(context.Background()))
	assert.Equal(t, "file://"+dir, pinner.LocationURI())
}

func TestFilePinner_Fetch(t *testing.T) {
	dir := t.TempDir()
	pinner, err := NewFilePinner(dir, discardLogger())
	require.NoError(t, err)

	t.Run("missing content", func(t *testing.T) {
		id, err := interfaces.ComputeContentID([]byte("absent"))
		require.NoError(t, err)

		_, err = pinner.Fetch(context.Background(), id)
		assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
	})

	t.Run("tampered content", func(t *testing.T) {
		id, err := pinner.Pin(context.Background(), []byte("original"), "p")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, id.String()), []byte("tampered"), 0o644))

		_, err = pinner.Fetch(context.Background(), id)
		assert.ErrorIs(t, err, ErrContentMismatch)
	})

	t.Run("path traversal", func(t *testing.T) {
		_, err := pinner.Fetch(context.Background(), "../../secret")
		assert.ErrorIs(t, err, interfaces.ErrInvalidContentID)
	})
}

func TestFilePinner_MirrorKeepsForeignIdentifier(t *testing.T) {
	pinner, err := NewFilePinner(t.TempDir(), discardLogger())
	require.NoError(t, err)

	// A dag-pb CID cannot be re-derived locally, so it is served unverified.
	hash, err := mh.Sum([]byte("dag node"), mh.SHA2_256, -1)
	require.NoError(t, err)
	foreign := interfaces.ContentID(cid.NewCidV0(hash).String())
	require.NoError(t, pinner.Mirror(context.Background(), foreign, []byte("sealed")))

	data, err := pinner.Fetch(context.Background(), foreign)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), data)
}

func TestMemoryPinner_RoundTrip(t *testing.T) {
	pinner := NewMemoryPinner()

	id, err := pinner.Pin(context.Background(), []byte("x"), "x.json")
	require.NoError(t, err)

	data, err := pinner.Fetch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
	assert.Equal(t, "x.json", pinner.PinName(id))

	_, err = pinner.Fetch(context.Background(), "bafkreiabsent")
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}
