package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/divs-identity/divs-agent/interfaces"
)

// FilePinner implements a content-addressed pinning backend in a local directory.
// Each payload is stored in a file named after its CIDv1.
type FilePinner struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFilePinner creates a file backend rooted at baseDir, creating it if needed.
func NewFilePinner(baseDir string, log *slog.Logger) (*FilePinner, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FilePinner{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Pin writes payload under its derived CID.
func (b *FilePinner) Pin(ctx context.Context, payload []byte, name string) (interfaces.ContentID, error) {
	id, err := interfaces.ComputeContentID(payload)
	if err != nil {
		return "", err
	}

	if err := b.write(id, payload); err != nil {
		return "", err
	}

	b.log.Debug("Stored content in file",
		slog.String("cid", id.String()),
		slog.String("name", name))

	return id, nil
}

// Mirror writes payload under an identifier assigned by another backend.
func (b *FilePinner) Mirror(ctx context.Context, id interfaces.ContentID, payload []byte) error {
	if _, err := interfaces.ParseContentID(id.String()); err != nil {
		return err
	}
	return b.write(id, payload)
}

// Fetch reads the file stored for id and verifies it against the identifier.
// Returns ErrContentNotFound if the file doesn't exist.
func (b *FilePinner) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	if _, err := interfaces.ParseContentID(id.String()); err != nil {
		return nil, err
	}

	filePath := b.path(id)
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, interfaces.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if err := verifyContent(id, data); err != nil {
		b.log.Warn("Content hash mismatch", slog.String("path", filePath), "err", err)
		return nil, err
	}

	b.log.Debug("Fetched content from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// Available checks if the base directory exists.
func (b *FilePinner) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this pinning backend.
func (b *FilePinner) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this pinning backend.
func (b *FilePinner) LocationURI() string {
	return b.locationURI
}

func (b *FilePinner) write(id interfaces.ContentID, payload []byte) error {
	filePath := b.path(id)

	// Write through a temp file so readers never observe partial content.
	tmp, err := os.CreateTemp(b.baseDir, ".pin-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

func (b *FilePinner) path(id interfaces.ContentID) string {
	return filepath.Join(b.baseDir, id.String())
}
