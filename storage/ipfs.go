package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"

	"github.com/divs-identity/divs-agent/interfaces"
)

// IPFSPinner implements a pinning backend using the HTTP API of an IPFS (Kubo) node.
type IPFSPinner struct {
	shell       *shell.Shell
	host        string
	port        string
	log         *slog.Logger
	locationURI string
}

// NewIPFSPinner creates a backend connected to the node API at host:port.
func NewIPFSPinner(host, port string, timeout time.Duration, log *slog.Logger) *IPFSPinner {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	sh := shell.NewShell(apiURL)
	sh.SetTimeout(timeout)

	return &IPFSPinner{
		shell:       sh,
		host:        host,
		port:        port,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/?timeout=%s", apiURL, timeout),
	}
}

// Pin adds payload to the node, pinned, and returns the CID the node assigned.
func (b *IPFSPinner) Pin(ctx context.Context, payload []byte, name string) (interfaces.ContentID, error) {
	if !b.shell.IsUp() {
		return "", interfaces.ErrBackendUnavailable
	}

	cid, err := b.shell.Add(bytes.NewReader(payload), shell.Pin(true))
	if err != nil {
		return "", fmt.Errorf("failed to add data to IPFS: %w", err)
	}

	id, err := interfaces.ParseContentID(cid)
	if err != nil {
		return "", fmt.Errorf("ipfs node returned %w", err)
	}

	b.log.Debug("Stored content in IPFS",
		slog.String("cid", id.String()),
		slog.String("name", name))

	return id, nil
}

// Fetch retrieves content from the node by CID.
// Returns ErrContentNotFound if the content doesn't exist or ErrBackendUnavailable
// if the IPFS node is not accessible.
func (b *IPFSPinner) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	start := time.Now()
	if _, err := interfaces.ParseContentID(id.String()); err != nil {
		return nil, err
	}

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port))
		return nil, interfaces.ErrBackendUnavailable
	}

	path := "/ipfs/" + id.String()
	reader, err := b.shell.Cat(path)
	if err != nil {
		if strings.Contains(err.Error(), "no link named") || strings.Contains(err.Error(), "not found") {
			b.log.Debug("Content not found in IPFS",
				slog.String("cid", id.String()),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}

		b.log.Error("Failed to fetch data from IPFS",
			slog.String("cid", id.String()),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to fetch data from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := readContent(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	b.log.Debug("Fetched content from IPFS",
		slog.String("cid", id.String()),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSPinner) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this pinning backend.
func (b *IPFSPinner) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI that identifies this pinning backend.
func (b *IPFSPinner) LocationURI() string {
	return b.locationURI
}
