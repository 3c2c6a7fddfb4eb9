package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/divs-identity/divs-agent/interfaces"
	"github.com/divs-identity/divs-agent/metrics"
)

// PinnerFactory creates pinning backends from location URIs and manages
// multi-backend configurations for redundant storage.
type PinnerFactory struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	getenv  func(string) string
}

// NewPinnerFactory creates a new factory. m may be nil.
func NewPinnerFactory(logger *slog.Logger, m *metrics.Metrics) *PinnerFactory {
	return &PinnerFactory{
		log:     logger,
		metrics: m,
		getenv:  os.Getenv,
	}
}

// PinnerFor creates a pinning backend from a location.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - pinata:// - Pinata pinning API with gateway reads
//   - ipfs:// - IPFS (Kubo) node API
//   - s3:// - Amazon S3 or compatible object storage
//   - file:// - Local filesystem storage
func (f *PinnerFactory) PinnerFor(location interfaces.PinnerLocation) (interfaces.Pinner, error) {
	var (
		backend interfaces.Pinner
		err     error
	)

	switch location.Scheme {
	case "pinata":
		backend, err = f.createPinataPinner(location)
	case "ipfs":
		backend, err = f.createIPFSPinner(location)
	case "s3":
		backend, err = f.createS3Pinner(location)
	case "file":
		backend, err = f.createFilePinner(location)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, location.Scheme)
	}
	if err != nil {
		return nil, err
	}

	instrumented := &instrumentedPinner{Pinner: backend, metrics: f.metrics}
	if mb, ok := backend.(mirror); ok {
		return &instrumentedMirror{instrumentedPinner: instrumented, mirror: mb}, nil
	}
	return instrumented, nil
}

// CreateMultiPinner creates a multi-backend pinner from a list of locations.
// It will pin content to all available backends and fetch from the first one that has the content.
// Returns an error if no valid backends could be created from the provided locations.
func (f *PinnerFactory) CreateMultiPinner(locations []interfaces.PinnerLocation) (interfaces.Pinner, error) {
	backends := make([]interfaces.Pinner, 0, len(locations))

	for _, location := range locations {
		backend, err := f.PinnerFor(location)
		if err != nil {
			f.log.Warn("Failed to create pinning backend",
				"err", err,
				slog.String("locationURI", location.String()))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid pinning backends created")
	}
	if len(backends) == 1 {
		return backends[0], nil
	}

	return NewMultiPinner(backends, f.log), nil
}

// createPinataPinner creates a Pinata backend.
// URI format: pinata://[api-host]/?jwt=TOKEN&gateway=https://gw.example&timeout=60s
// The JWT falls back to the PINATA_JWT environment variable.
func (f *PinnerFactory) createPinataPinner(location interfaces.PinnerLocation) (interfaces.Pinner, error) {
	f.log.Debug("Creating Pinata backend")

	jwt := location.GetParam("jwt")
	if jwt == "" {
		jwt = f.getenv(PinataJWTEnv)
	}

	apiURL := ""
	if location.Host != "" {
		scheme := "https"
		if location.GetParam("insecure") == "true" {
			scheme = "http"
		}
		apiURL = fmt.Sprintf("%s://%s", scheme, location.Host)
	}

	timeout, err := parseTimeout(location.GetParam("timeout"), 60*time.Second)
	if err != nil {
		return nil, err
	}

	return NewPinataPinner(apiURL, location.GetParam("gateway"), jwt, timeout, f.log), nil
}

// createIPFSPinner creates an IPFS node backend.
// URI format: ipfs://host:port/?timeout=30s
func (f *PinnerFactory) createIPFSPinner(location interfaces.PinnerLocation) (interfaces.Pinner, error) {
	f.log.Debug("Creating IPFS backend", slog.String("uri", location.String()))

	host, port, found := strings.Cut(location.Host, ":")
	if host == "" {
		return nil, fmt.Errorf("%w: ipfs URI needs a host", interfaces.ErrInvalidLocationURI)
	}
	if !found || port == "" {
		port = "5001"
	}

	timeout, err := parseTimeout(location.GetParam("timeout"), 30*time.Second)
	if err != nil {
		return nil, err
	}

	return NewIPFSPinner(host, port, timeout, f.log), nil
}

// createS3Pinner creates an S3 or S3-compatible backend.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/path/?region=us-west-2&endpoint=custom.s3.com
func (f *PinnerFactory) createS3Pinner(location interfaces.PinnerLocation) (interfaces.Pinner, error) {
	f.log.Debug("Creating S3 backend", slog.String("bucket", location.Host))

	if location.Host == "" {
		return nil, fmt.Errorf("%w: s3 URI needs a bucket", interfaces.ErrInvalidLocationURI)
	}

	region := location.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if location.User != nil {
		accessKey = location.User.Username()
		secretKey, _ = location.User.Password()
	}

	return NewS3Pinner(location.Host, strings.TrimPrefix(location.Path, "/"), region, location.GetParam("endpoint"), accessKey, secretKey, f.log)
}

// createFilePinner creates a local directory backend.
// URI format: file:///absolute/path or file://./relative/path
func (f *PinnerFactory) createFilePinner(location interfaces.PinnerLocation) (interfaces.Pinner, error) {
	f.log.Debug("Creating file backend", slog.String("uri", location.String()))

	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", interfaces.ErrInvalidLocationURI)
	}

	return NewFilePinner(path, f.log)
}

func parseTimeout(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: bad timeout %q", interfaces.ErrInvalidLocationURI, raw)
	}
	return d, nil
}

// instrumentedPinner records per-backend operation metrics.
type instrumentedPinner struct {
	interfaces.Pinner
	metrics *metrics.Metrics
}

func (p *instrumentedPinner) Pin(ctx context.Context, payload []byte, name string) (interfaces.ContentID, error) {
	start := time.Now()
	id, err := p.Pinner.Pin(ctx, payload, name)
	p.metrics.ObserveStorageOp(p.Name(), "pin", err, time.Since(start))
	return id, err
}

func (p *instrumentedPinner) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	start := time.Now()
	data, err := p.Pinner.Fetch(ctx, id)
	p.metrics.ObserveStorageOp(p.Name(), "fetch", err, time.Since(start))
	return data, err
}

// instrumentedMirror is an instrumentedPinner over a backend that can mirror.
type instrumentedMirror struct {
	*instrumentedPinner
	mirror mirror
}

func (p *instrumentedMirror) Mirror(ctx context.Context, id interfaces.ContentID, payload []byte) error {
	start := time.Now()
	err := p.mirror.Mirror(ctx, id, payload)
	p.metrics.ObserveStorageOp(p.Name(), "mirror", err, time.Since(start))
	return err
}
