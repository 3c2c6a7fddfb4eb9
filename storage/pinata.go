package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/divs-identity/divs-agent/interfaces"
)

const (
	// DefaultPinataAPI is the Pinata pinning API base URL.
	DefaultPinataAPI = "https://api.pinata.cloud"

	// DefaultPinataGateway is the public gateway used to read pinned content.
	DefaultPinataGateway = "https://gateway.pinata.cloud"

	// PinataJWTEnv is consulted when the location URI carries no jwt parameter.
	PinataJWTEnv = "PINATA_JWT"

	// authCacheTTL is how long a successful JWT check is trusted.
	authCacheTTL = 5 * time.Minute
)

// PinataPinner implements a pinning backend on top of the Pinata HTTP API.
// Pins go to the pinFileToIPFS endpoint and reads go through an IPFS gateway.
type PinataPinner struct {
	apiURL      string
	gatewayURL  string
	jwt         string
	client      *http.Client
	log         *slog.Logger
	locationURI string

	authOK atomic.Time
}

// pinataPinResponse is the pinFileToIPFS response body.
type pinataPinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// NewPinataPinner creates a Pinata backend. Empty apiURL and gatewayURL fall
// back to the public Pinata endpoints. A missing jwt is reported at pin time.
func NewPinataPinner(apiURL, gatewayURL, jwt string, timeout time.Duration, log *slog.Logger) *PinataPinner {
	if apiURL == "" {
		apiURL = DefaultPinataAPI
	}
	if gatewayURL == "" {
		gatewayURL = DefaultPinataGateway
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	apiURL = strings.TrimSuffix(apiURL, "/")
	gatewayURL = strings.TrimSuffix(gatewayURL, "/")

	uri := fmt.Sprintf("pinata://%s/?gateway=%s", strings.TrimPrefix(strings.TrimPrefix(apiURL, "https://"), "http://"), url.QueryEscape(gatewayURL))
	if jwt != "" {
		uri += "&jwt=***"
	}

	return &PinataPinner{
		apiURL:      apiURL,
		gatewayURL:  gatewayURL,
		jwt:         jwt,
		client:      &http.Client{Timeout: timeout},
		log:         log,
		locationURI: uri,
	}
}

// Pin uploads payload as a file named name and returns the CID reported by Pinata.
func (b *PinataPinner) Pin(ctx context.Context, payload []byte, name string) (interfaces.ContentID, error) {
	if b.jwt == "" {
		return "", fmt.Errorf("pinata: no JWT configured (set jwt= or %s)", PinataJWTEnv)
	}
	if name == "" {
		name = "payload.json"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart file: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return "", fmt.Errorf("failed to write multipart file: %w", err)
	}

	metadata, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", err
	}
	if err := writer.WriteField("pinataMetadata", string(metadata)); err != nil {
		return "", fmt.Errorf("failed to write pin metadata: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL+"/pinning/pinFileToIPFS", body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+b.jwt)

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Warn("Pinata unreachable", "err", err)
		return "", fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", b.statusError("pin", resp)
	}

	var result pinataPinResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode pin response: %w", err)
	}

	id, err := interfaces.ParseContentID(result.IpfsHash)
	if err != nil {
		return "", fmt.Errorf("pinata returned %w", err)
	}

	b.log.Debug("Pinned content to Pinata",
		slog.String("cid", id.String()),
		slog.String("name", name),
		slog.Int64("size", result.PinSize))

	return id, nil
}

// Fetch reads content from the configured gateway.
func (b *PinataPinner) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	if _, err := interfaces.ParseContentID(id.String()); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.gatewayURL+"/ipfs/"+id.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Warn("Gateway unreachable", "err", err, slog.String("cid", id.String()))
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, interfaces.ErrContentNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, b.statusError("fetch", resp)
	}

	data, err := readContent(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	b.log.Debug("Fetched content from gateway",
		slog.String("cid", id.String()),
		slog.Int("size", len(data)))

	return data, nil
}

// Available reports whether Pin can succeed: a JWT is configured and the
// Pinata authentication endpoint accepts it. A successful check is reused for
// authCacheTTL. Gateway reads need no JWT and do not consult Available.
func (b *PinataPinner) Available(ctx context.Context) bool {
	if b.jwt == "" {
		return false
	}
	if time.Since(b.authOK.Load()) < authCacheTTL {
		return true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.apiURL+"/data/testAuthentication", nil)
	if err != nil {
		b.log.Debug("Failed to create request", "err", err)
		return false
	}
	req.Header.Set("Authorization", "Bearer "+b.jwt)

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Debug("Pinata backend unavailable", "err", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.log.Debug("Pinata backend unavailable", slog.String("status", resp.Status))
		return false
	}
	b.authOK.Store(time.Now())
	return true
}

// Name returns a unique identifier for this pinning backend.
func (b *PinataPinner) Name() string {
	return "pinata"
}

// LocationURI returns the URI that identifies this backend, with the JWT masked.
func (b *PinataPinner) LocationURI() string {
	return b.locationURI
}

func (b *PinataPinner) statusError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(snippet))

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: pinata %s returned %s: %s", interfaces.ErrBackendUnavailable, op, resp.Status, msg)
	default:
		return fmt.Errorf("pinata %s returned %s: %s", op, resp.Status, msg)
	}
}
