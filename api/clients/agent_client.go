package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/divs-identity/divs-agent/api"
	"github.com/divs-identity/divs-agent/cryptoutils"
	"github.com/divs-identity/divs-agent/interfaces"
	"github.com/divs-identity/divs-agent/workflow"
)

// DefaultTimeout covers an approval, which waits for two confirmations.
const DefaultTimeout = 5 * time.Minute

// APIError is a non-2xx response of the agent.
type APIError struct {
	StatusCode int
	Response   api.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Response.Step != "" {
		return fmt.Sprintf("agent returned %d at step %s: %s", e.StatusCode, e.Response.Step, e.Response.Error)
	}
	return fmt.Sprintf("agent returned %d: %s", e.StatusCode, e.Response.Error)
}

// AgentClient talks to a running identity agent.
type AgentClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAgentClient creates a client for the agent at baseURL
// (e.g. "http://127.0.0.1:8080").
func NewAgentClient(baseURL string, timeout ...time.Duration) *AgentClient {
	clientTimeout := DefaultTimeout
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &AgentClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// OwnerRequests lists the requests addressed to the agent's wallet.
func (c *AgentClient) OwnerRequests(ctx context.Context) (*workflow.Snapshot, error) {
	var snapshot workflow.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/owner/requests", nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Approve approves a request and waits for the outcome.
func (c *AgentClient) Approve(ctx context.Context, id interfaces.RequestID) (*workflow.Outcome, error) {
	var outcome workflow.Outcome
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/owner/requests/%s/approve", id), nil, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// Reject rejects a request.
func (c *AgentClient) Reject(ctx context.Context, id interfaces.RequestID) (*workflow.Outcome, error) {
	var outcome workflow.Outcome
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/owner/requests/%s/reject", id), nil, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// Requests lists requests made by the agent's wallet; status may be empty.
func (c *AgentClient) Requests(ctx context.Context, status string) (*api.RequestsResponse, error) {
	path := "/api/requester/requests"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var resp api.RequestsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateRequest files a request for fields of owner's identity.
func (c *AgentClient) CreateRequest(ctx context.Context, owner ethcommon.Address, fields []string) (*api.CreateRequestResponse, error) {
	var resp api.CreateRequestResponse
	body := api.CreateRequestBody{Owner: owner, Fields: fields}
	if err := c.do(ctx, http.MethodPost, "/api/requester/requests", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequestData returns the data shared for an approved request.
func (c *AgentClient) RequestData(ctx context.Context, id interfaces.RequestID) (*workflow.SharedData, error) {
	var data workflow.SharedData
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/requester/requests/%s/data", id), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Fields returns the selectable field catalogue.
func (c *AgentClient) Fields(ctx context.Context) ([]workflow.Field, error) {
	var resp struct {
		Fields []workflow.Field `json:"fields"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/fields", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Fields, nil
}

// Profile returns the agent wallet's registry entry.
func (c *AgentClient) Profile(ctx context.Context) (*interfaces.UserProfile, error) {
	var profile interfaces.UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/identity", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Record returns the agent wallet's decrypted identity record.
func (c *AgentClient) Record(ctx context.Context) (cryptoutils.IdentityData, error) {
	var record cryptoutils.IdentityData
	if err := c.do(ctx, http.MethodGet, "/api/identity/record", nil, &record); err != nil {
		return nil, err
	}
	return record, nil
}

// Register registers data as the agent wallet's identity record.
func (c *AgentClient) Register(ctx context.Context, data cryptoutils.IdentityData) (*workflow.Registration, error) {
	var reg workflow.Registration
	if err := c.do(ctx, http.MethodPost, "/api/identity", data, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Update replaces the agent wallet's identity record.
func (c *AgentClient) Update(ctx context.Context, data cryptoutils.IdentityData) (*workflow.Registration, error) {
	var reg workflow.Registration
	if err := c.do(ctx, http.MethodPut, "/api/identity", data, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (c *AgentClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach agent: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, &apiErr.Response); err != nil || apiErr.Response.Error == "" {
			apiErr.Response.Error = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	dec := json.NewDecoder(bytes.NewReader(respBody))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}
