package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/kquery/internal/filter"
	"github.com/alfredjeanlab/kquery/internal/model"
)

// HTTPClient talks to the kquery HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	principal  Principal
	httpClient *http.Client
}

var _ Searcher = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// As sets the principal sent with every request.
func (c *HTTPClient) As(p Principal) *HTTPClient {
	c.principal = p
	return c
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// Search runs req against entity on the server.
func (c *HTTPClient) Search(ctx context.Context, entity string, req *filter.Request) (*SearchResponse, error) {
	if req == nil {
		req = &filter.Request{}
	}
	var resp SearchResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/search/"+url.PathEscape(entity), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Beads ---

func (c *HTTPClient) CreateBead(ctx context.Context, req *CreateBeadRequest) (*model.Bead, error) {
	var bead model.Bead
	if err := c.doJSON(ctx, http.MethodPost, "/v1/beads", req, &bead); err != nil {
		return nil, err
	}
	return &bead, nil
}

func (c *HTTPClient) GetBead(ctx context.Context, id string) (*model.Bead, error) {
	var bead model.Bead
	if err := c.doJSON(ctx, http.MethodGet, "/v1/beads/"+url.PathEscape(id), nil, &bead); err != nil {
		return nil, err
	}
	return &bead, nil
}

func (c *HTTPClient) UpdateBead(ctx context.Context, id string, req *UpdateBeadRequest) (*model.Bead, error) {
	var bead model.Bead
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/beads/"+url.PathEscape(id), req, &bead); err != nil {
		return nil, err
	}
	return &bead, nil
}

func (c *HTTPClient) DeleteBead(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/beads/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) AddComment(ctx context.Context, beadID, text string) (*model.Comment, error) {
	var comment model.Comment
	body := map[string]string{"text": text}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/beads/"+url.PathEscape(beadID)+"/comments", body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *HTTPClient) GetHistory(ctx context.Context, beadID string) ([]*model.HistoryEntry, error) {
	var resp struct {
		History []*model.HistoryEntry `json:"history"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/beads/"+url.PathEscape(beadID)+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// Health returns the server's reported status.
func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.principal.User != "" {
		req.Header.Set("X-Kq-User", c.principal.User)
		if len(c.principal.Roles) > 0 {
			req.Header.Set("X-Kq-Roles", strings.Join(c.principal.Roles, ","))
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
