package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"marginalia/internal/domain"
)

// Client talks to the annotation store's REST API. One Client serves all
// annotation kinds; Segments/Highlights/Memos return kind-bound views
// satisfying AnnotationGateway.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Segments() AnnotationGateway   { return &kindGateway{c: c, path: "segments"} }
func (c *Client) Highlights() AnnotationGateway { return &kindGateway{c: c, path: "highlights"} }
func (c *Client) Memos() AnnotationGateway      { return &kindGateway{c: c, path: "memos"} }

type kindGateway struct {
	c    *Client
	path string
}

func (g *kindGateway) Create(ctx context.Context, req domain.CreateAnnotationRequest) (*ConfirmedAnnotation, error) {
	var out ConfirmedAnnotation
	if err := g.c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/%s", g.path), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *kindGateway) Update(ctx context.Context, id string, patch domain.AnnotationPatch) (*ConfirmedAnnotation, error) {
	var out ConfirmedAnnotation
	if err := g.c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/%s/%s", g.path, id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *kindGateway) Delete(ctx context.Context, id string) (int64, error) {
	var out versionPayload
	if err := g.c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/%s/%s", g.path, id), nil, &out); err != nil {
		return 0, err
	}
	return out.SyncVersion, nil
}

func (g *kindGateway) DeleteBulk(ctx context.Context, ids []string) (int64, error) {
	var out versionPayload
	body := map[string][]string{"ids": ids}
	if err := g.c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/%s/bulk-delete", g.path), body, &out); err != nil {
		return 0, err
	}
	return out.SyncVersion, nil
}

// Codes returns the vocabulary gateway.
func (c *Client) Codes() CodeGateway { return &codeGateway{c: c} }

type codeGateway struct {
	c *Client
}

func (g *codeGateway) Create(ctx context.Context, req domain.CreateCodeRequest) (*ConfirmedCode, error) {
	var out ConfirmedCode
	if err := g.c.do(ctx, http.MethodPost, "/api/v1/codes", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *codeGateway) Update(ctx context.Context, id string, patch domain.CodePatch) (*ConfirmedCode, error) {
	var out ConfirmedCode
	if err := g.c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/codes/%s", id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *codeGateway) Delete(ctx context.Context, id string) (int64, error) {
	var out versionPayload
	if err := g.c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/codes/%s", id), nil, &out); err != nil {
		return 0, err
	}
	return out.SyncVersion, nil
}

func (c *Client) Fetch(ctx context.Context, projectID string) (*domain.Project, error) {
	var out domain.Project
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/projects/%s", projectID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchMeta(ctx context.Context, projectID string) (*domain.ProjectMeta, error) {
	var out domain.ProjectMeta
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/projects/%s/meta", projectID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type versionPayload struct {
	SyncVersion int64 `json:"sync_version"`
}

// envelope mirrors the store's pkg/response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("gateway: %s %s: %s", method, path, msg)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("gateway: decode payload: %w", err)
		}
	}
	return nil
}
