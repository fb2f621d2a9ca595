// Package swarm fetches and uploads trace documents through Swarm's bzz HTTP
// API. Reads go through a public gateway, writes through a Bee node that owns
// a postage batch.
package swarm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
)

const postageBatchHeader = "swarm-postage-batch-id"

type Client struct {
	gatewayURL     string
	beeURL         string
	postageBatchID string
	httpClient     *http.Client
}

type Config struct {
	GatewayURL     string
	BeeURL         string
	PostageBatchID string
	Timeout        time.Duration
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		gatewayURL:     strings.TrimRight(cfg.GatewayURL, "/"),
		beeURL:         strings.TrimRight(cfg.BeeURL, "/"),
		postageBatchID: cfg.PostageBatchID,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

// Fetch downloads one trace document by its content hash and decodes it as a
// JSON object. A gateway 404 maps to ErrTraceNotFound.
func (c *Client) Fetch(ctx context.Context, hash string) (domain.TraceDocument, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, fmt.Errorf("swarm fetch: %w: empty hash", domain.ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gatewayURL+"/bzz/"+hash, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swarm fetch %s: %w", hash, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("swarm fetch %s: %w", hash, domain.ErrTraceNotFound)
	}
	if resp.StatusCode >= 300 {
		return nil, formatSwarmHTTPError("fetch", resp)
	}

	var doc domain.TraceDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode trace document %s: %w", hash, err)
	}
	return doc, nil
}

// Upload stores the payload on the Bee node and returns the content hash.
func (c *Client) Upload(ctx context.Context, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("swarm upload: %w: empty payload", domain.ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.beeURL+"/bzz", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(postageBatchHeader, c.postageBatchID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("swarm upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", formatSwarmHTTPError("upload", resp)
	}

	var result struct {
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if strings.TrimSpace(result.Reference) == "" {
		return "", fmt.Errorf("swarm upload: empty reference in response")
	}
	return result.Reference, nil
}

func formatSwarmHTTPError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("swarm %s status: %s", operation, resp.Status)
	}
	return fmt.Errorf("swarm %s status: %s: %s", operation, resp.Status, msg)
}
