// internal/common/pinecone/client.go
// Package pinecone queries a Pinecone serverless index over its REST data plane.
package pinecone

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"ticket-responder/internal/common/config"
	apphttp "ticket-responder/internal/common/http"
	"ticket-responder/internal/models"
)

const (
	defaultControllerURL = "https://api.pinecone.io"
	defaultAPIVersion    = "2024-07"
)

type Client struct {
	apiKey        string
	apiVersion    string
	indexName     string
	controllerURL string
	http          *apphttp.Client

	mu   sync.Mutex
	host string
}

func NewClient(cfg *config.PineconeConfig, timeout time.Duration, maxRetries int) *Client {
	controller := cfg.ControllerURL
	if controller == "" {
		controller = defaultControllerURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	return &Client{
		apiKey:        cfg.APIKey,
		apiVersion:    version,
		indexName:     cfg.IndexName,
		controllerURL: strings.TrimRight(controller, "/"),
		host:          normalizeHost(cfg.Host),
		http:          apphttp.NewClient(timeout, maxRetries),
	}
}

func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Api-Key":                c.apiKey,
		"X-Pinecone-API-Version": c.apiVersion,
	}
}

type describeIndexResponse struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// Host returns the data plane host, resolving it through the control plane on first use.
func (c *Client) Host(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.host != "" {
		return c.host, nil
	}

	var out describeIndexResponse
	u := c.controllerURL + "/indexes/" + url.PathEscape(c.indexName)
	if err := c.http.DoJSON(ctx, "GET", u, c.headers(), nil, &out); err != nil {
		return "", fmt.Errorf("describe index %s: %w", c.indexName, err)
	}
	if out.Host == "" {
		return "", fmt.Errorf("describe index %s: no host in response", c.indexName)
	}
	c.host = normalizeHost(out.Host)
	return c.host, nil
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace,omitempty"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

type queryResponse struct {
	Matches []struct {
		ID       string                 `json:"id"`
		Score    float64                `json:"score"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"matches"`
	Namespace string `json:"namespace"`
}

// Query returns the topK nearest chunks in namespace, in rank order starting at 1.
// Metadata fields that are absent come back empty; callers decide what is usable.
func (c *Client) Query(ctx context.Context, vector []float32, namespace string, topK int) ([]models.ReferenceChunk, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return nil, err
	}

	req := queryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       namespace,
		IncludeMetadata: true,
	}
	var out queryResponse
	if err := c.http.DoJSON(ctx, "POST", host+"/query", c.headers(), req, &out); err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}

	chunks := make([]models.ReferenceChunk, 0, len(out.Matches))
	for i, m := range out.Matches {
		chunks = append(chunks, models.ReferenceChunk{
			ID:     m.ID,
			Title:  stringField(m.Metadata, "title"),
			Text:   stringField(m.Metadata, "text"),
			Source: stringField(m.Metadata, "source"),
			Score:  m.Score,
			Rank:   i + 1,
		})
	}
	return chunks, nil
}

func stringField(md map[string]interface{}, key string) string {
	v, ok := md[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
