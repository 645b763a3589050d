// internal/common/jira/client.go
// Package jira is the ticket source and reply publisher backed by the Jira Cloud REST API.
package jira

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ticket-responder/internal/common/config"
	apphttp "ticket-responder/internal/common/http"
	"ticket-responder/internal/common/logger"
)

const defaultPageSize = 50

type Client struct {
	baseURL    string
	auth       string
	userAgent  string
	pageSize   int
	postFormat string
	search     *apphttp.Client
	publish    *apphttp.Client
	logger     logger.Logger
}

// NewClient builds a client from the jira config section. Searches are retried on
// transient failures; posts are not, so a reply is never published twice.
func NewClient(cfg *config.JiraConfig, timeout time.Duration, log logger.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.Server, "/"),
		auth:       authorization(cfg.Email, cfg.APIToken),
		userAgent:  cfg.UserAgent,
		pageSize:   pageSize,
		postFormat: cfg.PostFormat,
		search:     apphttp.NewClient(timeout, cfg.MaxRetries),
		publish:    apphttp.NewClient(timeout, 0),
		logger:     log.With(map[string]interface{}{"component": "jira"}),
	}
}

// authorization uses basic auth for Cloud API tokens and a bearer token when no email is set.
func authorization(email, token string) string {
	if email == "" {
		return "Bearer " + token
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+token))
}

func (c *Client) headers() map[string]string {
	h := map[string]string{"Authorization": c.auth}
	if c.userAgent != "" {
		h["User-Agent"] = c.userAgent
	}
	return h
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

type myselfResponse struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// Myself returns the display name of the authenticated account.
func (c *Client) Myself(ctx context.Context) (string, error) {
	var out myselfResponse
	if err := c.search.DoJSON(ctx, "GET", c.url("/rest/api/2/myself", nil), c.headers(), nil, &out); err != nil {
		return "", fmt.Errorf("jira myself: %w", err)
	}
	return out.DisplayName, nil
}
