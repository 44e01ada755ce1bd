// Package client talks to the feed backend over HTTP. *Client satisfies
// feed.ListEndpoint[models.Activity] and feed.ReactionEndpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/HammerMeetNail/feedsync/internal/feed"
	"github.com/HammerMeetNail/feedsync/internal/models"
)

var (
	_ feed.ListEndpoint[models.Activity] = (*Client)(nil)
	_ feed.ReactionEndpoint              = (*Client)(nil)
)

// UserIDHeader identifies the caller when the server runs without OIDC.
const UserIDHeader = "X-User-ID"

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

type Config struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// UserID is sent in UserIDHeader when set.
	UserID  string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(ctx context.Context, cfg Config) *Client {
	httpClient := &http.Client{}
	if cfg.Token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.Token,
			TokenType:   "Bearer",
		}))
	}
	if cfg.UserID != "" {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		httpClient.Transport = &headerTransport{base: base, key: UserIDHeader, value: cfg.UserID}
	}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	return NewWithHTTPClient(cfg.BaseURL, httpClient)
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) List(ctx context.Context, page, limit int) (models.ListResponse[models.Activity], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out models.ListResponse[models.Activity]
	if err := c.do(ctx, http.MethodGet, "/api/items?"+q.Encode(), nil, &out); err != nil {
		return models.ListResponse[models.Activity]{}, fmt.Errorf("listing page %d: %w", page, err)
	}
	return out, nil
}

func (c *Client) AddReaction(ctx context.Context, itemID, kind string) (models.UserReaction, error) {
	var out models.UserReaction
	req := models.AddReactionRequest{ItemID: itemID, Kind: kind}
	if err := c.do(ctx, http.MethodPost, "/api/reactions", req, &out); err != nil {
		return models.UserReaction{}, fmt.Errorf("adding reaction: %w", err)
	}
	return out, nil
}

func (c *Client) RemoveReaction(ctx context.Context, reactionID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/reactions/"+url.PathEscape(reactionID), nil, nil); err != nil {
		return fmt.Errorf("removing reaction: %w", err)
	}
	return nil
}

func (c *Client) AllowedKinds(ctx context.Context) ([]string, error) {
	var out struct {
		Kinds []string `json:"kinds"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/reactions/kinds", nil, &out); err != nil {
		return nil, fmt.Errorf("getting reaction kinds: %w", err)
	}
	return out.Kinds, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

type headerTransport struct {
	base  http.RoundTripper
	key   string
	value string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set(t.key, t.value)
	return t.base.RoundTrip(clone)
}
