// Package graph is a minimal Microsoft Graph client used to hydrate a user
// profile after authentication. It is a plain downstream call; nothing in the
// session protocol depends on it.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://graph.microsoft.com/v1.0"
	defaultTimeout = 10 * time.Second
)

// Me is the provider's profile payload for the token's bearer.
type Me struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	JobTitle          string `json:"jobTitle"`
	Mail              string `json:"mail"`
	OfficeLocation    string `json:"officeLocation"`
	PreferredLanguage string `json:"preferredLanguage"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Client issues bearer-authenticated requests against the Graph API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Graph endpoint, typically for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Graph client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Me fetches the profile of the access token's bearer.
func (c *Client) Me(ctx context.Context, accessToken string) (*Me, error) {
	var me Me
	if err := c.get(ctx, accessToken, "me", &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *Client) get(ctx context.Context, accessToken, resource string, out any) error {
	url := c.baseURL + "/" + resource
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("[graph get] build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	log.Debug().Str("url", url).Msg("graph request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("[graph get] %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("[graph get] %s: status %d: %s", resource, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("[graph get] %s: decode: %w", resource, err)
	}
	return nil
}
