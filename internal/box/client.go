package box

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mwillis/loanpulse/internal/config"
)

const (
	defaultAPIBase  = "https://api.box.com/2.0"
	defaultTokenURL = "https://api.box.com/oauth2/token"
)

// User is the Box account the client is acting as.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Login string `json:"login"`
}

// Client talks to the Box API as a service account impersonating a user.
type Client struct {
	creds  *config.BoxCredentials
	userID string
	client *http.Client

	apiBase  string
	tokenURL string

	token       string
	tokenExpiry time.Time
}

// Option adjusts a Client; used by tests to point at a local server.
type Option func(*Client)

// WithBaseURLs overrides the Box API and token endpoints.
func WithBaseURLs(apiBase, tokenURL string) Option {
	return func(c *Client) {
		c.apiBase = apiBase
		c.tokenURL = tokenURL
	}
}

// NewClient creates a Box client acting as the given user.
func NewClient(creds *config.BoxCredentials, userID string, opts ...Option) *Client {
	c := &Client{
		creds:    creds,
		userID:   userID,
		client:   &http.Client{Timeout: 60 * time.Second},
		apiBase:  defaultAPIBase,
		tokenURL: defaultTokenURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentUser returns the account the client is authenticated as.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := c.get(ctx, c.apiBase+"/users/me")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	return &user, nil
}

// DownloadFile fetches a file's content by ID. Box answers with a redirect to
// a pre-signed download URL, which the HTTP client follows.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/files/%s/content", c.apiBase, fileID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", fileID, err)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Box API error %d for %s: %s", resp.StatusCode, url, string(body))
	}
	return resp, nil
}
