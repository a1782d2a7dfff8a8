// Package twitch implements livehook.HubClient and livehook.Catalog against
// the Twitch Helix API and its WebSub hub.
//
// Requests go through an *http.Client supplied by the caller. In production
// that client comes from NewCredentialsHTTPClient, which attaches an app
// access token obtained with the OAuth2 client-credentials grant.
package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/model"
)

const (
	// DefaultAPIURL is the Helix REST base URL.
	DefaultAPIURL = "https://api.twitch.tv/helix"

	// DefaultHubURL is the legacy Helix WebSub hub.
	DefaultHubURL = "https://api.twitch.tv/helix/webhooks/hub"

	// DefaultTokenURL issues app access tokens.
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

	// DefaultRateLimit is requests per second across every endpoint.
	DefaultRateLimit = 10

	maxErrorBody = 512
)

// Client talks to Helix. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	clientID   string
	apiURL     string
	hubURL     string
	limiter    *rate.Limiter
	logger     livehook.Logger
}

// Option configures a Client.
type Option func(*Client) error

// New creates a Client for the given application client ID.
func New(clientID string, opts ...Option) (*Client, error) {
	if clientID == "" {
		return nil, livehook.NewError(livehook.ErrCodeConfiguration, "twitch client ID is required")
	}

	c := &Client{
		httpClient: http.DefaultClient,
		clientID:   clientID,
		apiURL:     DefaultAPIURL,
		hubURL:     DefaultHubURL,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     &livehook.NoopLogger{},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, livehook.NewErrorWithCause(livehook.ErrCodeConfiguration, "failed to apply twitch client option", err)
		}
	}

	c.logger = c.logger.With("component", "twitch")
	return c, nil
}

// WithHTTPClient sets the HTTP client. It should add the Authorization header.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		if httpClient == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		c.httpClient = httpClient
		return nil
	}
}

// WithAPIURL overrides the Helix REST base URL.
func WithAPIURL(apiURL string) Option {
	return func(c *Client) error {
		if _, err := url.ParseRequestURI(apiURL); err != nil {
			return fmt.Errorf("invalid api URL: %w", err)
		}
		c.apiURL = strings.TrimRight(apiURL, "/")
		return nil
	}
}

// WithHubURL overrides the hub endpoint.
func WithHubURL(hubURL string) Option {
	return func(c *Client) error {
		if _, err := url.ParseRequestURI(hubURL); err != nil {
			return fmt.Errorf("invalid hub URL: %w", err)
		}
		c.hubURL = hubURL
		return nil
	}
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(perSecond int) Option {
	return func(c *Client) error {
		if perSecond <= 0 {
			return fmt.Errorf("rate limit must be > 0, got %d", perSecond)
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		return nil
	}
}

// WithLogger sets the logger instance.
func WithLogger(logger livehook.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// NewCredentialsHTTPClient returns an HTTP client that fetches and refreshes
// an app access token with the client-credentials grant.
func NewCredentialsHTTPClient(ctx context.Context, clientID, clientSecret, tokenURL string) *http.Client {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cfg.Client(ctx)
}

// Subscribe posts a subscribe request to the hub.
func (c *Client) Subscribe(ctx context.Context, req model.HubRequest) (bool, error) {
	return c.postHub(ctx, req)
}

// Unsubscribe posts an unsubscribe request to the hub.
func (c *Client) Unsubscribe(ctx context.Context, req model.HubRequest) (bool, error) {
	return c.postHub(ctx, req)
}

// postHub reports accepted=true only for 202 Accepted. Any other status is a
// rejection, not an error; err is reserved for transport failures.
func (c *Client) postHub(ctx context.Context, req model.HubRequest) (bool, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return false, fmt.Errorf("encode hub request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hubURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build hub request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warnf("Hub answered %d to %s: topic=%s, body=%s", resp.StatusCode, req.Mode, req.Topic, strings.TrimSpace(string(detail)))
		return false, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debugf("Hub accepted %s: topic=%s, lease_seconds=%d", req.Mode, req.Topic, req.LeaseSeconds)
	return true, nil
}

type helixUser struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

type helixGame struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type helixPage[T any] struct {
	Data []T `json:"data"`
}

// LookupUser resolves a login name to its user ID.
func (c *Client) LookupUser(ctx context.Context, name string) (string, error) {
	user, err := c.user(ctx, name)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// ProfileImageURL returns the avatar of a user by login name.
func (c *Client) ProfileImageURL(ctx context.Context, login string) (string, error) {
	user, err := c.user(ctx, login)
	if err != nil {
		return "", err
	}
	return user.ProfileImageURL, nil
}

// GameName returns the name of a game by ID.
func (c *Client) GameName(ctx context.Context, gameID string) (string, error) {
	var page helixPage[helixGame]
	if err := c.get(ctx, "/games", url.Values{"id": {gameID}}, &page); err != nil {
		return "", err
	}
	if len(page.Data) == 0 {
		return "", livehook.NewError(livehook.ErrCodeNotFound, fmt.Sprintf("game %s not found", gameID))
	}
	return page.Data[0].Name, nil
}

func (c *Client) user(ctx context.Context, login string) (helixUser, error) {
	var page helixPage[helixUser]
	if err := c.get(ctx, "/users", url.Values{"login": {strings.ToLower(login)}}, &page); err != nil {
		return helixUser{}, err
	}
	if len(page.Data) == 0 {
		return helixUser{}, livehook.NewError(livehook.ErrCodeNotFound, fmt.Sprintf("twitch user %s not found", login))
	}
	return page.Data[0], nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// do waits for the rate limiter, then sends the request with the Client-ID header.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	req.Header.Set("Client-ID", c.clientID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}
