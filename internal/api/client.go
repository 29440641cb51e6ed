package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/handiism/cog-bulk/internal/logger"
	"github.com/handiism/cog-bulk/internal/model"
)

const (
	epMy         = "my"
	epMyToken    = "token"
	epMyUsername = "username"
	epMyUserUUID = "useruuid"
	epContents   = "contents"
	epUsernames  = "usernames"

	keyToken    = "token"
	keyUsername = "username"
	keyUserUUID = "useruuid"

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 512
)

// Config holds connection parameters.
type Config struct {
	URL      string
	Token    string
	Username string
	Password string

	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	UserAgent string
	Logger    logger.Logger
}

// Client talks to the remote service. It is safe for concurrent use once
// authenticated.
type Client struct {
	baseURL   string
	userAgent string
	http      *retryablehttp.Client
	log       logger.Logger

	mu       sync.RWMutex
	token    string
	username string
	password string
}

// NewClient creates a client. Call Authenticate before any resource call.
func NewClient(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = cfg.Timeout
	if cfg.Timeout == 0 {
		rc.HTTPClient.Timeout = 60 * time.Second
	}
	rc.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	rc.Logger = logger.Leveled{Logger: log}
	// hand the final response back so it can become a RemoteError
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "cog-bulk"
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		userAgent: userAgent,
		http:      rc,
		log:       log,
		token:     cfg.Token,
		username:  cfg.Username,
		password:  cfg.Password,
	}
}

// Authenticate exchanges the configured credentials for a token. A
// configured token is verified the same way.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.RLock()
	token, username, password := c.token, c.username, c.password
	c.mu.RUnlock()

	var user, pass string
	switch {
	case token != "":
		user = token
	case username != "" && password != "":
		user, pass = username, password
	default:
		return fmt.Errorf("%w: a token or a username and password are required", ErrUnauthenticated)
	}

	body, err := c.getJSONAs(ctx, user, pass, epMy+"/"+epMyToken)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	var tok string
	if err := decodeKey(body, keyToken, &tok); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
	c.log.Debug("authenticated", zap.String("url", c.baseURL))
	return nil
}

// Token returns the current token, empty before Authenticate.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// URL returns the service base URL.
func (c *Client) URL() string {
	return c.baseURL
}

// Username returns the name of the authenticated user.
func (c *Client) Username(ctx context.Context) (string, error) {
	body, err := c.getJSON(ctx, epMy+"/"+epMyUsername)
	if err != nil {
		return "", err
	}
	var name string
	return name, decodeKey(body, keyUsername, &name)
}

// UserID returns the identifier of the authenticated user.
func (c *Client) UserID(ctx context.Context) (model.ID, error) {
	body, err := c.getJSON(ctx, epMy+"/"+epMyUserUUID)
	if err != nil {
		return model.NilID, err
	}
	var id model.ID
	return id, decodeKey(body, keyUserUUID, &id)
}

func (c *Client) endpoint(ep string) string {
	return fmt.Sprintf("%s/%s/", c.baseURL, strings.Trim(ep, "/"))
}

func (c *Client) newRequest(ctx context.Context, method, ep string) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.endpoint(ep), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do performs an authenticated call. A nil error guarantees a 2xx response
// whose body the caller must close.
func (c *Client) do(ctx context.Context, method, ep string) (*http.Response, error) {
	token := c.Token()
	if token == "" {
		return nil, ErrUnauthenticated
	}
	return c.doAs(ctx, token, "", method, ep)
}

func (c *Client) doAs(ctx context.Context, user, pass, method, ep string) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, ep)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(user, pass)

	// the retry policy may return the final response together with an error
	resp, err := c.http.Do(req)
	if resp == nil {
		return nil, &RemoteError{Method: method, URL: req.URL.String(), Cause: err}
	}

	if err != nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RemoteError{
			Method:     method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
			Cause:      err,
		}
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, ep string) (map[string]json.RawMessage, error) {
	return c.callJSON(ctx, http.MethodGet, ep)
}

func (c *Client) getJSONAs(ctx context.Context, user, pass, ep string) (map[string]json.RawMessage, error) {
	resp, err := c.doAs(ctx, user, pass, http.MethodGet, ep)
	if err != nil {
		return nil, err
	}
	return decodeBody(resp)
}

func (c *Client) callJSON(ctx context.Context, method, ep string) (map[string]json.RawMessage, error) {
	resp, err := c.do(ctx, method, ep)
	if err != nil {
		return nil, err
	}
	return decodeBody(resp)
}

func decodeBody(resp *http.Response) (map[string]json.RawMessage, error) {
	defer resp.Body.Close()
	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", resp.Request.URL, err)
	}
	return body, nil
}

func decodeKey(body map[string]json.RawMessage, key string, dst any) error {
	raw, ok := body[key]
	if !ok {
		return fmt.Errorf("response is missing key %q", key)
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}
