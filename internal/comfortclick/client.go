package comfortclick

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// defaultTimeout bounds one round trip when Config.Timeout is zero.
	defaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of a failed response is kept in a TransportError.
	maxErrorBody = 4096

	statusOK = "OK"
)

// Logger is the logging surface the client needs.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the immutable session credentials.
type Config struct {
	// Host is the panel base URL including scheme, e.g. "https://192.168.1.20".
	Host     string
	Username string
	Password string
	Timeout  time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default insecure HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides the time source used for the poll cache buster.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client is a ComfortClick session client.
//
// Thread Safety:
//   - Safe for concurrent use. Callers are expected to serialise Poll
//     themselves; the coordinator guarantees at most one poll in flight.
type Client struct {
	host     string
	username string
	password string

	http   *http.Client
	logger Logger
	now    func() time.Time
	cache  *Cache

	mu         sync.RWMutex
	authorized http.Header
}

// NewClient creates a client for one panel. It does not touch the network.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		host:     strings.TrimRight(cfg.Host, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				// #nosec G402 -- the panel only serves a self-signed certificate
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		now:   time.Now,
		cache: NewCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache returns the client's state cache.
func (c *Client) Cache() *Cache {
	return c.cache
}

// defaultHeaders are sent on every request; the login request sends only these.
func defaultHeaders() http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	h.Set("Accept-Language", "en-US,en;q=0.9,et;q=0.8,ru;q=0.7,zh-CN;q=0.6,zh;q=0.5")
	h.Set("Content-Type", "application/json; charset=UTF-8")
	return h
}

type loginRequest struct {
	UserName   string `json:"UserName"`
	Password   string `json:"Password"`
	DeviceName string `json:"DeviceName"`
	OS         string `json:"OS"`
	PushToken  string `json:"PushToken"`
	RememberMe bool   `json:"RememberMe"`
}

type loginResponse struct {
	Status string `json:"Status"`
}

// Connect logs in and stores the authorized headers for later calls.
// Calling it again re-authenticates and replaces the stored headers.
//
// Returns:
//   - *TransportError: login answered with a status other than 200
//   - *AuthorizationError: logical status not "OK" or no session cookie
func (c *Client) Connect(ctx context.Context) error {
	c.logInfo("connecting to panel", "host", c.host)

	body := loginRequest{UserName: c.username, Password: c.password}
	resp, err := c.do(ctx, "login", http.MethodPost, "/Login", body, defaultHeaders())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return fmt.Errorf("comfortclick: decode login response: %w", err)
	}
	if login.Status != statusOK {
		return &AuthorizationError{Reason: "login status not ok", Status: login.Status}
	}

	cookie := resp.Header.Get("Set-Cookie")
	if cookie == "" {
		return &AuthorizationError{Reason: "no session token in response cookie"}
	}
	token := strings.Split(strings.ReplaceAll(cookie, "Token=", ""), ";")[0]

	headers := defaultHeaders()
	headers.Set("Cookie", "Token="+token+"; CurrentPath=")

	c.mu.Lock()
	c.authorized = headers
	c.mu.Unlock()

	c.logInfo("connected to panel")
	return nil
}

type panelResponse struct {
	ThemeObject struct {
		ValueUpdates []Record `json:"ValueUpdates"`
	} `json:"ThemeObject"`
}

// InitializeState fetches the full panel snapshot and replaces the cache.
// It must follow Connect; without a session the panel rejects the request.
func (c *Client) InitializeState(ctx context.Context) error {
	c.logInfo("loading initial panel state")

	resp, err := c.do(ctx, "get panel", http.MethodPost, "/GetPanel", map[string]string{"Path": ""}, c.sessionHeaders())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var panel panelResponse
	if err := json.NewDecoder(resp.Body).Decode(&panel); err != nil {
		return fmt.Errorf("comfortclick: decode panel snapshot: %w", err)
	}

	c.cache.Replace(panel.ThemeObject.ValueUpdates)
	c.logDebug("initial panel state loaded", "entries", len(panel.ThemeObject.ValueUpdates))
	return nil
}

type propertyUpdate struct {
	DeviceName   string `json:"DeviceName"`
	PropertyName string `json:"PropertyName"`
	Value        any    `json:"Value"`
}

type clientDataResponse struct {
	PropertyUpdates []propertyUpdate `json:"PropertyUpdates"`
}

// Poll fetches incremental updates and applies every "Value" property update
// to the first matching cache record. Names not already cached are dropped.
func (c *Client) Poll(ctx context.Context) error {
	path := "/GetClientData?_=" + strconv.FormatInt(c.now().Unix(), 10)

	resp, err := c.do(ctx, "poll", http.MethodPost, path, nil, c.sessionHeaders())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var data clientDataResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("comfortclick: decode client data: %w", err)
	}

	for _, u := range data.PropertyUpdates {
		if u.PropertyName != "Value" {
			continue
		}
		if c.cache.Update(u.DeviceName, u.Value) {
			c.logDebug("cached value updated", "name", u.DeviceName, "value", u.Value)
		}
	}
	return nil
}

type setValueRequest struct {
	ObjectName string `json:"objectName"`
	ValueName  string `json:"valueName"`
	Value      any    `json:"value"`
}

// SetValue writes value to one device point. The cache is left alone;
// the next poll reflects the change.
func (c *Client) SetValue(ctx context.Context, name string, value any) error {
	body := setValueRequest{
		ObjectName: NormalizeName(name),
		ValueName:  "Value",
		Value:      value,
	}
	c.logDebug("writing panel value", "name", body.ObjectName, "value", value)

	resp, err := c.do(ctx, "set value", http.MethodPost, "/SetValue", body, c.sessionHeaders())
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// GetValue returns the cached raw value for name, or nil when it is unknown.
// A nil result is "currently unknown", not an error.
func (c *Client) GetValue(name string) any {
	value, _ := c.cache.Lookup(name)
	if value == nil {
		c.logWarn("cached value missing", "name", name, "entries", c.cache.Len())
	}
	return value
}

// Disconnect logs out. The cache and stored headers are kept.
func (c *Client) Disconnect(ctx context.Context) error {
	c.logInfo("disconnecting from panel")

	resp, err := c.do(ctx, "logout", http.MethodGet, "/Logout", nil, c.sessionHeaders())
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

// sessionHeaders returns a copy of the authorized headers, or nil before Connect.
func (c *Client) sessionHeaders() http.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authorized == nil {
		return nil
	}
	return c.authorized.Clone()
}

// do sends one request and returns the response only when the status is 200.
// The caller closes the body.
func (c *Client) do(ctx context.Context, op, method, path string, body any, headers http.Header) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("comfortclick: encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return nil, fmt.Errorf("comfortclick: build %s request: %w", op, err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("comfortclick: %s: %w", op, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Body: string(text)}
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
