// Package catalog is a client for the remote metadata catalog: login,
// asset lookup and publishing of profiles and alerts.
package catalog

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"xtract/internal/alert"
	"xtract/internal/profile"
)

var (
	// ErrNoToken is returned by authenticated calls before Login or SetToken.
	ErrNoToken = errors.New("catalog: not logged in")
	// ErrMissingAuthorization is returned when a login response has no token.
	ErrMissingAuthorization = errors.New("catalog: login response without Authorization")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: http status %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("%s %s: http status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Assets maps a data hash to its catalog record.
type Assets map[string]json.RawMessage

// Client talks to one catalog instance.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	token   string
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithTimeout bounds each request. Zero disables the bound.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

func WithToken(token string) Option { return func(c *Client) { c.token = token } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New returns a client for baseURL (scheme://host:port).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: http.DefaultClient,
		log:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetToken replaces the session token.
func (c *Client) SetToken(token string) { c.token = token }

// Login exchanges credentials for a session token and keeps it on c.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	payload := map[string]string{"username": username, "password": password}
	var out map[string]string
	if err := c.do(ctx, http.MethodPost, "/auth/login", false, payload, &out); err != nil {
		return "", err
	}
	token, ok := out["Authorization"]
	if !ok || token == "" {
		return "", ErrMissingAuthorization
	}
	c.token = token
	return token, nil
}

// ListAssets returns every asset.
func (c *Client) ListAssets(ctx context.Context) (Assets, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/data", true, nil, &raw); err != nil {
		return nil, err
	}
	return decodeAssets(raw)
}

// GetAsset returns the asset with the given id.
func (c *Client) GetAsset(ctx context.Context, id string) (Assets, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("catalog: empty asset id")
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/data/"+url.PathEscape(id), true, nil, &raw); err != nil {
		return nil, err
	}
	return decodeAssets(raw)
}

// PublishProfile uploads a dataset profile.
func (c *Client) PublishProfile(ctx context.Context, p *profile.DatasetProfile) error {
	if p == nil {
		return errors.New("catalog: nil profile")
	}
	return c.do(ctx, http.MethodPost, "/data", true, p, nil)
}

// PublishAlerts uploads the alerts raised on dataID.
func (c *Client) PublishAlerts(ctx context.Context, dataID string, alerts []alert.Alert) error {
	if strings.TrimSpace(dataID) == "" {
		return errors.New("catalog: empty data id")
	}
	if alerts == nil {
		alerts = []alert.Alert{}
	}
	return c.do(ctx, http.MethodPost, "/data/"+url.PathEscape(dataID)+"/alerts", true, alerts, nil)
}

// decodeAssets accepts both a JSON object and a JSON string holding one;
// the service has returned either.
func decodeAssets(raw json.RawMessage) (Assets, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode assets: %w", err)
		}
		raw = json.RawMessage(s)
	}
	var out Assets
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode assets: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, in, out any) error {
	if auth && c.token == "" {
		return ErrNoToken
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	endpoint := c.base + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "xtract/1.0")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+base64.StdEncoding.EncodeToString([]byte(c.token)))
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	c.log.Debug("catalog request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, URL: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
