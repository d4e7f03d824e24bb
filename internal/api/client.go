// Package api is a client for the ingredient endpoints of the bar-stock
// server. It implements grid.Store.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/golang/glog"
	"github.com/mattn/go-runewidth"

	"github.com/twschum/mix-mind/grid"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultTlsTimeout     = 5 * time.Second
	defaultHttpTimeout    = 30 * time.Second

	// error pages are reduced to their heading; only this much is read
	maxErrorBody = 64 * 1024
	// plain-text error bodies are cut to this many cells
	maxErrorText = 200
)

const (
	PathIngredients     = "/api/ingredients"
	PathLoadIngredients = "/api/load_ingredients"
	PathIngredient      = "/api/ingredient"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// StatusError is a well-formed response with status "error".
type StatusError struct {
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return "server reported an error"
	}
	return e.Message
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	Code int
	Text string
}

func (e *HTTPError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("%d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%d %s", e.Code, e.Text)
}

// Client talks to one bar-stock server.
type Client struct {
	baseURL  string
	loadPath string
	http     *http.Client
}

type Option func(*Client)

// WithLoadPath selects the endpoint rows are loaded from.
func WithLoadPath(path string) Option {
	return func(c *Client) { c.loadPath = path }
}

// WithHTTPClient replaces the default transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		loadPath: PathIngredients,
		http:     defaultClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   defaultConnectTimeout,
		KeepAlive: 60 * time.Second,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultTlsTimeout,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Rows loads every ingredient. The body may be the status envelope, a
// {"data": [...]} table payload, or a bare array.
func (c *Client) Rows(ctx context.Context) ([]map[string]any, error) {
	body, err := c.do(ctx, http.MethodGet, c.loadPath, nil)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return decodeRows(trimmed)
	}
	var env envelope
	if err := decode(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", grid.ErrMalformed, err)
	}
	switch env.Status {
	case "", statusSuccess:
	case statusError:
		return nil, &StatusError{Message: env.Message}
	default:
		return nil, fmt.Errorf("%w: unknown status %q", grid.ErrMalformed, env.Status)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("%w: no data", grid.ErrMalformed)
	}
	return decodeRows(env.Data)
}

// Update sends one changed field. The returned map is the full row as the
// server now has it.
func (c *Client) Update(ctx context.Context, req grid.UpdateRequest) (map[string]any, error) {
	payload := req.Key.Map()
	payload["field"] = req.Field
	payload["value"] = req.Value
	return c.call(ctx, http.MethodPut, payload)
}

// Delete removes a row. The returned map carries the fields identifying the
// removed row.
func (c *Client) Delete(ctx context.Context, key grid.Key) (map[string]any, error) {
	return c.call(ctx, http.MethodDelete, key.Map())
}

// Create adds a row. The returned map is the row as stored, with its new
// identifier.
func (c *Client) Create(ctx context.Context, values map[string]any) (map[string]any, error) {
	return c.call(ctx, http.MethodPost, values)
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) (map[string]any, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, method, PathIngredient, b)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := decode(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", grid.ErrMalformed, err)
	}
	switch env.Status {
	case statusSuccess:
	case statusError:
		return nil, &StatusError{Message: env.Message}
	default:
		return nil, fmt.Errorf("%w: unknown status %q", grid.ErrMalformed, env.Status)
	}
	var data map[string]any
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := decode(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: data: %v", grid.ErrMalformed, err)
		}
	}
	if env.Message != "" {
		glog.V(1).Infof("api: %s %s: %s", method, PathIngredient, env.Message)
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	glog.V(2).Infof("api: %s %s", method, req.URL)
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{Code: resp.StatusCode, Text: errorText(resp.Header.Get("Content-Type"), b)}
	}
	return io.ReadAll(resp.Body)
}

// errorText extracts a readable message from an error body. HTML error
// pages are reduced to their first heading or title.
func errorText(contentType string, body []byte) string {
	if strings.Contains(contentType, "html") || bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err == nil {
			for _, sel := range []string{"h1", "title"} {
				if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
					return t
				}
			}
		}
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return env.Message
	}
	s := strings.TrimSpace(string(body))
	return runewidth.Truncate(s, maxErrorText, "…")
}

func decode(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

func decodeRows(b []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := decode(b, &rows); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", grid.ErrMalformed, err)
	}
	if rows == nil {
		return nil, errors.New("no rows in response")
	}
	return rows, nil
}
