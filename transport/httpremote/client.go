// Package httpremote implements store.RemoteStore over HTTP: a client
// speaking JSON + SSE, and a reference server backed by an in-memory
// document store. The server stands in for the hosted backend in tests,
// local development and the fitlocker CLI.
package httpremote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	syncErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

const (
	opAdd        = syncErrors.Operation("httpremote.Add")
	opGet        = syncErrors.Operation("httpremote.Get")
	opGetAll     = syncErrors.Operation("httpremote.GetAll")
	opGetByIndex = syncErrors.Operation("httpremote.GetByIndex")
	opUpdate     = syncErrors.Operation("httpremote.Update")
	opDelete     = syncErrors.Operation("httpremote.Delete")
	opSetting    = syncErrors.Operation("httpremote.Setting")
	opHandshake  = syncErrors.Operation("httpremote.Handshake")
	opSubscribe  = syncErrors.Operation("httpremote.Subscribe")

	component = syncErrors.Component("transport/httpremote")
)

// Limits bounds response sizes accepted by the client.
type Limits struct {
	MaxBodyBytes int64
}

// Client implements store.RemoteStore against the HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	limits  Limits
	logger  *logging.Logger
}

var _ store.RemoteStore = (*Client)(nil)

// ClientOption configures a Client using the functional options pattern.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(cl *http.Client) ClientOption {
	return func(c *Client) { c.http = cl }
}

// WithToken sets the bearer token presented on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithLimits sets response size limits.
func WithLimits(l Limits) ClientOption {
	return func(c *Client) { c.limits = l }
}

// WithLogger overrides the package logger.
func WithLogger(l *logging.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a remote store client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limits:  Limits{MaxBodyBytes: 8 << 20},
		logger:  logging.WithComponent(logging.Component("remote-client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handshake verifies the server is reachable and the session token is valid.
func (c *Client) Handshake(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/session", nil, nil, opHandshake)
}

// Add uploads a new document and returns the cloud-assigned identifier.
func (c *Client) Add(ctx context.Context, collection record.Collection, rec record.Record) (string, error) {
	var resp addResponse
	err := c.do(ctx, http.MethodPost, "/v1/collections/"+string(collection), rec, &resp, opAdd)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Get returns the document with the given cloud id, or nil if absent.
func (c *Client) Get(ctx context.Context, collection record.Collection, id string) (*record.Record, error) {
	var rec record.Record
	err := c.do(ctx, http.MethodGet, "/v1/collections/"+string(collection)+"/"+url.PathEscape(id), nil, &rec, opGet)
	if syncErrors.Is(err, syncErrors.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetAll returns the full collection.
func (c *Client) GetAll(ctx context.Context, collection record.Collection) ([]record.Record, error) {
	var recs []record.Record
	err := c.do(ctx, http.MethodGet, "/v1/collections/"+string(collection), nil, &recs, opGetAll)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// GetByIndex returns all documents where field equals value. The value is
// JSON-encoded into the query string so types survive the trip.
func (c *Client) GetByIndex(ctx context.Context, collection record.Collection, field string, value interface{}) ([]record.Record, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, syncErrors.E(opGetByIndex, component, syncErrors.KindValidation, err)
	}
	path := fmt.Sprintf("/v1/collections/%s?field=%s&value=%s",
		collection, url.QueryEscape(field), url.QueryEscape(string(encoded)))

	var recs []record.Record
	if err := c.do(ctx, http.MethodGet, path, nil, &recs, opGetByIndex); err != nil {
		return nil, err
	}
	return recs, nil
}

// Update replaces the document identified by its cloud id.
func (c *Client) Update(ctx context.Context, collection record.Collection, rec record.Record) (string, error) {
	if rec.CloudID == "" {
		return "", syncErrors.E(opUpdate, component, syncErrors.KindValidation,
			fmt.Errorf("cloud id is required for remote update"))
	}
	err := c.do(ctx, http.MethodPut, "/v1/collections/"+string(collection)+"/"+url.PathEscape(rec.CloudID), rec, nil, opUpdate)
	if err != nil {
		return "", err
	}
	return rec.CloudID, nil
}

// Delete removes the document. Absent ids are a no-op.
func (c *Client) Delete(ctx context.Context, collection record.Collection, id string) error {
	err := c.do(ctx, http.MethodDelete, "/v1/collections/"+string(collection)+"/"+url.PathEscape(id), nil, nil, opDelete)
	if syncErrors.Is(err, syncErrors.KindNotFound) {
		return nil
	}
	return err
}

// GetSetting returns the remote value stored under key, or nil.
func (c *Client) GetSetting(ctx context.Context, key string) (interface{}, error) {
	var payload settingPayload
	err := c.do(ctx, http.MethodGet, "/v1/settings/"+url.PathEscape(key), nil, &payload, opSetting)
	if syncErrors.Is(err, syncErrors.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(payload.Value) == 0 {
		return nil, nil
	}
	var value interface{}
	if err := json.Unmarshal(payload.Value, &value); err != nil {
		return nil, syncErrors.WrapOpComponent(err, opSetting, component)
	}
	return value, nil
}

// SetSetting stores value under key.
func (c *Client) SetSetting(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return syncErrors.E(opSetting, component, syncErrors.KindValidation, err)
	}
	return c.do(ctx, http.MethodPut, "/v1/settings/"+url.PathEscape(key), settingPayload{Value: raw}, nil, opSetting)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// do performs one JSON request/response round trip.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, op syncErrors.Operation) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return syncErrors.E(op, component, syncErrors.KindValidation, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return syncErrors.E(op, component, syncErrors.KindValidation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return syncErrors.E(op, component, syncErrors.KindUnavailable, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, c.limits.MaxBodyBytes)

	if resp.StatusCode >= 400 {
		return c.decodeError(limited, resp.StatusCode, op)
	}
	if out == nil {
		io.Copy(io.Discard, limited)
		return nil
	}
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return syncErrors.E(op, component, syncErrors.KindUnavailable,
			fmt.Errorf("malformed response body: %w", err))
	}
	return nil
}

func (c *Client) decodeError(body io.Reader, status int, op syncErrors.Operation) error {
	var wire errorResponse
	_ = json.NewDecoder(body).Decode(&wire)
	msg := wire.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	kind := syncErrors.KindUnavailable
	switch status {
	case http.StatusNotFound:
		kind = syncErrors.KindNotFound
	case http.StatusConflict:
		kind = syncErrors.KindConflict
	case http.StatusBadRequest:
		kind = syncErrors.KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = syncErrors.KindUnavailable
	}
	return syncErrors.E(op, component, kind, fmt.Errorf("remote returned %d: %s", status, msg))
}
