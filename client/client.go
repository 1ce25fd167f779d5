// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

// Package client reports device positions to a SafeMap server and reads the
// live map back.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/touristsafety/safemap/api"
	"github.com/touristsafety/safemap/tracking"
)

const userAgent = "safemap-client/1"

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server replied %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	trace   io.Writer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 10s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTrace dumps every request and response to w.
func WithTrace(w io.Writer) Option {
	return func(c *Client) {
		c.trace = w
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	hc := *c.http

	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	if c.trace != nil {
		base = &TraceTransport{Transport: base, Writer: c.trace, DumpBody: true}
	}

	hc.Transport = &headerTransport{
		Transport: base,
		Headers:   map[string]string{"User-Agent": userAgent},
	}
	c.http = &hc

	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) (int, error) {
	u := *c.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	var body io.Reader

	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}

		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}

		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}

		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// Register announces a device. created is false when the name was already
// registered, in which case the stored tourist is returned unchanged.
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (t *tracking.Tourist, created bool, err error) {
	var resp api.RegisterResponse

	code, err := c.do(ctx, http.MethodPost, "/register", nil, req, &resp)
	if err != nil {
		return nil, false, err
	}

	return resp.Tourist, code == http.StatusCreated, nil
}

// UpdateLocation reports a new position for a registered device. A nil
// battery keeps the stored level.
func (c *Client) UpdateLocation(ctx context.Context, name string, lat, lon float64, battery *int) (*tracking.Tourist, error) {
	req := api.UpdateLocationRequest{Name: name, Lat: &lat, Lon: &lon, Battery: battery}

	var resp api.UpdateLocationResponse
	if _, err := c.do(ctx, http.MethodPost, "/update-location", nil, req, &resp); err != nil {
		return nil, err
	}

	return resp.Tourist, nil
}

// Tourists lists registered tourists, filtered by query when not empty.
func (c *Client) Tourists(ctx context.Context, query string) ([]*tracking.Tourist, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}

	var tourists []*tracking.Tourist
	if _, err := c.do(ctx, http.MethodGet, "/tourists", q, nil, &tourists); err != nil {
		return nil, err
	}

	return tourists, nil
}

// ClusterQuery selects what the server lays out. Zero fields use the
// server's defaults.
type ClusterQuery struct {
	Query     string
	Threshold float64
	Linkage   string
	Demo      bool
}

// Clusters fetches the current map layout.
func (c *Client) Clusters(ctx context.Context, cq ClusterQuery) (*api.MapResponse, error) {
	q := url.Values{}

	if cq.Query != "" {
		q.Set("q", cq.Query)
	}

	if cq.Threshold != 0 {
		q.Set("threshold", strconv.FormatFloat(cq.Threshold, 'g', -1, 64))
	}

	if cq.Linkage != "" {
		q.Set("linkage", cq.Linkage)
	}

	if cq.Demo {
		q.Set("source", "demo")
	}

	var resp api.MapResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/map/clusters", q, nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}
