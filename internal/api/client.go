// Package api is the HTTP client for the MechConnect backend and the geography lookup service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const userAgent = "mechconnect-bot/1.0 (+https://github.com/mechconnect)"

// Options configures a Client. BaseURL is the backend API root (e.g. http://host:8000/api).
type Options struct {
	BaseURL      string
	GeographyURL string
	Timeout      time.Duration

	// Transport is shared between clients so that per-user cookie jars do not each open their own connections.
	Transport http.RoundTripper
}

// Client talks to the backend on behalf of one user. Each client has its own cookie jar,
// which carries the backend session cookie between login and later requests.
type Client struct {
	baseURL  string
	geoURL   string
	timeout  time.Duration
	http     *http.Client
	requests atomic.Uint64
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("api: cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	geoURL := opts.GeographyURL
	if geoURL == "" {
		geoURL = opts.BaseURL
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		geoURL:  strings.TrimRight(geoURL, "/"),
		timeout: timeout,
		http:    &http.Client{Jar: jar, Transport: opts.Transport},
	}, nil
}

// Requests returns the number of requests this client has sent.
func (c *Client) Requests() uint64 {
	return c.requests.Load()
}

func (c *Client) onRequest(req *http.Request) {
	c.requests.Add(1)
	log.WithField("request_id", req.Header.Get("X-Request-ID")).Debugf("%s %s", req.Method, req.URL.String())
	if log.IsLevelEnabled(log.TraceLevel) {
		log.Trace(DebugRequest(req))
	}
}

func (c *Client) onResponse(res *http.Response, body []byte) {
	log.Debugf("%s %d %s", res.Status, len(body), res.Header.Get("Content-Type"))
	if log.IsLevelEnabled(log.TraceLevel) {
		log.Trace(DebugResponse(res, body))
	}
}

// buildRequest creates a request for an absolute URL with the typical JSON headers set.
// A nil payload sends no body.
func buildRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	setTypicalHeaders(req, payload != nil)

	return req, nil
}

// setTypicalHeaders sets User-Agent, Accept, X-Request-ID and, when a body is sent, Content-Type.
func setTypicalHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
}

// response is a fully read HTTP response. Bodies are read inside the request timeout.
type response struct {
	status      int
	contentType string
	body        []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// do sends a request and reads the full body, bounded by the client timeout.
// Errors before a response arrives are returned as *TransportError.
func (c *Client) do(ctx context.Context, method, url string, payload any) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := buildRequest(ctx, method, url, payload)
	if err != nil {
		return nil, err
	}

	c.onRequest(req)
	res, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	c.onResponse(res, body)

	return &response{
		status:      res.StatusCode,
		contentType: res.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func (c *Client) geographyURL(path string) string {
	return c.geoURL + path
}
