package irisfast

import (
    "context"
    "encoding/base64"
    "encoding/json"
    "errors"
    "fmt"
    "net"
    "strings"
    "time"

    "github.com/valyala/fasthttp"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

// Client talks to the Iris HTTP API. Only idempotent calls are retried.
type Client struct {
    baseURL string
    http    *fasthttp.Client
    headers HeaderProvider

    defaultTimeout time.Duration
    retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
    return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
    return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
    return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
    return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the TCP dialer; tests use an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
    return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
    c := &Client{
        baseURL:        strings.TrimRight(baseURL, "/"),
        http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
        defaultTimeout: 10 * time.Second,
        retryMax:       3,
    }
    for _, opt := range opts {
        opt(c)
    }
    return c
}

// GetConfig is a read and may be retried.
func (c *Client) GetConfig(ctx context.Context) (*Config, error) {
    var cfg Config
    if err := c.doJSON(ctx, fasthttp.MethodGet, "/config", nil, &cfg, true); err != nil {
        return nil, err
    }
    return &cfg, nil
}

// SendText posts a text reply. Replies are not retried so a room never sees a duplicate.
func (c *Client) SendText(ctx context.Context, room, message string) error {
    return c.doJSON(ctx, fasthttp.MethodPost, "/reply", ReplyRequest{Type: replyText, Room: room, Data: message}, nil, false)
}

// SendImage posts a PNG reply.
func (c *Client) SendImage(ctx context.Context, room string, png []byte) error {
    if len(png) == 0 { return errors.New("empty image") }
    req := ReplyRequest{Type: replyImage, Room: room, Data: base64.StdEncoding.EncodeToString(png)}
    return c.doJSON(ctx, fasthttp.MethodPost, "/reply", req, nil, false)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
    req := fasthttp.AcquireRequest()
    resp := fasthttp.AcquireResponse()
    defer func() {
        fasthttp.ReleaseRequest(req)
        fasthttp.ReleaseResponse(resp)
    }()

    req.Header.SetMethod(method)
    req.SetRequestURI(c.baseURL + path)
    req.Header.SetContentType("application/json")
    if c.headers != nil {
        for k, v := range c.headers() {
            if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
                req.Header.Set(k, v)
            }
        }
    }
    if in != nil {
        payload, err := json.Marshal(in)
        if err != nil {
            return fmt.Errorf("marshal request: %w", err)
        }
        req.SetBody(payload)
    }

    attempts := 1
    if retry && c.retryMax > 1 {
        attempts = c.retryMax
    }

    var lastErr error
    for attempt := 1; attempt <= attempts; attempt++ {
        if attempt > 1 {
            if err := sleepWithContext(ctx, backoffDuration(attempt-1)); err != nil {
                return lastErr
            }
        }
        if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
            lastErr = fmt.Errorf("request failed: %w", err)
            continue
        }
        status := resp.StatusCode()
        if status < 200 || status >= 300 {
            lastErr = &StatusError{Code: status, Body: truncate(string(resp.Body()), 512)}
            if !shouldRetryStatus(status) {
                return lastErr
            }
            continue
        }
        if out != nil {
            if err := json.Unmarshal(resp.Body(), out); err != nil {
                return fmt.Errorf("decode response: %w", err)
            }
        }
        return nil
    }
    if lastErr == nil {
        lastErr = errors.New("unknown error")
    }
    return lastErr
}

// StatusError is a non-2xx answer from Iris.
type StatusError struct {
    Code int
    Body string
}

func (e *StatusError) Error() string {
    return fmt.Sprintf("iris api error: status=%d body=%s", e.Code, e.Body)
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
    clientDL := time.Now().Add(c.defaultTimeout)
    if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
        return dl
    }
    return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}

func backoffDuration(attempt int) time.Duration {
    if attempt < 1 {
        attempt = 1
    }
    if attempt > 6 {
        attempt = 6
    }
    return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
    switch code {
    case 500, 502, 503, 504:
        return true
    default:
        return false
    }
}

func truncate(s string, n int) string {
    if len(s) <= n {
        return s
    }
    return s[:n]
}
