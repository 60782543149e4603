package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "slot-swapper"
	DefaultBackoff   = 250 * time.Millisecond

	maxBody = 1 << 20
)

var ErrNilClient = errors.New("httpclient: nil client")

// Client es el cliente JSON compartido por los adapters salientes (IAM, relay de mail).
// Los headers fijos (API key) se configuran una vez y van en cada request.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	headers   http.Header
	retries   int
	backoff   time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTransport permite inyectar un RoundTripper (tests, proxies).
func WithTransport(tr http.RoundTripper) Option {
	return func(c *Client) {
		if tr != nil {
			c.http.Transport = tr
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = strings.TrimSpace(ua) }
}

// WithHeader agrega un header fijo. Nombre o valor vacío se ignoran.
func WithHeader(name, value string) Option {
	return func(c *Client) {
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if name != "" && value != "" {
			c.headers.Set(name, value)
		}
	}
}

// WithRetries reintenta errores de red y 5xx, con espera lineal entre intentos.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		if n < 0 {
			n = 0
		}
		if backoff <= 0 {
			backoff = DefaultBackoff
		}
		c.retries, c.backoff = n, backoff
	}
}

// New crea un Client. baseURL vacío es válido: el cliente queda sin configurar
// y solo acepta URLs absolutas.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		headers:   http.Header{},
		backoff:   DefaultBackoff,
	}

	baseURL = strings.TrimSpace(baseURL)
	if baseURL != "" {
		if _, err := url.ParseRequestURI(baseURL); err != nil {
			return nil, fmt.Errorf("invalid base url: %w", err)
		}
		c.baseURL = strings.TrimRight(baseURL, "/")
	}

	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// Request describe una llamada JSON. In nil no manda body; Out nil descarta la respuesta.
type Request struct {
	Method string
	Path   string // absoluto o relativo a BaseURL
	Header map[string]string
	In     any
	Out    any
}

// HTTPError representa una respuesta no-2xx.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, e.Body)
}

// Temporary: vale la pena reintentar.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Do ejecuta el request y decodifica la respuesta en req.Out.
func (c *Client) Do(ctx context.Context, req Request) error {
	if c == nil || c.http == nil {
		return ErrNilClient
	}

	fullURL, err := c.resolve(req.Path)
	if err != nil {
		return err
	}

	var payload []byte
	if req.In != nil {
		if payload, err = json.Marshal(req.In); err != nil {
			return fmt.Errorf("httpclient: marshal json: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}

		lastErr = c.once(ctx, req, fullURL, payload)
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, req Request, fullURL string, payload []byte) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	hr, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return fmt.Errorf("httpclient: new request: %w", err)
	}

	hr.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		hr.Header.Set("User-Agent", c.userAgent)
	}
	if payload != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.headers {
		hr.Header[k] = vs
	}
	for k, v := range req.Header {
		if strings.TrimSpace(k) != "" {
			hr.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(hr)
	if err != nil {
		return fmt.Errorf("httpclient: do request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if req.Out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, req.Out); err != nil {
		return fmt.Errorf("httpclient: unmarshal json: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Temporary()
	}
	// Errores de marshal/unmarshal no mejoran reintentando.
	var ue *url.Error
	return errors.As(err, &ue)
}

func (c *Client) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("httpclient: empty url")
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	if c.baseURL == "" {
		return "", errors.New("httpclient: relative path requires base url")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path, nil
}
