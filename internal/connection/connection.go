package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the root of the public Holvi API.
const DefaultBaseURL = "https://holvi.com/api/"

// maxErrorBody caps how much of an error response is kept on HTTPError.
const maxErrorBody = 4096

// Config identifies the pool and how to reach it.
type Config struct {
	BaseURL string
	Pool    string
	Token   string

	// UserAgent is sent when non-empty.
	UserAgent string

	// RequestsPerSecond <= 0 disables client-side limiting.
	RequestsPerSecond float64
	Burst             int

	Client ClientConfig
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Connection talks JSON to the Holvi API. It is safe for concurrent use.
type Connection struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
	metrics *Metrics
}

// Option configures a Connection.
type Option func(*Connection)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connection) { c.client = client }
}

// WithLogger sets the logger requests are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(c *Connection) { c.log = l }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *Metrics) Option {
	return func(c *Connection) { c.metrics = m }
}

// New creates a Connection.
func New(cfg Config, opts ...Option) *Connection {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Client == (ClientConfig{}) {
		cfg.Client = DefaultClientConfig()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	c := &Connection{
		cfg:     cfg,
		client:  NewHTTPClient(cfg.Client),
		limiter: limiter,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("holvi").With(zap.String("pool", cfg.Pool))
	return c
}

// BaseURLFmt returns the API root, always ending in "/".
func (c *Connection) BaseURLFmt() string { return c.cfg.BaseURL }

// Pool returns the pool identifier.
func (c *Connection) Pool() string { return c.cfg.Pool }

// Get issues a GET and decodes the JSON response.
func (c *Connection) Get(ctx context.Context, url string) (any, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

// Put issues a PUT with a JSON payload and decodes the JSON response.
func (c *Connection) Put(ctx context.Context, url string, payload any) (any, error) {
	return c.do(ctx, http.MethodPut, url, payload)
}

// Post issues a POST with a JSON payload and decodes the JSON response.
func (c *Connection) Post(ctx context.Context, url string, payload any) (any, error) {
	return c.do(ctx, http.MethodPost, url, payload)
}

func (c *Connection) do(ctx context.Context, method, url string, payload any) (any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s %s: rate limit: %w", method, url, err)
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encoding payload: %w", method, url, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: building request: %w", method, url, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Token "+c.cfg.Token)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	l := c.log.With(zap.String("method", method), zap.String("url", url), zap.String("request_id", reqID))
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(method, "error", start)
		l.Warn("Request failed", zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.observe(method, strconv.Itoa(resp.StatusCode), start)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading body: %w", method, url, err)
	}
	l.Debug("Request done", zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := string(data)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, &HTTPError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(text)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%s %s: decoding response: %w", method, url, err)
	}
	return out, nil
}

func (c *Connection) observe(method, code string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.Requests.WithLabelValues(method, code).Inc()
	c.metrics.Duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
