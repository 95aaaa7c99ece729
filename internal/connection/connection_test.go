package connection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type seen struct {
	method string
	path   string
	header http.Header
	body   string
}

func newTestServer(t *testing.T, status int, reply string) (*httptest.Server, *[]seen) {
	t.Helper()
	var reqs []seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		reqs = append(reqs, seen{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: string(b)})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{Pool: "acme"})
	assert.Equal(t, DefaultBaseURL, c.BaseURLFmt())
	assert.Equal(t, "acme", c.Pool())

	c = New(Config{BaseURL: "http://localhost:8080/api", Pool: "acme"})
	assert.Equal(t, "http://localhost:8080/api/", c.BaseURLFmt())
}

func TestGet_DecodesJSON(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `[{"code":"a","net":"1.50","count":3}]`)
	c := New(Config{BaseURL: srv.URL, Pool: "acme", Token: "secret", UserAgent: "holvi/1.2.3"})

	got, err := c.Get(context.Background(), srv.URL+"/pool/acme/invoice/")
	require.NoError(t, err)

	list, ok := got.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	doc := list[0].(map[string]any)
	assert.Equal(t, "a", doc["code"])
	assert.Equal(t, json.Number("3"), doc["count"], "numbers are kept exact")

	require.Len(t, *reqs, 1)
	r := (*reqs)[0]
	assert.Equal(t, http.MethodGet, r.method)
	assert.Equal(t, "/pool/acme/invoice/", r.path)
	assert.Equal(t, "Token secret", r.header.Get("Authorization"))
	assert.Equal(t, "application/json", r.header.Get("Accept"))
	assert.Empty(t, r.header.Get("Content-Type"))
	assert.Len(t, r.header.Get("X-Request-ID"), 36)
	assert.Equal(t, "holvi/1.2.3", r.header.Get("User-Agent"))
	assert.Empty(t, r.body)
}

func TestPutPost_SendJSON(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `{"ok":true}`)
	c := New(Config{BaseURL: srv.URL, Pool: "acme"})

	_, err := c.Post(context.Background(), srv.URL+"/x/", map[string]any{"subject": "hi"})
	require.NoError(t, err)
	got, err := c.Put(context.Background(), srv.URL+"/x/1/", map[string]any{"active": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, got)

	require.Len(t, *reqs, 2)
	assert.Equal(t, http.MethodPost, (*reqs)[0].method)
	assert.JSONEq(t, `{"subject":"hi"}`, (*reqs)[0].body)
	assert.Equal(t, "application/json", (*reqs)[0].header.Get("Content-Type"))
	assert.Empty(t, (*reqs)[0].header.Get("Authorization"), "no token configured")
	assert.Equal(t, http.MethodPut, (*reqs)[1].method)
	assert.JSONEq(t, `{"active":true}`, (*reqs)[1].body)
	assert.NotEqual(t, (*reqs)[0].header.Get("X-Request-ID"), (*reqs)[1].header.Get("X-Request-ID"))
}

func TestEmptyBody(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusNoContent, "")
	c := New(Config{BaseURL: srv.URL})
	got, err := c.Put(context.Background(), srv.URL+"/x/", map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHTTPError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadRequest, `{"detail":"bad"}`)
	c := New(Config{BaseURL: srv.URL})

	_, err := c.Post(context.Background(), srv.URL+"/x/", map[string]any{})
	require.Error(t, err)

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusBadRequest, herr.StatusCode)
	assert.Equal(t, http.MethodPost, herr.Method)
	assert.Equal(t, `{"detail":"bad"}`, herr.Body)
	assert.Contains(t, err.Error(), "400 Bad Request")
}

func TestHTTPError_TruncatesBody(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusInternalServerError, strings.Repeat("x", 10000))
	c := New(Config{BaseURL: srv.URL})

	_, err := c.Get(context.Background(), srv.URL+"/x/")
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Len(t, herr.Body, maxErrorBody)
}

func TestBadJSON(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{not json`)
	c := New(Config{BaseURL: srv.URL})
	_, err := c.Get(context.Background(), srv.URL+"/x/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}

func TestTransportError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url})
	_, err := c.Get(context.Background(), url+"/x/")
	require.Error(t, err)
	var herr *HTTPError
	assert.False(t, errors.As(err, &herr))
}

func TestEncodePayloadError(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1/"})
	_, err := c.Post(context.Background(), "http://127.0.0.1:1/x/", map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoding payload")
}

func TestRateLimit_ContextCancelled(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `{}`)
	c := New(Config{BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1})

	_, err := c.Get(context.Background(), srv.URL+"/x/")
	require.NoError(t, err)

	// The bucket is empty and refills far slower than the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, srv.URL+"/x/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Len(t, *reqs, 1)
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusNotFound, `{}`)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := New(Config{BaseURL: srv.URL}, WithMetrics(m))

	_, _ = c.Get(context.Background(), srv.URL+"/x/")
	_, _ = c.Get(context.Background(), srv.URL+"/x/")

	assert.InDelta(t, 2, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "404")), 0.001)
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))
}

func TestLogging(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{}`)
	core, logs := observer.New(zapcore.DebugLevel)
	c := New(Config{BaseURL: srv.URL, Pool: "acme"}, WithLogger(zap.New(core)))

	_, err := c.Get(context.Background(), srv.URL+"/x/")
	require.NoError(t, err)

	entries := logs.FilterMessage("Request done").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "acme", fields["pool"])
	assert.Equal(t, "GET", fields["method"])
	assert.EqualValues(t, 200, fields["status"])
	assert.Equal(t, "holvi", entries[0].LoggerName)
}

func TestWithHTTPClient(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `{}`)
	c := New(Config{BaseURL: srv.URL}, WithHTTPClient(srv.Client()))
	_, err := c.Get(context.Background(), srv.URL+"/x/")
	require.NoError(t, err)
	assert.Len(t, *reqs, 1)
}

func TestNewHTTPClient(t *testing.T) {
	cfg := DefaultClientConfig()
	client := NewHTTPClient(cfg)
	assert.Equal(t, cfg.Timeout, client.Timeout)
	tr, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, cfg.MaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
}
