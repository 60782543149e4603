package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_RelativePathAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ping", r.URL.Path)
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "x", r.Header.Get("X-Extra"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithTimeout(time.Second), WithHeader("X-Api-Key", "secret"))
	require.NoError(t, err)

	var out struct {
		OK bool `json:"ok"`
	}
	err = c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "v1/ping",
		Header: map[string]string{"X-Extra": "x"},
		In:     map[string]int{"n": 1},
		Out:    &out,
	})
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestDo_Non2xxIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("  nope "))
	}))
	defer srv.Close()

	c, err := New("", WithRetries(3, time.Millisecond))
	require.NoError(t, err)

	err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: srv.URL})

	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusConflict, he.StatusCode)
	assert.Equal(t, "nope", he.Body)
	assert.False(t, he.Temporary())
	assert.EqualValues(t, 1, calls.Load())
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithRetries(2, time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x", In: struct{}{}}))
	assert.EqualValues(t, 3, calls.Load())
}

func TestDo_RelativeWithoutBaseURL(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.Error(t, c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}))
	assert.Empty(t, c.BaseURL())
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New("::nope")
	assert.Error(t, err)
}
