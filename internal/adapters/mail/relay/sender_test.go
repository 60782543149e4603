package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"slot-swapper/internal/ports/mail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSender_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sendPath, r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"m1"}`))
	}))
	defer srv.Close()

	s, err := NewSender(Config{BaseURL: srv.URL, APIKey: "k", From: "no-reply@x.test"})
	require.NoError(t, err)

	err = s.Send(context.Background(), mail.Message{To: "ana@x.test", Subject: "hola", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, sendRequest{From: "no-reply@x.test", To: []string{"ana@x.test"}, Subject: "hola", HTML: "<p>hi</p>"}, got)
}

func TestSender_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") == "bad" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	unconfigured, err := NewSender(Config{})
	require.NoError(t, err)
	assert.ErrorIs(t, unconfigured.Send(context.Background(), mail.Message{To: "a@x.test"}), ErrNotConfigured)

	rejected, err := NewSender(Config{BaseURL: srv.URL, APIKey: "bad"})
	require.NoError(t, err)
	assert.ErrorIs(t, rejected.Send(context.Background(), mail.Message{To: "a@x.test"}), ErrRejected)
	assert.ErrorIs(t, rejected.Send(context.Background(), mail.Message{}), ErrRejected)

	down, err := NewSender(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	assert.ErrorIs(t, down.Send(context.Background(), mail.Message{To: "a@x.test"}), ErrUpstream)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{}.Send(context.Background(), mail.Message{To: "a@x.test"}))
}
