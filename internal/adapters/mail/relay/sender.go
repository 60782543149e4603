package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"slot-swapper/internal/platform/httpclient"
	"slot-swapper/internal/platform/logger"
	"slot-swapper/internal/ports/mail"
)

var (
	ErrNotConfigured = errors.New("mail relay not configured")
	ErrRejected      = errors.New("mail relay rejected message")
	ErrUpstream      = errors.New("mail relay upstream error")
)

const sendPath = "/v1/messages"

type Config struct {
	BaseURL string
	APIKey  string
	From    string

	APIKeyHeader string
	Timeout      time.Duration

	// Reintentos ante 5xx o errores de red; 0 desactiva.
	Retries int
}

// Sender entrega emails a un relay HTTP (estilo Resend/Postmark).
type Sender struct {
	http   *httpclient.Client
	apiKey string
	from   string
}

func NewSender(cfg Config) (*Sender, error) {
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}
	key := strings.TrimSpace(cfg.APIKey)
	hc, err := httpclient.New(cfg.BaseURL,
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithHeader(h, key),
		httpclient.WithRetries(cfg.Retries, httpclient.DefaultBackoff),
	)
	if err != nil {
		return nil, err
	}
	return &Sender{http: hc, apiKey: key, from: strings.TrimSpace(cfg.From)}, nil
}

func (s *Sender) IsConfigured() bool {
	return s != nil && s.http.BaseURL() != "" && s.apiKey != ""
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

func (s *Sender) Send(ctx context.Context, msg mail.Message) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return fmt.Errorf("%w: empty recipient", ErrRejected)
	}

	in := sendRequest{From: s.from, To: []string{to}, Subject: msg.Subject, HTML: msg.HTML}
	var out sendResponse
	err := s.http.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: sendPath, In: in, Out: &out})
	if err != nil {
		var he *httpclient.HTTPError
		if errors.As(err, &he) && he.StatusCode >= 400 && he.StatusCode < 500 {
			return fmt.Errorf("%w: status=%d", ErrRejected, he.StatusCode)
		}
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}

// LogSender no envía nada: deja el email en el log (modo dev).
type LogSender struct {
	Log logger.Logger
}

func (l LogSender) Send(_ context.Context, msg mail.Message) error {
	log := l.Log
	if log == nil {
		log = logger.Nop()
	}
	log.Info("email not sent (no relay configured)", map[string]any{"to": msg.To, "subject": msg.Subject})
	return nil
}
