package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slot-swapper/internal/platform/httpclient"
	"slot-swapper/internal/ports/auth"
	"slot-swapper/internal/ports/users"
)

var (
	ErrNotConfigured = errors.New("identity client not configured")
	ErrUnauthorized  = errors.New("identity unauthorized")
	ErrUpstream      = errors.New("identity upstream error")
	ErrUnknownUser   = errors.New("identity unknown user")
)

const (
	verifyPath  = "/v1/tokens/verify"
	profilePath = "/v1/users/"
)

// Config del cliente del IAM.
type Config struct {
	BaseURL string
	APIKey  string

	// Opcional: nombre del header donde se manda la API key.
	// Si está vacío, se usa "X-Api-Key".
	APIKeyHeader string

	Timeout time.Duration
}

type Client struct {
	http   *httpclient.Client
	apiKey string
}

func NewClient(cfg Config) (*Client, error) {
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}
	key := strings.TrimSpace(cfg.APIKey)
	hc, err := httpclient.New(cfg.BaseURL,
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithHeader(h, key),
	)
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, apiKey: key}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http.BaseURL() != "" && c.apiKey != ""
}

type userDoc struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// VerifyToken valida el token contra el IAM y trae los claims.
func (c *Client) VerifyToken(ctx context.Context, token string) (auth.Claims, error) {
	if !c.IsConfigured() {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrUnauthorized
	}

	var out userDoc
	err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   verifyPath,
		// Algunos IAM esperan el token en Authorization, aunque también vaya en body.
		Header: map[string]string{"Authorization": "Bearer " + token},
		In:     map[string]string{"token": token},
		Out:    &out,
	})
	if err != nil {
		return auth.Claims{}, c.mapErr(err)
	}

	out.UserID = strings.TrimSpace(out.UserID)
	if out.UserID == "" {
		return auth.Claims{}, fmt.Errorf("%w: response missing user_id", ErrUpstream)
	}
	return auth.Claims{
		UserID: out.UserID,
		Name:   strings.TrimSpace(out.Name),
		Email:  strings.TrimSpace(out.Email),
	}, nil
}

// GetProfile trae nombre y email públicos de un usuario.
func (c *Client) GetProfile(ctx context.Context, userID string) (users.Profile, error) {
	if !c.IsConfigured() {
		return users.Profile{}, ErrNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return users.Profile{}, ErrUnknownUser
	}

	var out userDoc
	req := httpclient.Request{Method: http.MethodGet, Path: profilePath + url.PathEscape(userID), Out: &out}
	if err := c.http.Do(ctx, req); err != nil {
		return users.Profile{}, c.mapErr(err)
	}
	return users.Profile{
		ID:    userID,
		Name:  strings.TrimSpace(out.Name),
		Email: strings.TrimSpace(out.Email),
	}, nil
}

func (c *Client) mapErr(err error) error {
	var he *httpclient.HTTPError
	if errors.As(err, &he) {
		switch he.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrUnauthorized
		case http.StatusNotFound:
			return ErrUnknownUser
		}
		return fmt.Errorf("%w: status=%d", ErrUpstream, he.StatusCode)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
