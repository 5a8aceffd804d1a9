// Package oauth acquires and caches OAuth2 client-credentials tokens.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/tournevent/ratebridge/pkg/transport"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config holds the client-credentials identity.
type Config struct {
	Carrier      string // Used to tag errors, e.g. "ups"
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	Timeout      time.Duration
}

// Manager hands out a currently valid bearer token for one identity.
// Concurrent callers that miss the cache share a single acquisition.
type Manager struct {
	config Config
	doer   transport.Doer
	logger *otelzap.Logger
	now    func() time.Time

	token  atomic.Pointer[Token]
	flight singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a token manager.
func New(cfg Config, doer transport.Doer, logger *otelzap.Logger, opts ...Option) *Manager {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	m := &Manager{
		config: cfg,
		doer:   doer,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetAccessToken returns a valid access token, acquiring one if needed.
func (m *Manager) GetAccessToken(ctx context.Context) (string, error) {
	if t := m.token.Load(); t.Valid(m.now()) {
		return t.AccessToken, nil
	}

	// The acquisition is shared, so it must outlive any single caller.
	ch := m.flight.DoChan("token", func() (any, error) {
		if t := m.token.Load(); t.Valid(m.now()) {
			return t, nil
		}
		return m.acquire(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*Token).AccessToken, nil
	case <-ctx.Done():
		return "", m.authError("gave up waiting for access token").WithCause(ctx.Err())
	}
}

// ClearToken discards the cached token so the next call re-acquires.
func (m *Manager) ClearToken() {
	m.token.Store(nil)
}

// Token returns the cached token, or nil.
func (m *Manager) Token() *Token {
	return m.token.Load()
}

func (m *Manager) acquire(ctx context.Context) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.config.ClientID)
	form.Set("client_secret", m.config.ClientSecret)
	if m.config.Scope != "" {
		form.Set("scope", m.config.Scope)
	}

	m.logger.Ctx(ctx).Debug("Requesting access token", zap.String("carrier", m.config.Carrier))

	resp, err := m.doer.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    m.config.TokenURL,
		Header: http.Header{
			"Content-Type": []string{"application/x-www-form-urlencoded"},
			"Accept":       []string{"application/json"},
		},
		Body:    []byte(form.Encode()),
		Timeout: m.config.Timeout,
	})
	if err != nil {
		m.logger.Ctx(ctx).Warn("Access token request failed",
			zap.String("carrier", m.config.Carrier), zap.Error(err))
		if _, classified := shipper.AsCarrierError(err); classified {
			return nil, err
		}
		return nil, m.authError("token request failed").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		m.logger.Ctx(ctx).Warn("Access token rejected",
			zap.String("carrier", m.config.Carrier), zap.Int("status", resp.StatusCode))
		return nil, m.authError(fmt.Sprintf("token request failed with status %d", resp.StatusCode)).
			WithStatusCode(resp.StatusCode)
	}

	var payload tokenResponse
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, shipper.NewCarrierError(m.config.Carrier, shipper.KindMalformedResponse,
			"token response is not valid JSON").WithCause(err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" || !payload.ExpiresIn.Set || payload.ExpiresIn.Value <= 0 {
		return nil, shipper.NewCarrierError(m.config.Carrier, shipper.KindMalformedResponse,
			"token response missing access_token or expires_in")
	}

	tokenType := payload.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	token := &Token{
		AccessToken: payload.AccessToken,
		TokenType:   tokenType,
		ExpiresAt:   m.now().Add(time.Duration(payload.ExpiresIn.Value) * time.Second),
	}
	m.token.Store(token)

	m.logger.Ctx(ctx).Debug("Access token acquired",
		zap.String("carrier", m.config.Carrier), zap.Time("expires_at", token.ExpiresAt))
	return token, nil
}

func (m *Manager) authError(message string) *shipper.CarrierError {
	return shipper.NewCarrierError(m.config.Carrier, shipper.KindAuthFailed, message)
}
