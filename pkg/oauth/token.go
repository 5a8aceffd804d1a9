package oauth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExpiryBuffer is how long before its expiry a token stops being handed out,
// so a token never expires while a request using it is in flight.
const ExpiryBuffer = 60 * time.Second

// Token is an OAuth2 bearer token.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// Valid reports whether the token can still be used at now.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && now.Before(t.ExpiresAt.Add(-ExpiryBuffer))
}

// tokenResponse is the client-credentials success payload.
type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   seconds `json:"expires_in"`
}

// seconds accepts a JSON number or a numeric string.
type seconds struct {
	Value int64
	Set   bool
}

func (s *seconds) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	if raw == "" {
		return nil
	}

	n := json.Number(raw)
	if v, err := n.Int64(); err == nil {
		s.Value, s.Set = v, true
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("expires_in: %q is not a number", raw)
	}
	s.Value, s.Set = int64(f), true
	return nil
}
