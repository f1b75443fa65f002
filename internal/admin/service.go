// Package admin gates the lead dashboard behind a shared password. The gate
// hides the dashboard from casual visitors; it is not an access-control layer.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	dErrors "leadcapture/pkg/domain-errors"
	"leadcapture/pkg/requestcontext"
)

// LoginResult is returned to the dashboard on a successful login.
type LoginResult struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	secret []byte
	tokens *TokenService
	ttl    time.Duration
	logger *slog.Logger
}

func NewService(secret string, tokens *TokenService, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{secret: []byte(secret), tokens: tokens, ttl: ttl, logger: logger}
}

// Login compares password with the shared secret in constant time.
func (s *Service) Login(ctx context.Context, password string) (*LoginResult, error) {
	if password == "" || subtle.ConstantTimeCompare([]byte(password), s.secret) != 1 {
		s.logger.WarnContext(ctx, "admin login rejected", "request_id", requestcontext.RequestID(ctx))
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Mot de passe incorrect")
	}
	token, sessionKey, err := s.tokens.Generate(s.ttl)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue admin token")
	}
	s.logger.InfoContext(ctx, "admin session started",
		"admin_session", sessionKey,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &LoginResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: s.tokens.now().Add(s.ttl).UTC(),
	}, nil
}
