package auth

import (
	"errors"
	"fmt"
	"time"

	"tradeline/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingSecret = errors.New("auth: JWT_SECRET is required")
	ErrTokenType     = errors.New("auth: unsupported token_type")
	ErrMissingClaim  = errors.New("auth: required claim missing")
)

type Manager struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Manager{
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.JWTIssuer,
		audience:  cfg.JWTAudience,
		accessTTL: ttl,
	}, nil
}

/* ===================== ISSUE TOKENS ===================== */

// IssueAccess mints an operator access token with the configured TTL.
func (m *Manager) IssueAccess(now time.Time, id Identity) (string, error) {
	return m.issue(now, TokenTypeAccess, id, m.accessTTL)
}

// IssueService mints a token for scripts and dashboards. ttl must be positive.
func (m *Manager) IssueService(now time.Time, id Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("auth: service token ttl must be positive, got %s", ttl)
	}
	return m.issue(now, TokenTypeService, id, ttl)
}

/* ===================== VERIFY TOKEN ===================== */

// Verify parses tokenString and checks signature, registered claims and the
// identity fields. Both access and service tokens are accepted.
func (m *Manager) Verify(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew tolerance
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	switch claims.TokenType {
	case TokenTypeAccess, TokenTypeService:
	default:
		return Claims{}, fmt.Errorf("%w: %q", ErrTokenType, claims.TokenType)
	}
	if claims.OperatorID == "" {
		return Claims{}, fmt.Errorf("%w: operator_id", ErrMissingClaim)
	}
	if claims.WorkspaceID == "" {
		return Claims{}, fmt.Errorf("%w: workspace_id", ErrMissingClaim)
	}
	if claims.Role == "" {
		return Claims{}, fmt.Errorf("%w: role", ErrMissingClaim)
	}

	return claims, nil
}

/* ===================== INTERNAL ISSUE ===================== */

func (m *Manager) issue(now time.Time, tokenType TokenType, id Identity, ttl time.Duration) (string, error) {
	if id.OperatorID == "" || id.WorkspaceID == "" || id.Role == "" {
		return "", fmt.Errorf("%w: operator_id, workspace_id and role are required", ErrMissingClaim)
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   id.OperatorID,
			Audience:  audienceOrNil(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		OperatorID:  id.OperatorID,
		WorkspaceID: id.WorkspaceID,
		Role:        id.Role,
		TokenType:   tokenType,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
