package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/khoji/backend/internal/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultTokenTTL   = 60 * time.Minute
	bearerPrefix      = "Bearer "
	defaultCookieName = "khoji_session"
)

var (
	ErrMissingSigningSecret = errors.New("auth: signing secret must be provided")
	ErrMissingIssuer        = errors.New("auth: issuer must be provided")
	ErrMissingAudience      = errors.New("auth: audience must be provided")
	ErrMissingSessionToken  = errors.New("auth: session token required")
	ErrInvalidSessionToken  = errors.New("auth: invalid session token")
	ErrExpiredSessionToken  = errors.New("auth: session token expired")
	ErrMissingSubjectClaim  = errors.New("auth: subject claim must be provided")
)

// SessionClaims is the JWT payload handed to the browser after login or signup.
type SessionClaims struct {
	UserEmail string `json:"user_email"`
	UserName  string `json:"user_name"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures the session token issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	CookieName    string
	Clock         func() time.Time
}

// TokenIssuer issues and validates HS256 session tokens.
type TokenIssuer struct {
	signingSecret []byte
	issuer        string
	audience      string
	ttl           time.Duration
	cookieName    string
	clock         func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with validated configuration.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, ErrMissingIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, ErrMissingAudience
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		cookieName = defaultCookieName
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		audience:      audience,
		ttl:           ttl,
		cookieName:    cookieName,
		clock:         clock,
	}, nil
}

// CookieName returns the cookie carrying the session token.
func (i *TokenIssuer) CookieName() string {
	return i.cookieName
}

// IssueSessionToken produces a signed JWT for the account and its lifetime in seconds.
func (i *TokenIssuer) IssueSessionToken(_ context.Context, account identity.Account) (string, int64, error) {
	if strings.TrimSpace(account.ID) == "" {
		return "", 0, ErrMissingSubjectClaim
	}
	tokenID, err := uuid.NewV7()
	if err != nil {
		return "", 0, err
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.ttl).UTC()

	claims := SessionClaims{
		UserEmail: account.Email,
		UserName:  account.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   account.ID,
			Issuer:    i.issuer,
			Audience:  []string{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ValidateToken ensures the session token is well formed and returns its claims.
func (i *TokenIssuer) ValidateToken(tokenString string) (SessionClaims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return SessionClaims{}, ErrMissingSessionToken
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return i.signingSecret, nil
		},
		jwt.WithAudience(i.audience),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, fmt.Errorf("%w: %w", ErrExpiredSessionToken, err)
		}
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return SessionClaims{}, ErrInvalidSessionToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return SessionClaims{}, ErrMissingSubjectClaim
	}
	return *claims, nil
}

// ValidateRequest reads the bearer token, falling back to the session cookie.
func (i *TokenIssuer) ValidateRequest(r *http.Request) (SessionClaims, error) {
	if r == nil {
		return SessionClaims{}, ErrMissingSessionToken
	}
	if header := r.Header.Get("Authorization"); header != "" {
		if !strings.HasPrefix(header, bearerPrefix) {
			return SessionClaims{}, ErrInvalidSessionToken
		}
		return i.ValidateToken(strings.TrimPrefix(header, bearerPrefix))
	}
	cookie, err := r.Cookie(i.cookieName)
	if err != nil || cookie == nil {
		return SessionClaims{}, ErrMissingSessionToken
	}
	return i.ValidateToken(cookie.Value)
}
