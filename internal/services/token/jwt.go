package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/config"
	"github.com/authplane/authplane/internal/db/bunx"
)

// Claims carried by both access and refresh tokens. The two kinds are told
// apart by signing secret, not by a claim: a refresh token never validates
// against the access secret and vice versa.
type Claims struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Domain   string `json:"domain,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 token pairs.
type Signer struct {
	cfg config.JWTConfig
}

func NewSigner(cfg config.JWTConfig) *Signer {
	return &Signer{cfg: cfg}
}

// IssuePair signs a fresh access+refresh pair for the principal. Each token
// gets its own jti so re-issued pairs never collide on the unique
// refresh_token column.
func (s *Signer) IssuePair(uid, username, domain string) (access, refresh string, err error) {
	now := time.Now()
	access, err = s.sign(uid, username, domain, now, s.cfg.AccessTTL, s.cfg.AccessSecret)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}
	refresh, err = s.sign(uid, username, domain, now, s.cfg.RefreshTTL, s.cfg.RefreshSecret)
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}
	return access, refresh, nil
}

func (s *Signer) sign(uid, username, domain string, now time.Time, ttl time.Duration, secret string) (string, error) {
	claims := Claims{
		UID:      uid,
		Username: username,
		Domain:   domain,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        bunx.NewUUIDv7(),
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyAccess validates an access token and returns its claims.
func (s *Signer) VerifyAccess(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.cfg.AccessSecret)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (s *Signer) VerifyRefresh(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.cfg.RefreshSecret)
}

func (s *Signer) verify(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, apperr.BadRequest("invalid token: %v", err)
	}
	if !token.Valid {
		return nil, apperr.BadRequest("invalid token")
	}
	return claims, nil
}
