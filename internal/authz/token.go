package authz

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
)

// Claims is the bearer token payload issued by the account service.
type Claims struct {
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	DriverID string `json:"driverId,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HMAC-signed bearer tokens.
type TokenVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewTokenVerifier creates a verifier for the shared secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), now: time.Now}
}

// Verify parses the token and returns the actor it describes.
func (v *TokenVerifier) Verify(raw string) (domain.Actor, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return domain.Actor{}, fmt.Errorf("%w: missing token", apperr.ErrUnauthenticated)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, fmt.Errorf("%w: token expired", apperr.ErrUnauthenticated)
		}
		return domain.Actor{}, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
	}

	actor := domain.Actor{
		UserID:   claims.UserID,
		Role:     domain.Role(claims.Role),
		DriverID: claims.DriverID,
	}
	if actor.UserID == "" || !actor.Role.Valid() {
		return domain.Actor{}, fmt.Errorf("%w: incomplete claims", apperr.ErrUnauthenticated)
	}
	if actor.Role == domain.RoleDriver && actor.DriverID == "" {
		return domain.Actor{}, fmt.Errorf("%w: driver token without driverId", apperr.ErrUnauthenticated)
	}
	return actor, nil
}

// Issue signs a token for the actor. Used by tests and local tooling.
func (v *TokenVerifier) Issue(a domain.Actor, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		UserID:   a.UserID,
		Role:     string(a.Role),
		DriverID: a.DriverID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
