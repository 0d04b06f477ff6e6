package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/DevDonal19/imparablesmujeres/internal/domain"
)

// DefaultTokenTTL is the fixed session lifetime. Tokens are never refreshed;
// expiry always forces a new login.
const DefaultTokenTTL = 4 * time.Hour

// TokenManager handles issuing and validating JWT tokens. It is the only
// component that knows the signing method and secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager. An empty secret is a configuration
// error and must stop the process before it serves traffic.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source, for tests.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

// TTL returns the configured token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Claims describes the signed JWT payload. The wire names (id, email, role,
// displayName, exp) are read by browser and CLI clients.
type Claims struct {
	UserID      string      `json:"id"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	DisplayName string      `json:"displayName"`
	jwt.RegisteredClaims
}

// User returns the public principal carried by the claims.
func (c *Claims) User() domain.UserView {
	return domain.UserView{
		ID:          c.UserID,
		Email:       c.Email,
		Role:        c.Role,
		DisplayName: c.DisplayName,
	}
}

// IssuedAtTime returns the iat claim as a time.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time.UTC()
}

// ExpiresAtTime returns the exp claim as a UTC time. Decoded claims carry
// time.Local, so both accessors normalize.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}

// Issue builds and signs a JWT for the principal. exp is exactly iat + TTL,
// both truncated to whole seconds as they appear on the wire.
func (tm *TokenManager) Issue(user domain.UserView) (string, *Claims, error) {
	issuedAt := tm.now().Truncate(time.Second)
	claims := &Claims{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(tm.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, claims, nil
}

// Verify checks signature and expiry and returns the claims. Failures are
// *Error values of KindTokenExpired or KindTokenInvalid.
func (tm *TokenManager) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, NewError(KindTokenExpired, err)
		}
		return nil, NewError(KindTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, NewError(KindTokenInvalid, errors.New("invalid token claims"))
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, NewError(KindTokenInvalid, errors.New("token missing principal"))
	}
	return claims, nil
}

// Unverified is what a client can read from a token it cannot verify. It is
// a hint for expiry UX only: the signature has not been checked, so nothing
// in it may be used to grant access.
type Unverified struct {
	UserID    string
	Role      domain.Role
	ExpiresAt time.Time
}

// Remaining returns the lifetime left at now; zero or negative means expired.
func (u Unverified) Remaining(now time.Time) time.Duration {
	return u.ExpiresAt.Sub(now)
}

// DecodeUnverified parses the token payload without checking its signature.
// It needs no secret and returns an error only for structurally broken
// tokens or a missing exp claim.
func DecodeUnverified(tokenStr string) (Unverified, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return Unverified{}, fmt.Errorf("decode token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return Unverified{}, errors.New("decode token: missing exp claim")
	}
	return Unverified{
		UserID:    claims.UserID,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
