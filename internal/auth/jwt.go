package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Rejection reasons surfaced to the client when the handshake fails.
const (
	ReasonNoToken         = "NO_TOKEN"
	ReasonExpiredToken    = "EXPIRED_TOKEN"
	ReasonInvalidToken    = "INVALID_TOKEN"
	ReasonUserInfoMissing = "USER_INFO_MISSING"
)

var (
	// ErrNoToken is returned when the handshake carries no credential.
	ErrNoToken = errors.New("no token provided")
	// ErrTokenExpired is returned when the credential is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidToken is returned on bad signature or malformed payload.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserInfoMissing is returned when a valid token carries no user identity.
	ErrUserInfoMissing = errors.New("token has no user info")
)

// Reason maps a verification error to its handshake rejection reason.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return ReasonNoToken
	case errors.Is(err, ErrTokenExpired):
		return ReasonExpiredToken
	case errors.Is(err, ErrUserInfoMissing):
		return ReasonUserInfoMissing
	default:
		return ReasonInvalidToken
	}
}

// Claims represents JWT claims for Drift authentication.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Config holds token verification settings.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Gate verifies handshake credentials and resolves the connection identity.
type Gate struct {
	cfg *Config
}

// NewGate creates a connection gate with the given token settings.
func NewGate(cfg *Config) *Gate {
	return &Gate{cfg: cfg}
}

// Verify parses and validates a bearer token, returning the bound claims.
// The resolved user id is the sole identity for every later authorization
// check on the connection.
func (g *Gate) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.cfg.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if g.cfg.Issuer != "" && claims.Issuer != g.cfg.Issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}
	if g.cfg.Audience != "" {
		validAudience := false
		for _, aud := range claims.Audience {
			if aud == g.cfg.Audience {
				validAudience = true
				break
			}
		}
		if !validAudience {
			return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
		}
	}

	if claims.UserID == 0 {
		return nil, ErrUserInfoMissing
	}

	return claims, nil
}

// Mint creates a signed token for the given user. Used by the token issuing
// endpoint and by tests.
func (g *Gate) Mint(userID int64) (string, error) {
	now := time.Now()
	ttl := g.cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.cfg.Issuer,
			Audience:  jwt.ClaimStrings{g.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.cfg.Secret)
}
