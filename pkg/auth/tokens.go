package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no authentication token provided")
	ErrInvalidToken = errors.New("invalid authentication token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims represents the JWT claims for a logged-in user.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// RevocationStore is the persistence behind token revocation.
type RevocationStore interface {
	RevokeToken(token string, expiresAt time.Time) error
	IsTokenRevoked(token string) (bool, error)
}

// TokenManager issues and verifies JWT session tokens.
type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
	revoked   RevocationStore
}

// NewTokenManager creates a token manager with the given signing secret
// and token lifetime. revoked may be nil to disable revocation checks.
func NewTokenManager(secretKey string, ttl time.Duration, revoked RevocationStore) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		revoked:   revoked,
	}
}

// TTL returns the lifetime applied to issued tokens.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// IssueToken generates a signed token for a user.
func (tm *TokenManager) IssueToken(userID, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(tm.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

// VerifyToken validates a token's signature, expiry, and revocation
// status, and returns its claims.
func (tm *TokenManager) VerifyToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if tm.revoked != nil {
		revoked, err := tm.revoked.IsTokenRevoked(tokenString)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrRevokedToken
		}
	}

	return claims, nil
}

// Revoke blacklists a token until its natural expiry.
func (tm *TokenManager) Revoke(tokenString string) error {
	if tm.revoked == nil {
		return nil
	}
	expiresAt := time.Now().Add(tm.ttl)
	if token, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{}); err == nil {
		if claims, ok := token.Claims.(*Claims); ok && claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
	}
	return tm.revoked.RevokeToken(tokenString, expiresAt)
}

// ExtractBearerToken pulls the token from an Authorization header value.
// Accepts both "Bearer <token>" and a bare token.
func ExtractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrNoToken
	}
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 {
		if !strings.EqualFold(parts[0], "Bearer") {
			return "", ErrInvalidToken
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			return "", ErrNoToken
		}
		return token, nil
	}
	// A scheme word with nothing after it is not a token.
	if strings.EqualFold(header, "Bearer") {
		return "", ErrNoToken
	}
	return header, nil
}
