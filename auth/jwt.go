package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cityreport/models"
	"cityreport/session"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "cityreport-api"

// Claims represents the JWT claims
type Claims struct {
	UserID    string          `json:"user_id"`
	Email     string          `json:"email"`
	Role      models.UserRole `json:"role"`
	SessionID string          `json:"sid"` // SHA-256 of the session token
	jwt.RegisteredClaims
}

// TokenIssuer wraps a session into a signed bearer token
type TokenIssuer struct {
	secretKey []byte
	now       func() time.Time
}

// NewTokenIssuer creates a new token issuer
func NewTokenIssuer(secretKey string) *TokenIssuer {
	return &TokenIssuer{secretKey: []byte(secretKey), now: time.Now}
}

// Issue signs a token that expires with the session's absolute deadline
func (m *TokenIssuer) Issue(sess *models.Session) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:    sess.User.ID,
		Email:     sess.User.Email,
		Role:      sess.User.Role,
		SessionID: session.TokenDigest(sess.Token),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   sess.User.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Validate validates a token and returns the claims
func (m *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// ExtractToken extracts the token from the Authorization header
// Expected format: "Bearer <token>"
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header is empty")
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return "", errors.New("invalid authorization header format")
	}

	return token, nil
}
