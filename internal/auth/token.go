package auth

import (
	"errors"
	"fmt"
	"time"

	"auth_api/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	guuid "github.com/google/uuid"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the payload of both token kinds. Refresh tokens carry only UserID.
type Claims struct {
	UserID uuid.UUID `json:"id"`
	Email  string    `json:"email,omitempty"`
	Role   string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() models.Identity {
	return models.Identity{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

// TokenIssuer signs access and refresh tokens with separate secrets.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (i *TokenIssuer) IssueAccessToken(user models.User) (string, error) {
	claims := &Claims{
		UserID:           user.ID,
		Email:            user.Email,
		Role:             user.Role,
		RegisteredClaims: i.registered(i.accessTTL),
	}
	return sign(claims, i.accessSecret)
}

func (i *TokenIssuer) IssueRefreshToken(user models.User) (string, error) {
	claims := &Claims{
		UserID:           user.ID,
		RegisteredClaims: i.registered(i.refreshTTL),
	}
	return sign(claims, i.refreshSecret)
}

func (i *TokenIssuer) VerifyAccessToken(token string) (*Claims, error) {
	return Verify(token, i.accessSecret)
}

func (i *TokenIssuer) VerifyRefreshToken(token string) (*Claims, error) {
	return Verify(token, i.refreshSecret)
}

// jti makes every token unique even when issued within the same second.
func (i *TokenIssuer) registered(ttl time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		ID:        guuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func sign(claims *Claims, secret []byte) (string, error) {
	const op = "auth.sign"

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Verify checks signature and expiry only. It returns ErrTokenExpired or
// ErrInvalidToken on failure.
func Verify(tokenStr string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
