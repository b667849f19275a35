package handler

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"auth_api/internal/auth"
	"auth_api/internal/models"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

const (
	msgNoToken      = "No token provided"
	msgTokenExpired = "Token expired"
	msgInvalidToken = "Invalid token"
	msgUnauthorized = "Unauthorized"
	msgForbidden    = "Forbidden: You do not have permission to access this resource"
	msgAdminOnly    = "Admin access required"
)

// bearerToken accepts exactly "Bearer <token>".
func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// RequireAuth rejects requests without a valid access token and stores the
// caller's identity in the context.
func RequireAuth(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			newErrorResponse(c, http.StatusUnauthorized, msgNoToken)

			return
		}

		claims, err := tokens.VerifyAccessToken(tokenStr)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				newErrorResponse(c, http.StatusUnauthorized, msgTokenExpired)

				return
			}

			newErrorResponse(c, http.StatusUnauthorized, msgInvalidToken)

			return
		}

		c.Set(identityKey, claims.Identity())

		c.Next()
	}
}

// OptionalAuth attaches an identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := tokens.VerifyAccessToken(tokenStr); err == nil {
				c.Set(identityKey, claims.Identity())
			}
		}

		c.Next()
	}
}

// RequireRole must run after RequireAuth. Roles come from the token claims,
// so a role change applies from the user's next login or refresh.
func RequireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFrom(c)
		if !ok {
			newErrorResponse(c, http.StatusUnauthorized, msgUnauthorized)

			return
		}

		if !slices.Contains(allowed, identity.Role) {
			newErrorResponse(c, http.StatusForbidden, msgForbidden)

			return
		}

		c.Next()
	}
}

func IsAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFrom(c)
		if !ok {
			newErrorResponse(c, http.StatusUnauthorized, msgUnauthorized)

			return
		}

		if identity.Role != models.RoleAdmin {
			newErrorResponse(c, http.StatusForbidden, msgAdminOnly)

			return
		}

		c.Next()
	}
}

func identityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}

	identity, ok := v.(models.Identity)
	return identity, ok
}
