package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/hiring-backend/internal/response"
	"github.com/stemsi/hiring-backend/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

// RequireCandidateJWT validates a candidate JWT from the Authorization header.
func RequireCandidateJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireToken(authService, service.TokenTypeCandidate, bearerOrQuery)
}

// RequireAdminJWT validates a recruiter JWT from the Authorization header, or
// from ?token= for EventSource clients.
func RequireAdminJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireToken(authService, service.TokenTypeAdmin, bearerOrQuery)
}

// RequireCandidateWSAuth validates a candidate JWT from ?token=. Browsers
// cannot set headers on a WebSocket handshake.
func RequireCandidateWSAuth(authService *service.AuthService) gin.HandlerFunc {
	return requireToken(authService, service.TokenTypeCandidate, func(c *gin.Context) string {
		return c.Query("token")
	})
}

func requireToken(authService *service.AuthService, want service.TokenType, extract func(*gin.Context) string) gin.HandlerFunc {
	denied := response.ErrCandidateAccessOnly
	if want == service.TokenTypeAdmin {
		denied = response.ErrAdminAccessOnly
	}

	return func(c *gin.Context) {
		tokenStr := extract(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := authService.ValidateToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if claims.TokenType != want {
			response.AbortFail(c, http.StatusForbidden, denied)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

var errNoBearer = errors.New("no bearer token")

func bearer(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
		return parts[1], nil
	}
	return "", errNoBearer
}

func bearerOrQuery(c *gin.Context) string {
	if tok, err := bearer(c.GetHeader("Authorization")); err == nil {
		return tok
	}
	// Fallback for EventSource (SSE) which cannot send headers
	return c.Query("token")
}
