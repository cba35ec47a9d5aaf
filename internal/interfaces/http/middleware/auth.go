package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/skininsight/backend/internal/infrastructure/auth"
	"github.com/skininsight/backend/internal/infrastructure/logger"
	"github.com/skininsight/backend/internal/interfaces/http/dto"
)

// Auth context keys
const (
	AuthIdentityKey = "auth_identity"
	AuthSubjectKey  = "auth_subject"
	AuthEmailKey    = "auth_email"
	// AuthOrganizationKey is set by handlers once the caller's profile
	// has been resolved to an organization.
	AuthOrganizationKey = "auth_organization"
	AuthHeaderKey       = "Authorization"
)

// AuthMiddlewareConfig holds configuration for the auth middleware
type AuthMiddlewareConfig struct {
	// Verifier is required for token validation
	Verifier *auth.Verifier
	// SkipPaths are paths that don't require authentication
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that don't require authentication
	SkipPathPrefixes []string
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultAuthConfig returns default auth middleware configuration
func DefaultAuthConfig(verifier *auth.Verifier) AuthMiddlewareConfig {
	return AuthMiddlewareConfig{
		Verifier: verifier,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/ready",
			"/api/v1/health",
		},
		SkipPathPrefixes: []string{
			"/api/v1/system",
		},
	}
}

// AuthMiddleware creates bearer token authentication middleware
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return AuthMiddlewareWithConfig(DefaultAuthConfig(verifier))
}

// AuthMiddlewareWithConfig creates bearer token authentication middleware
// with custom config. The verified subject is stored in the gin context
// and in the request logger context for downstream handlers.
func AuthMiddlewareWithConfig(cfg AuthMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		identity, err := cfg.Verifier.VerifyAuthorization(c.GetHeader(AuthHeaderKey))
		if err != nil {
			handleAuthError(c, cfg, err)
			return
		}

		c.Set(AuthIdentityKey, identity)
		c.Set(AuthSubjectKey, identity.Subject)
		c.Set(AuthEmailKey, identity.Email)

		// Propagate the subject into the request-scoped logger
		reqCtx := c.Request.Context()
		ctx, _ := logger.WithSubject(reqCtx, logger.FromContext(reqCtx), identity.Subject)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// handleAuthError answers 401 with an error code describing what was
// wrong with the credentials
func handleAuthError(c *gin.Context, cfg AuthMiddlewareConfig, err error) {
	if cfg.Logger != nil {
		cfg.Logger.Debug("Authentication rejected",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}

	code := dto.ErrCodeUnauthorized
	message := "Authentication required"
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		code = dto.ErrCodeUnauthorized
		message = "Missing bearer token"
	case errors.Is(err, auth.ErrExpiredToken):
		code = dto.ErrCodeTokenExpired
		message = "Token has expired"
	case errors.Is(err, auth.ErrMalformedToken), errors.Is(err, auth.ErrMissingSubject):
		code = dto.ErrCodeTokenInvalid
		message = "Invalid token"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(code, message))
}

// GetAuthSubject returns the verified token subject from the gin context
func GetAuthSubject(c *gin.Context) string {
	return c.GetString(AuthSubjectKey)
}

// GetAuthIdentity returns the full verified identity from the gin context
func GetAuthIdentity(c *gin.Context) (*auth.Identity, bool) {
	value, exists := c.Get(AuthIdentityKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*auth.Identity)
	return identity, ok
}
