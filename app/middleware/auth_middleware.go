// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/videostreampro/adserver/app/dto"
	"github.com/videostreampro/adserver/app/services"
)

// AuthMiddleware handles bearer token validation for the team-scoped
// management endpoints
type AuthMiddleware struct {
	tokenService  services.TokenService
	authClient    services.AuthClient
	identityCache services.IdentityCache
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService, authClient services.AuthClient, identityCache services.IdentityCache) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService:  tokenService,
		authClient:    authClient,
		identityCache: identityCache,
	}
}

// Authenticate is the middleware function that validates bearer tokens
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok, resp := bearerToken(c)
		if !ok {
			return resp
		}

		claims, err := m.tokenService.ValidateAccessToken(token)
		if err != nil {
			var errorCode string
			var message string

			if errors.Is(err, services.ErrTokenExpired) {
				errorCode = "TOKEN_EXPIRED"
				message = "Access token has expired"
			} else if errors.Is(err, services.ErrTokenInvalid) {
				errorCode = "TOKEN_INVALID"
				message = "Invalid access token"
			} else {
				errorCode = "TOKEN_VALIDATION_FAILED"
				message = "Token validation failed"
			}

			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: message,
				Error: dto.ErrorDetail{
					Code: errorCode,
				},
			})
		}

		// Store user information in context for downstream handlers
		c.Locals("user_id", claims.UserID)
		c.Locals("token_id", claims.TokenID)
		c.Locals("token_claims", claims)

		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// OptionalViewerAuth resolves a viewer bearer token against the external
// identity provider when one is present. Serving never gates on it; the
// verified identity only enriches the impression. Lookups go through the
// Redis cache first.
func (m *AuthMiddleware) OptionalViewerAuth() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Next()
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return c.Next()
		}

		if m.identityCache != nil {
			if identity, err := m.identityCache.Get(c.Context(), token); err == nil && identity != nil {
				c.Locals("viewer_id", identity.UserID)
				return c.Next()
			}
		}

		if m.authClient == nil {
			return c.Next()
		}
		identity, err := m.authClient.VerifyToken(c.Context(), token)
		if err != nil {
			// Unverifiable viewers still get ads, just anonymously.
			return c.Next()
		}

		if m.identityCache != nil {
			_ = m.identityCache.Set(c.Context(), token, identity)
		}
		c.Locals("viewer_id", identity.UserID)
		return c.Next()
	}
}

// bearerToken extracts the bearer token; when ok is false the 401
// response has already been written and resp must be returned.
func bearerToken(c fiber.Ctx) (token string, ok bool, resp error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false, c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Authorization header is required",
			Error: dto.ErrorDetail{
				Code: "MISSING_AUTHORIZATION_HEADER",
			},
		})
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false, c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Invalid authorization header format. Expected 'Bearer <token>'",
			Error: dto.ErrorDetail{
				Code: "INVALID_AUTHORIZATION_FORMAT",
			},
		})
	}

	token = strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", false, c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
			Success: false,
			Message: "Access token is required",
			Error: dto.ErrorDetail{
				Code: "MISSING_ACCESS_TOKEN",
			},
		})
	}
	return token, true, nil
}

// GetUserIDFromContext extracts the authenticated user ID from the request context
func GetUserIDFromContext(c fiber.Ctx) (string, bool) {
	userID, ok := c.Locals("user_id").(string)
	return userID, ok && userID != ""
}

// GetViewerIDFromContext extracts the optionally verified viewer ID
func GetViewerIDFromContext(c fiber.Ctx) (string, bool) {
	viewerID, ok := c.Locals("viewer_id").(string)
	return viewerID, ok && viewerID != ""
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.AccessTokenClaims, bool) {
	claims, ok := c.Locals("token_claims").(*services.AccessTokenClaims)
	return claims, ok
}
