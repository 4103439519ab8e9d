package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/postapi/postapi/config"
	"github.com/postapi/postapi/services"
	"github.com/postapi/postapi/utils"
)

const (
	// ContextPrincipalKey stores the services.Principal of the request.
	ContextPrincipalKey = "principal"
	// ContextTokenKey stores the raw bearer token so it can be revoked on logout.
	ContextTokenKey = "token"
	// ContextTokenExpiryKey stores the token's expiration time.
	ContextTokenExpiryKey = "token_expires_at"
)

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			return
		}
		if code, msg := authenticate(ctx, authHeader); code != 0 {
			utils.Error(ctx, http.StatusUnauthorized, code, msg)
			return
		}
		ctx.Next()
	}
}

// AuthOptional resolves the principal when a valid token is present. Missing,
// malformed, expired or revoked tokens all continue as the anonymous principal.
func AuthOptional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			ctx.Set(ContextPrincipalKey, services.Anonymous())
			ctx.Next()
			return
		}
		if code, msg := authenticate(ctx, authHeader); code != 0 {
			utils.Sugar.Debugw("optional auth ignored token", "code", code, "reason", msg, "path", ctx.FullPath())
			ctx.Set(ContextPrincipalKey, services.Anonymous())
		}
		ctx.Next()
	}
}

// authenticate stores the principal and token on success. On failure it
// returns the business code and message and leaves the context untouched.
func authenticate(ctx *gin.Context, authHeader string) (int, string) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return 40102, "invalid authorization header format"
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return 40103, "empty bearer token"
	}

	if utils.IsTokenRevoked(ctx.Request.Context(), tokenString) {
		return 40104, "token revoked"
	}

	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		return 40105, "invalid token"
	}

	ctx.Set(ContextPrincipalKey, services.Principal{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		Admin:    config.Get().IsAdminUsername(claims.Username),
	})
	ctx.Set(ContextTokenKey, tokenString)
	if claims.ExpiresAt != nil {
		ctx.Set(ContextTokenExpiryKey, claims.ExpiresAt.Time)
	}
	return 0, ""
}

// PrincipalFrom returns the request principal, anonymous when none was set.
func PrincipalFrom(ctx *gin.Context) services.Principal {
	if v, ok := ctx.Get(ContextPrincipalKey); ok {
		if p, ok := v.(services.Principal); ok {
			return p
		}
	}
	return services.Anonymous()
}

// TokenFrom returns the bearer token and its expiry for an authenticated request.
func TokenFrom(ctx *gin.Context) (string, time.Time, bool) {
	token := ctx.GetString(ContextTokenKey)
	if token == "" {
		return "", time.Time{}, false
	}
	expires, _ := ctx.Get(ContextTokenExpiryKey)
	at, _ := expires.(time.Time)
	return token, at, true
}
