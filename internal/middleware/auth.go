package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"licitacao/internal/model"
	"licitacao/internal/service"
	"licitacao/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	accessTokenCookie = "access_token"
	actorKey          = "actor"
)

// PermissionSource resolves the permission codes granted to a role.
type PermissionSource interface {
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
}

var (
	jwtSecret []byte
	permSrc   PermissionSource
)

// InitAuth sets the signing secret and the permission source used by the
// auth middleware. It must run before routes are served.
func InitAuth(secret string, src PermissionSource) {
	jwtSecret = []byte(secret)
	permSrc = src
	ClearPermissionCache("")
}

// ParseToken verifies an HS256 session token and returns its claims.
func ParseToken(tokenString string) (*service.AuthClaims, error) {
	if len(jwtSecret) == 0 {
		return nil, errors.New("auth middleware not initialized")
	}
	claims := &service.AuthClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// SetTokenCookie stores the session token as an HttpOnly cookie.
func SetTokenCookie(c *gin.Context, token string, ttl time.Duration) {
	sameSite, secure := cookiePolicy()
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, token, int(ttl.Seconds()), "/", "", secure, true)
}

// ClearTokenCookie removes the session cookie.
func ClearTokenCookie(c *gin.Context) {
	sameSite, secure := cookiePolicy()
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", secure, true)
}

// Release builds serve the SPA cross-origin, which needs SameSite=None over TLS.
func cookiePolicy() (http.SameSite, bool) {
	if gin.Mode() == gin.ReleaseMode {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// tokenFromRequest reads the Bearer header first, then the session cookie.
func tokenFromRequest(c *gin.Context) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", errors.New("Invalid authorization format. Expected 'Bearer <token>'")
		}
		return parts[1], nil
	}
	if tokenString, err := c.Cookie(accessTokenCookie); err == nil && tokenString != "" {
		return tokenString, nil
	}
	return "", errors.New("Authorization is missing")
}

// authenticate verifies the request token and stores the caller in the
// context. It aborts with 401 and returns false on failure.
func authenticate(c *gin.Context) (service.Actor, bool) {
	tokenString, err := tokenFromRequest(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return service.Actor{}, false
	}

	claims, err := ParseToken(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
		return service.Actor{}, false
	}

	actor, err := claims.Actor()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
		return service.Actor{}, false
	}

	c.Set(actorKey, actor)
	return actor, true
}

// ActorFrom returns the caller stored by one of the auth middlewares.
func ActorFrom(c *gin.Context) (service.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return service.Actor{}, false
	}
	actor, ok := v.(service.Actor)
	return actor, ok
}

// RequireAuth accepts any valid session token.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

// RequireRole Middleware validates the JWT token and checks if the user's role exists in the allowedRoles list
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := authenticate(c)
		if !ok {
			return
		}

		roleAllowed := false
		for _, role := range allowedRoles {
			if actor.Role == role {
				roleAllowed = true
				break
			}
		}
		if !roleAllowed {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Next()
	}
}

// --- Permission-based middleware ---

// permCacheEntry stores cached permission codes for a role with TTL
type permCacheEntry struct {
	codes     []string
	expiresAt time.Time
}

var (
	permCache    sync.Map // roleName -> permCacheEntry
	permCacheTTL = 5 * time.Minute
)

// RequirePermission validates the JWT and checks that the caller's role holds
// every required permission code. Admin always passes.
func RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := authenticate(c)
		if !ok {
			return
		}
		if actor.Role == model.RoleAdmin {
			c.Next()
			return
		}

		userPerms, err := PermissionsForRole(c.Request.Context(), actor.Role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}

		permSet := make(map[string]bool, len(userPerms))
		for _, p := range userPerms {
			permSet[p] = true
		}
		for _, required := range requiredPerms {
			if !permSet[required] {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+required+"'"))
				return
			}
		}

		c.Next()
	}
}

// PermissionsForRole returns cached or freshly loaded permission codes for a role.
func PermissionsForRole(ctx context.Context, roleName string) ([]string, error) {
	if entry, ok := permCache.Load(roleName); ok {
		cached := entry.(permCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.codes, nil
		}
	}

	if permSrc == nil {
		return nil, fmt.Errorf("permission middleware not initialized")
	}

	codes, err := permSrc.GetPermissionsByRoleName(ctx, roleName)
	if err != nil {
		return nil, err
	}

	permCache.Store(roleName, permCacheEntry{
		codes:     codes,
		expiresAt: time.Now().Add(permCacheTTL),
	})
	return codes, nil
}

// ClearPermissionCache removes cached permissions for a specific role (or all roles if empty)
func ClearPermissionCache(roleName string) {
	if roleName == "" {
		permCache.Range(func(key, _ interface{}) bool {
			permCache.Delete(key)
			return true
		})
		return
	}
	permCache.Delete(roleName)
}
