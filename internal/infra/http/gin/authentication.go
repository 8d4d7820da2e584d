package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"mujthriftz/internal/app/services/auth"
	domainauth "mujthriftz/internal/domain/auth"
)

const (
	principalContextKey = "mujthriftz.principal"
	deviceIDHeader      = "X-Device-ID"
	realtimePath        = "/realtime"
)

// principal is the signed-in student behind a request.
type principal struct {
	ID        string
	Email     string
	Name      string
	PhotoURL  string
	Roles     []string
	Token     string
	Device    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AuthMiddleware struct {
	Service *auth.Service
	Logger  *slog.Logger
}

// Handle attaches the principal when a valid bearer token is present and lets
// anonymous requests through untouched. Browsers cannot set headers on a
// websocket handshake, so the realtime endpoint also reads ?token=.
func (m AuthMiddleware) Handle(c *gin.Context) {
	defer c.Next()
	if m.Service == nil {
		return
	}
	token := requestToken(c)
	if token == "" {
		return
	}
	resolved, err := m.Service.ResolveToken(c.Request.Context(), token)
	if err != nil {
		if m.Logger != nil && !errors.Is(err, domainauth.ErrSessionNotFound) {
			m.Logger.Debug("token rejected", "error", err)
		}
		return
	}
	student := resolved.User
	roles := make([]string, 0, len(student.Roles))
	for _, r := range student.Roles {
		roles = append(roles, string(r))
	}
	c.Set(principalContextKey, principal{
		ID:        string(student.ID),
		Email:     student.Email,
		Name:      student.DisplayName,
		PhotoURL:  student.PhotoURL,
		Roles:     roles,
		Token:     token,
		Device:    resolved.Session.DeviceID,
		CreatedAt: student.CreatedAt,
		UpdatedAt: student.UpdatedAt,
	})
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

// requireUser writes a 401 and reports false for anonymous requests.
func requireUser(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
	}
	return p, ok
}

func requestToken(c *gin.Context) string {
	if token := extractBearerToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if c.Request.URL.Path == realtimePath {
		return strings.TrimSpace(c.Query("token"))
	}
	return ""
}

func extractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// deviceScope keys the wishlist. The header wins; signed-in requests without
// it fall back to the device their session was opened on.
func deviceScope(c *gin.Context) string {
	if scope := strings.TrimSpace(c.GetHeader(deviceIDHeader)); scope != "" {
		return scope
	}
	if p, ok := currentPrincipal(c); ok {
		return p.Device
	}
	return ""
}
