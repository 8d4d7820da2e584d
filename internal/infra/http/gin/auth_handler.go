package ginserver

import (
	"context"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"mujthriftz/internal/app/dto"
	authsvc "mujthriftz/internal/app/services/auth"
	wishlistsvc "mujthriftz/internal/app/services/wishlist"
)

type AuthHTTP interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
	LogoutAll(c *gin.Context)
	Me(c *gin.Context)
}

// AuthHandler clears the device wishlist every time the account behind that
// device changes, so saved items never carry over to the next student.
type AuthHandler struct {
	Service  *authsvc.Service
	Wishlist *wishlistsvc.Service
	Logger   *slog.Logger
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}
	device := deviceScope(c)
	result, err := h.Service.Register(c.Request.Context(), authsvc.RegisterParams{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		DeviceID:    device,
	})
	if err != nil {
		respondError(c, h.Logger, err, "auth.register")
		return
	}
	h.clearWishlist(c.Request.Context(), device)
	c.JSON(http.StatusCreated, dto.NewAuthResponse(result.User, result.Token))
}

func (h AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	device := deviceScope(c)
	result, err := h.Service.Login(c.Request.Context(), authsvc.LoginParams{
		Email:    req.Email,
		Password: req.Password,
		DeviceID: device,
	})
	if err != nil {
		respondError(c, h.Logger, err, "auth.login")
		return
	}
	h.clearWishlist(c.Request.Context(), device)
	c.JSON(http.StatusOK, dto.NewAuthResponse(result.User, result.Token))
}

func (h AuthHandler) Logout(c *gin.Context) {
	if !h.available(c) {
		return
	}
	token := extractBearerToken(c.GetHeader("Authorization"))
	if p, ok := currentPrincipal(c); ok {
		token = p.Token
	}
	device, err := h.Service.Logout(c.Request.Context(), token)
	if err != nil {
		respondError(c, h.Logger, err, "auth.logout")
		return
	}
	if scope := deviceScope(c); scope != "" {
		device = scope
	}
	h.clearWishlist(c.Request.Context(), device)
	c.Status(http.StatusNoContent)
}

// LogoutAll signs the caller out on every device.
func (h AuthHandler) LogoutAll(c *gin.Context) {
	if !h.available(c) {
		return
	}
	p, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.Service.LogoutEverywhere(c.Request.Context(), p.ID); err != nil {
		respondError(c, h.Logger, err, "auth.logout_all")
		return
	}
	h.clearWishlist(c.Request.Context(), deviceScope(c))
	c.Status(http.StatusNoContent)
}

func (h AuthHandler) Me(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": dto.UserProfile{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.Name,
		PhotoURL:    p.PhotoURL,
		Roles:       append([]string(nil), p.Roles...),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}})
}

func (h AuthHandler) available(c *gin.Context) bool {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auth service unavailable"})
		return false
	}
	return true
}

func (h AuthHandler) bind(c *gin.Context, req any) bool {
	if !h.available(c) {
		return false
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

func (h AuthHandler) clearWishlist(ctx context.Context, scope string) {
	if h.Wishlist == nil || scope == "" {
		return
	}
	if err := h.Wishlist.Invalidate(ctx, scope); err != nil && h.Logger != nil {
		h.Logger.Warn("wishlist invalidation failed", "scope", scope, "error", err)
	}
}

var _ AuthHTTP = (*AuthHandler)(nil)
