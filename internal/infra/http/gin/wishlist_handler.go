package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"mujthriftz/internal/app/dto"
	wishlistsvc "mujthriftz/internal/app/services/wishlist"
)

// WishlistHandler works without a session; the device header is the scope.
type WishlistHandler struct {
	Service *wishlistsvc.Service
	Logger  *slog.Logger
}

func (h WishlistHandler) Get(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "wishlist unavailable"})
		return
	}
	scope := deviceScope(c)
	set, docs, err := h.Service.Resolve(c.Request.Context(), scope)
	if err != nil {
		respondError(c, h.Logger, err, "load wishlist", "scope", scope)
		return
	}
	resp := dto.Wishlist{IDs: set.IDs(), Items: make([]dto.Document, 0, len(docs))}
	for _, doc := range docs {
		resp.Items = append(resp.Items, dto.MapDocument(doc))
	}
	c.JSON(http.StatusOK, resp)
}

func (h WishlistHandler) Toggle(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "wishlist unavailable"})
		return
	}
	scope := deviceScope(c)
	id := c.Param("id")
	saved, set, err := h.Service.Toggle(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, h.Logger, err, "toggle wishlist", "scope", scope, "id", id)
		return
	}
	c.JSON(http.StatusOK, dto.WishlistToggle{ID: id, Saved: saved, Length: set.Len()})
}

var _ WishlistHTTP = (*WishlistHandler)(nil)
