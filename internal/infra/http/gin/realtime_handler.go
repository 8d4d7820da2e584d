package ginserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mujthriftz/internal/infra/realtime"
)

// RealtimeHandler upgrades /realtime to a websocket bound to the hub.
// Channels listed as ?channel= are joined up front; more can be joined over the socket.
type RealtimeHandler struct {
	Hub       *realtime.Hub
	Authorize realtime.Authorizer
	Origins   []string
	Logger    *slog.Logger
	// Base ends every open socket when cancelled; hijacked connections outlive server shutdown otherwise.
	Base context.Context
}

func (h RealtimeHandler) Connect(c *gin.Context) {
	principal, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime unavailable"})
		return
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		if h.Logger != nil {
			h.Logger.Debug("websocket upgrade failed", "error", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	if h.Base != nil {
		stop := context.AfterFunc(h.Base, cancel)
		defer stop()
	}
	logger := h.Logger
	if logger != nil {
		logger = logger.With("user_id", principal.ID, "request_id", c.GetString("request_id"))
	}
	h.Hub.Serve(ctx, conn, realtime.SessionConfig{
		User:      principal.ID,
		Authorize: h.Authorize,
		Channels:  c.QueryArray("channel"),
		Logger:    logger,
	})
}

func (h RealtimeHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.Origins) == 0 {
		return true
	}
	for _, allowed := range h.Origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

var _ RealtimeHTTP = (*RealtimeHandler)(nil)
