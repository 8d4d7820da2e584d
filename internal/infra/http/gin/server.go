package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"

	"mujthriftz/internal/infra/config"
	"mujthriftz/internal/infra/obs"
)

type ChatHTTP interface {
	StartConversation(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	Typing(c *gin.Context)
	MarkRead(c *gin.Context)
	ListConversations(c *gin.Context)
	UnreadCount(c *gin.Context)
}

type CatalogHTTP interface {
	Browse(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	Mine(c *gin.Context)
	UploadAsset(c *gin.Context)
}

type ProfileHTTP interface {
	PublicUser(c *gin.Context)
	Mine(c *gin.Context)
	Update(c *gin.Context)
}

type WishlistHTTP interface {
	Get(c *gin.Context)
	Toggle(c *gin.Context)
}

type SupportHTTP interface {
	Contact(c *gin.Context)
	Report(c *gin.Context)
}

type RealtimeHTTP interface {
	Connect(c *gin.Context)
}

type Handlers struct {
	Auth           AuthHTTP
	Chat           ChatHTTP
	Catalog        CatalogHTTP
	Profile        ProfileHTTP
	Wishlist       WishlistHTTP
	Support        SupportHTTP
	Realtime       RealtimeHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	router := NewRouter(cfg, obsMW, health, h)

	var handler http.Handler = router
	if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
		handler = httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow)(router)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine without the rate limiter or server wrapper.
func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if obsMW.Metrics != nil {
		router.GET("/metrics", gin.WrapH(obsMW.Metrics.Handler()))
	}
	if h.Realtime != nil {
		router.GET("/realtime", h.Realtime.Connect)
	}

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
		api.POST("/auth/logout/all", h.Auth.LogoutAll)
		api.GET("/auth/me", h.Auth.Me)
	}
	if h.Chat != nil {
		api.POST("/create-conversation", h.Chat.StartConversation)
		api.POST("/send-message", h.Chat.SendMessage)
		api.GET("/conversations/:id/messages", h.Chat.ListMessages)
		api.POST("/conversations/:id/typing", h.Chat.Typing)
		api.POST("/conversations/:id/mark-read", h.Chat.MarkRead)
		api.GET("/users/:id/conversations", h.Chat.ListConversations)
		api.GET("/users/:id/unread-count", h.Chat.UnreadCount)
	}
	if h.Profile != nil {
		api.GET("/users/:id", h.Profile.PublicUser)
		api.GET("/me/profile", h.Profile.Mine)
		api.PUT("/me/profile", h.Profile.Update)
	}
	if h.Catalog != nil {
		api.POST("/assets", h.Catalog.UploadAsset)
		api.GET("/me/catalog", h.Catalog.Mine)
		catalogGroup := api.Group("/catalog/:kind")
		catalogGroup.GET("", h.Catalog.Browse)
		catalogGroup.POST("", h.Catalog.Create)
		catalogGroup.GET("/:ref", h.Catalog.Get)
		catalogGroup.PATCH("/:ref", h.Catalog.Update)
		catalogGroup.DELETE("/:ref", h.Catalog.Delete)
	}
	if h.Wishlist != nil {
		api.GET("/wishlist", h.Wishlist.Get)
		api.POST("/wishlist/:id/toggle", h.Wishlist.Toggle)
	}
	if h.Support != nil {
		api.POST("/contact", h.Support.Contact)
		api.POST("/reports", h.Support.Report)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", deviceIDHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
