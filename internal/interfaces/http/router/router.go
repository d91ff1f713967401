package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ecomfin/backend/internal/infrastructure/auth"
	"github.com/ecomfin/backend/internal/infrastructure/config"
	"github.com/ecomfin/backend/internal/infrastructure/logger"
	"github.com/ecomfin/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar registers a handler's routes on a group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// PublicRouteRegistrar registers routes that stay outside the
// authenticated API group. External platforms calling us directly, such as
// marketplace webhooks, cannot carry one of our bearer tokens.
type PublicRouteRegistrar interface {
	RegisterPublicRoutes(rg *gin.RouterGroup)
}

// Router assembles the HTTP engine: global middleware, the health probe
// and the versioned API group behind authentication.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	public     []PublicRouteRegistrar
}

// New builds the engine with logging, recovery, CORS and body limits wired
func New(cfg config.HTTPConfig, log *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.CORS(cfg))
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return &Router{engine: engine, apiVersion: "v1"}
}

// Register queues a handler for mounting under the API group
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// RegisterPublic queues a handler's externally-called routes for mounting
// under the API prefix without authentication
func (r *Router) RegisterPublic(registrar PublicRouteRegistrar) *Router {
	r.public = append(r.public, registrar)
	return r
}

// Setup mounts every registered handler under the authenticated API group,
// the public registrars on an unauthenticated sibling group, and returns
// the finished engine
func (r *Router) Setup(jwtService *auth.JWTService) *gin.Engine {
	open := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.public {
		registrar.RegisterPublicRoutes(open)
	}

	api := r.engine.Group("/api/" + r.apiVersion)
	api.Use(middleware.JWTAuth(jwtService))
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
	return r.engine
}
