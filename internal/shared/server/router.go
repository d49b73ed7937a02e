package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hiring-backend/internal/applications"
	"hiring-backend/internal/interviews"
	"hiring-backend/internal/jobs"
	"hiring-backend/internal/scoring"
	"hiring-backend/internal/shared/config"
	"hiring-backend/internal/shared/metrics"
	"hiring-backend/internal/shared/server/middleware"
	"hiring-backend/internal/shared/server/respond"
	"hiring-backend/internal/shared/storage/cache"
	"hiring-backend/internal/shared/storage/db"
	"hiring-backend/internal/webhooks"
)

// RouterDeps carries the handlers and handles the router needs.
type RouterDeps struct {
	Config       config.Config
	DB           *db.Handle
	Cache        *cache.Handle
	Jobs         *jobs.Handler
	Applications *applications.Handler
	Interviews   *interviews.Handler
	Scoring      *scoring.Handler
	Webhooks     *webhooks.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if !config.IsDevLike(deps.Config.Env) {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
	)

	r.GET("/health", health(deps))
	r.GET("/metrics", metrics.Handler())

	// Machine callers authenticate with signatures or the internal token.
	if deps.Webhooks != nil {
		deps.Webhooks.RegisterRoutes(&r.RouterGroup)
	}
	if deps.Scoring != nil {
		deps.Scoring.RegisterRoutes(&r.RouterGroup)
	}

	api := r.Group("/", middleware.Auth())
	if deps.Jobs != nil {
		deps.Jobs.RegisterRoutes(api)
	}
	if deps.Applications != nil {
		deps.Applications.RegisterRoutes(api)
	}
	if deps.Interviews != nil {
		deps.Interviews.RegisterRoutes(api)
	}

	return r
}

// HealthResponse reports dependency reachability.
type HealthResponse struct {
	OK    bool   `json:"ok"`
	DB    string `json:"db"`
	Redis string `json:"redis"`
}

func health(deps RouterDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		out := HealthResponse{OK: true, DB: "memory", Redis: "memory"}
		if deps.DB != nil {
			out.DB = "ok"
			if err := deps.DB.Ping(ctx); err != nil {
				out.OK, out.DB = false, err.Error()
			}
		}
		if deps.Cache != nil {
			out.Redis = "ok"
			if err := deps.Cache.Ping(ctx); err != nil {
				out.OK, out.Redis = false, err.Error()
			}
		}
		status := http.StatusOK
		if !out.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, out)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
