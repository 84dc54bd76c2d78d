package api

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mr1hm/school-finance/internal/metrics"
	"github.com/mr1hm/school-finance/web"
)

type RouterOptions struct {
	CORSAllowOrigins []string
	HTTPMetrics      *metrics.HTTPMetrics
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// Router builds the gin engine with middleware, static assets and every route.
func (h *Handler) Router(opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(RequestLogger(), h.Recovery())
	if opts.HTTPMetrics != nil {
		router.Use(opts.HTTPMetrics.Middleware())
	}
	if len(opts.CORSAllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSAllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length", requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	static, err := fs.Sub(web.StaticFiles, "static")
	if err != nil {
		// only fails if the embed directive and the path disagree
		panic(err)
	}
	router.StaticFS("/static", http.FS(static))

	h.RegisterRoutes(router)
	return router
}
