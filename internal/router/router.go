package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/physio-api/internal/handler"
	"github.com/jwalitptl/physio-api/internal/handler/audit"
	"github.com/jwalitptl/physio-api/internal/handler/auth"
	"github.com/jwalitptl/physio-api/internal/handler/health"
	"github.com/jwalitptl/physio-api/internal/handler/patient"
	"github.com/jwalitptl/physio-api/internal/handler/prometheus"
	"github.com/jwalitptl/physio-api/internal/handler/record"
	"github.com/jwalitptl/physio-api/internal/handler/search"
	"github.com/jwalitptl/physio-api/internal/handler/therapy"
	"github.com/jwalitptl/physio-api/internal/handler/therapytype"
	"github.com/jwalitptl/physio-api/internal/handler/user"
	"github.com/jwalitptl/physio-api/internal/middleware"
	apperrors "github.com/jwalitptl/physio-api/pkg/errors"
)

// Handler is a resource handler mounted under /api behind the policy guard.
type Handler interface {
	RegisterRoutes(r *gin.RouterGroup, guard handler.Guard)
}

type Handlers struct {
	Auth         *auth.Handler
	Users        *user.Handler
	Patients     *patient.Handler
	Records      *record.Handler
	TherapyTypes *therapytype.Handler
	Therapies    *therapy.Handler
	Search       *search.Handler
	Audit        *audit.Handler
	Health       *health.Handler
	Metrics      *prometheus.Handler
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

type Config struct {
	Debug          bool
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	RateLimit      RateLimitConfig
	CORSOrigins    []string
	// Tracing enables otelgin spans named after ServiceName.
	Tracing     bool
	ServiceName string
}

type Router struct {
	engine *gin.Engine
}

func New(cfg Config, authMW *middleware.AuthMiddleware, h Handlers) *Router {
	middleware.SetupValidation()

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	if h.Metrics != nil {
		engine.Use(h.Metrics.Middleware())
	}
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(cfg.Debug),
		middleware.Recovery(),
	)
	if cfg.Tracing {
		engine.Use(otelgin.Middleware(cfg.ServiceName))
	}
	engine.Use(
		middleware.RequestInfo(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)),
	)
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		})
		engine.Use(limiter.RateLimit())
	}
	engine.Use(
		middleware.SizeLimit(cfg.MaxBodyBytes),
		middleware.Timeout(cfg.RequestTimeout),
	)

	engine.NoRoute(func(c *gin.Context) {
		handler.RespondError(c, apperrors.NotFound("route", nil))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusMethodNotAllowed)
	})

	if h.Health != nil {
		h.Health.RegisterRoutes(engine)
	}
	if h.Metrics != nil {
		engine.GET("/metrics", h.Metrics.Handler())
	}

	api := engine.Group("/api")
	if h.Auth != nil {
		h.Auth.RegisterRoutes(api, authMW.Authenticate())
	}

	guard := authMW.Guard()
	for _, rh := range h.resources() {
		rh.RegisterRoutes(api, guard)
	}

	return &Router{engine: engine}
}

func (h Handlers) resources() []Handler {
	var out []Handler
	add := func(ok bool, rh Handler) {
		if ok {
			out = append(out, rh)
		}
	}
	add(h.Users != nil, h.Users)
	add(h.Patients != nil, h.Patients)
	add(h.Records != nil, h.Records)
	add(h.TherapyTypes != nil, h.TherapyTypes)
	add(h.Therapies != nil, h.Therapies)
	add(h.Search != nil, h.Search)
	add(h.Audit != nil, h.Audit)
	return out
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}
