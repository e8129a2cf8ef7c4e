package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/logger"
	"github.com/gin-contrib/pprof"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/config"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/controllers"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/httputil"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/syncer"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// This is set at build time with -ldflags "-X github.com/morsecodescott/budget-tracker-app-sub000/internal/router.version=1.0.0"
var version = "0.0.0"

// Version returns the version of the backend.
func Version() string {
	return version
}

// collectors returns all Prometheus collectors of the application.
func collectors() []prometheus.Collector {
	c := []prometheus.Collector{requestCount, requestDuration}
	c = append(c, syncer.Collectors()...)
	return append(c, webhook.Collectors()...)
}

// Config sets up the router and its middlewares. The returned function
// unregisters the Prometheus metrics and must be called when the router
// is not used anymore.
func Config(cfg config.Config) (*gin.Engine, func(), error) {
	metrics := collectors()
	if err := registerPrometheusMetrics(metrics); err != nil {
		return nil, nil, err
	}
	teardown := func() {
		unregisterPrometheusMetrics(metrics)
	}

	// Set up the router and middlewares
	r := gin.New()

	// Don’t process X-Forwarded-For header as we do not do anything with
	// client IPs
	r.ForwardedByClientIP = false

	// Send a HTTP 405 (Method not allowed) for all paths where there is
	// a handler, but not for the specific method used
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(requestid.New())
	r.Use(URLMiddleware(cfg.APIURL))
	r.Use(MetricsMiddleware())
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "This HTTP method is not allowed for the endpoint you called"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "There is no endpoint at this path"})
	})
	r.Use(logger.SetLogger(
		logger.WithDefaultLevel(zerolog.InfoLevel),
		logger.WithClientErrorLevel(zerolog.InfoLevel),
		logger.WithServerErrorLevel(zerolog.ErrorLevel),
		logger.WithLogger(func(c *gin.Context, logger zerolog.Logger) zerolog.Logger {
			return logger.With().
				Str("request-id", requestid.Get(c)).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Int("status", c.Writer.Status()).
				Int("size", c.Writer.Size()).
				Str("user-agent", c.Request.UserAgent()).
				Logger()
		})))

	// CORS settings
	if len(cfg.CORSAllowOrigins) > 0 {
		log.Debug().Strs("CORS Allowed Origins", cfg.CORSAllowOrigins).Msg("Router")

		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowOrigins,
			AllowMethods:     []string{"OPTIONS", "GET", "POST", "DELETE"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", controllers.HeaderUserID},
			AllowCredentials: true,
		}))
	}

	// Disable the gin debug route printing as it clutters logs (and test logs)
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, numHandlers int) {}

	// Don’t trust any proxy. We do not process any client IPs,
	// therefore we don’t need to trust anyone here.
	_ = r.SetTrustedProxies([]string{})

	if cfg.APIURL != nil {
		log.Debug().Str("API Base URL", cfg.APIURL.String()).Str("Host", cfg.APIURL.Host).Str("Path", cfg.APIURL.Path).Msg("Router")
	}
	log.Info().Str("version", version).Msg("Router")

	return r, teardown, nil
}

// AttachRoutes attaches the API routes to the router group that is passed in.
func AttachRoutes(co controllers.Controller, group *gin.RouterGroup, enablePprof bool) {
	group.GET("", GetRoot)
	group.OPTIONS("", httputil.OptionsGet)
	group.GET("/version", GetVersion)
	group.OPTIONS("/version", httputil.OptionsGet)
	group.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// pprof performance profiles
	if enablePprof {
		pprof.RouteRegister(group, "debug/pprof")
	}

	co.RegisterHealthzRoutes(group.Group("/healthz"))

	v1 := group.Group("/v1")
	{
		v1.GET("", GetV1)
		v1.OPTIONS("", httputil.OptionsGet)
	}

	// Plaid does not send a user, it is looked up from the item
	co.RegisterWebhookRoutes(v1.Group("/webhooks"))

	user := v1.Group("", controllers.RequireUser())
	co.RegisterLinkRoutes(user.Group("/link-token"))
	co.RegisterItemRoutes(user.Group("/items"))
	co.RegisterTransactionRoutes(user.Group("/transactions"))
	co.RegisterEventRoutes(user.Group("/events"))
	co.RegisterDeviceRoutes(user.Group("/devices"))
}

type RootResponse struct {
	Links RootLinks `json:"links"`
}

type RootLinks struct {
	Healthz string `json:"healthz" example:"https://example.com/api/healthz"` // Health of the backend
	Version string `json:"version" example:"https://example.com/api/version"` // Endpoint returning the version of the backend
	Metrics string `json:"metrics" example:"https://example.com/api/metrics"` // Prometheus metrics
	V1      string `json:"v1" example:"https://example.com/api/v1"`           // List endpoint for all v1 endpoints
}

// @Summary      API root
// @Description  Entrypoint for the API, listing all endpoints
// @Tags         General
// @Success      200  {object}  RootResponse
// @Router       / [get]
func GetRoot(c *gin.Context) {
	url := baseURL(c)

	c.JSON(http.StatusOK, RootResponse{
		Links: RootLinks{
			Healthz: url + "/healthz",
			Version: url + "/version",
			Metrics: url + "/metrics",
			V1:      url + "/v1",
		},
	})
}

type VersionResponse struct {
	Data VersionObject `json:"data"` // Data object for the version endpoint
}

type VersionObject struct {
	Version string `json:"version" example:"1.1.0"` // the running version of the backend
}

// @Summary      API version
// @Description  Returns the software version of the API
// @Tags         General
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, VersionResponse{
		Data: VersionObject{
			Version: version,
		},
	})
}

type V1Response struct {
	Links V1Links `json:"links"` // Links for the v1 API
}

type V1Links struct {
	LinkToken    string `json:"linkToken" example:"https://example.com/api/v1/link-token"`       // Create Link tokens
	Items        string `json:"items" example:"https://example.com/api/v1/items"`                // Linked institutions
	Transactions string `json:"transactions" example:"https://example.com/api/v1/transactions"` // URL of transaction list endpoint
	Events       string `json:"events" example:"https://example.com/api/v1/events"`             // Server-Sent Events stream
	Devices      string `json:"devices" example:"https://example.com/api/v1/devices"`           // Push device registration
	Webhooks     string `json:"webhooks" example:"https://example.com/api/v1/webhooks/plaid"`   // Plaid webhook receiver
}

// @Summary      v1 API
// @Description  Returns general information about the v1 API
// @Tags         General
// @Success      200  {object}  V1Response
// @Router       /v1 [get]
func GetV1(c *gin.Context) {
	url := baseURL(c) + "/v1"

	c.JSON(http.StatusOK, V1Response{
		Links: V1Links{
			LinkToken:    url + "/link-token",
			Items:        url + "/items",
			Transactions: url + "/transactions",
			Events:       url + "/events",
			Devices:      url + "/devices",
			Webhooks:     url + "/webhooks/plaid",
		},
	})
}
