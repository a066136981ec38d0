package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "github.com/stamns/Next-blog-sub000/api/v1"
	"github.com/stamns/Next-blog-sub000/internal/analytics"
	"github.com/stamns/Next-blog-sub000/internal/config"
	"github.com/stamns/Next-blog-sub000/internal/events"
	"github.com/stamns/Next-blog-sub000/internal/http"
	"github.com/stamns/Next-blog-sub000/internal/http/middleware"
)

// publicCORSConfig lets any blog origin post events.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// MountAppRoutes mounts the ingestion, dashboard and health routes.
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	logger := srv.GetLogger()

	// Rate limiting only applies in production; tests replay bursts.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(cfg.IngestRateLimitPerMinute),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	dashboardConfig := &cartridge.RouteConfig{
		EnableCORS: true,
		CORSConfig: publicCORSConfig,
		CustomMiddleware: []fiber.Handler{
			middleware.DashboardAPIKeyAuth(cfg.DashboardAPIKeyHash, logger),
		},
	}

	collector := events.NewCollector(srv.GetDBManager(), logger, cfg.SessionTimeout())
	ingest := v1.NewIngestHandler(collector, events.DefaultEnricher())
	dashboard := v1.NewDashboardHandler(cfg.ReportTimezone, cfg.RealtimeWindowMinutes)

	// Health check endpoint
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === PUBLIC INGESTION ===
	srv.Post("/api/analytics/track", ingest.TrackAction, publicAPIConfig)
	srv.Options("/api/analytics/track", preflight, publicAPIConfig)
	srv.Post("/api/analytics/beacon", ingest.BeaconAction, publicAPIConfig)
	srv.Options("/api/analytics/beacon", preflight, publicAPIConfig)

	// === DASHBOARD QUERIES ===
	srv.Get("/api/analytics/summary", dashboard.SummaryAction, dashboardConfig)
	srv.Get("/api/analytics/timeseries", dashboard.TimeSeriesAction, dashboardConfig)
	srv.Get("/api/analytics/top-pages", dashboard.TopPagesAction, dashboardConfig)
	srv.Get("/api/analytics/top-referrers", dashboard.TopReferrersAction, dashboardConfig)
	srv.Get("/api/analytics/devices", dashboard.BreakdownAction(analytics.DimensionDevice), dashboardConfig)
	srv.Get("/api/analytics/browsers", dashboard.BreakdownAction(analytics.DimensionBrowser), dashboardConfig)
	srv.Get("/api/analytics/os", dashboard.BreakdownAction(analytics.DimensionOS), dashboardConfig)
	srv.Get("/api/analytics/countries", dashboard.BreakdownAction(analytics.DimensionCountry), dashboardConfig)
	srv.Get("/api/analytics/realtime", dashboard.RealtimeAction, dashboardConfig)
	srv.Get("/api/analytics/visitors", dashboard.VisitorsAction, dashboardConfig)
	srv.Get("/api/analytics/visitors/:id", dashboard.VisitorDetailAction, dashboardConfig)
}

func preflight(ctx *cartridge.Context) error {
	return ctx.SendStatus(fiber.StatusNoContent)
}
