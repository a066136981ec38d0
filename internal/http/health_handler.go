package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"github.com/stamns/Next-blog-sub000/internal/pkg/geoip"
)

var errDatabaseUnavailable = errors.New("database connection unavailable")

type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DBStatus  string    `json:"db_status"`
	GeoIP     string    `json:"geoip"`
}

// HealthIndexAction reports whether the database answers a ping. A failed
// ping answers 503 so load balancers take the instance out of rotation.
func HealthIndexAction(ctx *cartridge.Context) error {
	health := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		DBStatus:  "ok",
		GeoIP:     "disabled",
	}
	if geoip.Available() {
		health.GeoIP = "loaded"
	}

	if err := pingDatabase(ctx); err != nil {
		ctx.Logger.Error("Database health check failed", slog.Any("error", err))
		health.Status = "degraded"
		health.DBStatus = "error"
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(health)
	}

	return ctx.JSON(health)
}

func pingDatabase(ctx *cartridge.Context) error {
	db := ctx.DBManager.GetConnection()
	if db == nil {
		return errDatabaseUnavailable
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx.UserContext())
}
