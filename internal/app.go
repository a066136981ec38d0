// Package internal wires the blogpulse application together.
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"github.com/stamns/Next-blog-sub000/internal/config"
	"github.com/stamns/Next-blog-sub000/internal/database"
	"github.com/stamns/Next-blog-sub000/internal/jobs"
	"github.com/stamns/Next-blog-sub000/internal/pkg/geoip"
)

// Application wraps cartridge.Application with the blogpulse database manager.
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	Scheduler *jobs.Scheduler
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	geoip.Init(cfg.GeoDBPath, logger)

	scheduler := jobs.NewScheduler(dbManager, logger, cfg)

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    MountAppRoutes,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Scheduler:   scheduler,
	}, nil
}
