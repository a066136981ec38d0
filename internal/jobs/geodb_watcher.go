package jobs

import (
	"log/slog"

	"github.com/stamns/Next-blog-sub000/internal/pkg/geoip"
)

// GeoDBWatcherJob reloads the GeoLite2 database when the file on disk is
// replaced, e.g. by a cron-driven geoipupdate.
type GeoDBWatcherJob struct {
	logger *slog.Logger
}

func NewGeoDBWatcherJob(logger *slog.Logger) *GeoDBWatcherJob {
	return &GeoDBWatcherJob{logger: logger}
}

func (j *GeoDBWatcherJob) Run() error {
	if !geoip.Changed() {
		return nil
	}
	j.logger.Info("GeoLite2 database changed on disk, reloading")
	geoip.Reload()
	return nil
}
