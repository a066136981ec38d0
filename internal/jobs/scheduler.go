package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"github.com/stamns/Next-blog-sub000/internal/config"
	"github.com/stamns/Next-blog-sub000/internal/sessions"
)

// Scheduler runs the background jobs. It implements cartridge.BackgroundWorker.
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	cfg       *config.Config

	reaper     *SessionReaperJob
	geoWatcher *GeoDBWatcherJob
}

func NewScheduler(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	reconciler := sessions.NewReconciler(cfg.SessionTimeout())

	return &Scheduler{
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		reaper:     NewSessionReaperJob(dbManager, logger, reconciler, cfg.ReaperBatchSize),
		geoWatcher: NewGeoDBWatcherJob(logger),
	}
}

// Start begins all background jobs
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}
	s.isRunning = true

	s.logger.Info("Starting background jobs...")

	s.every("session_reaper", time.Duration(s.cfg.ReaperIntervalSeconds)*time.Second, func() error {
		_, err := s.reaper.Run()
		return err
	})
	s.every("geodb_watcher", time.Duration(s.cfg.GeoDBCheckIntervalSeconds)*time.Second, s.geoWatcher.Run)

	s.logger.Info("Background jobs started")
	return nil
}

// every runs job once immediately and then on each tick until Stop.
// A non-positive interval disables the job.
func (s *Scheduler) every(name string, interval time.Duration, job func() error) {
	if interval <= 0 {
		s.logger.Info("Background job disabled", slog.String("job", name))
		return
	}
	s.logger.Info("Starting background job", slog.String("job", name), slog.Duration("interval", interval))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.runSafely(name, job)
		for {
			select {
			case <-ticker.C:
				s.runSafely(name, job)
			case <-s.ctx.Done():
				s.logger.Info("Background job stopped", slog.String("job", name))
				return
			}
		}
	}()
}

func (s *Scheduler) runSafely(name string, job func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", name),
				slog.Any("panic", r))
		}
	}()

	if err := job(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", name), slog.Any("error", err))
	}
}

// Stop halts all background jobs and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Stopping background jobs...")
	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// ReapSessions runs the session reaper once, outside the schedule.
func (s *Scheduler) ReapSessions() (int, error) {
	return s.reaper.Run()
}
