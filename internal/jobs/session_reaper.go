package jobs

import (
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/sessions"
)

// SessionReaperJob closes sessions whose window lapsed without a session-end
// event, so they stop counting as open.
type SessionReaperJob struct {
	dbManager  cartridge.DBManager
	logger     *slog.Logger
	reconciler *sessions.Reconciler
	batchSize  int
	now        func() time.Time
}

func NewSessionReaperJob(dbManager cartridge.DBManager, logger *slog.Logger, reconciler *sessions.Reconciler, batchSize int) *SessionReaperJob {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &SessionReaperJob{
		dbManager:  dbManager,
		logger:     logger,
		reconciler: reconciler,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// Run closes lapsed sessions batch by batch until none are left. It returns
// the total number closed.
func (j *SessionReaperJob) Run() (int, error) {
	db := j.dbManager.GetConnection()
	if db == nil {
		return 0, gorm.ErrInvalidDB
	}

	now := j.now()
	total := 0
	for {
		closed, err := j.reconciler.ExpireLapsed(j.logger, db, now, j.batchSize)
		if err != nil {
			return total, err
		}
		total += closed
		// A short batch means we drained the backlog. A batch in which every
		// close failed also stops, rather than spinning on the same rows.
		if closed < j.batchSize {
			break
		}
	}

	if total > 0 {
		j.logger.Info("Closed lapsed sessions", slog.Int("sessions_closed", total))
	} else {
		j.logger.Debug("No lapsed sessions to close")
	}
	return total, nil
}
