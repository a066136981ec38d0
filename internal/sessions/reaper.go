package sessions

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// ExpireLapsed closes open sessions whose window ended before now, at most
// batchSize per call. Each session is closed in its own write so a busy
// database only delays the sessions it touches. Returns how many were closed.
func (r *Reconciler) ExpireLapsed(logger *slog.Logger, db *gorm.DB, now time.Time, batchSize int) (int, error) {
	now = now.UTC()
	cutoff := now.Add(-r.Timeout)

	var lapsed []Session
	err := db.Where("ended_at IS NULL AND started_at < ?", cutoff).
		Order("started_at ASC").
		Limit(batchSize).
		Find(&lapsed).Error
	if err != nil {
		return 0, fmt.Errorf("error finding lapsed sessions: %w", err)
	}

	closed := 0
	for i := range lapsed {
		s := &lapsed[i]
		var ok bool
		err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
			var err error
			ok, err = closeLapsed(tx, s, now)
			return err
		})
		if err != nil {
			logger.Error("Failed to close lapsed session",
				slog.String("session_id", s.PublicID),
				slog.Any("error", err))
			continue
		}
		if ok {
			closed++
		}
	}

	return closed, nil
}
