package sessions

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// OpenSessionIndex enforces at most one open session per visitor.
const OpenSessionIndex = "idx_sessions_one_open"

// EnsureOpenSessionIndex creates the partial unique index backing the
// one-open-session rule. AutoMigrate cannot express partial indexes.
func EnsureOpenSessionIndex(db *gorm.DB) error {
	stmt := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s ON sessions(visitor_id) WHERE ended_at IS NULL",
		OpenSessionIndex)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("error creating open session index: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
