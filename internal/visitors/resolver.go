package visitors

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrEmptyToken = errors.New("visitor token is empty")

// Resolve upserts the visitor identified by token. A new visitor is created
// with the given attributes and a visit count of zero. An existing one gets
// its non-empty attributes overwritten and its last-seen time advanced;
// attributes missing from the event keep their stored values.
//
// The upsert is a single statement keyed on the unique token, so concurrent
// calls for the same token never produce two rows.
func Resolve(db *gorm.DB, token string, attrs Attributes, now time.Time) (*Visitor, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	now = now.UTC()

	candidate := Visitor{
		Token:       token,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	attrs.applyTo(&candidate)

	updates := attrs.columns()
	// last-seen never moves backwards, even when requests land out of order
	updates["last_seen_at"] = gorm.Expr("MAX(last_seen_at, excluded.last_seen_at)")

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&candidate).Error
	if err != nil {
		return nil, fmt.Errorf("error upserting visitor: %w", err)
	}

	var visitor Visitor
	if err := db.Where("token = ?", token).First(&visitor).Error; err != nil {
		return nil, fmt.Errorf("error loading visitor: %w", err)
	}
	return &visitor, nil
}

// IncrementVisitCount bumps the lifetime visit count. Called when a session opens.
func IncrementVisitCount(db *gorm.DB, visitorID uint) error {
	err := db.Model(&Visitor{}).
		Where("id = ?", visitorID).
		UpdateColumn("visit_count", gorm.Expr("visit_count + 1")).Error
	if err != nil {
		return fmt.Errorf("error incrementing visit count: %w", err)
	}
	return nil
}

// FindByToken loads a visitor by its client token.
func FindByToken(db *gorm.DB, token string) (*Visitor, error) {
	var visitor Visitor
	if err := db.Where("token = ?", token).First(&visitor).Error; err != nil {
		return nil, err
	}
	return &visitor, nil
}
