package events

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/sessions"
	"github.com/stamns/Next-blog-sub000/internal/visitors"
)

// Result is returned to the client after an event is collected.
type Result struct {
	VisitorID string `json:"visitorId"`
	SessionID string `json:"sessionId"`
	// Recorded is false when the event was a no-op (nothing to attach to).
	Recorded bool `json:"-"`
}

// Collector runs the ingestion pipeline: resolve the visitor, reconcile the
// session, record the event. All work for one visitor token is serialized
// in-process; the open-session unique index covers other processes.
type Collector struct {
	dbManager  cartridge.DBManager
	logger     *slog.Logger
	reconciler *sessions.Reconciler
	locks      *sessions.KeyedMutex
	now        func() time.Time
}

type CollectorOption func(*Collector)

// WithClock replaces time.Now, for tests and the seeder.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		c.now = now
	}
}

func NewCollector(dbManager cartridge.DBManager, logger *slog.Logger, sessionTimeout time.Duration, opts ...CollectorOption) *Collector {
	c := &Collector{
		dbManager:  dbManager,
		logger:     logger,
		reconciler: sessions.NewReconciler(sessionTimeout),
		locks:      sessions.NewKeyedMutex(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reconciler exposes the session state machine, e.g. for the reaper job.
func (c *Collector) Reconciler() *sessions.Reconciler {
	return c.reconciler
}

// Collect applies one event. A store failure is returned and the event is lost.
func (c *Collector) Collect(ev Event) (Result, error) {
	base := ev.Base()

	unlock := c.locks.Lock(base.VisitorToken)
	defer unlock()

	now := c.now().UTC()
	db := c.dbManager.GetConnection()
	if db == nil {
		return Result{}, gorm.ErrInvalidDB
	}

	var result Result
	write := func(tx *gorm.DB) error {
		result = Result{}

		visitor, err := visitors.Resolve(tx, base.VisitorToken, base.Visitor, now)
		if err != nil {
			return err
		}
		result.VisitorID = visitor.Token

		switch e := ev.(type) {
		case *PageView:
			return c.collectPageView(tx, visitor, e, now, &result)
		case *PageLeave:
			return c.collectPageLeave(tx, visitor, e, now, &result)
		case *SessionEnd:
			return c.collectSessionEnd(tx, visitor, now, &result)
		default:
			return fmt.Errorf("%w: %T", ErrUnsupportedEvent, ev)
		}
	}

	err := sqlite.PerformWrite(c.logger, db, write)
	if errors.Is(err, sessions.ErrOpenSessionConflict) {
		c.logger.Debug("Open session created concurrently, retrying",
			slog.String("visitor", base.VisitorToken))
		err = sqlite.PerformWrite(c.logger, db, write)
	}
	if err != nil {
		c.logger.Error("Failed to collect event",
			slog.String("type", string(ev.Kind())),
			slog.String("visitor", base.VisitorToken),
			slog.Any("error", err))
		return Result{}, fmt.Errorf("error collecting %s event: %w", ev.Kind(), err)
	}

	return result, nil
}

func (c *Collector) collectPageView(tx *gorm.DB, visitor *visitors.Visitor, ev *PageView, now time.Time, result *Result) error {
	session, opened, err := c.reconciler.OpenOrReuse(tx, visitor.ID, ev.Attribution, now)
	if err != nil {
		return err
	}
	if _, err := RecordPageView(tx, session, ev, now); err != nil {
		return err
	}

	result.SessionID = session.PublicID
	result.Recorded = true

	c.logger.Debug("Recorded page view",
		slog.String("visitor", visitor.Token),
		slog.String("session", session.PublicID),
		slog.String("path", ev.Path),
		slog.Bool("new_session", opened))
	return nil
}

func (c *Collector) collectPageLeave(tx *gorm.DB, visitor *visitors.Visitor, ev *PageLeave, now time.Time, result *Result) error {
	session, err := c.reconciler.FindActive(tx, visitor.ID, now)
	if err != nil {
		return err
	}
	if session == nil {
		c.logger.Debug("Dropping page leave without an active session",
			slog.String("visitor", visitor.Token),
			slog.String("path", ev.Path))
		return nil
	}
	result.SessionID = session.PublicID

	closed, err := RecordPageLeave(tx, session, ev, now)
	if err != nil {
		return err
	}
	if !closed {
		c.logger.Debug("Dropping page leave without an open page view",
			slog.String("session", session.PublicID),
			slog.String("path", ev.Path))
	}
	result.Recorded = closed
	return nil
}

func (c *Collector) collectSessionEnd(tx *gorm.DB, visitor *visitors.Visitor, now time.Time, result *Result) error {
	session, err := c.reconciler.Close(tx, visitor.ID, now)
	if err != nil {
		return err
	}
	if session == nil {
		c.logger.Debug("Dropping session end without an open session",
			slog.String("visitor", visitor.Token))
		return nil
	}

	result.SessionID = session.PublicID
	result.Recorded = true
	return nil
}
