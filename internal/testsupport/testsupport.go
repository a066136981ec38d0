package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stamns/Next-blog-sub000/internal"
	"github.com/stamns/Next-blog-sub000/internal/config"
	"github.com/stamns/Next-blog-sub000/internal/sessions"
	"github.com/stamns/Next-blog-sub000/internal/visitors"
)

// testDBCache lets several calls within one test share a database.
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager.
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

func allModels() []any {
	return []any{
		&visitors.Visitor{},
		&sessions.Session{},
		&sessions.PageView{},
	}
}

// SetupTestDB creates a named in-memory database with every model migrated,
// including the one-open-session index. The pool is limited to a single
// connection so the shared in-memory database survives for the whole test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("testsupport: failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}
	if err := sessions.EnsureOpenSessionIndex(db); err != nil {
		t.Fatalf("testsupport: failed to create open session index: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB.Close()
	})

	return db
}

func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	db := SetupTestDB(t)
	return NewTestDBManager(db), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)
	if len(tableNames) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// CreateVisitor inserts a visitor row directly.
func CreateVisitor(t *testing.T, db *gorm.DB, token string, seenAt time.Time, mutate ...func(*visitors.Visitor)) *visitors.Visitor {
	t.Helper()
	v := &visitors.Visitor{
		Token:       token,
		FirstSeenAt: seenAt.UTC(),
		LastSeenAt:  seenAt.UTC(),
	}
	for _, m := range mutate {
		m(v)
	}
	require.NoError(t, db.Create(v).Error)
	return v
}

// CreateSession inserts a session. A nil duration leaves the session open.
func CreateSession(t *testing.T, db *gorm.DB, visitor *visitors.Visitor, startedAt time.Time, duration *int, referrer string) *sessions.Session {
	t.Helper()
	s := &sessions.Session{
		PublicID:  fmt.Sprintf("%s-%d", visitor.Token, startedAt.UnixNano()),
		VisitorID: visitor.ID,
		StartedAt: startedAt.UTC(),
		Referrer:  referrer,
	}
	if duration != nil {
		end := startedAt.UTC().Add(time.Duration(*duration) * time.Second)
		s.EndedAt = &end
		s.Duration = duration
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

// CreatePageView inserts a page view. A nil duration leaves it open.
func CreatePageView(t *testing.T, db *gorm.DB, session *sessions.Session, path string, enteredAt time.Time, duration *int) *sessions.PageView {
	t.Helper()
	pv := &sessions.PageView{
		SessionID: session.ID,
		VisitorID: session.VisitorID,
		Path:      path,
		EnteredAt: enteredAt.UTC(),
	}
	if duration != nil {
		left := enteredAt.UTC().Add(time.Duration(*duration) * time.Second)
		pv.LeftAt = &left
		pv.Duration = duration
	}
	require.NoError(t, db.Create(pv).Error)
	return pv
}

func IntPtr(v int) *int {
	return &v
}

// publicDir resolves the repository's public directory regardless of which
// package the test runs from.
func publicDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "public"
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "public")
}

// CreateTestApp builds a fiber app with every route mounted against db.
func CreateTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	appConfig := config.GetConfig()
	appConfig.Environment = config.Test
	appConfig.PublicDirectory = publicDir()

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = NewTestDBManager(db)
	cfg.StaticDirectory = appConfig.PublicDirectory
	cfg.StaticPrefix = appConfig.PublicAssetsUrlPrefix
	cfg.TemplatesDirectory = appConfig.PublicDirectory
	cfg.EnableSecFetchSite = false

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
