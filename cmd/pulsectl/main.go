// main.go - Admin control tool for blogpulse
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stamns/Next-blog-sub000/internal"
	"github.com/stamns/Next-blog-sub000/internal/config"
	"github.com/stamns/Next-blog-sub000/internal/http/middleware"
	"github.com/stamns/Next-blog-sub000/internal/seeder"
	"github.com/stamns/Next-blog-sub000/internal/sessions"
	"github.com/stamns/Next-blog-sub000/internal/visitors"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	Name() string
	Description() string
	// NeedsApp is false for commands that never touch the database.
	NeedsApp() bool
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

var commands = []Command{
	&MigrateCommand{},
	&ReapSessionsCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&HashKeyCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	var app *internal.Application
	if cmd.NeedsApp() {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.Fatalf("Failed to initialize app: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}()
	}

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }
func (c *MigrateCommand) NeedsApp() bool      { return true }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// ReapSessionsCommand closes lapsed sessions once, without waiting for the schedule.
type ReapSessionsCommand struct{}

func (c *ReapSessionsCommand) Name() string        { return "reap-sessions" }
func (c *ReapSessionsCommand) Description() string { return "Closes open sessions whose window has lapsed" }
func (c *ReapSessionsCommand) NeedsApp() bool      { return true }

func (c *ReapSessionsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	closed, err := app.Scheduler.ReapSessions()
	if err != nil {
		return fmt.Errorf("reaping sessions: %w", err)
	}
	log.Printf("Closed %d lapsed sessions", closed)
	return nil
}

// SeedCommand populates the DB with synthetic traffic
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with synthetic traffic" }
func (c *SeedCommand) NeedsApp() bool      { return true }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	visitorCount := fs.Int("visitors", 200, "number of distinct visitors to generate")
	days := fs.Int("days", 30, "number of days of history, ending today")
	seed := fs.Uint64("seed", 0, "random seed (0 picks one from the clock)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.GetConfig()
	se := seeder.NewSeeder(app.DBManager, slog.Default(), *visitorCount, *days, cfg.SessionTimeout())
	if *seed != 0 {
		se.Seed = *seed
	}

	stats, err := se.Run(ctx, time.Now())
	if err != nil {
		return err
	}
	log.Printf("Seeded %d visitors, %d page views, %d page leaves, %d session ends",
		stats.Visitors, stats.PageViews, stats.PageLeaves, stats.SessionEnds)
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }
func (c *StatusCommand) NeedsApp() bool      { return true }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	db := app.DBManager.GetConnection().WithContext(ctx)

	var visitorCount, sessionCount, openCount, pageViewCount int64
	if err := db.Model(&visitors.Visitor{}).Count(&visitorCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&sessions.Session{}).Count(&sessionCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&sessions.Session{}).Where("ended_at IS NULL").Count(&openCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&sessions.PageView{}).Count(&pageViewCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Visitors: %d", visitorCount)
	log.Printf("- Sessions: %d (%d open)", sessionCount, openCount)
	log.Printf("- Page views: %d", pageViewCount)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	log.Printf("- Max Open Connections: %d", sqlDB.Stats().MaxOpenConnections)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	log.Printf("- In Use: %d", sqlDB.Stats().InUse)
	log.Printf("- Idle: %d", sqlDB.Stats().Idle)
	return nil
}

// HashKeyCommand prints the bcrypt hash to configure as the dashboard API key hash.
type HashKeyCommand struct{}

func (c *HashKeyCommand) Name() string        { return "hash-key" }
func (c *HashKeyCommand) Description() string { return "Hashes a dashboard API key for BLOGPULSE_DASHBOARD_API_KEY_HASH" }
func (c *HashKeyCommand) NeedsApp() bool      { return false }

func (c *HashKeyCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 || args[0] == "" {
		return fmt.Errorf("usage: %s <key>", c.Name())
	}
	hash, err := middleware.HashAPIKey(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }
func (c *HelpCommand) NeedsApp() bool      { return false }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: pulsectl [command] [args...]")
	fmt.Println("Available commands:")
	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
