package geoip

import (
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"github.com/oschwald/geoip2-golang"
)

// Location is the approximate geography of an IP address.
type Location struct {
	Country string // ISO 3166-1 alpha-2, upper case
	Region  string
	City    string
}

const lookupCacheTTL = 30 * time.Minute

var (
	geoDB     *geoip2.Reader
	dbPath    string
	modTime   time.Time
	mu        sync.RWMutex
	logger    = slog.Default()
	lookups   *cache.Cache[string, Location]
	cacheOnce sync.Once
)

// Init opens the GeoLite2 City database at path. A missing file is not an
// error: lookups simply return nothing until Reload finds one.
func Init(path string, l *slog.Logger) {
	if l != nil {
		logger = l
	}
	mu.Lock()
	dbPath = path
	mu.Unlock()
	Reload()
}

func open(path string) (*geoip2.Reader, time.Time) {
	if path == "" {
		logger.Debug("GeoIP database path not configured - GeoIP features disabled")
		return nil, time.Time{}
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logger.Info("GeoLite2 database not found - GeoIP features disabled",
			slog.String("path", path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil, time.Time{}
	} else if err != nil {
		logger.Warn("Error checking GeoLite2 database file",
			slog.String("path", path),
			slog.Any("error", err))
		return nil, time.Time{}
	}

	db, err := geoip2.Open(path)
	if err != nil {
		logger.Error("Failed to open GeoLite2 database",
			slog.String("path", path),
			slog.Any("error", err))
		return nil, time.Time{}
	}

	logger.Info("GeoLite2 database initialized successfully",
		slog.String("path", path),
		slog.Int64("size_bytes", info.Size()))
	return db, info.ModTime()
}

// Reload reopens the database from disk and drops cached lookups.
func Reload() {
	mu.Lock()
	if geoDB != nil {
		geoDB.Close()
	}
	geoDB, modTime = open(dbPath)
	mu.Unlock()

	// The cache lock is held while lookupUncached waits on mu, so the cache
	// must only be touched after mu is released.
	lookupCache().Clear()
}

// Changed reports whether the database file on disk differs from the one loaded.
func Changed() bool {
	mu.RLock()
	path, loaded := dbPath, modTime
	mu.RUnlock()

	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.ModTime().Equal(loaded)
}

// Available reports whether a database is loaded.
func Available() bool {
	mu.RLock()
	defer mu.RUnlock()
	return geoDB != nil
}

func lookupCache() *cache.Cache[string, Location] {
	cacheOnce.Do(func() {
		lookups = cache.NewCache[string, Location](logger, lookupCacheTTL, lookupUncached)
	})
	return lookups
}

// Lookup resolves an IP address. ok is false when no database is loaded,
// the address is invalid or nothing is known about it.
func Lookup(ipAddress string) (Location, bool) {
	if !Available() || net.ParseIP(ipAddress) == nil {
		return Location{}, false
	}
	loc, err := lookupCache().Get(ipAddress)
	if err != nil {
		logger.Debug("GeoIP lookup failed",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
		return Location{}, false
	}
	return loc, loc.Country != ""
}

func lookupUncached(ipAddress string) (Location, error) {
	mu.RLock()
	defer mu.RUnlock()

	if geoDB == nil {
		return Location{}, nil
	}

	record, err := geoDB.City(net.ParseIP(ipAddress))
	if err != nil {
		return Location{}, err
	}

	loc := Location{
		City: record.City.Names["en"],
	}
	if code := record.Country.IsoCode; code != "" && code != "--" {
		loc.Country = code
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	return loc, nil
}
