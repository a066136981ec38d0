package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		AppName:               "blogpulse",
		Environment:           Development,
		DatabaseType:          SQLiteDatabase,
		DatabasePath:          "storage",
		SessionTimeoutSeconds: 1800,
		RealtimeWindowMinutes: 5,
		ReportTimezone:        "UTC",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad environment", func(c *Config) { c.Environment = "staging" }, "invalid environment"},
		{"bad database", func(c *Config) { c.DatabaseType = "postgres" }, "invalid database type"},
		{"zero timeout", func(c *Config) { c.SessionTimeoutSeconds = 0 }, "session timeout"},
		{"zero realtime window", func(c *Config) { c.RealtimeWindowMinutes = 0 }, "realtime window"},
		{"bad timezone", func(c *Config) { c.ReportTimezone = "Mars/Olympus" }, "invalid report timezone"},
		{"production without key", func(c *Config) { c.Environment = Production }, "BLOGPULSE_PRIVATE_KEY"},
		{"production with key", func(c *Config) {
			c.Environment = Production
			c.PrivateKey = "k"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDerivedValues(t *testing.T) {
	c := validConfig()
	assert.Equal(t, 30*time.Minute, c.SessionTimeout())
	assert.Equal(t, "storage/blogpulse-development.db", c.GetDatabasePath())
	assert.Equal(t, 10, c.GetMaxOpenConns())

	c.Environment = Test
	assert.Equal(t, 1, c.GetMaxOpenConns())
	c.DatabaseMaxOpenConns = 4
	assert.Equal(t, 4, c.GetMaxOpenConns())
}

func TestGetConfig_FromEnv(t *testing.T) {
	t.Setenv("BLOGPULSE_ENV", Test)
	t.Setenv("BLOGPULSE_SESSION_TIMEOUT_SECONDS", "600")
	t.Setenv("BLOGPULSE_REPORT_TIMEZONE", "Asia/Tokyo")
	Reset()
	t.Cleanup(Reset)

	c := GetConfig()
	assert.Equal(t, Test, c.Environment)
	assert.Equal(t, 10*time.Minute, c.SessionTimeout())
	assert.Equal(t, "Asia/Tokyo", c.ReportTimezone)
	assert.Equal(t, 5, c.RealtimeWindowMinutes)
}
