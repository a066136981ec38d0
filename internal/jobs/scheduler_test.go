package jobs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stamns/Next-blog-sub000/internal/config"
	"github.com/stamns/Next-blog-sub000/internal/jobs"
	"github.com/stamns/Next-blog-sub000/internal/sessions"
	"github.com/stamns/Next-blog-sub000/internal/testsupport"
)

func TestSessionReaperJob_DrainsInBatches(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	start := time.Now().UTC().Add(-3 * time.Hour)
	for _, token := range []string{"a", "b", "c", "d", "e"} {
		v := testsupport.CreateVisitor(t, db, token, start)
		testsupport.CreateSession(t, db, v, start, nil, "")
	}
	fresh := testsupport.CreateVisitor(t, db, "fresh", time.Now().UTC())
	testsupport.CreateSession(t, db, fresh, time.Now().UTC().Add(-time.Minute), nil, "")

	job := jobs.NewSessionReaperJob(dbManager, logger, sessions.NewReconciler(30*time.Minute), 2)
	closed, err := job.Run()
	require.NoError(t, err)
	assert.Equal(t, 5, closed)

	var open int64
	require.NoError(t, db.Model(&sessions.Session{}).Where("ended_at IS NULL").Count(&open).Error)
	assert.Equal(t, int64(1), open)
}

func TestScheduler_StartStop(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	cfg := *config.GetConfig()
	cfg.ReaperIntervalSeconds = 3600
	cfg.GeoDBCheckIntervalSeconds = 0

	s := jobs.NewScheduler(dbManager, logger, &cfg)
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start())

	s.Stop()
	assert.False(t, s.IsRunning())

	closed, err := s.ReapSessions()
	require.NoError(t, err)
	assert.Zero(t, closed)
}
