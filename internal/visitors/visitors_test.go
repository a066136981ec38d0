package visitors_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stamns/Next-blog-sub000/internal/testsupport"
	"github.com/stamns/Next-blog-sub000/internal/visitors"
)

var t0 = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func TestResolve_CreatesVisitor(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	v, err := visitors.Resolve(db, "tok-1", visitors.Attributes{
		IPAddress: "203.0.113.7",
		Browser:   "Firefox",
		Device:    "desktop",
	}, t0)
	require.NoError(t, err)

	assert.NotZero(t, v.ID)
	assert.Equal(t, "tok-1", v.Token)
	assert.Equal(t, "Firefox", v.Browser)
	assert.Equal(t, 0, v.VisitCount)
	assert.True(t, v.FirstSeenAt.Equal(t0))
	assert.True(t, v.LastSeenAt.Equal(t0))
}

func TestResolve_MergesAttributes(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	_, err := visitors.Resolve(db, "tok-2", visitors.Attributes{
		Browser: "Chrome", OS: "Windows", Country: "FR", ScreenWidth: 1920,
	}, t0)
	require.NoError(t, err)

	v, err := visitors.Resolve(db, "tok-2", visitors.Attributes{
		Browser: "Edge", City: "Lyon",
	}, t0.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, "Edge", v.Browser)
	assert.Equal(t, "Windows", v.OS)
	assert.Equal(t, "FR", v.Country)
	assert.Equal(t, "Lyon", v.City)
	assert.Equal(t, 1920, v.ScreenWidth)
	assert.True(t, v.FirstSeenAt.Equal(t0))
	assert.True(t, v.LastSeenAt.Equal(t0.Add(time.Minute)))
}

func TestResolve_LastSeenNeverMovesBackwards(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	_, err := visitors.Resolve(db, "tok-3", visitors.Attributes{}, t0.Add(time.Hour))
	require.NoError(t, err)
	v, err := visitors.Resolve(db, "tok-3", visitors.Attributes{}, t0)
	require.NoError(t, err)

	assert.True(t, v.LastSeenAt.Equal(t0.Add(time.Hour)))

	var count int64
	require.NoError(t, db.Model(&visitors.Visitor{}).Where("token = ?", "tok-3").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolve_ConcurrentSameToken(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := visitors.Resolve(db, "shared", visitors.Attributes{}, t0.Add(time.Duration(i)*time.Second))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var rows []visitors.Visitor
	require.NoError(t, db.Where("token = ?", "shared").Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].LastSeenAt.Equal(t0.Add(7*time.Second)))
}

func TestResolve_EmptyToken(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	_, err := visitors.Resolve(db, "", visitors.Attributes{}, t0)
	assert.ErrorIs(t, err, visitors.ErrEmptyToken)
}

func TestIncrementVisitCount(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	v, err := visitors.Resolve(db, "counted", visitors.Attributes{}, t0)
	require.NoError(t, err)

	require.NoError(t, visitors.IncrementVisitCount(db, v.ID))
	require.NoError(t, visitors.IncrementVisitCount(db, v.ID))

	found, err := visitors.FindByToken(db, "counted")
	require.NoError(t, err)
	assert.Equal(t, 2, found.VisitCount)
}

func TestAlias(t *testing.T) {
	a := visitors.Alias("visitor-123")
	assert.Equal(t, a, visitors.Alias("visitor-123"))
	assert.Len(t, strings.Fields(a), 2)
}

func TestAlias_AnyHash(t *testing.T) {
	// Covers hashes with the top bit set, which would be negative as int32.
	for i := 0; i < 2000; i++ {
		token := fmt.Sprintf("token-%d", i)
		assert.NotPanics(t, func() {
			assert.Len(t, strings.Fields(visitors.Alias(token)), 2, token)
		})
	}
}

func TestFingerprintToken(t *testing.T) {
	morning := visitors.FingerprintToken("198.51.100.1", "Mozilla/5.0", t0)
	evening := visitors.FingerprintToken("198.51.100.1", "Mozilla/5.0", t0.Add(10*time.Hour))
	tomorrow := visitors.FingerprintToken("198.51.100.1", "Mozilla/5.0", t0.Add(24*time.Hour))
	otherIP := visitors.FingerprintToken("198.51.100.2", "Mozilla/5.0", t0)

	assert.True(t, strings.HasPrefix(morning, visitors.FingerprintPrefix))
	assert.Len(t, morning, len(visitors.FingerprintPrefix)+32)
	assert.Equal(t, morning, evening)
	assert.NotEqual(t, morning, tomorrow)
	assert.NotEqual(t, morning, otherIP)
}
