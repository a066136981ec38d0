package v1_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stamns/Next-blog-sub000/internal/sessions"
	"github.com/stamns/Next-blog-sub000/internal/testsupport"
	"github.com/stamns/Next-blog-sub000/internal/visitors"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type trackResponse struct {
	VisitorID string `json:"visitorId"`
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
	Code      string `json:"code"`
}

func post(t *testing.T, app *fiber.App, path, contentType, body string) (int, trackResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("X-Forwarded-For", "79.144.65.173, 10.0.0.1")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out trackResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestTrackAction(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateTestApp(t, db)

	t.Run("page view is recorded and enriched", func(t *testing.T) {
		testsupport.CleanAllTables(db)

		status, body := post(t, app, "/api/analytics/track", "application/json",
			`{"visitorId":"v1","path":"/posts/hello","title":"Hello","referer":"https://www.google.com/"}`)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "v1", body.VisitorID)
		assert.NotEmpty(t, body.SessionID)

		var visitor visitors.Visitor
		require.NoError(t, db.Where("token = ?", "v1").First(&visitor).Error)
		assert.Equal(t, "79.144.65.173", visitor.IPAddress)
		assert.Equal(t, "Chrome", visitor.Browser)
		assert.Equal(t, int64(1), countRows(t, db, &sessions.PageView{}))
	})

	t.Run("page leave closes the page view", func(t *testing.T) {
		testsupport.CleanAllTables(db)

		status, view := post(t, app, "/api/analytics/track", "application/json", `{"visitorId":"v2","path":"/a"}`)
		require.Equal(t, http.StatusOK, status)

		status, leave := post(t, app, "/api/analytics/track", "application/json",
			`{"visitorId":"v2","path":"/a","eventType":"pageleave","duration":"12","scrollDepth":140}`)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, view.SessionID, leave.SessionID)

		var pv sessions.PageView
		require.NoError(t, db.First(&pv).Error)
		require.NotNil(t, pv.Duration)
		assert.Equal(t, 12, *pv.Duration)
		require.NotNil(t, pv.ScrollDepth)
		assert.Equal(t, 100, *pv.ScrollDepth)
	})

	t.Run("leave without a session is accepted but not recorded", func(t *testing.T) {
		testsupport.CleanAllTables(db)

		status, body := post(t, app, "/api/analytics/track", "application/json",
			`{"visitorId":"v3","path":"/a","eventType":"pageleave","duration":5}`)
		assert.Equal(t, http.StatusAccepted, status)
		assert.Equal(t, "v3", body.VisitorID)
		assert.Empty(t, body.SessionID)
		assert.Zero(t, countRows(t, db, &sessions.Session{}))
	})

	t.Run("missing visitor id falls back to a fingerprint", func(t *testing.T) {
		testsupport.CleanAllTables(db)

		_, first := post(t, app, "/api/analytics/track", "application/json", `{"path":"/a"}`)
		_, second := post(t, app, "/api/analytics/track", "application/json", `{"path":"/b"}`)

		assert.True(t, strings.HasPrefix(first.VisitorID, "fp_"), first.VisitorID)
		assert.Equal(t, first.VisitorID, second.VisitorID)
		assert.Equal(t, first.SessionID, second.SessionID)
	})

	t.Run("malformed body", func(t *testing.T) {
		status, body := post(t, app, "/api/analytics/track", "application/json", `{not json`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid request", body.Error)
	})

	t.Run("unknown event type is dropped", func(t *testing.T) {
		testsupport.CleanAllTables(db)

		status, _ := post(t, app, "/api/analytics/track", "application/json", `{"visitorId":"v4","eventType":"click"}`)
		assert.Equal(t, http.StatusAccepted, status)
		assert.Zero(t, countRows(t, db, &visitors.Visitor{}))
	})
}

func TestBeaconAction(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateTestApp(t, db)

	status, _ := post(t, app, "/api/analytics/beacon", "text/plain;charset=UTF-8", `{"visitorId":"b1","path":"/a"}`)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, int64(1), countRows(t, db, &sessions.PageView{}))

	status, _ = post(t, app, "/api/analytics/beacon", "text/plain;charset=UTF-8",
		`{"visitorId":"b1","eventType":"session_end"}`)
	assert.Equal(t, http.StatusAccepted, status)

	var open int64
	require.NoError(t, db.Model(&sessions.Session{}).Where("ended_at IS NULL").Count(&open).Error)
	assert.Zero(t, open)

	status, _ = post(t, app, "/api/analytics/beacon", "text/plain;charset=UTF-8", `garbage`)
	assert.Equal(t, http.StatusAccepted, status)
}
