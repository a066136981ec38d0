package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/stamns/Next-blog-sub000/internal/http"
	"github.com/stamns/Next-blog-sub000/internal/testsupport"
)

func TestHealthIndexAction(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	app := testsupport.CreateTestApp(t, db)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/_health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health apphttp.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.DBStatus)
	assert.Equal(t, "disabled", health.GeoIP)

	resp, err = app.Test(httptest.NewRequest(http.MethodHead, "/_health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
