package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerd/internal/models"
	"ledgerd/internal/testutil"
)

func TestHealth_ReportsCacheCounts(t *testing.T) {
	service := testutil.NewMockLedgerService()
	service.Months["2025-02"] = models.ActivityData{}
	service.Months["2025-03"] = models.ActivityData{}
	service.Categories = []models.Category{
		{ID: "cat1", Icon: "🍚", Name: "餐饮", IsShow: "是"},
	}
	hc := NewHealthController(service)

	w := httptest.NewRecorder()
	hc.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.CachedMonths)
	assert.Equal(t, 1, resp.Categories)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, 0.0)
	assert.NotEmpty(t, resp.Uptime)
}

func TestHealth_RejectsNonGet(t *testing.T) {
	hc := NewHealthController(testutil.NewMockLedgerService())

	w := httptest.NewRecorder()
	hc.Health(w, httptest.NewRequest(http.MethodPost, "/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0h0m0s", formatDuration(0))
	assert.Equal(t, "0h1m5s", formatDuration(65*time.Second))
	assert.Equal(t, "2h3m4s", formatDuration(2*time.Hour+3*time.Minute+4*time.Second))
}
