package wigos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
)

func TestClient_FetchMeteoHistory(t *testing.T) {
	now := time.Date(2025, 7, 14, 12, 30, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2025-07-12T00:00:00Z/2025-07-15T23:59:59Z", q.Get("datetime"))
		assert.Equal(t, "72", q.Get("limit"))

		var resp featureCollection
		switch q.Get("name") {
		case paramPrecipitation:
			resp.Features = []feature{
				prop("r2", "2025-07-14T18:00:00Z", paramPrecipitation, f(12), "mm"),
				prop("r1", "2025-07-14T06:00:00Z", paramPrecipitation, f(3), "mm"),
			}
		case paramHumidity:
			resp.Features = []feature{prop("r1", "2025-07-14T06:00:00Z", paramHumidity, f(80), "%")}
		default:
			http.Error(w, "unavailable", http.StatusBadGateway)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	h, err := testClient(srv.URL).FetchMeteoHistory(context.Background(), now, domain.MeteoHistoryQuery{DaysBefore: 2, DaysAfter: 1})
	require.NoError(t, err)

	assert.Equal(t, now, h.Period.Current)
	require.Len(t, h.History, 1)
	assert.Equal(t, time.Date(2025, 7, 14, 6, 0, 0, 0, time.UTC), h.History[0].Timestamp)
	assert.Len(t, h.History[0].Parameters, 2, "reports are grouped by time across parameters")
	assert.Equal(t, "%", h.History[0].Parameters[paramHumidity].Unit)

	require.Len(t, h.Forecast, 1)
	assert.Equal(t, 12.0, *h.Forecast[0].Parameters[paramPrecipitation].Value)
	assert.NotContains(t, h.Forecast[0].Parameters, paramTemperature, "a failed parameter is left out")
}

func TestClient_FetchMeteoHistory_ClampsWindow(t *testing.T) {
	now := time.Date(2025, 7, 14, 12, 30, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "264", r.URL.Query().Get("limit"), "1 day before, 10 after")
		require.NoError(t, json.NewEncoder(w).Encode(featureCollection{}))
	}))
	defer srv.Close()

	h, err := testClient(srv.URL).FetchMeteoHistory(context.Background(), now, domain.MeteoHistoryQuery{DaysBefore: 0, DaysAfter: 40})
	require.NoError(t, err)
	assert.Empty(t, h.History)
	assert.Empty(t, h.Forecast)
	assert.NotNil(t, h.History)
}

func TestClient_FetchMeteoHistory_AllRequestsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchMeteoHistory(context.Background(), time.Now(), domain.MeteoHistoryQuery{})
	assert.ErrorContains(t, err, "status 503")
}
