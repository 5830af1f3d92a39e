// Package openmeteo is the fallback meteorological source: the Open-Meteo
// hourly forecast at a fixed point.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
)

const (
	// Source is the name recorded in readings and metrics.
	Source = "open-meteo"

	DefaultBaseURL   = "https://api.open-meteo.com/v1/forecast"
	DefaultLatitude  = 12.4052
	DefaultLongitude = -1.5063
)

const (
	varTemperature   = "temperature_2m"
	varHumidity      = "relative_humidity_2m"
	varPrecipitation = "precipitation"
)

// Client implements domain.MeteoSource against the Open-Meteo forecast API.
type Client struct {
	baseURL    string
	lat, lon   float64
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client for one point.
func NewClient(baseURL string, lat, lon float64, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		lat:        lat,
		lon:        lon,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchMeteo returns the forecast values for the UTC hour containing at.
func (c *Client) FetchMeteo(ctx context.Context, at time.Time) (domain.MeteoObservation, error) {
	at = at.UTC().Truncate(time.Hour)
	day := at.Format(time.DateOnly)
	params := url.Values{
		"latitude":   {strconv.FormatFloat(c.lat, 'f', -1, 64)},
		"longitude":  {strconv.FormatFloat(c.lon, 'f', -1, 64)},
		"hourly":     {strings.Join([]string{varTemperature, varHumidity, varPrecipitation}, ",")},
		"start_date": {day},
		"end_date":   {day},
		"timezone":   {"UTC"},
	}

	start := time.Now()
	obs, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode(), at)
	c.metrics.SourceDuration.WithLabelValues(Source).Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		c.metrics.SourceRequests.WithLabelValues(Source, "success").Inc()
	case errors.Is(err, domain.ErrNoObservation):
		c.metrics.SourceRequests.WithLabelValues(Source, "empty").Inc()
	default:
		c.metrics.SourceRequests.WithLabelValues(Source, "error").Inc()
	}
	return obs, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string, at time.Time) (domain.MeteoObservation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.MeteoObservation{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.MeteoObservation{}, fmt.Errorf("open-meteo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.MeteoObservation{}, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return domain.MeteoObservation{}, fmt.Errorf("decode response: %w", err)
	}

	h := fr.Hourly
	if h == nil || h.Precipitation == nil || h.Temperature == nil || h.Humidity == nil {
		return domain.MeteoObservation{}, fmt.Errorf("%w: incomplete hourly data", domain.ErrNoObservation)
	}
	i := at.Hour()
	if i >= len(h.Precipitation) {
		return domain.MeteoObservation{}, fmt.Errorf("%w: no value for hour %d", domain.ErrNoObservation, i)
	}
	c.logger.Debug("open-meteo hour selected", "hour", i, "day", at.Format(time.DateOnly))
	return domain.MeteoObservation{
		Time:            at,
		PrecipitationMM: index(h.Precipitation, i),
		TemperatureC:    index(h.Temperature, i),
		HumidityPct:     index(h.Humidity, i),
		Source:          Source,
	}, nil
}

func index(vs []*float64, i int) *float64 {
	if i < len(vs) {
		return vs[i]
	}
	return nil
}

// Open-Meteo API response types.

type forecastResponse struct {
	Hourly *hourly `json:"hourly"`
}

type hourly struct {
	Time          []string   `json:"time"`
	Temperature   []*float64 `json:"temperature_2m"`
	Humidity      []*float64 `json:"relative_humidity_2m"`
	Precipitation []*float64 `json:"precipitation"`
}
