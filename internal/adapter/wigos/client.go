// Package wigos reads synoptic observations from a WIS2 box OGC API
// features collection.
package wigos

import (
	"context"
	"errors"
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
	Source = "wigos"

	DefaultBaseURL   = "https://wis2.meteoburkina.bf/oapi/collections/urn:wmo:md:bf-anam:mx2w8y/items"
	DefaultStationID = "0-854-0-090"
	defaultLimit     = 6
)

// Observed parameter names.
const (
	paramPrecipitation = "total_precipitation_or_total_water_equivalent"
	paramTemperature   = "air_temperature"
	paramHumidity      = "relative_humidity"
)

// Client implements domain.MeteoSource against the WIS2 items endpoint.
type Client struct {
	baseURL    string
	stationID  string
	limit      int
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a WIGOS client for one station.
func NewClient(baseURL, stationID string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		stationID:  stationID,
		limit:      defaultLimit,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchMeteo returns the latest report published at or after at. Reports
// are grouped by reportId; the one with the latest report time wins.
func (c *Client) FetchMeteo(ctx context.Context, at time.Time) (domain.MeteoObservation, error) {
	params := url.Values{
		"f":                        {"json"},
		"datetime":                 {at.UTC().Format(time.RFC3339) + "/.."},
		"wigos_station_identifier": {c.stationID},
		"limit":                    {strconv.Itoa(c.limit)},
	}

	start := time.Now()
	obs, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
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

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.MeteoObservation, error) {
	features, err := c.fetchFeatures(ctx, fullURL)
	if err != nil {
		return domain.MeteoObservation{}, err
	}
	r, ok := latestReport(features)
	if !ok {
		return domain.MeteoObservation{}, domain.ErrNoObservation
	}
	c.logger.Debug("wigos report selected", "report_id", r.id, "measurements", len(r.values))
	return r.observation(), nil
}

// report is the measurements of one reportId.
type report struct {
	id         string
	phenomenon time.Time
	reportTime time.Time
	values     map[string]measurement
}

type measurement struct {
	value *float64
	units string
}

func latestReport(features []feature) (report, bool) {
	byID := make(map[string]*report)
	var order []string
	for _, f := range features {
		p := f.Properties
		r, ok := byID[p.ReportID]
		if !ok {
			r = &report{
				id:         p.ReportID,
				phenomenon: parseTime(p.PhenomenonTime),
				reportTime: parseTime(p.ReportTime),
				values:     make(map[string]measurement),
			}
			byID[p.ReportID] = r
			order = append(order, p.ReportID)
		}
		if p.Name != "" {
			r.values[p.Name] = measurement{value: p.Value, units: p.Units}
		}
	}
	if len(order) == 0 {
		return report{}, false
	}
	best := byID[order[0]]
	for _, id := range order[1:] {
		if byID[id].reportTime.After(best.reportTime) {
			best = byID[id]
		}
	}
	return *best, true
}

func (r report) observation() domain.MeteoObservation {
	t := r.phenomenon
	if t.IsZero() {
		t = r.reportTime
	}
	obs := domain.MeteoObservation{
		Time:            t,
		PrecipitationMM: r.values[paramPrecipitation].value,
		HumidityPct:     r.values[paramHumidity].value,
		Source:          Source,
	}
	if m, ok := r.values[paramTemperature]; ok && m.value != nil {
		v := *m.value
		if m.units == "K" {
			v -= 273.15
		}
		obs.TemperatureC = &v
	}
	return obs
}

// phenomenonTime may be an instant or an interval; the interval end is used.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// WIS2 items response types.

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Properties properties `json:"properties"`
}

type properties struct {
	ReportID       string   `json:"reportId"`
	PhenomenonTime string   `json:"phenomenonTime"`
	ReportTime     string   `json:"reportTime"`
	StationID      string   `json:"wigos_station_identifier"`
	Name           string   `json:"name"`
	Value          *float64 `json:"value"`
	Units          string   `json:"units"`
}
