package wigos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
)

// historySource labels history requests in metrics.
const historySource = Source + "-history"

var historyParams = []string{paramPrecipitation, paramTemperature, paramHumidity}

// FetchMeteoHistory returns the station's reports from midnight DaysBefore
// days ago to the end of the day DaysAfter days ahead, one request per
// parameter. A parameter whose request fails is left out; only when every
// request fails is it an error.
func (c *Client) FetchMeteoHistory(ctx context.Context, now time.Time, q domain.MeteoHistoryQuery) (domain.MeteoHistory, error) {
	now = now.UTC()
	before := domain.ClampHistoryDays(q.DaysBefore)
	after := domain.ClampHistoryDays(q.DaysAfter)
	period := domain.Period{
		Start:   now.AddDate(0, 0, -before).Truncate(24 * time.Hour),
		End:     now.AddDate(0, 0, after).Truncate(24 * time.Hour).Add(24*time.Hour - time.Second),
		Current: now,
	}

	points := make(map[time.Time]*domain.MeteoPoint)
	var errs []error
	for _, name := range historyParams {
		params := url.Values{
			"f":                        {"json"},
			"name":                     {name},
			"datetime":                 {period.Start.Format(time.RFC3339) + "/" + period.End.Format(time.RFC3339)},
			"wigos_station_identifier": {c.stationID},
			"limit":                    {strconv.Itoa((before + after) * 24)},
		}

		start := time.Now()
		features, err := c.fetchFeatures(ctx, c.baseURL+"?"+params.Encode())
		c.metrics.SourceDuration.WithLabelValues(historySource).Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.SourceRequests.WithLabelValues(historySource, "error").Inc()
			if ctx.Err() != nil {
				return domain.MeteoHistory{}, ctx.Err()
			}
			c.logger.Warn("wigos history request failed", "parameter", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		c.metrics.SourceRequests.WithLabelValues(historySource, "success").Inc()

		for _, f := range features {
			p := f.Properties
			at := parseTime(p.ReportTime)
			if at.IsZero() {
				at = parseTime(p.PhenomenonTime)
			}
			if at.IsZero() {
				continue
			}
			pt, ok := points[at]
			if !ok {
				pt = &domain.MeteoPoint{Timestamp: at, Parameters: make(map[string]domain.Measurement)}
				points[at] = pt
			}
			pt.Parameters[name] = domain.Measurement{Value: p.Value, Unit: p.Units}
		}
	}
	if len(errs) == len(historyParams) {
		return domain.MeteoHistory{}, errors.Join(errs...)
	}

	times := make([]time.Time, 0, len(points))
	for t := range points {
		times = append(times, t)
	}
	slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })

	h := domain.MeteoHistory{History: []domain.MeteoPoint{}, Forecast: []domain.MeteoPoint{}, Period: period}
	for _, t := range times {
		if t.After(now) {
			h.Forecast = append(h.Forecast, *points[t])
		} else {
			h.History = append(h.History, *points[t])
		}
	}
	return h, nil
}

func (c *Client) fetchFeatures(ctx context.Context, fullURL string) ([]feature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wigos request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("wigos API error: status %d: %s", resp.StatusCode, body)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return fc.Features, nil
}
