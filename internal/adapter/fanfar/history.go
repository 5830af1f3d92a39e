package fanfar

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
)

const (
	historySource  = Source + "-history"
	dischargeUnits = "m³/s"
)

// FetchHydroHistory returns the hindcast and forecast discharge of the
// sub-basin selected by q, falling back to the configured station.
func (c *Client) FetchHydroHistory(ctx context.Context, q domain.HydroHistoryQuery) (domain.HydroHistory, error) {
	subID, y := c.subID, c.y
	if q.SubID != 0 {
		subID = q.SubID
	}
	if q.Y != 0 {
		y = q.Y
	}

	start := time.Now()
	h, err := c.fetchHistory(ctx, c.pointURL(subID, y))
	c.metrics.SourceDuration.WithLabelValues(historySource).Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		c.metrics.SourceRequests.WithLabelValues(historySource, "success").Inc()
	case errors.Is(err, domain.ErrNoObservation):
		c.metrics.SourceRequests.WithLabelValues(historySource, "empty").Inc()
	default:
		c.metrics.SourceRequests.WithLabelValues(historySource, "error").Inc()
	}
	return h, err
}

func (c *Client) fetchHistory(ctx context.Context, fullURL string) (domain.HydroHistory, error) {
	pr, err := c.fetchPoint(ctx, fullURL)
	if err != nil {
		return domain.HydroHistory{}, err
	}
	cd := pr.ChartData
	if cd == nil || cd.Hindcast == nil || cd.Forecast == nil {
		return domain.HydroHistory{}, fmt.Errorf("%w: no hindcast or forecast", domain.ErrNoObservation)
	}

	coords := pr.PoiCenter.Geometry.Coordinates
	if coords == nil {
		coords = []float64{}
	}
	h := domain.HydroHistory{
		Station: domain.StationInfo{
			ID:          pr.Station.SubID,
			Name:        pr.Station.Name,
			River:       pr.Station.River,
			Country:     pr.Station.Country,
			Coordinates: coords,
		},
		History:    series(cd.Hindcast),
		Forecast:   series(cd.Forecast),
		Thresholds: domain.StationThresholds{HQ2: cd.HQ2, HQ5: cd.HQ5, HQ30: cd.HQ30},
		ScaleTicks: make(map[string]string, len(cd.ScaleTicks)),
	}
	for _, tick := range cd.ScaleTicks {
		ms, ok := tick[0].(float64)
		if !ok {
			continue
		}
		h.ScaleTicks[strconv.FormatFloat(ms, 'f', -1, 64)] = fmt.Sprint(tick[1])
	}
	c.logger.Debug("fanfar history read", "station", pr.Station.Name, "subid", pr.Station.SubID,
		"history_points", len(h.History), "forecast_points", len(h.Forecast))
	return h, nil
}

func series(points [][2]*float64) []domain.HydroPoint {
	out := make([]domain.HydroPoint, 0, len(points))
	for _, p := range points {
		if p[0] == nil {
			continue
		}
		out = append(out, domain.HydroPoint{
			Time:      time.UnixMilli(int64(*p[0])).UTC(),
			Discharge: p[1],
			Unit:      dischargeUnits,
		})
	}
	return out
}
