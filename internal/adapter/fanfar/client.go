// Package fanfar reads simulated river discharge and return-period
// thresholds from the FANFAR HYPE point service.
package fanfar

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
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
)

const (
	// Source is the name recorded in readings and metrics.
	Source = "fanfar"

	DefaultBaseURL = "https://hypewebapp.smhi.se/fanfar/server/point"
	DefaultModel   = "wa-hype1.2_hgfd3.2_ecoper_noEOWL_INSITU-AR"
	DefaultSubID   = 208493
	DefaultY       = 12.41203
)

// Client implements domain.HydroSource for one HYPE sub-basin.
type Client struct {
	baseURL    string
	model      string
	subID      int
	y          float64
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a FANFAR client for the sub-basin subID at latitude y.
func NewClient(baseURL, model string, subID int, y float64, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		model:      model,
		subID:      subID,
		y:          y,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchHydro returns the first forecast point as the current discharge,
// with the hq2/hq5/hq30 thresholds.
func (c *Client) FetchHydro(ctx context.Context) (domain.HydroObservation, error) {
	u := c.pointURL(c.subID, c.y)

	start := time.Now()
	obs, err := c.doRequest(ctx, u)
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

func (c *Client) pointURL(subID int, y float64) string {
	params := url.Values{
		"x":     {"undefined"},
		"y":     {strconv.FormatFloat(y, 'f', -1, 64)},
		"subid": {strconv.Itoa(subID)},
	}
	return fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(c.model), params.Encode())
}

func (c *Client) fetchPoint(ctx context.Context, fullURL string) (pointResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return pointResponse{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pointResponse{}, fmt.Errorf("fanfar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pointResponse{}, fmt.Errorf("fanfar API error: status %d: %s", resp.StatusCode, body)
	}

	var pr pointResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return pointResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return pr, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.HydroObservation, error) {
	pr, err := c.fetchPoint(ctx, fullURL)
	if err != nil {
		return domain.HydroObservation{}, err
	}
	if pr.ChartData == nil || pr.ChartData.Forecast == nil {
		return domain.HydroObservation{}, fmt.Errorf("%w: no chart data", domain.ErrNoObservation)
	}

	cd := pr.ChartData
	obs := domain.HydroObservation{
		Thresholds: domain.StationThresholds{HQ2: cd.HQ2, HQ5: cd.HQ5, HQ30: cd.HQ30},
		Source:     Source,
	}
	if len(cd.Forecast) > 0 {
		p := cd.Forecast[0]
		if p[0] != nil {
			obs.Time = time.UnixMilli(int64(*p[0])).UTC()
		}
		obs.DischargeCumecs = p[1]
	}
	c.logger.Debug("fanfar point read", "station", pr.Station.Name, "subid", pr.Station.SubID, "forecast_points", len(cd.Forecast))
	return obs, nil
}

// FANFAR point response types.

type pointResponse struct {
	Station   station    `json:"station"`
	ChartData *chartData `json:"chartData"`
	PoiCenter struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"poiCenter"`
}

type station struct {
	SubID   int    `json:"subid"`
	Name    string `json:"name"`
	River   string `json:"river"`
	Country string `json:"country"`
}

type chartData struct {
	// Forecast points are [epoch milliseconds, discharge m³/s].
	Forecast [][2]*float64 `json:"forecast"`
	Hindcast [][2]*float64 `json:"hindcast"`
	// ScaleTicks are [epoch milliseconds, label] pairs.
	ScaleTicks [][2]any `json:"scaleticks"`
	HQ2        *float64 `json:"hq2"`
	HQ5        *float64 `json:"hq5"`
	HQ30       *float64 `json:"hq30"`
}
