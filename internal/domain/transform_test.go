package domain

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReading(t *testing.T) {
	t.Run("full reading", func(t *testing.T) {
		data := []byte(`{"timestamp":"2025-07-14T12:00:00+01:00","precipitation_mm":40,"temperature_c":29.5,"humidity_pct":81,"discharge_cumecs":55,"station_thresholds":{"hq2":20,"hq5":40,"hq30":80}}`)
		r, err := ParseReading(data)

		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 7, 14, 11, 0, 0, 0, time.UTC), r.Timestamp)
		require.NotNil(t, r.PrecipitationMM)
		assert.Equal(t, 40.0, *r.PrecipitationMM)
		require.NotNil(t, r.DischargeCumecs)
		assert.Equal(t, 55.0, *r.DischargeCumecs)
		require.NotNil(t, r.Thresholds.HQ30)
		assert.Equal(t, 80.0, *r.Thresholds.HQ30)
	})

	t.Run("absent values stay nil", func(t *testing.T) {
		r, err := ParseReading([]byte(`{"timestamp":"2025-07-14T12:00:00Z"}`))

		require.NoError(t, err)
		assert.Nil(t, r.PrecipitationMM)
		assert.Nil(t, r.DischargeCumecs)
		assert.Nil(t, r.Thresholds.HQ2)
	})

	t.Run("missing timestamp uses clock", func(t *testing.T) {
		fixed := time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)
		SetClock(clockwork.NewFakeClockAt(fixed))
		t.Cleanup(func() { SetClock(nil) })

		r, err := ParseReading([]byte(`{"precipitation_mm":3}`))
		require.NoError(t, err)
		assert.Equal(t, fixed, r.Timestamp)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := ParseReading([]byte(`{not json`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse reading")
	})

	t.Run("negative discharge", func(t *testing.T) {
		_, err := ParseReading([]byte(`{"discharge_cumecs":-1}`))
		require.ErrorIs(t, err, ErrInvalidReading)
	})
}

func TestReading_Validate(t *testing.T) {
	assert.NoError(t, Reading{TemperatureC: Float(-3)}.Validate())
	assert.ErrorIs(t, Reading{PrecipitationMM: Float(math.NaN())}.Validate(), ErrInvalidReading)
	assert.ErrorIs(t, Reading{TemperatureC: Float(math.Inf(1))}.Validate(), ErrInvalidReading)
	assert.ErrorIs(t, Reading{Thresholds: StationThresholds{HQ5: Float(-2)}}.Validate(), ErrInvalidReading)
}

func TestCombineReading(t *testing.T) {
	now := time.Date(2025, 7, 14, 12, 30, 0, 0, time.UTC)
	mt := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	ht := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)

	r := CombineReading(
		MeteoObservation{Time: mt, PrecipitationMM: Float(12), Source: "wigos"},
		HydroObservation{Time: ht, DischargeCumecs: Float(8), Thresholds: StationThresholds{HQ2: Float(20)}, Source: "fanfar"},
		now,
	)
	assert.Equal(t, mt, r.Timestamp)
	assert.Equal(t, "wigos", r.Sources.Meteo)
	assert.Equal(t, "fanfar", r.Sources.Hydro)
	assert.Equal(t, ht, r.Sources.HydroTime)
	assert.Equal(t, 8.0, *r.DischargeCumecs)

	r = CombineReading(MeteoObservation{}, HydroObservation{}, now)
	assert.Equal(t, now, r.Timestamp)
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, RiskHigh, RiskModerate.Max(RiskHigh))
	assert.Equal(t, RiskHigh, RiskHigh.Max(RiskModerate))
	assert.Equal(t, RiskModerate, RiskLow.Max(RiskModerate))
	assert.Equal(t, EntityMediumRisk, RiskModerate.Entity())

	for _, in := range []string{"High", "highrisk", " HIGH "} {
		l, err := ParseRiskLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, RiskHigh, l)
	}
	l, err := ParseRiskLevel("ModerateRisk")
	require.NoError(t, err)
	assert.Equal(t, RiskModerate, l)

	_, err = ParseRiskLevel("Severe")
	assert.Error(t, err)

	b, err := RiskModerate.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Moderate", string(b))
}

func TestAlertStatus(t *testing.T) {
	var a AlertStatus
	require.NoError(t, a.UnmarshalText([]byte("Alert")))
	assert.Equal(t, AlertRaised, a)
	assert.Equal(t, EntityAlert, a.Entity())
	assert.Equal(t, EntityNormal, AlertNormal.Entity())
	assert.Error(t, a.UnmarshalText([]byte("Panic")))
}

func TestRecommendations(t *testing.T) {
	assert.Len(t, Recommendations(RiskLow), 2)
	assert.Len(t, Recommendations(RiskModerate), 3)
	assert.Len(t, Recommendations(RiskHigh), 4)

	r := Recommendations(RiskHigh)
	r[0] = "changed"
	assert.Equal(t, "Evacuate high-risk areas", Recommendations(RiskHigh)[0])
}

func TestWaterLevel(t *testing.T) {
	assert.InDelta(t, 2.75, WaterLevel(55), 1e-9)
}

func TestNewSnapshotIDs(t *testing.T) {
	ts := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	a := NewSnapshotIDs(ts)
	b := NewSnapshotIDs(ts)

	assert.Regexp(t, `^analysis_[0-9a-f-]{36}$`, string(a.Analysis))
	assert.NotEqual(t, a.Analysis, b.Analysis)
	assert.Equal(t, "MeteoData_1752494400", string(a.MeteoData))
	assert.Equal(t, "HydroData_1752494400", string(a.HydroData))
	assert.Equal(t, a.HydroData, b.HydroData)
	assert.Equal(t, EntityCity, a.City)
}
