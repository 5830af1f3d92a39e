package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-service/internal/classify"
	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/pipeline"
)

func TestSerializeToMessage(t *testing.T) {
	produced := time.Date(2025, 7, 14, 12, 1, 0, 0, time.UTC)
	a := &pipeline.Assessment{
		Result: classify.Result{
			AnalysisID:  "analysis_1",
			Timestamp:   time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC),
			City:        "Ouagadougou",
			RiskLevel:   domain.RiskHigh,
			AlertStatus: domain.AlertRaised,
			Reasons:     []classify.Reason{{Rule: 5, Text: "Very heavy rainfall (40 mm)"}},
		},
		ProducedAt: produced,
	}

	msg, err := serializeToMessage(a)
	require.NoError(t, err)

	assert.Equal(t, []byte("analysis_1"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "risk_level", msg.Headers[0].Key)
	assert.Equal(t, []byte("High"), msg.Headers[0].Value)
	assert.Equal(t, "alert_status", msg.Headers[1].Key)
	assert.Equal(t, []byte("Alert"), msg.Headers[1].Value)
	assert.Equal(t, "produced_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(produced.Format(time.RFC3339)), msg.Headers[2].Value)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "analysis_1", body["analysis_id"])
	assert.Equal(t, "High", body["risk_level"])
	assert.Equal(t, "Ouagadougou", body["city"])
	assert.NotContains(t, body, "Graph", "the projection graph stays out of the message")
}
