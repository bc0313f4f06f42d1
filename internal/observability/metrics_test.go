package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/npcintent/internal/game/interaction"
)

func TestMetrics_RecordInteraction_CountsByOutcome(t *testing.T) {
	m := NewMetrics()
	m.RecordInteraction(interaction.IntentTalk, interaction.OutcomeDispatched)
	m.RecordInteraction(interaction.IntentTalk, interaction.OutcomeDispatched)
	m.RecordInteraction("Custom.Foo", interaction.OutcomeUnhandled)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.interactions.WithLabelValues("dispatched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.interactions.WithLabelValues("unhandled")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.interactions.WithLabelValues("rejected")))
}

func TestMetrics_SetInstances(t *testing.T) {
	m := NewMetrics()
	m.SetInstances(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.instances))
}

func TestMetrics_Handler_ServesCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordInteraction(interaction.IntentObserve, interaction.OutcomeRejected)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `npc_interactions_total{outcome="rejected"} 1`)
}
