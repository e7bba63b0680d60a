package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSetRegistersAgentMetrics(t *testing.T) {
	reg := NewAgentRegistry(false)
	m := NewMetricFactory(NewPromRegistry(reg)).NewSet()

	m.JobTicks.WithLabelValues("metrics", "ok").Inc()
	m.Deliveries.WithLabelValues("agents", "rejected").Add(2)
	m.SampleValue.WithLabelValues("cpu").Set(42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobTicks.WithLabelValues("metrics", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("agents", "rejected")))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP agent_sample_value Most recent sampled value per metric type
# TYPE agent_sample_value gauge
agent_sample_value{type="cpu"} 42
`), "agent_sample_value")
	assert.NoError(t, err)
}

func TestDuplicateSetPanics(t *testing.T) {
	f := NewMetricFactory(NewPromRegistry(NewAgentRegistry(false)))
	f.NewSet()
	assert.Panics(t, func() { f.NewSet() })
}

func TestAgentRegistryWithProcessCollectors(t *testing.T) {
	families, err := NewAgentRegistry(true).Gather()
	require.NoError(t, err)

	var hasGo bool
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "go_") {
			hasGo = true
		}
	}
	assert.True(t, hasGo)
}
