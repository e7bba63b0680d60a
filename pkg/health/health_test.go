package health

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telemetry-agent/pkg/sampler"
)

type stubSampler struct {
	cpu, memory       float64
	cpuErr, memoryErr error
	panicMsg          string
	calls             int
	mu                sync.Mutex
}

func (s *stubSampler) CPU() (float64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.cpu, s.cpuErr
}

func (s *stubSampler) Memory() (float64, error) { return s.memory, s.memoryErr }

func TestHealthDegradedOnHighCPU(t *testing.T) {
	st := NewReporter(&stubSampler{cpu: 95, memory: 10}, "svc-A").Health()

	assert.Equal(t, StateDown, st.State)
	assert.Equal(t, "degraded", st.Details["status"])
	assert.Equal(t, "95.00%", st.Details["cpu"])
	assert.Equal(t, "10.00%", st.Details["memory"])
	assert.NotContains(t, st.Details, "agent_id")
}

func TestHealthDegradedOnHighMemory(t *testing.T) {
	st := NewReporter(&stubSampler{cpu: 10, memory: 90.5}, "svc-A").Health()
	assert.Equal(t, StateDown, st.State)
	assert.Equal(t, "degraded", st.Details["status"])
}

func TestHealthUp(t *testing.T) {
	st := NewReporter(&stubSampler{cpu: 50, memory: 50}, "svc-A").Health()

	assert.Equal(t, StateUp, st.State)
	assert.Equal(t, map[string]string{
		"cpu":      "50.00%",
		"memory":   "50.00%",
		"agent_id": "svc-A",
	}, st.Details)
}

func TestHealthThresholdIsExclusive(t *testing.T) {
	st := NewReporter(&stubSampler{cpu: 90, memory: 90}, "svc-A").Health()
	assert.Equal(t, StateUp, st.State)
}

func TestHealthCustomThresholds(t *testing.T) {
	st := NewReporter(&stubSampler{cpu: 60, memory: 10}, "svc-A", WithThresholds(50, 80)).Health()
	assert.Equal(t, StateDown, st.State)
}

func TestHealthSamplerError(t *testing.T) {
	err := errors.New("memory: max size unknown")
	st := NewReporter(&stubSampler{cpu: 10, memoryErr: err}, "svc-A").Health()

	assert.Equal(t, StateDown, st.State)
	assert.Equal(t, map[string]string{"error": "memory: max size unknown"}, st.Details)
}

func TestHealthSamplerPanicDoesNotPropagate(t *testing.T) {
	r := NewReporter(&stubSampler{panicMsg: "introspection crashed"}, "svc-A")

	var st Status
	assert.NotPanics(t, func() { st = r.Health() })
	assert.Equal(t, StateDown, st.State)
	assert.Equal(t, "introspection crashed", st.Details["error"])
}

func TestHealthResamplesEveryCall(t *testing.T) {
	s := &stubSampler{cpu: 1, memory: 1}
	r := NewReporter(s, "svc-A")
	r.Health()
	r.Health()
	assert.Equal(t, 2, s.calls)
}

type unavailableSource struct{}

func (unavailableSource) LoadAverage() (float64, error)        { return -1, nil }
func (unavailableSource) MemoryUsage() (uint64, uint64, error) { return 1, 0, nil }

func TestHealthWithRealSamplerUnsupportedLoad(t *testing.T) {
	st := NewReporter(sampler.New(unavailableSource{}), "svc-A").Health()
	assert.Equal(t, StateDown, st.State)
	assert.Contains(t, st.Details["error"], "unsupported")
}
