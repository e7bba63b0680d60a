package agent

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetry-agent/pkg/agent"
	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/record"
	"github.com/telemetry-agent/pkg/sampler"
	"github.com/telemetry-agent/pkg/scheduler"
	"github.com/telemetry-agent/pkg/sink"
)

func TestFlagsMapOntoConfigKeys(t *testing.T) {
	args := []string{
		"--config=" + filepath.Join(t.TempDir(), "absent.yaml"),
		"--agent.id=svc-B",
		"--sink.base_url=http://ingest:9000",
		"--sink.breaker.max_failures=7",
		"--schedule.metrics_interval=1s",
		"--health.cpu_threshold=80",
		"--server.read_timeout=2s",
		"--log.path=" + t.TempDir(),
		"--log.max_age=3",
		"--schedule.logs_enabled=false",
		"--schedule.processes_enabled",
		"--schedule.process_limit=5",
	}
	require.NoError(t, rootCmd.ParseFlags(args))

	cfg, err := config.LoadConfigWithCli(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, "svc-B", cfg.Agent.ID)
	assert.Equal(t, "http://ingest:9000", cfg.Sink.BaseURL)
	assert.Equal(t, uint32(7), cfg.Sink.Breaker.MaxFailures)
	assert.Equal(t, time.Second, cfg.Schedule.MetricsInterval)
	assert.Equal(t, 10*time.Second, cfg.Schedule.LogsInterval)
	assert.Equal(t, 80.0, cfg.Health.CPUThreshold)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 3, cfg.Log.MaxAge)
	assert.Equal(t, config.DefaultLogMessages, cfg.Schedule.LogMessages)
	assert.False(t, cfg.Schedule.LogsEnabled)
	assert.True(t, cfg.Schedule.MetricsEnabled)
	assert.True(t, cfg.Schedule.ProcessesEnabled)
	assert.Equal(t, 5, cfg.Schedule.ProcessLimit)
}

func TestRegisterJobsSkipsDisabled(t *testing.T) {
	schedule := config.NewDefaultConfig().Schedule
	schedule.LogsEnabled = false
	schedule.ProcessesEnabled = true

	s := sampler.New(sampler.NewHostSource())
	a, err := agent.New(schedule, s, record.NewBuilder("svc-A", "h"),
		sink.NewHTTPSink(config.NewDefaultConfig().Sink, nil, nil), nil,
		agent.WithProcesses(sampler.NewHostProcesses()))
	require.NoError(t, err)

	sched := scheduler.New(nil, nil)
	require.NoError(t, registerJobs(sched, a))
	assert.Equal(t, []string{agent.JobMetrics, agent.JobRegistration, agent.JobProcesses}, sched.Jobs())
}
