package record

import (
	"time"

	"github.com/telemetry-agent/pkg/sampler"
)

// Builder 按固定 agent 标识构建记录，不做任何 I/O
type Builder struct {
	identity string
	host     string
	now      func() time.Time
}

// BuilderOption Builder 可选项
type BuilderOption func(*Builder)

// WithClock 替换 time.Now，用于测试
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// NewBuilder 创建记录构建器，host 写入指标的 host 标签
func NewBuilder(identity, host string, opts ...BuilderOption) *Builder {
	b := &Builder{identity: identity, host: host, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) Identity() string { return b.identity }

func (b *Builder) MetricsTopic() string { return "metrics-" + b.identity }

func (b *Builder) LogsTopic() string { return "logs-" + b.identity }

func (b *Builder) ProcessesTopic() string { return "processes-" + b.identity }

// Metric 构建单条指标
func (b *Builder) Metric(t sampler.Type, value float64) MetricSample {
	return MetricSample{
		Timestamp:  b.now().UTC(),
		AgentID:    b.identity,
		MetricType: t,
		Value:      value,
		Unit:       Unit(t),
		Labels: map[string]string{
			"host":    b.host,
			"version": SchemaVersion,
		},
	}
}

// Log 构建单条日志
func (b *Builder) Log(level Level, message string) LogRecord {
	return LogRecord{
		Timestamp: b.now().Unix(),
		Level:     level,
		Message:   message,
		Service:   b.identity,
		AgentID:   b.identity,
		Source:    LogSource,
	}
}

// Registration 能力为静态声明，全部为 true
func (b *Builder) Registration() RegistrationRecord {
	return RegistrationRecord{
		Name:     b.identity,
		LastSeen: b.now().UTC(),
		Capabilities: Capabilities{
			Logs:      true,
			Metrics:   true,
			Traces:    true,
			Processes: true,
		},
	}
}

// Processes 构建进程快照，空列表编码为 []
func (b *Builder) Processes(stats []sampler.ProcessStat) ProcessSnapshot {
	procs := make([]ProcessInfo, 0, len(stats))
	for _, s := range stats {
		procs = append(procs, ProcessInfo{
			PID:        s.PID,
			Name:       s.Name,
			CPUPercent: s.CPUPercent,
			MemoryMB:   s.MemoryMB,
			Status:     s.Status,
		})
	}
	return ProcessSnapshot{
		Timestamp: b.now().Unix(),
		AgentID:   b.identity,
		Processes: procs,
	}
}
