// Package agent 定义周期上报任务：指标、日志、注册心跳以及可选的进程快照。
package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/record"
	"github.com/telemetry-agent/pkg/sampler"
	"github.com/telemetry-agent/pkg/scheduler"
	"github.com/telemetry-agent/pkg/sink"
)

const (
	JobMetrics      = "metrics"
	JobLogs         = "logs"
	JobRegistration = "registration"
	JobProcesses    = "processes"
)

// MetricSampler 指标任务需要的采样能力（sampler.Sampler 的子集）
type MetricSampler interface {
	Sample(t sampler.Type) (float64, error)
}

// Agent 保存各任务共享的只读依赖
type Agent struct {
	schedule  config.ScheduleConfig
	sampler   MetricSampler
	processes sampler.ProcessLister
	builder   *record.Builder
	sink      sink.Sink
	logger    *zap.Logger

	levels   []record.Level
	messages []string
	pick     func(n int) int
}

// Option Agent 可选项
type Option func(*Agent)

// WithPicker 替换日志任务使用的随机下标函数
func WithPicker(pick func(n int) int) Option {
	return func(a *Agent) { a.pick = pick }
}

// WithProcesses 注入进程读取器，启用进程快照任务时必需
func WithProcesses(l sampler.ProcessLister) Option {
	return func(a *Agent) { a.processes = l }
}

// New 创建 Agent；日志池为空时使用默认池，非法级别直接报错
func New(schedule config.ScheduleConfig, s MetricSampler, b *record.Builder, out sink.Sink, logger *zap.Logger, opts ...Option) (*Agent, error) {
	if s == nil || b == nil || out == nil {
		return nil, errors.New("agent: sampler, builder and sink are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	levels := schedule.LogLevels
	if len(levels) == 0 {
		levels = config.DefaultLogLevels
	}
	messages := schedule.LogMessages
	if len(messages) == 0 {
		messages = config.DefaultLogMessages
	}

	a := &Agent{
		schedule: schedule,
		sampler:  s,
		builder:  b,
		sink:     out,
		logger:   logger,
		messages: messages,
		pick:     rand.IntN,
	}
	for _, l := range levels {
		level, err := record.ParseLevel(l)
		if err != nil {
			return nil, fmt.Errorf("agent: %w", err)
		}
		a.levels = append(a.levels, level)
	}
	for _, opt := range opts {
		opt(a)
	}
	if schedule.ProcessesEnabled && a.processes == nil {
		return nil, errors.New("agent: processes job enabled without a process lister")
	}
	return a, nil
}

// Jobs 返回已启用的任务及其间隔
func (a *Agent) Jobs() []scheduler.Job {
	var jobs []scheduler.Job
	if a.schedule.MetricsEnabled {
		jobs = append(jobs, scheduler.Job{Name: JobMetrics, Interval: a.schedule.MetricsInterval, Task: a.EmitMetrics})
	}
	if a.schedule.LogsEnabled {
		jobs = append(jobs, scheduler.Job{Name: JobLogs, Interval: a.schedule.LogsInterval, Task: a.EmitLog})
	}
	if a.schedule.RegistrationEnabled {
		jobs = append(jobs, scheduler.Job{Name: JobRegistration, Interval: a.schedule.RegistrationInterval, Task: a.Register})
	}
	if a.schedule.ProcessesEnabled {
		jobs = append(jobs, scheduler.Job{Name: JobProcesses, Interval: a.schedule.ProcessesInterval, Task: a.EmitProcesses})
	}
	return jobs
}

// EmitMetrics 采样 cpu、memory、load，每个可用信号上报一条；不可用的信号跳过。
// 全部失败时上报一条 ERROR 日志，本次 tick 返回错误。
func (a *Agent) EmitMetrics(ctx context.Context) error {
	var errs []error
	for _, t := range sampler.Types {
		v, err := a.sampler.Sample(t)
		if err != nil {
			a.logger.Warn("metric sample skipped", zap.String("type", string(t)), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		a.sink.Deliver(ctx, a.builder.MetricsTopic(), a.builder.Metric(t, v))
	}

	if len(errs) < len(sampler.Types) {
		return nil
	}
	err := errors.Join(errs...)
	a.sink.Deliver(ctx, a.builder.LogsTopic(),
		a.builder.Log(record.LevelError, "Failed to send metrics: "+err.Error()))
	return fmt.Errorf("no metric could be sampled: %w", err)
}

// EmitLog 从级别池和消息池各取一项，上报一条应用日志
func (a *Agent) EmitLog(ctx context.Context) error {
	level := a.levels[a.pick(len(a.levels))]
	message := a.messages[a.pick(len(a.messages))]
	a.sink.Deliver(ctx, a.builder.LogsTopic(), a.builder.Log(level, message))
	return nil
}

// Register 向固定 topic 上报注册心跳
func (a *Agent) Register(ctx context.Context) error {
	a.sink.Deliver(ctx, record.RegistrationTopic, a.builder.Registration())
	return nil
}

// EmitProcesses 上报占用最高的 process_limit 个进程；读取失败时本次不上报
func (a *Agent) EmitProcesses(ctx context.Context) error {
	stats, err := a.processes.Top(ctx, a.schedule.ProcessLimit)
	if err != nil {
		return fmt.Errorf("process snapshot: %w", err)
	}
	a.sink.Deliver(ctx, a.builder.ProcessesTopic(), a.builder.Processes(stats))
	return nil
}
