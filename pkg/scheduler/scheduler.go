// Package scheduler 运行相互独立的周期任务。
//
// 每个任务一个 goroutine；单次 tick 的错误或 panic 只记日志和计数，任务照常继续。
// 同一任务的 tick 不会重叠，超时的 tick 推迟下一次执行而不是堆积。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telemetry-agent/pkg/metrics"
)

// Task 一次周期工作
type Task func(ctx context.Context) error

// Job 带名称和独立间隔的任务
type Job struct {
	Name     string
	Interval time.Duration
	Task     Task
}

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrDuplicateJob   = errors.New("job already registered")
)

const (
	resultOK    = "ok"
	resultError = "error"
	resultPanic = "panic"
)

// Scheduler 持有所有任务 goroutine
type Scheduler struct {
	mu      sync.Mutex
	jobs    []Job
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.Logger
	metrics *metrics.Set
}

// New 创建调度器，logger 和 m 可为 nil
func New(logger *zap.Logger, m *metrics.Set) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNopSet()
	}
	return &Scheduler{logger: logger, metrics: m}
}

// Register 注册任务，必须在 Start 之前调用
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", job.Name, job.Interval)
	}
	if job.Task == nil {
		return fmt.Errorf("job %s: task is nil", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	for _, existing := range s.jobs {
		if existing.Name == job.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
		}
	}
	s.jobs = append(s.jobs, job)
	s.logger.Debug("job registered", zap.String("job", job.Name), zap.Duration("interval", job.Interval))
	return nil
}

// Jobs 按注册顺序返回任务名
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.Name)
	}
	return names
}

// Start 启动所有任务，首次 tick 立即执行；ctx 取消或 Shutdown 时停止
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
	return nil
}

// Shutdown 取消所有任务，并在 ctx 到期前等待进行中的 tick
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs to stop: %w", ctx.Err())
	}
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()
	logger := s.logger.With(zap.String("job", job.Name))

	// time.Ticker 对慢接收方丢弃 tick，超时只会推迟下一次
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx, job)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("job stopped", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			// tick 与取消同时就绪时优先退出
			if ctx.Err() != nil {
				return
			}
			s.RunOnce(ctx, job)
		}
	}
}

// RunOnce 执行一次 tick，拦截错误和 panic
func (s *Scheduler) RunOnce(ctx context.Context, job Job) {
	start := time.Now()
	result := resultOK
	defer func() {
		if r := recover(); r != nil {
			result = resultPanic
			s.logger.Error("job tick panicked",
				zap.String("job", job.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
		s.metrics.JobTicks.WithLabelValues(job.Name, result).Inc()
		s.metrics.JobDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())
	}()

	if err := job.Task(ctx); err != nil {
		result = resultError
		s.logger.Warn("job tick failed", zap.String("job", job.Name), zap.Error(err))
		return
	}
	s.logger.Debug("job tick completed", zap.String("job", job.Name), zap.Duration("took", time.Since(start)))
}
