// Package health 根据实时采样的 cpu 和内存判定 agent 为 UP 或 DOWN。
package health

import (
	"fmt"
	"strconv"
)

// State 健康状态
type State string

const (
	StateUp   State = "UP"
	StateDown State = "DOWN"
)

// Status 一次健康评估结果
type Status struct {
	State   State             `json:"status"`
	Details map[string]string `json:"details"`
}

// Sampler 健康检查需要的采样能力（sampler.Sampler 的子集）
type Sampler interface {
	CPU() (float64, error)
	Memory() (float64, error)
}

const (
	DefaultCPUThreshold    = 90
	DefaultMemoryThreshold = 90
)

// Reporter 每次调用都重新采样，调用之间不保存状态
type Reporter struct {
	sampler         Sampler
	identity        string
	cpuThreshold    float64
	memoryThreshold float64
}

// Option Reporter 可选项
type Option func(*Reporter)

// WithThresholds 覆盖降级阈值（百分比，严格大于才触发）
func WithThresholds(cpu, memory float64) Option {
	return func(r *Reporter) {
		r.cpuThreshold = cpu
		r.memoryThreshold = memory
	}
}

// NewReporter 创建健康检查器，默认阈值 90/90
func NewReporter(s Sampler, identity string, opts ...Option) *Reporter {
	r := &Reporter{
		sampler:         s,
		identity:        identity,
		cpuThreshold:    DefaultCPUThreshold,
		memoryThreshold: DefaultMemoryThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Health 总是返回结果，采样失败和 panic 均判定为 DOWN
func (r *Reporter) Health() (status Status) {
	defer func() {
		if p := recover(); p != nil {
			status = down(fmt.Sprint(p))
		}
	}()

	cpu, err := r.sampler.CPU()
	if err != nil {
		return down(err.Error())
	}
	memory, err := r.sampler.Memory()
	if err != nil {
		return down(err.Error())
	}

	if cpu > r.cpuThreshold || memory > r.memoryThreshold {
		return Status{
			State: StateDown,
			Details: map[string]string{
				"cpu":    percent(cpu),
				"memory": percent(memory),
				"status": "degraded",
			},
		}
	}
	return Status{
		State: StateUp,
		Details: map[string]string{
			"cpu":      percent(cpu),
			"memory":   percent(memory),
			"agent_id": r.identity,
		},
	}
}

func down(msg string) Status {
	return Status{State: StateDown, Details: map[string]string{"error": msg}}
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}
