// Package sampler 从注入的 Source 读取 cpu、内存、负载信号，换算为 agent 上报的百分比/均值。
package sampler

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrMetricUnavailable 信号无法读取或没有意义
	ErrMetricUnavailable = errors.New("metric unavailable")
	// ErrUnsupported 当前平台不提供该信号，包裹 ErrMetricUnavailable
	ErrUnsupported = fmt.Errorf("unsupported on this platform: %w", ErrMetricUnavailable)
)

const (
	// cpuLoadFactor 1分钟负载换算为伪百分比的系数
	cpuLoadFactor = 20
	// cpuJitterStdDev cpu 高斯噪声的标准差
	cpuJitterStdDev = 10
)

// Type 采样信号类型
type Type string

const (
	CPU    Type = "cpu"
	Memory Type = "memory"
	Load   Type = "load"
)

// Types 指标任务的上报顺序
var Types = []Type{CPU, Memory, Load}

// Source 操作系统/运行时自省能力
type Source interface {
	// LoadAverage 1分钟系统负载均值
	LoadAverage() (float64, error)
	// MemoryUsage 已用与最大可管理内存（字节）
	MemoryUsage() (used, max uint64, err error)
}

// Sampler 将 Source 原始读数换算为上报值，并发安全
type Sampler struct {
	source Source
	jitter func() float64
	gauge  *prometheus.GaugeVec
}

// Option Sampler 可选项
type Option func(*Sampler)

// WithJitter 替换 cpu 使用的标准正态噪声源
func WithJitter(fn func() float64) Option {
	return func(s *Sampler) { s.jitter = fn }
}

// WithGauge 每次成功采样写入 g，标签为信号类型
func WithGauge(g *prometheus.GaugeVec) Option {
	return func(s *Sampler) { s.gauge = g }
}

// New 创建采样器，默认噪声源为 rand.NormFloat64
func New(source Source, opts ...Option) *Sampler {
	s := &Sampler{
		source: source,
		jitter: rand.NormFloat64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CPU 由负载均值加高斯噪声推导出的伪使用率，并非实测值
func (s *Sampler) CPU() (float64, error) {
	load, err := s.loadAverage()
	if err != nil {
		return 0, fmt.Errorf("cpu: %w", err)
	}
	v := Clamp(load*cpuLoadFactor+s.jitter()*cpuJitterStdDev, 0, 100)
	s.observe(CPU, v)
	return v, nil
}

// Memory used/max*100，限制在 [0,100]
func (s *Sampler) Memory() (float64, error) {
	used, max, err := s.source.MemoryUsage()
	if err != nil {
		return 0, fmt.Errorf("memory: %w", wrapUnavailable(err))
	}
	if max == 0 {
		return 0, fmt.Errorf("memory: max size unknown: %w", ErrMetricUnavailable)
	}
	v := Clamp(float64(used)/float64(max)*100, 0, 100)
	s.observe(Memory, v)
	return v, nil
}

// Load 1分钟负载均值原样返回
func (s *Sampler) Load() (float64, error) {
	v, err := s.loadAverage()
	if err != nil {
		return 0, err
	}
	s.observe(Load, v)
	return v, nil
}

// loadAverage 读取并校验负载，不写 gauge
func (s *Sampler) loadAverage() (float64, error) {
	v, err := s.source.LoadAverage()
	if err != nil {
		return 0, fmt.Errorf("load: %w", wrapUnavailable(err))
	}
	if v < 0 || math.IsNaN(v) {
		return 0, fmt.Errorf("load: negative load average %v: %w", v, ErrUnsupported)
	}
	return v, nil
}

// Sample 按类型分发到 CPU / Memory / Load
func (s *Sampler) Sample(t Type) (float64, error) {
	switch t {
	case CPU:
		return s.CPU()
	case Memory:
		return s.Memory()
	case Load:
		return s.Load()
	default:
		return 0, fmt.Errorf("unknown metric type %q: %w", t, ErrMetricUnavailable)
	}
}

func (s *Sampler) observe(t Type, v float64) {
	if s.gauge != nil {
		s.gauge.WithLabelValues(string(t)).Set(v)
	}
}

// Clamp 将 v 限制在 [lo, hi]，NaN 返回 lo
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wrapUnavailable(err error) error {
	if errors.Is(err, ErrMetricUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMetricUnavailable, err)
}
