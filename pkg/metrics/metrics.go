package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricFactory 指标工厂，用于统一创建指标（counter/gauge/histogram）。
type MetricFactory struct {
	reg Registers
}

// NewMetricFactory 创建指标工厂
func NewMetricFactory(reg Registers) *MetricFactory {
	return &MetricFactory{reg: reg}
}

// Set 各组件共享的一组 agent 自身指标
type Set struct {
	JobTicks         *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	Deliveries       *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
	SampleValue      *prometheus.GaugeVec
}

// NewSet 一次性创建并注册全部指标
func (f *MetricFactory) NewSet() *Set {
	return &Set{
		JobTicks:         f.NewJobTicksTotal(),
		JobDuration:      f.NewJobDurationSeconds(),
		Deliveries:       f.NewDeliveriesTotal(),
		DeliveryDuration: f.NewDeliveryDurationSeconds(),
		SampleValue:      f.NewSampleValue(),
	}
}

// NewNopSet 返回注册到私有 registry 的指标，用于测试和未暴露 /metrics 的场景
func NewNopSet() *Set {
	return NewMetricFactory(NewPromRegistry(prometheus.NewRegistry())).NewSet()
}

// NewJobTicksTotal 周期任务执行次数
// 标签：job 任务名；result 为 ok / error / panic
func (f *MetricFactory) NewJobTicksTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_job_ticks_total",
			Help: "Total number of scheduled job ticks by outcome",
		},
		[]string{"job", "result"},
	)
}

// NewJobDurationSeconds 单次 tick 耗时分布
func (f *MetricFactory) NewJobDurationSeconds() *prometheus.HistogramVec {
	return promauto.With(f.reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_job_duration_seconds",
			Help:    "Duration of scheduled job ticks",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms ~ 8s
		},
		[]string{"job"},
	)
}

// NewDeliveriesTotal 上报次数
// 标签：topic 目标 topic；result 为 ok / error / rejected
func (f *MetricFactory) NewDeliveriesTotal() *prometheus.CounterVec {
	return promauto.With(f.reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_deliveries_total",
			Help: "Total number of record deliveries by topic and outcome",
		},
		[]string{"topic", "result"},
	)
}

func (f *MetricFactory) NewDeliveryDurationSeconds() *prometheus.HistogramVec {
	return promauto.With(f.reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_delivery_duration_seconds",
			Help:    "Duration of ingest HTTP calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
}

// NewSampleValue 最近一次成功采样值（cpu/memory 为百分比，load 为负载均值）
func (f *MetricFactory) NewSampleValue() *prometheus.GaugeVec {
	return promauto.With(f.reg).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_sample_value",
			Help: "Most recent sampled value per metric type",
		},
		[]string{"type"},
	)
}
