package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registers 接口通过接口隔离了 Prometheus 的默认实现，适合单测 mock，避免业务依赖 Prometheus 具体实现。
type Registers interface {
	prometheus.Registerer
}

// promRegistry Prometheus 实现，内部包裹了官方的 *prometheus.Registry
type promRegistry struct {
	registry *prometheus.Registry
}

// NewPromRegistry 创建 Prometheus 指标注册器
func NewPromRegistry(registry *prometheus.Registry) Registers {
	return &promRegistry{registry: registry}
}

// NewAgentRegistry 创建 agent 自身使用的 *prometheus.Registry，可选注册进程/Go运行时指标
func NewAgentRegistry(enableProcess bool) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	if enableProcess {
		reg.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	}
	return reg
}

// MustRegister 实现 prometheus.Registerer
func (p *promRegistry) MustRegister(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := p.registry.Register(c); err != nil {
			panic(err)
		}
	}
}

// Unregister 实现 prometheus.Registerer
func (p *promRegistry) Unregister(c prometheus.Collector) bool {
	return p.registry.Unregister(c)
}

// Register 实现 prometheus.Registerer
func (p *promRegistry) Register(c prometheus.Collector) error {
	return p.registry.Register(c)
}
