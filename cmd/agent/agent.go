package agent

import (
	"github.com/spf13/cobra"
)

func initAgentFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("agent.id", defaultCfg.Agent.ID, "-> Agent identity, used in topics and payloads | Agent唯一标识")
	f.String("agent.host", defaultCfg.Agent.Host, "-> Host label, detected when empty | host标签")

	f.String("sink.base_url", defaultCfg.Sink.BaseURL, "-> Ingest base URL | 上报基础地址")
	f.Duration("sink.timeout", defaultCfg.Sink.Timeout, "-> Per-delivery timeout | 单次上报超时")
	f.Bool("sink.breaker.enable", defaultCfg.Sink.Breaker.Enable, "-> Short-circuit deliveries after consecutive failures | 启用熔断")
	f.Uint32("sink.breaker.max_failures", defaultCfg.Sink.Breaker.MaxFailures, "-> Consecutive failures before opening | 熔断阈值")
	f.Duration("sink.breaker.open_timeout", defaultCfg.Sink.Breaker.OpenTimeout, "-> Open state duration | 熔断持续时间")

	f.Duration("schedule.metrics_interval", defaultCfg.Schedule.MetricsInterval, "-> Metrics job interval | 指标上报间隔")
	f.Duration("schedule.logs_interval", defaultCfg.Schedule.LogsInterval, "-> Log job interval | 日志上报间隔")
	f.Duration("schedule.registration_interval", defaultCfg.Schedule.RegistrationInterval, "-> Registration job interval | 注册心跳间隔")
	f.Duration("schedule.processes_interval", defaultCfg.Schedule.ProcessesInterval, "-> Process snapshot job interval | 进程快照间隔")
	f.Bool("schedule.metrics_enabled", defaultCfg.Schedule.MetricsEnabled, "-> Enable the metrics job | 启用指标任务")
	f.Bool("schedule.logs_enabled", defaultCfg.Schedule.LogsEnabled, "-> Enable the logs job | 启用日志任务")
	f.Bool("schedule.registration_enabled", defaultCfg.Schedule.RegistrationEnabled, "-> Enable the registration job | 启用注册任务")
	f.Bool("schedule.processes_enabled", defaultCfg.Schedule.ProcessesEnabled, "-> Enable the process snapshot job | 启用进程快照任务")
	f.Int("schedule.process_limit", defaultCfg.Schedule.ProcessLimit, "-> Processes per snapshot | 进程快照条数")

	f.Float64("health.cpu_threshold", defaultCfg.Health.CPUThreshold, "-> CPU percent above which health is DOWN | CPU阈值")
	f.Float64("health.memory_threshold", defaultCfg.Health.MemoryThreshold, "-> Memory percent above which health is DOWN | 内存阈值")
}
