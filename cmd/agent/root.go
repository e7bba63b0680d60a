package agent

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telemetry-agent/pkg/agent"
	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/health"
	"github.com/telemetry-agent/pkg/logger"
	"github.com/telemetry-agent/pkg/metrics"
	"github.com/telemetry-agent/pkg/record"
	"github.com/telemetry-agent/pkg/sampler"
	"github.com/telemetry-agent/pkg/scheduler"
	"github.com/telemetry-agent/pkg/server"
	"github.com/telemetry-agent/pkg/signal"
	"github.com/telemetry-agent/pkg/sink"
	"github.com/telemetry-agent/pkg/util"
	"github.com/telemetry-agent/pkg/version"
)

var (
	cfgFile   string
	GlobalCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "telemetry-agent",
	Short:   "Lightweight in-process telemetry agent (metrics/logs/registration) with health and Prometheus endpoints",
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		GlobalCfg, err = config.LoadConfigWithCli(cmd)
		if err != nil {
			// 统一输出错误到 stderr，不返回给 cobra
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "请检查配置文件路径或使用 -c 参数指定\n")
			os.Exit(1)
		}
		if err := runAgent(cmd.Context(), GlobalCfg); err != nil {
			fmt.Fprintf(os.Stderr, "服务启动失败: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "配置文件路径（不存在时使用默认值）")
	// 注册分组 flag
	initAgentFlags(rootCmd)
	initServerFlags(rootCmd)
	initLogFlags(rootCmd)
}

func runAgent(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	//初始化日志
	baseLogger, err := logger.InitLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer logger.Sync()

	util.PrintBanner(os.Stdout, "telemetry-agent", util.ColorBlue, util.BannerInfo{
		Version:  version.Version,
		AgentID:  cfg.Agent.ID,
		Ingest:   cfg.Sink.BaseURL,
		HTTPAddr: cfg.Server.Addr,
	})

	logger.SetDefaultComponent("main")
	logger.Info("log initialization successful",
		zap.String("path", cfg.Log.Path),
		zap.String("level", cfg.Log.Level),
		zap.String("format", cfg.Log.Format))
	logger.Debug("configuration loaded", zap.String("config", cfgFile))

	// 自身指标
	const enableProcess = true
	registry := metrics.NewAgentRegistry(enableProcess)
	m := metrics.NewMetricFactory(metrics.NewPromRegistry(registry)).NewSet()

	// 采样、记录构建、上报
	s := sampler.New(sampler.NewHostSource(), sampler.WithGauge(m.SampleValue))
	host := cfg.Agent.Host
	if host == "" {
		host = record.DetectHost()
	}
	builder := record.NewBuilder(cfg.Agent.ID, host)
	out := sink.NewHTTPSink(cfg.Sink, logger.Named("sink"), m)

	a, err := agent.New(cfg.Schedule, s, builder, out, logger.Named("agent"),
		agent.WithProcesses(sampler.NewHostProcesses()))
	if err != nil {
		return fmt.Errorf("init agent: %w", err)
	}

	sched := scheduler.New(logger.Named("scheduler"), m)
	if err := registerJobs(sched, a); err != nil {
		return err
	}

	reporter := health.NewReporter(s, cfg.Agent.ID,
		health.WithThresholds(cfg.Health.CPUThreshold, cfg.Health.MemoryThreshold))

	httpServer := server.NewHTTPServer(cfg.Server, logger.Named("server"), registry, reporter)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("start HTTP server failed: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), signal.DefaultShutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return fmt.Errorf("start scheduler: %w", err)
	}
	logger.Info("telemetry agent started",
		zap.String("agent_id", cfg.Agent.ID),
		zap.String("host", host),
		zap.String("ingest", cfg.Sink.BaseURL),
		zap.Strings("jobs", sched.Jobs()))

	// 只注册已启用的任务；阻塞主goroutine，收到信号后按 调度器 -> HTTP服务 顺序关闭，共用一个超时
	return signal.WaitForShutdown(ctx, baseLogger, signal.DefaultShutdownTimeout, func(shutdownCtx context.Context) error {
		return errors.Join(sched.Shutdown(shutdownCtx), httpServer.Shutdown(shutdownCtx))
	})
}

// registerJobs 只注册配置中启用的任务
func registerJobs(sched *scheduler.Scheduler, a *agent.Agent) error {
	for _, job := range a.Jobs() {
		if err := sched.Register(job); err != nil {
			return fmt.Errorf("register job %s: %w", job.Name, err)
		}
	}
	return nil
}
