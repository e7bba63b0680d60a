package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀（TELEMETRY_SINK_BASE_URL -> sink.base_url）
const EnvPrefix = "TELEMETRY"

var valid = validator.New()

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Agent    AgentConfig    `yaml:"agent" mapstructure:"agent" comment:"Agent身份配置"`
	Sink     SinkConfig     `yaml:"sink" mapstructure:"sink" comment:"上报端点配置"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule" comment:"周期任务配置"`
	Health   HealthConfig   `yaml:"health" mapstructure:"health" comment:"健康检查阈值"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server" comment:"HTTP服务配置"`
	Log      ZapLogConfig   `yaml:"log" mapstructure:"log" comment:"日志配置"`
}

// AgentConfig Agent身份，启动后不可变
type AgentConfig struct {
	ID   string `yaml:"id" mapstructure:"id" env:"AGENT_ID" validate:"required" comment:"Agent唯一标识（路由/标签键）" default:"unknown-app"`
	Host string `yaml:"host" mapstructure:"host" env:"AGENT_HOST" comment:"host标签，为空时自动探测主机名"`
}

// SinkConfig 远端ingest端点配置
type SinkConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url" env:"SINK_BASE_URL" validate:"required,url" comment:"上报基础地址" default:"http://localhost:8080"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" env:"SINK_TIMEOUT" validate:"required,gt=0" comment:"单次上报超时" default:"5s"`
	Breaker BreakerConfig `yaml:"breaker" mapstructure:"breaker" comment:"熔断配置"`
}

// BreakerConfig 连续失败后短路上报，不做重试
type BreakerConfig struct {
	Enable      bool          `yaml:"enable" mapstructure:"enable" env:"SINK_BREAKER_ENABLE" comment:"是否启用熔断" default:"true"`
	MaxFailures uint32        `yaml:"max_failures" mapstructure:"max_failures" env:"SINK_BREAKER_MAX_FAILURES" validate:"gte=0" comment:"连续失败次数阈值" default:"5"`
	OpenTimeout time.Duration `yaml:"open_timeout" mapstructure:"open_timeout" env:"SINK_BREAKER_OPEN_TIMEOUT" validate:"gte=0" comment:"熔断打开持续时间" default:"30s"`
}

// ScheduleConfig 周期任务的开关与间隔
type ScheduleConfig struct {
	MetricsInterval      time.Duration `yaml:"metrics_interval" mapstructure:"metrics_interval" env:"SCHEDULE_METRICS_INTERVAL" validate:"required,gt=0" comment:"指标上报间隔" default:"5s"`
	LogsInterval         time.Duration `yaml:"logs_interval" mapstructure:"logs_interval" env:"SCHEDULE_LOGS_INTERVAL" validate:"required,gt=0" comment:"日志上报间隔" default:"10s"`
	RegistrationInterval time.Duration `yaml:"registration_interval" mapstructure:"registration_interval" env:"SCHEDULE_REGISTRATION_INTERVAL" validate:"required,gt=0" comment:"注册心跳间隔" default:"30s"`
	ProcessesInterval    time.Duration `yaml:"processes_interval" mapstructure:"processes_interval" env:"SCHEDULE_PROCESSES_INTERVAL" validate:"required,gt=0" comment:"进程快照间隔" default:"30s"`
	MetricsEnabled       bool          `yaml:"metrics_enabled" mapstructure:"metrics_enabled" env:"SCHEDULE_METRICS_ENABLED" comment:"是否启用指标任务" default:"true"`
	LogsEnabled          bool          `yaml:"logs_enabled" mapstructure:"logs_enabled" env:"SCHEDULE_LOGS_ENABLED" comment:"是否启用日志任务" default:"true"`
	RegistrationEnabled  bool          `yaml:"registration_enabled" mapstructure:"registration_enabled" env:"SCHEDULE_REGISTRATION_ENABLED" comment:"是否启用注册任务" default:"true"`
	ProcessesEnabled     bool          `yaml:"processes_enabled" mapstructure:"processes_enabled" env:"SCHEDULE_PROCESSES_ENABLED" comment:"是否启用进程快照任务" default:"false"`
	ProcessLimit         int           `yaml:"process_limit" mapstructure:"process_limit" env:"SCHEDULE_PROCESS_LIMIT" validate:"gt=0,lte=1000" comment:"进程快照条数上限" default:"20"`
	LogLevels            []string      `yaml:"log_levels" mapstructure:"log_levels" comment:"模拟日志级别池"`
	LogMessages          []string      `yaml:"log_messages" mapstructure:"log_messages" comment:"模拟日志消息池"`
}

// HealthConfig 健康判定阈值（百分比）
type HealthConfig struct {
	CPUThreshold    float64 `yaml:"cpu_threshold" mapstructure:"cpu_threshold" validate:"gt=0,lte=100" default:"90"`
	MemoryThreshold float64 `yaml:"memory_threshold" mapstructure:"memory_threshold" validate:"gt=0,lte=100" default:"90"`
}

// ServerConfig HTTP服务配置（/health, /metrics）
type ServerConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr" env:"HTTP_ADDR" validate:"required,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"required,gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"required,gt=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"required,gt=0"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" env:"LOG_LEVEL" validate:"required,oneof=debug info warn error" comment:"日志级别" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" env:"LOG_FORMAT" validate:"required,oneof=json console" comment:"日志格式（json/console）" default:"json"`
	Path      string `yaml:"path" mapstructure:"path" env:"LOG_PATH" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" env:"LOG_MAX_SIZE" validate:"gt=0" comment:"单个日志文件最大大小（MB）" default:"100"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" env:"LOG_MAX_BACKUP" validate:"gte=0" comment:"日志文件最大备份数（max_age为0时生效）" default:"30"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"gte=0" comment:"日志文件最大保存天数" default:"7"`
}

// DefaultLogLevels 模拟日志的默认级别池
var DefaultLogLevels = []string{"INFO", "WARN", "ERROR"}

// DefaultLogMessages 模拟日志的默认消息池
var DefaultLogMessages = []string{
	"Application started successfully",
	"Processing user request",
	"Database connection established",
	"High memory usage detected",
	"Connection timeout occurred",
	"Request processing completed",
}

// NewDefaultConfig 创建默认配置（所有字段兜底，避免空指针/非法值）
func NewDefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			ID: "unknown-app",
		},
		Sink: SinkConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 5 * time.Second,
			Breaker: BreakerConfig{
				Enable:      true,
				MaxFailures: 5,
				OpenTimeout: 30 * time.Second,
			},
		},
		Schedule: ScheduleConfig{
			MetricsInterval:      5 * time.Second,
			LogsInterval:         10 * time.Second,
			RegistrationInterval: 30 * time.Second,
			ProcessesInterval:    30 * time.Second,
			MetricsEnabled:       true,
			LogsEnabled:          true,
			RegistrationEnabled:  true,
			ProcessLimit:         20,
			LogLevels:            append([]string(nil), DefaultLogLevels...),
			LogMessages:          append([]string(nil), DefaultLogMessages...),
		},
		Health: HealthConfig{
			CPUThreshold:    90,
			MemoryThreshold: 90,
		},
		Server: ServerConfig{
			Addr:         "0.0.0.0:9100",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  15 * time.Second,
		},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "json",
			Path:      "./logs",
			MaxSize:   100,
			MaxBackup: 30,
			MaxAge:    7,
		},
	}
}

// LoadConfigWithCli 支持 time.Duration，(Flags + YAML + ENV)
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. 解析配置文件 (--config)，文件不存在时仅使用默认值
	configFile, _ := cmd.Flags().GetString("config")
	return load(v, configFile)
}

// Load 从指定文件加载配置（不依赖命令行）
func Load(configFile string) (*Config, error) {
	return load(viper.New(), configFile)
}

func load(v *viper.Viper, configFile string) (*Config, error) {
	cfg := NewDefaultConfig()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config file %s: %w", configFile, err)
			}
		}
	}

	// 3. 绑定环境变量 ENV -> Viper （TELEMETRY_SINK_BASE_URL -> sink.base_url）
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys(reflect.TypeOf(*cfg), "") {
		_ = v.BindEnv(key)
	}

	// 4. 解码反序列化到结构体（支持 time.Duration）
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// 5. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// configKeys AutomaticEnv 只对已知 key 生效，按 mapstructure 标签展开所有叶子 key
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			keys = append(keys, configKeys(f.Type, name)...)
			continue
		}
		keys = append(keys, name)
	}
	return keys
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	// 	1，校验Agent身份
	if err := c.Agent.Validate(); err != nil {
		return err
	}
	// 	2，校验上报端点
	if err := c.Sink.Validate(); err != nil {
		return err
	}
	// 	3，校验周期任务
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	// 	4，校验HTTP服务
	if err := c.Server.Validate(); err != nil {
		return err
	}
	// 	5，校验日志配置
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
