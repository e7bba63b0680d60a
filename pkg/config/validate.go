package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Validate Agent身份校验，ID 会拼进 topic 和 URL path，不能包含 '/' 或空白
func (a *AgentConfig) Validate() error {
	if err := valid.Struct(a); err != nil {
		return err
	}
	if strings.TrimSpace(a.ID) != a.ID {
		return fmt.Errorf("agent.id must not have leading or trailing whitespace, got %q", a.ID)
	}
	if strings.ContainsAny(a.ID, "/\\ \t\r\n?#") {
		return fmt.Errorf("agent.id %q must not contain '/', '\\\\', '?', '#' or whitespace", a.ID)
	}
	return nil
}

// Validate 上报端点校验
func (s *SinkConfig) Validate() error {
	if err := valid.Struct(s); err != nil {
		return err
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("sink.base_url invalid, got %s: %w", s.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("sink.base_url scheme must be http or https, got %q", u.Scheme)
	}
	if s.Breaker.Enable && s.Breaker.MaxFailures == 0 {
		return errors.New("sink.breaker.max_failures must be greater than 0 when breaker is enabled")
	}
	return nil
}

// Validate 周期任务校验
func (s *ScheduleConfig) Validate() error {
	if err := valid.Struct(s); err != nil {
		return err
	}
	intervals := map[string]time.Duration{
		"schedule.metrics_interval":      s.MetricsInterval,
		"schedule.logs_interval":         s.LogsInterval,
		"schedule.registration_interval": s.RegistrationInterval,
		"schedule.processes_interval":    s.ProcessesInterval,
	}
	for name, d := range intervals {
		if d < 100*time.Millisecond || d > time.Hour {
			return fmt.Errorf("%s must be between 100ms and 1h, got %s", name, d)
		}
	}
	if !s.MetricsEnabled && !s.LogsEnabled && !s.RegistrationEnabled && !s.ProcessesEnabled {
		return errors.New("schedule: at least one job must be enabled")
	}
	if len(s.LogLevels) == 0 || len(s.LogMessages) == 0 {
		return errors.New("schedule.log_levels and schedule.log_messages cannot be empty")
	}
	for _, l := range s.LogLevels {
		switch strings.ToUpper(strings.TrimSpace(l)) {
		case "INFO", "WARN", "ERROR":
		default:
			return fmt.Errorf("schedule.log_levels: invalid level %q (valid: INFO/WARN/ERROR)", l)
		}
	}
	return nil
}

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	// 	用net包解析地址，验证格式合法性
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected: :port or ip:port), got %s: %w", h.Addr, err)
	}
	return nil
}

// Validate 日志配置校验
func (l *ZapLogConfig) Validate() error {
	if err := valid.Struct(l); err != nil {
		return fmt.Errorf("日志配置字段非法: %w", err)
	}
	// 	校验日志路径(非空，确保可创建)
	abs, err := filepath.Abs(l.Path)
	if err != nil {
		return fmt.Errorf("log.path failed to parse, got %s: %w", l.Path, err)
	}
	if err := ensureDir(abs); err != nil {
		return fmt.Errorf("log.path is not writable, got %s: %w", l.Path, err)
	}
	return nil
}

func ensureDir(path string) error {
	stat, err := os.Stat(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
