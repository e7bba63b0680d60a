// Package record 构建 agent 上报的指标、日志、注册、进程快照载荷，并推导各自的 topic。
package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/telemetry-agent/pkg/sampler"
)

const (
	// SchemaVersion 每条指标的 "version" 标签
	SchemaVersion = "1.0"
	// LogSource 日志记录固定的 source 字段
	LogSource = "application"
	// RegistrationTopic 注册 topic 不带 agent 标识
	RegistrationTopic = "agents"
)

// Level 日志级别
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel 接受任意大小写的 INFO / WARN / ERROR
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(strings.TrimSpace(s))); l {
	case LevelInfo, LevelWarn, LevelError:
		return l, nil
	default:
		return "", fmt.Errorf("invalid log level %q", s)
	}
}

// MetricSample 单个采样值
type MetricSample struct {
	Timestamp  time.Time         `json:"timestamp"`
	AgentID    string            `json:"agent_id"`
	MetricType sampler.Type      `json:"metric_type"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit"`
	Labels     map[string]string `json:"labels"`
}

// LogRecord 日志记录，timestamp 为 epoch 秒
type LogRecord struct {
	Timestamp int64  `json:"timestamp"`
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	Service   string `json:"service"`
	AgentID   string `json:"agent_id"`
	Source    string `json:"source"`
}

// Capabilities 注册时声明的能力
type Capabilities struct {
	Logs      bool `json:"logs"`
	Metrics   bool `json:"metrics"`
	Traces    bool `json:"traces"`
	Processes bool `json:"processes"`
}

// RegistrationRecord 注册心跳
type RegistrationRecord struct {
	Name         string       `json:"name"`
	LastSeen     time.Time    `json:"last_seen"`
	Capabilities Capabilities `json:"capabilities"`
}

// ProcessInfo 进程快照中的一项
type ProcessInfo struct {
	PID        int32   `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
	Status     string  `json:"status"`
}

// ProcessSnapshot 一次进程采集，timestamp 为 epoch 秒
type ProcessSnapshot struct {
	Timestamp int64         `json:"timestamp"`
	AgentID   string        `json:"agent_id"`
	Processes []ProcessInfo `json:"processes"`
}

// Unit 指标类型对应的单位
func Unit(t sampler.Type) string {
	switch t {
	case sampler.CPU, sampler.Memory:
		return "percent"
	case sampler.Load:
		return "average"
	default:
		return "count"
	}
}
