// Package sink 将记录投递到远端 ingest 端点。
// 尽力而为：不重试、不缓存，失败只记日志和计数，不返回给调用方。
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/metrics"
	"github.com/telemetry-agent/pkg/version"
)

// Sink 向指定 topic 投递载荷，实现不得 panic 且须并发安全
type Sink interface {
	Deliver(ctx context.Context, topic string, payload any)
}

const (
	resultOK       = "ok"
	resultError    = "error"
	resultRejected = "rejected"
)

// StatusError ingest 返回非 2xx
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ingest returned status %d: %s", e.Code, e.Body)
}

// HTTPSink 以 JSON POST 到 {baseURL}/api/ingest/{topic}，所有调用方共享同一个 client
type HTTPSink struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Set
}

// Option HTTPSink 可选项
type Option func(*HTTPSink)

// WithHTTPClient 替换默认 client，不修改其 Timeout
func WithHTTPClient(c *http.Client) Option {
	return func(s *HTTPSink) { s.client = c }
}

// NewHTTPSink 创建 HTTP 投递器；breaker.enable 时启用熔断
func NewHTTPSink(cfg config.SinkConfig, logger *zap.Logger, m *metrics.Set, opts ...Option) *HTTPSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNopSet()
	}
	s := &HTTPSink{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		logger:  logger,
		metrics: m,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
	if cfg.Breaker.Enable {
		s.breaker = newBreaker(cfg.Breaker, logger)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newBreaker(cfg config.BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ingest",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("ingest circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Deliver 只发送一次，所有失败在此终止
func (s *HTTPSink) Deliver(ctx context.Context, topic string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.Deliveries.WithLabelValues(topic, resultError).Inc()
			s.logger.Error("delivery panicked", zap.String("topic", topic), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	err := s.send(ctx, topic, payload)
	s.metrics.DeliveryDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		s.metrics.Deliveries.WithLabelValues(topic, resultOK).Inc()
		s.logger.Debug("record delivered", zap.String("topic", topic))
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		s.metrics.Deliveries.WithLabelValues(topic, resultRejected).Inc()
		s.logger.Debug("record dropped, ingest circuit open", zap.String("topic", topic))
	default:
		s.metrics.Deliveries.WithLabelValues(topic, resultError).Inc()
		s.logger.Warn("record delivery failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (s *HTTPSink) send(ctx context.Context, topic string, payload any) error {
	if s.breaker == nil {
		return s.post(ctx, topic, payload)
	}
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, topic, payload)
	})
	return err
}

func (s *HTTPSink) post(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL(topic), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	// 读完 body 以复用连接
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// URL topic 对应的 ingest 地址
func (s *HTTPSink) URL(topic string) string {
	return s.baseURL + "/api/ingest/" + url.PathEscape(topic)
}
