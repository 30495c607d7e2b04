package retry

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig 重试配置
type RetryConfig struct {
	// 最大尝试次数（包含第一次）
	MaxAttempts int `json:"max_attempts" mapstructure:"max_attempts"`

	// 初始延迟时间
	InitialDelay time.Duration `json:"initial_delay" mapstructure:"initial_delay"`

	// 最大延迟时间
	MaxDelay time.Duration `json:"max_delay" mapstructure:"max_delay"`

	// 退避因子（指数退避）
	BackoffFactor float64 `json:"backoff_factor" mapstructure:"backoff_factor"`
}

// DefaultRetryConfig 返回默认重试配置：3 次尝试，1 秒起步，每次翻倍，不加抖动
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Delay 第 n 次失败后的等待时间（n 从 1 开始）
func (c RetryConfig) Delay(n int) time.Duration {
	d := c.InitialDelay
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * c.BackoffFactor)
		if c.MaxDelay > 0 && d > c.MaxDelay {
			return c.MaxDelay
		}
	}
	return d
}

// NotifyFunc 每次失败且即将重试时调用，attempt 为已失败的次数
type NotifyFunc func(attempt int, err error, delay time.Duration)

// Do 执行 op，失败时按指数退避重试。不可重试的错误立即返回。
func Do(ctx context.Context, cfg RetryConfig, op func(attempt int) error, notify NotifyFunc) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialDelay
	eb.Multiplier = cfg.BackoffFactor
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	if cfg.MaxDelay > 0 {
		eb.MaxInterval = cfg.MaxDelay
	}
	eb.Reset()

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(cfg.MaxAttempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(attempt)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.RetryNotify(operation, b, func(err error, d time.Duration) {
		if notify != nil {
			notify(attempt, err, d)
		}
	})
}

// retryable 可自行声明是否可重试的错误
type retryable interface {
	IsRetryable() bool
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	// 未分类的错误默认重试，网络错误同样重试
	return true
}

// IsNetworkError 判断是否为网络错误
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"no such host",
		"broken pipe",
		"unexpected eof",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
