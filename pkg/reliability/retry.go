// Package reliability retries operations against storage that may not be ready yet.
package reliability

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy 重试策略
type RetryPolicy struct {
	MaxRetries    int
	RetryInterval time.Duration
	BackoffFactor float64
	// OnError 每次失败后调用, attempt 从 1 开始
	OnError func(attempt int, err error)
}

// DefaultRetryPolicy 默认策略: 重试3次, 间隔1秒, 每次翻倍
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:    3,
		RetryInterval: time.Second,
		BackoffFactor: 2.0,
	}
}

// ExecuteWithRetry 使用重试执行操作; ctx 取消时立即返回
func ExecuteWithRetry(ctx context.Context, policy *RetryPolicy, fn func(ctx context.Context) error) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}

	var lastErr error
	interval := policy.RetryInterval

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if policy.OnError != nil {
			policy.OnError(attempt+1, err)
		}

		// 如果还有重试机会，等待
		if attempt < policy.MaxRetries {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry aborted after %d attempts: %w", attempt+1, ctx.Err())
			case <-timer.C:
			}
			if policy.BackoffFactor > 0 {
				interval = time.Duration(float64(interval) * policy.BackoffFactor)
			}
		}
	}

	if policy.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries (%d) exceeded, last error: %w", policy.MaxRetries, lastErr)
}
