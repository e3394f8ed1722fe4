package server

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBusy 在等待时间内拿不到推理名额
var ErrBusy = errors.New("server busy")

// Limiter 用信号量控制同时进行的推理数量
type Limiter struct {
	slots   chan struct{}
	timeout time.Duration
}

// NewLimiter timeout <= 0 时只受 ctx 约束
func NewLimiter(maxConcurrent int, timeout time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		timeout: timeout,
	}
}

// Acquire 获取推理名额，成功时返回释放函数
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	select {
	case l.slots <- struct{}{}:
		return func() { <-l.slots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}
}

func (l *Limiter) InUse() int { return len(l.slots) }

func (l *Limiter) Capacity() int { return cap(l.slots) }
