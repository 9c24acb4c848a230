package clock

import (
	"context"
	"sync"
	"time"
)

// Clock 时间源
// 冷却窗口与报价截止时间都通过它取时间，便于测试时手动推进
type Clock interface {
	Now() time.Time
	// Sleep 阻塞 d，ctx 取消时提前返回 ctx.Err()
	Sleep(ctx context.Context, d time.Duration) error
}

// ==================== Real 系统时钟 ====================

type realClock struct{}

// Real 返回系统时钟
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ==================== Fake 测试时钟 ====================

// Fake 手动推进的时钟，Sleep 直接把时间往前拨
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake 创建测试时钟
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance 推进时间
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Advance(d)
	return nil
}
