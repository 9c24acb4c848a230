package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"grading_sync_v1/pkg/clock"
)

// ==================== SyncRateLimiter 同步限流器 ====================

// SyncRateLimiter 评级机构调用限流器
// 按 scope key 维护最近一次调用时间，同一 key 的检查与更新在同一把锁内完成
type SyncRateLimiter struct {
	clock clock.Clock
	locks sync.Map // key -> *lockEntry
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

// NewSyncRateLimiter 创建限流器
func NewSyncRateLimiter(c clock.Clock) *SyncRateLimiter {
	if c == nil {
		c = clock.Real()
	}
	return &SyncRateLimiter{clock: c}
}

func (r *SyncRateLimiter) entry(key string) *lockEntry {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	return actual.(*lockEntry)
}

// ==================== 限流检查 ====================

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Acquire 检查并占用冷却窗口
// 允许时立即记录本次调用，并发请求中只有一个能通过
func (r *SyncRateLimiter) Acquire(key string, interval time.Duration) CheckResult {
	entry := r.entry(key)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := r.clock.Now()
	if remaining := r.remaining(entry, now, interval); remaining > 0 {
		return CheckResult{Allowed: false, RetryAfter: remaining}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// CanCall 仅检查，不更新时间
func (r *SyncRateLimiter) CanCall(key string, interval time.Duration) CheckResult {
	actual, ok := r.locks.Load(key)
	if !ok {
		return CheckResult{Allowed: true}
	}

	entry := actual.(*lockEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if remaining := r.remaining(entry, r.clock.Now(), interval); remaining > 0 {
		return CheckResult{Allowed: false, RetryAfter: remaining}
	}
	return CheckResult{Allowed: true}
}

// RecordCall 记录一次已发生的调用
func (r *SyncRateLimiter) RecordCall(key string) {
	entry := r.entry(key)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.lastTime = r.clock.Now()
}

// Wait 阻塞直到冷却结束并占用窗口，用于批量同步时控制调用间隔
func (r *SyncRateLimiter) Wait(ctx context.Context, key string, interval time.Duration) error {
	for {
		result := r.Acquire(key, interval)
		if result.Allowed {
			return nil
		}
		if err := r.clock.Sleep(ctx, result.RetryAfter); err != nil {
			return err
		}
	}
}

// Reset 重置指定 key 的限流
// 只清空时间不删除条目，持有旧条目的并发调用仍在同一把锁上排队
func (r *SyncRateLimiter) Reset(key string) {
	actual, ok := r.locks.Load(key)
	if !ok {
		return
	}
	entry := actual.(*lockEntry)
	entry.mu.Lock()
	entry.lastTime = time.Time{}
	entry.mu.Unlock()
}

func (r *SyncRateLimiter) remaining(entry *lockEntry, now time.Time, interval time.Duration) time.Duration {
	if entry.lastTime.IsZero() {
		return 0
	}
	elapsed := now.Sub(entry.lastTime)
	if elapsed < interval {
		return interval - elapsed
	}
	return 0
}

// ==================== Key 生成工具 ====================

// SyncScope 限流维度
type SyncScope string

const (
	ScopeSubmission SyncScope = "submission" // 单个送评单刷新
	ScopeBatch      SyncScope = "batch"      // 全量刷新
	ScopeCall       SyncScope = "call"       // 批量内单次调用
)

// CompanySyncKey 生成卡店级限流 Key
func CompanySyncKey(companyID int64, scope SyncScope) string {
	return fmt.Sprintf("company:%d:%s", companyID, scope)
}

// ==================== 默认限流间隔 ====================

// DefaultIntervals 默认限流间隔配置
var DefaultIntervals = map[SyncScope]time.Duration{
	ScopeSubmission: 60 * time.Second,
	ScopeBatch:      10 * time.Minute,
	ScopeCall:       time.Second,
}

// GetInterval 获取限流维度的默认间隔
func GetInterval(scope SyncScope) time.Duration {
	if interval, ok := DefaultIntervals[scope]; ok {
		return interval
	}
	return 60 * time.Second
}
