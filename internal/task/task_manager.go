package task

import (
	"context"
	"log"
	"time"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台任务
// 当前只有送评进度自动刷新，手动触发与定时执行共用同一实现
type TaskManager struct {
	refreshTask *AutoRefreshTask
	refreshSpec string
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Companies CompanyLister
	Syncer    BatchSyncer
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	RefreshEnabled bool
	RefreshSpec    string        // 带秒字段的 cron 表达式
	RefreshTimeout time.Duration // 单轮超时
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		RefreshEnabled: true,
		RefreshSpec:    DefaultRefreshSpec,
		RefreshTimeout: 20 * time.Minute,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{refreshSpec: cfg.RefreshSpec}

	if cfg.RefreshEnabled && deps.Companies != nil && deps.Syncer != nil {
		tm.refreshTask = NewAutoRefreshTask(deps.Companies, deps.Syncer)
		if cfg.RefreshTimeout > 0 {
			tm.refreshTask.SetTimeout(cfg.RefreshTimeout)
		}
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() error {
	log.Println("[TaskManager] 正在启动后台任务...")

	if tm.refreshTask != nil {
		if err := tm.refreshTask.Start(tm.refreshSpec); err != nil {
			return err
		}
	}

	log.Println("[TaskManager] 后台任务已全部启动")
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	log.Println("[TaskManager] 正在停止后台任务...")

	if tm.refreshTask != nil {
		tm.refreshTask.Stop()
	}

	log.Println("[TaskManager] 后台任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerRefresh 立即执行一轮自动刷新
func (tm *TaskManager) TriggerRefresh(ctx context.Context) (RefreshSummary, error) {
	if tm.refreshTask == nil {
		return RefreshSummary{}, ErrTaskDisabled
	}
	return tm.refreshTask.RunOnce(ctx), nil
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"auto_refresh": tm.refreshTask != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
