package task

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"grading_sync_v1/internal/model"
	"grading_sync_v1/internal/service"
)

// DefaultRefreshSpec 默认每 30 分钟执行（带秒字段）
const DefaultRefreshSpec = "0 */30 * * * *"

// CompanyLister 开启自动刷新的卡店
type CompanyLister interface {
	ListAutoRefresh(ctx context.Context) ([]model.Company, error)
}

// BatchSyncer 卡店级批量同步
type BatchSyncer interface {
	SyncAll(ctx context.Context, companyID int64) (*service.SyncBatchResult, error)
}

// RefreshSummary 单轮执行统计
type RefreshSummary struct {
	Companies   int
	Synced      int
	RateLimited int
	Failed      int
}

// ==================== AutoRefreshTask 自动刷新送评进度 ====================

// AutoRefreshTask 按计划逐个卡店调用批量同步
// 冷却与间隔由同步服务自身保证，任务只负责触发
type AutoRefreshTask struct {
	companies CompanyLister
	syncer    BatchSyncer
	cron      *cron.Cron
	timeout   time.Duration
}

// NewAutoRefreshTask 创建自动刷新任务
func NewAutoRefreshTask(companies CompanyLister, syncer BatchSyncer) *AutoRefreshTask {
	return &AutoRefreshTask{
		companies: companies,
		syncer:    syncer,
		cron:      cron.New(cron.WithSeconds()),
		timeout:   20 * time.Minute,
	}
}

// SetTimeout 设置单轮超时
func (t *AutoRefreshTask) SetTimeout(d time.Duration) {
	t.timeout = d
}

// Start 启动定时任务，spec 为空使用默认计划
func (t *AutoRefreshTask) Start(spec string) error {
	if spec == "" {
		spec = DefaultRefreshSpec
	}

	_, err := t.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		t.RunOnce(ctx)
	})
	if err != nil {
		log.Printf("[AutoRefreshTask] 定时任务启动失败: %v", err)
		return err
	}

	t.cron.Start()
	log.Printf("[AutoRefreshTask] 已启动 (%s)", spec)
	return nil
}

// Stop 停止任务，等待正在执行的一轮结束
func (t *AutoRefreshTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[AutoRefreshTask] 已停止")
}

// RunOnce 执行一轮刷新，卡店之间顺序执行
func (t *AutoRefreshTask) RunOnce(ctx context.Context) RefreshSummary {
	var summary RefreshSummary

	companies, err := t.companies.ListAutoRefresh(ctx)
	if err != nil {
		log.Printf("[AutoRefreshTask] 获取卡店列表失败: %v", err)
		return summary
	}
	if len(companies) == 0 {
		log.Println("[AutoRefreshTask] 无开启自动刷新的卡店")
		return summary
	}

	summary.Companies = len(companies)
	for _, company := range companies {
		if ctx.Err() != nil {
			log.Println("[AutoRefreshTask] 任务超时停止")
			break
		}

		result, err := t.syncer.SyncAll(ctx, company.ID)
		switch {
		case errors.Is(err, service.ErrRateLimited):
			summary.RateLimited++
			log.Printf("[AutoRefreshTask] 卡店 %d 冷却中，跳过: %v", company.ID, err)
		case err != nil:
			summary.Failed++
			log.Printf("[AutoRefreshTask] 卡店 %d 刷新失败: %v", company.ID, err)
		default:
			summary.Synced++
			log.Printf("[AutoRefreshTask] 卡店 %d 刷新完成: 共 %d, 失败 %d",
				company.ID, result.Total, len(result.Failures))
		}
	}
	return summary
}
