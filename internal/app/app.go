package app

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"grading_sync_v1/internal/config"
	"grading_sync_v1/internal/controller"
	"grading_sync_v1/internal/middleware"
	"grading_sync_v1/internal/model"
	"grading_sync_v1/internal/repository"
	"grading_sync_v1/internal/router"
	"grading_sync_v1/internal/service"
	"grading_sync_v1/internal/task"
	"grading_sync_v1/pkg/clock"
	"grading_sync_v1/pkg/database"
)

// ==================== 依赖容器 ====================

// Container 依赖容器，HTTP 服务与 gradectl 共用
type Container struct {
	Config   *config.Config
	DB       *gorm.DB
	Clock    clock.Clock
	Limiter  *middleware.SyncRateLimiter
	Repos    *Repositories
	Services *Services
}

// Repositories 仓库集合
type Repositories struct {
	Company     repository.CompanyRepository
	Customer    repository.CustomerRepository
	Submission  repository.SubmissionRepository
	Card        repository.CardRepository
	PortalToken repository.PortalTokenRepository
	Buyback     repository.BuybackRepository
}

// Services 服务集合
type Services struct {
	Grading    *service.GradingClient
	Sync       *service.SyncService
	Submission *service.SubmissionService
	Portal     *service.PortalService
	Buyback    *service.BuybackService
}

// ==================== 初始化函数 ====================

// Open 连接数据库并迁移
func Open(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.InitDB(cfg.Database.DSN, cfg.Database.LogLevel, model.AllModels()...)
	if err != nil {
		return nil, err
	}
	if err := middleware.RegisterAuditCallbacks(db); err != nil {
		return nil, fmt.Errorf("注册审计回调失败: %w", err)
	}
	return db, nil
}

// NewContainer 组装仓库与服务
func NewContainer(cfg *config.Config, db *gorm.DB) *Container {
	clk := clock.Real()
	c := &Container{
		Config:  cfg,
		DB:      db,
		Clock:   clk,
		Limiter: middleware.NewSyncRateLimiter(clk),
		Repos:   initRepositories(db),
	}

	jwtCfg := middleware.DefaultJWTConfig()
	if cfg.JWT.Secret != "" {
		jwtCfg.SecretKey = cfg.JWT.Secret
	} else {
		log.Println("[App] 未配置 jwt.secret，使用默认密钥")
	}
	if cfg.JWT.Issuer != "" {
		jwtCfg.Issuer = cfg.JWT.Issuer
	}
	middleware.SetJWTConfig(jwtCfg)

	grading := service.NewGradingClient(service.GradingClientConfig{
		BaseURL: cfg.Grading.BaseURL,
		Timeout: cfg.Grading.Timeout,
	})
	intervals := service.SyncIntervals{
		Submission:  cfg.RateLimit.SubmissionInterval,
		Batch:       cfg.RateLimit.BatchInterval,
		CallSpacing: cfg.RateLimit.CallSpacing,
	}

	c.Services = &Services{
		Grading:    grading,
		Sync:       service.NewSyncService(c.Repos.Submission, c.Repos.Card, c.Repos.Company, grading, c.Limiter, clk, intervals),
		Submission: service.NewSubmissionService(c.Repos.Submission, c.Repos.Company, c.Repos.Customer),
		Portal:     service.NewPortalService(c.Repos.PortalToken, c.Repos.Customer, c.Repos.Submission, c.Repos.Buyback, clk, cfg.Portal.TokenTTL),
		Buyback:    service.NewBuybackService(c.Repos.Buyback, c.Repos.Card, c.Repos.Customer, c.Repos.Submission, clk),
	}
	return c
}

func initRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Company:     repository.NewCompanyRepository(db),
		Customer:    repository.NewCustomerRepository(db),
		Submission:  repository.NewSubmissionRepository(db),
		Card:        repository.NewCardRepository(db),
		PortalToken: repository.NewPortalTokenRepository(db),
		Buyback:     repository.NewBuybackRepository(db),
	}
}

// Controllers 初始化所有控制器
func (c *Container) Controllers() router.Controllers {
	return router.Controllers{
		Submission: controller.NewSubmissionController(c.Services.Submission),
		Sync:       controller.NewSyncController(c.Services.Sync),
		Portal:     controller.NewPortalController(c.Services.Portal, c.Services.Buyback),
		Buyback:    controller.NewBuybackController(c.Services.Buyback),
	}
}

// ==================== 定时任务 ====================

// StartTasks 按配置创建并启动后台任务
func (c *Container) StartTasks() (*task.TaskManager, error) {
	if !c.Config.Task.AutoRefreshEnabled {
		log.Println("[App] 自动刷新未开启")
	}
	tm := task.NewTaskManager(&task.TaskManagerDeps{
		Companies: c.Repos.Company,
		Syncer:    c.Services.Sync,
	}, &task.TaskManagerConfig{
		RefreshEnabled: c.Config.Task.AutoRefreshEnabled,
		RefreshSpec:    c.Config.Task.AutoRefreshCron,
	})
	if err := tm.Start(); err != nil {
		return nil, err
	}
	return tm, nil
}
