package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"grading_sync_v1/internal/app"
	"grading_sync_v1/internal/config"
	"grading_sync_v1/internal/router"
	"grading_sync_v1/internal/task"
)

// @title           Grading Sync API
// @version         1.0
// @description     卡店送评进度同步、客户门户与回购报价
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 1. 加载配置
	cfg, err := config.Load(getEnv("GRADING_CONFIG", ""))
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	gin.SetMode(cfg.Server.Mode)

	// 2. 初始化数据库
	db, err := app.Open(cfg)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}

	// 3. 初始化依赖
	deps := app.NewContainer(cfg, db)

	// 4. 启动定时任务
	tasks, err := deps.StartTasks()
	if err != nil {
		log.Fatalf("启动定时任务失败: %v", err)
	}

	// 5. 初始化路由
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	router.InitRoutes(r, deps.Controllers(), deps.Services.Portal)

	// 6. 启动服务
	startServer(r, cfg.Server.Port, tasks)
}

// ==================== 服务启动 ====================

func startServer(r *gin.Engine, port string, tasks *task.TaskManager) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	tasks.Stop()

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
