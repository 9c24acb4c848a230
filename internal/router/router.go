package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"grading_sync_v1/internal/controller"
	"grading_sync_v1/internal/middleware"

	_ "grading_sync_v1/docs"
)

// Controllers 路由依赖的控制器
type Controllers struct {
	Submission *controller.SubmissionController
	Sync       *controller.SyncController
	Portal     *controller.PortalController
	Buyback    *controller.BuybackController
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctl Controllers, portalResolver middleware.PortalResolver) {
	// 访问 http://localhost:8080/swagger/index.html 查看接口文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 200, "message": "ok"})
	})

	// 员工端：JWT + 审计
	api := r.Group("/api/v1", middleware.JWTAuth(), middleware.AuditContext())
	{
		submissions := api.Group("/submissions")
		{
			submissions.POST("", ctl.Submission.Create)
			submissions.GET("/:id", ctl.Submission.Get)
			submissions.DELETE("/:id", ctl.Submission.Delete)
			submissions.PUT("/:id/external-number", ctl.Sync.AttachExternalNumber)
			submissions.POST("/:id/sync", ctl.Sync.SyncSubmission)
		}

		api.POST("/companies/:id/sync", ctl.Sync.SyncCompany)
		api.POST("/cards/:id/enrich", ctl.Sync.EnrichCard)

		// 门户令牌
		api.POST("/customers/:id/portal-tokens", ctl.Portal.IssueToken)
		api.DELETE("/portal-tokens/:token_id", ctl.Portal.RevokeToken)

		offers := api.Group("/buyback-offers")
		{
			offers.POST("", ctl.Buyback.Create)
			offers.GET("/:id", ctl.Buyback.Get)
			offers.POST("/:id/respond", ctl.Buyback.Respond)
			// 付款只允许店主操作
			offers.POST("/:id/paid", middleware.RequireRole(middleware.RoleOwner), ctl.Buyback.MarkPaid)
		}
	}

	// 客户门户：门户令牌
	portal := r.Group("/portal", middleware.PortalAuth(portalResolver))
	{
		portal.GET("/me", ctl.Portal.Me)
		portal.POST("/offers/:id/respond", ctl.Portal.RespondOffer)
	}
}
