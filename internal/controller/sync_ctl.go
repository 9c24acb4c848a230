package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"grading_sync_v1/internal/api/dto"
	"grading_sync_v1/internal/middleware"
	"grading_sync_v1/internal/service"
)

// SyncController 评级进度同步
type SyncController struct {
	syncService *service.SyncService
}

// NewSyncController 创建同步控制器
func NewSyncController(syncService *service.SyncService) *SyncController {
	return &SyncController{syncService: syncService}
}

// ==================== Handler 实现 ====================

// SyncSubmission 同步单个送评单
// @Summary 手动刷新送评进度
// @Tags Sync
// @Param id path int true "送评单 ID"
// @Success 200 {object} dto.SyncResp
// @Failure 422 {object} map[string]interface{} "未配置外部编号或凭证"
// @Failure 429 {object} map[string]interface{} "冷却中"
// @Failure 502 {object} map[string]interface{} "评级机构接口异常"
// @Router /api/v1/submissions/{id}/sync [post]
func (c *SyncController) SyncSubmission(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	if !c.ownsSubmission(ctx, id) {
		return
	}

	result, err := c.syncService.SyncOne(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	success(ctx, "同步完成", toSyncResp(result))
}

// SyncCompany 同步卡店下所有未寄回的送评单
// @Summary 全量刷新送评进度
// @Tags Sync
// @Param id path int true "卡店 ID"
// @Success 200 {object} dto.SyncBatchResp
// @Failure 403 {object} map[string]interface{} "非本店员工"
// @Failure 429 {object} map[string]interface{} "冷却中"
// @Router /api/v1/companies/{id}/sync [post]
func (c *SyncController) SyncCompany(ctx *gin.Context) {
	companyID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if !sameCompany(ctx, companyID) {
		return
	}

	result, err := c.syncService.SyncAll(ctx.Request.Context(), companyID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	success(ctx, "批量同步完成", toSyncBatchResp(result))
}

// AttachExternalNumber 绑定外部送评编号
// @Summary 绑定外部送评编号
// @Tags Sync
// @Accept json
// @Param id path int true "送评单 ID"
// @Param request body dto.AttachExternalNumberReq true "外部编号"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "编号已被其他送评单使用"
// @Router /api/v1/submissions/{id}/external-number [put]
func (c *SyncController) AttachExternalNumber(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if !c.ownsSubmission(ctx, id) {
		return
	}
	var req dto.AttachExternalNumberReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, err.Error(), nil)
		return
	}

	submission, err := c.syncService.AttachExternalNumber(ctx.Request.Context(), id, req.ExternalNumber)
	if err != nil {
		writeError(ctx, err)
		return
	}
	success(ctx, "绑定成功", submission)
}

// EnrichCard 按证书号补全卡片
// @Summary 从评级机构补全卡片信息
// @Tags Sync
// @Param id path int true "卡片 ID"
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{} "卡片没有证书号"
// @Router /api/v1/cards/{id}/enrich [post]
func (c *SyncController) EnrichCard(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	companyID, err := c.syncService.CardCompany(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	if !sameCompany(ctx, companyID) {
		return
	}

	card, err := c.syncService.EnrichCard(ctx.Request.Context(), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	success(ctx, "卡片信息已更新", card)
}

// ownsSubmission 送评单必须属于员工所在卡店，失败时已写入响应
func (c *SyncController) ownsSubmission(ctx *gin.Context, submissionID int64) bool {
	companyID, err := c.syncService.SubmissionCompany(ctx.Request.Context(), submissionID)
	if err != nil {
		writeError(ctx, err)
		return false
	}
	return sameCompany(ctx, companyID)
}

// sameCompany 员工只能操作本店数据，失败时已写入 403
// 上下文中没有卡店时一律拒绝
func sameCompany(ctx *gin.Context, companyID int64) bool {
	if staffCompany := middleware.GetCompanyID(ctx); staffCompany == 0 || staffCompany != companyID {
		fail(ctx, http.StatusForbidden, "无权操作其他卡店的数据", nil)
		return false
	}
	return true
}
