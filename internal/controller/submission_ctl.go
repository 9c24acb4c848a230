package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"grading_sync_v1/internal/api/dto"
	"grading_sync_v1/internal/service"
)

// SubmissionController 送评单维护
type SubmissionController struct {
	submissionService *service.SubmissionService
}

func NewSubmissionController(submissionService *service.SubmissionService) *SubmissionController {
	return &SubmissionController{submissionService: submissionService}
}

// Create 创建送评单
// @Summary 创建送评单
// @Tags Submission
// @Accept json
// @Produce json
// @Param request body dto.SubmissionCreateReq true "送评单"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "参数错误"
// @Failure 409 {object} map[string]interface{} "外部编号重复"
// @Router /api/v1/submissions [post]
func (h *SubmissionController) Create(c *gin.Context) {
	var req dto.SubmissionCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if !sameCompany(c, req.CompanyID) {
		return
	}

	in := service.CreateSubmissionInput{
		CompanyID:        req.CompanyID,
		ExternalNumber:   req.ExternalNumber,
		ServiceLevel:     req.ServiceLevel,
		DateSent:         req.DateSent,
		OutboundTracking: req.OutboundTracking,
		CustomerIDs:      req.CustomerIDs,
	}
	for _, card := range req.Cards {
		in.Cards = append(in.Cards, service.CreateCardInput{
			CustomerOwnerID: card.CustomerOwnerID,
			Description:     card.Description,
			Year:            card.Year,
			Brand:           card.Brand,
			Player:          card.Player,
			CardNumber:      card.CardNumber,
			CertNumber:      card.CertNumber,
		})
	}

	submission, err := h.submissionService.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, "创建成功", submission)
}

// Get 送评单详情
// @Summary 送评单详情（含节点与卡片）
// @Tags Submission
// @Param id path int true "送评单 ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "不存在"
// @Router /api/v1/submissions/{id} [get]
func (h *SubmissionController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	submission, err := h.submissionService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !sameCompany(c, submission.CompanyID) {
		return
	}
	success(c, "success", submission)
}

// Delete 删除送评单
// @Summary 删除送评单（节点、卡片、客户关联一并删除）
// @Tags Submission
// @Param id path int true "送评单 ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/submissions/{id} [delete]
func (h *SubmissionController) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	submission, err := h.submissionService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !sameCompany(c, submission.CompanyID) {
		return
	}

	if err := h.submissionService.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	success(c, "删除成功", gin.H{"id": id})
}
