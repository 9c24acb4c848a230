package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"grading_sync_v1/internal/api/dto"
	"grading_sync_v1/internal/middleware"
	"grading_sync_v1/internal/service"
)

// PortalController 客户门户与门户令牌管理
type PortalController struct {
	portalService  *service.PortalService
	buybackService *service.BuybackService
}

func NewPortalController(portalService *service.PortalService, buybackService *service.BuybackService) *PortalController {
	return &PortalController{
		portalService:  portalService,
		buybackService: buybackService,
	}
}

// ==================== 员工端 ====================

// IssueToken 签发门户令牌
// @Summary 为客户签发门户访问令牌（明文只返回一次）
// @Tags Portal
// @Accept json
// @Param id path int true "客户 ID"
// @Param request body dto.PortalTokenIssueReq false "有效期"
// @Success 200 {object} dto.PortalTokenResp
// @Router /api/v1/customers/{id}/portal-tokens [post]
func (h *PortalController) IssueToken(c *gin.Context) {
	customerID, ok := parseID(c, "id")
	if !ok {
		return
	}
	companyID, err := h.portalService.CustomerCompany(c.Request.Context(), customerID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !sameCompany(c, companyID) {
		return
	}

	var req dto.PortalTokenIssueReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}

	raw, token, err := h.portalService.IssueToken(c.Request.Context(), customerID, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, "签发成功", dto.PortalTokenResp{
		Token:     raw,
		TokenID:   token.TokenID,
		ExpiresAt: token.ExpiresAt,
	})
}

// RevokeToken 吊销门户令牌
// @Summary 吊销门户访问令牌
// @Tags Portal
// @Param token_id path string true "令牌 ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/portal-tokens/{token_id} [delete]
func (h *PortalController) RevokeToken(c *gin.Context) {
	tokenID := c.Param("token_id")
	companyID, err := h.portalService.TokenCompany(c.Request.Context(), tokenID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !sameCompany(c, companyID) {
		return
	}

	if err := h.portalService.RevokeToken(c.Request.Context(), tokenID); err != nil {
		writeError(c, err)
		return
	}
	success(c, "已吊销", gin.H{"token_id": tokenID})
}

// ==================== 客户端 ====================

// Me 客户可见的送评单、卡片与报价
// @Summary 客户门户首页数据
// @Tags Portal
// @Security PortalToken
// @Success 200 {object} dto.CustomerView
// @Failure 401 {object} map[string]interface{} "令牌无效"
// @Router /portal/me [get]
func (h *PortalController) Me(c *gin.Context) {
	success(c, "success", middleware.GetPortalView(c))
}

// RespondOffer 客户回复报价
// @Summary 客户接受或拒绝回购报价
// @Tags Portal
// @Security PortalToken
// @Accept json
// @Param id path int true "报价 ID"
// @Param request body dto.OfferRespondReq true "accept / decline"
// @Success 200 {object} dto.OfferResp
// @Failure 409 {object} map[string]interface{} "报价已处理"
// @Failure 410 {object} map[string]interface{} "报价已过期"
// @Router /portal/offers/{id}/respond [post]
func (h *PortalController) RespondOffer(c *gin.Context) {
	offerID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.OfferRespondReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	view := middleware.GetPortalView(c)
	party := service.ActingParty{Role: service.PartyCustomer, CustomerID: view.CustomerID}
	offer, err := h.buybackService.Respond(c.Request.Context(), offerID, service.OfferAction(req.Action), party)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, "已回复", service.ToOfferResp(offer))
}
