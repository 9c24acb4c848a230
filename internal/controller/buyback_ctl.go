package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"grading_sync_v1/internal/api/dto"
	"grading_sync_v1/internal/middleware"
	"grading_sync_v1/internal/service"
)

// BuybackController 回购报价（员工端）
type BuybackController struct {
	buybackService *service.BuybackService
}

func NewBuybackController(buybackService *service.BuybackService) *BuybackController {
	return &BuybackController{buybackService: buybackService}
}

// Create 创建报价
// @Summary 创建回购报价
// @Tags Buyback
// @Accept json
// @Param request body dto.OfferCreateReq true "报价"
// @Success 200 {object} dto.OfferResp
// @Failure 422 {object} map[string]interface{} "卡片不属于该客户或未评级"
// @Router /api/v1/buyback-offers [post]
func (h *BuybackController) Create(c *gin.Context) {
	var req dto.OfferCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	in := service.CreateOfferInput{
		CompanyID:     middleware.GetCompanyID(c),
		CustomerID:    req.CustomerID,
		DeadlineHours: req.DeadlineHours,
	}
	if req.BulkDiscountPercent != nil {
		in.BulkDiscountPercent = *req.BulkDiscountPercent
	} else {
		in.BulkDiscountPercent = decimal.Zero
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, service.OfferItemInput{
			CardID:      item.CardID,
			OfferAmount: item.OfferAmount,
			GradingFee:  item.GradingFee,
		})
	}

	offer, err := h.buybackService.CreateOffer(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, "报价已创建", service.ToOfferResp(offer))
}

// Get 报价详情
// @Summary 报价详情
// @Tags Buyback
// @Param id path int true "报价 ID"
// @Success 200 {object} dto.OfferResp
// @Router /api/v1/buyback-offers/{id} [get]
func (h *BuybackController) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	offer, err := h.buybackService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !sameCompany(c, offer.CompanyID) {
		return
	}
	success(c, "success", service.ToOfferResp(offer))
}

// Respond 员工代客户回复或撤销报价
// @Summary 回复报价（accept / decline / cancel）
// @Tags Buyback
// @Accept json
// @Param id path int true "报价 ID"
// @Param request body dto.OfferRespondReq true "操作"
// @Success 200 {object} dto.OfferResp
// @Failure 409 {object} map[string]interface{} "报价已处理"
// @Failure 410 {object} map[string]interface{} "报价已过期"
// @Router /api/v1/buyback-offers/{id}/respond [post]
func (h *BuybackController) Respond(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if !h.ownsOffer(c, id) {
		return
	}
	var req dto.OfferRespondReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	party := service.ActingParty{Role: service.PartyStaff, StaffID: middleware.GetStaffID(c)}
	offer, err := h.buybackService.Respond(c.Request.Context(), id, service.OfferAction(req.Action), party)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, "操作成功", service.ToOfferResp(offer))
}

// MarkPaid 标记已付款
// @Summary 标记报价已付款
// @Tags Buyback
// @Param id path int true "报价 ID"
// @Success 200 {object} dto.OfferResp
// @Router /api/v1/buyback-offers/{id}/paid [post]
func (h *BuybackController) MarkPaid(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if !h.ownsOffer(c, id) {
		return
	}

	offer, err := h.buybackService.MarkPaid(c.Request.Context(), id, middleware.GetStaffID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, "已标记付款", service.ToOfferResp(offer))
}

// ownsOffer 报价必须属于员工所在卡店，失败时已写入响应
func (h *BuybackController) ownsOffer(c *gin.Context, offerID int64) bool {
	offer, err := h.buybackService.Get(c.Request.Context(), offerID)
	if err != nil {
		writeError(c, err)
		return false
	}
	return sameCompany(c, offer.CompanyID)
}
