package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ================== Buyback DTO ==================

// OfferCreateReq 创建回购报价
type OfferCreateReq struct {
	CustomerID          int64            `json:"customer_id" binding:"required"`
	Items               []OfferItemReq   `json:"items" binding:"required,min=1,dive"`
	BulkDiscountPercent *decimal.Decimal `json:"bulk_discount_percent"`
	DeadlineHours       int              `json:"deadline_hours" binding:"required,min=1"`
}

// OfferItemReq 报价明细
type OfferItemReq struct {
	CardID      int64           `json:"card_id" binding:"required"`
	OfferAmount decimal.Decimal `json:"offer_amount"`
	GradingFee  decimal.Decimal `json:"grading_fee"`
}

// OfferRespondReq 回复报价
// action: accept / decline / cancel（cancel 仅员工可用）
type OfferRespondReq struct {
	Action string `json:"action" binding:"required,oneof=accept decline cancel"`
}

// OfferResp 报价响应
type OfferResp struct {
	ID                  int64           `json:"id"`
	CustomerID          int64           `json:"customer_id"`
	Status              string          `json:"status"`
	BulkDiscountPercent decimal.Decimal `json:"bulk_discount_percent"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	BulkDiscountAmount  decimal.Decimal `json:"bulk_discount_amount"`
	GradingFeeTotal     decimal.Decimal `json:"grading_fee_total"`
	FinalPayout         decimal.Decimal `json:"final_payout"`
	ResponseDeadline    time.Time       `json:"response_deadline"`
	RespondedAt         *time.Time      `json:"responded_at,omitempty"`
	RespondedBy         string          `json:"responded_by,omitempty"`
	PaidAt              *time.Time      `json:"paid_at,omitempty"`
	Items               []OfferItemResp `json:"items"`
}

// OfferItemResp 报价明细响应
type OfferItemResp struct {
	CardID      int64           `json:"card_id"`
	OfferAmount decimal.Decimal `json:"offer_amount"`
	GradingFee  decimal.Decimal `json:"grading_fee"`
}
