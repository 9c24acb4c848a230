package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ==================== 报价状态 ====================

type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusDeclined  OfferStatus = "declined"
	OfferStatusExpired   OfferStatus = "expired"
	OfferStatusCancelled OfferStatus = "cancelled"
)

// IsActive 是否仍占用卡片（待回复或已接受）
func (s OfferStatus) IsActive() bool {
	return s == OfferStatusPending || s == OfferStatusAccepted
}

// ==================== BuybackOffer 回购报价 ====================

// BuybackOffer 对客户已评级卡片的回购报价
// 金额字段均由 ComputePayout 计算，不允许手工修改
type BuybackOffer struct {
	BaseModel
	CompanyID  int64       `gorm:"index;not null" json:"company_id"`
	CustomerID int64       `gorm:"index;not null" json:"customer_id"`
	Status     OfferStatus `gorm:"size:16;index;default:pending" json:"status"`

	// 金额
	BulkDiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"bulk_discount_percent"`
	Subtotal            decimal.Decimal `gorm:"type:decimal(12,2)" json:"subtotal"`
	BulkDiscountAmount  decimal.Decimal `gorm:"type:decimal(12,2)" json:"bulk_discount_amount"`
	GradingFeeTotal     decimal.Decimal `gorm:"type:decimal(12,2)" json:"grading_fee_total"`
	FinalPayout         decimal.Decimal `gorm:"type:decimal(12,2)" json:"final_payout"`

	// 时间节点
	ResponseDeadline time.Time  `gorm:"not null" json:"response_deadline"`
	RespondedAt      *time.Time `json:"responded_at,omitempty"`
	RespondedBy      string     `gorm:"size:32" json:"responded_by,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`

	Items []BuybackOfferItem `gorm:"foreignKey:OfferID" json:"items"`
}

func (BuybackOffer) TableName() string {
	return "buyback_offers"
}

// BuybackOfferItem 报价明细
type BuybackOfferItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OfferID     int64           `gorm:"index;not null" json:"offer_id"`
	CardID      int64           `gorm:"index;not null" json:"card_id"`
	OfferAmount decimal.Decimal `gorm:"type:decimal(12,2)" json:"offer_amount"`
	GradingFee  decimal.Decimal `gorm:"type:decimal(12,2)" json:"grading_fee"`

	CreatedAt time.Time `json:"created_at"`
}

func (BuybackOfferItem) TableName() string {
	return "buyback_offer_items"
}

// ==================== 金额计算 ====================

// Payout 报价金额拆分
type Payout struct {
	Subtotal           decimal.Decimal
	BulkDiscountAmount decimal.Decimal
	GradingFeeTotal    decimal.Decimal
	FinalPayout        decimal.Decimal
}

// ComputePayout 计算最终支付金额
// final = sum(offer) - round2(sum(offer) * pct / 100) - sum(fee)，批量折扣仅在 2 张及以上生效
func ComputePayout(items []BuybackOfferItem, discountPercent decimal.Decimal) Payout {
	subtotal := decimal.Zero
	fees := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.OfferAmount)
		fees = fees.Add(item.GradingFee)
	}

	discount := decimal.Zero
	if len(items) >= 2 && discountPercent.IsPositive() {
		discount = subtotal.Mul(discountPercent).Div(decimal.NewFromInt(100)).Round(2)
	}

	return Payout{
		Subtotal:           subtotal.Round(2),
		BulkDiscountAmount: discount,
		GradingFeeTotal:    fees.Round(2),
		FinalPayout:        subtotal.Sub(discount).Sub(fees).Round(2),
	}
}

// ApplyPayout 写入计算结果
func (o *BuybackOffer) ApplyPayout(p Payout) {
	o.Subtotal = p.Subtotal
	o.BulkDiscountAmount = p.BulkDiscountAmount
	o.GradingFeeTotal = p.GradingFeeTotal
	o.FinalPayout = p.FinalPayout
}

// CardIDs 报价涉及的卡片
func (o *BuybackOffer) CardIDs() []int64 {
	ids := make([]int64, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.CardID)
	}
	return ids
}
