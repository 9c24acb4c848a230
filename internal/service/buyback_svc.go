package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"grading_sync_v1/internal/api/dto"
	"grading_sync_v1/internal/model"
	"grading_sync_v1/internal/repository"
	"grading_sync_v1/pkg/clock"
)

// ==================== 参数定义 ====================

// OfferAction 报价回复动作
type OfferAction string

const (
	OfferActionAccept  OfferAction = "accept"
	OfferActionDecline OfferAction = "decline"
	OfferActionCancel  OfferAction = "cancel"
)

// PartyRole 操作方
type PartyRole string

const (
	PartyCustomer PartyRole = "customer"
	PartyStaff    PartyRole = "staff"
)

// ActingParty 发起操作的一方
type ActingParty struct {
	Role       PartyRole
	CustomerID int64 // Role 为 customer 时必填
	StaffID    int64
}

func (p ActingParty) String() string {
	if p.Role == PartyStaff {
		return fmt.Sprintf("staff:%d", p.StaffID)
	}
	return fmt.Sprintf("customer:%d", p.CustomerID)
}

// CreateOfferInput 创建报价参数
type CreateOfferInput struct {
	CompanyID           int64 // 操作员工所属卡店，必填
	CustomerID          int64
	Items               []OfferItemInput
	BulkDiscountPercent decimal.Decimal
	DeadlineHours       int
}

// OfferItemInput 报价明细
type OfferItemInput struct {
	CardID      int64
	OfferAmount decimal.Decimal
	GradingFee  decimal.Decimal
}

// ==================== BuybackService ====================

// BuybackService 回购报价
type BuybackService struct {
	buybackRepo    repository.BuybackRepository
	cardRepo       repository.CardRepository
	customerRepo   repository.CustomerRepository
	submissionRepo repository.SubmissionRepository
	clock          clock.Clock
}

func NewBuybackService(
	buybackRepo repository.BuybackRepository,
	cardRepo repository.CardRepository,
	customerRepo repository.CustomerRepository,
	submissionRepo repository.SubmissionRepository,
	clk clock.Clock,
) *BuybackService {
	if clk == nil {
		clk = clock.Real()
	}
	return &BuybackService{
		buybackRepo:    buybackRepo,
		cardRepo:       cardRepo,
		customerRepo:   customerRepo,
		submissionRepo: submissionRepo,
		clock:          clk,
	}
}

// CreateOffer 创建报价
// 每张卡必须归属该客户且已出分，最终金额在创建时计算并保存
func (s *BuybackService) CreateOffer(ctx context.Context, in CreateOfferInput) (*model.BuybackOffer, error) {
	if err := validateOfferInput(in); err != nil {
		return nil, err
	}

	customer, err := s.customerRepo.GetByID(ctx, in.CustomerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	if in.CompanyID == 0 || in.CompanyID != customer.CompanyID {
		return nil, ErrCustomerNotFound
	}

	cardIDs := make([]int64, 0, len(in.Items))
	for _, item := range in.Items {
		cardIDs = append(cardIDs, item.CardID)
	}
	if err := s.checkOwnership(ctx, in.CustomerID, cardIDs); err != nil {
		return nil, err
	}

	offer := &model.BuybackOffer{
		CompanyID:           customer.CompanyID,
		CustomerID:          in.CustomerID,
		Status:              model.OfferStatusPending,
		BulkDiscountPercent: in.BulkDiscountPercent,
		ResponseDeadline:    s.clock.Now().Add(time.Duration(in.DeadlineHours) * time.Hour),
	}
	for _, item := range in.Items {
		offer.Items = append(offer.Items, model.BuybackOfferItem{
			CardID:      item.CardID,
			OfferAmount: item.OfferAmount.Round(2),
			GradingFee:  item.GradingFee.Round(2),
		})
	}

	payout := model.ComputePayout(offer.Items, offer.BulkDiscountPercent)
	if payout.FinalPayout.IsNegative() {
		return nil, fmt.Errorf("%w: 最终支付金额为负 (%s)", ErrInvalidArgument, payout.FinalPayout.StringFixed(2))
	}
	offer.ApplyPayout(payout)

	err = s.buybackRepo.Transaction(ctx, func(txRepo repository.BuybackRepository) error {
		// 同一张卡的并发报价在此排队，后到者能看到先提交的报价
		if err := txRepo.LockCards(ctx, cardIDs); err != nil {
			return err
		}
		active, err := txRepo.ActiveOfferCardIDs(ctx, cardIDs)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return fmt.Errorf("%w: %v", ErrCardAlreadyOffered, active)
		}
		return txRepo.Create(ctx, offer)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[BuybackService] 报价 %d 已创建: 客户 %d, %d 张卡, 最终金额 %s",
		offer.ID, offer.CustomerID, len(offer.Items), offer.FinalPayout.StringFixed(2))
	return offer, nil
}

func validateOfferInput(in CreateOfferInput) error {
	if in.CustomerID <= 0 {
		return fmt.Errorf("%w: 缺少客户", ErrInvalidArgument)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: 报价至少包含一张卡片", ErrInvalidArgument)
	}
	if in.DeadlineHours <= 0 {
		return fmt.Errorf("%w: 回复期限必须大于 0", ErrInvalidArgument)
	}
	if in.BulkDiscountPercent.IsNegative() || in.BulkDiscountPercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: 批量折扣必须在 0-100 之间", ErrInvalidArgument)
	}

	seen := make(map[int64]bool, len(in.Items))
	for _, item := range in.Items {
		if seen[item.CardID] {
			return fmt.Errorf("%w: 卡片 %d 重复", ErrInvalidArgument, item.CardID)
		}
		seen[item.CardID] = true
		if item.OfferAmount.IsNegative() || item.GradingFee.IsNegative() {
			return fmt.Errorf("%w: 卡片 %d 金额不能为负", ErrInvalidArgument, item.CardID)
		}
	}
	return nil
}

// checkOwnership 卡片归属该客户（或未指定归属且送评单只关联该客户）且已出分
func (s *BuybackService) checkOwnership(ctx context.Context, customerID int64, cardIDs []int64) error {
	cards, err := s.cardRepo.ListByIDs(ctx, cardIDs)
	if err != nil {
		return err
	}
	byID := make(map[int64]*model.Card, len(cards))
	submissionIDs := make([]int64, 0, len(cards))
	for i := range cards {
		byID[cards[i].ID] = &cards[i]
		submissionIDs = append(submissionIDs, cards[i].SubmissionID)
	}
	links, err := s.submissionRepo.LinkedCustomerIDs(ctx, submissionIDs)
	if err != nil {
		return err
	}

	for _, id := range cardIDs {
		card, ok := byID[id]
		if !ok {
			return &InvalidCardOwnershipError{CardID: id, CustomerID: customerID, Reason: "卡片不存在"}
		}

		linked := links[card.SubmissionID]
		soleOwner := len(linked) == 1 && linked[0] == customerID
		if !card.OwnedBy(customerID) && !(card.CustomerOwnerID == nil && soleOwner) {
			return &InvalidCardOwnershipError{CardID: id, CustomerID: customerID, Reason: "不属于该客户"}
		}
		if !card.IsGraded() {
			return &InvalidCardOwnershipError{CardID: id, CustomerID: customerID, Reason: "尚未评级"}
		}
	}
	return nil
}

// ==================== 回复 ====================

// Respond 回复报价
// accept / decline 仅在待回复且未过截止时间时有效；过期的报价在本次调用中置为 expired
// cancel 仅员工可用，且只能撤销已接受、未付款的报价
func (s *BuybackService) Respond(ctx context.Context, offerID int64, action OfferAction, party ActingParty) (*model.BuybackOffer, error) {
	var expired *OfferExpiredError

	err := s.buybackRepo.Transaction(ctx, func(txRepo repository.BuybackRepository) error {
		offer, err := s.lockForParty(ctx, txRepo, offerID, party)
		if err != nil {
			return err
		}

		switch action {
		case OfferActionAccept, OfferActionDecline:
			return s.respondPending(ctx, txRepo, offer, action, party, &expired)
		case OfferActionCancel:
			return s.cancelAccepted(ctx, txRepo, offer, party)
		default:
			return fmt.Errorf("%w: 未知操作 %s", ErrInvalidArgument, action)
		}
	})
	if err != nil {
		return nil, err
	}
	if expired != nil {
		log.Printf("[BuybackService] 报价 %d 已过期 (截止 %s)", offerID, expired.Deadline.Format(time.RFC3339))
		return nil, expired
	}
	return s.Get(ctx, offerID)
}

func (s *BuybackService) respondPending(
	ctx context.Context,
	txRepo repository.BuybackRepository,
	offer *model.BuybackOffer,
	action OfferAction,
	party ActingParty,
	expired **OfferExpiredError,
) error {
	if offer.Status != model.OfferStatusPending {
		return &AlreadyRespondedError{OfferID: offer.ID, Status: string(offer.Status)}
	}

	now := s.clock.Now()
	if !now.Before(offer.ResponseDeadline) {
		rows, err := txRepo.UpdateStatusIf(ctx, offer.ID, model.OfferStatusPending, map[string]interface{}{
			"status": model.OfferStatusExpired,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return &AlreadyRespondedError{OfferID: offer.ID, Status: string(offer.Status)}
		}
		// 过期状态需要提交，错误在事务外返回
		*expired = &OfferExpiredError{OfferID: offer.ID, Deadline: offer.ResponseDeadline}
		return nil
	}

	if err := verifyPayout(offer); err != nil {
		return err
	}

	next := model.OfferStatusAccepted
	if action == OfferActionDecline {
		next = model.OfferStatusDeclined
	}
	rows, err := txRepo.UpdateStatusIf(ctx, offer.ID, model.OfferStatusPending, map[string]interface{}{
		"status":       next,
		"responded_at": now,
		"responded_by": party.String(),
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		return &AlreadyRespondedError{OfferID: offer.ID, Status: string(offer.Status)}
	}
	return nil
}

func (s *BuybackService) cancelAccepted(ctx context.Context, txRepo repository.BuybackRepository, offer *model.BuybackOffer, party ActingParty) error {
	if party.Role != PartyStaff {
		return &InvalidTransitionError{OfferID: offer.ID, From: string(offer.Status), Action: string(OfferActionCancel)}
	}
	if offer.Status != model.OfferStatusAccepted || offer.PaidAt != nil {
		return &InvalidTransitionError{OfferID: offer.ID, From: string(offer.Status), Action: string(OfferActionCancel)}
	}

	rows, err := txRepo.UpdateStatusIf(ctx, offer.ID, model.OfferStatusAccepted, map[string]interface{}{
		"status":       model.OfferStatusCancelled,
		"cancelled_at": s.clock.Now(),
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		return &InvalidTransitionError{OfferID: offer.ID, From: string(offer.Status), Action: string(OfferActionCancel)}
	}
	return nil
}

// MarkPaid 标记已付款，付款后不可撤销
func (s *BuybackService) MarkPaid(ctx context.Context, offerID int64, staffID int64) (*model.BuybackOffer, error) {
	party := ActingParty{Role: PartyStaff, StaffID: staffID}

	err := s.buybackRepo.Transaction(ctx, func(txRepo repository.BuybackRepository) error {
		offer, err := s.lockForParty(ctx, txRepo, offerID, party)
		if err != nil {
			return err
		}
		if offer.Status != model.OfferStatusAccepted || offer.PaidAt != nil {
			return &InvalidTransitionError{OfferID: offer.ID, From: string(offer.Status), Action: "pay"}
		}
		if err := verifyPayout(offer); err != nil {
			return err
		}

		rows, err := txRepo.UpdateStatusIf(ctx, offer.ID, model.OfferStatusAccepted, map[string]interface{}{
			"paid_at": s.clock.Now(),
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return &InvalidTransitionError{OfferID: offer.ID, From: string(offer.Status), Action: "pay"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[BuybackService] 报价 %d 已付款 (操作人 %d)", offerID, staffID)
	return s.Get(ctx, offerID)
}

// lockForParty 锁定报价；客户只能操作自己的报价，否则视为不存在
func (s *BuybackService) lockForParty(ctx context.Context, txRepo repository.BuybackRepository, offerID int64, party ActingParty) (*model.BuybackOffer, error) {
	offer, err := txRepo.LockByID(ctx, offerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	if party.Role == PartyCustomer && offer.CustomerID != party.CustomerID {
		return nil, ErrOfferNotFound
	}
	return offer, nil
}

// verifyPayout 按已保存的明细复核金额
func verifyPayout(offer *model.BuybackOffer) error {
	payout := model.ComputePayout(offer.Items, offer.BulkDiscountPercent)
	if !payout.FinalPayout.Equal(offer.FinalPayout) {
		return fmt.Errorf("%w: 报价 %d 保存金额 %s, 复核金额 %s", ErrPayoutMismatch,
			offer.ID, offer.FinalPayout.StringFixed(2), payout.FinalPayout.StringFixed(2))
	}
	return nil
}

// ==================== 查询 ====================

func (s *BuybackService) Get(ctx context.Context, offerID int64) (*model.BuybackOffer, error) {
	offer, err := s.buybackRepo.GetByID(ctx, offerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return offer, nil
}

func (s *BuybackService) ListByCustomer(ctx context.Context, customerID int64) ([]model.BuybackOffer, error) {
	return s.buybackRepo.ListByCustomer(ctx, customerID)
}

// ToOfferResp 报价响应
func ToOfferResp(offer *model.BuybackOffer) dto.OfferResp {
	resp := dto.OfferResp{
		ID:                  offer.ID,
		CustomerID:          offer.CustomerID,
		Status:              string(offer.Status),
		BulkDiscountPercent: offer.BulkDiscountPercent,
		Subtotal:            offer.Subtotal,
		BulkDiscountAmount:  offer.BulkDiscountAmount,
		GradingFeeTotal:     offer.GradingFeeTotal,
		FinalPayout:         offer.FinalPayout,
		ResponseDeadline:    offer.ResponseDeadline,
		RespondedAt:         offer.RespondedAt,
		RespondedBy:         offer.RespondedBy,
		PaidAt:              offer.PaidAt,
		Items:               make([]dto.OfferItemResp, 0, len(offer.Items)),
	}
	for _, item := range offer.Items {
		resp.Items = append(resp.Items, dto.OfferItemResp{
			CardID:      item.CardID,
			OfferAmount: item.OfferAmount,
			GradingFee:  item.GradingFee,
		})
	}
	return resp
}
