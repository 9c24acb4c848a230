package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"grading_sync_v1/internal/api/dto"
	"grading_sync_v1/internal/model"
	"grading_sync_v1/internal/repository"
	"grading_sync_v1/pkg/clock"
	"grading_sync_v1/pkg/utils"
)

// 令牌 secret 长度
const portalSecretLength = 40

// PortalService 客户门户访问控制
// 所有查询都以令牌绑定的客户为准，不接受调用方传入的客户 ID
type PortalService struct {
	tokenRepo      repository.PortalTokenRepository
	customerRepo   repository.CustomerRepository
	submissionRepo repository.SubmissionRepository
	buybackRepo    repository.BuybackRepository
	clock          clock.Clock
	defaultTTL     time.Duration
}

func NewPortalService(
	tokenRepo repository.PortalTokenRepository,
	customerRepo repository.CustomerRepository,
	submissionRepo repository.SubmissionRepository,
	buybackRepo repository.BuybackRepository,
	clk clock.Clock,
	defaultTTL time.Duration,
) *PortalService {
	if clk == nil {
		clk = clock.Real()
	}
	return &PortalService{
		tokenRepo:      tokenRepo,
		customerRepo:   customerRepo,
		submissionRepo: submissionRepo,
		buybackRepo:    buybackRepo,
		clock:          clk,
		defaultTTL:     defaultTTL,
	}
}

// ==================== 令牌管理 ====================

// IssueToken 签发令牌，返回仅此一次可见的明文
// ttl 为 0 使用默认有效期，小于 0 表示长期有效
func (s *PortalService) IssueToken(ctx context.Context, customerID int64, ttl time.Duration) (string, *model.PortalToken, error) {
	if _, err := s.customerRepo.GetByID(ctx, customerID); err != nil {
		if repository.IsNotFound(err) {
			return "", nil, ErrCustomerNotFound
		}
		return "", nil, err
	}

	secret, err := utils.GenerateRandomString(portalSecretLength)
	if err != nil {
		return "", nil, fmt.Errorf("生成令牌失败: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("令牌加密失败: %w", err)
	}

	if ttl == 0 {
		ttl = s.defaultTTL
	}
	token := &model.PortalToken{
		CustomerID: customerID,
		TokenID:    uuid.NewString(),
		SecretHash: string(hash),
		Enabled:    true,
	}
	if ttl > 0 {
		expiresAt := s.clock.Now().Add(ttl)
		token.ExpiresAt = &expiresAt
	}

	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return "", nil, err
	}
	log.Printf("[PortalService] 已为客户 %d 签发令牌 %s", customerID, token.TokenID)
	return utils.JoinToken(token.TokenID, secret), token, nil
}

// RevokeToken 吊销令牌
func (s *PortalService) RevokeToken(ctx context.Context, tokenID string) error {
	rows, err := s.tokenRepo.Disable(ctx, tokenID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTokenNotFound
	}
	log.Printf("[PortalService] 令牌 %s 已吊销", tokenID)
	return nil
}

// CustomerCompany 客户所属卡店
func (s *PortalService) CustomerCompany(ctx context.Context, customerID int64) (int64, error) {
	customer, err := s.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return 0, ErrCustomerNotFound
		}
		return 0, err
	}
	return customer.CompanyID, nil
}

// TokenCompany 令牌持有客户所属卡店
func (s *PortalService) TokenCompany(ctx context.Context, tokenID string) (int64, error) {
	token, err := s.tokenRepo.GetByTokenID(ctx, tokenID)
	if err != nil {
		if repository.IsNotFound(err) {
			return 0, ErrTokenNotFound
		}
		return 0, err
	}
	return s.CustomerCompany(ctx, token.CustomerID)
}

// Authenticate 校验令牌，任何异常都拒绝
func (s *PortalService) Authenticate(ctx context.Context, raw string) (*model.PortalToken, error) {
	if raw == "" {
		return nil, &UnauthorizedError{Reason: ReasonMissing}
	}
	tokenID, secret, ok := utils.SplitToken(raw)
	if !ok {
		return nil, &UnauthorizedError{Reason: ReasonMalformed}
	}
	if _, err := uuid.Parse(tokenID); err != nil {
		return nil, &UnauthorizedError{Reason: ReasonMalformed}
	}

	token, err := s.tokenRepo.GetByTokenID(ctx, tokenID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &UnauthorizedError{Reason: ReasonUnknown}
		}
		return nil, err
	}

	now := s.clock.Now()
	if !token.Enabled {
		return nil, &UnauthorizedError{Reason: ReasonRevoked}
	}
	if token.IsExpired(now) {
		return nil, &UnauthorizedError{Reason: ReasonExpired}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(token.SecretHash), []byte(secret)); err != nil {
		return nil, &UnauthorizedError{Reason: ReasonMismatch}
	}

	if err := s.tokenRepo.TouchLastUsed(ctx, token.ID, now); err != nil {
		log.Printf("[PortalService] 更新令牌 %s 使用时间失败: %v", token.TokenID, err)
	}
	return token, nil
}

// ==================== 客户视图 ====================

// Resolve 校验令牌并返回该客户可见的数据
func (s *PortalService) Resolve(ctx context.Context, raw string) (*dto.CustomerView, error) {
	token, err := s.Authenticate(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, token.CustomerID)
}

// buildView 组装客户视图
// 卡片可见规则：归属该客户，或未指定归属且送评单只关联了该客户
func (s *PortalService) buildView(ctx context.Context, customerID int64) (*dto.CustomerView, error) {
	customer, err := s.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &UnauthorizedError{Reason: ReasonUnknown}
		}
		return nil, err
	}

	submissions, err := s.submissionRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(submissions))
	for _, sub := range submissions {
		ids = append(ids, sub.ID)
	}
	links, err := s.submissionRepo.LinkedCustomerIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &dto.CustomerView{
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		Submissions:  make([]dto.PortalSubmission, 0, len(submissions)),
		Offers:       []dto.OfferResp{},
	}

	for _, sub := range submissions {
		soleOwner := len(links[sub.ID]) == 1 && links[sub.ID][0] == customerID
		view.Submissions = append(view.Submissions, toPortalSubmission(&sub, customerID, soleOwner))
	}

	offers, err := s.buybackRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for i := range offers {
		view.Offers = append(view.Offers, ToOfferResp(&offers[i]))
	}
	return view, nil
}

func toPortalSubmission(sub *model.Submission, customerID int64, soleOwner bool) dto.PortalSubmission {
	ps := dto.PortalSubmission{
		ID:              sub.ID,
		ExternalNumber:  sub.ExternalNumberValue(),
		ServiceLevel:    sub.ServiceLevel,
		CurrentStep:     sub.CurrentStep,
		ProgressPercent: sub.ProgressPercent,
		GradesReady:     sub.GradesReady,
		Shipped:         sub.Shipped,
		ProblemOrder:    sub.ProblemOrder,
		AccountingHold:  sub.AccountingHold,
		ReturnTracking:  sub.ReturnTracking,
		DateReturned:    sub.DateReturned,
		Steps:           make([]dto.PortalStep, 0, len(sub.Steps)),
		Cards:           []dto.PortalCard{},
	}
	for _, step := range sub.Steps {
		ps.Steps = append(ps.Steps, dto.PortalStep{
			Index:       step.Index,
			Name:        step.Name,
			Completed:   step.Completed,
			CompletedAt: step.CompletedAt,
		})
	}
	for _, card := range sub.Cards {
		visible := card.OwnedBy(customerID) || (card.CustomerOwnerID == nil && soleOwner)
		if !visible {
			continue
		}
		ps.Cards = append(ps.Cards, dto.PortalCard{
			ID:          card.ID,
			Description: card.Description,
			Year:        card.Year,
			Brand:       card.Brand,
			Player:      card.Player,
			CertNumber:  card.CertNumberValue(),
			Grade:       card.Grade,
			Status:      string(card.Status),
			ImageRefs:   []string(card.ImageRefs),
		})
	}
	return ps
}
