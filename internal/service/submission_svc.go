package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grading_sync_v1/internal/model"
	"grading_sync_v1/internal/repository"
)

// CreateSubmissionInput 创建送评单参数
type CreateSubmissionInput struct {
	CompanyID        int64
	ExternalNumber   string
	ServiceLevel     string
	DateSent         *time.Time
	OutboundTracking string
	CustomerIDs      []int64
	Cards            []CreateCardInput
}

// CreateCardInput 送评卡片
type CreateCardInput struct {
	CustomerOwnerID *int64
	Description     string
	Year            string
	Brand           string
	Player          string
	CardNumber      string
	CertNumber      string
}

// SubmissionService 送评单基础维护（建单、查询、删除）
type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	companyRepo    repository.CompanyRepository
	customerRepo   repository.CustomerRepository
}

func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	companyRepo repository.CompanyRepository,
	customerRepo repository.CustomerRepository,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: submissionRepo,
		companyRepo:    companyRepo,
		customerRepo:   customerRepo,
	}
}

// Create 建单：校验卡店与客户，外部编号可选且不得重复
func (s *SubmissionService) Create(ctx context.Context, in CreateSubmissionInput) (*model.Submission, error) {
	if in.CompanyID <= 0 {
		return nil, fmt.Errorf("%w: 缺少卡店", ErrInvalidArgument)
	}
	if _, err := s.companyRepo.GetByID(ctx, in.CompanyID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}

	customerIDs := uniqueIDs(in.CustomerIDs)
	if len(customerIDs) > 0 {
		count, err := s.customerRepo.CountByIDs(ctx, in.CompanyID, customerIDs)
		if err != nil {
			return nil, err
		}
		if int(count) != len(customerIDs) {
			return nil, ErrCustomerNotFound
		}
	}
	linked := make(map[int64]bool, len(customerIDs))
	for _, id := range customerIDs {
		linked[id] = true
	}

	submission := &model.Submission{
		CompanyID:        in.CompanyID,
		ServiceLevel:     in.ServiceLevel,
		DateSent:         in.DateSent,
		OutboundTracking: in.OutboundTracking,
		Lifecycle:        model.LifecycleReceived,
	}
	number := strings.TrimSpace(in.ExternalNumber)
	if number != "" {
		submission.ExternalNumber = &number
	}

	for i, c := range in.Cards {
		if strings.TrimSpace(c.Description) == "" {
			return nil, fmt.Errorf("%w: 第 %d 张卡片缺少描述", ErrInvalidArgument, i+1)
		}
		if c.CustomerOwnerID != nil && !linked[*c.CustomerOwnerID] {
			return nil, fmt.Errorf("%w: 第 %d 张卡片的归属客户未关联到送评单", ErrInvalidArgument, i+1)
		}
		card := model.Card{
			CustomerOwnerID: c.CustomerOwnerID,
			Description:     c.Description,
			Year:            c.Year,
			Brand:           c.Brand,
			Player:          c.Player,
			CardNumber:      c.CardNumber,
			Status:          model.CardStatusPending,
		}
		if cert := strings.TrimSpace(c.CertNumber); cert != "" {
			card.CertNumber = &cert
		}
		submission.Cards = append(submission.Cards, card)
	}

	err := s.submissionRepo.Transaction(ctx, func(txRepo repository.SubmissionRepository) error {
		if number != "" {
			owner, err := txRepo.GetByExternalNumber(ctx, number)
			if err == nil {
				return &DuplicateExternalNumberError{ExternalNumber: number, ExistingSubmissionID: owner.ID}
			}
			if !repository.IsNotFound(err) {
				return err
			}
		}
		if err := txRepo.Create(ctx, submission); err != nil {
			return err
		}
		return txRepo.LinkCustomers(ctx, submission.ID, customerIDs)
	})
	if err != nil {
		if repository.IsUniqueViolation(err, repository.ExternalNumberIndex) && number != "" {
			dup := &DuplicateExternalNumberError{ExternalNumber: number}
			if owner, lookupErr := s.submissionRepo.GetByExternalNumber(ctx, number); lookupErr == nil {
				dup.ExistingSubmissionID = owner.ID
			}
			return nil, dup
		}
		if repository.IsUniqueViolation(err, repository.CertNumberIndex) {
			return nil, fmt.Errorf("%w: 证书号重复", ErrInvalidArgument)
		}
		return nil, err
	}
	return submission, nil
}

// Get 查询送评单（含节点、卡片、关联客户）
func (s *SubmissionService) Get(ctx context.Context, id int64) (*model.Submission, error) {
	submission, err := s.submissionRepo.GetByIDWithRelations(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return submission, nil
}

// Delete 删除送评单，节点、卡片、客户关联一并删除
func (s *SubmissionService) Delete(ctx context.Context, id int64) error {
	if _, err := s.submissionRepo.GetByID(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return ErrSubmissionNotFound
		}
		return err
	}
	return s.submissionRepo.Delete(ctx, id)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
