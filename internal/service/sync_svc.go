package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"

	"grading_sync_v1/internal/api/dto"
	"grading_sync_v1/internal/middleware"
	"grading_sync_v1/internal/model"
	"grading_sync_v1/internal/repository"
	"grading_sync_v1/pkg/clock"
)

// ==================== 依赖定义 ====================

// CredentialProvider 卡店评级凭证查询，未配置返回空串
type CredentialProvider interface {
	GradingCredential(ctx context.Context, companyID int64) (string, error)
}

// SyncIntervals 各限流维度的冷却间隔
type SyncIntervals struct {
	Submission  time.Duration
	Batch       time.Duration
	CallSpacing time.Duration
}

// DefaultSyncIntervals 默认间隔
func DefaultSyncIntervals() SyncIntervals {
	return SyncIntervals{
		Submission:  middleware.GetInterval(middleware.ScopeSubmission),
		Batch:       middleware.GetInterval(middleware.ScopeBatch),
		CallSpacing: middleware.GetInterval(middleware.ScopeCall),
	}
}

// ==================== 结果定义 ====================

// SyncResult 单个送评单同步结果
type SyncResult struct {
	Submission *model.Submission
	Mapping    ProgressMapping
	Changed    bool
	SyncedAt   time.Time
}

// SyncFailure 批量同步中的单项失败
type SyncFailure struct {
	SubmissionID   int64
	ExternalNumber string
	Err            error
}

// SyncBatchResult 批量同步结果
type SyncBatchResult struct {
	CompanyID int64
	Total     int
	Results   []SyncResult
	Failures  []SyncFailure
}

// ==================== SyncService ====================

// SyncService 送评进度同步
type SyncService struct {
	submissionRepo repository.SubmissionRepository
	cardRepo       repository.CardRepository
	credentials    CredentialProvider
	grading        GradingAPI
	limiter        *middleware.SyncRateLimiter
	clock          clock.Clock
	intervals      SyncIntervals
}

// NewSyncService 创建同步服务
func NewSyncService(
	submissionRepo repository.SubmissionRepository,
	cardRepo repository.CardRepository,
	credentials CredentialProvider,
	grading GradingAPI,
	limiter *middleware.SyncRateLimiter,
	clk clock.Clock,
	intervals SyncIntervals,
) *SyncService {
	if clk == nil {
		clk = clock.Real()
	}
	return &SyncService{
		submissionRepo: submissionRepo,
		cardRepo:       cardRepo,
		credentials:    credentials,
		grading:        grading,
		limiter:        limiter,
		clock:          clk,
		intervals:      intervals,
	}
}

// SyncOne 同步单个送评单
// 顺序：配置检查 -> 限流 -> 外部查询 -> 映射 -> 单事务写入
func (s *SyncService) SyncOne(ctx context.Context, submissionID int64) (*SyncResult, error) {
	submission, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	if !submission.HasExternalNumber() {
		return nil, &NotConfiguredError{SubmissionID: submission.ID, CompanyID: submission.CompanyID, Missing: MissingExternalNumber}
	}
	credential, err := s.credential(ctx, submission.CompanyID)
	if err != nil {
		return nil, err
	}
	if credential == "" {
		return nil, &NotConfiguredError{SubmissionID: submission.ID, CompanyID: submission.CompanyID, Missing: MissingCredential}
	}

	key := middleware.CompanySyncKey(submission.CompanyID, middleware.ScopeSubmission)
	if check := s.limiter.Acquire(key, s.intervals.Submission); !check.Allowed {
		return nil, &RateLimitedError{Scope: key, RetryAfter: check.RetryAfter}
	}
	// 所有外部调用共用卡店级调用间隔
	callKey := middleware.CompanySyncKey(submission.CompanyID, middleware.ScopeCall)
	if err := s.limiter.Wait(ctx, callKey, s.intervals.CallSpacing); err != nil {
		return nil, err
	}

	return s.syncSubmission(ctx, submission, credential)
}

// SyncAll 顺序同步卡店下所有未寄回的送评单，单项失败不影响其他项
func (s *SyncService) SyncAll(ctx context.Context, companyID int64) (*SyncBatchResult, error) {
	credential, err := s.credential(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if credential == "" {
		return nil, &NotConfiguredError{CompanyID: companyID, Missing: MissingCredential}
	}

	batchKey := middleware.CompanySyncKey(companyID, middleware.ScopeBatch)
	if check := s.limiter.Acquire(batchKey, s.intervals.Batch); !check.Allowed {
		return nil, &RateLimitedError{Scope: batchKey, RetryAfter: check.RetryAfter}
	}

	submissions, err := s.submissionRepo.ListSyncEligible(ctx, companyID)
	if err != nil {
		return nil, err
	}

	result := &SyncBatchResult{CompanyID: companyID, Total: len(submissions)}
	callKey := middleware.CompanySyncKey(companyID, middleware.ScopeCall)
	submissionKey := middleware.CompanySyncKey(companyID, middleware.ScopeSubmission)

	for i := range submissions {
		submission := &submissions[i]

		if err := s.limiter.Wait(ctx, callKey, s.intervals.CallSpacing); err != nil {
			// 上下文取消，剩余项全部记为失败
			for _, rest := range submissions[i:] {
				result.Failures = append(result.Failures, SyncFailure{
					SubmissionID:   rest.ID,
					ExternalNumber: rest.ExternalNumberValue(),
					Err:            err,
				})
			}
			log.Printf("[SyncService] 卡店 %d 批量同步中断: %v", companyID, err)
			break
		}
		s.limiter.RecordCall(submissionKey)

		synced, err := s.syncSubmission(ctx, submission, credential)
		if err != nil {
			log.Printf("[SyncService] 同步失败 submission=%d external=%s: %v",
				submission.ID, submission.ExternalNumberValue(), err)
			result.Failures = append(result.Failures, SyncFailure{
				SubmissionID:   submission.ID,
				ExternalNumber: submission.ExternalNumberValue(),
				Err:            err,
			})
			continue
		}
		result.Results = append(result.Results, *synced)
	}

	log.Printf("[SyncService] 卡店 %d 批量同步完成: 共 %d, 成功 %d, 失败 %d",
		companyID, result.Total, len(result.Results), len(result.Failures))
	return result, nil
}

// syncSubmission 外部查询 + 映射 + 单事务写入
func (s *SyncService) syncSubmission(ctx context.Context, submission *model.Submission, credential string) (*SyncResult, error) {
	number := submission.ExternalNumberValue()

	resp, err := s.grading.FetchProgress(ctx, credential, number)
	if err != nil {
		return nil, err
	}

	mapping := MapProgress(resp)
	if mapping.Unknown {
		log.Printf("[SyncService] 送评单 %d 外部节点 %q 无法识别，按 %s 处理",
			submission.ID, mapping.RawLabel, mapping.Step)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("序列化外部报文失败: %w", err)
	}
	now := s.clock.Now()

	var saved *model.Submission
	var changed bool
	err = s.submissionRepo.Transaction(ctx, func(txRepo repository.SubmissionRepository) error {
		locked, err := txRepo.LockByID(ctx, submission.ID)
		if err != nil {
			return err
		}
		if locked.ExternalNumberValue() != number {
			return fmt.Errorf("%w: 同步期间外部编号已变更", ErrInvalidArgument)
		}
		if owner, err := txRepo.GetByExternalNumber(ctx, number); err == nil && owner.ID != locked.ID {
			return &DuplicateExternalNumberError{ExternalNumber: number, SubmissionID: locked.ID, ExistingSubmissionID: owner.ID}
		} else if err != nil && !repository.IsNotFound(err) {
			return err
		}

		existing, err := txRepo.ListSteps(ctx, locked.ID)
		if err != nil {
			return err
		}
		steps, stepsChanged := mergeSteps(locked.ID, existing, mapping.Steps, now)
		stateChanged := applyMapping(locked, mapping)

		if resp.OrderNumber != "" {
			locked.OrderNumber = resp.OrderNumber
		}
		if resp.ServiceLevel != "" {
			locked.ServiceLevel = resp.ServiceLevel
		}
		if resp.ShipTrackingNumber != "" {
			locked.ReturnTracking = resp.ShipTrackingNumber
		}
		if resp.ShippedDate != nil {
			locked.DateReturned = resp.ShippedDate
		}
		locked.LastSyncedAt = &now
		locked.RawPayload = datatypes.JSON(raw)

		if err := locked.Validate(); err != nil {
			return err
		}
		if err := txRepo.SaveSyncState(ctx, locked, steps); err != nil {
			return err
		}

		locked.Steps = steps
		saved = locked
		changed = stepsChanged || stateChanged
		return nil
	})
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	return &SyncResult{Submission: saved, Mapping: mapping, Changed: changed, SyncedAt: now}, nil
}

// mergeSteps 合并节点：缺失的节点按固定流程补齐，已完成的节点不会被改回未完成
func mergeSteps(submissionID int64, existing []model.SubmissionStep, mapped []StepState, now time.Time) ([]model.SubmissionStep, bool) {
	byIndex := make(map[int]model.SubmissionStep, len(existing))
	for _, step := range existing {
		byIndex[step.Index] = step
	}

	changed := false
	merged := make([]model.SubmissionStep, 0, len(mapped))
	for _, state := range mapped {
		step, ok := byIndex[state.Index]
		if !ok {
			step = model.SubmissionStep{
				SubmissionID: submissionID,
				Index:        state.Index,
				Name:         state.Name,
			}
			changed = true
		}

		if state.Completed && !step.Completed {
			step.Completed = true
			completedAt := now
			if state.CompletedAt != nil {
				completedAt = *state.CompletedAt
			}
			step.CompletedAt = &completedAt
			changed = true
		}
		merged = append(merged, step)
	}
	return merged, changed
}

// applyMapping 单调合并进度与状态位，返回是否有变化
func applyMapping(s *model.Submission, m ProgressMapping) bool {
	before := *s

	if m.ProgressPercent > s.ProgressPercent {
		s.ProgressPercent = m.ProgressPercent
	}

	currentIdx, known := LookupStep(s.CurrentStep)
	if s.CurrentStep == "" || !known || m.Index >= currentIdx {
		s.CurrentStep = m.Step
	}
	if m.Unknown {
		s.UnknownStep = m.RawLabel
	} else {
		s.UnknownStep = ""
	}

	// 告警位只由外部显式信号置位，同步不清除
	s.ProblemOrder = s.ProblemOrder || m.Flags.ProblemOrder
	s.AccountingHold = s.AccountingHold || m.Flags.AccountingHold

	s.ApplyLifecycle(m.Lifecycle)

	return before.ProgressPercent != s.ProgressPercent ||
		before.CurrentStep != s.CurrentStep ||
		before.Lifecycle != s.Lifecycle ||
		before.ProblemOrder != s.ProblemOrder ||
		before.AccountingHold != s.AccountingHold ||
		before.UnknownStep != s.UnknownStep
}

// ==================== 外部编号 ====================

// AttachExternalNumber 绑定外部送评编号
// 编号已被其他送评单占用时返回 DuplicateExternalNumberError，两条记录均不修改
func (s *SyncService) AttachExternalNumber(ctx context.Context, submissionID int64, number string) (*model.Submission, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, fmt.Errorf("%w: 外部送评编号不能为空", ErrInvalidArgument)
	}

	var result *model.Submission
	err := s.submissionRepo.Transaction(ctx, func(txRepo repository.SubmissionRepository) error {
		locked, err := txRepo.LockByID(ctx, submissionID)
		if err != nil {
			return err
		}
		if locked.ExternalNumberValue() == number {
			result = locked
			return nil
		}

		owner, err := txRepo.GetByExternalNumber(ctx, number)
		if err == nil {
			return &DuplicateExternalNumberError{ExternalNumber: number, SubmissionID: submissionID, ExistingSubmissionID: owner.ID}
		}
		if !repository.IsNotFound(err) {
			return err
		}

		if err := txRepo.UpdateExternalNumber(ctx, submissionID, number); err != nil {
			return err
		}
		locked.ExternalNumber = &number
		result = locked
		return nil
	})
	if err != nil {
		return nil, s.translateStoreError(ctx, err, submissionID, number)
	}
	return result, nil
}

// translateStoreError 记录不存在与唯一约束冲突转换为业务错误
func (s *SyncService) translateStoreError(ctx context.Context, err error, submissionID int64, number string) error {
	if repository.IsNotFound(err) {
		return ErrSubmissionNotFound
	}
	if repository.IsUniqueViolation(err, repository.ExternalNumberIndex) {
		dup := &DuplicateExternalNumberError{ExternalNumber: number, SubmissionID: submissionID}
		if owner, lookupErr := s.submissionRepo.GetByExternalNumber(ctx, number); lookupErr == nil {
			dup.ExistingSubmissionID = owner.ID
		}
		return dup
	}
	return err
}

// ==================== 卡片补全 ====================

// EnrichCard 按证书号从评级机构补全卡片信息
// 已有更高可信度来源的分数不会被覆盖，元数据只补空缺字段
func (s *SyncService) EnrichCard(ctx context.Context, cardID int64) (*model.Card, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	submission, err := s.submissionRepo.GetByID(ctx, card.SubmissionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	if card.CertNumberValue() == "" {
		return nil, &NotConfiguredError{SubmissionID: submission.ID, CompanyID: submission.CompanyID, Missing: MissingCertNumber}
	}
	credential, err := s.credential(ctx, submission.CompanyID)
	if err != nil {
		return nil, err
	}
	if credential == "" {
		return nil, &NotConfiguredError{SubmissionID: submission.ID, CompanyID: submission.CompanyID, Missing: MissingCredential}
	}

	key := middleware.CompanySyncKey(submission.CompanyID, middleware.ScopeCall)
	if check := s.limiter.Acquire(key, s.intervals.CallSpacing); !check.Allowed {
		return nil, &RateLimitedError{Scope: key, RetryAfter: check.RetryAfter}
	}

	cert, err := s.grading.FetchCertificate(ctx, credential, card.CertNumberValue())
	if err != nil {
		return nil, err
	}

	fields := enrichFields(card, cert)
	if len(fields) == 0 {
		return card, nil
	}
	if err := s.cardRepo.UpdateFields(ctx, card.ID, fields); err != nil {
		return nil, err
	}
	return s.cardRepo.GetByID(ctx, card.ID)
}

func enrichFields(card *model.Card, cert *dto.GradingCertificateResponse) map[string]interface{} {
	fields := map[string]interface{}{}
	if cert.Grade != "" && cert.Grade != card.Grade && card.CanOverwriteGrade(model.GradeSourceGradingService) {
		fields["grade"] = cert.Grade
		fields["grade_source"] = model.GradeSourceGradingService
		fields["status"] = model.CardStatusGraded
	}
	if card.Year == "" && cert.Year != "" {
		fields["year"] = cert.Year
	}
	if card.Brand == "" && cert.Brand != "" {
		fields["brand"] = cert.Brand
	}
	if card.Player == "" && cert.Subject != "" {
		fields["player"] = cert.Subject
	}
	if card.CardNumber == "" && cert.CardNumber != "" {
		fields["card_number"] = cert.CardNumber
	}
	if len(card.ImageRefs) == 0 && len(cert.ImageURLs) > 0 {
		fields["image_refs"] = model.StringList(cert.ImageURLs)
	}
	return fields
}

// ==================== 归属查询 ====================

// SubmissionCompany 送评单所属卡店
func (s *SyncService) SubmissionCompany(ctx context.Context, submissionID int64) (int64, error) {
	submission, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return 0, ErrSubmissionNotFound
		}
		return 0, err
	}
	return submission.CompanyID, nil
}

// CardCompany 卡片所属卡店
func (s *SyncService) CardCompany(ctx context.Context, cardID int64) (int64, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		if repository.IsNotFound(err) {
			return 0, ErrCardNotFound
		}
		return 0, err
	}
	return s.SubmissionCompany(ctx, card.SubmissionID)
}

func (s *SyncService) credential(ctx context.Context, companyID int64) (string, error) {
	credential, err := s.credentials.GradingCredential(ctx, companyID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", ErrCompanyNotFound
		}
		return "", err
	}
	return credential, nil
}
