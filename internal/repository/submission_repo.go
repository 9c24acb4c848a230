package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"grading_sync_v1/internal/model"
)

// 外部编号唯一索引名
const ExternalNumberIndex = "uk_submissions_external_number"

// ==================== 接口定义 ====================

// SubmissionRepository 送评单仓储接口
type SubmissionRepository interface {
	Create(ctx context.Context, submission *model.Submission) error
	GetByID(ctx context.Context, id int64) (*model.Submission, error)
	GetByIDWithRelations(ctx context.Context, id int64) (*model.Submission, error)
	GetByExternalNumber(ctx context.Context, number string) (*model.Submission, error)
	Delete(ctx context.Context, id int64) error

	// 同步相关
	LockByID(ctx context.Context, id int64) (*model.Submission, error)
	ListSteps(ctx context.Context, submissionID int64) ([]model.SubmissionStep, error)
	SaveSyncState(ctx context.Context, submission *model.Submission, steps []model.SubmissionStep) error
	UpdateExternalNumber(ctx context.Context, id int64, number string) error
	ListSyncEligible(ctx context.Context, companyID int64) ([]model.Submission, error)

	// 客户关联（寄售）
	LinkCustomers(ctx context.Context, submissionID int64, customerIDs []int64) error
	LinkedCustomerIDs(ctx context.Context, submissionIDs []int64) (map[int64][]int64, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]model.Submission, error)

	// 事务
	WithTx(tx *gorm.DB) SubmissionRepository
	Transaction(ctx context.Context, fn func(txRepo SubmissionRepository) error) error
}

// ==================== 仓储实现 ====================

type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepository 创建送评单仓储
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Create(ctx context.Context, submission *model.Submission) error {
	return r.db.WithContext(ctx).Omit("Customers").Create(submission).Error
}

func (r *submissionRepo) GetByID(ctx context.Context, id int64) (*model.Submission, error) {
	var submission model.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepo) GetByIDWithRelations(ctx context.Context, id int64) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_index ASC")
		}).
		Preload("Cards", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Customers").
		First(&submission, id).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepo) GetByExternalNumber(ctx context.Context, number string) (*model.Submission, error) {
	var submission model.Submission
	if err := r.db.WithContext(ctx).Where("external_number = ?", number).First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

// Delete 物理删除送评单及其节点、卡片、客户关联
func (r *submissionRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", id).Delete(&model.SubmissionStep{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("submission_id = ?", id).Delete(&model.Card{}).Error; err != nil {
			return err
		}
		if err := tx.Where("submission_id = ?", id).Delete(&model.SubmissionCustomer{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.Submission{}, id).Error
	})
}

// ==================== 同步相关 ====================

// LockByID 行锁读取（需在事务内调用）
func (r *submissionRepo) LockByID(ctx context.Context, id int64) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&submission, id).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepo) ListSteps(ctx context.Context, submissionID int64) ([]model.SubmissionStep, error) {
	var steps []model.SubmissionStep
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("step_index ASC").
		Find(&steps).Error
	return steps, err
}

// SaveSyncState 写入同步结果（状态位 + 进度 + 全部节点）
func (r *submissionRepo) SaveSyncState(ctx context.Context, s *model.Submission, steps []model.SubmissionStep) error {
	fields := map[string]interface{}{
		"order_number":     s.OrderNumber,
		"service_level":    s.ServiceLevel,
		"return_tracking":  s.ReturnTracking,
		"date_returned":    s.DateReturned,
		"current_step":     s.CurrentStep,
		"progress_percent": s.ProgressPercent,
		"lifecycle":        s.Lifecycle,
		"unknown_step":     s.UnknownStep,
		"grades_ready":     s.GradesReady,
		"shipped":          s.Shipped,
		"problem_order":    s.ProblemOrder,
		"accounting_hold":  s.AccountingHold,
		"last_synced_at":   s.LastSyncedAt,
		"raw_payload":      s.RawPayload,
	}
	if err := r.db.WithContext(ctx).Model(&model.Submission{}).Where("id = ?", s.ID).Updates(fields).Error; err != nil {
		return err
	}

	var created []model.SubmissionStep
	for _, step := range steps {
		if step.ID == 0 {
			created = append(created, step)
			continue
		}
		if err := r.db.WithContext(ctx).Model(&model.SubmissionStep{}).
			Where("id = ?", step.ID).
			Updates(map[string]interface{}{
				"completed":    step.Completed,
				"completed_at": step.CompletedAt,
			}).Error; err != nil {
			return err
		}
	}

	if len(created) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&created).Error
}

func (r *submissionRepo) UpdateExternalNumber(ctx context.Context, id int64, number string) error {
	return r.db.WithContext(ctx).Model(&model.Submission{}).
		Where("id = ?", id).
		Update("external_number", number).Error
}

// ListSyncEligible 可同步的送评单：已绑定外部编号且尚未寄回
func (r *submissionRepo) ListSyncEligible(ctx context.Context, companyID int64) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("external_number IS NOT NULL AND external_number <> ''").
		Where("shipped = ?", false).
		Order("id ASC").
		Find(&submissions).Error
	return submissions, err
}

// ==================== 客户关联 ====================

func (r *submissionRepo) LinkCustomers(ctx context.Context, submissionID int64, customerIDs []int64) error {
	if len(customerIDs) == 0 {
		return nil
	}
	links := make([]model.SubmissionCustomer, 0, len(customerIDs))
	for _, id := range customerIDs {
		links = append(links, model.SubmissionCustomer{SubmissionID: submissionID, CustomerID: id})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}

// LinkedCustomerIDs 批量查询送评单关联的客户
func (r *submissionRepo) LinkedCustomerIDs(ctx context.Context, submissionIDs []int64) (map[int64][]int64, error) {
	result := make(map[int64][]int64, len(submissionIDs))
	if len(submissionIDs) == 0 {
		return result, nil
	}

	var links []model.SubmissionCustomer
	if err := r.db.WithContext(ctx).
		Where("submission_id IN ?", submissionIDs).
		Order("submission_id ASC, customer_id ASC").
		Find(&links).Error; err != nil {
		return nil, err
	}
	for _, l := range links {
		result[l.SubmissionID] = append(result[l.SubmissionID], l.CustomerID)
	}
	return result, nil
}

// ListByCustomer 客户关联的送评单（含节点与卡片）
func (r *submissionRepo) ListByCustomer(ctx context.Context, customerID int64) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&model.SubmissionCustomer{}).
			Select("submission_id").
			Where("customer_id = ?", customerID)).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_index ASC")
		}).
		Preload("Cards", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Order("id ASC").
		Find(&submissions).Error
	return submissions, err
}

// ==================== 事务 ====================

func (r *submissionRepo) WithTx(tx *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: tx}
}

func (r *submissionRepo) Transaction(ctx context.Context, fn func(txRepo SubmissionRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
