package repository

import (
	"context"

	"gorm.io/gorm"

	"grading_sync_v1/internal/model"
)

// ==================== CompanyRepository 卡店 ====================

// CompanyRepository 卡店仓储接口
type CompanyRepository interface {
	Create(ctx context.Context, company *model.Company) error
	GetByID(ctx context.Context, id int64) (*model.Company, error)
	// GradingCredential 卡店的评级机构凭证，未配置返回空串
	GradingCredential(ctx context.Context, companyID int64) (string, error)
	ListAutoRefresh(ctx context.Context) ([]model.Company, error)
}

type companyRepo struct {
	db *gorm.DB
}

// NewCompanyRepository 创建卡店仓储
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepo{db: db}
}

func (r *companyRepo) Create(ctx context.Context, company *model.Company) error {
	return r.db.WithContext(ctx).Create(company).Error
}

func (r *companyRepo) GetByID(ctx context.Context, id int64) (*model.Company, error) {
	var company model.Company
	if err := r.db.WithContext(ctx).First(&company, id).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepo) GradingCredential(ctx context.Context, companyID int64) (string, error) {
	company, err := r.GetByID(ctx, companyID)
	if err != nil {
		return "", err
	}
	return company.GradingAPIKey, nil
}

// ListAutoRefresh 开启自动刷新且已配置凭证的卡店
func (r *companyRepo) ListAutoRefresh(ctx context.Context) ([]model.Company, error) {
	var companies []model.Company
	err := r.db.WithContext(ctx).
		Where("auto_refresh = ?", true).
		Where("grading_api_key <> ''").
		Order("id ASC").
		Find(&companies).Error
	return companies, err
}

// ==================== CustomerRepository 客户 ====================

// CustomerRepository 客户仓储接口
type CustomerRepository interface {
	Create(ctx context.Context, customer *model.Customer) error
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	CountByIDs(ctx context.Context, companyID int64, ids []int64) (int64, error)
}

type customerRepo struct {
	db *gorm.DB
}

// NewCustomerRepository 创建客户仓储
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepo{db: db}
}

func (r *customerRepo) Create(ctx context.Context, customer *model.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *customerRepo) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.WithContext(ctx).First(&customer, id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// CountByIDs 统计属于该卡店的客户数
func (r *customerRepo) CountByIDs(ctx context.Context, companyID int64, ids []int64) (int64, error) {
	var count int64
	if len(ids) == 0 {
		return 0, nil
	}
	err := r.db.WithContext(ctx).Model(&model.Customer{}).
		Where("company_id = ? AND id IN ?", companyID, ids).
		Count(&count).Error
	return count, err
}
