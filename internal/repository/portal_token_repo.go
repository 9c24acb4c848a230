package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"grading_sync_v1/internal/model"
)

// PortalTokenRepository 门户令牌仓储接口
type PortalTokenRepository interface {
	Create(ctx context.Context, token *model.PortalToken) error
	GetByTokenID(ctx context.Context, tokenID string) (*model.PortalToken, error)
	Disable(ctx context.Context, tokenID string) (int64, error)
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
	ListByCustomer(ctx context.Context, customerID int64) ([]model.PortalToken, error)
}

type portalTokenRepo struct {
	db *gorm.DB
}

// NewPortalTokenRepository 创建门户令牌仓储
func NewPortalTokenRepository(db *gorm.DB) PortalTokenRepository {
	return &portalTokenRepo{db: db}
}

func (r *portalTokenRepo) Create(ctx context.Context, token *model.PortalToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *portalTokenRepo) GetByTokenID(ctx context.Context, tokenID string) (*model.PortalToken, error) {
	var token model.PortalToken
	if err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// Disable 吊销令牌，返回受影响行数
func (r *portalTokenRepo) Disable(ctx context.Context, tokenID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.PortalToken{}).
		Where("token_id = ?", tokenID).
		Update("enabled", false)
	return result.RowsAffected, result.Error
}

func (r *portalTokenRepo) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.PortalToken{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).Error
}

func (r *portalTokenRepo) ListByCustomer(ctx context.Context, customerID int64) ([]model.PortalToken, error) {
	var tokens []model.PortalToken
	err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("id DESC").Find(&tokens).Error
	return tokens, err
}
