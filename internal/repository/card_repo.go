package repository

import (
	"context"

	"gorm.io/gorm"

	"grading_sync_v1/internal/model"
)

// 证书号唯一索引名
const CertNumberIndex = "uk_cards_cert_number"

// CardRepository 卡片仓储接口
type CardRepository interface {
	Create(ctx context.Context, card *model.Card) error
	GetByID(ctx context.Context, id int64) (*model.Card, error)
	ListByIDs(ctx context.Context, ids []int64) ([]model.Card, error)
	ListBySubmission(ctx context.Context, submissionID int64) ([]model.Card, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error

	WithTx(tx *gorm.DB) CardRepository
}

type cardRepo struct {
	db *gorm.DB
}

// NewCardRepository 创建卡片仓储
func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepo{db: db}
}

func (r *cardRepo) Create(ctx context.Context, card *model.Card) error {
	return r.db.WithContext(ctx).Create(card).Error
}

func (r *cardRepo) GetByID(ctx context.Context, id int64) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).First(&card, id).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *cardRepo) ListByIDs(ctx context.Context, ids []int64) ([]model.Card, error) {
	var cards []model.Card
	if len(ids) == 0 {
		return cards, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&cards).Error
	return cards, err
}

func (r *cardRepo) ListBySubmission(ctx context.Context, submissionID int64) ([]model.Card, error) {
	var cards []model.Card
	err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).Order("id ASC").Find(&cards).Error
	return cards, err
}

func (r *cardRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Card{}).Where("id = ?", id).Updates(fields).Error
}

func (r *cardRepo) WithTx(tx *gorm.DB) CardRepository {
	return &cardRepo{db: tx}
}
