package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"grading_sync_v1/internal/model"
)

// ==================== 接口定义 ====================

// BuybackRepository 回购报价仓储接口
type BuybackRepository interface {
	Create(ctx context.Context, offer *model.BuybackOffer) error
	GetByID(ctx context.Context, id int64) (*model.BuybackOffer, error)
	LockByID(ctx context.Context, id int64) (*model.BuybackOffer, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]model.BuybackOffer, error)

	// UpdateStatusIf 条件更新：仅当当前状态为 from 时生效，返回受影响行数
	UpdateStatusIf(ctx context.Context, id int64, from model.OfferStatus, fields map[string]interface{}) (int64, error)
	// ActiveOfferCardIDs 已处于待回复/已接受报价中的卡片
	ActiveOfferCardIDs(ctx context.Context, cardIDs []int64) ([]int64, error)
	// LockCards 按 ID 顺序锁定卡片行（需在事务内调用）
	LockCards(ctx context.Context, cardIDs []int64) error

	WithTx(tx *gorm.DB) BuybackRepository
	Transaction(ctx context.Context, fn func(txRepo BuybackRepository) error) error
}

// ==================== 仓储实现 ====================

type buybackRepo struct {
	db *gorm.DB
}

// NewBuybackRepository 创建回购报价仓储
func NewBuybackRepository(db *gorm.DB) BuybackRepository {
	return &buybackRepo{db: db}
}

func (r *buybackRepo) Create(ctx context.Context, offer *model.BuybackOffer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *buybackRepo) GetByID(ctx context.Context, id int64) (*model.BuybackOffer, error) {
	var offer model.BuybackOffer
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&offer, id).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// LockByID 行锁读取（需在事务内调用）
func (r *buybackRepo) LockByID(ctx context.Context, id int64) (*model.BuybackOffer, error) {
	var offer model.BuybackOffer
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&offer, id).Error
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).
		Where("offer_id = ?", id).
		Order("id ASC").
		Find(&offer.Items).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *buybackRepo) ListByCustomer(ctx context.Context, customerID int64) ([]model.BuybackOffer, error) {
	var offers []model.BuybackOffer
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Order("id DESC").
		Find(&offers).Error
	return offers, err
}

func (r *buybackRepo) UpdateStatusIf(ctx context.Context, id int64, from model.OfferStatus, fields map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.BuybackOffer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *buybackRepo) ActiveOfferCardIDs(ctx context.Context, cardIDs []int64) ([]int64, error) {
	var ids []int64
	if len(cardIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).
		Model(&model.BuybackOfferItem{}).
		Joins("JOIN buyback_offers ON buyback_offers.id = buyback_offer_items.offer_id").
		Where("buyback_offer_items.card_id IN ?", cardIDs).
		Where("buyback_offers.status IN ?", []model.OfferStatus{model.OfferStatusPending, model.OfferStatusAccepted}).
		Where("buyback_offers.deleted_at IS NULL").
		Distinct().
		Pluck("buyback_offer_items.card_id", &ids).Error
	return ids, err
}

func (r *buybackRepo) LockCards(ctx context.Context, cardIDs []int64) error {
	if len(cardIDs) == 0 {
		return nil
	}
	var ids []int64
	return r.db.WithContext(ctx).
		Model(&model.Card{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", cardIDs).
		Order("id ASC").
		Pluck("id", &ids).Error
}

// ==================== 事务 ====================

func (r *buybackRepo) WithTx(tx *gorm.DB) BuybackRepository {
	return &buybackRepo{db: tx}
}

func (r *buybackRepo) Transaction(ctx context.Context, fn func(txRepo BuybackRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
