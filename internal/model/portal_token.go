package model

import (
	"time"
)

// PortalToken 客户门户访问令牌
// 明文格式 "<token_id>.<secret>"，仅在签发时返回一次，库中只保存 secret 的 bcrypt 哈希
type PortalToken struct {
	BaseModel
	CustomerID int64      `gorm:"index;not null" json:"customer_id"`
	TokenID    string     `gorm:"size:36;uniqueIndex;not null" json:"token_id"`
	SecretHash string     `gorm:"size:255;not null" json:"-"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Enabled    bool       `gorm:"default:true" json:"enabled"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	Customer *Customer `gorm:"foreignKey:CustomerID" json:"-"`
}

func (PortalToken) TableName() string {
	return "portal_tokens"
}

// IsExpired 判断令牌是否过期（无过期时间视为长期有效）
func (t *PortalToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
