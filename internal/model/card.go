package model

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StringList 字符串数组，PostgreSQL 下为 text[]，其他方言按文本存储
type StringList pq.StringArray

func (StringList) GormDataType() string {
	return "text"
}

func (StringList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (l StringList) Value() (driver.Value, error) {
	return pq.StringArray(l).Value()
}

func (l *StringList) Scan(src interface{}) error {
	return (*pq.StringArray)(l).Scan(src)
}

// ==================== 卡片状态 ====================

type CardStatus string

const (
	CardStatusPending CardStatus = "pending" // 待评级
	CardStatusGraded  CardStatus = "graded"  // 已出分
)

// GradeSource 分数来源，数值越大可信度越高
type GradeSource string

const (
	GradeSourceNone           GradeSource = ""
	GradeSourceManual         GradeSource = "manual"          // 员工手录
	GradeSourceImport         GradeSource = "import"          // 批量导入
	GradeSourceGradingService GradeSource = "grading_service" // 评级机构证书
)

var gradeSourceRank = map[GradeSource]int{
	GradeSourceNone:           0,
	GradeSourceManual:         1,
	GradeSourceImport:         2,
	GradeSourceGradingService: 3,
}

// Rank 可信度
func (s GradeSource) Rank() int {
	return gradeSourceRank[s]
}

// ==================== Card 卡片 ====================

// Card 送评单中的单张卡片
// CustomerOwnerID 为空表示归属于送评单本身（非寄售）
type Card struct {
	BaseModel
	SubmissionID    int64  `gorm:"index;not null" json:"submission_id"`
	CustomerOwnerID *int64 `gorm:"index" json:"customer_owner_id,omitempty"`

	// 卡片信息
	Description string `gorm:"size:255" json:"description"`
	Year        string `gorm:"size:8" json:"year"`
	Brand       string `gorm:"size:128" json:"brand"`
	Player      string `gorm:"size:128" json:"player"`
	CardNumber  string `gorm:"size:32" json:"card_number"`

	// 评级信息
	CertNumber  *string     `gorm:"size:32;uniqueIndex:uk_cards_cert_number,where:deleted_at IS NULL" json:"cert_number,omitempty"`
	Grade       string      `gorm:"size:16" json:"grade"`
	GradeSource GradeSource `gorm:"size:32" json:"grade_source"`
	Status      CardStatus  `gorm:"size:16;index;default:pending" json:"status"`

	// 图片引用（存储由外部负责）
	ImageRefs StringList `json:"image_refs"`
}

func (Card) TableName() string {
	return "cards"
}

// IsGraded 是否已出分
func (c *Card) IsGraded() bool {
	return c.Status == CardStatusGraded && c.Grade != ""
}

// OwnedBy 是否归属该客户
func (c *Card) OwnedBy(customerID int64) bool {
	return c.CustomerOwnerID != nil && *c.CustomerOwnerID == customerID
}

// CertNumberValue 证书号（未分配返回空串）
func (c *Card) CertNumberValue() string {
	if c.CertNumber == nil {
		return ""
	}
	return *c.CertNumber
}

// CanOverwriteGrade 新来源是否允许覆盖已有分数
// 已有分数来源无法识别时一律不覆盖
func (c *Card) CanOverwriteGrade(source GradeSource) bool {
	if c.Grade == "" {
		return true
	}
	current, known := gradeSourceRank[c.GradeSource]
	if !known {
		return false
	}
	return source.Rank() >= current
}
