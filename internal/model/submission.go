package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// ==================== 生命周期状态 ====================

// SubmissionLifecycle 送评单生命周期（单一状态）
// problem / accounting hold 属于独立告警位，不参与生命周期
type SubmissionLifecycle string

const (
	LifecycleReceived    SubmissionLifecycle = "received"     // 已建单，尚未同步到进度
	LifecycleInProgress  SubmissionLifecycle = "in_progress"  // 评级流程中
	LifecycleGradesReady SubmissionLifecycle = "grades_ready" // 分数已出
	LifecycleShipped     SubmissionLifecycle = "shipped"      // 已寄回
)

var lifecycleRank = map[SubmissionLifecycle]int{
	LifecycleReceived:    0,
	LifecycleInProgress:  1,
	LifecycleGradesReady: 2,
	LifecycleShipped:     3,
}

// Rank 生命周期序号，未知状态视为 0
func (l SubmissionLifecycle) Rank() int {
	return lifecycleRank[l]
}

// Advance 只前进不后退
func (l SubmissionLifecycle) Advance(next SubmissionLifecycle) SubmissionLifecycle {
	if next.Rank() > l.Rank() {
		return next
	}
	if l == "" {
		return LifecycleReceived
	}
	return l
}

// ==================== Submission 送评单 ====================

// Submission 一次送评
type Submission struct {
	BaseModel
	CompanyID int64 `gorm:"index;not null" json:"company_id"`

	// 外部编号：评级机构的 submission number，活动记录中唯一
	ExternalNumber *string `gorm:"size:32;uniqueIndex:uk_submissions_external_number,where:deleted_at IS NULL" json:"external_number,omitempty"`
	// 外部订单号：由评级机构后续分配，可变
	OrderNumber string `gorm:"size:32" json:"order_number"`

	ServiceLevel     string     `gorm:"size:64" json:"service_level"`
	DateSent         *time.Time `json:"date_sent,omitempty"`
	DateReturned     *time.Time `json:"date_returned,omitempty"`
	OutboundTracking string     `gorm:"size:64" json:"outbound_tracking"`
	ReturnTracking   string     `gorm:"size:64" json:"return_tracking"`

	// 进度
	CurrentStep     string              `gorm:"size:64" json:"current_step"`
	ProgressPercent int                 `gorm:"default:0" json:"progress_percent"`
	Lifecycle       SubmissionLifecycle `gorm:"size:32;index;default:received" json:"lifecycle"`
	// 外部返回了无法识别的步骤名时记录原文
	UnknownStep string `gorm:"size:128" json:"unknown_step,omitempty"`

	// 状态位（GradesReady / Shipped 为 Lifecycle 的投影）
	GradesReady    bool `gorm:"default:false" json:"grades_ready"`
	Shipped        bool `gorm:"default:false;index" json:"shipped"`
	ProblemOrder   bool `gorm:"default:false" json:"problem_order"`
	AccountingHold bool `gorm:"default:false" json:"accounting_hold"`

	// 同步
	LastSyncedAt *time.Time     `json:"last_synced_at,omitempty"`
	RawPayload   datatypes.JSON `gorm:"type:jsonb" json:"-"`

	// 关联
	Steps     []SubmissionStep `gorm:"foreignKey:SubmissionID" json:"steps,omitempty"`
	Cards     []Card           `gorm:"foreignKey:SubmissionID" json:"cards,omitempty"`
	Customers []Customer       `gorm:"many2many:submission_customers;" json:"-"`
}

func (Submission) TableName() string {
	return "submissions"
}

// HasExternalNumber 是否已绑定外部编号
func (s *Submission) HasExternalNumber() bool {
	return s.ExternalNumber != nil && *s.ExternalNumber != ""
}

// ExternalNumberValue 外部编号（未绑定返回空串）
func (s *Submission) ExternalNumberValue() string {
	if s.ExternalNumber == nil {
		return ""
	}
	return *s.ExternalNumber
}

// ApplyLifecycle 推进生命周期并刷新投影状态位
func (s *Submission) ApplyLifecycle(next SubmissionLifecycle) {
	s.Lifecycle = s.Lifecycle.Advance(next)
	if s.Lifecycle.Rank() >= LifecycleGradesReady.Rank() {
		s.GradesReady = true
	}
	if s.Lifecycle == LifecycleShipped {
		s.Shipped = true
	}
}

var (
	ErrShippedWithoutGrades = errors.New("已寄回的送评单必须已出分")
	ErrProgressOutOfRange   = errors.New("进度必须在 0-100 之间")
)

// Validate 校验非法状态组合
func (s *Submission) Validate() error {
	if s.Shipped && !s.GradesReady {
		return ErrShippedWithoutGrades
	}
	if s.ProgressPercent < 0 || s.ProgressPercent > 100 {
		return ErrProgressOutOfRange
	}
	return nil
}

// ==================== SubmissionStep 流程节点 ====================

// SubmissionStep 送评流程中的一个固定节点
type SubmissionStep struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	SubmissionID int64      `gorm:"uniqueIndex:uk_submission_steps_index,priority:1;not null" json:"submission_id"`
	Index        int        `gorm:"column:step_index;uniqueIndex:uk_submission_steps_index,priority:2;not null" json:"index"`
	Name         string     `gorm:"size:64;not null" json:"name"`
	Completed    bool       `gorm:"default:false" json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (SubmissionStep) TableName() string {
	return "submission_steps"
}

// ==================== SubmissionCustomer 寄售关联 ====================

// SubmissionCustomer 送评单与客户的多对多关联表
type SubmissionCustomer struct {
	SubmissionID int64 `gorm:"primaryKey"`
	CustomerID   int64 `gorm:"primaryKey;index"`
}

func (SubmissionCustomer) TableName() string {
	return "submission_customers"
}
