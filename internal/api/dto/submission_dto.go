package dto

import "time"

// ================== Submission DTO ==================

// SubmissionCreateReq 创建送评单
type SubmissionCreateReq struct {
	CompanyID        int64      `json:"company_id" binding:"required"`
	ExternalNumber   string     `json:"external_number"`
	ServiceLevel     string     `json:"service_level"`
	DateSent         *time.Time `json:"date_sent"`
	OutboundTracking string     `json:"outbound_tracking"`
	CustomerIDs      []int64    `json:"customer_ids"`
	Cards            []CardReq  `json:"cards"`
}

// CardReq 送评卡片
type CardReq struct {
	CustomerOwnerID *int64 `json:"customer_owner_id"`
	Description     string `json:"description" binding:"required"`
	Year            string `json:"year"`
	Brand           string `json:"brand"`
	Player          string `json:"player"`
	CardNumber      string `json:"card_number"`
	CertNumber      string `json:"cert_number"`
}

// AttachExternalNumberReq 绑定外部编号
type AttachExternalNumberReq struct {
	ExternalNumber string `json:"external_number" binding:"required"`
}

// SyncResp 单个同步结果
type SyncResp struct {
	SubmissionID    int64     `json:"submission_id"`
	ExternalNumber  string    `json:"external_number"`
	CurrentStep     string    `json:"current_step"`
	ProgressPercent int       `json:"progress_percent"`
	Lifecycle       string    `json:"lifecycle"`
	GradesReady     bool      `json:"grades_ready"`
	Shipped         bool      `json:"shipped"`
	ProblemOrder    bool      `json:"problem_order"`
	AccountingHold  bool      `json:"accounting_hold"`
	UnknownStep     string    `json:"unknown_step,omitempty"`
	Changed         bool      `json:"changed"`
	SyncedAt        time.Time `json:"synced_at"`
}

// SyncBatchResp 批量同步结果
type SyncBatchResp struct {
	CompanyID int64             `json:"company_id"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []SyncResp        `json:"results"`
	Failures  []SyncFailureResp `json:"failures"`
}

// SyncFailureResp 单项失败
type SyncFailureResp struct {
	SubmissionID   int64  `json:"submission_id"`
	ExternalNumber string `json:"external_number"`
	Error          string `json:"error"`
}
