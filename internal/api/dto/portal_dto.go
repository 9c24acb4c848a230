package dto

import "time"

// ================== Portal DTO ==================

// CustomerView 客户门户视图，只包含该客户可见的数据
type CustomerView struct {
	CustomerID   int64              `json:"customer_id"`
	CustomerName string             `json:"customer_name"`
	Submissions  []PortalSubmission `json:"submissions"`
	Offers       []OfferResp        `json:"offers"`
}

// PortalSubmission 客户可见的送评单
type PortalSubmission struct {
	ID              int64        `json:"id"`
	ExternalNumber  string       `json:"external_number"`
	ServiceLevel    string       `json:"service_level"`
	CurrentStep     string       `json:"current_step"`
	ProgressPercent int          `json:"progress_percent"`
	GradesReady     bool         `json:"grades_ready"`
	Shipped         bool         `json:"shipped"`
	ProblemOrder    bool         `json:"problem_order"`
	AccountingHold  bool         `json:"accounting_hold"`
	ReturnTracking  string       `json:"return_tracking"`
	DateReturned    *time.Time   `json:"date_returned,omitempty"`
	Steps           []PortalStep `json:"steps"`
	Cards           []PortalCard `json:"cards"`
}

type PortalStep struct {
	Index       int        `json:"index"`
	Name        string     `json:"name"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type PortalCard struct {
	ID          int64    `json:"id"`
	Description string   `json:"description"`
	Year        string   `json:"year"`
	Brand       string   `json:"brand"`
	Player      string   `json:"player"`
	CertNumber  string   `json:"cert_number"`
	Grade       string   `json:"grade"`
	Status      string   `json:"status"`
	ImageRefs   []string `json:"image_refs"`
}

// PortalTokenResp 门户令牌签发结果（明文仅返回一次）
type PortalTokenResp struct {
	Token     string     `json:"token"`
	TokenID   string     `json:"token_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// PortalTokenIssueReq 签发令牌
type PortalTokenIssueReq struct {
	TTLHours int `json:"ttl_hours"` // 0 使用默认有效期，-1 表示长期有效
}
