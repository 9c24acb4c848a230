package service

import (
	"errors"
	"fmt"
	"time"
)

// ==================== 错误哨兵 ====================

var (
	ErrNotConfigured           = errors.New("未完成同步配置")
	ErrRateLimited             = errors.New("调用过于频繁")
	ErrExternalService         = errors.New("评级机构服务异常")
	ErrDuplicateExternalNumber = errors.New("外部送评编号已被占用")
	ErrInvalidCardOwnership    = errors.New("卡片不属于该客户或尚未评级")
	ErrOfferExpired            = errors.New("报价已过期")
	ErrAlreadyResponded        = errors.New("报价已处理")
	ErrUnauthorized            = errors.New("访问令牌无效")
	ErrInvalidTransition       = errors.New("报价状态不允许该操作")

	ErrSubmissionNotFound = errors.New("送评单不存在")
	ErrCardNotFound       = errors.New("卡片不存在")
	ErrCustomerNotFound   = errors.New("客户不存在")
	ErrCompanyNotFound    = errors.New("卡店不存在")
	ErrOfferNotFound      = errors.New("报价不存在")
	ErrTokenNotFound      = errors.New("访问令牌不存在")
	ErrInvalidArgument    = errors.New("参数错误")
	ErrPayoutMismatch     = errors.New("报价金额校验失败")
	ErrCardAlreadyOffered = errors.New("卡片已在其他有效报价中")
)

// ==================== 结构化错误 ====================

// 缺失项
const (
	MissingExternalNumber = "external_number"
	MissingCredential     = "credential"
	MissingCertNumber     = "cert_number"
)

// NotConfiguredError 缺少外部编号或评级凭证
type NotConfiguredError struct {
	SubmissionID int64
	CompanyID    int64
	Missing      string
}

func (e *NotConfiguredError) Error() string {
	switch e.Missing {
	case MissingCredential:
		return fmt.Sprintf("卡店 %d 未配置评级机构凭证", e.CompanyID)
	case MissingCertNumber:
		return fmt.Sprintf("送评单 %d 的卡片未分配证书号", e.SubmissionID)
	default:
		return fmt.Sprintf("送评单 %d 未绑定外部送评编号", e.SubmissionID)
	}
}

func (e *NotConfiguredError) Unwrap() error { return ErrNotConfigured }

// RateLimitedError 冷却中
type RateLimitedError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s 冷却中，%d 秒后重试", e.Scope, int(e.RetryAfter.Seconds()))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// ExternalServiceError 评级机构返回非成功响应或网络失败（StatusCode 为 0）
type ExternalServiceError struct {
	Operation  string
	StatusCode int
	RawBody    string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s 请求失败: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s 返回 HTTP %d: %s", e.Operation, e.StatusCode, e.RawBody)
}

func (e *ExternalServiceError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrExternalService, e.Err}
	}
	return []error{ErrExternalService}
}

// DuplicateExternalNumberError 外部编号已绑定到另一张送评单
type DuplicateExternalNumberError struct {
	ExternalNumber       string
	SubmissionID         int64
	ExistingSubmissionID int64
}

func (e *DuplicateExternalNumberError) Error() string {
	return fmt.Sprintf("外部送评编号 %s 已绑定到送评单 %d", e.ExternalNumber, e.ExistingSubmissionID)
}

func (e *DuplicateExternalNumberError) Unwrap() error { return ErrDuplicateExternalNumber }

// InvalidCardOwnershipError 卡片归属或状态不满足报价条件
type InvalidCardOwnershipError struct {
	CardID     int64
	CustomerID int64
	Reason     string
}

func (e *InvalidCardOwnershipError) Error() string {
	return fmt.Sprintf("卡片 %d 无法向客户 %d 报价: %s", e.CardID, e.CustomerID, e.Reason)
}

func (e *InvalidCardOwnershipError) Unwrap() error { return ErrInvalidCardOwnership }

// OfferExpiredError 超过回复截止时间
type OfferExpiredError struct {
	OfferID  int64
	Deadline time.Time
}

func (e *OfferExpiredError) Error() string {
	return fmt.Sprintf("报价 %d 已于 %s 过期", e.OfferID, e.Deadline.Format(time.RFC3339))
}

func (e *OfferExpiredError) Unwrap() error { return ErrOfferExpired }

// AlreadyRespondedError 报价已不是待回复状态
type AlreadyRespondedError struct {
	OfferID int64
	Status  string
}

func (e *AlreadyRespondedError) Error() string {
	return fmt.Sprintf("报价 %d 已处理，当前状态 %s", e.OfferID, e.Status)
}

func (e *AlreadyRespondedError) Unwrap() error { return ErrAlreadyResponded }

// 令牌校验失败原因
const (
	ReasonMissing   = "missing"
	ReasonMalformed = "malformed"
	ReasonUnknown   = "unknown"
	ReasonRevoked   = "revoked"
	ReasonExpired   = "expired"
	ReasonMismatch  = "mismatch"
)

// UnauthorizedError 门户令牌校验失败
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return "访问令牌无效: " + e.Reason
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// UnauthorizedReason 供认证中间件识别
func (e *UnauthorizedError) UnauthorizedReason() string { return e.Reason }

// InvalidTransitionError 报价状态机不允许的操作
type InvalidTransitionError struct {
	OfferID int64
	From    string
	Action  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("报价 %d 当前状态 %s 不允许 %s", e.OfferID, e.From, e.Action)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
