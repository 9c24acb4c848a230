package controller

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"grading_sync_v1/internal/api/dto"
	"grading_sync_v1/internal/middleware"
	"grading_sync_v1/internal/service"
)

// ==================== 响应 ====================

func success(ctx *gin.Context, message string, data interface{}) {
	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": message,
		"data":    data,
	})
}

func fail(ctx *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"code": status, "message": message}
	if data != nil {
		body["data"] = data
	}
	ctx.AbortWithStatusJSON(status, body)
}

// writeError 业务错误统一映射为 HTTP 响应
func writeError(ctx *gin.Context, err error) {
	var (
		notConfigured *service.NotConfiguredError
		rateLimited   *service.RateLimitedError
		external      *service.ExternalServiceError
		duplicate     *service.DuplicateExternalNumberError
		ownership     *service.InvalidCardOwnershipError
		expired       *service.OfferExpiredError
		responded     *service.AlreadyRespondedError
		unauthorized  *service.UnauthorizedError
		transition    *service.InvalidTransitionError
	)

	switch {
	case errors.As(err, &notConfigured):
		fail(ctx, http.StatusUnprocessableEntity, err.Error(), gin.H{"missing": notConfigured.Missing})
	case errors.As(err, &rateLimited):
		middleware.AbortRateLimited(ctx, rateLimited.Scope, rateLimited.RetryAfter)
	case errors.As(err, &external):
		fail(ctx, http.StatusBadGateway, "评级机构接口异常", gin.H{
			"operation":   external.Operation,
			"status_code": external.StatusCode,
		})
	case errors.As(err, &duplicate):
		fail(ctx, http.StatusConflict, err.Error(), gin.H{
			"external_number":        duplicate.ExternalNumber,
			"existing_submission_id": duplicate.ExistingSubmissionID,
		})
	case errors.As(err, &ownership):
		fail(ctx, http.StatusUnprocessableEntity, err.Error(), gin.H{"card_id": ownership.CardID})
	case errors.As(err, &expired):
		fail(ctx, http.StatusGone, err.Error(), gin.H{"deadline": expired.Deadline})
	case errors.As(err, &responded):
		fail(ctx, http.StatusConflict, err.Error(), gin.H{"status": responded.Status})
	case errors.As(err, &transition):
		fail(ctx, http.StatusConflict, err.Error(), gin.H{"status": transition.From})
	case errors.As(err, &unauthorized):
		fail(ctx, http.StatusUnauthorized, err.Error(), gin.H{"reason": unauthorized.Reason})
	case errors.Is(err, service.ErrCardAlreadyOffered), errors.Is(err, service.ErrPayoutMismatch):
		fail(ctx, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrCardNotFound),
		errors.Is(err, service.ErrCustomerNotFound),
		errors.Is(err, service.ErrCompanyNotFound),
		errors.Is(err, service.ErrOfferNotFound),
		errors.Is(err, service.ErrTokenNotFound):
		fail(ctx, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidArgument):
		fail(ctx, http.StatusBadRequest, err.Error(), nil)
	default:
		log.Printf("[Controller] %s %s 内部错误: %v", ctx.Request.Method, ctx.FullPath(), err)
		fail(ctx, http.StatusInternalServerError, "服务器内部错误", nil)
	}
}

// ==================== 参数 ====================

// parseID 解析路径中的正整数 ID，失败时已写入 400
func parseID(ctx *gin.Context, key string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(key), 10, 64)
	if err != nil || id <= 0 {
		fail(ctx, http.StatusBadRequest, "无效的 ID", nil)
		return 0, false
	}
	return id, true
}

// ==================== 转换 ====================

func toSyncResp(r *service.SyncResult) dto.SyncResp {
	s := r.Submission
	return dto.SyncResp{
		SubmissionID:    s.ID,
		ExternalNumber:  s.ExternalNumberValue(),
		CurrentStep:     s.CurrentStep,
		ProgressPercent: s.ProgressPercent,
		Lifecycle:       string(s.Lifecycle),
		GradesReady:     s.GradesReady,
		Shipped:         s.Shipped,
		ProblemOrder:    s.ProblemOrder,
		AccountingHold:  s.AccountingHold,
		UnknownStep:     s.UnknownStep,
		Changed:         r.Changed,
		SyncedAt:        r.SyncedAt,
	}
}

func toSyncBatchResp(r *service.SyncBatchResult) dto.SyncBatchResp {
	resp := dto.SyncBatchResp{
		CompanyID: r.CompanyID,
		Total:     r.Total,
		Succeeded: len(r.Results),
		Failed:    len(r.Failures),
		Results:   make([]dto.SyncResp, 0, len(r.Results)),
		Failures:  make([]dto.SyncFailureResp, 0, len(r.Failures)),
	}
	for i := range r.Results {
		resp.Results = append(resp.Results, toSyncResp(&r.Results[i]))
	}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, dto.SyncFailureResp{
			SubmissionID:   f.SubmissionID,
			ExternalNumber: f.ExternalNumber,
			Error:          f.Err.Error(),
		})
	}
	return resp
}
