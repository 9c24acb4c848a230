package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"grading_sync_v1/internal/api/dto"
)

// PortalResolver 校验门户令牌并返回客户视图
type PortalResolver interface {
	Resolve(ctx context.Context, rawToken string) (*dto.CustomerView, error)
}

// unauthorizedError 令牌校验失败的错误都实现该接口
type unauthorizedError interface {
	error
	UnauthorizedReason() string
}

const (
	ContextKeyPortalView = "portal_view"
	portalTokenQuery     = "token"
)

// PortalAuth 客户门户令牌认证
// 令牌取自 Authorization: Bearer，或链接中的 ?token=
func PortalAuth(resolver PortalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			raw = c.Query(portalTokenQuery)
		}

		view, err := resolver.Resolve(c.Request.Context(), raw)
		if err != nil {
			var unauthorized unauthorizedError
			if errors.As(err, &unauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"code":    401,
					"message": "访问链接无效或已过期",
					"data":    gin.H{"reason": unauthorized.UnauthorizedReason()},
				})
				return
			}
			log.Printf("[PortalAuth] 令牌校验异常: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    500,
				"message": "服务暂不可用",
			})
			return
		}

		c.Set(ContextKeyPortalView, view)
		c.Next()
	}
}

// GetPortalView 从 Context 获取客户视图
func GetPortalView(c *gin.Context) *dto.CustomerView {
	if v, exists := c.Get(ContextKeyPortalView); exists {
		if view, ok := v.(*dto.CustomerView); ok {
			return view
		}
	}
	return nil
}
