package middleware

import (
	"context"
	"reflect"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ==================== 审计上下文 ====================

type auditContextKey struct{}

// AuditInfo 操作员工
type AuditInfo struct {
	StaffID   int64
	Username  string
	CompanyID int64
}

// WithAuditInfo 注入审计信息到 context
func WithAuditInfo(ctx context.Context, info AuditInfo) context.Context {
	return context.WithValue(ctx, auditContextKey{}, &info)
}

// GetAuditInfo 从 context 获取审计信息
func GetAuditInfo(ctx context.Context) *AuditInfo {
	if info, ok := ctx.Value(auditContextKey{}).(*AuditInfo); ok {
		return info
	}
	return nil
}

// GetAuditStaffID 从 context 获取操作员工 ID，后台任务与门户请求为 0
func GetAuditStaffID(ctx context.Context) int64 {
	if info := GetAuditInfo(ctx); info != nil {
		return info.StaffID
	}
	return 0
}

// ==================== Gin 中间件 ====================

// AuditContext 将 JWT 中的员工信息写入 request context，供 GORM 回调使用
// 需挂在 JWTAuth 之后
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if staffID := GetStaffID(c); staffID > 0 {
			ctx := WithAuditInfo(c.Request.Context(), AuditInfo{
				StaffID:   staffID,
				Username:  GetUsername(c),
				CompanyID: GetCompanyID(c),
			})
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}

// ==================== GORM 回调 ====================

// RegisterAuditCallbacks 注册 GORM 审计回调
// Create 填充 CreatedBy/UpdatedBy，Update 只填充 UpdatedBy
func RegisterAuditCallbacks(db *gorm.DB) error {
	err := db.Callback().Create().Before("gorm:create").Register("audit:create", func(tx *gorm.DB) {
		staffID := auditStaffID(tx)
		if staffID == 0 {
			return
		}
		setAuditField(tx, "CreatedBy", staffID)
		setAuditField(tx, "UpdatedBy", staffID)
	})
	if err != nil {
		return err
	}

	return db.Callback().Update().Before("gorm:update").Register("audit:update", func(tx *gorm.DB) {
		staffID := auditStaffID(tx)
		if staffID == 0 {
			return
		}
		// map 形式的 Updates 直接追加列
		if updates, ok := tx.Statement.Dest.(map[string]interface{}); ok {
			if tx.Statement.Schema != nil && tx.Statement.Schema.LookUpField("UpdatedBy") != nil {
				updates["updated_by"] = staffID
			}
			return
		}
		setAuditField(tx, "UpdatedBy", staffID)
	})
}

func auditStaffID(tx *gorm.DB) int64 {
	if tx.Statement.Context == nil {
		return 0
	}
	return GetAuditStaffID(tx.Statement.Context)
}

// setAuditField 字段为零值时写入
func setAuditField(tx *gorm.DB, fieldName string, value int64) {
	if tx.Statement.Schema == nil {
		return
	}

	field := tx.Statement.Schema.LookUpField(fieldName)
	if field == nil {
		return
	}

	switch tx.Statement.ReflectValue.Kind() {
	case reflect.Struct:
		if _, isZero := field.ValueOf(tx.Statement.Context, tx.Statement.ReflectValue); isZero {
			_ = field.Set(tx.Statement.Context, tx.Statement.ReflectValue, value)
		}
	case reflect.Slice:
		for i := 0; i < tx.Statement.ReflectValue.Len(); i++ {
			rv := tx.Statement.ReflectValue.Index(i)
			if _, isZero := field.ValueOf(tx.Statement.Context, rv); isZero {
				_ = field.Set(tx.Statement.Context, rv, value)
			}
		}
	}
}
