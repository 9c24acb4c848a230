package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"grading_sync_v1/internal/api/dto"
	"grading_sync_v1/internal/model"
)

func useJWTConfig(t *testing.T, cfg *JWTConfig) {
	prev := GetJWTConfig()
	SetJWTConfig(cfg)
	t.Cleanup(func() { SetJWTConfig(prev) })
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// ==================== JWT ====================

func TestJWTAuth(t *testing.T) {
	useJWTConfig(t, &JWTConfig{SecretKey: "test-secret", AccessTokenTTL: time.Hour, Issuer: "grading-sync"})

	r := gin.New()
	r.GET("/me", JWTAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"staff_id":   GetStaffID(c),
			"company_id": GetCompanyID(c),
			"role":       GetStaffRole(c),
		})
	})

	token, err := GenerateAccessToken(7, "alice", 3, RoleOwner)
	require.NoError(t, err)

	SetJWTConfig(&JWTConfig{SecretKey: "other-secret", AccessTokenTTL: time.Hour, Issuer: "grading-sync"})
	foreign, err := GenerateAccessToken(7, "alice", 3, RoleOwner)
	require.NoError(t, err)
	SetJWTConfig(&JWTConfig{SecretKey: "test-secret", AccessTokenTTL: -time.Minute, Issuer: "grading-sync"})
	expired, err := GenerateAccessToken(7, "alice", 3, RoleOwner)
	require.NoError(t, err)
	SetJWTConfig(&JWTConfig{SecretKey: "test-secret", AccessTokenTTL: time.Hour, Issuer: "grading-sync"})
	noCompany, err := GenerateAccessToken(7, "alice", 0, RoleOwner)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"有效令牌", "Bearer " + token, http.StatusOK},
		{"缺少认证头", "", http.StatusUnauthorized},
		{"格式错误", "Token " + token, http.StatusUnauthorized},
		{"签名不匹配", "Bearer " + foreign, http.StatusUnauthorized},
		{"已过期", "Bearer " + expired, http.StatusUnauthorized},
		{"未绑定卡店", "Bearer " + noCompany, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)

			if tt.status == http.StatusOK {
				body := decodeBody(t, w)
				assert.EqualValues(t, 7, body["staff_id"])
				assert.EqualValues(t, 3, body["company_id"])
				assert.Equal(t, RoleOwner, body["role"])
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	useJWTConfig(t, &JWTConfig{SecretKey: "test-secret", AccessTokenTTL: time.Hour, Issuer: "grading-sync"})

	r := gin.New()
	r.POST("/paid", JWTAuth(), RequireRole(RoleOwner), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	owner, err := GenerateAccessToken(1, "owner", 1, RoleOwner)
	require.NoError(t, err)
	staff, err := GenerateAccessToken(2, "staff", 1, RoleStaff)
	require.NoError(t, err)

	for token, status := range map[string]int{owner: http.StatusNoContent, staff: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodPost, "/paid", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code)
	}
}

// ==================== 审计 ====================

func TestAuditCallbacks(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	require.NoError(t, db.AutoMigrate(&model.Customer{}))
	require.NoError(t, RegisterAuditCallbacks(db))

	ctx := WithAuditInfo(context.Background(), AuditInfo{StaffID: 42, Username: "alice", CompanyID: 1})
	customer := &model.Customer{CompanyID: 1, Name: "Bob"}
	require.NoError(t, db.WithContext(ctx).Create(customer).Error)
	assert.Equal(t, int64(42), customer.CreatedBy)
	assert.Equal(t, int64(42), customer.UpdatedBy)

	other := WithAuditInfo(context.Background(), AuditInfo{StaffID: 43})
	require.NoError(t, db.WithContext(other).Model(&model.Customer{}).Where("id = ?", customer.ID).
		Updates(map[string]interface{}{"name": "Bobby"}).Error)

	var stored model.Customer
	require.NoError(t, db.First(&stored, customer.ID).Error)
	assert.Equal(t, int64(42), stored.CreatedBy)
	assert.Equal(t, int64(43), stored.UpdatedBy)

	// 无审计信息时不写入
	anon := &model.Customer{CompanyID: 1, Name: "Carol"}
	require.NoError(t, db.Create(anon).Error)
	assert.Zero(t, anon.CreatedBy)
}

func TestAuditContext(t *testing.T) {
	useJWTConfig(t, &JWTConfig{SecretKey: "test-secret", AccessTokenTTL: time.Hour, Issuer: "grading-sync"})

	var got *AuditInfo
	r := gin.New()
	r.GET("/x", JWTAuth(), AuditContext(), func(c *gin.Context) {
		got = GetAuditInfo(c.Request.Context())
		c.Status(http.StatusOK)
	})

	token, err := GenerateAccessToken(9, "alice", 4, RoleStaff)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	assert.Equal(t, int64(9), got.StaffID)
	assert.Equal(t, int64(4), got.CompanyID)
	assert.Equal(t, "alice", got.Username)
}

// ==================== 门户令牌 ====================

type stubUnauthorized struct{ reason string }

func (e *stubUnauthorized) Error() string              { return "unauthorized: " + e.reason }
func (e *stubUnauthorized) UnauthorizedReason() string { return e.reason }

type stubResolver struct {
	views map[string]*dto.CustomerView
	err   error
}

func (s *stubResolver) Resolve(_ context.Context, raw string) (*dto.CustomerView, error) {
	if s.err != nil {
		return nil, s.err
	}
	if view, ok := s.views[raw]; ok {
		return view, nil
	}
	return nil, &stubUnauthorized{reason: "unknown"}
}

func TestPortalAuth(t *testing.T) {
	resolver := &stubResolver{views: map[string]*dto.CustomerView{
		"good.token": {CustomerID: 5, CustomerName: "Alice"},
	}}

	r := gin.New()
	r.GET("/portal/me", PortalAuth(resolver), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"customer_id": GetPortalView(c).CustomerID})
	})

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"Bearer 令牌", "/portal/me", "Bearer good.token", http.StatusOK},
		{"链接令牌", "/portal/me?token=good.token", "", http.StatusOK},
		{"未知令牌", "/portal/me?token=bad.token", "", http.StatusUnauthorized},
		{"缺少令牌", "/portal/me", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)

			body := decodeBody(t, w)
			if tt.status == http.StatusOK {
				assert.EqualValues(t, 5, body["customer_id"])
			} else {
				assert.Equal(t, "unknown", body["data"].(map[string]interface{})["reason"])
			}
		})
	}

	resolver.err = errors.New("db down")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/portal/me?token=good.token", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
