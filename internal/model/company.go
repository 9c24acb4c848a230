package model

// ==================== Company 卡店 ====================

// Company 卡店（租户）
// GradingAPIKey 为评级机构的 API 凭证，仅由 CredentialProvider 读取，不出现在任何视图里
type Company struct {
	BaseModel
	Name          string `gorm:"size:128;not null"`
	GradingAPIKey string `gorm:"size:512" json:"-"`

	// 是否参与定时自动刷新
	AutoRefresh bool `gorm:"default:false"`
}

func (Company) TableName() string {
	return "companies"
}

// HasCredential 是否已配置评级凭证
func (c *Company) HasCredential() bool {
	return c.GradingAPIKey != ""
}

// ==================== Customer 终端客户 ====================

// Customer 送评客户
type Customer struct {
	BaseModel
	CompanyID int64  `gorm:"index;not null"`
	Name      string `gorm:"size:128;not null"`
	Email     string `gorm:"size:255"`
}

func (Customer) TableName() string {
	return "customers"
}
