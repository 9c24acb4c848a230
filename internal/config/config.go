package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ==================== 配置结构 ====================

// Config 服务配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Grading   GradingConfig   `mapstructure:"grading"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Portal    PortalConfig    `mapstructure:"portal"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Task      TaskConfig      `mapstructure:"task"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release / test
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"` // silent / error / warn / info
}

// GradingConfig 评级机构 API
type GradingConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig 外部调用冷却
type RateLimitConfig struct {
	SubmissionInterval time.Duration `mapstructure:"submission_interval"` // 单个刷新
	BatchInterval      time.Duration `mapstructure:"batch_interval"`      // 全量刷新
	CallSpacing        time.Duration `mapstructure:"call_spacing"`        // 批量内两次调用的间隔
}

type PortalConfig struct {
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type TaskConfig struct {
	AutoRefreshEnabled bool   `mapstructure:"auto_refresh_enabled"`
	AutoRefreshCron    string `mapstructure:"auto_refresh_cron"`
}

// ==================== 加载 ====================

const envPrefix = "GRADING"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=grading_sync port=5432 sslmode=disable TimeZone=Asia/Shanghai")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("grading.base_url", "https://api.grading-service.example/v1")
	v.SetDefault("grading.timeout", 10*time.Second)
	v.SetDefault("rate_limit.submission_interval", 60*time.Second)
	v.SetDefault("rate_limit.batch_interval", 10*time.Minute)
	v.SetDefault("rate_limit.call_spacing", time.Second)
	v.SetDefault("portal.token_ttl", 90*24*time.Hour)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "grading-sync")
	v.SetDefault("task.auto_refresh_enabled", false)
	v.SetDefault("task.auto_refresh_cron", "0 */30 * * * *")
}

// Load 加载配置
// path 为空时只使用默认值与环境变量（GRADING_SERVER_PORT 等）
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 基础校验
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port 不能为空")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn 不能为空")
	}
	if c.Grading.BaseURL == "" {
		return errors.New("grading.base_url 不能为空")
	}
	if c.Grading.Timeout <= 0 {
		return errors.New("grading.timeout 必须大于 0")
	}
	if c.RateLimit.SubmissionInterval <= 0 || c.RateLimit.BatchInterval <= 0 {
		return errors.New("rate_limit 冷却间隔必须大于 0")
	}
	if c.RateLimit.CallSpacing < 0 {
		return errors.New("rate_limit.call_spacing 不能为负数")
	}
	return nil
}
