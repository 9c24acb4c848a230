package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"grading_sync_v1/internal/api/dto"
)

// GradingClientConfig 评级机构 API 配置
type GradingClientConfig struct {
	BaseURL string // e.g. https://api.grading-service.example/v1
	Timeout time.Duration
}

// GradingAPI 评级机构只读接口
type GradingAPI interface {
	FetchProgress(ctx context.Context, credential, externalNumber string) (*dto.GradingProgressResponse, error)
	FetchCertificate(ctx context.Context, credential, certNumber string) (*dto.GradingCertificateResponse, error)
}

// GradingClient 评级机构 API 客户端
// 每次调用恰好发出一个请求，不做重试；凭证由调用方按次传入，不在客户端保存
type GradingClient struct {
	client *resty.Client
}

// NewGradingClient 创建客户端
func NewGradingClient(cfg GradingClientConfig) *GradingClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &GradingClient{client: client}
}

// FetchProgress 查询送评进度
func (c *GradingClient) FetchProgress(ctx context.Context, credential, externalNumber string) (*dto.GradingProgressResponse, error) {
	if credential == "" || externalNumber == "" {
		return nil, fmt.Errorf("%w: 凭证与送评编号不能为空", ErrInvalidArgument)
	}

	var resp dto.GradingProgressResponse
	path := "/submissions/" + url.PathEscape(externalNumber) + "/progress"
	if err := c.get(ctx, "FetchProgress", credential, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchCertificate 按证书号查询评级结果
func (c *GradingClient) FetchCertificate(ctx context.Context, credential, certNumber string) (*dto.GradingCertificateResponse, error) {
	if credential == "" || certNumber == "" {
		return nil, fmt.Errorf("%w: 凭证与证书号不能为空", ErrInvalidArgument)
	}

	var resp dto.GradingCertificateResponse
	path := "/certificates/" + url.PathEscape(certNumber)
	if err := c.get(ctx, "FetchCertificate", credential, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ==================== HTTP 请求封装 ====================

func (c *GradingClient) get(ctx context.Context, op, credential, path string, result interface{}) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(credential).
		SetResult(result).
		Get(path)
	if err != nil {
		return &ExternalServiceError{Operation: op, Err: err}
	}

	if !resp.IsSuccess() {
		return &ExternalServiceError{
			Operation:  op,
			StatusCode: resp.StatusCode(),
			RawBody:    resp.String(),
		}
	}
	return nil
}
