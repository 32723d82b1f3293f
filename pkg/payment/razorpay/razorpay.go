// Package razorpay Razorpay 网关客户端适配器
//
// 只封装三个网关调用：创建订单、查询支付流水、发起退款。
// 适配器本身不做任何重试，超时由调用方通过 context 控制；
// 重试与状态推进策略全部属于上层的对账引擎。
package razorpay

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"eduverse/pkg/config"
	"eduverse/pkg/payment/types"
)

// Client Razorpay API 客户端
type Client struct {
	http      *resty.Client
	keyID     string
	keySecret string
}

// Config 网关客户端配置
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// errorBody 网关错误响应结构
type errorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// NewClient 创建网关客户端
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:      httpClient,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
	}
}

// NewClientFromConfig 从配置文件创建网关客户端
func NewClientFromConfig() *Client {
	return NewClient(Config{
		BaseURL:   config.GetString("gateway.base_url"),
		KeyID:     config.GetString("gateway.key_id"),
		KeySecret: config.GetString("gateway.key_secret"),
		Timeout:   time.Duration(config.GetInt("gateway.timeout", 10)) * time.Second,
	})
}

// KeyID 返回可下发给客户端的公开 key（绝不下发 secret）
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder 在网关创建订单
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*types.GatewayOrder, error) {
	var order types.GatewayOrder
	var errBody errorBody

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"amount":   amount,
			"currency": currency,
			"receipt":  receipt,
			"notes":    notes,
		}).
		SetResult(&order).
		SetError(&errBody).
		Post("/v1/orders")

	if err != nil {
		return nil, fmt.Errorf("create order: %s: %w", err.Error(), types.ErrGatewayUnavailable)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create order: %s: %w", errBody.Error.Description, types.ErrGatewayRejected)
	}
	return &order, nil
}

// FetchPayment 查询网关侧支付流水
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*types.GatewayPayment, error) {
	var p types.GatewayPayment
	var errBody errorBody

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&p).
		SetError(&errBody).
		Get("/v1/payments/" + paymentID)

	if err != nil {
		return nil, fmt.Errorf("fetch payment: %s: %w", err.Error(), types.ErrGatewayUnavailable)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch payment: %s: %w", errBody.Error.Description, types.ErrGatewayRejected)
	}
	return &p, nil
}

// IssueRefund 对指定交易发起退款
func (c *Client) IssueRefund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (*types.GatewayRefund, error) {
	var refund types.GatewayRefund
	var errBody errorBody

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"amount": amount,
			"notes":  notes,
		}).
		SetResult(&refund).
		SetError(&errBody).
		Post("/v1/payments/" + paymentID + "/refund")

	if err != nil {
		return nil, fmt.Errorf("issue refund: %s: %w", err.Error(), types.ErrGatewayUnavailable)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("issue refund: %s: %w", errBody.Error.Description, types.ErrGatewayRejected)
	}
	return &refund, nil
}
