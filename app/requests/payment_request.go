package requests

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"
)

// OrderItemPayload 订单行项目
type OrderItemPayload struct {
	Type      string `json:"type"`
	RefID     uint64 `json:"ref_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// CreateOrderRequest 创建支付订单请求
type CreateOrderRequest struct {
	UserID   string             `json:"user_id"`
	Amount   int64              `json:"amount" valid:"amount"`
	Currency string             `json:"currency" valid:"currency"`
	Items    []OrderItemPayload `json:"items"`
	Billing  struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Contact string `json:"contact"`
		Address string `json:"address"`
	} `json:"billing"`
	Notes map[string]string `json:"notes"`
}

// 行项目类型的许可集合，仅作创建时的参考校验
var allowedItemTypes = map[string]bool{
	"course":     true,
	"internship": true,
	"workshop":   true,
	"membership": true,
}

// ValidateCreateOrder 验证创建订单请求
func ValidateCreateOrder(c *gin.Context) (*CreateOrderRequest, error) {
	var req CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, fmt.Errorf("解析 JSON 失败: %w", err)
	}

	rules := govalidator.MapData{
		"amount":   []string{"required"},
		"currency": []string{"required", "in:INR"},
	}
	messages := govalidator.MapData{
		"amount": []string{
			"required:金额不能为空",
		},
		"currency": []string{
			"required:货币不能为空",
			"in:目前仅支持 INR",
		},
	}
	if err := ValidateStruct(&req, rules, messages); err != nil {
		return nil, err
	}

	// 金额与行项目的附加校验
	if req.Amount <= 0 {
		return nil, fmt.Errorf("金额必须大于 0")
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("至少需要一个行项目")
	}
	for i, item := range req.Items {
		if !allowedItemTypes[item.Type] {
			return nil, fmt.Errorf("无效的行项目类型: %s", item.Type)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("第 %d 个行项目数量必须大于 0", i+1)
		}
		if item.UnitPrice <= 0 {
			return nil, fmt.Errorf("第 %d 个行项目单价必须大于 0", i+1)
		}
	}

	return &req, nil
}

// VerifyPaymentRequest 客户端支付确认请求
type VerifyPaymentRequest struct {
	OrderNo   string `json:"order_no" valid:"order_no"`
	PaymentID string `json:"payment_id" valid:"payment_id"`
	Signature string `json:"signature" valid:"signature"`
}

// ValidateVerifyPayment 验证支付确认请求
func ValidateVerifyPayment(c *gin.Context) (*VerifyPaymentRequest, error) {
	rules := govalidator.MapData{
		"order_no":   []string{"required"},
		"payment_id": []string{"required"},
		"signature":  []string{"required"},
	}
	messages := govalidator.MapData{
		"order_no":   []string{"required:订单号不能为空"},
		"payment_id": []string{"required:支付流水号不能为空"},
		"signature":  []string{"required:签名不能为空"},
	}

	req, err := ValidateRequest[VerifyPaymentRequest](c, rules, messages)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// RefundRequest 退款请求
type RefundRequest struct {
	Amount int64  `json:"refund_amount" valid:"refund_amount"`
	Reason string `json:"refund_reason" valid:"refund_reason"`
}

// ValidateRefund 验证退款请求
func ValidateRefund(c *gin.Context) (*RefundRequest, error) {
	rules := govalidator.MapData{
		"refund_amount": []string{"required"},
		"refund_reason": []string{"required"},
	}
	messages := govalidator.MapData{
		"refund_amount": []string{"required:退款金额不能为空"},
		"refund_reason": []string{"required:退款原因不能为空"},
	}

	req, err := ValidateRequest[RefundRequest](c, rules, messages)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("退款金额必须大于 0")
	}
	return &req, nil
}
