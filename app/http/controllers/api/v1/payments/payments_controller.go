// Package payments 支付订单相关控制器
package payments

import (
	"errors"

	"eduverse/app/models/payment"
	"eduverse/app/requests"
	"eduverse/pkg/payment/types"
	"eduverse/pkg/response"

	"github.com/gin-gonic/gin"
)

type PaymentsController struct {
	service types.Service
	keyID   string
}

// NewPaymentsController 创建支付控制器
// keyID 是网关公开的 Key ID，会下发给客户端用于拉起收银台
func NewPaymentsController(service types.Service, keyID string) *PaymentsController {
	return &PaymentsController{
		service: service,
		keyID:   keyID,
	}
}

// orderResponse 对外的订单视图，不暴露内部主键和乐观锁版本
func (ctrl *PaymentsController) orderResponse(p *payment.Payment) gin.H {
	resp := gin.H{
		"order_no":       p.OrderNo,
		"user_id":        p.UserID,
		"amount":         p.Amount,
		"currency":       p.Currency,
		"status":         p.Status,
		"payment_method": p.PaymentMethod,
		"items":          p.Items,
		"created_at":     p.CreatedAt,
		"updated_at":     p.UpdatedAt,
	}
	if p.TransactionID != "" {
		resp["transaction_id"] = p.TransactionID
	}
	if p.RefundAmount > 0 {
		resp["refund_amount"] = p.RefundAmount
		resp["refund_reason"] = p.RefundReason
		resp["refunded_at"] = p.RefundedAt
	}
	return resp
}

// Store 创建支付订单
// 先向网关下单，成功后落库，返回给客户端拉起收银台所需的数据
func (ctrl *PaymentsController) Store(c *gin.Context) {
	req, err := requests.ValidateCreateOrder(c)
	if err != nil {
		var verr requests.ValidationError
		if errors.As(err, &verr) {
			response.ValidationError(c, verr.Errors)
			return
		}
		response.BadRequest(c, err)
		return
	}

	items := make(payment.Items, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, payment.Item{
			Type:      it.Type,
			RefID:     it.RefID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	// 账单信息随订单透传给网关，本地不落库
	notes := make(map[string]string, len(req.Notes)+4)
	for k, v := range req.Notes {
		notes[k] = v
	}
	if req.Billing.Name != "" {
		notes["billing_name"] = req.Billing.Name
	}
	if req.Billing.Email != "" {
		notes["billing_email"] = req.Billing.Email
	}
	if req.Billing.Contact != "" {
		notes["billing_contact"] = req.Billing.Contact
	}
	if req.Billing.Address != "" {
		notes["billing_address"] = req.Billing.Address
	}

	record, err := ctrl.service.CreateOrder(c.Request.Context(), types.CreateOrderParams{
		UserID:   req.UserID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Items:    items,
		Notes:    notes,
	})
	if err != nil {
		if errors.Is(err, types.ErrGatewayUnavailable) || errors.Is(err, types.ErrGatewayRejected) {
			response.Abort500(c, "支付网关暂时不可用，请稍后再试")
			return
		}
		response.ServerError(c, err)
		return
	}

	// key_id 下发给前端用于拉起收银台，密钥永远不出服务端
	response.Created(c, gin.H{
		"order_no": record.OrderNo,
		"amount":   record.Amount,
		"currency": record.Currency,
		"status":   record.Status,
		"key_id":   ctrl.keyID,
	}, "订单创建成功")
}

// Verify 客户端支付确认
// 校验客户端带回的签名，并向网关查询支付真实状态
func (ctrl *PaymentsController) Verify(c *gin.Context) {
	req, err := requests.ValidateVerifyPayment(c)
	if err != nil {
		var verr requests.ValidationError
		if errors.As(err, &verr) {
			response.ValidationError(c, verr.Errors)
			return
		}
		response.BadRequest(c, err)
		return
	}

	record, err := ctrl.service.VerifyPayment(c.Request.Context(), types.VerifyParams{
		OrderNo:   req.OrderNo,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		switch {
		case errors.Is(err, types.ErrNotFound):
			response.Abort404(c, "订单不存在")
		case errors.Is(err, types.ErrSignatureInvalid):
			response.Abort400(c, "签名校验失败")
		case errors.Is(err, types.ErrGatewayUnavailable), errors.Is(err, types.ErrGatewayRejected):
			response.Abort500(c, "支付网关暂时不可用，请稍后再试")
		case errors.Is(err, types.ErrConcurrentModification):
			response.Abort409(c)
		default:
			response.ServerError(c, err)
		}
		return
	}

	response.Data(c, ctrl.orderResponse(record))
}

// Show 查询单个订单
func (ctrl *PaymentsController) Show(c *gin.Context) {
	orderNo := c.Param("order_no")
	if orderNo == "" {
		response.Abort400(c, "订单号不能为空")
		return
	}

	record, err := ctrl.service.GetByOrderNo(c.Request.Context(), orderNo)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			response.Abort404(c, "订单不存在")
			return
		}
		response.ServerError(c, err)
		return
	}

	response.Data(c, ctrl.orderResponse(record))
}

// Refund 发起退款（后台接口，需要 AdminKey 中间件放行）
func (ctrl *PaymentsController) Refund(c *gin.Context) {
	orderNo := c.Param("order_no")
	if orderNo == "" {
		response.Abort400(c, "订单号不能为空")
		return
	}

	req, err := requests.ValidateRefund(c)
	if err != nil {
		var verr requests.ValidationError
		if errors.As(err, &verr) {
			response.ValidationError(c, verr.Errors)
			return
		}
		response.BadRequest(c, err)
		return
	}

	record, err := ctrl.service.Refund(c.Request.Context(), orderNo, req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrNotFound):
			response.Abort404(c, "订单不存在")
		case errors.Is(err, types.ErrNotRefundable):
			response.Abort400(c, "订单当前状态不可退款")
		case errors.Is(err, types.ErrAlreadyRefunded):
			response.Abort409(c, "订单已退款")
		case errors.Is(err, types.ErrRefundExceedsAmount):
			response.Abort400(c, "退款金额超过订单金额")
		case errors.Is(err, types.ErrGatewayUnavailable), errors.Is(err, types.ErrGatewayRejected):
			response.Abort500(c, "支付网关暂时不可用，请稍后再试")
		default:
			response.ServerError(c, err)
		}
		return
	}

	response.Data(c, ctrl.orderResponse(record))
}
