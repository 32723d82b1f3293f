package payments_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"eduverse/app/http/controllers/api/v1/payments"
	"eduverse/app/models/payment"
	"eduverse/pkg/payment/engine"
	"eduverse/pkg/payment/memory"
	"eduverse/pkg/payment/signature"
	"eduverse/pkg/payment/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeySecret = "secret_test"

// stubGateway 固定返回成功结果的网关替身
type stubGateway struct {
	orderSeq int
	captured map[string]bool
}

func newStubGateway() *stubGateway {
	return &stubGateway{captured: map[string]bool{}}
}

func (g *stubGateway) CreateOrder(_ context.Context, amount int64, currency, _ string, _ map[string]string) (*types.GatewayOrder, error) {
	g.orderSeq++
	return &types.GatewayOrder{
		ID:       fmt.Sprintf("order_STUB%03d", g.orderSeq),
		Amount:   amount,
		Currency: currency,
		Status:   "created",
	}, nil
}

func (g *stubGateway) FetchPayment(_ context.Context, paymentID string) (*types.GatewayPayment, error) {
	status := "authorized"
	if g.captured[paymentID] {
		status = "captured"
	}
	return &types.GatewayPayment{ID: paymentID, Status: status, Method: "upi"}, nil
}

func (g *stubGateway) IssueRefund(_ context.Context, paymentID string, amount int64, _ map[string]string) (*types.GatewayRefund, error) {
	return &types.GatewayRefund{ID: "rfnd_STUB", PaymentID: paymentID, Amount: amount, Status: "processed"}, nil
}

func newOrderRouter(gw types.Gateway, repo *memory.Repository) *gin.Engine {
	svc := engine.New(gw, repo, engine.Options{
		KeySecret:  testKeySecret,
		WebhookKey: testWebhookKey,
	})

	router := gin.New()
	pc := payments.NewPaymentsController(svc, "rzp_test_key")
	router.POST("/v1/payments/orders", pc.Store)
	router.POST("/v1/payments/verify", pc.Verify)
	router.GET("/v1/payments/orders/:order_no", pc.Show)
	router.PUT("/v1/payments/orders/:order_no/refund", pc.Refund)
	return router
}

func postJSON(router *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createOrderPayload() gin.H {
	return gin.H{
		"user_id":  "user-1",
		"amount":   49900,
		"currency": "INR",
		"items": []gin.H{
			{"type": "course", "ref_id": 12, "name": "Go 后端实战", "quantity": 1, "unit_price": 49900},
		},
	}
}

func TestStoreCreatesOrder(t *testing.T) {
	repo := memory.NewRepository()
	router := newOrderRouter(newStubGateway(), repo)

	w := postJSON(router, http.MethodPost, "/v1/payments/orders", createOrderPayload())
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data struct {
			OrderNo  string `json:"order_no"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Status   string `json:"status"`
			KeyID    string `json:"key_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.OrderNo)
	assert.Equal(t, int64(49900), resp.Data.Amount)
	assert.Equal(t, "INR", resp.Data.Currency)
	assert.Equal(t, string(payment.StatusPending), resp.Data.Status)
	// 下发 Key ID，永不下发 Secret
	assert.Equal(t, "rzp_test_key", resp.Data.KeyID)
	assert.NotContains(t, w.Body.String(), testKeySecret)
}

func TestStoreRejectsInvalidPayload(t *testing.T) {
	router := newOrderRouter(newStubGateway(), memory.NewRepository())

	// 不支持的货币
	payload := createOrderPayload()
	payload["currency"] = "USD"
	w := postJSON(router, http.MethodPost, "/v1/payments/orders", payload)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// 缺少行项目
	payload = createOrderPayload()
	payload["items"] = []gin.H{}
	w = postJSON(router, http.MethodPost, "/v1/payments/orders", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyEndpoint(t *testing.T) {
	gw := newStubGateway()
	repo := memory.NewRepository()
	router := newOrderRouter(gw, repo)

	w := postJSON(router, http.MethodPost, "/v1/payments/orders", createOrderPayload())
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data struct {
			OrderNo string `json:"order_no"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	orderNo := created.Data.OrderNo

	gw.captured["pay_C1"] = true
	sig := signature.Compute([]byte(orderNo+"|pay_C1"), testKeySecret)

	w = postJSON(router, http.MethodPost, "/v1/payments/verify", gin.H{
		"order_no":   orderNo,
		"payment_id": "pay_C1",
		"signature":  sig,
	})
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := repo.GetByOrderNo(context.Background(), orderNo)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, stored.Status)
	assert.Equal(t, "pay_C1", stored.TransactionID)
}

func TestVerifyEndpointBadSignature(t *testing.T) {
	repo := memory.NewRepository()
	router := newOrderRouter(newStubGateway(), repo)

	w := postJSON(router, http.MethodPost, "/v1/payments/orders", createOrderPayload())
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data struct {
			OrderNo string `json:"order_no"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = postJSON(router, http.MethodPost, "/v1/payments/verify", gin.H{
		"order_no":   created.Data.OrderNo,
		"payment_id": "pay_C2",
		"signature":  "tampered",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	stored, err := repo.GetByOrderNo(context.Background(), created.Data.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, stored.Status)
}

func TestShowEndpointNotFound(t *testing.T) {
	router := newOrderRouter(newStubGateway(), memory.NewRepository())

	req := httptest.NewRequest(http.MethodGet, "/v1/payments/orders/order_nobody", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefundEndpointStatusMapping(t *testing.T) {
	gw := newStubGateway()
	repo := memory.NewRepository()
	router := newOrderRouter(gw, repo)

	w := postJSON(router, http.MethodPost, "/v1/payments/orders", createOrderPayload())
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data struct {
			OrderNo string `json:"order_no"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	orderNo := created.Data.OrderNo

	refund := gin.H{"refund_amount": 49900, "refund_reason": "课程取消"}

	// 未完成的订单不可退款
	w = postJSON(router, http.MethodPut, "/v1/payments/orders/"+orderNo+"/refund", refund)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 完成支付后退款成功
	gw.captured["pay_R1"] = true
	sig := signature.Compute([]byte(orderNo+"|pay_R1"), testKeySecret)
	w = postJSON(router, http.MethodPost, "/v1/payments/verify", gin.H{
		"order_no": orderNo, "payment_id": "pay_R1", "signature": sig,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(router, http.MethodPut, "/v1/payments/orders/"+orderNo+"/refund", refund)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := repo.GetByOrderNo(context.Background(), orderNo)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, stored.Status)

	// 二次退款被拒：状态已不是 completed，前置条件按顺序第一个失败即返回
	w = postJSON(router, http.MethodPut, "/v1/payments/orders/"+orderNo+"/refund", refund)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
