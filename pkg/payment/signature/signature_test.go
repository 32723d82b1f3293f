package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduverse/pkg/payment/types"
)

const testSecret = "test_webhook_secret"

func TestVerifyPayment(t *testing.T) {
	orderNo := "order_Mh4K2QLZ"
	paymentID := "pay_Nc8R5TXW"
	sig := Compute([]byte(orderNo+"|"+paymentID), testSecret)

	assert.NoError(t, VerifyPayment(orderNo, paymentID, sig, testSecret))
}

func TestVerifyPaymentTamperedSignature(t *testing.T) {
	orderNo := "order_Mh4K2QLZ"
	paymentID := "pay_Nc8R5TXW"
	sig := Compute([]byte(orderNo+"|"+paymentID), testSecret)

	// 篡改签名中的任意一个字节都必须失败
	tampered := []byte(sig)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	err := VerifyPayment(orderNo, paymentID, string(tampered), testSecret)
	assert.ErrorIs(t, err, types.ErrSignatureInvalid)
}

func TestVerifyPaymentWrongOrder(t *testing.T) {
	sig := Compute([]byte("order_A|pay_B"), testSecret)
	err := VerifyPayment("order_C", "pay_B", sig, testSecret)
	assert.ErrorIs(t, err, types.ErrSignatureInvalid)
}

func TestVerifyPaymentFailClosed(t *testing.T) {
	sig := Compute([]byte("order_A|pay_B"), testSecret)

	// 密钥、签名、参数缺失时一律拒绝
	assert.ErrorIs(t, VerifyPayment("order_A", "pay_B", sig, ""), types.ErrSignatureInvalid)
	assert.ErrorIs(t, VerifyPayment("order_A", "pay_B", "", testSecret), types.ErrSignatureInvalid)
	assert.ErrorIs(t, VerifyPayment("", "pay_B", sig, testSecret), types.ErrSignatureInvalid)
	assert.ErrorIs(t, VerifyPayment("order_A", "", sig, testSecret), types.ErrSignatureInvalid)
}

func TestVerifyWebhook(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`)
	sig := Compute(body, testSecret)

	require.NoError(t, VerifyWebhook(body, sig, testSecret))
}

func TestVerifyWebhookTamperedBody(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1"}}}}`)
	sig := Compute(body, testSecret)

	// 对请求体的单字节修改必须导致校验失败
	for _, idx := range []int{0, len(body) / 2, len(body) - 1} {
		tampered := make([]byte, len(body))
		copy(tampered, body)
		tampered[idx] ^= 0x01
		err := VerifyWebhook(tampered, sig, testSecret)
		assert.ErrorIs(t, err, types.ErrSignatureInvalid, "byte %d", idx)
	}
}

func TestVerifyWebhookReserializedBody(t *testing.T) {
	// 对原始字节签名后，换一种等价但字节不同的 JSON 形式必须失败
	raw := []byte(`{"event":"order.paid","payload":{}}`)
	reserialized := []byte(`{ "event": "order.paid", "payload": {} }`)
	sig := Compute(raw, testSecret)

	assert.NoError(t, VerifyWebhook(raw, sig, testSecret))
	assert.ErrorIs(t, VerifyWebhook(reserialized, sig, testSecret), types.ErrSignatureInvalid)
}

func TestVerifyWebhookFailClosed(t *testing.T) {
	body := []byte(`{}`)
	sig := Compute(body, testSecret)

	assert.ErrorIs(t, VerifyWebhook(body, sig, ""), types.ErrSignatureInvalid)
	assert.ErrorIs(t, VerifyWebhook(body, "", testSecret), types.ErrSignatureInvalid)
	assert.ErrorIs(t, VerifyWebhook(nil, sig, testSecret), types.ErrSignatureInvalid)
}
