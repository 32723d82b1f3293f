// Package signature 支付签名校验
//
// 两种独立的校验模式，均基于共享密钥的 HMAC-SHA256：
//   - 客户端确认模式：摘要内容为 订单号 + "|" + 支付流水号
//   - Webhook 模式：摘要内容为请求体的原始字节，必须使用未经反序列化的字节流
//
// 所有失败路径（密钥缺失、签名缺失、不匹配）一律返回 ErrSignatureInvalid，
// 调用方在校验失败时不得应用任何状态变更。
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"eduverse/pkg/payment/types"
)

// Compute 计算 HMAC-SHA256 摘要的十六进制表示
func Compute(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayment 校验客户端提交的支付确认签名
// 摘要内容为 orderNo|paymentID，与客户端提交的 signature 做常数时间比较
func VerifyPayment(orderNo, paymentID, signature, secret string) error {
	if secret == "" || signature == "" || orderNo == "" || paymentID == "" {
		return types.ErrSignatureInvalid
	}
	expected := Compute([]byte(orderNo+"|"+paymentID), secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return types.ErrSignatureInvalid
	}
	return nil
}

// VerifyWebhook 校验 Webhook 请求签名
// rawBody 必须是请求体的原始字节，任何重新序列化都会导致摘要不一致
func VerifyWebhook(rawBody []byte, signature, secret string) error {
	if secret == "" || signature == "" || len(rawBody) == 0 {
		return types.ErrSignatureInvalid
	}
	expected := Compute(rawBody, secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return types.ErrSignatureInvalid
	}
	return nil
}
