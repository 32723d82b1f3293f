package payments

import (
	"errors"
	"io"
	"net/http"
	"time"

	"eduverse/pkg/logger"
	"eduverse/pkg/payment/types"
	"eduverse/pkg/redis"

	"github.com/gin-gonic/gin"
)

// 事件去重键的过期时间，网关的重试窗口不会超过这个长度
const webhookEventTTL = 48 * time.Hour

// EventStore 已消费事件的存储，pkg/redis 的客户端满足该接口
type EventStore interface {
	Has(key string) bool
	Set(key string, value interface{}, expiration time.Duration) bool
}

type WebhookController struct {
	service types.Service
	events  EventStore
}

// NewWebhookController 创建 Webhook 控制器，事件去重走全局 Redis
func NewWebhookController(service types.Service) *WebhookController {
	return &WebhookController{service: service}
}

// NewWebhookControllerWithStore 创建 Webhook 控制器并指定事件存储
func NewWebhookControllerWithStore(service types.Service, events EventStore) *WebhookController {
	return &WebhookController{service: service, events: events}
}

func (ctrl *WebhookController) eventStore() EventStore {
	if ctrl.events != nil {
		return ctrl.events
	}
	if redis.Redis != nil {
		return redis.Redis
	}
	return nil
}

// Handle 接收网关的 Webhook 回调
//
// 签名不合法返回 400；签名合法后无论业务处理结果如何都返回 200，
// 避免网关对已消费的事件反复重试。
//
// 事件去重键只在事件成功处理之后写入：验签失败或处理失败的请求
// 绝不占用键，否则伪造事件 ID 的未验签请求就能挡掉后续的合法投递。
func (ctrl *WebhookController) Handle(c *gin.Context) {
	// 签名基于原始请求体计算，必须在任何解析之前读取
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response400(c, "读取请求体失败")
		return
	}

	signature := c.GetHeader("X-Razorpay-Signature")
	if signature == "" {
		response400(c, "缺少签名")
		return
	}

	events := ctrl.eventStore()
	var eventKey string
	if eventID := c.GetHeader("X-Razorpay-Event-Id"); eventID != "" && events != nil {
		eventKey = "webhook:event:" + eventID
		// 键存在说明同一事件已验签并成功处理过，直接确认
		if events.Has(eventKey) {
			logger.InfoString("Webhook", "去重", "事件已处理过: "+eventID)
			c.Status(http.StatusOK)
			return
		}
	}

	if err := ctrl.service.HandleWebhook(c.Request.Context(), rawBody, signature); err != nil {
		if errors.Is(err, types.ErrSignatureInvalid) {
			response400(c, "签名校验失败")
			return
		}
		// 内部处理失败记录日志，但对网关仍返回 200；去重键不写入，
		// 网关的下一次重试仍会被完整处理
		logger.ErrorString("Webhook", "处理失败", err.Error())
		c.Status(http.StatusOK)
		return
	}

	if eventKey != "" {
		events.Set(eventKey, "1", webhookEventTTL)
	}

	c.Status(http.StatusOK)
}

func response400(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"status":  "error",
		"message": msg,
	})
}
