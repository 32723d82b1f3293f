package payment

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// Status 支付状态
type Status string

const (
	StatusPending    Status = "pending"    // 待支付，订单创建后的初始状态
	StatusProcessing Status = "processing" // 处理中，客户端已确认但网关尚未捕获
	StatusCompleted  Status = "completed"  // 已完成
	StatusFailed     Status = "failed"     // 支付失败
	StatusRefunded   Status = "refunded"   // 已退款
	StatusCancelled  Status = "cancelled"  // 已取消
)

// IsTerminal 判断是否为终态
// completed 只能通过退款流程离开，refunded 和 cancelled 不可再变更
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRefunded || s == StatusCancelled
}

// Item 订单行项目
type Item struct {
	Type      string `json:"type"`       // course / internship / workshop / membership
	RefID     uint64 `json:"ref_id"`     // 关联内容 ID，内容本身不在本服务管理
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"` // 单价，最小货币单位
}

// Items 行项目数组，JSON 存储
type Items []Item

// Value 实现 driver.Valuer 接口
func (i Items) Value() (driver.Value, error) {
	if len(i) == 0 {
		return nil, nil
	}
	return json.Marshal(i)
}

// Scan 实现 sql.Scanner 接口
func (i *Items) Scan(value interface{}) error {
	if value == nil {
		*i = Items{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return errors.New("invalid scan source")
		}
	}
	return json.Unmarshal(bytes, i)
}

// GatewayMeta 网关侧补充信息
// 网关每次上报时合并进来，非空字段覆盖、空字段保留
type GatewayMeta struct {
	Method  string `json:"method,omitempty"`
	Bank    string `json:"bank,omitempty"`
	Wallet  string `json:"wallet,omitempty"`
	Contact string `json:"contact,omitempty"`
	Email   string `json:"email,omitempty"`

	// PriorTransactionID 记录被 Webhook 覆盖掉的交易号，便于人工核查
	PriorTransactionID string `json:"prior_transaction_id,omitempty"`
}

// Value 实现 driver.Valuer 接口
func (m GatewayMeta) Value() (driver.Value, error) {
	if m == (GatewayMeta{}) {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan 实现 sql.Scanner 接口
func (m *GatewayMeta) Scan(value interface{}) error {
	if value == nil {
		*m = GatewayMeta{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return errors.New("invalid scan source")
		}
	}
	return json.Unmarshal(bytes, m)
}

// Merge 合并网关上报的信息，空字段不覆盖已有值
func (m *GatewayMeta) Merge(in GatewayMeta) {
	if in.Method != "" {
		m.Method = in.Method
	}
	if in.Bank != "" {
		m.Bank = in.Bank
	}
	if in.Wallet != "" {
		m.Wallet = in.Wallet
	}
	if in.Contact != "" {
		m.Contact = in.Contact
	}
	if in.Email != "" {
		m.Email = in.Email
	}
	if in.PriorTransactionID != "" {
		m.PriorTransactionID = in.PriorTransactionID
	}
}

// Validate 验证支付记录
func (p *Payment) Validate() error {
	if p.Amount <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if p.Currency == "" {
		return errors.New("currency is required")
	}
	if len(p.Items) == 0 {
		return errors.New("items are required")
	}
	return nil
}

// AppendNote 追加一条备注
func (p *Payment) AppendNote(note string) {
	if note == "" {
		return
	}
	if p.Notes == "" {
		p.Notes = note
		return
	}
	p.Notes = strings.TrimRight(p.Notes, "; ") + "; " + note
}

// IsCompleted 检查支付是否完成
func (p *Payment) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// IsPending 检查是否待支付
func (p *Payment) IsPending() bool {
	return p.Status == StatusPending
}

// IsRefunded 检查是否已退款
func (p *Payment) IsRefunded() bool {
	return p.Status == StatusRefunded
}

// HasRefund 退款字段是否已写入
func (p *Payment) HasRefund() bool {
	return p.RefundedAt != nil || p.RefundAmount > 0
}
