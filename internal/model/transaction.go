package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Status PSBT 记录生命周期状态
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSigned    Status = "signed"
	StatusBroadcast Status = "broadcast"
)

// Next 返回合法的后继状态；broadcast 为终态
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusDraft:
		return StatusSigned, true
	case StatusSigned:
		return StatusBroadcast, true
	}
	return "", false
}

func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusSigned || s == StatusBroadcast
}

// Record PSBT 记录
// ID / 收款地址 / 金额 / 手续费 / 描述 / 创建时间 创建后不可变
type Record struct {
	ID               string          `json:"id"`
	Status           Status          `json:"status"`
	RecipientAddress string          `json:"recipient_address"`
	AmountBaseUnits  int64           `json:"amount_base_units"`
	Fee              decimal.Decimal `json:"fee"` // 最小单位，按用户输入保存，广播时向上取整
	Description      string          `json:"description,omitempty"`
	EncodedTx        string          `json:"psbt"` // base64 PSBT
	CreatedAt        time.Time       `json:"created_at"`
	FinalTxID        string          `json:"txid,omitempty"`
	Inputs           []OutPoint      `json:"inputs,omitempty"`    // 广播时实际花费的输入
	SignedTx         string          `json:"signed_tx,omitempty"` // 广播的最终交易 hex
}

// Clone 返回深拷贝，读者永远拿不到内部引用
func (r Record) Clone() Record {
	r.Inputs = slices.Clone(r.Inputs)
	return r
}

// CreateRequest 用户的发送意图
type CreateRequest struct {
	RecipientAddress string
	Amount           decimal.Decimal // 展示单位
	Fee              decimal.Decimal // 最小单位
	Description      string
}
