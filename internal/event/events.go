package event

import (
	"time"

	"wallet-psbt/internal/model"
	"wallet-psbt/pkg/amount"

	"github.com/google/uuid"
)

// Type PSBT 生命周期事件类型
type Type string

const (
	TypeCreated   Type = "created"
	TypeSigned    Type = "signed"
	TypeBroadcast Type = "broadcast"
	TypeRemoved   Type = "removed"
)

// PsbtEvent PSBT 生命周期事件
// Topic: mq.topic (默认 wallet.events.psbt)，分区键为记录 ID，保证同一记录的事件有序
type PsbtEvent struct {
	EventID          string    `json:"event_id"`
	Type             Type      `json:"type"`
	RecordID         string    `json:"record_id"`
	Status           string    `json:"status"`
	RecipientAddress string    `json:"recipient_address"`
	Amount           string    `json:"amount"` // 展示单位，8 位小数
	Fee              string    `json:"fee"`    // 最小单位
	TxID             string    `json:"txid,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// New 根据提交后的记录快照构造事件
func New(t Type, rec model.Record, at time.Time) PsbtEvent {
	return PsbtEvent{
		EventID:          uuid.NewString(),
		Type:             t,
		RecordID:         rec.ID,
		Status:           string(rec.Status),
		RecipientAddress: rec.RecipientAddress,
		Amount:           amount.FormatDisplay(rec.AmountBaseUnits),
		Fee:              rec.Fee.String(),
		TxID:             rec.FinalTxID,
		Timestamp:        at.UTC(),
	}
}
