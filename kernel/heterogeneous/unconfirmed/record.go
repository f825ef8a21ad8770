package unconfirmed

import (
	"encoding/json"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

// Status 未确认交易记录状态
type Status int

const (
	StatusPending Status = iota + 1
	StatusMarkedForDeletion
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusMarkedForDeletion:
		return "marked_for_deletion"
	default:
		return "unknown"
	}
}

// Record tracks one observed or submitted foreign chain tx
type Record struct {
	TxHash string       `json:"txHash"`
	Info   *def.TxInfo  `json:"info"`
	Status Status       `json:"status"`
	// 仅在StatusMarkedForDeletion时有效
	DeleteAtHeight uint64 `json:"deleteAtHeight,omitempty"`
	// pending已通知本链
	Submitted bool `json:"submitted"`
	// 已向本链上报确认
	Reported bool `json:"reported"`
}

func (r *Record) encode() ([]byte, error) {
	return json.Marshal(r)
}

func decodeRecord(buf []byte) (*Record, error) {
	rec := new(Record)
	if err := json.Unmarshal(buf, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
