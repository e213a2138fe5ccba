package amqp

import (
	"encoding/json"
	"time"
)

// PurchaseSyncMessage tells the worker a purchase needs exporting. It only
// carries the id and version; the worker reads the full purchase from the
// database so the queue never holds stale data.
type PurchaseSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPurchaseSyncMessage(id, version int64) *PurchaseSyncMessage {
	return &PurchaseSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *PurchaseSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PurchaseSyncMessageFromJSON(data []byte) (*PurchaseSyncMessage, error) {
	var msg PurchaseSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
