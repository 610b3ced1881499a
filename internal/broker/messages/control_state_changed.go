package messages

import (
	"encoding/json"
	"time"
)

// ControlStateChanged публикуется на каждую смену состояния контрола.
// Для состояния sent в событии есть номер заказа и сам заказ.
type ControlStateChanged struct {
	EventID   string    `json:"event_id"`
	ControlID string    `json:"control_id"`
	Kind      string    `json:"kind"`
	State     string    `json:"state"`
	Title     string    `json:"title,omitempty"`
	ChangedAt time.Time `json:"changed_at"`

	OrderID *string         `json:"order_id,omitempty"`
	Matter  *string         `json:"matter,omitempty"`
	Order   json.RawMessage `json:"order,omitempty"`
}
