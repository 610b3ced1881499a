package models

import "time"

// Состояния кнопки отправки.
const (
	StateIdle    = "idle"
	StateSending = "sending"
	StateSent    = "sent"
	StateError   = "error"
)

type ControlKind string

const (
	ControlButton ControlKind = "button"
	ControlCombo  ControlKind = "combo"
)

type ControlState struct {
	ControlID string      `json:"control_id"`
	Kind      ControlKind `json:"kind"`
	State     string      `json:"state"`
	Title     string      `json:"title,omitempty"`
	OrderID   string      `json:"order_id,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IdleState: состояние контрола, о котором ещё ничего не известно.
func IdleState(id string, kind ControlKind) ControlState {
	return ControlState{ControlID: id, Kind: kind, State: StateIdle}
}

// JournalEvent: запись журнала о смене состояния контрола.
type JournalEvent struct {
	ID        uint64      `json:"id"`
	EventID   string      `json:"event_id"`
	ControlID string      `json:"control_id"`
	Kind      ControlKind `json:"kind"`
	State     string      `json:"state"`
	Title     string      `json:"title,omitempty"`
	OrderID   *string     `json:"order_id,omitempty"`
	Matter    *string     `json:"matter,omitempty"`
	OrderJSON *string     `json:"order,omitempty"`
	ChangedAt time.Time   `json:"changed_at"`
	CreatedAt time.Time   `json:"created_at"`
}

// SentOrder: заказ, принятый диспетчерской.
type SentOrder struct {
	ID        uint64    `json:"id"`
	OrderID   string    `json:"order_id"`
	ControlID string    `json:"control_id"`
	Matter    string    `json:"matter"`
	Points    int       `json:"points"`
	OrderJSON string    `json:"order,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}
