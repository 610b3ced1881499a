package models

// Точка 0 всегда точка забора, 1..9: точки доставки.
const MaxPoints = 10

type OrderPoint struct {
	Address           string  `json:"address"`
	Phone             string  `json:"phone"`
	ContactPerson     string  `json:"contact_person,omitempty"`
	RequiredTime      string  `json:"required_time"`
	RequiredTimeStart string  `json:"required_time_start"`
	Weight            float64 `json:"weight"`
	// Taking: nil, если атрибута нет; 0 из разметки уходит в API как есть.
	Taking        *float64 `json:"taking,omitempty"`
	ClientOrderID string   `json:"client_order_id,omitempty"`
}

type Order struct {
	Matter    string       `json:"matter"`
	Insurance float64      `json:"insurance"`
	Points    []OrderPoint `json:"point"`
}

// AuthParams: доступ клиента к API. Без обоих полей заказ не отправляется.
type AuthParams struct {
	ClientID string `json:"client_id"`
	Token    string `json:"token"`
}

func (a AuthParams) Valid() bool {
	return a.ClientID != "" && a.Token != ""
}
