package audit

import "time"

// TrailEvent — строка аудита трафика конвейера: что прошло по шине
// и чем закончилось.
type TrailEvent struct {
	ID         string                 `json:"id"`          // UUID события
	Topic      string                 `json:"topic"`       // Топик шины
	ProposalID string                 `json:"proposal_id"` // Если событие о решении
	SKU        string                 `json:"sku"`
	Status     string                 `json:"status"` // Статус решения либо "TICK"
	Reason     string                 `json:"reason"`
	Payload    map[string]interface{} `json:"payload"` // Сырой payload события
	Timestamp  time.Time              `json:"timestamp"`
}
