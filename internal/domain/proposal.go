package domain

import "time"

// PriceProposal — кандидат на смену цены, произведенный внешним оптимизатором.
// Неизменяемый вход для валидатора и источник DecisionRecord.
type PriceProposal struct {
	ProposalID    string   `json:"proposal_id,omitempty"`
	SKU           string   `json:"sku"`
	CurrentPrice  *float64 `json:"current_price,omitempty"`
	ProposedPrice float64  `json:"proposed_price"`
	Cost          *float64 `json:"cost,omitempty"`
	Actor         string   `json:"actor"`
	Reason        string   `json:"reason,omitempty"`
}

// Tick — нормализованное рыночное наблюдение от внешнего коннектора.
type Tick struct {
	SKU             string    `json:"sku"`
	OurPrice        float64   `json:"our_price"`
	Source          string    `json:"source"`
	Market          string    `json:"market"`
	CompetitorPrice *float64  `json:"competitor_price,omitempty"`
	DemandIndex     *float64  `json:"demand_index,omitempty"`
	TS              time.Time `json:"ts"`
}
