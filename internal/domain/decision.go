package domain

import (
	"errors"
	"time"
)

// Статусы State Machine решения по предложению цены
type DecisionStatus string

const (
	StatusReceived    DecisionStatus = "RECEIVED"
	StatusApproved    DecisionStatus = "APPROVED"
	StatusRejected    DecisionStatus = "REJECTED"
	StatusAppliedAuto DecisionStatus = "APPLIED_AUTO"
	StatusApplyFailed DecisionStatus = "APPLY_FAILED"
	StatusStale       DecisionStatus = "STALE"
)

var (
	ErrInvalidTransition = errors.New("invalid decision status transition")
	ErrAlreadyProcessed  = errors.New("decision already reached a terminal status")
)

// transitions описывает полный граф переходов.
// RECEIVED -> APPROVED | REJECTED | STALE
// APPROVED -> APPLIED_AUTO | APPLY_FAILED | STALE
var transitions = map[DecisionStatus]map[DecisionStatus]struct{}{
	StatusReceived: {
		StatusApproved: {},
		StatusRejected: {},
		StatusStale:    {},
	},
	StatusApproved: {
		StatusAppliedAuto: {},
		StatusApplyFailed: {},
		StatusStale:       {},
	},
}

// Valid сообщает, входит ли значение в множество из шести статусов.
func (s DecisionStatus) Valid() bool {
	switch s {
	case StatusReceived, StatusApproved, StatusRejected,
		StatusAppliedAuto, StatusApplyFailed, StatusStale:
		return true
	}
	return false
}

// Terminal — терминальный статус делает запись неизменяемой.
func (s DecisionStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusAppliedAuto, StatusApplyFailed, StatusStale:
		return true
	}
	return false
}

// Active — запись еще «живая» и может быть вытеснена более новым предложением.
func (s DecisionStatus) Active() bool {
	return s == StatusReceived || s == StatusApproved
}

// CanTransitionTo проверяет правила конечного автомата.
// Любой переход вне графа отклоняется без мутации записи.
func (s DecisionStatus) CanTransitionTo(next DecisionStatus) error {
	if s.Terminal() {
		return ErrAlreadyProcessed
	}
	allowed, ok := transitions[s]
	if !ok {
		return ErrInvalidTransition
	}
	if _, ok := allowed[next]; !ok {
		return ErrInvalidTransition
	}
	return nil
}

// DecisionRecord — строка леджера. proposal_id уникален и неизменяем,
// строки никогда не удаляются: обновления только продвигают
// status / final_price / processed_at.
type DecisionRecord struct {
	ProposalID    string         `json:"proposal_id"`
	ProductID     string         `json:"product_id"`
	PreviousPrice float64        `json:"previous_price"`
	ProposedPrice float64        `json:"proposed_price"`
	FinalPrice    *float64       `json:"final_price,omitempty"`
	Status        DecisionStatus `json:"status"`
	Actor         string         `json:"actor"`
	Reason        *string        `json:"reason,omitempty"`
	ReceivedAt    time.Time      `json:"received_at"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
}
