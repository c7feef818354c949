package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/pricegate/internal/bus"
	"github.com/xela07ax/pricegate/internal/connectors"
	"github.com/xela07ax/pricegate/internal/domain"
	"github.com/xela07ax/pricegate/internal/guard"
	"github.com/xela07ax/pricegate/internal/infra"
	"github.com/xela07ax/pricegate/internal/ledger"
	"github.com/xela07ax/pricegate/internal/policy"
)

// Pipeline — подписчик конвейера решений: принимает предложения цены с шины,
// гоняет их через guardrails и фиксирует каждый шаг жизненного цикла в леджере.
// Ни один путь не роняет предложение молча: любой терминальный статус
// достигается только явным записанным переходом с причиной.
type Pipeline struct {
	broker  bus.Broker
	store   ledger.Ledger
	guards  guard.Guardrails
	supers  policy.Supersede
	applier connectors.PriceApplier
	freeze  *FreezeManager
	metrics *Metrics
	logger  *zap.Logger

	autoApply bool
	now       func() time.Time
}

type Options struct {
	AutoApply bool
	Freeze    *FreezeManager // nil — стоп-кран выключен
}

func New(
	broker bus.Broker,
	store ledger.Ledger,
	guards guard.Guardrails,
	supers policy.Supersede,
	applier connectors.PriceApplier,
	metrics *Metrics,
	logger *zap.Logger,
	opts Options,
) *Pipeline {
	if supers == nil {
		supers = policy.NewestWins{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Pipeline{
		broker:    broker,
		store:     store,
		guards:    guards,
		supers:    supers,
		applier:   applier,
		freeze:    opts.Freeze,
		metrics:   metrics,
		logger:    logger.Named("pipeline"),
		autoApply: opts.AutoApply,
		now:       time.Now,
	}
}

// Register подписывает конвейер на входной топик предложений.
func (p *Pipeline) Register() {
	p.broker.Subscribe(infra.TopicProposalReceived,
		bus.HandlerFunc("decision-pipeline", p.handleProposal))
}

func (p *Pipeline) handleProposal(ctx context.Context, e bus.Event) error {
	start := p.now()

	prop, err := decodeProposal(e.Payload)
	if err != nil {
		p.metrics.ProposalsTotal.WithLabelValues("malformed").Inc()
		return fmt.Errorf("pipeline: decode proposal: %w", err)
	}
	if prop.ProposalID == "" {
		prop.ProposalID = uuid.New().String()
	}

	outcome := "malformed"
	defer func() {
		p.metrics.ProposalsTotal.WithLabelValues(outcome).Inc()
		p.metrics.DecisionDuration.WithLabelValues(outcome).
			Observe(time.Since(start).Seconds())
	}()

	// 1. Заводим запись леджера: любое предложение начинает жизнь в RECEIVED
	rec := &domain.DecisionRecord{
		ProposalID:    prop.ProposalID,
		ProductID:     prop.SKU,
		ProposedPrice: prop.ProposedPrice,
		Actor:         prop.Actor,
		Status:        domain.StatusReceived,
		ReceivedAt:    start.UTC(),
	}
	if prop.CurrentPrice != nil {
		rec.PreviousPrice = *prop.CurrentPrice
	}
	if prop.Reason != "" {
		v := prop.Reason
		rec.Reason = &v
	}

	if err := p.store.Create(ctx, rec); err != nil {
		return fmt.Errorf("pipeline: create decision %s: %w", rec.ProposalID, err)
	}

	// 2. Вытесняем устаревшие активные записи этого товара (политика "новее побеждает")
	p.supersedeOlder(ctx, rec)

	// 3. Стоп-кран: замороженный SKU отклоняется до guardrails
	if p.freeze != nil && p.freeze.IsFrozen(prop.SKU) {
		outcome = "frozen"
		return p.reject(ctx, rec, "sku frozen")
	}

	// 4. Guardrails: отказ — нормальный бизнес-результат, не ошибка
	ok, reason := guard.Validate(prop.CurrentPrice, prop.ProposedPrice, prop.Cost, p.guards)
	if !ok {
		outcome = "rejected"
		return p.reject(ctx, rec, reason)
	}

	rec, err = p.store.Transition(ctx, rec.ProposalID,
		domain.StatusReceived, domain.StatusApproved, ledger.Update{})
	if err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			// Конкурент успел вытеснить запись в STALE — исход уже записан
			p.logger.Info("decision superseded concurrently",
				zap.String("proposal_id", prop.ProposalID))
			outcome = "stale"
			return nil
		}
		return fmt.Errorf("pipeline: approve %s: %w", prop.ProposalID, err)
	}

	if !p.autoApply {
		outcome = "approved"
		p.publishOutcome(ctx, rec)
		return nil
	}

	// 5. Auto-apply через контур надежности; после исчерпания попыток
	// наружу приходит исходная ошибка apply
	if applyErr := p.applier.Apply(ctx, prop.SKU, prop.ProposedPrice); applyErr != nil {
		failReason := applyErr.Error()
		rec, err = p.store.Transition(ctx, rec.ProposalID,
			domain.StatusApproved, domain.StatusApplyFailed,
			ledger.Update{Reason: &failReason})
		if err != nil {
			return fmt.Errorf("pipeline: record apply failure %s: %w", prop.ProposalID, err)
		}

		outcome = "apply_failed"
		p.logger.Warn("auto-apply failed",
			zap.String("proposal_id", prop.ProposalID),
			zap.String("sku", prop.SKU),
			zap.Error(applyErr),
		)
		p.publishOutcome(ctx, rec)
		return nil
	}

	finalPrice := prop.ProposedPrice
	rec, err = p.store.Transition(ctx, rec.ProposalID,
		domain.StatusApproved, domain.StatusAppliedAuto,
		ledger.Update{FinalPrice: &finalPrice})
	if err != nil {
		return fmt.Errorf("pipeline: record apply %s: %w", prop.ProposalID, err)
	}

	outcome = "applied_auto"
	p.logger.Info("price applied",
		zap.String("proposal_id", prop.ProposalID),
		zap.String("sku", prop.SKU),
		zap.Float64("final_price", finalPrice),
	)
	p.publishOutcome(ctx, rec)
	return nil
}

func (p *Pipeline) reject(ctx context.Context, rec *domain.DecisionRecord, reason string) error {
	rejected, err := p.store.Transition(ctx, rec.ProposalID,
		domain.StatusReceived, domain.StatusRejected, ledger.Update{Reason: &reason})
	if err != nil {
		if errors.Is(err, ledger.ErrConflict) {
			return nil
		}
		return fmt.Errorf("pipeline: reject %s: %w", rec.ProposalID, err)
	}

	p.logger.Info("proposal rejected",
		zap.String("proposal_id", rejected.ProposalID),
		zap.String("sku", rejected.ProductID),
		zap.String("reason", reason),
	)
	p.publishOutcome(ctx, rejected)
	return nil
}

// supersedeOlder переводит в STALE активные записи товара, проигравшие
// политике упорядочивания. Проигрыш гонки за конкретную запись (ErrConflict)
// не страшен: ее исход уже зафиксировал другой писатель.
func (p *Pipeline) supersedeOlder(ctx context.Context, incoming *domain.DecisionRecord) {
	active, err := p.store.ActiveByProduct(ctx, incoming.ProductID)
	if err != nil {
		p.logger.Error("failed to list active decisions",
			zap.String("product_id", incoming.ProductID), zap.Error(err))
		return
	}

	for _, existing := range active {
		if !p.supers.ShouldSupersede(existing, incoming) {
			continue
		}

		reason := "superseded by " + incoming.ProposalID
		stale, err := p.store.Transition(ctx, existing.ProposalID,
			existing.Status, domain.StatusStale, ledger.Update{Reason: &reason})
		if err != nil {
			if !errors.Is(err, ledger.ErrConflict) {
				p.logger.Error("failed to supersede decision",
					zap.String("proposal_id", existing.ProposalID), zap.Error(err))
			}
			continue
		}

		p.metrics.StaleTotal.Inc()
		p.publishOutcome(ctx, stale)
	}
}

// publishOutcome транслирует записанный исход для аудита/алертинга.
// Ошибка публикации не отменяет уже записанное решение.
func (p *Pipeline) publishOutcome(ctx context.Context, rec *domain.DecisionRecord) {
	if err := p.broker.Publish(ctx, infra.TopicDecisionRecorded, *rec); err != nil {
		p.logger.Error("failed to publish decision outcome",
			zap.String("proposal_id", rec.ProposalID), zap.Error(err))
	}
}

func decodeProposal(payload any) (*domain.PriceProposal, error) {
	switch v := payload.(type) {
	case domain.PriceProposal:
		return &v, nil
	case *domain.PriceProposal:
		cp := *v
		return &cp, nil
	case []byte:
		var prop domain.PriceProposal
		if err := json.Unmarshal(v, &prop); err != nil {
			return nil, err
		}
		return &prop, nil
	case map[string]any:
		// Payload пришел с провода: прогоняем через JSON обратно в структуру
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var prop domain.PriceProposal
		if err := json.Unmarshal(raw, &prop); err != nil {
			return nil, err
		}
		return &prop, nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}
}
