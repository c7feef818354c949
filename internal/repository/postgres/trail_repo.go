package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/pricegate/internal/audit"
)

type TrailRepo struct {
	pool *pgxpool.Pool
}

// NewTrailRepo переиспользует пул леджера: трейл и решения живут в одной базе.
func NewTrailRepo(repo *DecisionRepo) *TrailRepo {
	return &TrailRepo{pool: repo.pool}
}

func (r *TrailRepo) WriteBatch(ctx context.Context, events []audit.TrailEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице pipeline_trail
	numFields := 8
	placeholderStr := ""
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8)

		payload, _ := json.Marshal(e.Payload)

		vals = append(vals,
			e.ID, e.Topic, e.ProposalID, e.SKU, e.Status, e.Reason, payload, e.Timestamp,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO pipeline_trail (id, topic, proposal_id, sku, status, reason, payload, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.pool.Exec(ctx, query, vals...)
	return err
}
