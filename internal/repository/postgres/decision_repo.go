package postgres

/*
Файл decision_repo.go — персистентная реализация леджера решений.

Таблица price_decisions (см. инфраструктурные миграции вне этого сервиса):
  proposal_id TEXT PRIMARY KEY, product_id TEXT, previous_price NUMERIC,
  proposed_price NUMERIC, final_price NUMERIC NULL, status TEXT
  CHECK (status IN ('RECEIVED','APPROVED','REJECTED','APPLIED_AUTO',
  'APPLY_FAILED','STALE')), actor TEXT, reason TEXT NULL,
  received_at TIMESTAMPTZ, processed_at TIMESTAMPTZ NULL.

Строки не удаляются никогда — это audit trail.
*/

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xela07ax/pricegate/internal/domain"
	"github.com/xela07ax/pricegate/internal/ledger"
)

type DecisionRepo struct {
	pool *pgxpool.Pool
}

// NewDecisionRepo создает пул соединений. Доступность базы проверяется
// в main через Ping.
func NewDecisionRepo(ctx context.Context, connString string, maxConns, minConns int32) (*DecisionRepo, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &DecisionRepo{pool: pool}, nil
}

func (r *DecisionRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *DecisionRepo) Close() {
	r.pool.Close()
}

const decisionColumns = `proposal_id, product_id, previous_price, proposed_price, final_price,
	status, actor, reason, received_at, processed_at`

func scanDecision(row pgx.Row) (*domain.DecisionRecord, error) {
	var rec domain.DecisionRecord
	var finalPrice sql.NullFloat64
	var reason sql.NullString
	var processedAt sql.NullTime // Используем для обработки NULL из БД

	err := row.Scan(
		&rec.ProposalID,
		&rec.ProductID,
		&rec.PreviousPrice,
		&rec.ProposedPrice,
		&finalPrice,
		&rec.Status,
		&rec.Actor,
		&reason,
		&rec.ReceivedAt,
		&processedAt,
	)
	if err != nil {
		return nil, err
	}

	if finalPrice.Valid {
		v := finalPrice.Float64
		rec.FinalPrice = &v
	}
	if reason.Valid {
		v := reason.String
		rec.Reason = &v
	}
	if processedAt.Valid {
		v := processedAt.Time
		rec.ProcessedAt = &v
	}
	return &rec, nil
}

// Create заводит запись в RECEIVED. Конфликт первичного ключа означает
// нарушение инварианта уникальности proposal_id на стороне вызывающего.
func (r *DecisionRepo) Create(ctx context.Context, rec *domain.DecisionRecord) error {
	query := `INSERT INTO price_decisions
	          (proposal_id, product_id, previous_price, proposed_price, status, actor, reason, received_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (proposal_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		rec.ProposalID, rec.ProductID, rec.PreviousPrice, rec.ProposedPrice,
		domain.StatusReceived, rec.Actor, rec.Reason, rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to create decision: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrDuplicate
	}
	return nil
}

func (r *DecisionRepo) Get(ctx context.Context, proposalID string) (*domain.DecisionRecord, error) {
	query := `SELECT ` + decisionColumns + ` FROM price_decisions WHERE proposal_id = $1`

	rec, err := scanDecision(r.pool.QueryRow(ctx, query, proposalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get decision: %w", err)
	}
	return rec, nil
}

// List — выборка для аудита/алертинга (Decision Queue).
func (r *DecisionRepo) List(ctx context.Context, status domain.DecisionStatus, limit int) ([]*domain.DecisionRecord, error) {
	query := `SELECT ` + decisionColumns + ` FROM price_decisions`

	var args []interface{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY received_at DESC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query decisions: %w", err)
	}
	defer rows.Close()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.DecisionRecord, 0)
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan decision: %w", err)
		}
		results = append(results, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

func (r *DecisionRepo) ActiveByProduct(ctx context.Context, productID string) ([]*domain.DecisionRecord, error) {
	query := `SELECT ` + decisionColumns + ` FROM price_decisions
	          WHERE product_id = $1 AND status IN ('RECEIVED', 'APPROVED')
	          ORDER BY received_at ASC`

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query active decisions: %w", err)
	}
	defer rows.Close()

	results := make([]*domain.DecisionRecord, 0)
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan decision: %w", err)
		}
		results = append(results, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// Transition атомарно продвигает статус записи.
// Условие WHERE status = $from предотвращает Double Decision: из двух
// конкурирующих писателей выигрывает ровно один, второй получает ErrConflict.
// processed_at проставляется один раз, на терминальном переходе.
func (r *DecisionRepo) Transition(ctx context.Context, proposalID string, from, to domain.DecisionStatus, upd ledger.Update) (*domain.DecisionRecord, error) {
	// Легальность перехода проверяется до запроса: нелегальный переход
	// не должен доходить до базы вовсе
	if err := from.CanTransitionTo(to); err != nil {
		return nil, err
	}

	// RETURNING отдает обновленную строку за один проход,
	// без предварительного SELECT (исключение Race Condition)
	query := `
		UPDATE price_decisions
		SET status = $1,
		    final_price = COALESCE($2, final_price),
		    reason = COALESCE($3, reason),
		    processed_at = CASE WHEN $4 AND processed_at IS NULL THEN NOW() ELSE processed_at END
		WHERE proposal_id = $5 AND status = $6
		RETURNING ` + decisionColumns

	rec, err := scanDecision(r.pool.QueryRow(ctx, query,
		to, upd.FinalPrice, upd.Reason, to.Terminal(), proposalID, from,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Либо ID неверный, либо (что чаще) запись уже ушла из статуса from
			if _, getErr := r.Get(ctx, proposalID); errors.Is(getErr, ledger.ErrNotFound) {
				return nil, ledger.ErrNotFound
			}
			return nil, ledger.ErrConflict
		}
		return nil, fmt.Errorf("postgres: failed to transition decision: %w", err)
	}
	return rec, nil
}
