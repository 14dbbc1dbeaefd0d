package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fluxhub/action-dispatch/internal/domain"
)

const invocationColumns = `id, group_id, action, payload, priority, phase,
	       idempotency_key, scheduled_at, started_at, settled_at,
	       result, error_message, created_at, updated_at`

type pgInvocationRepository struct {
	pool *pgxpool.Pool
}

// NewPgInvocationRepository returns an InvocationRepository backed by PostgreSQL.
func NewPgInvocationRepository(pool *pgxpool.Pool) InvocationRepository {
	return &pgInvocationRepository{pool: pool}
}

func (r *pgInvocationRepository) Create(ctx context.Context, inv *domain.Invocation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO invocations
			(id, group_id, action, payload, priority, phase,
			 idempotency_key, scheduled_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		inv.ID, inv.GroupID, inv.Action, inv.Payload, inv.Priority, inv.Phase,
		inv.IdempotencyKey, inv.ScheduledAt, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "idempotency_key") {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

func (r *pgInvocationRepository) GetByID(ctx context.Context, id string) (*domain.Invocation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invocationColumns+` FROM invocations WHERE id = $1`, id)

	inv, err := scanInvocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return inv, err
}

func (r *pgInvocationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Invocation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invocationColumns+` FROM invocations WHERE idempotency_key = $1`, key)

	inv, err := scanInvocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return inv, err
}

func (r *pgInvocationRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Invocation, int, error) {
	where, args := buildListWhere(f)
	offset := (f.Page - 1) * f.Limit

	var total int
	countQuery := "SELECT COUNT(*) FROM invocations" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invocations: %w", err)
	}

	// Pagination args are appended after the WHERE args.
	args = append(args, f.Limit, offset)
	limitPlaceholder := fmt.Sprintf("$%d", len(args)-1)
	offsetPlaceholder := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		SELECT `+invocationColumns+`
		FROM invocations%s
		ORDER BY created_at DESC
		LIMIT %s OFFSET %s`, where, limitPlaceholder, offsetPlaceholder)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invocations: %w", err)
	}
	defer rows.Close()

	invocations, err := collectInvocations(rows)
	if err != nil {
		return nil, 0, err
	}
	return invocations, total, nil
}

func buildListWhere(f domain.ListFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Phase != nil {
		add("phase = $%d", *f.Phase)
	}
	if f.Action != nil {
		add("action = $%d", *f.Action)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *pgInvocationRepository) UpdatePhase(ctx context.Context, id string, phase domain.Phase) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE invocations SET phase = $1, updated_at = NOW() WHERE id = $2`, phase, id)
	return err
}

func (r *pgInvocationRepository) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE invocations
		SET phase = 'running', started_at = $1, updated_at = NOW()
		WHERE id = $2`, startedAt, id)
	return err
}

func (r *pgInvocationRepository) MarkFulfilled(ctx context.Context, id string, result json.RawMessage, settledAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE invocations
		SET phase = 'fulfilled', result = $1, settled_at = $2,
		    error_message = NULL, updated_at = NOW()
		WHERE id = $3`, result, settledAt, id)
	return err
}

func (r *pgInvocationRepository) MarkRejected(ctx context.Context, id string, errMsg string, settledAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE invocations
		SET phase = 'rejected', error_message = $1, settled_at = $2, updated_at = NOW()
		WHERE id = $3`, errMsg, settledAt, id)
	return err
}

func (r *pgInvocationRepository) Cancel(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE invocations SET phase = 'cancelled', updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *pgInvocationRepository) FindDueScheduled(ctx context.Context) ([]*domain.Invocation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+invocationColumns+`
		FROM invocations
		WHERE phase = 'scheduled' AND scheduled_at <= NOW()
		ORDER BY scheduled_at
		LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("find due scheduled: %w", err)
	}
	defer rows.Close()
	return collectInvocations(rows)
}

func (r *pgInvocationRepository) FindStaleRunning(ctx context.Context, startedBefore time.Time) ([]*domain.Invocation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+invocationColumns+`
		FROM invocations
		WHERE phase = 'running' AND started_at <= $1
		ORDER BY started_at
		LIMIT 100`, startedBefore)
	if err != nil {
		return nil, fmt.Errorf("find stale running: %w", err)
	}
	defer rows.Close()
	return collectInvocations(rows)
}

func (r *pgInvocationRepository) CreateGroup(ctx context.Context, groupID string, invocations []*domain.Invocation) (*domain.Group, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	group := &domain.Group{
		ID:        groupID,
		Total:     len(invocations),
		Pending:   len(invocations),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO invocation_groups (id, total, pending, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)`,
		group.ID, group.Total, group.Pending, group.CreatedAt, group.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}

	for _, inv := range invocations {
		_, err = tx.Exec(ctx, `
			INSERT INTO invocations
				(id, group_id, action, payload, priority, phase,
				 idempotency_key, scheduled_at, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			inv.ID, inv.GroupID, inv.Action, inv.Payload, inv.Priority, inv.Phase,
			inv.IdempotencyKey, inv.ScheduledAt, inv.CreatedAt, inv.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert group invocation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit group: %w", err)
	}
	return group, nil
}

func (r *pgInvocationRepository) GetGroup(ctx context.Context, groupID string) (*domain.Group, []*domain.Invocation, error) {
	var g domain.Group
	err := r.pool.QueryRow(ctx, `
		SELECT id, total, pending, fulfilled, rejected, cancelled, created_at, updated_at
		FROM invocation_groups WHERE id = $1`, groupID).
		Scan(&g.ID, &g.Total, &g.Pending, &g.Fulfilled, &g.Rejected, &g.Cancelled,
			&g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get group: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+invocationColumns+`
		FROM invocations WHERE group_id = $1
		ORDER BY created_at`, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("list group invocations: %w", err)
	}
	defer rows.Close()

	invocations, err := collectInvocations(rows)
	if err != nil {
		return nil, nil, err
	}
	return &g, invocations, nil
}

// UpdateGroupCounts recomputes a group's counters from its invocations.
// Recomputing instead of incrementing keeps the counters correct even when
// two workers settle members of the same group concurrently.
func (r *pgInvocationRepository) UpdateGroupCounts(ctx context.Context, groupID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE invocation_groups g
		SET pending   = s.pending,
		    fulfilled = s.fulfilled,
		    rejected  = s.rejected,
		    cancelled = s.cancelled,
		    updated_at = NOW()
		FROM (
			SELECT
				COUNT(*) FILTER (WHERE phase IN ('pending','queued','scheduled','running')) AS pending,
				COUNT(*) FILTER (WHERE phase = 'fulfilled') AS fulfilled,
				COUNT(*) FILTER (WHERE phase = 'rejected')  AS rejected,
				COUNT(*) FILTER (WHERE phase = 'cancelled') AS cancelled
			FROM invocations WHERE group_id = $1
		) s
		WHERE g.id = $1`, groupID)
	return err
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row rowScanner) (*domain.Invocation, error) {
	var inv domain.Invocation
	err := row.Scan(
		&inv.ID, &inv.GroupID, &inv.Action, &inv.Payload, &inv.Priority, &inv.Phase,
		&inv.IdempotencyKey, &inv.ScheduledAt, &inv.StartedAt, &inv.SettledAt,
		&inv.Result, &inv.ErrorMessage, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func collectInvocations(rows pgx.Rows) ([]*domain.Invocation, error) {
	var invocations []*domain.Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		invocations = append(invocations, inv)
	}
	return invocations, rows.Err()
}
