package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/example/dispatch-engine/internal/model"
)

const dispatchColumns = `id, owner_id, instance_id, template_id, name, status,
	settings, schedule, contacts,
	stats_sent, stats_failed, stats_invalid, stats_total,
	user_timezone, created_at, started_at, completed_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetDispatch(ctx context.Context, id, ownerID string) (*model.Dispatch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+dispatchColumns+`
		FROM dispatches
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)

	d, err := scanDispatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (s *PostgresStore) ListByStatus(ctx context.Context, statuses ...model.Status) ([]model.Dispatch, error) {
	if len(statuses) == 0 {
		return nil, errors.New("at least one status required")
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, st := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(st)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dispatchColumns+`
		FROM dispatches
		WHERE status IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY created_at ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateDispatch(ctx context.Context, id, ownerID string, patch Patch) (*model.Dispatch, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id, ownerID}

	add := func(expr string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if patch.Status != nil {
		add("status = $%d", string(*patch.Status))
	}
	if patch.StartedAt != nil {
		add("started_at = $%d", *patch.StartedAt)
	}
	if patch.CompletedAt != nil {
		add("completed_at = $%d", *patch.CompletedAt)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE dispatches
		SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND owner_id = $2
		RETURNING `+dispatchColumns+`
	`, args...)

	d, err := scanDispatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// IncrementStats applies the delta as a relative, server-side update so
// concurrent units of work never lose an increment to a stale read.
func (s *PostgresStore) IncrementStats(ctx context.Context, id, ownerID string, delta StatsDelta) (*model.Dispatch, error) {
	sets := []string{
		"stats_sent = stats_sent + $3",
		"stats_failed = stats_failed + $4",
		"stats_invalid = stats_invalid + $5",
		"updated_at = now()",
	}
	args := []any{id, ownerID, delta.Sent, delta.Failed, delta.Invalid}
	if delta.Total != nil {
		args = append(args, *delta.Total)
		sets = append(sets, fmt.Sprintf("stats_total = $%d", len(args)))
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE dispatches
		SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND owner_id = $2
		RETURNING `+dispatchColumns+`
	`, args...)

	d, err := scanDispatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id, ownerID string) (*model.Template, error) {
	var (
		t       model.Template
		typ     string
		content []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, type, content, created_at, updated_at
		FROM templates
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID).Scan(&t.ID, &t.OwnerID, &t.Name, &typ, &content, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t.Type = model.TemplateType(typ)
	if t.Type == model.TemplateSequence {
		if err := json.Unmarshal(content, &t.Steps); err != nil {
			return nil, fmt.Errorf("decode sequence steps: %w", err)
		}
	} else {
		if err := json.Unmarshal(content, &t.Content); err != nil {
			return nil, fmt.Errorf("decode template content: %w", err)
		}
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("template %s: %w", t.ID, err)
	}
	return &t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispatch(row rowScanner) (*model.Dispatch, error) {
	var (
		d           model.Dispatch
		status      string
		settings    []byte
		schedule    []byte
		contacts    []byte
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	if err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.InstanceID,
		&d.TemplateID,
		&d.Name,
		&status,
		&settings,
		&schedule,
		&contacts,
		&d.Stats.Sent,
		&d.Stats.Failed,
		&d.Stats.Invalid,
		&d.Stats.Total,
		&d.UserTimezone,
		&d.CreatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	d.Status = model.Status(status)
	if err := json.Unmarshal(settings, &d.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if len(schedule) > 0 && string(schedule) != "null" {
		d.Schedule = &model.Schedule{}
		if err := json.Unmarshal(schedule, d.Schedule); err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
	}
	if err := json.Unmarshal(contacts, &d.Contacts); err != nil {
		return nil, fmt.Errorf("decode contacts: %w", err)
	}
	if startedAt.Valid {
		t := startedAt.Time
		d.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		d.CompletedAt = &t
	}
	return &d, nil
}
