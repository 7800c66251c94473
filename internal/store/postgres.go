package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wdm0006/nimbus/pkg/registry"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS widgets (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL DEFAULT '',
		owner TEXT NOT NULL DEFAULT '',
		builtin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS widgets_name ON widgets (name)`,
	// data stays TEXT: jsonb would not keep the summary's key order
	`CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		title TEXT NOT NULL,
		csv_path TEXT NOT NULL DEFAULT '',
		widget_ids TEXT NOT NULL DEFAULT '[]',
		data TEXT NOT NULL DEFAULT '{}',
		information TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reports_owner ON reports (owner)`,
}

// pgStore is the Postgres backend.
type pgStore struct {
	pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, dsn string) (*pgStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: bootstrap: %w", err)
		}
	}
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

func pgWidget(row pgx.Row) (Widget, error) {
	var w Widget
	err := row.Scan(&w.ID, &w.Name, &w.Description, &w.Code, &w.Owner, &w.Builtin, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return w, ErrNotFound
	}
	return w, err
}

func (s *pgStore) CreateWidget(ctx context.Context, w *Widget) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO widgets (name, description, code, owner, builtin, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		w.Name, w.Description, w.Code, w.Owner, w.Builtin, w.CreatedAt).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("insert widget: %w", err)
	}
	return nil
}

func (s *pgStore) GetWidget(ctx context.Context, id int64) (Widget, error) {
	return pgWidget(s.pool.QueryRow(ctx, `SELECT `+widgetCols+` FROM widgets WHERE id = $1`, id))
}

func (s *pgStore) WidgetByName(ctx context.Context, name string) (Widget, error) {
	return pgWidget(s.pool.QueryRow(ctx,
		`SELECT `+widgetCols+` FROM widgets WHERE name = $1 ORDER BY id LIMIT 1`, name))
}

func (s *pgStore) UpdateWidget(ctx context.Context, w Widget) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE widgets SET name = $1, description = $2, code = $3 WHERE id = $4`,
		w.Name, w.Description, w.Code, w.ID)
	if err != nil {
		return fmt.Errorf("update widget: %w", err)
	}
	return pgAffected(tag)
}

func (s *pgStore) DeleteWidget(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM widgets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete widget: %w", err)
	}
	return pgAffected(tag)
}

func (s *pgStore) ListWidgets(ctx context.Context) ([]Widget, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+widgetCols+` FROM widgets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list widgets: %w", err)
	}
	defer rows.Close()
	var out []Widget
	for rows.Next() {
		w, err := pgWidget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *pgStore) WidgetsByIDs(ctx context.Context, ids []int64) ([]Widget, error) {
	return widgetsByIDs(ctx, s, ids)
}

func (s *pgStore) Seed(ctx context.Context, ops []registry.Operation) ([]Widget, error) {
	return seed(ctx, s, ops)
}

func pgReport(row pgx.Row) (Report, error) {
	var r Report
	var id, ids, data string
	err := row.Scan(&id, &r.Owner, &r.Title, &r.CSVPath, &ids, &data, &r.Information, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return r, fmt.Errorf("report id %q: %w", id, err)
	}
	return r, decodeReportColumns(&r, ids, data)
}

func (s *pgStore) CreateReport(ctx context.Context, r *Report) error {
	prepareReport(r)
	ids, data, err := reportColumns(r)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (`+reportCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID.String(), r.Owner, r.Title, r.CSVPath, ids, data, r.Information, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *pgStore) GetReport(ctx context.Context, id uuid.UUID) (Report, error) {
	return pgReport(s.pool.QueryRow(ctx, `SELECT `+reportCols+` FROM reports WHERE id = $1`, id.String()))
}

func (s *pgStore) UpdateReport(ctx context.Context, r *Report) error {
	r.UpdatedAt = time.Now().UTC()
	ids, data, err := reportColumns(r)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET title = $1, csv_path = $2, widget_ids = $3, data = $4, information = $5, updated_at = $6 WHERE id = $7`,
		r.Title, r.CSVPath, ids, data, r.Information, r.UpdatedAt, r.ID.String())
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return pgAffected(tag)
}

func (s *pgStore) DeleteReport(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return pgAffected(tag)
}

func (s *pgStore) ListReports(ctx context.Context, owner string) ([]Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportCols+` FROM reports WHERE owner = $1 ORDER BY created_at DESC, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		r, err := pgReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func pgAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
