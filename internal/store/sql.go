package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wdm0006/nimbus/pkg/registry"

	_ "github.com/mattn/go-sqlite3" // "sqlite3", needs cgo
	_ "modernc.org/sqlite"          // "sqlite", pure Go
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS widgets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	code TEXT NOT NULL DEFAULT '',
	owner TEXT NOT NULL DEFAULT '',
	builtin INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS widgets_name ON widgets (name);
CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	title TEXT NOT NULL,
	csv_path TEXT NOT NULL DEFAULT '',
	widget_ids TEXT NOT NULL DEFAULT '[]',
	data TEXT NOT NULL DEFAULT '{}',
	information TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS reports_owner ON reports (owner);
`

// timestamps are stored as fixed-width UTC text so they sort; the two SQLite
// drivers disagree on native time handling.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func stamp(t time.Time) string { return t.UTC().Format(timeLayout) }

// sqlStore is the database/sql backend for both SQLite drivers.
type sqlStore struct {
	db *sql.DB
}

func openSQL(ctx context.Context, driver, dsn string) (*sqlStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	// one writer at a time avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: bootstrap: %w", driver, err)
	}
	return &sqlStore{db: db}, nil
}

func (s *sqlStore) Close() error { return s.db.Close() }

const widgetCols = `id, name, description, code, owner, builtin, created_at`

func scanWidget(row interface{ Scan(...any) error }) (Widget, error) {
	var w Widget
	var created string
	if err := row.Scan(&w.ID, &w.Name, &w.Description, &w.Code, &w.Owner, &w.Builtin, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return w, ErrNotFound
		}
		return w, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return w, fmt.Errorf("widget %d created_at: %w", w.ID, err)
	}
	w.CreatedAt = t
	return w, nil
}

func (s *sqlStore) CreateWidget(ctx context.Context, w *Widget) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO widgets (name, description, code, owner, builtin, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		w.Name, w.Description, w.Code, w.Owner, w.Builtin, stamp(w.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert widget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert widget: %w", err)
	}
	w.ID = id
	return nil
}

func (s *sqlStore) GetWidget(ctx context.Context, id int64) (Widget, error) {
	return scanWidget(s.db.QueryRowContext(ctx, `SELECT `+widgetCols+` FROM widgets WHERE id = ?`, id))
}

func (s *sqlStore) WidgetByName(ctx context.Context, name string) (Widget, error) {
	return scanWidget(s.db.QueryRowContext(ctx,
		`SELECT `+widgetCols+` FROM widgets WHERE name = ? ORDER BY id LIMIT 1`, name))
}

func (s *sqlStore) UpdateWidget(ctx context.Context, w Widget) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE widgets SET name = ?, description = ?, code = ? WHERE id = ?`,
		w.Name, w.Description, w.Code, w.ID)
	if err != nil {
		return fmt.Errorf("update widget: %w", err)
	}
	return affected(res)
}

func (s *sqlStore) DeleteWidget(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM widgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete widget: %w", err)
	}
	return affected(res)
}

func (s *sqlStore) ListWidgets(ctx context.Context) ([]Widget, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+widgetCols+` FROM widgets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list widgets: %w", err)
	}
	defer rows.Close()
	var out []Widget
	for rows.Next() {
		w, err := scanWidget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *sqlStore) WidgetsByIDs(ctx context.Context, ids []int64) ([]Widget, error) {
	return widgetsByIDs(ctx, s, ids)
}

func (s *sqlStore) Seed(ctx context.Context, ops []registry.Operation) ([]Widget, error) {
	return seed(ctx, s, ops)
}

const reportCols = `id, owner, title, csv_path, widget_ids, data, information, created_at, updated_at`

func scanReport(row interface{ Scan(...any) error }) (Report, error) {
	var r Report
	var id, ids, data, created, updated string
	if err := row.Scan(&id, &r.Owner, &r.Title, &r.CSVPath, &ids, &data, &r.Information, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, ErrNotFound
		}
		return r, err
	}
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return r, fmt.Errorf("report id %q: %w", id, err)
	}
	if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return r, fmt.Errorf("report %s created_at: %w", id, err)
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return r, fmt.Errorf("report %s updated_at: %w", id, err)
	}
	return r, decodeReportColumns(&r, ids, data)
}

func (s *sqlStore) CreateReport(ctx context.Context, r *Report) error {
	prepareReport(r)
	ids, data, err := reportColumns(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (`+reportCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Owner, r.Title, r.CSVPath, ids, data, r.Information,
		stamp(r.CreatedAt), stamp(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *sqlStore) GetReport(ctx context.Context, id uuid.UUID) (Report, error) {
	return scanReport(s.db.QueryRowContext(ctx, `SELECT `+reportCols+` FROM reports WHERE id = ?`, id.String()))
}

func (s *sqlStore) UpdateReport(ctx context.Context, r *Report) error {
	r.UpdatedAt = time.Now().UTC()
	ids, data, err := reportColumns(r)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET title = ?, csv_path = ?, widget_ids = ?, data = ?, information = ?, updated_at = ? WHERE id = ?`,
		r.Title, r.CSVPath, ids, data, r.Information, stamp(r.UpdatedAt), r.ID.String())
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return affected(res)
}

func (s *sqlStore) DeleteReport(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return affected(res)
}

func (s *sqlStore) ListReports(ctx context.Context, owner string) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportCols+` FROM reports WHERE owner = ? ORDER BY created_at DESC, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
