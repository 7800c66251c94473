// Package store persists widgets and reports. Two backends share one
// contract: database/sql over SQLite (modernc "sqlite" or cgo "sqlite3") and
// Postgres through pgxpool.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wdm0006/nimbus/pkg/pipeline"
	"github.com/wdm0006/nimbus/pkg/registry"
)

var ErrNotFound = errors.New("not found")

// Widget is a stored operation. Builtin marks the seeded catalog entries.
type Widget struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	Owner       string    `json:"owner,omitempty"`
	Builtin     bool      `json:"builtin"`
	CreatedAt   time.Time `json:"created_at"`
}

// Operation is the pipeline view of w.
func (w Widget) Operation() registry.Operation {
	return registry.Operation{ID: w.ID, Name: w.Name, Description: w.Description, Code: w.Code}
}

// Operations converts widgets in order.
func Operations(ws []Widget) []registry.Operation {
	ops := make([]registry.Operation, len(ws))
	for i, w := range ws {
		ops[i] = w.Operation()
	}
	return ops
}

// Report is one applied pipeline. Data is the summary of the last run.
type Report struct {
	ID          uuid.UUID        `json:"id"`
	Owner       string           `json:"owner"`
	Title       string           `json:"title"`
	CSVPath     string           `json:"csv_path,omitempty"`
	WidgetIDs   []int64          `json:"widget_ids"`
	Data        pipeline.Summary `json:"data"`
	Information string           `json:"information,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type Store interface {
	CreateWidget(ctx context.Context, w *Widget) error
	GetWidget(ctx context.Context, id int64) (Widget, error)
	WidgetByName(ctx context.Context, name string) (Widget, error)
	UpdateWidget(ctx context.Context, w Widget) error
	DeleteWidget(ctx context.Context, id int64) error
	ListWidgets(ctx context.Context) ([]Widget, error)
	// WidgetsByIDs returns the widgets in the order of ids. Duplicates are
	// repeated; an unknown id fails with ErrNotFound.
	WidgetsByIDs(ctx context.Context, ids []int64) ([]Widget, error)
	// Seed creates each operation as a builtin widget unless a widget with
	// the same name exists, and returns the widgets in seed order.
	Seed(ctx context.Context, ops []registry.Operation) ([]Widget, error)

	CreateReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, id uuid.UUID) (Report, error)
	UpdateReport(ctx context.Context, r *Report) error
	DeleteReport(ctx context.Context, id uuid.UUID) error
	ListReports(ctx context.Context, owner string) ([]Report, error)

	Close() error
}

// Config selects a backend.
type Config struct {
	Driver string // sqlite | sqlite3 | postgres
	DSN    string
}

// Open connects to the configured backend and creates missing tables.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("store: DSN must not be empty")
	}
	switch cfg.Driver {
	case "", "sqlite", "sqlite3":
		driver := cfg.Driver
		if driver == "" {
			driver = "sqlite"
		}
		if err := ensureDir(cfg.DSN); err != nil {
			return nil, err
		}
		return openSQL(ctx, driver, cfg.DSN)
	case "postgres", "pgx":
		return openPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}
	return nil
}

type widgetFinder interface {
	GetWidget(ctx context.Context, id int64) (Widget, error)
	WidgetByName(ctx context.Context, name string) (Widget, error)
	CreateWidget(ctx context.Context, w *Widget) error
}

func widgetsByIDs(ctx context.Context, s widgetFinder, ids []int64) ([]Widget, error) {
	out := make([]Widget, 0, len(ids))
	seen := make(map[int64]Widget, len(ids))
	for _, id := range ids {
		w, ok := seen[id]
		if !ok {
			var err error
			if w, err = s.GetWidget(ctx, id); err != nil {
				return nil, fmt.Errorf("widget %d: %w", id, err)
			}
			seen[id] = w
		}
		out = append(out, w)
	}
	return out, nil
}

func seed(ctx context.Context, s widgetFinder, ops []registry.Operation) ([]Widget, error) {
	out := make([]Widget, 0, len(ops))
	for _, op := range ops {
		w, err := s.WidgetByName(ctx, op.Name)
		if errors.Is(err, ErrNotFound) {
			w = Widget{Name: op.Name, Description: op.Description, Code: op.Code, Builtin: true}
			err = s.CreateWidget(ctx, &w)
		}
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", op.Name, err)
		}
		out = append(out, w)
	}
	return out, nil
}

// prepareReport fills identity and timestamps before an insert.
func prepareReport(r *Report) {
	now := time.Now().UTC()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt
	if r.WidgetIDs == nil {
		r.WidgetIDs = []int64{}
	}
}

// reportColumns encodes the list-valued fields. The summary is kept as text
// so its key order survives.
func reportColumns(r *Report) (ids, data string, err error) {
	b, err := json.Marshal(r.WidgetIDs)
	if err != nil {
		return "", "", fmt.Errorf("encode widget ids: %w", err)
	}
	d, err := json.Marshal(r.Data)
	if err != nil {
		return "", "", fmt.Errorf("encode summary: %w", err)
	}
	return string(b), string(d), nil
}

func decodeReportColumns(r *Report, ids, data string) error {
	r.WidgetIDs = []int64{}
	if ids != "" {
		if err := json.Unmarshal([]byte(ids), &r.WidgetIDs); err != nil {
			return fmt.Errorf("decode widget ids: %w", err)
		}
	}
	r.Data = pipeline.Summary{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &r.Data); err != nil {
			return fmt.Errorf("decode summary: %w", err)
		}
	}
	return nil
}
