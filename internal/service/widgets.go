package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wdm0006/nimbus/internal/generate"
	"github.com/wdm0006/nimbus/internal/store"
	"github.com/wdm0006/nimbus/pkg/registry"
)

type WidgetOptions struct {
	Store     store.Store
	Generator generate.Generator
	Logger    *slog.Logger
}

type Widgets struct {
	store store.Store
	gen   generate.Generator
	log   *slog.Logger
}

func NewWidgets(opts WidgetOptions) *Widgets {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Widgets{store: opts.Store, gen: opts.Generator, log: log}
}

// Seed installs the default widget catalog; existing names are kept.
func (s *Widgets) Seed(ctx context.Context) ([]store.Widget, error) {
	return s.store.Seed(ctx, registry.Defaults)
}

func (s *Widgets) List(ctx context.Context) ([]store.Widget, error) {
	return s.store.ListWidgets(ctx)
}

func (s *Widgets) Get(ctx context.Context, id int64) (store.Widget, error) {
	return s.store.GetWidget(ctx, id)
}

// Create stores a manually written widget.
func (s *Widgets) Create(ctx context.Context, owner, name, description, code string) (store.Widget, error) {
	if strings.TrimSpace(name) == "" {
		return store.Widget{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	w := store.Widget{Name: name, Description: description, Code: code, Owner: owner}
	if err := s.store.CreateWidget(ctx, &w); err != nil {
		return store.Widget{}, err
	}
	return w, nil
}

// Generate asks the text generator for code matching description and stores
// the result unvalidated; problems surface when the widget first runs.
func (s *Widgets) Generate(ctx context.Context, owner, name, description string) (store.Widget, error) {
	if s.gen == nil {
		return store.Widget{}, fmt.Errorf("%w: no generator configured", ErrInvalid)
	}
	if strings.TrimSpace(description) == "" {
		return store.Widget{}, fmt.Errorf("%w: description is required", ErrInvalid)
	}
	code, err := s.gen.Generate(ctx, description)
	if err != nil {
		return store.Widget{}, fmt.Errorf("generate widget: %w", err)
	}
	s.log.Info("widget code generated", "name", name, "bytes", len(code))
	return s.Create(ctx, owner, name, description, code)
}

// Edit renames or re-describes a widget. Only its creator may do so.
func (s *Widgets) Edit(ctx context.Context, owner string, id int64, name, description string) (store.Widget, error) {
	w, err := s.owned(ctx, owner, id)
	if err != nil {
		return store.Widget{}, err
	}
	if strings.TrimSpace(name) == "" {
		return store.Widget{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	w.Name, w.Description = name, description
	if err := s.store.UpdateWidget(ctx, w); err != nil {
		return store.Widget{}, err
	}
	return w, nil
}

// Delete removes a widget created by owner. Seeded widgets cannot be deleted.
func (s *Widgets) Delete(ctx context.Context, owner string, id int64) error {
	if _, err := s.owned(ctx, owner, id); err != nil {
		return err
	}
	return s.store.DeleteWidget(ctx, id)
}

func (s *Widgets) owned(ctx context.Context, owner string, id int64) (store.Widget, error) {
	w, err := s.store.GetWidget(ctx, id)
	if err != nil {
		return w, err
	}
	if w.Builtin {
		return w, fmt.Errorf("widget %d: %w", id, ErrBuiltin)
	}
	if w.Owner != owner {
		return w, fmt.Errorf("widget %d: %w", id, ErrForbidden)
	}
	return w, nil
}
