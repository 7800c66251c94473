package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/wdm0006/nimbus/internal/filestore"
	"github.com/wdm0006/nimbus/internal/store"
	"github.com/wdm0006/nimbus/pkg/forecast"
	"github.com/wdm0006/nimbus/pkg/frame"
	"github.com/wdm0006/nimbus/pkg/pipeline"
	"github.com/wdm0006/nimbus/pkg/profile"
)

// RunRecorder counts pipeline runs; *metrics.Metrics is one.
type RunRecorder interface {
	RecordRun(mode string, failed bool)
}

type ReportOptions struct {
	Store           store.Store
	Files           *filestore.Store
	Executor        *pipeline.Executor
	Runs            RunRecorder
	ForecastHorizon int
	Logger          *slog.Logger
}

type Reports struct {
	store   store.Store
	files   *filestore.Store
	exec    *pipeline.Executor
	runs    RunRecorder
	horizon int
	log     *slog.Logger
}

func NewReports(opts ReportOptions) *Reports {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Reports{
		store:   opts.Store,
		files:   opts.Files,
		exec:    opts.Executor,
		runs:    opts.Runs,
		horizon: opts.ForecastHorizon,
		log:     log,
	}
}

// Upload is a dataset file sent by a user.
type Upload struct {
	Filename string
	Body     io.Reader
}

type CreateReport struct {
	Owner       string
	Title       string
	Information string
	WidgetIDs   []int64
	CSV         *Upload
}

// Create stores the upload, runs the pipeline over it and persists the
// report with the run's summary. Without an upload the summary still lists
// every widget.
func (s *Reports) Create(ctx context.Context, in CreateReport) (store.Report, error) {
	if strings.TrimSpace(in.Title) == "" {
		return store.Report{}, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	ops, err := s.operations(ctx, in.WidgetIDs)
	if err != nil {
		return store.Report{}, err
	}
	r := store.Report{
		Owner:       in.Owner,
		Title:       in.Title,
		Information: in.Information,
		WidgetIDs:   in.WidgetIDs,
	}
	if in.CSV != nil {
		if r.CSVPath, err = s.files.Save(in.CSV.Body, in.CSV.Filename); err != nil {
			return store.Report{}, err
		}
	}
	if r.Data, err = s.generate(ctx, ops, r.CSVPath); err != nil {
		return store.Report{}, err
	}
	if err := s.store.CreateReport(ctx, &r); err != nil {
		return store.Report{}, err
	}
	s.log.Info("report created", "report", r.ID, "owner", r.Owner, "widgets", len(ops))
	return r, nil
}

// EditReport changes a report. Nil fields are left as they are; WidgetIDs
// replaces the whole ordered list when non-nil.
type EditReport struct {
	ID          uuid.UUID
	Owner       string
	Title       *string
	Information *string
	WidgetIDs   []int64
	CSV         *Upload
}

// Edit applies the changes, re-runs the full pipeline and replaces the
// summary.
func (s *Reports) Edit(ctx context.Context, in EditReport) (store.Report, error) {
	r, err := s.owned(ctx, in.ID, in.Owner)
	if err != nil {
		return store.Report{}, err
	}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return store.Report{}, fmt.Errorf("%w: title is required", ErrInvalid)
		}
		r.Title = *in.Title
	}
	if in.Information != nil {
		r.Information = *in.Information
	}
	if in.WidgetIDs != nil {
		r.WidgetIDs = in.WidgetIDs
	}
	ops, err := s.operations(ctx, r.WidgetIDs)
	if err != nil {
		return store.Report{}, err
	}
	if in.CSV != nil {
		if r.CSVPath, err = s.files.Save(in.CSV.Body, in.CSV.Filename); err != nil {
			return store.Report{}, err
		}
	}
	if r.Data, err = s.generate(ctx, ops, r.CSVPath); err != nil {
		return store.Report{}, err
	}
	if err := s.store.UpdateReport(ctx, &r); err != nil {
		return store.Report{}, err
	}
	return r, nil
}

// generate runs ops over the file at path, if any, and returns the summary.
func (s *Reports) generate(ctx context.Context, ops []pipeline.Operation, path string) (pipeline.Summary, error) {
	if path == "" {
		return pipeline.SummaryOf(ops), nil
	}
	f, err := LoadTable(path, s.log)
	if err != nil {
		return pipeline.Summary{}, err
	}
	_, sum, outcomes := s.exec.RunDetailed(ctx, ops, f)
	s.recordRun("run", false)
	for _, o := range outcomes {
		if o.Err != nil {
			s.log.Info("widget skipped", "operation", o.Operation, "err", o.Err)
		}
	}
	return sum, nil
}

func (s *Reports) Get(ctx context.Context, id uuid.UUID) (store.Report, error) {
	return s.store.GetReport(ctx, id)
}

func (s *Reports) List(ctx context.Context, owner string) ([]store.Report, error) {
	return s.store.ListReports(ctx, owner)
}

// Delete removes the report. The uploaded file stays: other reports may
// share it.
func (s *Reports) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	if _, err := s.owned(ctx, id, owner); err != nil {
		return err
	}
	return s.store.DeleteReport(ctx, id)
}

// Preview traces widgetIDs over the report's file. A report without a file
// previews as no rows; an unreadable file is reported in the preview.
func (s *Reports) Preview(ctx context.Context, id uuid.UUID, widgetIDs []int64) (pipeline.Preview, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return pipeline.Preview{}, err
	}
	ops, err := s.operations(ctx, widgetIDs)
	if err != nil {
		return pipeline.Preview{}, err
	}
	if r.CSVPath == "" {
		return pipeline.Preview{}, nil
	}
	f, err := LoadTable(r.CSVPath, s.log)
	if err != nil {
		s.log.Warn("preview load failed", "report", id, "err", err)
		return pipeline.Preview{Error: "Error loading CSV", Err: err}, nil
	}
	p := s.exec.Trace(ctx, ops, f)
	s.recordRun("trace", p.Failed())
	return p, nil
}

// Final runs the report's pipeline and returns the final table. A report
// without a file has no data.
func (s *Reports) Final(ctx context.Context, id uuid.UUID) (store.Report, *frame.Frame, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return r, nil, err
	}
	if r.CSVPath == "" {
		return r, nil, ErrNoData
	}
	ops, err := s.operations(ctx, r.WidgetIDs)
	if err != nil {
		return r, nil, err
	}
	f, err := LoadTable(r.CSVPath, s.log)
	if err != nil {
		return r, nil, err
	}
	out, _ := s.exec.Run(ctx, ops, f)
	s.recordRun("run", false)
	return r, out, nil
}

// Download writes the final table of a report in the given format and
// returns the suggested file name. ErrNoData is returned before anything is
// written.
func (s *Reports) Download(ctx context.Context, id uuid.UUID, format Format, w io.Writer) (string, error) {
	r, f, err := s.Final(ctx, id)
	if err != nil {
		return "", err
	}
	if err := Export(w, f, format); err != nil {
		return "", err
	}
	return format.Filename(r.Title), nil
}

// Forecast predicts the report's date/value series. horizon <= 0 uses the
// configured default.
func (s *Reports) Forecast(ctx context.Context, id uuid.UUID, horizon int) (forecast.Result, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.CSVPath == "" {
		return nil, ErrNoData
	}
	f, err := LoadTable(r.CSVPath, s.log)
	if err != nil {
		return nil, err
	}
	if horizon <= 0 {
		horizon = s.horizon
	}
	return forecast.Forecast(f, horizon)
}

// Inspection is what an upload looks like after loading.
type Inspection struct {
	Path    string         `json:"path"`
	Profile profile.Report `json:"profile"`
	Head    []frame.Record `json:"head"`
}

// HeadRows is how many rows Inspect returns.
const HeadRows = 5

// Inspect stores an upload and profiles it.
func (s *Reports) Inspect(ctx context.Context, up Upload) (Inspection, error) {
	path, err := s.files.Save(up.Body, up.Filename)
	if err != nil {
		return Inspection{}, err
	}
	f, err := LoadTable(path, s.log)
	if err != nil {
		return Inspection{}, err
	}
	n := min(HeadRows, f.Rows())
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return Inspection{
		Path:    path,
		Profile: profile.Of(f, profile.DefaultTopK),
		Head:    f.Take(idx).Records(),
	}, nil
}

func (s *Reports) operations(ctx context.Context, ids []int64) ([]pipeline.Operation, error) {
	ws, err := s.store.WidgetsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return store.Operations(ws), nil
}

// owned fetches a report and checks that owner may change it.
func (s *Reports) owned(ctx context.Context, id uuid.UUID, owner string) (store.Report, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return r, err
	}
	if r.Owner != owner {
		return r, fmt.Errorf("report %s: %w", id, ErrForbidden)
	}
	return r, nil
}

func (s *Reports) recordRun(mode string, failed bool) {
	if s.runs != nil {
		s.runs.RecordRun(mode, failed)
	}
}

// IsNotFound reports whether err means a missing report or widget.
func IsNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
