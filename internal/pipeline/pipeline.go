// Package pipeline runs the extract, clean and load stages end to end and
// records each run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/creature-etl/internal/clean"
	"github.com/JonMunkholm/creature-etl/internal/config"
	"github.com/JonMunkholm/creature-etl/internal/core"
	"github.com/JonMunkholm/creature-etl/internal/extract"
	"github.com/JonMunkholm/creature-etl/internal/load"
	"github.com/JonMunkholm/creature-etl/internal/metrics"
	"github.com/JonMunkholm/creature-etl/internal/store"
)

// SinkDB names the relational sink. File sinks come from the load registry.
const SinkDB = "db"

// Stage names used in results, logs and metrics.
const (
	StageExtract = "extract"
	StageClean   = "clean"
	StageLoad    = "load"
)

// Store is the relational side of a run.
type Store interface {
	ReplaceCreatures(ctx context.Context, recs []core.Creature) (int, error)
	RecordRun(ctx context.Context, run store.RunRecord, ops []core.ValidationWarning) error
}

// RunOptions override configuration for one run. Zero values keep the
// configured setting.
type RunOptions struct {
	InputPath string
	// Limit caps the rows read: 0 uses ETL_SAMPLE_SIZE, negative reads all.
	Limit       int
	Sinks       []string
	OutputDir   string
	Timestamped *bool
}

// SinkResult is the outcome of writing one sink.
type SinkResult struct {
	Sink  string `json:"sink"`
	Path  string `json:"path,omitempty"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// RunResult describes a finished run.
type RunResult struct {
	RunID      string                   `json:"run_id"`
	InputPath  string                   `json:"input_path"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Durations  map[string]time.Duration `json:"durations"`
	Status     string                   `json:"status"`
	Report     clean.Report             `json:"report"`
	Summary    clean.Summary            `json:"summary"`
	Load       load.LoadSummary         `json:"load"`
	Integrity  load.IntegrityResult     `json:"integrity"`
	Sinks      []SinkResult             `json:"sinks"`
	Records    []core.Creature          `json:"-"`
}

// Succeeded reports whether every sink was written.
func (r *RunResult) Succeeded() bool {
	for _, s := range r.Sinks {
		if s.Err != nil {
			return false
		}
	}
	return true
}

// Pipeline wires the stages to configuration and an optional store.
type Pipeline struct {
	cfg     config.ETLConfig
	cleaner *clean.Cleaner
	store   Store
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Pipeline. st may be nil when no database is configured.
func New(cfg *config.Config, st Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:     cfg.ETL,
		cleaner: clean.New(PolicyFromConfig(cfg.Cleaning), logger),
		store:   st,
		logger:  logger.With("component", "pipeline"),
		now:     time.Now,
	}
}

// PolicyFromConfig builds the cleaner policy from configuration.
func PolicyFromConfig(c config.CleaningConfig) clean.Policy {
	return clean.Policy{
		FillStrategy:          c.FillStrategy,
		VariantTokens:         c.VariantTokens,
		SecondaryTypeSentinel: c.SecondaryTypeSentinel,
		VariantFormSentinel:   c.VariantFormSentinel,
	}
}

// HasStore reports whether the relational sink is available.
func (p *Pipeline) HasStore() bool {
	return p.store != nil
}

// Info returns pre-flight information about path, or the configured input
// when path is empty.
func (p *Pipeline) Info(path string) (extract.Info, error) {
	if path == "" {
		path = p.cfg.InputPath
	}
	return extract.ReadInfo(path)
}

// Run executes one pipeline run. Structural failures (missing input,
// malformed file, missing columns, failed integrity) abort the run before
// anything is written and are returned as the error. Sink failures do not
// abort: each is reported in RunResult.Sinks and the run still returns a
// result with a nil error.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	opts = p.resolve(opts)

	if err := p.checkSinks(opts.Sinks); err != nil {
		return nil, err
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	res := &RunResult{
		RunID:     uuid.NewString(),
		InputPath: opts.InputPath,
		StartedAt: p.now(),
		Durations: make(map[string]time.Duration, 3),
		Sinks:     []SinkResult{},
	}
	ctx = core.ContextWithRunID(ctx, res.RunID)
	logger := p.logger.With("run_id", res.RunID)
	logger.Info("run started", "input", opts.InputPath, "limit", opts.Limit, "sinks", opts.Sinks)

	err := p.run(ctx, logger, opts, res)
	res.FinishedAt = p.now()
	res.Status = runStatus(res, err)

	p.record(ctx, logger, opts, res, err)
	metrics.CounterRuns.WithLabelValues(res.Status).Inc()

	if err != nil {
		logger.Error("run failed", "error", err, "duration", res.FinishedAt.Sub(res.StartedAt))
		return res, err
	}
	logger.Info("run completed",
		"status", res.Status,
		"records", len(res.Records),
		"duration", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, opts RunOptions, res *RunResult) error {
	// Extract
	start := time.Now()
	var (
		tbl core.Table
		err error
	)
	if opts.Limit > 0 {
		tbl, err = extract.ReadFirstN(opts.InputPath, opts.Limit)
	} else {
		tbl, err = extract.ReadAll(opts.InputPath)
	}
	p.stageDone(res, StageExtract, start)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	metrics.CounterRowsExtracted.Add(float64(tbl.Len()))
	logger.Info("extracted", "rows", tbl.Len(), "columns", len(tbl.Header))

	// Clean
	start = time.Now()
	cleaned, err := p.cleaner.Clean(tbl)
	p.stageDone(res, StageClean, start)
	if err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	res.Report = cleaned.Report
	res.Summary = cleaned.Summary
	res.Records = cleaned.Records
	metrics.ObserveOperations(operationCounts(cleaned.Report.Warnings))

	// Load
	start = time.Now()
	defer p.stageDone(res, StageLoad, start)

	res.Integrity = load.ValidateRecords(cleaned.Records)
	for _, w := range res.Integrity.Warnings {
		logger.Warn("integrity warning", "warning", w)
	}
	if err := res.Integrity.Err(); err != nil {
		return fmt.Errorf("load: %w", err)
	}

	loader := load.New(load.WithLogger(logger), load.WithClock(func() time.Time { return res.StartedAt }))
	res.Load = loader.Summary(cleaned.Records)

	for _, name := range opts.Sinks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("load: %w", err)
		}
		sr := p.writeSink(ctx, loader, name, opts, cleaned.Records)
		if sr.Err != nil {
			sr.Error = sr.Err.Error()
			logger.Error("sink failed", "sink", name, "error", sr.Err)
		}
		metrics.ObserveSink(name, sr.Rows, sr.Err)
		res.Sinks = append(res.Sinks, sr)
	}
	return nil
}

// writeSink writes one sink and never returns early on failure.
func (p *Pipeline) writeSink(ctx context.Context, l *load.Loader, name string, opts RunOptions, recs []core.Creature) SinkResult {
	sr := SinkResult{Sink: name}

	if name == SinkDB {
		sr.Path = "table"
		if p.store == nil {
			sr.Err = core.NewSinkError(SinkDB, "", core.ErrNoDatabase)
			return sr
		}
		n, err := p.store.ReplaceCreatures(ctx, recs)
		if err != nil {
			sr.Err = core.NewSinkError(SinkDB, "", err)
			return sr
		}
		sr.Rows = n
		return sr
	}

	sink, err := load.Lookup(name)
	if err != nil {
		sr.Err = core.NewSinkError(name, "", err)
		return sr
	}
	path := filepath.Join(opts.OutputDir, p.cfg.BaseName+sink.Ext)
	written, err := sink.Write(l, recs, path, load.WriteOptions{
		Timestamped: *opts.Timestamped,
		Sheet:       p.cfg.SheetName,
	})
	if err != nil {
		sr.Err = err
		return sr
	}
	sr.Path = written
	sr.Rows = len(recs)
	return sr
}

// record appends the run to the store's history. Failures are logged only.
func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, opts RunOptions, res *RunResult, runErr error) {
	if p.store == nil {
		return
	}
	rec := store.RunRecord{
		RunID:      res.RunID,
		InputPath:  res.InputPath,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		InputRows:  int64(res.Report.InputRows),
		OutputRows: int64(res.Report.OutputRows),
		Warnings:   int64(len(res.Report.Warnings)),
		Sinks:      strings.Join(opts.Sinks, ","),
		Status:     res.Status,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := p.store.RecordRun(context.WithoutCancel(ctx), rec, res.Report.Warnings); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}

func (p *Pipeline) resolve(opts RunOptions) RunOptions {
	if opts.InputPath == "" {
		opts.InputPath = p.cfg.InputPath
	}
	if opts.Limit == 0 {
		opts.Limit = p.cfg.SampleSize
	}
	if len(opts.Sinks) == 0 {
		opts.Sinks = p.cfg.Sinks
	}
	if opts.OutputDir == "" {
		opts.OutputDir = p.cfg.OutputDir
	}
	if opts.Timestamped == nil {
		ts := p.cfg.Timestamped
		opts.Timestamped = &ts
	}
	return opts
}

// checkSinks rejects unknown sink names before any work is done.
func (p *Pipeline) checkSinks(names []string) error {
	var errs []error
	for _, name := range names {
		if name == SinkDB {
			continue
		}
		if _, err := load.Lookup(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sinks returns every sink name a run accepts.
func Sinks() []string {
	names := append(load.Names(), SinkDB)
	slices.Sort(names)
	return names
}

func (p *Pipeline) stageDone(res *RunResult, stage string, start time.Time) {
	d := time.Since(start)
	res.Durations[stage] = d
	metrics.ObserveStage(stage, d)
}

func runStatus(res *RunResult, err error) string {
	if err != nil {
		return store.RunFailed
	}
	failed := 0
	for _, s := range res.Sinks {
		if s.Err != nil {
			failed++
		}
	}
	switch {
	case failed == 0:
		return store.RunSucceeded
	case failed == len(res.Sinks):
		return store.RunFailed
	default:
		return store.RunPartial
	}
}

func operationCounts(ws []core.ValidationWarning) map[string]int {
	counts := make(map[string]int)
	for _, w := range ws {
		counts[w.Operation]++
	}
	return counts
}
