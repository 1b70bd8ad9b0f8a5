// Package engine drives one build invocation: it assembles the current
// build description from the project manifest, partitions entries into
// stale and fresh, dispatches stale entries to the template processor
// sequentially, and persists the resulting description for the next run.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/tplgen/internal/buildstate"
	"git.home.luguber.info/inful/tplgen/internal/config"
	"git.home.luguber.info/inful/tplgen/internal/detect"
	fnderrors "git.home.luguber.info/inful/tplgen/internal/foundation/errors"
	"git.home.luguber.info/inful/tplgen/internal/metrics"
	"git.home.luguber.info/inful/tplgen/internal/observability"
	"git.home.luguber.info/inful/tplgen/internal/outpath"
	"git.home.luguber.info/inful/tplgen/internal/processor"
)

// Default output extensions when a template declares no explicit name.
const (
	DefaultTransformExtension  = ".txt"
	DefaultPreprocessExtension = ".go"
)

// OutputDescriptor names one build output for registration by the host,
// emitted for every entry whether or not it was reprocessed this run.
type OutputDescriptor struct {
	OutputPath   string
	InputPath    string
	Dependencies []string
}

// EntryError is a build error scoped to a single entry.
type EntryError struct {
	InputFile string
	Err       error
}

// Result summarizes one invocation.
type Result struct {
	BuildID      string
	Transformed  []OutputDescriptor
	Preprocessed []OutputDescriptor
	Stale        int
	Fresh        int
	Errors       []EntryError
	Failed       bool
}

// Engine orchestrates builds. Stale entries are processed sequentially:
// the processor is not assumed to be reentrant.
type Engine struct {
	proc     processor.Processor
	store    *buildstate.Store
	detector *detect.Detector
	recorder metrics.Recorder
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets a custom build-state store.
func WithStore(store *buildstate.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithRecorder sets a metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = rec }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates a build engine around a template processor.
func New(proc processor.Processor, opts ...Option) *Engine {
	e := &Engine{
		proc:     proc,
		store:    buildstate.NewStore(),
		detector: detect.NewDetector(),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build runs one invocation against a validated project. Per-entry
// failures are collected in the result, not returned: a failing entry does
// not block unrelated entries, but marks the invocation failed.
func (e *Engine) Build(ctx context.Context, project *config.Project) (*Result, error) {
	start := time.Now()
	result := &Result{BuildID: uuid.NewString()}
	ctx = observability.WithBuildID(ctx, result.BuildID)

	cur, globals, assemblyErrors := e.assemble(project)
	result.Errors = append(result.Errors, assemblyErrors...)

	statePath := project.StatePath()
	prev := e.store.Load(statePath)
	prevIndex := buildstate.EntryIndex(prev)

	partition := e.partition(ctx, prev, cur, project.OnlyOutOfDate)
	result.Stale = partition.StaleCount()
	result.Fresh = partition.FreshCount()
	e.recorder.SetPartitionSizes(result.Stale, result.Fresh)

	observability.InfoContext(ctx, "Starting template build",
		slog.Int("stale", result.Stale),
		slog.Int("fresh", result.Fresh))

	processCtx := observability.WithStage(ctx, "process")
	finalTransform := e.processEntries(processCtx, metrics.KindTransform, outpath.ModeTransform,
		partition.StaleTransform, partition.FreshTransform, cur.TransformEntries, globals, prevIndex, result)
	finalPreprocess := e.processEntries(processCtx, metrics.KindPreprocess, outpath.ModePreprocess,
		partition.StalePreprocess, partition.FreshPreprocess, cur.PreprocessEntries, globals, prevIndex, result)

	cur.TransformEntries = finalTransform
	cur.PreprocessEntries = finalPreprocess

	// Save failure only costs the next run a cold start; the store has
	// already warned and removed the partial file.
	_ = e.store.Save(cur, statePath)

	result.Transformed = descriptors(finalTransform)
	result.Preprocessed = descriptors(finalPreprocess)
	result.Failed = len(result.Errors) > 0

	outcome := "success"
	if result.Failed {
		outcome = "failed"
	}
	e.recorder.IncBuildOutcome(outcome)
	e.recorder.ObserveBuildDuration(time.Since(start))

	observability.InfoContext(ctx, "Template build finished",
		slog.String("outcome", outcome),
		slog.Int("processed", result.Stale),
		slog.Int("errors", len(result.Errors)),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

// partition chooses between incremental detection and reprocessing
// everything. Without the only-out-of-date flag every declared entry is
// stale on every run.
func (e *Engine) partition(ctx context.Context, prev, cur *buildstate.BuildDescription, onlyOutOfDate bool) detect.Partition {
	if onlyOutOfDate {
		return e.detector.Partition(prev, cur)
	}
	observability.DebugContext(ctx, "Incremental mode disabled, reprocessing all entries")
	var p detect.Partition
	p.StaleTransform = append(p.StaleTransform, cur.TransformEntries...)
	p.StalePreprocess = append(p.StalePreprocess, cur.PreprocessEntries...)
	return p
}

// processEntries dispatches stale entries to the processor and merges them
// with fresh ones back into declaration order. Failed entries keep their
// last-known dependencies so a future global change can still reprocess
// them.
func (e *Engine) processEntries(ctx context.Context, kind metrics.EntryKind, mode outpath.Mode,
	stale, fresh, declared []buildstate.TemplateEntry, globals processor.Globals,
	prevIndex map[string]buildstate.TemplateEntry, result *Result) []buildstate.TemplateEntry {

	final := make(map[string]buildstate.TemplateEntry, len(declared))
	for _, entry := range fresh {
		final[entry.Key()] = entry
		e.recorder.IncEntryResult(kind, metrics.ResultFresh)
	}

	for _, entry := range stale {
		entryCtx := observability.WithEntry(ctx, entry.InputFile)
		res, err := e.proc.Process(entryCtx, processor.Request{
			InputFile:  entry.InputFile,
			OutputFile: entry.OutputFile,
			Mode:       mode,
			Namespace:  entry.Namespace,
			Globals:    globals,
		})
		if err != nil {
			e.recorder.IncEntryResult(kind, metrics.ResultFailed)
			result.Errors = append(result.Errors, EntryError{InputFile: entry.InputFile, Err: err})
			e.logFailure(entryCtx, entry, err)

			if prevEntry, ok := prevIndex[entry.Key()]; ok {
				entry.Dependencies = prevEntry.Dependencies
			}
			final[entry.Key()] = entry
			continue
		}

		e.recorder.IncEntryResult(kind, metrics.ResultProcessed)
		entry.Dependencies = res.Dependencies
		final[entry.Key()] = entry
		observability.DebugContext(entryCtx, "Entry processed",
			slog.String("output", entry.OutputFile),
			slog.Int("dependencies", len(res.Dependencies)))
	}

	ordered := make([]buildstate.TemplateEntry, 0, len(declared))
	for _, entry := range declared {
		if done, ok := final[entry.Key()]; ok {
			ordered = append(ordered, done)
		}
	}
	return ordered
}

func (e *Engine) logFailure(ctx context.Context, entry buildstate.TemplateEntry, err error) {
	observability.ErrorContext(ctx, "Template processing failed",
		slog.String("input", entry.InputFile),
		slog.String("error", err.Error()))

	ce := fnderrors.ProcessingError("template processing failed").
		WithCause(err).
		WithContext("input", entry.InputFile).
		WithContext("output", entry.OutputFile).
		Build()
	observability.DebugContext(ctx, "Template processing diagnostic",
		slog.String("detail", ce.Detail()))
}

func descriptors(entries []buildstate.TemplateEntry) []OutputDescriptor {
	out := make([]OutputDescriptor, len(entries))
	for i, entry := range entries {
		out[i] = OutputDescriptor{
			OutputPath:   entry.OutputFile,
			InputPath:    entry.InputFile,
			Dependencies: entry.Dependencies,
		}
	}
	return out
}
