// Package extract harvests purchase records from a lazily-loading page:
// it validates the page layout, reveals enough purchase containers, walks
// them into flat records, and lets a running extraction be cancelled
// without losing what was already collected.
package extract

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/purchase-export/page"
)

// Status is the outcome of a run.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusCancelled        Status = "cancelled"
	StatusValidationFailed Status = "validation_failed"
)

// Phase names the stage a run is in for progress reporting.
type Phase string

const (
	PhaseValidating Phase = "validating"
	PhaseLoading    Phase = "loading"
	PhaseProcessing Phase = "processing"
)

// Progress is reported while a run advances.
type Progress struct {
	RunID   string `json:"runId"`
	Phase   Phase  `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// Result is what a run hands back. Records collected before a cancellation
// are always kept.
type Result struct {
	RunID       string            `json:"runId"`
	Status      Status            `json:"status"`
	Requested   int               `json:"requested"`
	LoadedCount int               `json:"loadedCount"`
	Records     []Record          `json:"records"`
	Faults      []ContainerFault  `json:"faults,omitempty"`
	Validation  *ValidationResult `json:"validation,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
	FinishedAt  time.Time         `json:"finishedAt"`
}

// Stalled reports whether loading gave up before the requested count.
func (r *Result) Stalled() bool {
	return r.Status != StatusValidationFailed && r.LoadedCount < r.Requested
}

// Options configure an Orchestrator. Zero values select the defaults.
type Options struct {
	Loader LoaderConfig
	Pacing PacingConfig
	Jitter Jitter
	Logger *zap.SugaredLogger
	// MaxRequest caps the requested count; zero means no cap.
	MaxRequest int
	// Progress, when set, is called from the running goroutine.
	Progress func(Progress)
}

// Orchestrator runs validate → load → walk against one document. Only one
// run progresses at a time: starting a run aborts the previous one.
type Orchestrator struct {
	schema    *page.Schema
	validator *Validator
	loader    *Loader
	walker    *Walker
	logger    *zap.SugaredLogger
	opts      Options

	mu     sync.Mutex
	active *Token

	// exclusive is held for the loading and walking phases of a run.
	exclusive sync.Mutex
	// step serialises document access: validation, each reveal, each
	// container, and callers of WithDocument.
	step sync.Mutex
}

// New returns an orchestrator for doc described by schema.
func New(doc page.Document, schema *page.Schema, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Pacing == (PacingConfig{}) {
		opts.Pacing = DefaultPacingConfig()
	}
	o := &Orchestrator{
		schema:    schema,
		validator: NewValidator(doc, schema, opts.Logger),
		loader:    NewLoader(doc, schema.Container, opts.Loader, opts.Logger),
		walker:    NewWalker(doc, schema, opts.Pacing, opts.Jitter, opts.Logger),
		logger:    opts.Logger,
		opts:      opts,
	}
	o.loader.step = &o.step
	o.walker.step = &o.step
	return o
}

// Schema returns the schema the orchestrator reads the page with.
func (o *Orchestrator) Schema() *page.Schema {
	return o.schema
}

// Validate runs the structure validator on its own. It waits for a running
// extraction to finish its current container.
func (o *Orchestrator) Validate(ctx context.Context) *ValidationResult {
	o.step.Lock()
	defer o.step.Unlock()
	return o.validator.Validate(ctx)
}

// WithDocument runs fn while no extraction step touches the document.
func (o *Orchestrator) WithDocument(fn func() error) error {
	o.step.Lock()
	defer o.step.Unlock()
	return fn()
}

// Run extracts records from up to requested containers.
//
// Validation failures, stalls and cancellation are reported through the
// Result; the error return is reserved for document faults outside a
// single container and for an invalid requested count. Cancelling ctx
// cancels the run the same way Cancel does: the container being read is
// finished and kept.
func (o *Orchestrator) Run(ctx context.Context, requested int) (*Result, error) {
	if requested < 1 || (o.opts.MaxRequest > 0 && requested > o.opts.MaxRequest) {
		return nil, errors.Wrapf(ErrInvalidCount, "got %d", requested)
	}

	res := &Result{
		RunID:     uuid.NewString(),
		Requested: requested,
		StartedAt: time.Now(),
	}
	o.logger.Infow("Extraction requested", "run_id", res.RunID, "requested", requested)

	o.progress(res, PhaseValidating, 0, 0)
	tok := o.begin(ctx, res)
	if tok == nil {
		res.Status = StatusValidationFailed
		for _, e := range res.Validation.Errors {
			o.logger.Errorw("Page validation error", "run_id", res.RunID, "field", e.Field, "message", e.Message)
		}
		return o.finish(res), nil
	}
	defer o.release(tok)
	stop := context.AfterFunc(ctx, func() { tok.Abort() })
	defer stop()

	o.exclusive.Lock()
	defer o.exclusive.Unlock()

	o.progress(res, PhaseLoading, 0, requested)
	loaded, err := o.loader.LoadUntil(ctx, requested, tok)
	res.LoadedCount = loaded
	if err != nil {
		if o.cancelled(ctx, tok, err) {
			return o.cancel(res), nil
		}
		return nil, errors.Wrap(err, "failed to load purchases")
	}
	if loaded < requested {
		o.logger.Infof("Loaded %d of %d requested purchases", loaded, requested)
	}

	n := min(loaded, requested)
	faults, err := o.walker.Walk(ctx, n, tok, func(i int, records []Record) {
		res.Records = append(res.Records, records...)
		o.progress(res, PhaseProcessing, i+1, n)
	})
	res.Faults = faults
	if err != nil {
		if o.cancelled(ctx, tok, err) {
			return o.cancel(res), nil
		}
		return nil, errors.Wrap(err, "failed to extract purchases")
	}

	res.Status = StatusSuccess
	o.logger.Infow("Extraction completed",
		"run_id", res.RunID,
		"records", len(res.Records),
		"containers", n,
		"faults", len(res.Faults))
	return o.finish(res), nil
}

// Cancel aborts the active run, if any. It reports whether a live run was
// aborted by this call.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	tok := o.active
	o.mu.Unlock()
	if tok == nil {
		return false
	}
	return tok.Abort()
}

// Active reports whether a run currently holds a live token.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil && !o.active.Aborted()
}

// begin validates the page and, when it is valid, supersedes the active
// run. Both happen under step, so the previous run observes its abort
// before it can start another container.
func (o *Orchestrator) begin(ctx context.Context, res *Result) *Token {
	o.step.Lock()
	defer o.step.Unlock()
	res.Validation = o.validator.Validate(ctx)
	if !res.Validation.IsValid {
		return nil
	}
	return o.supersede()
}

// supersede installs a fresh token, aborting the previous run's token.
func (o *Orchestrator) supersede() *Token {
	tok := NewToken()
	o.mu.Lock()
	prev := o.active
	o.active = tok
	o.mu.Unlock()

	if prev != nil && prev.Abort() {
		o.logger.Info("Aborting previous extraction in favour of a new one")
	}
	return tok
}

func (o *Orchestrator) release(tok *Token) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == tok {
		o.active = nil
	}
}

func (o *Orchestrator) cancelled(ctx context.Context, tok *Token, err error) bool {
	return errors.Is(err, ErrCancelled) || tok.Aborted() || ctx.Err() != nil
}

func (o *Orchestrator) cancel(res *Result) *Result {
	res.Status = StatusCancelled
	o.logger.Infow("Extraction cancelled",
		"run_id", res.RunID,
		"salvaged_records", len(res.Records),
		"loaded", res.LoadedCount)
	return o.finish(res)
}

func (o *Orchestrator) finish(res *Result) *Result {
	res.FinishedAt = time.Now()
	return res
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

func (o *Orchestrator) progress(res *Result, phase Phase, current, total int) {
	if o.opts.Progress == nil {
		return
	}
	o.opts.Progress(Progress{RunID: res.RunID, Phase: phase, Current: current, Total: total})
}
