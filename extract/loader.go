package extract

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/purchase-export/page"
)

// Loader drives a lazily-loading page until enough containers exist.
//
// Pages give no "done loading" signal, so progress is inferred by polling
// the container count after each reveal. A run of StallThreshold reveals
// without growth ends loading; partial counts are a normal outcome.
type Loader struct {
	doc       page.Document
	container string
	cfg       LoaderConfig
	logger    *zap.SugaredLogger

	// step is held for each document interaction and the wait after it.
	step sync.Locker
}

// NewLoader returns a loader counting containers matched by selector.
func NewLoader(doc page.Document, selector string, cfg LoaderConfig, logger *zap.SugaredLogger) *Loader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Loader{
		doc:       doc,
		container: selector,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		step:      nopLocker{},
	}
}

// LoadUntil reveals containers until at least target exist, loading
// stalls, or tok is aborted. It returns the number of containers present.
// Cancellation is reported as ErrCancelled.
func (l *Loader) LoadUntil(ctx context.Context, target int, tok *Token) (int, error) {
	l.step.Lock()
	current, err := l.count(ctx)
	if err != nil || current >= target {
		l.step.Unlock()
		return current, err
	}
	origin, err := l.doc.ScrollOffset(ctx)
	l.step.Unlock()
	if err != nil {
		l.logger.Warnw("Could not read scroll position", "error", err)
	}

	var (
		triggered    bool
		stallCount   int
		lastProgress = l.cfg.Now()
		valve        = l.cfg.TriggerTimeout * time.Duration(l.cfg.StallThreshold)
	)

	for current < target {
		if tok.Aborted() {
			return current, ErrCancelled
		}

		previous := current
		l.step.Lock()
		current, err = l.reveal(ctx, tok, previous)
		l.step.Unlock()
		if errors.Is(err, page.ErrRevealUnsupported) {
			l.logger.Debugw("Document cannot reveal more containers", "count", previous)
			current = previous
			break
		}
		if err != nil {
			return previous, err
		}
		triggered = true

		delta := current - previous
		if delta < l.cfg.MinGain {
			stallCount++
		} else {
			stallCount = 0
			lastProgress = l.cfg.Now()
		}
		l.logger.Debugw("Reveal finished",
			"count", current,
			"delta", delta,
			"target", target,
			"stall_count", stallCount)

		if current >= target {
			break
		}
		if stallCount >= l.cfg.StallThreshold {
			l.logger.Infof("Loading stalled after %d attempts without progress; continuing with %d of %d containers",
				stallCount, current, target)
			break
		}
		if idle := l.cfg.Now().Sub(lastProgress); idle > valve {
			l.logger.Infof("No loading progress for %v; continuing with %d of %d containers", idle, current, target)
			break
		}
	}

	if triggered {
		l.step.Lock()
		err := l.doc.ScrollTo(ctx, origin)
		l.step.Unlock()
		if err != nil {
			l.logger.Warnw("Could not restore scroll position", "error", err)
		}
	}
	return current, nil
}

// reveal issues one reveal trigger and waits for the count to grow past
// previous. An unsupported trigger is returned unwrapped.
func (l *Loader) reveal(ctx context.Context, tok *Token, previous int) (int, error) {
	if tok.Aborted() {
		return previous, ErrCancelled
	}
	if err := l.doc.TriggerReveal(ctx); err != nil {
		if errors.Is(err, page.ErrRevealUnsupported) {
			return previous, err
		}
		return previous, errors.Wrap(err, "failed to trigger reveal")
	}
	return l.waitForGrowth(ctx, tok, previous)
}

// waitForGrowth polls the container count until it exceeds previous, the
// poll budget or per-reveal deadline runs out, or tok is aborted.
// Cancellation wins over every other outcome.
func (l *Loader) waitForGrowth(ctx context.Context, tok *Token, previous int) (int, error) {
	deadline := time.NewTimer(l.cfg.TriggerTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for checks := 0; checks < l.cfg.MaxChecks; {
		select {
		case <-tok.Done():
			return previous, ErrCancelled
		case <-ctx.Done():
			return previous, ctx.Err()
		case <-deadline.C:
			if tok.Aborted() {
				return previous, ErrCancelled
			}
			return l.count(ctx)
		case <-ticker.C:
			if tok.Aborted() {
				return previous, ErrCancelled
			}
			checks++
			n, err := l.count(ctx)
			if err != nil {
				return previous, err
			}
			if n > previous {
				return n, nil
			}
		}
	}
	return l.count(ctx)
}

func (l *Loader) count(ctx context.Context) (int, error) {
	n, err := l.doc.CountOf(ctx, l.container)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count containers")
	}
	return n, nil
}
