package export

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/purchase-export/extract"
)

// LargeExport is the requested count above which a run is logged as large.
const LargeExport = 100

// Extractor runs and cancels extractions.
type Extractor interface {
	Run(ctx context.Context, requested int) (*extract.Result, error)
	Cancel() bool
}

// Outcome is a finished run together with its rendered and saved export.
type Outcome struct {
	Result *extract.Result
	// CSV is the encoded records; empty when nothing was collected.
	CSV string
	// Path is where the export was saved; empty when nothing was saved.
	Path string
}

// Runner runs an extraction and saves whatever it collected, including
// the records of a cancelled run.
type Runner struct {
	extractor Extractor
	store     *Store
	logger    *zap.SugaredLogger
}

// NewRunner returns a runner. A nil store skips saving.
func NewRunner(extractor Extractor, store *Store, logger *zap.SugaredLogger) *Runner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{extractor: extractor, store: store, logger: logger}
}

// Export runs one extraction of up to requested purchases.
func (r *Runner) Export(ctx context.Context, requested int) (*Outcome, error) {
	if requested > LargeExport {
		r.logger.Warnf("Large export requested (%d purchases); this may take a while", requested)
	}

	res, err := r.extractor.Run(ctx, requested)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Result: res}
	if res.Status == extract.StatusValidationFailed {
		return out, nil
	}

	out.CSV = Encode(res.Records)
	if r.store == nil {
		return out, nil
	}
	path, err := r.store.Save(res)
	switch {
	case errors.Is(err, ErrNoRecords):
		r.logger.Info("No purchases were found; nothing saved")
	case err != nil:
		return out, errors.Wrap(err, "failed to save export")
	default:
		out.Path = path
	}
	return out, nil
}

// Cancel aborts the running extraction, if any.
func (r *Runner) Cancel() bool {
	return r.extractor.Cancel()
}

// Latest returns the newest saved session.
func (r *Runner) Latest() (*Session, error) {
	if r.store == nil {
		return nil, nil
	}
	return r.store.Latest()
}
