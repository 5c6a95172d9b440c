package server

import (
	"context"
	"sync"

	"github.com/purchase-export/export"
	"github.com/purchase-export/extract"
)

type stubExporter struct {
	mu        sync.Mutex
	outcome   *export.Outcome
	err       error
	requested []int
	session   *export.Session

	// block, when set, makes Export wait until Cancel is called.
	block    bool
	started  chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newStubExporter() *stubExporter {
	return &stubExporter{
		started: make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

func (s *stubExporter) Export(ctx context.Context, requested int) (*export.Outcome, error) {
	s.mu.Lock()
	s.requested = append(s.requested, requested)
	out, err, block := s.outcome, s.err, s.block
	s.mu.Unlock()

	select {
	case s.started <- struct{}{}:
	default:
	}
	if block {
		select {
		case <-s.stopped:
		case <-ctx.Done():
		}
		return &export.Outcome{Result: &extract.Result{
			Status:  extract.StatusCancelled,
			Records: []extract.Record{{OrderID: "MS71XHJJ3K"}},
		}, CSV: "partial"}, nil
	}
	return out, err
}

func (s *stubExporter) Cancel() bool {
	cancelled := false
	s.stopOnce.Do(func() {
		close(s.stopped)
		cancelled = true
	})
	return cancelled
}

func (s *stubExporter) Latest() (*export.Session, error) {
	return s.session, nil
}

func (s *stubExporter) calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.requested...)
}

func successOutcome() *export.Outcome {
	return &export.Outcome{
		Result: &extract.Result{
			RunID:       "run-1",
			Status:      extract.StatusSuccess,
			Requested:   2,
			LoadedCount: 3,
			Records:     []extract.Record{{OrderID: "A"}, {OrderID: "B"}},
		},
		CSV:  "Purchase Date,...",
		Path: "/tmp/apple_purchases_2024-12-31.csv",
	}
}
