package service

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/purchase-export/extract"
	"github.com/purchase-export/page"
	"github.com/purchase-export/scrapers"
)

// LiveDocument is a page that a browser session drives.
type LiveDocument interface {
	page.Document
	scrapers.Session
	CheckHost(ctx context.Context) error
}

// BrowserExtractor runs extractions against one browser tab. The browser
// is started on the first run and reused by later ones.
type BrowserExtractor struct {
	newDoc func() LiveDocument
	schema *page.Schema
	opts   extract.Options
	logger *zap.SugaredLogger

	// openMu serializes browser start-up, which may wait minutes for the
	// user to sign in.
	openMu sync.Mutex

	mu   sync.Mutex
	doc  LiveDocument
	orch *extract.Orchestrator
}

// NewBrowserExtractor returns an extractor that opens documents with
// newDoc. opts.Logger also becomes the extractor's logger.
func NewBrowserExtractor(newDoc func() LiveDocument, schema *page.Schema, opts extract.Options) *BrowserExtractor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &BrowserExtractor{
		newDoc: newDoc,
		schema: schema,
		opts:   opts,
		logger: opts.Logger,
	}
}

// Run opens the browser if needed, checks it is still on the purchase
// history and runs one extraction.
func (e *BrowserExtractor) Run(ctx context.Context, requested int) (*extract.Result, error) {
	if requested < 1 || (e.opts.MaxRequest > 0 && requested > e.opts.MaxRequest) {
		return nil, errors.Wrapf(extract.ErrInvalidCount, "got %d", requested)
	}
	orch, doc, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	if err := orch.WithDocument(func() error { return doc.CheckHost(ctx) }); err != nil {
		return nil, err
	}
	return orch.Run(ctx, requested)
}

func (e *BrowserExtractor) open(ctx context.Context) (*extract.Orchestrator, LiveDocument, error) {
	e.openMu.Lock()
	defer e.openMu.Unlock()

	e.mu.Lock()
	orch, doc := e.orch, e.doc
	e.mu.Unlock()
	if orch != nil {
		return orch, doc, nil
	}

	doc = e.newDoc()
	if err := doc.Initialize(); err != nil {
		doc.Close()
		return nil, nil, errors.Wrap(err, "failed to start browser")
	}
	if err := doc.Open(ctx, e.schema.Container); err != nil {
		doc.Close()
		return nil, nil, err
	}
	orch = extract.New(doc, e.schema, e.opts)

	e.mu.Lock()
	e.doc, e.orch = doc, orch
	e.mu.Unlock()
	return orch, doc, nil
}

// Cancel aborts the running extraction, if any.
func (e *BrowserExtractor) Cancel() bool {
	e.mu.Lock()
	orch := e.orch
	e.mu.Unlock()
	if orch == nil {
		return false
	}
	return orch.Cancel()
}

// Close cancels any run and releases the browser.
func (e *BrowserExtractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.orch != nil {
		e.orch.Cancel()
	}
	if e.doc == nil {
		return nil
	}
	err := e.doc.Close()
	e.doc, e.orch = nil, nil
	return err
}
