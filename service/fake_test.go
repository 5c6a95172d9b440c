package service

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/purchase-export/scrapers"
)

const fixture = "../scrapers/testdata/purchases.html"

// fakeBrowser is a saved purchase page posing as a browser tab.
type fakeBrowser struct {
	*scrapers.HTMLDocument

	mu       sync.Mutex
	inits    int
	opens    int
	closes   int
	wrongURL bool
	openErr  error
}

func newFakeBrowser(t *testing.T) *fakeBrowser {
	t.Helper()
	doc, err := scrapers.LoadHTMLFile(fixture)
	require.NoError(t, err)
	return &fakeBrowser{HTMLDocument: doc}
}

func (b *fakeBrowser) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inits++
	return nil
}

func (b *fakeBrowser) Open(ctx context.Context, selector string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opens++
	return b.openErr
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	return nil
}

func (b *fakeBrowser) CheckHost(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wrongURL {
		return errors.Wrap(scrapers.ErrWrongPage, "current page is about:blank")
	}
	return nil
}

func (b *fakeBrowser) calls() (inits, opens, closes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inits, b.opens, b.closes
}
