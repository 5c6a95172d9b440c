// Package page describes the live purchase-history document the extractor
// works against: the query/interaction capability a document must offer and
// the declarative schema of elements the extractor expects to find in it.
package page

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Element is an opaque handle into a document. Only the Document that
// produced it can interpret it.
type Element any

// ErrRevealUnsupported is returned by TriggerReveal when the document can
// never grow (for example a saved HTML snapshot).
var ErrRevealUnsupported = errors.New("document cannot reveal more content")

// Document is the capability the extractor needs from a page.
//
// A nil scope means the whole document. QueryFirst returns a nil Element
// and a nil error when nothing matches.
type Document interface {
	CountOf(ctx context.Context, selector string) (int, error)
	QueryFirst(ctx context.Context, selector string, scope Element) (Element, error)
	QueryAll(ctx context.Context, selector string, scope Element) ([]Element, error)

	// Text returns the element's text content, untrimmed.
	Text(ctx context.Context, el Element) (string, error)
	// Attr returns the named attribute and whether it was present.
	Attr(ctx context.Context, el Element, name string) (string, bool, error)

	// TriggerReveal asks the page to materialize more containers,
	// typically by scrolling to the bottom.
	TriggerReveal(ctx context.Context) error
	// Interact activates an element (a click).
	Interact(ctx context.Context, el Element) error
	// WaitForReady blocks until an element matching selector inside scope
	// exists and no longer carries the transient "loading" marker.
	WaitForReady(ctx context.Context, selector string, scope Element) error

	ScrollOffset(ctx context.Context) (float64, error)
	ScrollTo(ctx context.Context, y float64) error
}
