package extract

import (
	"context"
	"strings"

	"github.com/purchase-export/page"
)

// normalize trims s and collapses internal whitespace runs to one space.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// valueOf reads a field's value from an element already resolved for it.
func valueOf(ctx context.Context, doc page.Document, f *page.Field, el page.Element) (string, error) {
	if f.Attr != "" {
		v, _, err := doc.Attr(ctx, el, f.Attr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(v), nil
	}
	text, err := doc.Text(ctx, el)
	if err != nil {
		return "", err
	}
	return normalize(text), nil
}

// readField resolves the named field inside scope and returns its value,
// or "" when the element is absent.
func readField(ctx context.Context, doc page.Document, schema *page.Schema, name string, scope page.Element) (string, error) {
	f := schema.Field(name)
	if f == nil {
		return "", nil
	}
	el, err := doc.QueryFirst(ctx, f.Selector, scope)
	if err != nil || el == nil {
		return "", err
	}
	return valueOf(ctx, doc, f, el)
}
