package scrapers

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/cockroachdb/errors"

	"github.com/purchase-export/page"
)

// HTMLDocument is a page.Document over a static HTML snapshot, such as a
// purchase-history page saved from the browser. It never grows and has no
// asynchronous loading.
type HTMLDocument struct {
	doc *goquery.Document
}

// NewHTMLDocument parses r as HTML.
func NewHTMLDocument(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse HTML")
	}
	return &HTMLDocument{doc: doc}, nil
}

// LoadHTMLFile parses the HTML file at path.
func LoadHTMLFile(path string) (*HTMLDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	return NewHTMLDocument(f)
}

func (d *HTMLDocument) scope(el page.Element) (*goquery.Selection, error) {
	if el == nil {
		return d.doc.Selection, nil
	}
	s, ok := el.(*goquery.Selection)
	if !ok {
		return nil, errors.Newf("element of type %T does not belong to an HTML document", el)
	}
	return s, nil
}

func (d *HTMLDocument) find(selector string, scope page.Element) (*goquery.Selection, error) {
	s, err := d.scope(scope)
	if err != nil {
		return nil, err
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid selector %q", selector)
	}
	return s.FindMatcher(m), nil
}

func (d *HTMLDocument) CountOf(_ context.Context, selector string) (int, error) {
	s, err := d.find(selector, nil)
	if err != nil {
		return 0, err
	}
	return s.Length(), nil
}

func (d *HTMLDocument) QueryFirst(_ context.Context, selector string, scope page.Element) (page.Element, error) {
	s, err := d.find(selector, scope)
	if err != nil {
		return nil, err
	}
	if s.Length() == 0 {
		return nil, nil
	}
	return s.First(), nil
}

func (d *HTMLDocument) QueryAll(_ context.Context, selector string, scope page.Element) ([]page.Element, error) {
	s, err := d.find(selector, scope)
	if err != nil {
		return nil, err
	}
	out := make([]page.Element, 0, s.Length())
	s.Each(func(_ int, el *goquery.Selection) {
		out = append(out, el)
	})
	return out, nil
}

func (d *HTMLDocument) Text(_ context.Context, el page.Element) (string, error) {
	s, err := d.scope(el)
	if err != nil {
		return "", err
	}
	return s.Text(), nil
}

func (d *HTMLDocument) Attr(_ context.Context, el page.Element, name string) (string, bool, error) {
	s, err := d.scope(el)
	if err != nil {
		return "", false, err
	}
	v, ok := s.Attr(name)
	return v, ok, nil
}

// TriggerReveal always fails with page.ErrRevealUnsupported.
func (d *HTMLDocument) TriggerReveal(context.Context) error {
	return page.ErrRevealUnsupported
}

// Interact marks a disclosure control as expanded. Nothing loads in a
// snapshot, so the detail region stays as it was saved.
func (d *HTMLDocument) Interact(_ context.Context, el page.Element) error {
	s, err := d.scope(el)
	if err != nil {
		return err
	}
	if _, ok := s.Attr("aria-expanded"); ok {
		s.SetAttr("aria-expanded", "true")
	}
	return nil
}

// WaitForReady succeeds when a matching element exists without the
// loading marker; a snapshot cannot change, so anything else fails at once.
func (d *HTMLDocument) WaitForReady(_ context.Context, selector string, scope page.Element) error {
	s, err := d.find(selector, scope)
	if err != nil {
		return err
	}
	if s.Length() == 0 {
		return errors.Newf("no element matches %q", selector)
	}
	if s.First().HasClass("loading") {
		return errors.Newf("element %q is still loading in the saved page", selector)
	}
	return nil
}

func (d *HTMLDocument) ScrollOffset(context.Context) (float64, error) {
	return 0, nil
}

func (d *HTMLDocument) ScrollTo(context.Context, float64) error {
	return nil
}

// Title returns the document title, trimmed.
func (d *HTMLDocument) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}
