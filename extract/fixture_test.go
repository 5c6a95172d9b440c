package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/purchase-export/page"
	"github.com/purchase-export/scrapers"
)

type line struct {
	Name        string
	Publisher   string
	Date        string
	Description string
	Price       string
	Link        string
	FreeLabel   bool
}

type order struct {
	Date      string
	ID        string
	Total     string
	NoInvoice bool
	Collapsed bool
	// Loading leaves the detail region in its loading state forever.
	Loading bool
	DocNo   string
	Payment string
	Billing string
	Paid    []line
	Free    []line
}

func sampleOrder(i int) order {
	return order{
		Date:      "Dec 31, 2024",
		ID:        fmt.Sprintf("MS%08d", i),
		Total:     "$0.99",
		Collapsed: true,
		DocNo:     fmt.Sprintf("DOC%d", i),
		Payment:   "Visa 1234",
		Billing:   "Jane Appleseed",
		Paid: []line{{
			Name:        fmt.Sprintf("App %d", i),
			Publisher:   "Acme",
			Date:        "Dec 31, 2024 10:00",
			Description: "Monthly",
			Price:       "$0.99",
			Link:        "https://apps.apple.com/account/subscriptions",
		}},
	}
}

func sampleOrders(n int) []order {
	out := make([]order, n)
	for i := range out {
		out[i] = sampleOrder(i)
	}
	return out
}

func renderLine(b *strings.Builder, l line) {
	b.WriteString(`<li class="pli">`)
	if l.Name != "" {
		fmt.Fprintf(b, `<div aria-label="%s"><img alt=""></div>`, l.Name)
	}
	if l.Publisher != "" {
		fmt.Fprintf(b, `<div class="pli-publisher">%s</div>`, l.Publisher)
	}
	if l.Date != "" {
		fmt.Fprintf(b, `<div class="pli-purchase-date" data-auto-test-id="RAP2.PurchaseList.PLIDetails.Value.Date">%s</div>`, l.Date)
	}
	if l.Description != "" {
		fmt.Fprintf(b, `<div class="pli-subscription-info" data-auto-test-id="RAP2.PurchaseList.PLI.Display.SubscriptionInfo">%s</div>`, l.Description)
	}
	b.WriteString(`<div class="pli-price">`)
	if l.FreeLabel {
		b.WriteString(`<span data-auto-test-id="RAP2.PurchaseList.PLI.Label.Free">Free</span>`)
	}
	if l.Price != "" {
		fmt.Fprintf(b, `<span data-auto-test-id="RAP2.PurchaseList.PLI.Display.Price">%s</span>`, l.Price)
	}
	b.WriteString(`</div>`)
	if l.Link != "" {
		fmt.Fprintf(b, `<a class="pli-manage-subscription-link" data-auto-test-id="RAP2.PurchaseList.PLI.Button.ManageSubscriptions" href="%s">Manage</a>`, l.Link)
	}
	b.WriteString(`</li>`)
}

func renderOrder(b *strings.Builder, o order) {
	b.WriteString(`<div class="purchase loaded"><h3 class="purchase-header">`)
	fmt.Fprintf(b, `<span data-auto-test-id="RAP2.PurchaseList.PurchaseHeader.Display.Date">%s</span>`, o.Date)
	if o.ID != "" {
		fmt.Fprintf(b, `<span data-auto-test-id="RAP2.PurchaseList.PurchaseHeader.Display.WebOrder">%s</span>`, o.ID)
	}
	if o.Total != "" {
		fmt.Fprintf(b, `<span data-auto-test-id="RAP2.PurchaseList.Display.Invoice.Amount">%s</span>`, o.Total)
	}
	b.WriteString(`</h3>`)
	if o.Collapsed {
		b.WriteString(`<button class="disclosure" aria-expanded="false">Details</button>`)
	}

	class := "purchase-details"
	if o.NoInvoice {
		class += " no-invoice"
	}
	if o.Loading {
		class += " loading"
	}
	fmt.Fprintf(b, `<div class="%s">`, class)
	if !o.NoInvoice {
		fmt.Fprintf(b, `<span data-auto-test-id="RAP2.PurchaseList.PurchaseDetails.Display.DocumentNumber">%s</span>`, o.DocNo)
		fmt.Fprintf(b, `<div data-auto-test-id="RAP2.PurchaseList.PurchaseDetails.Label.PaymentMethod">%s</div>`, o.Payment)
		fmt.Fprintf(b, `<div data-auto-test-id="RAP2.PurchaseList.PurchaseDetails.Display.Name">%s</div>`, o.Billing)
	}
	b.WriteString(`</div>`)

	b.WriteString(`<ul class="pli-list applicable-items">`)
	for _, l := range o.Paid {
		renderLine(b, l)
	}
	b.WriteString(`</ul>`)
	if len(o.Free) > 0 {
		b.WriteString(`<ul class="pli-list inapplicable-items-but-free">`)
		for _, l := range o.Free {
			renderLine(b, l)
		}
		b.WriteString(`</ul>`)
	}
	b.WriteString(`</div>`)
}

func renderPage(orders []order) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Report a Problem</title></head><body><main>`)
	for _, o := range orders {
		renderOrder(&b, o)
	}
	b.WriteString(`</main></body></html>`)
	return b.String()
}

func htmlDoc(t *testing.T, orders []order) *scrapers.HTMLDocument {
	t.Helper()
	doc, err := scrapers.NewHTMLDocument(strings.NewReader(renderPage(orders)))
	require.NoError(t, err)
	return doc
}

func compiledSchema(t *testing.T) *page.Schema {
	t.Helper()
	s := page.DefaultSchema()
	require.NoError(t, s.Compile())
	return s
}

// fakePage is a snapshot that reveals step more orders per TriggerReveal.
type fakePage struct {
	*scrapers.HTMLDocument

	t       *testing.T
	orders  []order
	visible int
	step    int

	mu         sync.Mutex
	reveals    int
	interacts  int
	scrollTos  int
	onReveal   func(reveal int)
	onInteract func(n int)
}

func newFakePage(t *testing.T, orders []order, visible, step int) *fakePage {
	p := &fakePage{t: t, orders: orders, visible: min(visible, len(orders)), step: step}
	p.HTMLDocument = htmlDoc(t, orders[:p.visible])
	return p
}

func (p *fakePage) TriggerReveal(ctx context.Context) error {
	p.mu.Lock()
	p.reveals++
	n := p.reveals
	hook := p.onReveal
	p.mu.Unlock()

	p.visible = min(len(p.orders), p.visible+p.step)
	p.HTMLDocument = htmlDoc(p.t, p.orders[:p.visible])
	if hook != nil {
		hook(n)
	}
	return nil
}

func (p *fakePage) Interact(ctx context.Context, el page.Element) error {
	p.mu.Lock()
	p.interacts++
	n := p.interacts
	hook := p.onInteract
	p.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return p.HTMLDocument.Interact(ctx, el)
}

func (p *fakePage) ScrollTo(ctx context.Context, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrollTos++
	return nil
}

func (p *fakePage) counts() (reveals, interacts, scrollTos int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reveals, p.interacts, p.scrollTos
}

func fastLoader() LoaderConfig {
	return LoaderConfig{
		PollInterval:   time.Millisecond,
		MaxChecks:      5,
		TriggerTimeout: 50 * time.Millisecond,
		StallThreshold: 3,
		MinGain:        1,
	}
}
