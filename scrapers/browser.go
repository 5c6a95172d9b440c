package scrapers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/purchase-export/page"
)

const pagePollInterval = time.Second

// ErrWrongPage is returned when the browser is not on the purchase history.
var ErrWrongPage = errors.New("browser is not on the purchase history page")

// Browser is a page.Document backed by a Chrome tab driven over the
// DevTools protocol.
type Browser struct {
	BaseScraper
	limiter *rate.Limiter
}

var _ page.Document = (*Browser)(nil)

// NewBrowser creates a browser session. Nothing is started until
// Initialize.
func NewBrowser(config *BrowserConfig, logger *zap.SugaredLogger) *Browser {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if config.PageTimeout <= 0 {
		config.PageTimeout = 5 * time.Minute
	}
	b := &Browser{
		BaseScraper: BaseScraper{
			Config: config,
			Logger: logger.Named("browser"),
		},
	}
	if config.InteractionsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(config.InteractionsPerSecond), 1)
	}
	return b
}

// Initialize launches Chrome, or attaches to a running one when RemoteURL
// is set.
func (b *Browser) Initialize() error {
	b.Logger.Info("Initializing browser...")

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if b.Config.RemoteURL != "" {
		b.Logger.Infof("Attaching to running browser at %s", b.Config.RemoteURL)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), b.Config.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", b.Config.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1440, 1000),
		)
		if b.Config.ProfileDir != "" {
			opts = append(opts, chromedp.UserDataDir(b.Config.ProfileDir))
		}
		if b.Config.Headless {
			b.Logger.Info("Running in HEADLESS mode")
		} else {
			b.Logger.Info("Running in VISIBLE mode")
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(b.Logger.Debugf))
	b.Ctx = ctx
	b.Cancel = cancel
	b.AllocCancel = allocCancel

	// first Run starts the browser and opens the tab
	if err := chromedp.Run(b.Ctx); err != nil {
		b.Close()
		return errors.Wrap(err, "failed to start browser")
	}

	// the page may ask for confirmation while details load
	chromedp.ListenTarget(b.Ctx, func(ev interface{}) {
		if e, ok := ev.(*cdppage.EventJavascriptDialogOpening); ok {
			b.Logger.Infof("Dialog: %s", e.Message)
			go chromedp.Run(b.Ctx, cdppage.HandleJavaScriptDialog(true))
		}
	})

	b.Logger.Info("Browser initialized")
	return nil
}

// Open navigates to the configured URL (if any), checks the host, and
// waits for the first container matched by selector.
func (b *Browser) Open(ctx context.Context, selector string) error {
	if b.Config.URL != "" {
		b.Logger.Infof("Navigating to %s", b.Config.URL)
		if err := b.run(ctx,
			chromedp.Navigate(b.Config.URL),
			chromedp.WaitReady("body"),
		); err != nil {
			return errors.Wrap(err, "failed to navigate")
		}
	}
	if err := b.CheckHost(ctx); err != nil {
		return err
	}
	return b.WaitForPage(ctx, selector)
}

// CurrentURL returns the tab's location.
func (b *Browser) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := b.run(ctx, chromedp.Location(&url)); err != nil {
		return "", errors.Wrap(err, "failed to read current URL")
	}
	return url, nil
}

// CheckHost fails with ErrWrongPage unless the tab is on the configured host.
func (b *Browser) CheckHost(ctx context.Context) error {
	if b.Config.Host == "" {
		return nil
	}
	url, err := b.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(url, b.Config.Host) {
		return errors.WithHintf(errors.Wrapf(ErrWrongPage, "current page is %s", url),
			"open https://%s and sign in first", b.Config.Host)
	}
	return nil
}

// WaitForPage polls until at least one element matches selector or the
// page timeout runs out. Signing in happens during this wait.
func (b *Browser) WaitForPage(ctx context.Context, selector string) error {
	b.Logger.Info("Waiting for purchases to appear...")
	attempts := uint(b.Config.PageTimeout / pagePollInterval)
	if attempts == 0 {
		attempts = 1
	}

	err := retry.Do(
		func() error {
			n, err := b.CountOf(ctx, selector)
			if err != nil {
				return err
			}
			if n == 0 {
				return errors.New("no purchases on the page yet")
			}
			b.Logger.Infof("Page ready with %d purchases", n)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(pagePollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if n > 0 && n%15 == 0 {
				b.Logger.Infof("Still waiting for purchases (%d/%d): %v", n, attempts, err)
			}
		}),
	)
	if err != nil {
		return errors.Wrap(err, "purchase history did not load")
	}
	return nil
}

// run executes actions in the tab, aborting them when ctx is done. The tab
// itself outlives ctx.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	if b.Ctx == nil {
		return errors.New("browser is not initialized")
	}
	runCtx, cancel := context.WithCancel(b.Ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (b *Browser) node(el page.Element) (*cdp.Node, error) {
	n, ok := el.(*cdp.Node)
	if !ok || n == nil {
		return nil, errors.Newf("element of type %T does not belong to a browser page", el)
	}
	return n, nil
}

func jsString(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}

func (b *Browser) CountOf(ctx context.Context, selector string) (int, error) {
	var n int
	expr := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
	if err := b.run(ctx, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, errors.Wrapf(err, "failed to count %q", selector)
	}
	return n, nil
}

func (b *Browser) QueryAll(ctx context.Context, selector string, scope page.Element) ([]page.Element, error) {
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if scope != nil {
		n, err := b.node(scope)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chromedp.FromNode(n))
	}

	var nodes []*cdp.Node
	if err := b.run(ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, errors.Wrapf(err, "failed to query %q", selector)
	}
	out := make([]page.Element, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out, nil
}

func (b *Browser) QueryFirst(ctx context.Context, selector string, scope page.Element) (page.Element, error) {
	all, err := b.QueryAll(ctx, selector, scope)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (b *Browser) Text(ctx context.Context, el page.Element) (string, error) {
	n, err := b.node(el)
	if err != nil {
		return "", err
	}
	var text string
	if err := b.run(ctx, chromedp.TextContent([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID)); err != nil {
		return "", errors.Wrap(err, "failed to read text")
	}
	return text, nil
}

func (b *Browser) Attr(ctx context.Context, el page.Element, name string) (string, bool, error) {
	n, err := b.node(el)
	if err != nil {
		return "", false, err
	}
	var (
		value string
		ok    bool
	)
	if err := b.run(ctx, chromedp.AttributeValue([]cdp.NodeID{n.NodeID}, name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, errors.Wrapf(err, "failed to read attribute %q", name)
	}
	return value, ok, nil
}

// TriggerReveal scrolls to the bottom, which makes the page fetch the next
// batch of purchases.
func (b *Browser) TriggerReveal(ctx context.Context) error {
	return b.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil))
}

// Interact clicks el, waiting on the interaction limiter first.
func (b *Browser) Interact(ctx context.Context, el page.Element) error {
	n, err := b.node(el)
	if err != nil {
		return err
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return b.run(ctx, chromedp.MouseClickNode(n))
}

// WaitForReady blocks until an element matching selector exists inside
// scope and no longer carries the loading class.
func (b *Browser) WaitForReady(ctx context.Context, selector string, scope page.Element) error {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if scope != nil {
		n, err := b.node(scope)
		if err != nil {
			return err
		}
		opts = append(opts, chromedp.FromNode(n))
	}
	return b.run(ctx, chromedp.WaitReady(readySelector(selector), opts...))
}

func readySelector(selector string) string {
	if strings.Contains(selector, ":not(.loading)") {
		return selector
	}
	return selector + ":not(.loading)"
}

func (b *Browser) ScrollOffset(ctx context.Context) (float64, error) {
	var y float64
	if err := b.run(ctx, chromedp.Evaluate(`window.scrollY`, &y)); err != nil {
		return 0, errors.Wrap(err, "failed to read scroll position")
	}
	return y, nil
}

func (b *Browser) ScrollTo(ctx context.Context, y float64) error {
	return b.run(ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollTo(0, %f)`, y), nil))
}
