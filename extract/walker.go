package extract

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/purchase-export/page"
)

// Walker reads records out of revealed containers, one container at a time.
type Walker struct {
	doc    page.Document
	schema *page.Schema
	pacing PacingConfig
	jitter Jitter
	logger *zap.SugaredLogger

	// step is held while one container is read.
	step sync.Locker
}

// NewWalker returns a walker. A nil jitter means RandomJitter.
func NewWalker(doc page.Document, schema *page.Schema, pacing PacingConfig, jitter Jitter, logger *zap.SugaredLogger) *Walker {
	if jitter == nil {
		jitter = RandomJitter
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if pacing.DetailTimeout <= 0 {
		pacing.DetailTimeout = DefaultDetailTimeout
	}
	return &Walker{doc: doc, schema: schema, pacing: pacing, jitter: jitter, logger: logger, step: nopLocker{}}
}

// Walk extracts the first n containers in page order and hands each
// container's records to emit as soon as the container is done.
//
// tok and ctx are checked before every container, never inside one: the
// container in progress runs detached from ctx cancellation and is emitted
// before Walk returns ErrCancelled or the context error. A container that
// cannot be read is skipped and reported in the returned faults.
func (w *Walker) Walk(ctx context.Context, n int, tok *Token, emit func(index int, records []Record)) ([]ContainerFault, error) {
	var faults []ContainerFault
	for i := 0; i < n; i++ {
		if tok.Aborted() {
			return faults, ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return faults, err
		}

		w.logger.Infof("Processing %d of %d...", i+1, n)
		w.step.Lock()
		if tok.Aborted() {
			w.step.Unlock()
			return faults, ErrCancelled
		}
		records, orderID, err := w.container(context.WithoutCancel(ctx), i)
		w.step.Unlock()
		if err != nil {
			fault := ContainerFault{Index: i, OrderID: orderID, Err: err}
			w.logger.Warnw("Skipping container", "index", i, "order_id", orderID, "error", err)
			faults = append(faults, fault)
			continue
		}
		if emit != nil {
			emit(i, records)
		}
	}
	return faults, nil
}

// container resolves the i-th container afresh and reads its records.
// Handles are never kept across containers because the page may have
// re-rendered in between.
func (w *Walker) container(ctx context.Context, i int) (records []Record, orderID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic while reading container: %v", r)
		}
	}()

	containers, err := w.doc.QueryAll(ctx, w.schema.Container, nil)
	if err != nil {
		return nil, "", err
	}
	if i >= len(containers) {
		return nil, "", errors.Newf("container %d is no longer on the page (%d present)", i, len(containers))
	}
	c := containers[i]

	base := Record{}
	if base.PurchaseDate, err = readField(ctx, w.doc, w.schema, page.FieldDate, c); err != nil {
		return nil, "", err
	}
	if base.OrderID, err = readField(ctx, w.doc, w.schema, page.FieldOrderID, c); err != nil {
		return nil, "", err
	}
	orderID = base.OrderID
	if base.OrderTotal, err = readField(ctx, w.doc, w.schema, page.FieldOrderTotal, c); err != nil {
		return nil, orderID, err
	}

	noDetail, err := w.doc.QueryFirst(ctx, w.schema.Selector(page.FieldNoDetail), c)
	if err != nil {
		return nil, orderID, err
	}
	if noDetail == nil {
		if err := w.details(ctx, c, &base); err != nil {
			return nil, orderID, err
		}
	}

	items, err := w.items(ctx, c)
	if err != nil {
		return nil, orderID, err
	}
	records = make([]Record, 0, len(items))
	for _, it := range items {
		rec, err := w.item(ctx, it, base)
		if err != nil {
			return nil, orderID, err
		}
		records = append(records, rec)
	}
	return records, orderID, nil
}

// details expands the collapsed detail region if needed and reads the
// detail-only fields into rec.
func (w *Walker) details(ctx context.Context, c page.Element, rec *Record) error {
	toggle, err := w.doc.QueryFirst(ctx, w.schema.Selector(page.FieldToggle), c)
	if err != nil {
		return err
	}
	if toggle != nil {
		if err := w.expand(ctx, c, toggle); err != nil {
			return err
		}
	}

	scope, err := w.doc.QueryFirst(ctx, w.schema.Selector(page.FieldDetails), c)
	if err != nil {
		return err
	}
	if scope == nil {
		scope = c
	}
	if rec.DocumentNumber, err = readField(ctx, w.doc, w.schema, page.FieldDocumentNumber, scope); err != nil {
		return err
	}
	if rec.PaymentMethod, err = readField(ctx, w.doc, w.schema, page.FieldPaymentMethod, scope); err != nil {
		return err
	}
	if rec.BillingName, err = readField(ctx, w.doc, w.schema, page.FieldBillingName, scope); err != nil {
		return err
	}
	return nil
}

func (w *Walker) expand(ctx context.Context, c, toggle page.Element) error {
	if err := sleep(ctx, w.jitter(w.pacing.PreClick)); err != nil {
		return err
	}
	if err := w.doc.Interact(ctx, toggle); err != nil {
		return errors.Wrap(err, "failed to expand purchase details")
	}

	waitCtx, cancel := context.WithTimeout(ctx, w.pacing.DetailTimeout)
	defer cancel()
	if err := w.doc.WaitForReady(waitCtx, w.schema.Selector(page.FieldDetails), c); err != nil {
		return errors.Wrap(err, "purchase details did not finish loading")
	}

	return sleep(ctx, w.jitter(w.pacing.PostLoad))
}

// items returns the container's lines: those counting toward the total
// first, then the free ones.
func (w *Walker) items(ctx context.Context, c page.Element) ([]page.Element, error) {
	paid, err := w.doc.QueryAll(ctx, w.schema.Selector(page.FieldPaidItems), c)
	if err != nil {
		return nil, err
	}
	free, err := w.doc.QueryAll(ctx, w.schema.Selector(page.FieldFreeItems), c)
	if err != nil {
		return nil, err
	}
	return append(paid, free...), nil
}

func (w *Walker) item(ctx context.Context, it page.Element, rec Record) (Record, error) {
	var err error
	if rec.ItemName, err = readField(ctx, w.doc, w.schema, page.FieldItemName, it); err != nil {
		return rec, err
	}
	if rec.Publisher, err = readField(ctx, w.doc, w.schema, page.FieldPublisher, it); err != nil {
		return rec, err
	}
	if rec.ItemDateTime, err = readField(ctx, w.doc, w.schema, page.FieldItemDate, it); err != nil {
		return rec, err
	}
	if rec.ItemDescription, err = readField(ctx, w.doc, w.schema, page.FieldDescription, it); err != nil {
		return rec, err
	}
	if rec.SubscriptionLink, err = readField(ctx, w.doc, w.schema, page.FieldSubscriptionLink, it); err != nil {
		return rec, err
	}
	if rec.ItemPrice, err = w.price(ctx, it); err != nil {
		return rec, err
	}
	return rec, nil
}

func (w *Walker) price(ctx context.Context, it page.Element) (string, error) {
	if sel := w.schema.Selector(page.FieldFreeLabel); sel != "" {
		label, err := w.doc.QueryFirst(ctx, sel, it)
		if err != nil {
			return "", err
		}
		if label != nil {
			return FreePrice, nil
		}
	}
	el, err := w.doc.QueryFirst(ctx, w.schema.Selector(page.FieldPrice), it)
	if err != nil || el == nil {
		return FreePrice, err
	}
	text, err := w.doc.Text(ctx, el)
	if err != nil {
		return "", err
	}
	if text = normalize(text); text != "" {
		return text, nil
	}
	return FreePrice, nil
}
