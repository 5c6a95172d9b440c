package extract

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWalker(t *testing.T, p *fakePage) *Walker {
	return NewWalker(p, compiledSchema(t), DefaultPacingConfig(), NoJitter, nil)
}

func walkAll(t *testing.T, w *Walker, n int) ([]Record, []ContainerFault) {
	t.Helper()
	var records []Record
	faults, err := w.Walk(context.Background(), n, NewToken(), func(_ int, rs []Record) {
		records = append(records, rs...)
	})
	require.NoError(t, err)
	return records, faults
}

func TestWalkCollapsedOrder(t *testing.T) {
	p := newFakePage(t, sampleOrders(1), 1, 0)
	records, faults := walkAll(t, newTestWalker(t, p), 1)
	require.Empty(t, faults)

	want := []Record{{
		PurchaseDate:     "Dec 31, 2024",
		ItemDateTime:     "Dec 31, 2024 10:00",
		OrderID:          "MS00000000",
		DocumentNumber:   "DOC0",
		ItemName:         "App 0",
		Publisher:        "Acme",
		ItemDescription:  "Monthly",
		ItemPrice:        "$0.99",
		OrderTotal:       "$0.99",
		PaymentMethod:    "Visa 1234",
		BillingName:      "Jane Appleseed",
		SubscriptionLink: "https://apps.apple.com/account/subscriptions",
	}}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	_, interacts, _ := p.counts()
	assert.Equal(t, 1, interacts)
}

func TestWalkNoDetailOrder(t *testing.T) {
	o := sampleOrder(0)
	o.NoInvoice = true
	o.Collapsed = true
	o.Total = ""
	o.Paid[0].Price = ""
	p := newFakePage(t, []order{o}, 1, 0)

	records, faults := walkAll(t, newTestWalker(t, p), 1)
	require.Empty(t, faults)
	require.Len(t, records, 1)

	r := records[0]
	assert.Empty(t, r.DocumentNumber)
	assert.Empty(t, r.PaymentMethod)
	assert.Empty(t, r.BillingName)
	assert.Empty(t, r.OrderTotal)
	assert.Equal(t, FreePrice, r.ItemPrice)

	_, interacts, _ := p.counts()
	assert.Zero(t, interacts, "no-detail containers are never expanded")
}

func TestWalkExpandedOrderReadsDetailsDirectly(t *testing.T) {
	o := sampleOrder(0)
	o.Collapsed = false
	p := newFakePage(t, []order{o}, 1, 0)

	records, faults := walkAll(t, newTestWalker(t, p), 1)
	require.Empty(t, faults)
	require.Len(t, records, 1)
	assert.Equal(t, "DOC0", records[0].DocumentNumber)

	_, interacts, _ := p.counts()
	assert.Zero(t, interacts)
}

func TestWalkPaidThenFreeItems(t *testing.T) {
	o := sampleOrder(0)
	o.Paid = append(o.Paid, line{Name: "Second", Price: "$1.99"})
	o.Free = []line{
		{Name: "Bonus", Price: "$4.99", FreeLabel: true},
		{Name: "Extra"},
	}
	p := newFakePage(t, []order{o}, 1, 0)

	records, faults := walkAll(t, newTestWalker(t, p), 1)
	require.Empty(t, faults)

	var names, prices []string
	for _, r := range records {
		names = append(names, r.ItemName)
		prices = append(prices, r.ItemPrice)
		assert.Equal(t, "MS00000000", r.OrderID)
		assert.Equal(t, "DOC0", r.DocumentNumber)
	}
	assert.Equal(t, []string{"App 0", "Second", "Bonus", "Extra"}, names)
	assert.Equal(t, []string{"$0.99", "$1.99", FreePrice, FreePrice}, prices)
}

func TestWalkNormalisesWhitespace(t *testing.T) {
	o := sampleOrder(0)
	o.Paid[0].Description = "\n   Monthly \n\t  renewal  "
	o.Paid[0].Name = "  Spaced App "
	p := newFakePage(t, []order{o}, 1, 0)

	records, _ := walkAll(t, newTestWalker(t, p), 1)
	require.Len(t, records, 1)
	assert.Equal(t, "Monthly renewal", records[0].ItemDescription)
	assert.Equal(t, "Spaced App", records[0].ItemName)
}

func TestWalkSkipsBrokenContainer(t *testing.T) {
	orders := sampleOrders(3)
	orders[1].Loading = true
	p := newFakePage(t, orders, 3, 0)
	w := newTestWalker(t, p)

	var emitted []int
	var records []Record
	faults, err := w.Walk(context.Background(), 3, NewToken(), func(i int, rs []Record) {
		emitted = append(emitted, i)
		records = append(records, rs...)
	})
	require.NoError(t, err)

	require.Len(t, faults, 1)
	assert.Equal(t, 1, faults[0].Index)
	assert.Equal(t, "MS00000001", faults[0].OrderID)
	assert.Error(t, faults[0].Unwrap())
	assert.Equal(t, []int{0, 2}, emitted)
	require.Len(t, records, 2)
	assert.Equal(t, "MS00000002", records[1].OrderID)
}

func TestWalkCancelledAtContainerBoundary(t *testing.T) {
	p := newFakePage(t, sampleOrders(4), 4, 0)
	w := newTestWalker(t, p)
	tok := NewToken()

	var records []Record
	_, err := w.Walk(context.Background(), 4, tok, func(i int, rs []Record) {
		records = append(records, rs...)
		if i == 1 {
			tok.Abort()
		}
	})
	require.ErrorIs(t, err, ErrCancelled)
	require.Len(t, records, 2)
	assert.Equal(t, "MS00000000", records[0].OrderID)
	assert.Equal(t, "MS00000001", records[1].OrderID)
}

func TestWalkMissingContainer(t *testing.T) {
	p := newFakePage(t, sampleOrders(1), 1, 0)
	records, faults := walkAll(t, newTestWalker(t, p), 2)
	assert.Len(t, records, 1)
	require.Len(t, faults, 1)
	assert.Equal(t, 1, faults[0].Index)
}
