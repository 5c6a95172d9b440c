package extract

// Header lists the export columns in order.
var Header = []string{
	"Purchase Date",
	"Item Date & Time",
	"Order ID",
	"Document Number",
	"Item Name",
	"Publisher",
	"Item Description",
	"Item Price",
	"Order Total",
	"Payment Method",
	"Billing Name",
	"Subscription Management Link",
}

// FreePrice is the price reported for items without a price.
const FreePrice = "Free"

// Record is one purchased line. Absent optional data is an empty string.
type Record struct {
	PurchaseDate     string `json:"purchaseDate"`
	ItemDateTime     string `json:"itemDateTime"`
	OrderID          string `json:"orderId"`
	DocumentNumber   string `json:"documentNumber"`
	ItemName         string `json:"itemName"`
	Publisher        string `json:"publisher"`
	ItemDescription  string `json:"itemDescription"`
	ItemPrice        string `json:"itemPrice"`
	OrderTotal       string `json:"orderTotal"`
	PaymentMethod    string `json:"paymentMethod"`
	BillingName      string `json:"billingName"`
	SubscriptionLink string `json:"subscriptionLink"`
}

// Values returns the record's fields in Header order.
func (r Record) Values() []string {
	return []string{
		r.PurchaseDate,
		r.ItemDateTime,
		r.OrderID,
		r.DocumentNumber,
		r.ItemName,
		r.Publisher,
		r.ItemDescription,
		r.ItemPrice,
		r.OrderTotal,
		r.PaymentMethod,
		r.BillingName,
		r.SubscriptionLink,
	}
}
