package page

// DefaultVersion identifies the built-in schema in validation reports.
const DefaultVersion = "1.0.1"

// DefaultHost is the site the built-in schema was written against.
const DefaultHost = "reportaproblem.apple.com"

// DefaultSchema returns a fresh copy of the schema for the purchase-history
// page of the Report a Problem site.
func DefaultSchema() *Schema {
	return &Schema{
		Version:   DefaultVersion,
		Container: "div.purchase.loaded",
		Fields: map[string]*Field{
			FieldHeader: {
				Selector: "h3.purchase-header",
				Required: true,
				Level:    LevelContainer,
			},
			FieldDate: {
				Selector: `span[data-auto-test-id="RAP2.PurchaseList.PurchaseHeader.Display.Date"]`,
				Required: true,
				Level:    LevelContainer,
				Pattern:  `^[A-Z][a-z]{2,8}\s+\d{1,2},\s+\d{4}$`,
			},
			FieldOrderID: {
				Selector: `span[data-auto-test-id="RAP2.PurchaseList.PurchaseHeader.Display.WebOrder"]`,
				Required: true,
				Level:    LevelContainer,
				Pattern:  `^[A-Z0-9]{10}$`,
			},
			FieldOrderTotal: {
				Selector: `span[data-auto-test-id="RAP2.PurchaseList.Display.Invoice.Amount"]`,
				Level:    LevelContainer,
			},
			FieldDetails: {
				Selector: "div.purchase-details",
				Required: true,
				Level:    LevelContainer,
			},
			FieldNoDetail: {
				Selector: "div.purchase-details.no-invoice",
				Level:    LevelContainer,
			},
			FieldToggle: {
				Selector: `button.disclosure[aria-expanded="false"]`,
				Level:    LevelContainer,
			},
			FieldDocumentNumber: {
				Selector: `span[data-auto-test-id="RAP2.PurchaseList.PurchaseDetails.Display.DocumentNumber"]`,
				Level:    LevelContainer,
			},
			FieldPaymentMethod: {
				Selector: `[data-auto-test-id="RAP2.PurchaseList.PurchaseDetails.Label.PaymentMethod"]`,
				Level:    LevelContainer,
			},
			FieldBillingName: {
				Selector: `[data-auto-test-id="RAP2.PurchaseList.PurchaseDetails.Display.Name"]`,
				Level:    LevelContainer,
			},
			FieldItemList: {
				Selector: "ul.pli-list",
				Required: true,
				Level:    LevelContainer,
			},
			FieldItem: {
				Selector: "li.pli",
				Required: true,
				Level:    LevelContainer,
			},
			FieldPaidItems: {
				Selector: "ul.pli-list.applicable-items li.pli",
				Level:    LevelContainer,
			},
			FieldFreeItems: {
				Selector: "ul.pli-list.inapplicable-items-but-free li.pli",
				Level:    LevelContainer,
			},
			FieldItemName: {
				Selector: "div[aria-label]",
				Attr:     "aria-label",
				Required: true,
				Level:    LevelItem,
			},
			FieldPublisher: {
				Selector: "div.pli-publisher",
				Level:    LevelItem,
			},
			FieldItemDate: {
				Selector: `div.pli-purchase-date[data-auto-test-id="RAP2.PurchaseList.PLIDetails.Value.Date"]`,
				Level:    LevelItem,
			},
			FieldDescription: {
				Selector: `div.pli-subscription-info[data-auto-test-id*="Display.SubscriptionInfo"]`,
				Level:    LevelItem,
			},
			FieldPrice: {
				Selector: `div.pli-price span[data-auto-test-id*="Display.Price"]`,
				Level:    LevelItem,
			},
			FieldFreeLabel: {
				Selector: `span[data-auto-test-id="RAP2.PurchaseList.PLI.Label.Free"]`,
				Level:    LevelItem,
			},
			FieldSubscriptionLink: {
				Selector: `a.pli-manage-subscription-link[data-auto-test-id="RAP2.PurchaseList.PLI.Button.ManageSubscriptions"]`,
				Attr:     "href",
				Level:    LevelItem,
			},
		},
	}
}
