package page

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Level says where a field is looked up during validation.
type Level string

const (
	// LevelContainer fields are resolved inside a purchase container.
	LevelContainer Level = "container"
	// LevelItem fields are resolved inside a single purchased line.
	LevelItem Level = "item"
)

// Semantic field names used by the extractor.
const (
	FieldHeader           = "purchaseHeader"
	FieldDate             = "date"
	FieldOrderID          = "orderId"
	FieldOrderTotal       = "orderTotal"
	FieldDetails          = "purchaseDetails"
	FieldNoDetail         = "noInvoice"
	FieldToggle           = "disclosure"
	FieldDocumentNumber   = "documentNumber"
	FieldPaymentMethod    = "paymentMethod"
	FieldBillingName      = "billingName"
	FieldItemList         = "itemList"
	FieldItem             = "item"
	FieldPaidItems        = "applicableItems"
	FieldFreeItems        = "freeItems"
	FieldItemName         = "itemName"
	FieldPublisher        = "publisher"
	FieldItemDate         = "itemDateTime"
	FieldDescription      = "description"
	FieldPrice            = "price"
	FieldFreeLabel        = "freeLabel"
	FieldSubscriptionLink = "manageSubscription"
)

// walkerFields are the entries the extraction walk reads; a schema missing
// any of them cannot drive an export.
var walkerFields = []string{
	FieldDate, FieldOrderID, FieldOrderTotal,
	FieldDetails, FieldNoDetail, FieldToggle,
	FieldDocumentNumber, FieldPaymentMethod, FieldBillingName,
	FieldItem, FieldPaidItems, FieldFreeItems,
	FieldItemName, FieldPublisher, FieldItemDate, FieldDescription,
	FieldPrice, FieldSubscriptionLink,
}

// Field describes one element the page is expected to expose.
type Field struct {
	Selector string `yaml:"selector" json:"selector"`
	Required bool   `yaml:"required" json:"required"`
	Level    Level  `yaml:"level" json:"level"`
	// Attr, when set, makes the field's value the named attribute instead
	// of the element's text.
	Attr string `yaml:"attr,omitempty" json:"attr,omitempty"`
	// Pattern is the expected content shape, checked during validation.
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`

	re *regexp.Regexp
}

// Matches reports whether text fits the field's content pattern. Fields
// without a pattern match everything.
func (f *Field) Matches(text string) bool {
	if f.re == nil {
		return true
	}
	return f.re.MatchString(text)
}

// Schema is the declarative description of the purchase-history page.
type Schema struct {
	Version   string            `yaml:"version" json:"version"`
	Container string            `yaml:"container" json:"container"`
	Fields    map[string]*Field `yaml:"fields" json:"fields"`
}

// Field returns the named entry or nil.
func (s *Schema) Field(name string) *Field {
	if s == nil {
		return nil
	}
	return s.Fields[name]
}

// Selector returns the named entry's selector, or "" when the schema does
// not define it.
func (s *Schema) Selector(name string) string {
	if f := s.Field(name); f != nil {
		return f.Selector
	}
	return ""
}

// Required returns the names of mandatory fields at the given level in a
// stable order.
func (s *Schema) Required(level Level) []string {
	var names []string
	for name, f := range s.Fields {
		if f.Required && f.Level == level {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Compile checks the schema is usable and compiles its content patterns.
func (s *Schema) Compile() error {
	if strings.TrimSpace(s.Container) == "" {
		return errors.New("schema has no container selector")
	}
	for _, name := range walkerFields {
		if s.Fields[name] == nil {
			return errors.Newf("schema is missing field %q", name)
		}
	}
	for name, f := range s.Fields {
		if f == nil || strings.TrimSpace(f.Selector) == "" {
			return errors.Newf("field %q has no selector", name)
		}
		if f.Level == "" {
			f.Level = LevelContainer
		}
		if f.Level != LevelContainer && f.Level != LevelItem {
			return errors.Newf("field %q has unknown level %q", name, f.Level)
		}
		f.re = nil
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return errors.Wrapf(err, "field %q has an invalid pattern", name)
			}
			f.re = re
		}
	}
	return nil
}
