package invoicing

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/holvikit/holvi/internal/categories"
	"github.com/holvikit/holvi/internal/jsonobject"
)

// itemKeys are the item fields Holvi accepts on create and update.
var itemKeys = []string{"detailed_price", "category", "description"}

// Item is one line of an invoice.
type Item struct {
	obj         *jsonobject.Object
	invoice     *Invoice
	api         *API
	newCategory categories.Factory

	Description string
	Net         decimal.Decimal
	Gross       decimal.Decimal // zero means "same as Net"
	Category    categories.Category
}

// ItemOption configures an Item.
type ItemOption func(*Item)

// WithItemCategoryFactory overrides how the item builds its category reference.
func WithItemCategoryFactory(f categories.Factory) ItemOption {
	return func(it *Item) { it.newCategory = f }
}

// NewItem wraps a raw item document belonging to inv. It does not append
// the item to inv.Items.
func NewItem(inv *Invoice, raw map[string]any, opts ...ItemOption) (*Item, error) {
	it := &Item{
		obj:         jsonobject.New(raw),
		invoice:     inv,
		api:         inv.api,
		newCategory: inv.api.newCategory,
	}
	for _, opt := range opts {
		opt(it)
	}
	it.obj.SetAttr("_invoice", inv)
	it.obj.SetAttr("_valid_keys", itemKeys)
	if err := it.mapIn(); err != nil {
		return nil, err
	}
	return it, nil
}

// Invoice returns the invoice the item belongs to.
func (it *Item) Invoice() *Invoice { return it.invoice }

func (it *Item) mapIn() error {
	o := it.obj
	if len(o.Map("detailed_price")) == 0 {
		o.Set("detailed_price", map[string]any{"net": "0.00", "gross": "0.00"})
	}
	price := o.Map("detailed_price")

	var err error
	if it.Net, err = parseAmount(price["net"]); err != nil {
		return fmt.Errorf("parsing net: %w", err)
	}
	it.Gross = decimal.Zero
	if g, ok := price["gross"]; ok && g != nil {
		if it.Gross, err = parseAmount(g); err != nil {
			return fmt.Errorf("parsing gross: %w", err)
		}
	}

	it.Description = scalarString(o.Raw()["description"])
	if code := scalarString(o.Raw()["category"]); code != "" {
		it.Category = it.newCategory(it.api.categories, map[string]any{"code": code})
	}
	return nil
}

// mapOut writes the typed fields back into the item document. Read-only
// price fields stay in the document.
func (it *Item) mapOut() {
	if it.Gross.IsZero() {
		it.Gross = it.Net
	}

	o := it.obj
	price := make(map[string]any)
	for k, v := range o.Map("detailed_price") {
		price[k] = v
	}
	price["net"] = formatAmount(it.Net)
	price["gross"] = formatAmount(it.Gross)
	o.Set("detailed_price", price)

	if it.Category != nil {
		o.Set("category", it.Category.Code())
	} else if o.Has("category") {
		o.Set("category", nil)
	}
	syncScalar(o, "description", it.Description, it.Description)
}

// ToHolviDict serializes the item into the document Holvi accepts on write.
// Amounts are quantized to two decimal places; vat_rate and currency are
// never sent since Holvi rejects them on write.
func (it *Item) ToHolviDict() map[string]any {
	it.mapOut()
	out := it.obj.Filter(validKeys(it.obj))
	if _, ok := out["detailed_price"]; ok {
		sent := make(map[string]any)
		for k, v := range it.obj.Map("detailed_price") {
			if k == "vat_rate" || k == "currency" {
				continue
			}
			sent[k] = v
		}
		out["detailed_price"] = sent
	}
	return out
}

// Field reads a field of the item document, or an internal attribute when
// name starts with "_".
func (it *Item) Field(name string) (any, error) {
	return it.obj.Get(name)
}

func (it *Item) grossOrNet() decimal.Decimal {
	if it.Gross.IsZero() {
		return it.Net
	}
	return it.Gross
}

func parseAmount(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		return decimal.NewFromString(t)
	case json.Number:
		return decimal.NewFromString(t.String())
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case decimal.Decimal:
		return t, nil
	case nil:
		return decimal.Zero, fmt.Errorf("missing amount")
	default:
		return decimal.Zero, fmt.Errorf("unexpected amount type %T", v)
	}
}

// formatAmount quantizes to cents with half-even rounding.
func formatAmount(d decimal.Decimal) string {
	return d.StringFixedBank(2)
}
