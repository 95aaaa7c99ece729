package invoicing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/holvikit/holvi/internal/jsonobject"
)

// DateLayout is the wire format of issue_date and due_date.
const DateLayout = "2006-01-02"

const (
	defaultCurrency = "EUR"
	defaultType     = "outbound"
	defaultDueDays  = 14
)

// invoiceKeys are the top-level fields Holvi accepts on create and update.
var invoiceKeys = []string{"currency", "issue_date", "due_date", "items", "receiver", "type", "number", "subject"}

// Receiver is the invoice recipient address. Values are not validated.
type Receiver struct {
	Name     string
	Email    string
	Street   string
	City     string
	Postcode string
	Country  string
}

// Invoice is a Holvi invoice. The typed fields are the working copy; the
// raw document keeps whatever else Holvi returned.
type Invoice struct {
	obj *jsonobject.Object
	api *API

	Code      string // empty until Holvi assigns one
	Number    string
	Subject   string
	Currency  string
	Type      string
	Receiver  Receiver
	IssueDate time.Time
	DueDate   time.Time
	Items     []*Item
}

// NewInvoice wraps a Holvi invoice document. A nil raw creates a fresh draft.
func NewInvoice(api *API, raw map[string]any) (*Invoice, error) {
	if raw == nil {
		raw = api.defaultDocument()
	}
	inv := &Invoice{obj: jsonobject.New(raw), api: api}
	inv.obj.SetAttr("_api", api)
	inv.obj.SetAttr("_valid_keys", invoiceKeys)
	if err := inv.mapIn(); err != nil {
		return nil, err
	}
	return inv, nil
}

func (a *API) defaultDocument() map[string]any {
	today := a.now().Format(DateLayout)
	issue, _ := time.Parse(DateLayout, today)
	return map[string]any{
		"code":       nil,
		"currency":   a.currency,
		"subject":    "",
		"due_date":   issue.AddDate(0, 0, a.dueDays).Format(DateLayout),
		"issue_date": today,
		"number":     nil,
		"type":       defaultType,
		"receiver": map[string]any{
			"name":     "",
			"email":    "",
			"street":   "",
			"city":     "",
			"postcode": "",
			"country":  "",
		},
		"items": []any{},
	}
}

func (inv *Invoice) mapIn() error {
	o := inv.obj
	inv.Code = scalarString(o.Raw()["code"])
	inv.Number = scalarString(o.Raw()["number"])
	inv.Subject = scalarString(o.Raw()["subject"])
	inv.Currency = scalarString(o.Raw()["currency"])
	inv.Type = scalarString(o.Raw()["type"])

	if r := o.Map("receiver"); r != nil {
		inv.Receiver = Receiver{
			Name:     scalarString(r["name"]),
			Email:    scalarString(r["email"]),
			Street:   scalarString(r["street"]),
			City:     scalarString(r["city"]),
			Postcode: scalarString(r["postcode"]),
			Country:  scalarString(r["country"]),
		}
	}

	var err error
	if inv.IssueDate, err = parseDate(o, "issue_date"); err != nil {
		return err
	}
	if inv.DueDate, err = parseDate(o, "due_date"); err != nil {
		return err
	}

	inv.Items = nil
	switch items := o.Raw()["items"].(type) {
	case nil:
	case []any:
		for i, raw := range items {
			doc, ok := raw.(map[string]any)
			if !ok {
				return fmt.Errorf("item %d: unexpected type %T", i, raw)
			}
			item, err := NewItem(inv, doc)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			inv.Items = append(inv.Items, item)
		}
	default:
		return fmt.Errorf("items: unexpected type %T", items)
	}
	return nil
}

func parseDate(o *jsonobject.Object, field string) (time.Time, error) {
	v, err := o.Get(field)
	if err != nil {
		return time.Time{}, err
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("parsing %s: unexpected type %T", field, v)
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return d, nil
}

// mapOut writes the typed fields back into the raw document. Items keep
// their full documents here; the write form is only built by ToHolviDict.
func (inv *Invoice) mapOut() {
	o := inv.obj
	items := make([]any, 0, len(inv.Items))
	for _, item := range inv.Items {
		item.mapOut()
		items = append(items, jsonobject.Clone(item.obj.Raw()))
	}
	o.Set("items", items)
	o.Set("issue_date", inv.IssueDate.Format(DateLayout))
	o.Set("due_date", inv.DueDate.Format(DateLayout))
	syncScalar(o, "code", inv.Code, nullable(inv.Code))
	syncScalar(o, "number", inv.Number, nullable(inv.Number))
	syncScalar(o, "subject", inv.Subject, inv.Subject)
	syncScalar(o, "currency", inv.Currency, inv.Currency)
	syncScalar(o, "type", inv.Type, inv.Type)

	if !o.Has("receiver") && inv.Receiver == (Receiver{}) {
		return
	}
	receiver := make(map[string]any)
	for k, v := range o.Map("receiver") {
		receiver[k] = v
	}
	receiver["name"] = inv.Receiver.Name
	receiver["email"] = inv.Receiver.Email
	receiver["street"] = inv.Receiver.Street
	receiver["city"] = inv.Receiver.City
	receiver["postcode"] = inv.Receiver.Postcode
	receiver["country"] = inv.Receiver.Country
	o.Set("receiver", receiver)
}

// syncScalar writes v only when s no longer matches the document's value
// for field. Untouched fields keep their JSON type and absent empty fields
// stay absent.
func syncScalar(o *jsonobject.Object, field, s string, v any) {
	if s == scalarString(o.Raw()[field]) {
		return
	}
	o.Set(field, v)
}

// validKeys returns the write whitelist stored on o.
func validKeys(o *jsonobject.Object) []string {
	v, err := o.Get("_valid_keys")
	if err != nil {
		return nil
	}
	keys, _ := v.([]string)
	return keys
}

// ToHolviDict serializes the invoice into the document Holvi accepts on write.
func (inv *Invoice) ToHolviDict() map[string]any {
	inv.mapOut()
	out := inv.obj.Filter(validKeys(inv.obj))
	if _, ok := out["items"]; ok {
		items := make([]any, 0, len(inv.Items))
		for _, item := range inv.Items {
			items = append(items, item.ToHolviDict())
		}
		out["items"] = items
	}
	return out
}

// Field reads a field of the invoice document, or an internal attribute
// when name starts with "_".
func (inv *Invoice) Field(name string) (any, error) {
	inv.mapOut()
	return inv.obj.Get(name)
}

// Document returns a deep copy of the underlying document, read-only fields
// of the invoice and its items included. Typed field edits show up once
// ToHolviDict or Field has run.
func (inv *Invoice) Document() map[string]any {
	return jsonobject.Clone(inv.obj.Raw()).(map[string]any)
}

// AddItem appends a new item with the given description and net amount.
func (inv *Invoice) AddItem(description string, net decimal.Decimal) *Item {
	item, err := NewItem(inv, map[string]any{"description": description})
	if err != nil {
		// An item document without detailed_price always parses.
		panic(err)
	}
	item.Net = net
	inv.Items = append(inv.Items, item)
	return item
}

// Total sums item gross amounts, using net where gross is unset.
func (inv *Invoice) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range inv.Items {
		total = total.Add(item.grossOrNet())
	}
	return total
}

// Save creates the invoice when it has no code and updates it otherwise.
// The returned invoice reflects what Holvi stored and supersedes inv.
func (inv *Invoice) Save(ctx context.Context) (*Invoice, error) {
	if len(inv.Items) == 0 {
		return nil, &Error{Msg: "No items"}
	}
	if inv.Subject == "" {
		return nil, &Error{Msg: "No subject"}
	}
	payload := inv.ToHolviDict()

	var (
		resp any
		err  error
	)
	if inv.Code != "" {
		resp, err = inv.api.conn.Put(ctx, inv.api.invoiceURL(inv.Code), payload)
		if err != nil {
			return nil, fmt.Errorf("updating invoice %s: %w", inv.Code, err)
		}
	} else {
		resp, err = inv.api.conn.Post(ctx, inv.api.baseURL, payload)
		if err != nil {
			return nil, fmt.Errorf("creating invoice: %w", err)
		}
	}

	saved, err := inv.api.wrap(resp)
	if err != nil {
		return nil, fmt.Errorf("saving invoice: %w", err)
	}
	return saved, nil
}

// Send marks the invoice as sent. When sendEmail is false Holvi does not
// email the receiver. The response is returned unvalidated and inv is not
// updated; fetch the invoice again to see its new status.
func (inv *Invoice) Send(ctx context.Context, sendEmail bool) (any, error) {
	if inv.Code == "" {
		return nil, &Error{Msg: "No code"}
	}
	payload := map[string]any{
		"mark_as_sent": true,
		"send_email":   sendEmail,
		"active":       true,
	}
	resp, err := inv.api.conn.Put(ctx, inv.api.invoiceURL(inv.Code)+"status/", payload)
	if err != nil {
		return nil, fmt.Errorf("sending invoice %s: %w", inv.Code, err)
	}
	return resp, nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
