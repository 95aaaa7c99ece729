package invoicing

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/holvikit/holvi/internal/categories"
)

// Connection performs HTTP verbs against Holvi and returns decoded JSON
// (map[string]any or []any). Transport and HTTP failures are returned as-is.
type Connection interface {
	BaseURLFmt() string
	Pool() string
	Get(ctx context.Context, url string) (any, error)
	Put(ctx context.Context, url string, payload any) (any, error)
	Post(ctx context.Context, url string, payload any) (any, error)
}

// API handles invoice operations scoped to one pool.
type API struct {
	conn        Connection
	categories  *categories.API
	baseURL     string
	now         func() time.Time
	newCategory categories.Factory

	currency string
	dueDays  int
}

// Option configures an API.
type Option func(*API)

// WithClock sets the clock used to date new drafts.
func WithClock(now func() time.Time) Option {
	return func(a *API) { a.now = now }
}

// WithCategoryFactory sets the default category factory for items.
func WithCategoryFactory(f categories.Factory) Option {
	return func(a *API) { a.newCategory = f }
}

// WithDraftDefaults sets the currency and payment term of new drafts.
// Empty or negative values keep the built-in defaults.
func WithDraftDefaults(currency string, dueDays int) Option {
	return func(a *API) {
		if currency != "" {
			a.currency = currency
		}
		if dueDays >= 0 {
			a.dueDays = dueDays
		}
	}
}

// NewAPI creates an invoice API on top of conn.
func NewAPI(conn Connection, opts ...Option) *API {
	a := &API{
		conn:        conn,
		categories:  categories.NewAPI(conn),
		baseURL:     conn.BaseURLFmt() + "pool/" + conn.Pool() + "/invoice/",
		now:         time.Now,
		newCategory: categories.Income,
		currency:    defaultCurrency,
		dueDays:     defaultDueDays,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BaseURL returns "<root>pool/<pool>/invoice/".
func (a *API) BaseURL() string { return a.baseURL }

// Categories returns the categories API items resolve their categories against.
func (a *API) Categories() *categories.API { return a.categories }

// Draft returns a fresh invoice with default values.
func (a *API) Draft() *Invoice {
	inv, err := NewInvoice(a, nil)
	if err != nil {
		// The default document always parses.
		panic(err)
	}
	return inv
}

// ListInvoices returns all invoices in the pool, in server order.
func (a *API) ListInvoices(ctx context.Context) ([]*Invoice, error) {
	resp, err := a.conn.Get(ctx, a.baseURL)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	docs, ok := resp.([]any)
	if !ok {
		return nil, fmt.Errorf("listing invoices: unexpected response type %T", resp)
	}

	invoices := make([]*Invoice, 0, len(docs))
	for i, d := range docs {
		doc, ok := d.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invoice %d: unexpected element type %T", i, d)
		}
		inv, err := NewInvoice(a, doc)
		if err != nil {
			return nil, fmt.Errorf("invoice %d: %w", i, err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

// GetInvoice fetches one invoice by code.
func (a *API) GetInvoice(ctx context.Context, code string) (*Invoice, error) {
	resp, err := a.conn.Get(ctx, a.invoiceURL(code))
	if err != nil {
		return nil, fmt.Errorf("getting invoice %s: %w", code, err)
	}
	inv, err := a.wrap(resp)
	if err != nil {
		return nil, fmt.Errorf("getting invoice %s: %w", code, err)
	}
	return inv, nil
}

// CreateInvoice is not supported; use Invoice.Save.
func (a *API) CreateInvoice(_ context.Context, _ *Invoice) (*Invoice, error) {
	return nil, fmt.Errorf("create invoice via API: %w", ErrNotImplemented)
}

func (a *API) invoiceURL(code string) string {
	return a.baseURL + url.PathEscape(code) + "/"
}

func (a *API) wrap(resp any) (*Invoice, error) {
	doc, ok := resp.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected response type %T", resp)
	}
	return NewInvoice(a, doc)
}
