package invoicing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type call struct {
	Method  string
	URL     string
	Payload any
}

// fakeConn records calls and answers with canned responses.
type fakeConn struct {
	calls []call
	resp  any
	err   error
}

func (c *fakeConn) BaseURLFmt() string { return "https://holvi.test/api/" }
func (c *fakeConn) Pool() string       { return "acme" }

func (c *fakeConn) Get(_ context.Context, url string) (any, error) {
	c.calls = append(c.calls, call{Method: "GET", URL: url})
	return c.resp, c.err
}

func (c *fakeConn) Put(_ context.Context, url string, payload any) (any, error) {
	c.calls = append(c.calls, call{Method: "PUT", URL: url, Payload: payload})
	return c.resp, c.err
}

func (c *fakeConn) Post(_ context.Context, url string, payload any) (any, error) {
	c.calls = append(c.calls, call{Method: "POST", URL: url, Payload: payload})
	return c.resp, c.err
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 20, 15, 4, 5, 0, time.UTC)
}

func newTestAPI(conn *fakeConn) *API {
	return NewAPI(conn, WithClock(fixedClock))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// sampleDoc is an invoice as Holvi returns it on read.
func sampleDoc() map[string]any {
	return map[string]any{
		"code":       "3a8c1f",
		"currency":   "EUR",
		"subject":    "March consulting",
		"due_date":   "2025-04-03",
		"issue_date": "2025-03-20",
		"number":     "1042",
		"type":       "outbound",
		"status":     "draft",
		"receiver": map[string]any{
			"name":     "Acme Oy",
			"email":    "billing@acme.test",
			"street":   "Mannerheimintie 1",
			"city":     "Helsinki",
			"postcode": "00100",
			"country":  "FI",
		},
		"items": []any{
			map[string]any{
				"description": "Design work",
				"category":    "income-design",
				"product":     nil,
				"detailed_price": map[string]any{
					"net":      "100.00",
					"gross":    "124.00",
					"vat_rate": "24.00",
					"currency": "EUR",
				},
			},
			map[string]any{
				"description": "Hosting",
				"category":    nil,
				"detailed_price": map[string]any{
					"net":      "10.00",
					"gross":    "12.40",
					"vat_rate": "24.00",
					"currency": "EUR",
				},
			},
		},
	}
}
