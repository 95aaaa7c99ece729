package render

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holvikit/holvi/internal/invoicing"
)

type nopConn struct{}

func (nopConn) BaseURLFmt() string { return "https://holvi.test/api/" }
func (nopConn) Pool() string       { return "acme" }
func (nopConn) Get(_ context.Context, _ string) (any, error) {
	return nil, nil
}
func (nopConn) Put(_ context.Context, _ string, _ any) (any, error) {
	return nil, nil
}
func (nopConn) Post(_ context.Context, _ string, _ any) (any, error) {
	return nil, nil
}

func draft(t *testing.T) *invoicing.Invoice {
	t.Helper()
	api := invoicing.NewAPI(nopConn{}, invoicing.WithClock(func() time.Time {
		return time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	}))
	inv := api.Draft()
	inv.Subject = "Março consulting"
	inv.Number = "1042"
	inv.Receiver = invoicing.Receiver{Name: "Äijä Oy", City: "Helsinki", Postcode: "00100"}
	inv.AddItem("Design work", decimal.RequireFromString("100.00")).Gross = decimal.RequireFromString("124.00")
	inv.AddItem("Hosting", decimal.RequireFromString("10.00"))
	return inv
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	err := PDF(&buf, draft(t))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Greater(t, buf.Len(), 500)
}

func TestPDF_NoItemsNoReceiver(t *testing.T) {
	inv := draft(t)
	inv.Items = nil
	inv.Receiver = invoicing.Receiver{}

	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, inv))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestReceiverLines(t *testing.T) {
	lines := receiverLines(invoicing.Receiver{
		Name:     "Acme Oy",
		Street:   "Mannerheimintie 1",
		Postcode: "00100",
		City:     "Helsinki",
		Email:    "billing@acme.test",
	})
	assert.Equal(t, []string{"Acme Oy", "Mannerheimintie 1", "00100 Helsinki", "billing@acme.test"}, lines)
	assert.Empty(t, receiverLines(invoicing.Receiver{}))
}
