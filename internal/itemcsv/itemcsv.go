package itemcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// Header is the expected first row of an item CSV.
const Header = "description,net,gross,category"

const (
	numFields   = 4
	colDesc     = 0
	colNet      = 1
	colGross    = 2
	colCategory = 3
)

// Row is one invoice line read from CSV. A zero Gross means unset.
type Row struct {
	Description string
	Net         decimal.Decimal
	Gross       decimal.Decimal
	Category    string
}

// Read parses an item CSV. Gross and category may be left empty.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading item CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("reading item CSV: missing header")
	}
	if got := strings.ToLower(strings.Join(records[0], ",")); got != Header {
		return nil, fmt.Errorf("reading item CSV: unexpected header %q, want %q", got, Header)
	}

	var rows []Row
	for i, rec := range records[1:] {
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (Row, error) {
	desc := strings.TrimSpace(rec[colDesc])
	if desc == "" {
		return Row{}, errors.New("missing description")
	}

	net, err := decimal.NewFromString(strings.TrimSpace(rec[colNet]))
	if err != nil {
		return Row{}, fmt.Errorf("parsing net %q: %w", rec[colNet], err)
	}

	var gross decimal.Decimal
	if s := strings.TrimSpace(rec[colGross]); s != "" {
		gross, err = decimal.NewFromString(s)
		if err != nil {
			return Row{}, fmt.Errorf("parsing gross %q: %w", rec[colGross], err)
		}
	}

	return Row{
		Description: desc,
		Net:         net,
		Gross:       gross,
		Category:    strings.TrimSpace(rec[colCategory]),
	}, nil
}
