package categories

import (
	"github.com/holvikit/holvi/internal/jsonobject"
)

// Connection is the part of the Holvi connection the categories API needs.
type Connection interface {
	BaseURLFmt() string
	Pool() string
}

// API is the handle categories are resolved against.
type API struct {
	conn Connection
}

// NewAPI creates a categories API on top of a connection.
func NewAPI(conn Connection) *API {
	return &API{conn: conn}
}

// Pool returns the pool the categories belong to.
func (a *API) Pool() string {
	if a == nil || a.conn == nil {
		return ""
	}
	return a.conn.Pool()
}

// Category is a classification reference attached to an invoice item.
type Category interface {
	Code() string
}

// Factory builds a Category from its raw document, e.g. {"code": "..."}.
type Factory func(api *API, raw map[string]any) Category

// IncomeCategory references a Holvi income category by code.
type IncomeCategory struct {
	*jsonobject.Object
}

// NewIncomeCategory wraps a raw income category document.
func NewIncomeCategory(api *API, raw map[string]any) *IncomeCategory {
	obj := jsonobject.New(raw)
	obj.SetAttr("_api", api)
	return &IncomeCategory{Object: obj}
}

// Code returns the category code.
func (c *IncomeCategory) Code() string {
	return c.String("code")
}

// Income is the default Factory.
func Income(api *API, raw map[string]any) Category {
	return NewIncomeCategory(api, raw)
}
