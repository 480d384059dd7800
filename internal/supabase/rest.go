package supabase

import (
	"context"

	"github.com/supabase-community/postgrest-go"
)

const returnRepresentation = "representation"

// Filter narrows a table read or write. Eq columns are matched exactly.
type Filter struct {
	Columns    string
	Eq         map[string]string
	OrderBy    string
	Descending bool
	Limit      int
}

// ByID matches a single row by primary key.
func ByID(id string) Filter {
	return Filter{Eq: map[string]string{"id": id}}
}

func (f Filter) apply(b *postgrest.FilterBuilder) *postgrest.FilterBuilder {
	for col, val := range f.Eq {
		b = b.Eq(col, val)
	}
	if f.OrderBy != "" {
		b = b.Order(f.OrderBy, &postgrest.OrderOpts{Ascending: !f.Descending})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit, "")
	}
	return b
}

func (f Filter) columns() string {
	if f.Columns == "" {
		return "*"
	}
	return f.Columns
}

// Select reads rows of table into out, which must point to a slice.
func (c *Client) Select(ctx context.Context, token, table string, f Filter, out any) error {
	rt := &boundTransport{}
	return c.call(ctx, "select", rt, func() error {
		q := c.rest(token, rt).From(table).Select(f.columns(), "", false)
		_, err := f.apply(q).ExecuteTo(out)
		return err
	})
}

// Insert adds row to table and decodes the stored rows into out.
func (c *Client) Insert(ctx context.Context, token, table string, row any, out any) error {
	rt := &boundTransport{}
	return c.call(ctx, "insert", rt, func() error {
		_, err := c.rest(token, rt).From(table).
			Insert(row, false, "", returnRepresentation, "").
			ExecuteTo(out)
		return err
	})
}

// Update writes cols to the rows matched by f and decodes the changed rows into out.
func (c *Client) Update(ctx context.Context, token, table string, cols map[string]any, f Filter, out any) error {
	rt := &boundTransport{}
	return c.call(ctx, "update", rt, func() error {
		q := c.rest(token, rt).From(table).Update(cols, returnRepresentation, "")
		_, err := f.apply(q).ExecuteTo(out)
		return err
	})
}

// Delete removes the rows matched by f and decodes the removed rows into out.
func (c *Client) Delete(ctx context.Context, token, table string, f Filter, out any) error {
	rt := &boundTransport{}
	return c.call(ctx, "delete", rt, func() error {
		q := c.rest(token, rt).From(table).Delete(returnRepresentation, "")
		_, err := f.apply(q).ExecuteTo(out)
		return err
	})
}
