// Package query builds parameterized PostgreSQL SELECT statements from a
// declarative column projection.
package query

import (
	"fmt"
	"slices"
	"strings"
)

// ProjectionMap maps view property names to qualified column references
// (alias.column) and records the FROM clause they are selected from. Build it
// once at package init; it is read-only afterwards.
type ProjectionMap struct {
	table   string
	alias   string
	current string
	joins   []string
	byView  map[string]string
	ordered []string
}

// NewProjectionMap starts a projection over schema.table aliased as alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		table:   schema + "." + table + " " + alias,
		alias:   alias,
		current: alias,
		byView:  map[string]string{},
	}
}

// Project selects column under viewName, qualified by the alias of the most
// recent Join or the base alias. Reusing a viewName panics.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	if _, dup := p.byView[viewName]; dup {
		panic(fmt.Sprintf("query: view name %q projected twice", viewName))
	}
	qualified := p.current + "." + column
	p.byView[viewName] = qualified
	p.ordered = append(p.ordered, qualified)
	return p
}

// Join appends "kind schema.table alias ON on" to the FROM clause and makes
// alias the qualifier for subsequent Project calls.
func (p *ProjectionMap) Join(schema, table, alias, kind, on string) *ProjectionMap {
	p.joins = append(p.joins, kind+" "+schema+"."+table+" "+alias+" ON "+on)
	p.current = alias
	return p
}

// Alias returns the base table alias.
func (p *ProjectionMap) Alias() string { return p.alias }

// Table returns "schema.table alias" for the base table.
func (p *ProjectionMap) Table() string { return p.table }

// From returns the base table followed by any joins.
func (p *ProjectionMap) From() string {
	return strings.Join(append([]string{p.table}, p.joins...), " ")
}

// Column returns the qualified column for viewName, or viewName itself when unmapped.
func (p *ProjectionMap) Column(viewName string) string {
	if col, ok := p.byView[viewName]; ok {
		return col
	}
	return viewName
}

// Lookup returns the qualified column for viewName and whether it is mapped.
func (p *ProjectionMap) Lookup(viewName string) (string, bool) {
	col, ok := p.byView[viewName]
	return col, ok
}

// Columns returns the select list in projection order.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.ordered, ", ")
}

// ColumnList returns a copy of the select list in projection order.
func (p *ProjectionMap) ColumnList() []string {
	return slices.Clone(p.ordered)
}
