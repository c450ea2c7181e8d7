package query

import (
	"reflect"
	"strconv"
	"strings"
)

// SortField is one ORDER BY term. Field is a projection view name.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields parses a comma-separated sort string such as "name,-createdAt".
// A leading "-" selects descending order. Empty input yields nil.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// predicate renders a single WHERE term. bind registers an argument and
// returns its positional placeholder.
type predicate func(bind func(arg any) string) string

// Builder assembles SELECT statements over a ProjectionMap. Filters whose
// value is nil or empty are skipped, so optional request filters can be
// chained unconditionally.
type Builder struct {
	projection  *ProjectionMap
	predicates  []predicate
	sort        []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder. defaultSort applies when OrderByFields is
// never called or is given no fields.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// OrderByFields replaces the default sort order.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.sort = fields
	return b
}

// WhereEquals matches field = value.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	col := b.projection.Column(field)
	return b.where(func(bind func(any) string) string {
		return col + " = " + bind(value)
	})
}

// WhereContains matches field ILIKE %value%. LIKE wildcards in value match literally.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.WhereSearch(value, field)
}

// WhereIn matches field IN (values...).
func (b *Builder) WhereIn(field string, values []any) *Builder {
	if len(values) == 0 {
		return b
	}
	col := b.projection.Column(field)
	return b.where(func(bind func(any) string) string {
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = bind(v)
		}
		return col + " IN (" + strings.Join(marks, ", ") + ")"
	})
}

// WhereNull matches field IS NULL when *isNull is true and IS NOT NULL when false.
func (b *Builder) WhereNull(field string, isNull *bool) *Builder {
	if isNull == nil {
		return b
	}
	clause := b.projection.Column(field) + " IS NOT NULL"
	if *isNull {
		clause = b.projection.Column(field) + " IS NULL"
	}
	return b.where(func(func(any) string) string { return clause })
}

// WhereSearch matches when any of fields contains search, case-insensitively.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}
	pattern := "%" + escapeLike(*search) + "%"
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = b.projection.Column(f)
	}
	return b.where(func(bind func(any) string) string {
		terms := make([]string, len(cols))
		for i, col := range cols {
			terms[i] = col + " ILIKE " + bind(pattern)
		}
		if len(terms) == 1 {
			return terms[0]
		}
		return "(" + strings.Join(terms, " OR ") + ")"
	})
}

// Build returns an ordered SELECT over every matching row.
func (b *Builder) Build() (string, []any) {
	return b.selectSQL(true, "")
}

// BuildCount returns a COUNT(*) over the matching rows.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.whereSQL()
	return "SELECT COUNT(*) FROM " + b.projection.From() + where, args
}

// BuildPage returns an ordered SELECT restricted to one 1-based page.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	offset := (page - 1) * pageSize
	return b.selectSQL(true, " LIMIT "+strconv.Itoa(pageSize)+" OFFSET "+strconv.Itoa(offset))
}

// BuildSingle selects the row whose idField equals id, ignoring other filters.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	single := NewBuilder(b.projection).WhereEquals(idField, id)
	return single.selectSQL(false, "")
}

// BuildSingleOrNull selects at most one matching row, unordered.
func (b *Builder) BuildSingleOrNull() (string, []any) {
	return b.selectSQL(false, " LIMIT 1")
}

func (b *Builder) where(p predicate) *Builder {
	b.predicates = append(b.predicates, p)
	return b
}

func (b *Builder) selectSQL(ordered bool, suffix string) (string, []any) {
	where, args := b.whereSQL()
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.projection.Columns())
	sb.WriteString(" FROM ")
	sb.WriteString(b.projection.From())
	sb.WriteString(where)
	if ordered {
		sb.WriteString(b.orderSQL())
	}
	sb.WriteString(suffix)
	return sb.String(), args
}

func (b *Builder) whereSQL() (string, []any) {
	if len(b.predicates) == 0 {
		return "", nil
	}

	var args []any
	bind := func(arg any) string {
		args = append(args, arg)
		return "$" + strconv.Itoa(len(args))
	}

	terms := make([]string, len(b.predicates))
	for i, p := range b.predicates {
		terms[i] = p(bind)
	}
	return " WHERE " + strings.Join(terms, " AND "), args
}

// orderSQL resolves sort fields through the projection; unknown names are
// dropped so request input never reaches the statement text.
func (b *Builder) orderSQL() string {
	fields := b.sort
	if len(fields) == 0 {
		fields = b.defaultSort
	}

	var terms []string
	for _, f := range fields {
		col, ok := b.projection.Lookup(f.Field)
		if !ok {
			continue
		}
		if f.Descending {
			terms = append(terms, col+" DESC")
		} else {
			terms = append(terms, col+" ASC")
		}
	}

	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
