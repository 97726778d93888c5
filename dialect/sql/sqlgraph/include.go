package sqlgraph

import (
	"strings"

	"github.com/syssam/dbrest/schema"
)

// Includer resolves include and exclude selections against the columns of
// a table. A selection entry is "table.column", a bare "column" of the
// primary table, or either with "*" as wildcard ("*.*" selects every column
// of every table). Mandatory columns survive any selection.
type Includer struct {
	include   []string
	exclude   []string
	mandatory map[string]map[string]struct{}
}

// NewIncluder returns an Includer of the given include and exclude entries.
// Entries may hold comma separated lists. Nil include selects everything.
func NewIncluder(include, exclude []string) *Includer {
	return &Includer{
		include:   split(include),
		exclude:   split(exclude),
		mandatory: make(map[string]map[string]struct{}),
	}
}

func split(entries []string) []string {
	var out []string
	for _, e := range entries {
		for _, part := range strings.Split(e, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Mandatory marks a column that must be selected regardless of the
// include and exclude entries.
func (in *Includer) Mandatory(table, column string) {
	cols, ok := in.mandatory[table]
	if !ok {
		cols = make(map[string]struct{})
		in.mandatory[table] = cols
	}
	cols[column] = struct{}{}
}

func (in *Includer) isMandatory(table, column string) bool {
	_, ok := in.mandatory[table][column]
	return ok
}

// Columns returns the selected column names of t in table order.
// primary reports if t is the table the request is about, the only
// table bare column entries apply to. An empty selection falls back to
// the primary key.
func (in *Includer) Columns(t *schema.Table, primary bool) []string {
	var names []string
	for _, c := range t.Columns {
		if in.isMandatory(t.Name, c.Name) || in.requested(t.Name, c.Name, primary) {
			names = append(names, c.Name)
		}
	}
	if len(names) == 0 && t.HasPrimaryKey() {
		names = []string{t.PrimaryKey().Name}
	}
	return names
}

// Requested reports if a column is selected by the include and exclude
// entries alone.
func (in *Includer) Requested(t *schema.Table, column string, primary bool) bool {
	return in.requested(t.Name, column, primary)
}

func (in *Includer) requested(table, column string, primary bool) bool {
	if in.include != nil && !matchAny(in.include, table, column, primary) {
		return false
	}
	return !matchAny(in.exclude, table, column, primary)
}

func matchAny(entries []string, table, column string, primary bool) bool {
	for _, e := range entries {
		if match(e, table, column, primary) {
			return true
		}
	}
	return false
}

func match(entry, table, column string, primary bool) bool {
	t, c, ok := strings.Cut(entry, ".")
	if !ok {
		if !primary {
			return false
		}
		t, c = table, entry
	}
	return (t == "*" || t == table) && (c == "*" || c == column)
}

// Strip removes the mandatory columns of t that the entries did not
// request from records. Foreign key columns holding an embedded record
// are kept.
func (in *Includer) Strip(t *schema.Table, primary bool, records []Record) {
	var drop []string
	for name := range in.mandatory[t.Name] {
		if !in.requested(t.Name, name, primary) {
			drop = append(drop, name)
		}
	}
	if len(drop) == 0 {
		return
	}
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, name := range drop {
			if _, embedded := r[name].(Record); !embedded {
				delete(r, name)
			}
		}
	}
}
