package inspect

import (
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/dbrest/schema"
)

// InferForeignKeys guesses the foreign keys of a view from its column
// names: a column named "<table>_id", or "<singular table>_id", references
// that table. The longest matching table wins. Columns that already
// reference a table and tables that are not views are left untouched.
// It returns the inferred columns.
func InferForeignKeys(t *schema.Table, tables []string) []*schema.Column {
	if !t.IsView() {
		return nil
	}
	var inferred []*schema.Column
	for _, c := range t.Columns {
		if c.IsForeignKey() || c.PK {
			continue
		}
		if ref := referencedTable(c.Name, t.Name, tables); ref != "" {
			c.FK = ref
			inferred = append(inferred, c)
		}
	}
	return inferred
}

func referencedTable(column, self string, tables []string) string {
	var best string
	for _, name := range tables {
		if name == self || len(name) <= len(best) {
			continue
		}
		for _, prefix := range []string{name, inflect.Singularize(name)} {
			if suffixMatch(column, prefix+"_id") {
				best = name
				break
			}
		}
	}
	return best
}

// suffixMatch reports if s ends with suffix at a word boundary.
func suffixMatch(s, suffix string) bool {
	if !strings.HasSuffix(s, suffix) {
		return false
	}
	rest := s[:len(s)-len(suffix)]
	return rest == "" || strings.HasSuffix(rest, "_")
}
