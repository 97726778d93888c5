package sqlgraph

import (
	"github.com/syssam/dbrest/dialect/sql"
)

// KeyFunc extracts the batch key of a record, or "" when it has none.
type KeyFunc func(Record) string

// Key normalizes a column value into a batch key. Drivers disagree on the
// Go type of the same value ([]byte, string, int64), keys do not.
func Key(v any) string {
	return sql.String(v)
}

// ColumnKey returns a KeyFunc reading the named column.
func ColumnKey(column string) KeyFunc {
	return func(r Record) string {
		v, ok := r[column]
		if !ok || v == nil {
			return ""
		}
		return Key(v)
	}
}

func keys(values []any) []string {
	ks := make([]string, len(values))
	for i, v := range values {
		ks[i] = Key(v)
	}
	return ks
}

// OrderByKeys reorders records to match the order of the requested keys.
// Missing records are nil entries.
func OrderByKeys(keys []string, records []Record, keyFn KeyFunc) []Record {
	lookup := IndexByKey(records, keyFn)
	result := make([]Record, len(keys))
	for i, k := range keys {
		result[i] = lookup[k]
	}
	return result
}

// IndexByKey maps records by key. The first record of a key wins.
func IndexByKey(records []Record, keyFn KeyFunc) map[string]Record {
	index := make(map[string]Record, len(records))
	for _, r := range records {
		k := keyFn(r)
		if _, ok := index[k]; !ok && k != "" {
			index[k] = r
		}
	}
	return index
}

// GroupByKey groups records sharing a key, such as the rows of a has-many
// relation sharing a foreign key value. Records without key are dropped.
func GroupByKey(records []Record, keyFn KeyFunc) map[string][]Record {
	groups := make(map[string][]Record)
	for _, r := range records {
		if k := keyFn(r); k != "" {
			groups[k] = append(groups[k], r)
		}
	}
	return groups
}

// DistinctValues returns the distinct non-nil values of a column in the
// order they first appear.
func DistinctValues(records []Record, column string) []any {
	seen := make(map[string]struct{}, len(records))
	var values []any
	for _, r := range records {
		v, ok := r[column]
		if !ok || v == nil {
			continue
		}
		k := Key(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		values = append(values, v)
	}
	return values
}
