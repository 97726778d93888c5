package sql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/dbrest/dialect"
)

// ScanMaps reads all remaining rows into maps keyed by column name and
// closes rows.
func ScanMaps(rows *Rows) ([]map[string]any, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: columns: %w", err)
	}
	var maps []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		m := make(map[string]any, len(columns))
		for i, c := range columns {
			m[c] = values[i]
		}
		maps = append(maps, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: rows: %w", err)
	}
	return maps, nil
}

// QueryMaps runs query on eq and returns its rows as maps.
func QueryMaps(ctx context.Context, eq dialect.ExecQuerier, query string, args []any) ([]map[string]any, error) {
	rows := &Rows{}
	if err := eq.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	return ScanMaps(rows)
}

// String returns a scanned value as text. NULL is "".
func String(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int returns a scanned value as an int. NULL and non numeric values are 0.
func Int(v any) int {
	switch v := v.(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int16:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case nil:
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(String(v)))
	if err != nil {
		return 0
	}
	return n
}
