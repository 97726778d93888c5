package service

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect/sql"
	"github.com/syssam/dbrest/querylanguage"
	"github.com/syssam/dbrest/schema"
)

// Query parameter names.
const (
	ParamInclude = "include"
	ParamExclude = "exclude"
	ParamJoin    = "join"
	ParamOrder   = "order"
	ParamPage    = "page"
	ParamSize    = "size"
)

// Params holds the read options of one request.
type Params struct {
	// Include and Exclude select columns ("table.column", "column", "*").
	Include []string
	Exclude []string
	// Join holds comma separated join paths.
	Join []string
	// Order holds "column[,asc|desc]" terms.
	Order []string
	// Page is "n[,size]". Empty disables paging and the total count.
	Page string
	// Size caps the number of returned records.
	Size string
	// Filters maps filter keys ("filter", "filter0-1") to filter tokens.
	Filters map[string][]string
}

// ParamsFromValues reads Params from URL query values.
func ParamsFromValues(v url.Values) Params {
	p := Params{
		Include: v[ParamInclude],
		Exclude: v[ParamExclude],
		Join:    v[ParamJoin],
		Order:   v[ParamOrder],
		Page:    v.Get(ParamPage),
		Size:    v.Get(ParamSize),
	}
	for key, values := range v {
		if _, ok := querylanguage.FilterPath(key); ok {
			if p.Filters == nil {
				p.Filters = make(map[string][]string)
			}
			p.Filters[key] = values
		}
	}
	return p
}

// Page is the resolved window of a list request.
type Page struct {
	Offset int
	// Limit is the row cap, -1 when unbounded.
	Limit int
	// Count reports if the total number of matching records is needed.
	Count bool
}

// Paginate resolves the window of p. "page=n[,size]" selects page n of the
// given size (the default size when omitted, capped at maxSize when positive)
// and requires a total count. Without page the window starts at 0 and is
// bounded by "size" only. Malformed numbers fall back to their defaults.
func Paginate(p Params, size, maxSize int) Page {
	capSize, hasCap := atoi(p.Size)
	if p.Page == "" {
		if hasCap && capSize >= 0 {
			return Page{Limit: capSize}
		}
		return Page{Limit: -1}
	}
	num, rest, _ := strings.Cut(p.Page, ",")
	page, ok := atoi(num)
	if !ok || page < 1 {
		page = 1
	}
	if n, ok := atoi(rest); ok && n > 0 {
		size = n
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	limit := size
	if hasCap && capSize >= 0 && capSize < limit {
		limit = capSize
	}
	return Page{Offset: (page - 1) * size, Limit: limit, Count: true}
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}

// Ordering resolves the ORDER BY terms of p against t. Without explicit
// terms records are ordered by primary key, or by every column when the
// table has none.
func Ordering(t *schema.Table, p Params) ([]sql.Order, error) {
	var order []sql.Order
	for _, term := range p.Order {
		name, dir, _ := strings.Cut(term, ",")
		name = strings.TrimSpace(name)
		if _, ok := t.Column(name); !ok {
			return nil, dbrest.NewColumnNotFoundError(t.Name, name)
		}
		if strings.EqualFold(strings.TrimSpace(dir), "desc") {
			order = append(order, sql.Desc(name))
		} else {
			order = append(order, sql.Asc(name))
		}
	}
	if len(order) > 0 {
		return order, nil
	}
	if t.HasPrimaryKey() {
		return []sql.Order{sql.Asc(t.PrimaryKey().Name)}, nil
	}
	for _, c := range t.Columns {
		order = append(order, sql.Asc(c.Name))
	}
	return order, nil
}

// Sanitize returns the values of record that name columns of t. The
// primary key is dropped when keepKey is false.
func Sanitize(t *schema.Table, record map[string]any, keepKey bool) map[string]any {
	out := make(map[string]any, len(record))
	for name, v := range record {
		c, ok := t.Column(name)
		if !ok || (c.PK && !keepKey) {
			continue
		}
		out[name] = v
	}
	return out
}
