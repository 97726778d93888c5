package inspect

import (
	"fmt"
	"strings"
)

// Mapping renames physical tables and columns to logical names. Pairs are
// written "physical=logical" for tables and "table.column=table.column"
// for columns, using physical names on the left:
//
//	wp_posts=posts
//	wp_posts.ID=posts.id
type Mapping struct {
	tables  map[string]string
	columns map[string]map[string]string
	// inverse of tables
	reals map[string]string
}

// ParseMapping parses mapping pairs. Empty entries are skipped.
func ParseMapping(pairs []string) (*Mapping, error) {
	m := &Mapping{
		tables:  make(map[string]string),
		columns: make(map[string]map[string]string),
		reals:   make(map[string]string),
	}
	for _, p := range pairs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		phys, logical, ok := strings.Cut(p, "=")
		phys, logical = strings.TrimSpace(phys), strings.TrimSpace(logical)
		if !ok || phys == "" || logical == "" {
			return nil, fmt.Errorf("inspect: invalid mapping %q", p)
		}
		rt, rc, rok := strings.Cut(phys, ".")
		_, lc, lok := strings.Cut(logical, ".")
		switch {
		case rok != lok:
			return nil, fmt.Errorf("inspect: invalid mapping %q: both sides must name a column", p)
		case rok:
			if m.columns[rt] == nil {
				m.columns[rt] = make(map[string]string)
			}
			m.columns[rt][rc] = lc
		default:
			m.tables[phys] = logical
			m.reals[logical] = phys
		}
	}
	return m, nil
}

// Table returns the logical name of a physical table.
func (m *Mapping) Table(phys string) string {
	if m != nil {
		if n, ok := m.tables[phys]; ok {
			return n
		}
	}
	return phys
}

// RealTable returns the physical name of a logical table.
func (m *Mapping) RealTable(name string) string {
	if m != nil {
		if n, ok := m.reals[name]; ok {
			return n
		}
	}
	return name
}

// Column returns the logical name of a physical column of a physical table.
func (m *Mapping) Column(realTable, phys string) string {
	if m != nil {
		if n, ok := m.columns[realTable][phys]; ok {
			return n
		}
	}
	return phys
}
