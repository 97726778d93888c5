package schema

// Kind tells tables and views apart.
type Kind string

// Table kinds.
const (
	KindTable Kind = "table"
	KindView  Kind = "view"
)

// Table is a reflected table or view with its columns in ordinal order.
type Table struct {
	Name     string    `msgpack:"name" yaml:"name"`
	RealName string    `msgpack:"real_name" yaml:"real_name,omitempty"`
	Kind     Kind      `msgpack:"kind" yaml:"kind"`
	Columns  []*Column `msgpack:"columns" yaml:"columns"`

	index map[string]*Column
	pk    *Column
}

// NewTable returns a table holding the given columns. At most one column
// is kept as primary key; when several are marked, the first wins.
func NewTable(name string, kind Kind, columns ...*Column) *Table {
	t := &Table{Name: name, Kind: kind, Columns: columns}
	t.build()
	return t
}

// build indexes the columns. It must run after decoding.
func (t *Table) build() {
	if t.RealName == "" {
		t.RealName = t.Name
	}
	if t.Kind == "" {
		t.Kind = KindTable
	}
	t.index = make(map[string]*Column, len(t.Columns))
	t.pk = nil
	for _, c := range t.Columns {
		c.sanitize()
		if c.PK {
			if t.pk != nil {
				c.PK = false
			} else {
				t.pk = c
			}
		}
		t.index[c.Name] = c
	}
}

// IsView reports if the table is a view.
func (t *Table) IsView() bool { return t.Kind == KindView }

// Column returns the column with the given logical name.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.index[name]
	return c, ok
}

// HasColumn reports if the table has a column with the given logical name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnNames returns the logical column names in ordinal order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the single-column primary key, or nil.
func (t *Table) PrimaryKey() *Column { return t.pk }

// HasPrimaryKey reports if the table has a primary key.
func (t *Table) HasPrimaryKey() bool { return t.pk != nil }

// ForeignKeys returns the foreign key columns mapped to the referenced table.
func (t *Table) ForeignKeys() map[string]string {
	fks := make(map[string]string)
	for _, c := range t.Columns {
		if c.IsForeignKey() {
			fks[c.Name] = c.FK
		}
	}
	return fks
}

// ForeignKeysTo returns the columns referencing the given table, in ordinal order.
func (t *Table) ForeignKeysTo(table string) []*Column {
	var fks []*Column
	for _, c := range t.Columns {
		if c.FK == table {
			fks = append(fks, c)
		}
	}
	return fks
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	columns := make([]*Column, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = c.Clone()
	}
	nt := &Table{Name: t.Name, RealName: t.RealName, Kind: t.Kind, Columns: columns}
	nt.build()
	return nt
}

// TableRef names one table of a database listing.
type TableRef struct {
	Name     string `msgpack:"name" yaml:"name"`
	RealName string `msgpack:"real_name" yaml:"real_name,omitempty"`
	Kind     Kind   `msgpack:"kind" yaml:"kind"`
}

// Database is the listing of all reflected tables.
type Database struct {
	Name   string     `msgpack:"name" yaml:"name"`
	Tables []TableRef `msgpack:"tables" yaml:"tables"`
}

// Has reports if the database lists a table with the given logical name.
func (d *Database) Has(name string) bool {
	_, ok := d.Lookup(name)
	return ok
}

// Lookup returns the listing entry for the given logical name.
func (d *Database) Lookup(name string) (TableRef, bool) {
	for _, t := range d.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableRef{}, false
}

// TableNames returns the logical table names in listing order.
func (d *Database) TableNames() []string {
	names := make([]string, len(d.Tables))
	for i, t := range d.Tables {
		names[i] = t.Name
	}
	return names
}
