package inspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect"
	"github.com/syssam/dbrest/schema"
)

// ErrConflict is returned for changes conflicting with the current
// structure, such as adding a column that exists.
var ErrConflict = errors.New("inspect: conflicting schema change")

// Definer changes the structure of reflected tables. Every change is
// validated against the reflected table first and invalidates the cached
// entries it affects. Views can not be changed.
//
// Tables and columns are addressed by logical name. New tables take their
// physical name from the mapping, new columns keep their RealName.
type Definer struct {
	drv      dialect.Driver
	r        *Reflector
	validate []ValidateOption
	log      *slog.Logger
}

// DefinerOption configures a Definer.
type DefinerOption func(*Definer)

// WithValidateOptions adds validation options applied to every change,
// e.g. AllowNullToNotNull.
func WithValidateOptions(opts ...ValidateOption) DefinerOption {
	return func(d *Definer) {
		d.validate = append(d.validate, opts...)
	}
}

// WithDefinerLogger sets the logger. The default is the reflector logger.
func WithDefinerLogger(l *slog.Logger) DefinerOption {
	return func(d *Definer) {
		d.log = l
	}
}

// NewDefiner returns a Definer executing statements on drv and keeping the
// cache of r coherent. drv must reach the database r reflects.
func NewDefiner(drv dialect.Driver, r *Reflector, opts ...DefinerOption) *Definer {
	d := &Definer{drv: drv, r: r, log: r.log}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddTable creates a table. Foreign keys must reference existing tables.
func (d *Definer) AddTable(ctx context.Context, t *schema.Table) error {
	exists, err := d.r.HasTable(ctx, t.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: table %q already exists", ErrConflict, t.Name)
	}
	t = t.Clone()
	if t.RealName == t.Name {
		t.RealName = d.r.mapping.RealTable(t.Name)
	}
	if t.IsView() {
		return dbrest.NewUnsupportedOperationError("create view", t.Name)
	}
	result := ValidateTable(t)
	if err := d.check(ctx, result); err != nil {
		return err
	}
	refs := make(map[string]*schema.Table)
	for _, c := range t.Columns {
		if !c.IsForeignKey() || c.FK == t.Name {
			continue
		}
		ref, err := d.r.Table(ctx, c.FK)
		if err != nil {
			return err
		}
		refs[c.FK] = ref
	}
	refs[t.Name] = t
	stmts, err := d.r.dialect.CreateTable(t, func(name string) *schema.Table { return refs[name] })
	if err != nil {
		return err
	}
	if err := d.exec(ctx, "add table", stmts); err != nil {
		return err
	}
	return d.invalidate(ctx, t.Name, true)
}

// RemoveTable drops a table.
func (d *Definer) RemoveTable(ctx context.Context, name string) error {
	t, err := d.table(ctx, "remove table", name)
	if err != nil {
		return err
	}
	result := ValidateDiff([]*schema.Table{t}, nil, d.options(AllowDropTable())...)
	if err := d.check(ctx, result); err != nil {
		return err
	}
	stmts, err := d.r.dialect.DropTable(t)
	if err != nil {
		return err
	}
	if err := d.exec(ctx, "remove table", stmts); err != nil {
		return err
	}
	if err := d.r.InvalidateReferrers(ctx, name); err != nil {
		return err
	}
	return d.invalidate(ctx, name, true)
}

// RenameTable renames a table. The new physical name follows the mapping.
func (d *Definer) RenameTable(ctx context.Context, name, newName string) error {
	t, err := d.table(ctx, "rename table", name)
	if err != nil {
		return err
	}
	exists, err := d.r.HasTable(ctx, newName)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: table %q already exists", ErrConflict, newName)
	}
	stmts, err := d.r.dialect.RenameTable(t, d.r.mapping.RealTable(newName))
	if err != nil {
		return err
	}
	if err := d.exec(ctx, "rename table", stmts); err != nil {
		return err
	}
	if err := d.r.InvalidateReferrers(ctx, name); err != nil {
		return err
	}
	if err := d.invalidate(ctx, name, true); err != nil {
		return err
	}
	return d.r.InvalidateTable(ctx, newName)
}

// AddColumn adds a column to a table.
func (d *Definer) AddColumn(ctx context.Context, table string, c *schema.Column) error {
	return d.change(ctx, "add column", table, func(t *schema.Table) ([]string, error) {
		if t.HasColumn(c.Name) {
			return nil, fmt.Errorf("%w: column %q already exists in table %q", ErrConflict, c.Name, table)
		}
		c = c.Clone()
		if c.RealName == "" {
			c.RealName = c.Name
		}
		return d.r.dialect.AddColumn(t, c)
	}, func(t *schema.Table) *schema.Table {
		return schema.NewTable(t.Name, t.Kind, append(cloneColumns(t), c)...)
	})
}

// RemoveColumn drops a column.
func (d *Definer) RemoveColumn(ctx context.Context, table, column string) error {
	return d.columnChange(ctx, "remove column", table, column, func(t *schema.Table, c *schema.Column) ([]string, error) {
		return d.r.dialect.DropColumn(t, c)
	}, func(t *schema.Table, c *schema.Column) *schema.Table {
		var columns []*schema.Column
		for _, cc := range cloneColumns(t) {
			if cc.Name != c.Name {
				columns = append(columns, cc)
			}
		}
		return schema.NewTable(t.Name, t.Kind, columns...)
	}, AllowDropColumn())
}

// RenameColumn renames a column. The new physical name is newName.
func (d *Definer) RenameColumn(ctx context.Context, table, column, newName string) error {
	return d.columnChange(ctx, "rename column", table, column, func(t *schema.Table, c *schema.Column) ([]string, error) {
		if t.HasColumn(newName) {
			return nil, fmt.Errorf("%w: column %q already exists in table %q", ErrConflict, newName, table)
		}
		return d.r.dialect.RenameColumn(t, c, newName)
	}, func(t *schema.Table, _ *schema.Column) *schema.Table {
		// Renames keep the column definition.
		return t.Clone()
	})
}

// RetypeColumn changes the type and size of the column named c.Name to
// the ones c carries.
func (d *Definer) RetypeColumn(ctx context.Context, table string, c *schema.Column) error {
	return d.columnChange(ctx, "retype column", table, c.Name, func(t *schema.Table, cur *schema.Column) ([]string, error) {
		next := cur.Clone()
		next.Type, next.Length, next.Precision, next.Scale = c.Type, c.Length, c.Precision, c.Scale
		return d.r.dialect.RetypeColumn(t, next)
	}, func(t *schema.Table, cur *schema.Column) *schema.Table {
		return replaceColumn(t, cur.Name, func(cc *schema.Column) {
			cc.Type, cc.Length, cc.Precision, cc.Scale = c.Type, c.Length, c.Precision, c.Scale
		})
	})
}

// SetNullable changes the nullability of a column.
func (d *Definer) SetNullable(ctx context.Context, table, column string, nullable bool) error {
	return d.columnChange(ctx, "set nullable", table, column, func(t *schema.Table, c *schema.Column) ([]string, error) {
		next := c.Clone()
		next.Nullable = nullable
		return d.r.dialect.SetNullable(t, next)
	}, func(t *schema.Table, c *schema.Column) *schema.Table {
		return replaceColumn(t, c.Name, func(cc *schema.Column) { cc.Nullable = nullable })
	})
}

// SetPrimaryKey makes a column the primary key of a table without one.
// Integer keys get their auto increment where the dialect needs a sequence.
func (d *Definer) SetPrimaryKey(ctx context.Context, table, column string) error {
	return d.columnChange(ctx, "set primary key", table, column, func(t *schema.Table, c *schema.Column) ([]string, error) {
		if pk := t.PrimaryKey(); pk != nil {
			return nil, fmt.Errorf("%w: table %q already has primary key %q", ErrConflict, table, pk.Name)
		}
		next := c.Clone()
		next.PK = true
		return d.r.dialect.AddPrimaryKey(t, next)
	}, func(t *schema.Table, c *schema.Column) *schema.Table {
		return replaceColumn(t, c.Name, func(cc *schema.Column) { cc.PK = true })
	})
}

// RemovePrimaryKey drops the primary key of a table.
func (d *Definer) RemovePrimaryKey(ctx context.Context, table string) error {
	t, err := d.table(ctx, "remove primary key", table)
	if err != nil {
		return err
	}
	pk := t.PrimaryKey()
	if pk == nil {
		return fmt.Errorf("%w: table %q has no primary key", ErrConflict, table)
	}
	return d.columnChange(ctx, "remove primary key", table, pk.Name, func(t *schema.Table, c *schema.Column) ([]string, error) {
		return d.r.dialect.DropPrimaryKey(t, c)
	}, func(t *schema.Table, c *schema.Column) *schema.Table {
		return replaceColumn(t, c.Name, func(cc *schema.Column) { cc.PK = false })
	})
}

// SetForeignKey makes a column reference the primary key of ref.
func (d *Definer) SetForeignKey(ctx context.Context, table, column, ref string) error {
	target, err := d.r.Table(ctx, ref)
	if err != nil {
		return err
	}
	return d.columnChange(ctx, "set foreign key", table, column, func(t *schema.Table, c *schema.Column) ([]string, error) {
		if c.IsForeignKey() {
			return nil, fmt.Errorf("%w: column %q of table %q already references %q", ErrConflict, column, table, c.FK)
		}
		next := c.Clone()
		next.FK = ref
		return d.r.dialect.AddForeignKey(t, next, target)
	}, func(t *schema.Table, c *schema.Column) *schema.Table {
		return replaceColumn(t, c.Name, func(cc *schema.Column) { cc.FK = ref })
	})
}

// RemoveForeignKey drops the foreign key of a column.
func (d *Definer) RemoveForeignKey(ctx context.Context, table, column string) error {
	return d.columnChange(ctx, "remove foreign key", table, column, func(t *schema.Table, c *schema.Column) ([]string, error) {
		if !c.IsForeignKey() {
			return nil, fmt.Errorf("%w: column %q of table %q has no foreign key", ErrConflict, column, table)
		}
		return d.r.dialect.DropForeignKey(t, c)
	}, func(t *schema.Table, c *schema.Column) *schema.Table {
		return replaceColumn(t, c.Name, func(cc *schema.Column) { cc.FK = "" })
	})
}

// table returns a reflected table that may be changed.
func (d *Definer) table(ctx context.Context, op, name string) (*schema.Table, error) {
	t, err := d.r.Table(ctx, name)
	if err != nil {
		return nil, err
	}
	if t.IsView() {
		return nil, dbrest.NewUnsupportedOperationError(op, name)
	}
	return t, nil
}

// change validates and applies one change of a table. stmts builds the
// statements, desired the table after the change.
func (d *Definer) change(ctx context.Context, op, table string, stmts func(*schema.Table) ([]string, error), desired func(*schema.Table) *schema.Table, opts ...ValidateOption) error {
	t, err := d.table(ctx, op, table)
	if err != nil {
		return err
	}
	list, err := stmts(t)
	if err != nil {
		return err
	}
	next := desired(t)
	next.RealName = t.RealName
	if err := d.check(ctx, ValidateChange(t, next, d.options(opts...)...)); err != nil {
		return err
	}
	if err := d.exec(ctx, op, list); err != nil {
		return err
	}
	return d.invalidate(ctx, table, false)
}

func (d *Definer) columnChange(ctx context.Context, op, table, column string, stmts func(*schema.Table, *schema.Column) ([]string, error), desired func(*schema.Table, *schema.Column) *schema.Table, opts ...ValidateOption) error {
	var col *schema.Column
	lookup := func(t *schema.Table) (*schema.Column, error) {
		c, ok := t.Column(column)
		if !ok {
			return nil, dbrest.NewColumnNotFoundError(table, column)
		}
		return c, nil
	}
	return d.change(ctx, op, table, func(t *schema.Table) ([]string, error) {
		c, err := lookup(t)
		if err != nil {
			return nil, err
		}
		col = c
		return stmts(t, c)
	}, func(t *schema.Table) *schema.Table {
		return desired(t, col)
	}, opts...)
}

func (d *Definer) options(opts ...ValidateOption) []ValidateOption {
	return append(append([]ValidateOption{}, d.validate...), opts...)
}

// check logs the warnings of a validation and returns its errors.
func (d *Definer) check(ctx context.Context, result *ValidationResult) error {
	for _, w := range result.Warnings {
		d.log.WarnContext(ctx, "schema change warning", "table", w.Table, "column", w.Column, "message", w.Message, "breaking", w.Breaking)
	}
	return result.Err()
}

// exec runs the statements of one change. Dialects with transactional DDL
// run multi statement changes in a transaction.
func (d *Definer) exec(ctx context.Context, op string, stmts []string) error {
	if len(stmts) > 1 && d.drv.Dialect() != dialect.MySQL {
		tx, err := d.drv.Tx(ctx)
		if err != nil {
			return err
		}
		if err := run(ctx, tx, op, stmts); err != nil {
			return rollback(tx, err)
		}
		return tx.Commit()
	}
	return run(ctx, d.drv, op, stmts)
}

func run(ctx context.Context, eq dialect.ExecQuerier, op string, stmts []string) error {
	for _, stmt := range stmts {
		if err := eq.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("inspect: %s: %w", op, err)
		}
	}
	return nil
}

// rollback calls tx.Rollback and wraps the given error with the rollback error if occurred.
func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: %v", err, rerr)
	}
	return err
}

func (d *Definer) invalidate(ctx context.Context, table string, listing bool) error {
	if listing {
		if err := d.r.InvalidateDatabase(ctx); err != nil {
			return err
		}
	}
	return d.r.InvalidateTable(ctx, table)
}

func cloneColumns(t *schema.Table) []*schema.Column {
	columns := make([]*schema.Column, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = c.Clone()
	}
	return columns
}

func replaceColumn(t *schema.Table, name string, fn func(*schema.Column)) *schema.Table {
	columns := cloneColumns(t)
	for _, c := range columns {
		if c.Name == name {
			fn(c)
		}
	}
	return schema.NewTable(t.Name, t.Kind, columns...)
}
