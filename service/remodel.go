package service

import (
	"context"
	"errors"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect/sql/inspect"
	"github.com/syssam/dbrest/schema"
)

// AddTable creates a table.
func (s *Service) AddTable(ctx context.Context, t *schema.Table) error {
	return s.remodel(ctx, "add table", t.Name, func(d *inspect.Definer) error {
		return d.AddTable(ctx, t)
	})
}

// RemoveTable drops a table.
func (s *Service) RemoveTable(ctx context.Context, table string) error {
	return s.remodel(ctx, "remove table", table, func(d *inspect.Definer) error {
		return d.RemoveTable(ctx, table)
	})
}

// RenameTable renames a table.
func (s *Service) RenameTable(ctx context.Context, table, newName string) error {
	return s.remodel(ctx, "rename table", table, func(d *inspect.Definer) error {
		return d.RenameTable(ctx, table, newName)
	})
}

// AddColumn adds a column to a table.
func (s *Service) AddColumn(ctx context.Context, table string, c *schema.Column) error {
	return s.remodel(ctx, "add column", table, func(d *inspect.Definer) error {
		return d.AddColumn(ctx, table, c)
	})
}

// RemoveColumn drops a column.
func (s *Service) RemoveColumn(ctx context.Context, table, column string) error {
	return s.remodel(ctx, "remove column", table, func(d *inspect.Definer) error {
		return d.RemoveColumn(ctx, table, column)
	})
}

// RenameColumn renames a column.
func (s *Service) RenameColumn(ctx context.Context, table, column, newName string) error {
	return s.remodel(ctx, "rename column", table, func(d *inspect.Definer) error {
		return d.RenameColumn(ctx, table, column, newName)
	})
}

// RetypeColumn changes the type of the column named c.Name.
func (s *Service) RetypeColumn(ctx context.Context, table string, c *schema.Column) error {
	return s.remodel(ctx, "retype column", table, func(d *inspect.Definer) error {
		return d.RetypeColumn(ctx, table, c)
	})
}

// SetNullable changes the nullability of a column.
func (s *Service) SetNullable(ctx context.Context, table, column string, nullable bool) error {
	return s.remodel(ctx, "set nullable", table, func(d *inspect.Definer) error {
		return d.SetNullable(ctx, table, column, nullable)
	})
}

// SetPrimaryKey makes a column the primary key of a table.
func (s *Service) SetPrimaryKey(ctx context.Context, table, column string) error {
	return s.remodel(ctx, "set primary key", table, func(d *inspect.Definer) error {
		return d.SetPrimaryKey(ctx, table, column)
	})
}

// RemovePrimaryKey drops the primary key of a table.
func (s *Service) RemovePrimaryKey(ctx context.Context, table string) error {
	return s.remodel(ctx, "remove primary key", table, func(d *inspect.Definer) error {
		return d.RemovePrimaryKey(ctx, table)
	})
}

// SetForeignKey makes a column reference the primary key of ref.
func (s *Service) SetForeignKey(ctx context.Context, table, column, ref string) error {
	return s.remodel(ctx, "set foreign key", table, func(d *inspect.Definer) error {
		return d.SetForeignKey(ctx, table, column, ref)
	})
}

// RemoveForeignKey drops the foreign key of a column.
func (s *Service) RemoveForeignKey(ctx context.Context, table, column string) error {
	return s.remodel(ctx, "remove foreign key", table, func(d *inspect.Definer) error {
		return d.RemoveForeignKey(ctx, table, column)
	})
}

// remodel runs one structure change. Rejected changes are returned as is,
// driver errors are classified.
func (s *Service) remodel(ctx context.Context, op, table string, fn func(*inspect.Definer) error) error {
	if s.definer == nil {
		return dbrest.NewUnsupportedOperationError(op, table)
	}
	err := fn(s.definer)
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "schema changed", "op", op, "table", table)
		return nil
	case errors.Is(err, inspect.ErrInvalidChange), errors.Is(err, inspect.ErrConflict):
		return err
	default:
		return s.classify(op, table, err)
	}
}
