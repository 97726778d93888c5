package inspect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/dbrest/schema"
)

// ErrInvalidChange is returned for schema changes failing validation.
var ErrInvalidChange = errors.New("inspect: invalid schema change")

// ValidationError represents a schema validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates if this is a breaking change.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if there are any breaking changes.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// Err returns the errors of the result joined, or nil.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w:\n%s", ErrInvalidChange, r)
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	write := func(title string, list []*ValidationError) {
		if len(list) == 0 {
			return
		}
		sb.WriteString(title)
		for _, e := range list {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	write("Errors:\n", r.Errors)
	write("Warnings:\n", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func (r *ValidationResult) merge(o *ValidationResult) {
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// ValidateOption configures schema validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn    bool
	allowDropTable     bool
	allowNullToNotNull bool
}

// AllowDropColumn allows dropping columns without error.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable allows dropping tables without error.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropTable = true
	}
}

// AllowNullToNotNull allows changing nullable columns to not null.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) {
		c.allowNullToNotNull = true
	}
}

// ValidateDiff validates the difference between the current and the desired
// tables. It returns errors for breaking changes and warnings for
// potentially dangerous ones.
//
//	result := inspect.ValidateDiff(current, desired)
//	if result.HasBreakingChanges() {
//	    log.Fatal("Breaking changes detected:", result)
//	}
func ValidateDiff(current, desired []*schema.Table, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	result := &ValidationResult{}
	desiredMap := make(map[string]*schema.Table, len(desired))
	for _, t := range desired {
		desiredMap[t.Name] = t
	}
	for _, t := range current {
		if _, ok := desiredMap[t.Name]; !ok {
			err := &ValidationError{
				Table:    t.Name,
				Message:  "table will be dropped",
				Breaking: true,
			}
			if cfg.allowDropTable {
				result.Warnings = append(result.Warnings, err)
			} else {
				result.Errors = append(result.Errors, err)
			}
		}
	}
	for _, c := range current {
		if d, ok := desiredMap[c.Name]; ok {
			validateTableDiff(c, d, cfg, result)
		}
	}
	return result
}

// ValidateChange validates the change of one table.
func ValidateChange(current, desired *schema.Table, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	validateTableDiff(current, desired, cfg, result)
	result.merge(ValidateTable(desired))
	return result
}

func validateTableDiff(current, desired *schema.Table, cfg *validateConfig, result *ValidationResult) {
	if current.IsView() {
		result.Errors = append(result.Errors, &ValidationError{
			Table:   current.Name,
			Message: "views can not be changed",
		})
		return
	}
	for _, c := range current.Columns {
		if desired.HasColumn(c.Name) {
			continue
		}
		err := &ValidationError{
			Table:    current.Name,
			Column:   c.Name,
			Message:  "column will be dropped",
			Breaking: true,
		}
		if cfg.allowDropColumn {
			result.Warnings = append(result.Warnings, err)
		} else {
			result.Errors = append(result.Errors, err)
		}
	}

	for _, dc := range desired.Columns {
		cc, exists := current.Column(dc.Name)
		if !exists {
			if !dc.Nullable && !dc.PK {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   current.Name,
					Column:  dc.Name,
					Message: "new NOT NULL column may fail if table has data",
				})
			}
			continue
		}
		if cc.Type != dc.Type {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  dc.Name,
				Message: fmt.Sprintf("column type changing from %v to %v", cc.Type, dc.Type),
			})
		}
		if cc.Nullable && !dc.Nullable {
			err := &ValidationError{
				Table:    current.Name,
				Column:   dc.Name,
				Message:  "column changing from NULL to NOT NULL may fail if column has NULL values",
				Breaking: true,
			}
			if cfg.allowNullToNotNull {
				result.Warnings = append(result.Warnings, err)
			} else {
				result.Errors = append(result.Errors, err)
			}
		}
		if cl, dl := cc.EffectiveLength(), dc.EffectiveLength(); cl > 0 && dl > 0 && dl < cl {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  dc.Name,
				Message: fmt.Sprintf("column size reducing from %d to %d may truncate data", cl, dl),
			})
		}
		if cs, ds := cc.EffectiveScale(), dc.EffectiveScale(); ds < cs {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  dc.Name,
				Message: fmt.Sprintf("column scale reducing from %d to %d may round data", cs, ds),
			})
		}
	}
}

// ValidateTable validates a single table definition.
func ValidateTable(t *schema.Table) *ValidationResult {
	result := &ValidationResult{}
	if !t.HasPrimaryKey() {
		result.Warnings = append(result.Warnings, &ValidationError{
			Table:   t.Name,
			Message: "table has no primary key",
		})
	}
	names := make(map[string]bool)
	for _, c := range t.Columns {
		if names[c.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  c.Name,
				Message: "duplicate column name",
			})
		}
		names[c.Name] = true
	}
	return result
}

// ValidateSchema validates all tables and the tables their foreign keys reference.
func ValidateSchema(tables []*schema.Table) *ValidationResult {
	result := &ValidationResult{}
	names := make(map[string]bool)
	for _, t := range tables {
		if names[t.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: "duplicate table name",
			})
		}
		names[t.Name] = true
		result.merge(ValidateTable(t))
	}
	for _, t := range tables {
		for _, c := range t.Columns {
			if c.IsForeignKey() && !names[c.FK] {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Column:  c.Name,
					Message: fmt.Sprintf("foreign key references non-existent table %q", c.FK),
				})
			}
		}
	}
	return result
}
