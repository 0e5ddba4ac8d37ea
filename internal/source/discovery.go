package source

import (
	"context"
	"fmt"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
)

// Table is a table name with its columns.
type Table struct {
	Name    string
	Columns []Column
}

// Has reports whether the table has a column named col.
func (t Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c.Name == col {
			return true
		}
	}
	return false
}

// Timestamped reports whether the export window applies to the table.
func (t Table) Timestamped() bool { return t.Has(common.StartTimeColumn) }

// FindActivityTable returns the first table, in provider order, that has
// both the identifier and the start-time column. It fails with
// common.ErrNoActivityTable when none does; callers treat that as empty.
//
// Several matching tables are not disambiguated: the first one wins.
func FindActivityTable(ctx context.Context, sp SchemaProvider) (Table, error) {
	names, err := sp.Tables(ctx)
	if err != nil {
		return Table{}, err
	}

	for _, name := range names {
		cols, err := sp.Columns(ctx, name)
		if err != nil {
			return Table{}, err
		}
		t := Table{Name: name, Columns: cols}
		if t.Has(common.IdentifierColumn) && t.Has(common.StartTimeColumn) {
			return t, nil
		}
	}

	return Table{}, fmt.Errorf("%w among %d tables", common.ErrNoActivityTable, len(names))
}
