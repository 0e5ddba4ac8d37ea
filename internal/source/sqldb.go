package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/dbx"
)

// DB is a Provider over database/sql. The engine-specific parts are the
// schema queries and the dialect.
type DB struct {
	db      *sql.DB
	q       dbx.Querier
	dialect Dialect
	schema  schemaQueries
	inView  bool
}

type schemaQueries struct {
	tables  string
	columns string
}

func newDB(db *sql.DB, d Dialect, s schemaQueries) *DB {
	return &DB{db: db, q: db, dialect: d, schema: s}
}

func (d *DB) Dialect() Dialect { return d.dialect }

func (d *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.q.QueryContext(ctx, d.schema.tables)
	if err != nil {
		return nil, mapError(fmt.Errorf("list tables: %w", err))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if internalTable(name) {
			continue
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("list tables: %w", err))
	}
	return out, nil
}

func (d *DB) Columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := d.q.QueryContext(ctx, d.schema.columns, table)
	if err != nil {
		return nil, mapError(fmt.Errorf("columns of %s: %w", table, err))
	}
	defer rows.Close()

	var out []Column
	for rows.Next() {
		var c Column
		var typ sql.NullString
		if err := rows.Scan(&c.Name, &typ); err != nil {
			return nil, err
		}
		c.Type = typ.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(fmt.Errorf("columns of %s: %w", table, err))
	}
	return out, nil
}

func (d *DB) Count(ctx context.Context, table string, sel Selection) (int64, error) {
	query := "SELECT COUNT(*) FROM " + d.dialect.Table(table) + where(sel)

	var n int64
	if err := d.q.QueryRowContext(ctx, query, sel.Args...).Scan(&n); err != nil {
		return 0, mapError(fmt.Errorf("count %s: %w", table, err))
	}
	return n, nil
}

func (d *DB) Scan(ctx context.Context, table string, sel Selection, fn func(Row) error) error {
	rows, err := d.q.QueryContext(ctx, d.selectQuery(table, sel), sel.Args...)
	if err != nil {
		return mapError(fmt.Errorf("scan %s: %w", table, err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		for i, v := range values {
			values[i] = Normalize(v)
		}
		if err := fn(Row{Columns: cols, Values: values}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return mapError(fmt.Errorf("scan %s: %w", table, err))
	}
	return nil
}

func (d *DB) View(ctx context.Context, fn func(ctx context.Context, p Provider) error) error {
	if d.inView {
		return fn(ctx, d)
	}
	err := dbx.WithReadTx(ctx, d.db, func(ctx context.Context, q dbx.Querier) error {
		return fn(ctx, &DB{db: d.db, q: q, dialect: d.dialect, schema: d.schema, inView: true})
	})
	return mapError(err)
}

// Close releases the underlying database. Providers handed out by View do
// not own it and Close on them is a no-op.
func (d *DB) Close() error {
	if d.inView {
		return nil
	}
	return d.db.Close()
}

func (d *DB) selectQuery(table string, sel Selection) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(sel.Columns) == 0 {
		b.WriteString("*")
	} else {
		for i, c := range sel.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.dialect.Column(c))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(d.dialect.Table(table))
	b.WriteString(where(sel))
	if sel.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(d.dialect.Text(sel.OrderBy))
		b.WriteString(" ASC")
	}
	return b.String()
}

func where(sel Selection) string {
	if sel.Where == "" {
		return ""
	}
	return " WHERE " + sel.Where
}
