package source

import "strings"

// Dialect renders identifiers and text expressions for one engine.
type Dialect interface {
	// Table returns the qualified, quoted table reference.
	Table(name string) string
	// Column returns the quoted column reference.
	Column(name string) string
	// Text returns an expression yielding the column as text.
	Text(name string) string
}

type sqliteDialect struct{}

func (sqliteDialect) Table(name string) string  { return quote(name) }
func (sqliteDialect) Column(name string) string { return quote(name) }
func (sqliteDialect) Text(name string) string   { return quote(name) }

type duckDialect struct {
	catalog string
}

func (d duckDialect) Table(name string) string { return quote(d.catalog) + "." + quote(name) }
func (duckDialect) Column(name string) string  { return quote(name) }
func (duckDialect) Text(name string) string    { return "CAST(" + quote(name) + " AS VARCHAR)" }

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// internalTable reports engine bookkeeping tables excluded from listings.
func internalTable(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "sqlite_")
}
