package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

func Excluded(column string) string {
	return fmt.Sprintf("EXCLUDED.%s", column)
}

type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

func NewInsertBuilder(flavor sqlbuilder.Flavor) *InsertBuilder {
	return &InsertBuilder{flavor.NewInsertBuilder()}
}

// OnConflictUpdate appends an upsert clause that overwrites every listed column with the incoming row.
// PostgreSQL and SQLite share the syntax.
func (b *InsertBuilder) OnConflictUpdate(conflict []string, columns ...string) *InsertBuilder {
	assignments := make([]string, 0, len(columns))
	for _, col := range columns {
		assignments = append(assignments, fmt.Sprintf("%s = %s", col, Excluded(col)))
	}
	b.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflict, ", "), strings.Join(assignments, ", ")))
	return b
}

func (b *InsertBuilder) OnConflictDoNothing() *InsertBuilder {
	b.SQL("ON CONFLICT DO NOTHING")
	return b
}

func (b *InsertBuilder) InsertInto(table string) *InsertBuilder {
	b.InsertBuilder.InsertInto(table)
	return b
}

func (b *InsertBuilder) Cols(col ...string) *InsertBuilder {
	b.InsertBuilder.Cols(col...)
	return b
}

func (b *InsertBuilder) Values(value ...any) *InsertBuilder {
	b.InsertBuilder.Values(value...)
	return b
}

// InsertReturningID executes the insert and scans the generated primary key.
// RETURNING is appended after any ON CONFLICT clause; PostgreSQL and SQLite both accept it there.
func InsertReturningID(ctx context.Context, q Querier, ib *sqlbuilder.InsertBuilder) (int64, error) {
	query, args := ib.Build()
	query += " RETURNING id"

	var id int64
	if err := q.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// IsNoRows reports the sqlx "no rows" condition without importing database/sql at every call site.
func IsNoRows(err error) bool {
	return err != nil && err.Error() == "sql: no rows in result set"
}

// NormalizedExpr is the SQL form of identifier normalization: ASCII lower-case with '-', '_' and
// ' ' removed. SQLite lower() only folds ASCII; Postgres needs the "C" collation for the same result.
func NormalizedExpr(flavor sqlbuilder.Flavor, column string) string {
	stripped := fmt.Sprintf("replace(replace(replace(%s, '-', ''), '_', ''), ' ', '')", column)
	if flavor == sqlbuilder.PostgreSQL {
		return fmt.Sprintf(`lower(%s COLLATE "C")`, stripped)
	}
	return fmt.Sprintf("lower(%s)", stripped)
}
