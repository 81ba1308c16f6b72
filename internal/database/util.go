package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// QueryTables runs query and scans one table name per row.
func QueryTables(ctx context.Context, db *DB, query string, args ...any) ([]string, error) {
	rows, err := db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return tables, nil
}

// QueryColumns runs query and scans rows of
// (name, data type, is_nullable, max length, identity, primary key).
// is_nullable is compared against "YES" as information_schema reports it.
func QueryColumns(ctx context.Context, db *DB, query string, args ...any) ([]ColumnInfo, error) {
	rows, err := db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying columns: %w", err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			c          ColumnInfo
			nullable   string
			maxLength  sql.NullInt64
			identity   sql.NullBool
			primaryKey sql.NullBool
		)
		if err := rows.Scan(&c.Name, &c.DataType, &nullable, &maxLength, &identity, &primaryKey); err != nil {
			return nil, fmt.Errorf("error scanning column info: %w", err)
		}
		c.Nullable = strings.EqualFold(strings.TrimSpace(nullable), "YES")
		if maxLength.Valid && maxLength.Int64 > 0 {
			c.MaxLength = int(maxLength.Int64)
		}
		c.Identity = identity.Valid && identity.Bool
		c.PrimaryKey = primaryKey.Valid && primaryKey.Bool
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return columns, nil
}

// QueryForeignKeys runs query and scans rows of
// (column, referenced table, referenced column, constraint name).
func QueryForeignKeys(ctx context.Context, db *DB, query string, args ...any) ([]ForeignKeyReference, error) {
	rows, err := db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []ForeignKeyReference
	for rows.Next() {
		var fk ForeignKeyReference
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn, &fk.ConstraintName); err != nil {
			return nil, fmt.Errorf("error scanning foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign key rows: %w", err)
	}
	return fks, nil
}

// QueryUniqueKeys runs query and scans rows of (constraint name, column).
// Rows of one constraint must be adjacent and in key order.
func QueryUniqueKeys(ctx context.Context, db *DB, query string, args ...any) ([]UniqueKey, error) {
	rows, err := db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying unique keys: %w", err)
	}
	defer rows.Close()

	var keys []UniqueKey
	for rows.Next() {
		var name, column string
		if err := rows.Scan(&name, &column); err != nil {
			return nil, fmt.Errorf("error scanning unique key: %w", err)
		}
		if n := len(keys); n > 0 && keys[n-1].Name == name {
			keys[n-1].Columns = append(keys[n-1].Columns, column)
			continue
		}
		keys = append(keys, UniqueKey{Name: name, Columns: []string{column}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating unique key rows: %w", err)
	}
	return keys, nil
}
