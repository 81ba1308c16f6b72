/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package dialect renders generic SQL fragments, types and values in the
// syntax of a specific database engine.
package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DatabaseType names a target database engine.
type DatabaseType string

const (
	MySQL      DatabaseType = "mysql"
	Oracle     DatabaseType = "oracle"
	SQLServer  DatabaseType = "sqlserver"
	PostgreSQL DatabaseType = "postgresql"
)

// Handler translates generic SQL into one engine's syntax.
type Handler interface {
	Type() DatabaseType
	// EscapeIdentifier quotes a table or column name. Dotted names are quoted
	// part by part.
	EscapeIdentifier(name string) string
	// ConvertDateFunction rewrites MySQL-style date expressions (NOW(),
	// CURDATE(), DATE_ADD/DATE_SUB with INTERVAL) into native ones.
	ConvertDateFunction(expr string) string
	// ConvertDataType maps a generic type name such as STRING, INT or
	// VARCHAR(40) to the native type.
	ConvertDataType(genericType string) string
	// FormatValue renders value as a literal for a column of targetType.
	FormatValue(value any, targetType string) (string, error)
	PaginationSyntax(offset, limit int) string
	AutoIncrementSyntax(table, column string) string
}

var (
	// ErrNotSupported is matched by errors for unknown database types.
	ErrNotSupported = errors.New("database type not supported")
	// ErrUnrepresentable is matched by errors for values a dialect cannot render.
	ErrUnrepresentable = errors.New("value cannot be represented")
)

// NotSupportedError reports a database type with no handler.
type NotSupportedError struct {
	Type DatabaseType
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s: %q (supported: %s)", ErrNotSupported, string(e.Type), joinTypes(SupportedTypes()))
}

func (e *NotSupportedError) Is(target error) bool {
	return target == ErrNotSupported
}

// FormatError reports a value that cannot be rendered for a column type.
type FormatError struct {
	Dialect    DatabaseType
	Value      any
	TargetType string
	Msg        string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s value %v (%T) for type %q: %s", ErrUnrepresentable, e.Dialect, e.Value, e.Value, e.TargetType, e.Msg)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrUnrepresentable
}

var handlers = map[DatabaseType]func() Handler{
	MySQL:      func() Handler { return newMySQLHandler() },
	Oracle:     func() Handler { return newOracleHandler() },
	SQLServer:  func() Handler { return newSQLServerHandler() },
	PostgreSQL: func() Handler { return newPostgresHandler() },
}

var aliases = map[string]DatabaseType{
	"mysql":             MySQL,
	"mariadb":           MySQL,
	"cloudsqlmysql":     MySQL,
	"oracle":            Oracle,
	"sqlserver":         SQLServer,
	"mssql":             SQLServer,
	"cloudsqlsqlserver": SQLServer,
	"postgresql":        PostgreSQL,
	"postgres":          PostgreSQL,
	"pg":                PostgreSQL,
	"cloudsqlpostgres":  PostgreSQL,
}

// NewHandler returns the handler for t.
func NewHandler(t DatabaseType) (Handler, error) {
	newFn, ok := handlers[t]
	if !ok {
		return nil, &NotSupportedError{Type: t}
	}
	return newFn(), nil
}

// SupportedTypes lists every type NewHandler accepts, sorted.
func SupportedTypes() []DatabaseType {
	types := make([]DatabaseType, 0, len(handlers))
	for t := range handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// IsSupported reports whether NewHandler accepts t.
func IsSupported(t DatabaseType) bool {
	_, ok := handlers[t]
	return ok
}

// ParseDatabaseType resolves a user-facing name, including connection
// dialect names such as "cloudsqlpostgres", to a DatabaseType.
func ParseDatabaseType(name string) (DatabaseType, error) {
	if t, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return "", &NotSupportedError{Type: DatabaseType(name)}
}

func joinTypes(types []DatabaseType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// escapeParts quotes each dot separated part of name with left and right,
// doubling any right characters inside.
func escapeParts(name, left, right string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = left + strings.ReplaceAll(p, right, right+right) + right
	}
	return strings.Join(parts, ".")
}
