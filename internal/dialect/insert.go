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
package dialect

import (
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
)

// identityInserter is implemented by dialects that reject explicit values for
// identity columns unless told otherwise.
type identityInserter interface {
	WrapIdentityInsert(table, stmt string) string
}

// BuildInsert renders one INSERT statement with literal values, without a
// trailing semicolon. Value types are taken from table's column declarations;
// columns unknown to table are formatted by their Go type.
func BuildInsert(h Handler, table *schema.Table, columns []string, values []any) (string, error) {
	if table == nil {
		return "", fmt.Errorf("build insert: nil table")
	}
	if len(columns) != len(values) {
		return "", fmt.Errorf("build insert into %s: %d columns but %d values", table.Name, len(columns), len(values))
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("build insert into %s: no columns", table.Name)
	}

	names := make([]string, len(columns))
	literals := make([]string, len(values))
	identity := false
	for i, col := range columns {
		names[i] = h.EscapeIdentifier(col)
		targetType := ""
		if c, ok := table.Column(col); ok {
			targetType = c.Type
			identity = identity || (c.Identity && values[i] != nil)
		}
		lit, err := h.FormatValue(values[i], targetType)
		if err != nil {
			return "", fmt.Errorf("build insert into %s.%s: %w", table.Name, col, err)
		}
		literals[i] = lit
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		h.EscapeIdentifier(table.Name), strings.Join(names, ", "), strings.Join(literals, ", "))
	if wrapper, ok := h.(identityInserter); ok && identity {
		stmt = wrapper.WrapIdentityInsert(table.Name, stmt)
	}
	return stmt, nil
}
