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
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

type postgresHandler struct {
	lit literalSyntax
}

func newPostgresHandler() postgresHandler {
	return postgresHandler{lit: literalSyntax{
		dialect: PostgreSQL,
		quote: func(s, _ string) string {
			// QuoteLiteral emits " E'...'" when s holds a backslash.
			return strings.TrimSpace(pq.QuoteLiteral(s))
		},
		boolean: trueFalse,
		date: func(t time.Time) string {
			return fmt.Sprintf("TO_DATE('%s', 'YYYY-MM-DD')", t.Format(dateLayout))
		},
		timestamp: func(t time.Time) string {
			return fmt.Sprintf("TO_TIMESTAMP('%s', 'YYYY-MM-DD HH24:MI:SS')", t.Format(timestampLayout))
		},
		binary: func(b []byte) string {
			return fmt.Sprintf("DECODE('%s', 'hex')", hex.EncodeToString(b))
		},
	}}
}

func (h postgresHandler) Type() DatabaseType { return PostgreSQL }

func (h postgresHandler) EscapeIdentifier(name string) string {
	return escapeParts(name, `"`, `"`)
}

func (h postgresHandler) ConvertDateFunction(expr string) string {
	return convertDates(expr, h)
}

func (h postgresHandler) now() string   { return "NOW()" }
func (h postgresHandler) today() string { return "CURRENT_DATE" }

func (h postgresHandler) addInterval(expr, n, unit string) string {
	if strings.HasPrefix(n, "-") {
		return fmt.Sprintf("(%s - INTERVAL '%s %s')", expr, n[1:], unit)
	}
	return fmt.Sprintf("(%s + INTERVAL '%s %s')", expr, n, unit)
}

func (h postgresHandler) ConvertDataType(genericType string) string {
	return convertType(PostgreSQL, genericType)
}

func (h postgresHandler) FormatValue(value any, targetType string) (string, error) {
	return h.lit.format(value, targetType)
}

func (h postgresHandler) PaginationSyntax(offset, limit int) string {
	offset, limit = clampPage(offset, limit)
	if offset == 0 {
		return fmt.Sprintf("LIMIT %d", limit)
	}
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

func (h postgresHandler) AutoIncrementSyntax(table, column string) string {
	return fmt.Sprintf("%s SERIAL CONSTRAINT %s PRIMARY KEY", h.EscapeIdentifier(column), h.EscapeIdentifier(table+"_pkey"))
}
