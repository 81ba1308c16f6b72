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
)

type mysqlHandler struct {
	lit literalSyntax
}

func newMySQLHandler() mysqlHandler {
	return mysqlHandler{lit: literalSyntax{
		dialect: MySQL,
		quote: func(s, _ string) string {
			return "'" + escapeMySQLString(s) + "'"
		},
		boolean: trueFalse,
		date: func(t time.Time) string {
			return fmt.Sprintf("STR_TO_DATE('%s', '%%Y-%%m-%%d')", t.Format(dateLayout))
		},
		timestamp: func(t time.Time) string {
			return fmt.Sprintf("STR_TO_DATE('%s', '%%Y-%%m-%%d %%H:%%i:%%s')", t.Format(timestampLayout))
		},
		binary: func(b []byte) string {
			return "X'" + strings.ToUpper(hex.EncodeToString(b)) + "'"
		},
	}}
}

// escapeMySQLString escapes backslashes and single quotes for a MySQL string
// literal under the default sql_mode.
func escapeMySQLString(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `''`)
	return value
}

func (h mysqlHandler) Type() DatabaseType { return MySQL }

func (h mysqlHandler) EscapeIdentifier(name string) string {
	return escapeParts(name, "`", "`")
}

func (h mysqlHandler) ConvertDateFunction(expr string) string {
	return convertDates(expr, h)
}

func (h mysqlHandler) now() string   { return "NOW()" }
func (h mysqlHandler) today() string { return "CURDATE()" }

func (h mysqlHandler) addInterval(expr, n, unit string) string {
	if strings.HasPrefix(n, "-") {
		return fmt.Sprintf("DATE_SUB(%s, INTERVAL %s %s)", expr, n[1:], unit)
	}
	return fmt.Sprintf("DATE_ADD(%s, INTERVAL %s %s)", expr, n, unit)
}

func (h mysqlHandler) ConvertDataType(genericType string) string {
	return convertType(MySQL, genericType)
}

func (h mysqlHandler) FormatValue(value any, targetType string) (string, error) {
	return h.lit.format(value, targetType)
}

func (h mysqlHandler) PaginationSyntax(offset, limit int) string {
	offset, limit = clampPage(offset, limit)
	if offset == 0 {
		return fmt.Sprintf("LIMIT %d", limit)
	}
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

func (h mysqlHandler) AutoIncrementSyntax(table, column string) string {
	return fmt.Sprintf("%s INT NOT NULL AUTO_INCREMENT PRIMARY KEY", h.EscapeIdentifier(column))
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	return offset, limit
}
