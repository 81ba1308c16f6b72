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

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
)

type sqlServerHandler struct {
	lit literalSyntax
}

func newSQLServerHandler() sqlServerHandler {
	return sqlServerHandler{lit: literalSyntax{
		dialect: SQLServer,
		quote: func(s, targetType string) string {
			if isNationalType(targetType) || !isASCII(s) {
				return "N" + quoteDoubled(s)
			}
			return quoteDoubled(s)
		},
		boolean: oneZero,
		date: func(t time.Time) string {
			return fmt.Sprintf("CONVERT(DATE, '%s', 23)", t.Format(dateLayout))
		},
		timestamp: func(t time.Time) string {
			return fmt.Sprintf("CONVERT(DATETIME2, '%s', 120)", t.Format(timestampLayout))
		},
		binary: func(b []byte) string {
			return "0x" + strings.ToUpper(hex.EncodeToString(b))
		},
	}}
}

func isNationalType(targetType string) bool {
	switch schema.BaseType(targetType) {
	case "NVARCHAR", "NCHAR", "NTEXT":
		return true
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func (h sqlServerHandler) Type() DatabaseType { return SQLServer }

// EscapeIdentifier for SQL Server
func (h sqlServerHandler) EscapeIdentifier(name string) string {
	return escapeParts(name, "[", "]")
}

func (h sqlServerHandler) ConvertDateFunction(expr string) string {
	return convertDates(expr, h)
}

func (h sqlServerHandler) now() string   { return "GETDATE()" }
func (h sqlServerHandler) today() string { return "CAST(GETDATE() AS DATE)" }

func (h sqlServerHandler) addInterval(expr, n, unit string) string {
	return fmt.Sprintf("DATEADD(%s, %s, %s)", unit, n, expr)
}

func (h sqlServerHandler) ConvertDataType(genericType string) string {
	return convertType(SQLServer, genericType)
}

func (h sqlServerHandler) FormatValue(value any, targetType string) (string, error) {
	return h.lit.format(value, targetType)
}

// PaginationSyntax requires an ORDER BY in the enclosing query.
func (h sqlServerHandler) PaginationSyntax(offset, limit int) string {
	offset, limit = clampPage(offset, limit)
	return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
}

func (h sqlServerHandler) AutoIncrementSyntax(table, column string) string {
	return fmt.Sprintf("%s INT IDENTITY(1,1) CONSTRAINT %s PRIMARY KEY", h.EscapeIdentifier(column), h.EscapeIdentifier("PK_"+table))
}

// WrapIdentityInsert allows explicit values for the identity column of table.
func (h sqlServerHandler) WrapIdentityInsert(table, stmt string) string {
	t := h.EscapeIdentifier(table)
	return fmt.Sprintf("SET IDENTITY_INSERT %s ON; %s; SET IDENTITY_INSERT %s OFF", t, stmt, t)
}
