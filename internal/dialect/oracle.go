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

type oracleHandler struct {
	lit literalSyntax
}

func newOracleHandler() oracleHandler {
	return oracleHandler{lit: literalSyntax{
		dialect: Oracle,
		quote: func(s, _ string) string {
			return quoteDoubled(s)
		},
		boolean: oneZero,
		date: func(t time.Time) string {
			return fmt.Sprintf("TO_DATE('%s', 'YYYY-MM-DD')", t.Format(dateLayout))
		},
		timestamp: func(t time.Time) string {
			return fmt.Sprintf("TO_TIMESTAMP('%s', 'YYYY-MM-DD HH24:MI:SS')", t.Format(timestampLayout))
		},
		binary: func(b []byte) string {
			return fmt.Sprintf("HEXTORAW('%s')", strings.ToUpper(hex.EncodeToString(b)))
		},
	}}
}

func (h oracleHandler) Type() DatabaseType { return Oracle }

func (h oracleHandler) EscapeIdentifier(name string) string {
	return escapeParts(name, `"`, `"`)
}

func (h oracleHandler) ConvertDateFunction(expr string) string {
	return convertDates(expr, h)
}

func (h oracleHandler) now() string   { return "SYSDATE" }
func (h oracleHandler) today() string { return "TRUNC(SYSDATE)" }

// Calendar units go through ADD_MONTHS, which clamps to the month end.
func (h oracleHandler) addInterval(expr, n, unit string) string {
	switch unit {
	case "MONTH":
		return fmt.Sprintf("ADD_MONTHS(%s, %s)", expr, n)
	case "YEAR":
		return fmt.Sprintf("ADD_MONTHS(%s, %s)", expr, scaled(n, 12))
	case "WEEK":
		n, unit = scaled(n, 7), "DAY"
	}
	return fmt.Sprintf("(%s + NUMTODSINTERVAL(%s, '%s'))", expr, n, unit)
}

func (h oracleHandler) ConvertDataType(genericType string) string {
	return convertType(Oracle, genericType)
}

func (h oracleHandler) FormatValue(value any, targetType string) (string, error) {
	return h.lit.format(value, targetType)
}

func (h oracleHandler) PaginationSyntax(offset, limit int) string {
	offset, limit = clampPage(offset, limit)
	return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
}

func (h oracleHandler) AutoIncrementSyntax(table, column string) string {
	return fmt.Sprintf("%s NUMBER GENERATED BY DEFAULT AS IDENTITY CONSTRAINT %s PRIMARY KEY", h.EscapeIdentifier(column), h.EscapeIdentifier("PK_"+table))
}
