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
	"strings"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
)

// typeMaps maps generic type names to native ones. A native type carrying
// parameters, e.g. VARCHAR(255), supplies defaults used only when the generic
// type has none.
var typeMaps = map[DatabaseType]map[string]string{
	MySQL: {
		"AUTO":      "INT AUTO_INCREMENT",
		"BIGAUTO":   "BIGINT AUTO_INCREMENT",
		"INT":       "INT",
		"INTEGER":   "INT",
		"BIGINT":    "BIGINT",
		"SMALLINT":  "SMALLINT",
		"DECIMAL":   "DECIMAL(10,2)",
		"NUMERIC":   "DECIMAL(10,2)",
		"REAL":      "FLOAT",
		"FLOAT":     "DOUBLE",
		"DOUBLE":    "DOUBLE",
		"STRING":    "VARCHAR(255)",
		"VARCHAR":   "VARCHAR(255)",
		"NVARCHAR":  "VARCHAR(255)",
		"TEXT":      "TEXT",
		"CHAR":      "CHAR(1)",
		"BOOLEAN":   "BOOLEAN",
		"BOOL":      "BOOLEAN",
		"TIMESTAMP": "TIMESTAMP",
		"DATETIME":  "DATETIME",
		"DATE":      "DATE",
		"TIME":      "TIME",
		"BINARY":    "BLOB",
		"BLOB":      "BLOB",
		"JSON":      "JSON",
		"JSONB":     "JSON",
		"UUID":      "CHAR(36)",
	},
	PostgreSQL: {
		"AUTO":      "SERIAL",
		"BIGAUTO":   "BIGSERIAL",
		"INT":       "INTEGER",
		"INTEGER":   "INTEGER",
		"BIGINT":    "BIGINT",
		"SMALLINT":  "SMALLINT",
		"DECIMAL":   "DECIMAL(10,2)",
		"NUMERIC":   "NUMERIC(10,2)",
		"REAL":      "REAL",
		"FLOAT":     "DOUBLE PRECISION",
		"DOUBLE":    "DOUBLE PRECISION",
		"STRING":    "VARCHAR(255)",
		"VARCHAR":   "VARCHAR(255)",
		"NVARCHAR":  "VARCHAR(255)",
		"TEXT":      "TEXT",
		"CHAR":      "CHAR(1)",
		"BOOLEAN":   "BOOLEAN",
		"BOOL":      "BOOLEAN",
		"TIMESTAMP": "TIMESTAMP",
		"DATETIME":  "TIMESTAMP",
		"DATE":      "DATE",
		"TIME":      "TIME",
		"BINARY":    "BYTEA",
		"BLOB":      "BYTEA",
		"JSON":      "JSON",
		"JSONB":     "JSONB",
		"UUID":      "UUID",
	},
	Oracle: {
		"AUTO":      "NUMBER GENERATED BY DEFAULT AS IDENTITY",
		"BIGAUTO":   "NUMBER(19) GENERATED BY DEFAULT AS IDENTITY",
		"INT":       "NUMBER(10)",
		"INTEGER":   "NUMBER(10)",
		"BIGINT":    "NUMBER(19)",
		"SMALLINT":  "NUMBER(5)",
		"DECIMAL":   "NUMBER(10,2)",
		"NUMERIC":   "NUMBER(10,2)",
		"REAL":      "BINARY_FLOAT",
		"FLOAT":     "BINARY_DOUBLE",
		"DOUBLE":    "BINARY_DOUBLE",
		"STRING":    "VARCHAR2(255)",
		"VARCHAR":   "VARCHAR2(255)",
		"NVARCHAR":  "NVARCHAR2(255)",
		"TEXT":      "CLOB",
		"CHAR":      "CHAR(1)",
		"BOOLEAN":   "NUMBER(1)",
		"BOOL":      "NUMBER(1)",
		"TIMESTAMP": "TIMESTAMP",
		"DATETIME":  "TIMESTAMP",
		"DATE":      "DATE",
		"TIME":      "VARCHAR2(8)",
		"BINARY":    "BLOB",
		"BLOB":      "BLOB",
		"JSON":      "CLOB",
		"JSONB":     "CLOB",
		"UUID":      "RAW(16)",
	},
	SQLServer: {
		"AUTO":      "INT IDENTITY(1,1)",
		"BIGAUTO":   "BIGINT IDENTITY(1,1)",
		"INT":       "INT",
		"INTEGER":   "INT",
		"BIGINT":    "BIGINT",
		"SMALLINT":  "SMALLINT",
		"DECIMAL":   "DECIMAL(10,2)",
		"NUMERIC":   "NUMERIC(10,2)",
		"REAL":      "REAL",
		"FLOAT":     "FLOAT",
		"DOUBLE":    "FLOAT",
		"STRING":    "NVARCHAR(255)",
		"VARCHAR":   "VARCHAR(255)",
		"NVARCHAR":  "NVARCHAR(255)",
		"TEXT":      "NVARCHAR(MAX)",
		"CHAR":      "CHAR(1)",
		"BOOLEAN":   "BIT",
		"BOOL":      "BIT",
		"TIMESTAMP": "DATETIME2",
		"DATETIME":  "DATETIME2",
		"DATE":      "DATE",
		"TIME":      "TIME",
		"BINARY":    "VARBINARY(MAX)",
		"BLOB":      "VARBINARY(MAX)",
		"JSON":      "NVARCHAR(MAX)",
		"JSONB":     "NVARCHAR(MAX)",
		"UUID":      "UNIQUEIDENTIFIER",
	},
}

// convertType looks genericType up in the dialect's map. Length, precision
// and scale parameters of string, decimal and binary types replace the native
// defaults. Unknown types are returned unchanged.
func convertType(t DatabaseType, genericType string) string {
	generic := strings.TrimSpace(genericType)
	native, ok := typeMaps[t][schema.BaseType(generic)]
	if !ok {
		return generic
	}
	switch schema.KindOf(generic) {
	case schema.KindString, schema.KindDecimal, schema.KindBinary:
	default:
		return native
	}
	open := strings.IndexByte(generic, '(')
	end := strings.LastIndexByte(generic, ')')
	i := strings.IndexByte(native, '(')
	j := strings.LastIndexByte(native, ')')
	if open < 0 || end < open || i < 0 || j < i {
		return native
	}
	return native[:i] + generic[open:end+1] + native[j+1:]
}
