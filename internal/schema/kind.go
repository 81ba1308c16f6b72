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
package schema

import (
	"strconv"
	"strings"
)

// Kind is the dialect-independent class of a column type.
type Kind int

const (
	KindUnknown Kind = iota
	KindInteger
	KindDecimal
	KindString
	KindBoolean
	KindDate
	KindDateTime
	KindTime
	KindUUID
	KindBinary
	KindJSON
)

var kindNames = map[Kind]string{
	KindUnknown:  "unknown",
	KindInteger:  "integer",
	KindDecimal:  "decimal",
	KindString:   "string",
	KindBoolean:  "boolean",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindTime:     "time",
	KindUUID:     "uuid",
	KindBinary:   "binary",
	KindJSON:     "json",
}

func (k Kind) String() string {
	return kindNames[k]
}

var baseKinds = map[string]Kind{
	"INT": KindInteger, "INTEGER": KindInteger, "BIGINT": KindInteger, "SMALLINT": KindInteger,
	"TINYINT": KindInteger, "MEDIUMINT": KindInteger, "SERIAL": KindInteger, "BIGSERIAL": KindInteger,
	"SMALLSERIAL": KindInteger, "INT2": KindInteger, "INT4": KindInteger, "INT8": KindInteger,
	"DECIMAL": KindDecimal, "NUMERIC": KindDecimal, "FLOAT": KindDecimal, "DOUBLE": KindDecimal,
	"REAL": KindDecimal, "MONEY": KindDecimal, "SMALLMONEY": KindDecimal, "BINARY_FLOAT": KindDecimal,
	"BINARY_DOUBLE": KindDecimal, "FLOAT4": KindDecimal, "FLOAT8": KindDecimal, "DOUBLE PRECISION": KindDecimal,
	"VARCHAR": KindString, "CHAR": KindString, "TEXT": KindString, "NVARCHAR": KindString,
	"NCHAR": KindString, "VARCHAR2": KindString, "NVARCHAR2": KindString, "CLOB": KindString,
	"NCLOB": KindString, "NTEXT": KindString, "TINYTEXT": KindString, "MEDIUMTEXT": KindString,
	"LONGTEXT": KindString, "STRING": KindString, "CHARACTER VARYING": KindString, "CHARACTER": KindString,
	"ENUM": KindString, "CITEXT": KindString,
	"BOOLEAN": KindBoolean, "BOOL": KindBoolean, "BIT": KindBoolean,
	"DATE": KindDate,
	"DATETIME": KindDateTime, "DATETIME2": KindDateTime, "SMALLDATETIME": KindDateTime, "TIMESTAMP": KindDateTime,
	"TIMESTAMPTZ": KindDateTime, "DATETIMEOFFSET": KindDateTime, "TIMESTAMP WITH TIME ZONE": KindDateTime,
	"TIMESTAMP WITHOUT TIME ZONE": KindDateTime,
	"TIME": KindTime, "TIMETZ": KindTime,
	"UUID": KindUUID, "UNIQUEIDENTIFIER": KindUUID,
	"BLOB": KindBinary, "BYTEA": KindBinary, "BINARY": KindBinary, "VARBINARY": KindBinary,
	"RAW": KindBinary, "LONGBLOB": KindBinary, "IMAGE": KindBinary,
	"JSON": KindJSON, "JSONB": KindJSON,
}

// BaseType upper-cases typ and drops its parameters and modifiers:
// "varchar(255)" becomes "VARCHAR" and "int unsigned" becomes "INT".
func BaseType(typ string) string {
	base := strings.ToUpper(strings.TrimSpace(typ))
	if i := strings.IndexByte(base, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(base[i:], ')'); j >= 0 {
			rest = base[i+j+1:]
		}
		base = strings.TrimSpace(base[:i] + rest)
	}
	base = strings.Join(strings.Fields(base), " ")
	if _, ok := baseKinds[base]; ok {
		return base
	}
	for _, suffix := range []string{" UNSIGNED", " ZEROFILL", " SIGNED"} {
		base = strings.TrimSuffix(base, suffix)
	}
	if _, ok := baseKinds[base]; ok {
		return base
	}
	if i := strings.IndexByte(base, ' '); i >= 0 {
		return base[:i]
	}
	return base
}

// typeParams returns the numeric parameters of a type such as DECIMAL(10,2).
func typeParams(typ string) []int {
	open := strings.IndexByte(typ, '(')
	end := strings.IndexByte(typ, ')')
	if open < 0 || end < open {
		return nil
	}
	var params []int
	for _, p := range strings.Split(typ[open+1:end], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil
		}
		params = append(params, n)
	}
	return params
}

func typeLength(typ string) int {
	if KindOf(typ) != KindString {
		return 0
	}
	if p := typeParams(typ); len(p) == 1 {
		return p[0]
	}
	return 0
}

// Scale returns the declared number of fractional digits of a decimal type,
// defaulting to 2.
func Scale(typ string) int {
	if p := typeParams(typ); len(p) == 2 {
		return p[1]
	}
	return 2
}

// KindOf classifies a native column type.
func KindOf(typ string) Kind {
	base := BaseType(typ)
	params := typeParams(typ)
	switch base {
	case "TINYINT":
		if len(params) == 1 && params[0] == 1 {
			return KindBoolean
		}
	case "BIT":
		if len(params) == 1 && params[0] > 1 {
			return KindBinary
		}
	case "NUMBER":
		if len(params) == 1 || (len(params) == 2 && params[1] == 0) {
			if len(params) == 1 && params[0] == 1 {
				return KindBoolean
			}
			return KindInteger
		}
		return KindDecimal
	}
	if k, ok := baseKinds[base]; ok {
		return k
	}
	return KindUnknown
}
