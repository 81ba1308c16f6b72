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
	"errors"
	"math"
	"testing"
	"time"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHandler(t *testing.T, dt DatabaseType) Handler {
	t.Helper()
	h, err := NewHandler(dt)
	require.NoError(t, err)
	return h
}

func TestNewHandler(t *testing.T) {
	for _, dt := range []DatabaseType{MySQL, Oracle, SQLServer, PostgreSQL} {
		t.Run(string(dt), func(t *testing.T) {
			h := mustHandler(t, dt)
			assert.Equal(t, dt, h.Type())
			assert.True(t, IsSupported(dt))
		})
	}

	_, err := NewHandler("db2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotSupported))
	var nse *NotSupportedError
	require.ErrorAs(t, err, &nse)
	assert.Equal(t, DatabaseType("db2"), nse.Type)
	assert.False(t, IsSupported("db2"))

	assert.Equal(t, []DatabaseType{MySQL, Oracle, PostgreSQL, SQLServer}, SupportedTypes())
}

func TestParseDatabaseType(t *testing.T) {
	tests := map[string]DatabaseType{
		"mysql":            MySQL,
		"cloudsqlmysql":    MySQL,
		"Postgres":         PostgreSQL,
		"cloudsqlpostgres": PostgreSQL,
		" MSSQL ":          SQLServer,
		"sqlserver":        SQLServer,
		"ORACLE":           Oracle,
	}
	for in, want := range tests {
		got, err := ParseDatabaseType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDatabaseType("sybase")
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestEscapeIdentifier(t *testing.T) {
	tests := []struct {
		dt   DatabaseType
		in   string
		want string
	}{
		{MySQL, "users", "`users`"},
		{MySQL, "we`ird", "`we``ird`"},
		{PostgreSQL, "public.users", `"public"."users"`},
		{PostgreSQL, `my"t`, `"my""t"`},
		{Oracle, "EMPLOYEES", `"EMPLOYEES"`},
		{SQLServer, "dbo.users", "[dbo].[users]"},
		{SQLServer, "a]b", "[a]]b]"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dt)+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, mustHandler(t, tt.dt).EscapeIdentifier(tt.in))
		})
	}
}

func TestConvertDateFunction(t *testing.T) {
	tests := []struct {
		name string
		dt   DatabaseType
		in   string
		want string
	}{
		{"mysql keeps generic form", MySQL, "DATE_SUB(NOW(), INTERVAL 30 DAY)", "DATE_SUB(NOW(), INTERVAL 30 DAY)"},
		{"postgres interval", PostgreSQL, "created_at >= DATE_SUB(NOW(), INTERVAL 30 DAY)", "created_at >= (NOW() - INTERVAL '30 DAY')"},
		{"postgres lower case", PostgreSQL, "date_add(now(), interval 1 day)", "(NOW() + INTERVAL '1 DAY')"},
		{"postgres curdate", PostgreSQL, "CURDATE()", "CURRENT_DATE"},
		{"oracle months", Oracle, "DATE_ADD(CURDATE(), INTERVAL 1 MONTH)", "ADD_MONTHS(TRUNC(SYSDATE), 1)"},
		{"oracle years back", Oracle, "DATE_SUB(NOW(), INTERVAL 2 YEAR)", "ADD_MONTHS(SYSDATE, -24)"},
		{"oracle weeks", Oracle, "DATE_ADD(NOW(), INTERVAL 2 WEEK)", "(SYSDATE + NUMTODSINTERVAL(14, 'DAY'))"},
		{"oracle plural unit", Oracle, "DATE_ADD(NOW(), INTERVAL 3 HOURS)", "(SYSDATE + NUMTODSINTERVAL(3, 'HOUR'))"},
		{"sqlserver dateadd", SQLServer, "DATE_SUB(NOW(), INTERVAL 7 DAY)", "DATEADD(DAY, -7, GETDATE())"},
		{"sqlserver nested", SQLServer, "DATE_ADD(DATE_SUB(CURDATE(), INTERVAL 1 YEAR), INTERVAL 2 DAY)", "DATEADD(DAY, 2, DATEADD(YEAR, -1, CAST(GETDATE() AS DATE)))"},
		{"sqlserver current_timestamp", SQLServer, "CURRENT_TIMESTAMP", "GETDATE()"},
		{"literal untouched", SQLServer, "'NOW()'", "'NOW()'"},
		{"column named now untouched", PostgreSQL, "t.now + 1", "t.now + 1"},
		{"unparseable call untouched", PostgreSQL, "DATE_ADD(x)", "DATE_ADD(x)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustHandler(t, tt.dt).ConvertDateFunction(tt.in))
		})
	}
}

func TestConvertDataType(t *testing.T) {
	tests := []struct {
		dt   DatabaseType
		in   string
		want string
	}{
		{MySQL, "STRING", "VARCHAR(255)"},
		{MySQL, "VARCHAR(40)", "VARCHAR(40)"},
		{MySQL, "INT(11)", "INT"},
		{MySQL, "UUID", "CHAR(36)"},
		{PostgreSQL, "int", "INTEGER"},
		{PostgreSQL, "DATETIME", "TIMESTAMP"},
		{PostgreSQL, "BLOB", "BYTEA"},
		{Oracle, "VARCHAR(40)", "VARCHAR2(40)"},
		{Oracle, "BOOLEAN", "NUMBER(1)"},
		{Oracle, "DECIMAL(12,4)", "NUMBER(12,4)"},
		{SQLServer, "BOOLEAN", "BIT"},
		{SQLServer, "STRING(100)", "NVARCHAR(100)"},
		{SQLServer, "UUID", "UNIQUEIDENTIFIER"},
		{SQLServer, "GEOMETRY", "GEOMETRY"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dt)+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, mustHandler(t, tt.dt).ConvertDataType(tt.in))
		})
	}
}

func TestFormatValue(t *testing.T) {
	day := time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	tests := []struct {
		name  string
		dt    DatabaseType
		value any
		typ   string
		want  string
	}{
		{"mysql quote", MySQL, "O'Brien", "VARCHAR(50)", `'O''Brien'`},
		{"mysql backslash", MySQL, `C:\x`, "TEXT", `'C:\\x'`},
		{"mysql bool", MySQL, true, "BOOLEAN", "TRUE"},
		{"mysql tinyint bool", MySQL, "false", "TINYINT(1)", "FALSE"},
		{"mysql int", MySQL, int64(42), "INT", "42"},
		{"mysql int from string", MySQL, "42", "BIGINT", "42"},
		{"mysql decimal", MySQL, 3.5, "DECIMAL(10,2)", "3.5"},
		{"mysql null", MySQL, nil, "INT", "NULL"},
		{"mysql date", MySQL, day, "DATE", "STR_TO_DATE('2024-03-05', '%Y-%m-%d')"},
		{"mysql datetime", MySQL, day, "DATETIME", "STR_TO_DATE('2024-03-05 10:20:30', '%Y-%m-%d %H:%i:%s')"},
		{"mysql time", MySQL, "10:20:30", "TIME", "'10:20:30'"},
		{"mysql blob", MySQL, []byte{0xab, 0x01}, "BLOB", "X'AB01'"},
		{"mysql untyped int", MySQL, 7, "", "7"},
		{"mysql untyped string", MySQL, "hi", "", "'hi'"},
		{"postgres quote", PostgreSQL, "O'Brien", "TEXT", `'O''Brien'`},
		{"postgres backslash", PostgreSQL, `a\b`, "TEXT", `E'a\\b'`},
		{"postgres bool", PostgreSQL, false, "BOOLEAN", "FALSE"},
		{"postgres date string", PostgreSQL, "2024-03-05", "DATE", "TO_DATE('2024-03-05', 'YYYY-MM-DD')"},
		{"postgres timestamp", PostgreSQL, day, "TIMESTAMP", "TO_TIMESTAMP('2024-03-05 10:20:30', 'YYYY-MM-DD HH24:MI:SS')"},
		{"postgres bytea", PostgreSQL, []byte{0xab}, "BYTEA", "DECODE('ab', 'hex')"},
		{"postgres uuid", PostgreSQL, id, "UUID", "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'"},
		{"postgres json", PostgreSQL, map[string]any{"a": 1}, "JSONB", `'{"a":1}'`},
		{"oracle bool", Oracle, true, "NUMBER(1)", "1"},
		{"oracle string", Oracle, "it's", "VARCHAR2(10)", "'it''s'"},
		{"oracle timestamp", Oracle, day, "TIMESTAMP", "TO_TIMESTAMP('2024-03-05 10:20:30', 'YYYY-MM-DD HH24:MI:SS')"},
		{"oracle raw", Oracle, []byte{1}, "RAW(16)", "HEXTORAW('01')"},
		{"sqlserver bit", SQLServer, true, "BIT", "1"},
		{"sqlserver national type", SQLServer, "abc", "NVARCHAR(10)", "N'abc'"},
		{"sqlserver non ascii", SQLServer, "Zoë", "VARCHAR(10)", "N'Zoë'"},
		{"sqlserver plain", SQLServer, "abc", "VARCHAR(10)", "'abc'"},
		{"sqlserver date", SQLServer, day, "DATE", "CONVERT(DATE, '2024-03-05', 23)"},
		{"sqlserver datetime2", SQLServer, day, "DATETIME2", "CONVERT(DATETIME2, '2024-03-05 10:20:30', 120)"},
		{"sqlserver binary", SQLServer, []byte{0xab}, "VARBINARY(16)", "0xAB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mustHandler(t, tt.dt).FormatValue(tt.value, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatValueErrors(t *testing.T) {
	tests := []struct {
		name  string
		value any
		typ   string
	}{
		{"text into int", "abc", "INT"},
		{"fraction into int", 1.5, "INT"},
		{"nan decimal", math.NaN(), "DECIMAL(10,2)"},
		{"bad date", "not a date", "DATE"},
		{"two is not boolean", 2, "BOOLEAN"},
		{"struct into varchar", struct{ A int }{1}, "VARCHAR(10)"},
		{"nul byte", "a\x00b", "TEXT"},
		{"invalid json", "{bad", "JSON"},
	}
	for _, dt := range SupportedTypes() {
		h := mustHandler(t, dt)
		for _, tt := range tests {
			t.Run(string(dt)+"/"+tt.name, func(t *testing.T) {
				_, err := h.FormatValue(tt.value, tt.typ)
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnrepresentable)
				var fe *FormatError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, dt, fe.Dialect)
				assert.Equal(t, tt.typ, fe.TargetType)
			})
		}
	}
}

func TestPaginationSyntax(t *testing.T) {
	assert.Equal(t, "LIMIT 10", mustHandler(t, MySQL).PaginationSyntax(0, 10))
	assert.Equal(t, "LIMIT 10 OFFSET 20", mustHandler(t, MySQL).PaginationSyntax(20, 10))
	assert.Equal(t, "LIMIT 5 OFFSET 1", mustHandler(t, PostgreSQL).PaginationSyntax(1, 5))
	assert.Equal(t, "OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY", mustHandler(t, Oracle).PaginationSyntax(20, 10))
	assert.Equal(t, "OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY", mustHandler(t, SQLServer).PaginationSyntax(-3, 10))
}

func TestAutoIncrementSyntax(t *testing.T) {
	tests := map[DatabaseType]string{
		MySQL:      "`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY",
		PostgreSQL: `"id" SERIAL CONSTRAINT "users_pkey" PRIMARY KEY`,
		SQLServer:  "[id] INT IDENTITY(1,1) CONSTRAINT [PK_users] PRIMARY KEY",
		Oracle:     `"id" NUMBER GENERATED BY DEFAULT AS IDENTITY CONSTRAINT "PK_users" PRIMARY KEY`,
	}
	for dt, want := range tests {
		assert.Equal(t, want, mustHandler(t, dt).AutoIncrementSyntax("users", "id"), string(dt))
	}
}

func TestBuildInsert(t *testing.T) {
	users := &schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: "INT", PrimaryKey: true, Identity: true},
			{Name: "name", Type: "VARCHAR(50)"},
			{Name: "active", Type: "BOOLEAN"},
		},
	}

	t.Run("mysql", func(t *testing.T) {
		got, err := BuildInsert(mustHandler(t, MySQL), users, []string{"id", "name", "active"}, []any{int64(1), "Ann", true})
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO `users` (`id`, `name`, `active`) VALUES (1, 'Ann', TRUE)", got)
	})

	t.Run("sqlserver identity", func(t *testing.T) {
		got, err := BuildInsert(mustHandler(t, SQLServer), users, []string{"id", "name"}, []any{int64(1), "Ann"})
		require.NoError(t, err)
		assert.Equal(t, "SET IDENTITY_INSERT [users] ON; INSERT INTO [users] ([id], [name]) VALUES (1, 'Ann'); SET IDENTITY_INSERT [users] OFF", got)
	})

	t.Run("sqlserver without identity value", func(t *testing.T) {
		got, err := BuildInsert(mustHandler(t, SQLServer), users, []string{"name", "active"}, []any{"Ann", false})
		require.NoError(t, err)
		assert.Equal(t, "INSERT INTO [users] ([name], [active]) VALUES ('Ann', 0)", got)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := BuildInsert(mustHandler(t, MySQL), users, []string{"id"}, nil)
		assert.Error(t, err)
	})

	t.Run("unrepresentable", func(t *testing.T) {
		_, err := BuildInsert(mustHandler(t, PostgreSQL), users, []string{"id"}, []any{"abc"})
		assert.ErrorIs(t, err, ErrUnrepresentable)
		assert.Contains(t, err.Error(), "users.id")
	})
}
