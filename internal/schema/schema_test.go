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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		typ  string
		want Kind
	}{
		{"int", KindInteger},
		{"INT UNSIGNED", KindInteger},
		{"bigint(20)", KindInteger},
		{"tinyint(1)", KindBoolean},
		{"tinyint(4)", KindInteger},
		{"varchar(255)", KindString},
		{"character varying(64)", KindString},
		{"NVARCHAR2(100)", KindString},
		{"decimal(10,2)", KindDecimal},
		{"double precision", KindDecimal},
		{"NUMBER(10)", KindInteger},
		{"NUMBER(10,0)", KindInteger},
		{"NUMBER(1)", KindBoolean},
		{"NUMBER(10,2)", KindDecimal},
		{"NUMBER", KindDecimal},
		{"bit", KindBoolean},
		{"bit(8)", KindBinary},
		{"boolean", KindBoolean},
		{"date", KindDate},
		{"timestamp with time zone", KindDateTime},
		{"datetime2(7)", KindDateTime},
		{"time", KindTime},
		{"uuid", KindUUID},
		{"uniqueidentifier", KindUUID},
		{"bytea", KindBinary},
		{"jsonb", KindJSON},
		{"geometry", KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.typ), "kind %s", KindOf(tt.typ))
		})
	}
}

func TestBaseTypeAndLength(t *testing.T) {
	assert.Equal(t, "VARCHAR", BaseType("varchar(255)"))
	assert.Equal(t, "TIMESTAMP WITH TIME ZONE", BaseType("timestamp(6) with time zone"))
	assert.Equal(t, "INT", BaseType("int(11) unsigned"))

	c := Column{Name: "name", Type: "VARCHAR(40)"}
	assert.Equal(t, 40, c.Length())
	c.MaxLength = 10
	assert.Equal(t, 10, c.Length())
	assert.Equal(t, 0, (&Column{Type: "TEXT"}).Length())
	assert.Equal(t, 0, (&Column{Type: "DECIMAL(10,2)"}).Length())
	assert.Equal(t, 3, Scale("numeric(8,3)"))
	assert.Equal(t, 2, Scale("decimal"))
}

func shopSchema() *Schema {
	return New(
		&Table{
			Name:    "companies",
			Columns: []Column{{Name: "id", Type: "INT", PrimaryKey: true}, {Name: "name", Type: "VARCHAR(50)"}},
		},
		&Table{
			Name: "users",
			Columns: []Column{
				{Name: "id", Type: "INT", PrimaryKey: true},
				{Name: "email", Type: "VARCHAR(100)", Unique: true},
				{Name: "company_id", Type: "INT"},
				{Name: "manager_id", Type: "INT", Nullable: true},
			},
			ForeignKeys: []ForeignKey{
				{Column: "company_id", ReferencedTable: "companies", ReferencedColumn: "id"},
				{Column: "manager_id", ReferencedTable: "users", ReferencedColumn: "id"},
			},
		},
		&Table{
			Name: "user_roles",
			Columns: []Column{
				{Name: "user_id", Type: "INT"},
				{Name: "role_id", Type: "INT"},
			},
			ForeignKeys: []ForeignKey{{Column: "user_id", ReferencedTable: "users", ReferencedColumn: "id"}},
			UniqueKeys:  [][]string{{"user_id", "role_id"}},
		},
	)
}

func TestTableKeys(t *testing.T) {
	s := shopSchema()
	users, ok := s.Table("USERS")
	require.True(t, ok)
	assert.Equal(t, []string{"id"}, users.PrimaryKey())
	assert.Equal(t, [][]string{{"id"}, {"email"}}, users.UniqueSets())
	assert.True(t, users.IsUnique("Email"))
	assert.False(t, users.IsUnique("company_id"))

	fk, ok := users.ForeignKey("COMPANY_ID")
	require.True(t, ok)
	assert.Equal(t, "companies", fk.ReferencedTable)

	roles, _ := s.Table("user_roles")
	assert.Equal(t, [][]string{{"user_id", "role_id"}}, roles.UniqueSets())
	assert.False(t, roles.IsUnique("user_id"))
	assert.NoError(t, s.Validate())
}

func TestValidate(t *testing.T) {
	s := shopSchema()
	s.Tables[2].ForeignKeys = append(s.Tables[2].ForeignKeys, ForeignKey{Column: "role_id", ReferencedTable: "roles", ReferencedColumn: "id"})
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table \"roles\"")

	dup := New(&Table{Name: "a", Columns: []Column{{Name: "id", Type: "INT"}}}, &Table{Name: "A"})
	assert.ErrorContains(t, dup.Validate(), "declared twice")
}

func TestClosure(t *testing.T) {
	s := shopSchema()
	assert.Equal(t, []string{"user_roles", "users", "companies"}, s.Closure([]string{"user_roles"}))
	assert.Equal(t, []string{"companies"}, s.Closure([]string{"companies", "missing"}))
}

func TestDependencyOrder(t *testing.T) {
	s := shopSchema()

	t.Run("parents first", func(t *testing.T) {
		got, err := s.DependencyOrder([]string{"user_roles", "users", "companies"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"companies", "users", "user_roles"}, got)
	})

	t.Run("ties keep input order", func(t *testing.T) {
		got, err := s.DependencyOrder([]string{"user_roles", "companies", "users"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"companies", "users", "user_roles"}, got)
	})

	t.Run("extra edges", func(t *testing.T) {
		got, err := s.DependencyOrder([]string{"companies", "users"}, []Edge{{Child: "companies", Parent: "users"}})
		var cycle *CircularDependencyError
		require.ErrorAs(t, err, &cycle)
		assert.True(t, errors.Is(err, ErrCircularDependency))
		assert.ElementsMatch(t, []string{"companies", "users"}, cycle.Tables)
		assert.Nil(t, got)
	})

	t.Run("self reference ignored", func(t *testing.T) {
		got, err := s.DependencyOrder([]string{"users", "companies"}, []Edge{{Child: "users", Parent: "users"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"companies", "users"}, got)
	})
}

func TestLoadYAML(t *testing.T) {
	doc := `
tables:
  - name: companies
    columns:
      - {name: id, type: INT, primary_key: true}
      - {name: name, type: VARCHAR(50)}
  - name: users
    columns:
      - {name: id, type: INT, primary_key: true}
      - {name: company_id, type: INT}
      - {name: org_id, type: INT}
    foreign_keys:
      - references: companies.id
        column: company_id
      - {column: org_id, referenced_table: companies, referenced_column: id}
`
	s, err := LoadYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, s.Tables, 2)
	users, _ := s.Table("users")
	require.Len(t, users.ForeignKeys, 2)
	assert.Equal(t, ForeignKey{Column: "company_id", ReferencedTable: "companies", ReferencedColumn: "id"}, users.ForeignKeys[0])
	assert.Equal(t, "companies", users.ForeignKeys[1].ReferencedTable)

	_, err = LoadYAML(strings.NewReader("tables:\n  - name: t\n    colums: []\n"))
	assert.Error(t, err)

	_, err = LoadYAML(strings.NewReader("tables:\n  - name: t\n    columns: [{name: a, type: INT}]\n    foreign_keys: [{column: a, references: nodot}]\n"))
	assert.ErrorContains(t, err, "table.column")
}
