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

// Package schema describes the tables rows are generated for.
package schema

import (
	"fmt"
	"strings"
)

// Column describes one table column.
type Column struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	MaxLength  int    `yaml:"max_length,omitempty"`
	Nullable   bool   `yaml:"nullable,omitempty"`
	PrimaryKey bool   `yaml:"primary_key,omitempty"`
	Identity   bool   `yaml:"identity,omitempty"`
	Unique     bool   `yaml:"unique,omitempty"`
}

// Kind classifies the column type.
func (c *Column) Kind() Kind {
	return KindOf(c.Type)
}

// Length returns MaxLength, falling back to the length declared in the type,
// e.g. 255 for VARCHAR(255). Zero means unbounded.
func (c *Column) Length() int {
	if c.MaxLength > 0 {
		return c.MaxLength
	}
	return typeLength(c.Type)
}

// ForeignKey is a single-column reference to another table.
type ForeignKey struct {
	Column           string `yaml:"column"`
	ReferencedTable  string `yaml:"referenced_table"`
	ReferencedColumn string `yaml:"referenced_column"`
}

// Table describes one table.
type Table struct {
	Name        string       `yaml:"name"`
	Columns     []Column     `yaml:"columns"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty"`
	// UniqueKeys lists composite unique constraints.
	UniqueKeys [][]string `yaml:"unique_keys,omitempty"`
}

// Column looks a column up case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ForeignKey returns the reference declared on column, if any.
func (t *Table) ForeignKey(column string) (ForeignKey, bool) {
	for _, fk := range t.ForeignKeys {
		if strings.EqualFold(fk.Column, column) {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// PrimaryKey lists the primary key columns in declaration order.
func (t *Table) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// UniqueSets lists every set of columns whose value tuple must be unique: the
// primary key, composite unique keys and single unique columns.
func (t *Table) UniqueSets() [][]string {
	var sets [][]string
	if pk := t.PrimaryKey(); len(pk) > 0 {
		sets = append(sets, pk)
	}
	sets = append(sets, t.UniqueKeys...)
	for _, c := range t.Columns {
		if c.Unique && !c.PrimaryKey {
			sets = append(sets, []string{c.Name})
		}
	}
	return sets
}

// IsUnique reports whether column alone must hold distinct values.
func (t *Table) IsUnique(column string) bool {
	for _, set := range t.UniqueSets() {
		if len(set) == 1 && strings.EqualFold(set[0], column) {
			return true
		}
	}
	return false
}

// Schema is a set of tables keyed case-insensitively by name.
type Schema struct {
	Tables []*Table `yaml:"tables"`
}

// New builds a schema from tables.
func New(tables ...*Table) *Schema {
	return &Schema{Tables: tables}
}

// Table looks a table up case-insensitively.
func (s *Schema) Table(name string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return nil, false
}

// Validate checks that every key refers to declared columns and tables.
func (s *Schema) Validate() error {
	seen := make(map[string]bool)
	for _, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("table with empty name")
		}
		key := strings.ToLower(t.Name)
		if seen[key] {
			return fmt.Errorf("table %q declared twice", t.Name)
		}
		seen[key] = true
		for _, c := range t.Columns {
			if c.Name == "" || c.Type == "" {
				return fmt.Errorf("table %q: column needs a name and a type", t.Name)
			}
		}
		for _, fk := range t.ForeignKeys {
			if _, ok := t.Column(fk.Column); !ok {
				return fmt.Errorf("table %q: foreign key on unknown column %q", t.Name, fk.Column)
			}
			parent, ok := s.Table(fk.ReferencedTable)
			if !ok {
				return fmt.Errorf("table %q: foreign key %q references unknown table %q", t.Name, fk.Column, fk.ReferencedTable)
			}
			if _, ok := parent.Column(fk.ReferencedColumn); !ok {
				return fmt.Errorf("table %q: foreign key %q references unknown column %s.%s", t.Name, fk.Column, parent.Name, fk.ReferencedColumn)
			}
		}
		for _, uk := range t.UniqueKeys {
			for _, col := range uk {
				if _, ok := t.Column(col); !ok {
					return fmt.Errorf("table %q: unique key on unknown column %q", t.Name, col)
				}
			}
		}
	}
	return nil
}
