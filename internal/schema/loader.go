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
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadYAML decodes and validates a schema document. Foreign keys may be given
// either as referenced_table/referenced_column or as "references: table.column".
func LoadYAML(r io.Reader) (*Schema, error) {
	var doc struct {
		Tables []struct {
			Name        string     `yaml:"name"`
			Columns     []Column   `yaml:"columns"`
			UniqueKeys  [][]string `yaml:"unique_keys"`
			ForeignKeys []struct {
				Column           string `yaml:"column"`
				ReferencedTable  string `yaml:"referenced_table"`
				ReferencedColumn string `yaml:"referenced_column"`
				References       string `yaml:"references"`
			} `yaml:"foreign_keys"`
		} `yaml:"tables"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("error decoding schema: %w", err)
	}

	s := &Schema{}
	for _, raw := range doc.Tables {
		t := &Table{Name: raw.Name, Columns: raw.Columns, UniqueKeys: raw.UniqueKeys}
		for _, fk := range raw.ForeignKeys {
			ref := ForeignKey{Column: fk.Column, ReferencedTable: fk.ReferencedTable, ReferencedColumn: fk.ReferencedColumn}
			if fk.References != "" {
				table, column, ok := strings.Cut(fk.References, ".")
				if !ok {
					return nil, fmt.Errorf("table %q: references %q must be table.column", raw.Name, fk.References)
				}
				ref.ReferencedTable, ref.ReferencedColumn = table, column
			}
			t.ForeignKeys = append(t.ForeignKeys, ref)
		}
		s.Tables = append(s.Tables, t)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile reads a YAML schema from path.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening schema file: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}
