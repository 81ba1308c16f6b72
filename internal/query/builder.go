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
package query

import (
	"errors"
	"strings"
)

var (
	errNoTables  = errors.New("no tables recognized")
	errNotSelect = errors.New("statement is not a SELECT")
)

// modelBuilder accumulates tables, conditions and joins while a strategy walks
// a statement. Tables are deduplicated case-insensitively.
type modelBuilder struct {
	model    QueryModel
	tableIdx map[string]int
}

func newModelBuilder() *modelBuilder {
	return &modelBuilder{tableIdx: make(map[string]int)}
}

func (b *modelBuilder) addTable(name, alias string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	key := strings.ToLower(name)
	idx, ok := b.tableIdx[key]
	if !ok {
		idx = len(b.model.Tables)
		b.tableIdx[key] = idx
		b.model.Tables = append(b.model.Tables, TableRequirement{Name: name})
	}
	if alias == "" || strings.EqualFold(alias, name) {
		return
	}
	t := &b.model.Tables[idx]
	for _, a := range t.Aliases {
		if strings.EqualFold(a, alias) {
			return
		}
	}
	t.Aliases = append(t.Aliases, alias)
}

func (b *modelBuilder) addCondition(c WhereCondition) {
	if c.Column == "" && c.Operator != OpExists && c.Operator != OpNotExists {
		return
	}
	b.model.WhereConditions = append(b.model.WhereConditions, c)
}

func (b *modelBuilder) addJoin(j JoinRequirement) {
	for _, existing := range b.model.JoinRequirements {
		if strings.EqualFold(existing.LeftAlias, j.LeftAlias) && strings.EqualFold(existing.LeftColumn, j.LeftColumn) &&
			strings.EqualFold(existing.RightAlias, j.RightAlias) && strings.EqualFold(existing.RightColumn, j.RightColumn) {
			return
		}
	}
	b.model.JoinRequirements = append(b.model.JoinRequirements, j)
}

// build finalizes the model. Unqualified columns are attributed to the only
// table of single-table queries and join sides are resolved to table names.
func (b *modelBuilder) build() (*QueryModel, error) {
	m := b.model
	if len(m.Tables) == 0 {
		return &m, errNoTables
	}
	if len(m.Tables) == 1 {
		alias := m.Tables[0].Name
		if len(m.Tables[0].Aliases) > 0 {
			alias = m.Tables[0].Aliases[0]
		}
		for i := range m.WhereConditions {
			c := &m.WhereConditions[i]
			if c.Alias == "" && c.Column != "" {
				c.Alias = alias
			}
		}
	}
	for i := range m.JoinRequirements {
		j := &m.JoinRequirements[i]
		if t, ok := m.TableForAlias(j.LeftAlias); ok {
			j.LeftTable = t
		}
		if t, ok := m.TableForAlias(j.RightAlias); ok {
			j.RightTable = t
		}
	}
	return &m, nil
}
