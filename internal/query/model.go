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

import "strings"

// Operator is the comparison kind of a WhereCondition.
type Operator string

const (
	OpEQ         Operator = "EQ"
	OpNEQ        Operator = "NEQ"
	OpGT         Operator = "GT"
	OpGTE        Operator = "GTE"
	OpLT         Operator = "LT"
	OpLTE        Operator = "LTE"
	OpLike       Operator = "LIKE"
	OpNotLike    Operator = "NOT_LIKE"
	OpIn         Operator = "IN"
	OpNotIn      Operator = "NOT_IN"
	OpBetween    Operator = "BETWEEN"
	OpIsNull     Operator = "IS_NULL"
	OpIsNotNull  Operator = "IS_NOT_NULL"
	OpYearEquals Operator = "YEAR_EQUALS"
	OpExists     Operator = "EXISTS"
	OpNotExists  Operator = "NOT_EXISTS"
)

// Flip returns the operator that keeps the comparison true when its operands
// are swapped.
func (o Operator) Flip() Operator {
	switch o {
	case OpGT:
		return OpLT
	case OpGTE:
		return OpLTE
	case OpLT:
		return OpGT
	case OpLTE:
		return OpGTE
	}
	return o
}

// TableRequirement is a table referenced by the query and the aliases it is
// known by.
type TableRequirement struct {
	Name    string
	Aliases []string
}

// WhereCondition is one predicate on a column. Values holds IN lists, Min and
// Max hold BETWEEN bounds and Subquery holds opaque subquery text.
type WhereCondition struct {
	Alias    string
	Column   string
	Operator Operator
	Value    string
	Values   []string
	Min      string
	Max      string
	Subquery string
	// FromJoin marks predicates that appeared inside a JOIN ... ON clause.
	FromJoin bool
}

// JoinRequirement couples two columns that must hold equal values.
type JoinRequirement struct {
	LeftAlias   string
	LeftColumn  string
	LeftTable   string
	RightAlias  string
	RightColumn string
	RightTable  string
}

// QueryModel is the structural description of a SELECT statement.
type QueryModel struct {
	Tables           []TableRequirement
	WhereConditions  []WhereCondition
	JoinRequirements []JoinRequirement
	// Strategy names the parse strategy that produced the model.
	Strategy string
}

// TableForAlias resolves an alias or table name to the table it refers to.
// The lookup is case-insensitive.
func (m *QueryModel) TableForAlias(alias string) (string, bool) {
	if m == nil || alias == "" {
		return "", false
	}
	for _, t := range m.Tables {
		for _, a := range t.Aliases {
			if strings.EqualFold(a, alias) {
				return t.Name, true
			}
		}
	}
	for _, t := range m.Tables {
		if strings.EqualFold(t.Name, alias) {
			return t.Name, true
		}
	}
	return "", false
}

// TableNames lists the referenced tables in order of first appearance.
func (m *QueryModel) TableNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Tables))
	for _, t := range m.Tables {
		names = append(names, t.Name)
	}
	return names
}

// ConditionsFor returns the conditions attributed to alias.
func (m *QueryModel) ConditionsFor(alias string) []WhereCondition {
	if m == nil {
		return nil
	}
	var out []WhereCondition
	for _, c := range m.WhereConditions {
		if strings.EqualFold(c.Alias, alias) {
			out = append(out, c)
		}
	}
	return out
}

// IsEmpty reports whether nothing was recognized.
func (m *QueryModel) IsEmpty() bool {
	return m == nil || (len(m.Tables) == 0 && len(m.WhereConditions) == 0 && len(m.JoinRequirements) == 0)
}
