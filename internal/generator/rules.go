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
package generator

import (
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/constraint"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/query"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
	"go.uber.org/zap"
)

type bound struct {
	value     string
	inclusive bool
}

// columnRule gathers every predicate a column's values must satisfy.
type columnRule struct {
	eq       []string
	neq      []string
	in       []string
	hasIn    bool
	notIn    []string
	likes    []constraint.LikePattern
	notLikes []string
	lower    []bound
	upper    []bound
	year     int
	isNull   bool
	notNull  bool
	// mandatory marks predicates from an ON clause.
	mandatory bool
}

func (r *columnRule) restrictIn(values []string) {
	if !r.hasIn {
		r.in = append([]string(nil), values...)
		r.hasIn = true
		return
	}
	var kept []string
	for _, v := range r.in {
		if containsString(values, v) {
			kept = append(kept, v)
		}
	}
	r.in = kept
}

func (r *columnRule) excluded(s string) bool {
	return containsString(r.neq, s) || containsString(r.notIn, s)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// ruleSet indexes rules by lower-cased table and column name.
type ruleSet map[string]map[string]*columnRule

func (rs ruleSet) rule(table, column string) *columnRule {
	t := strings.ToLower(table)
	if rs[t] == nil {
		rs[t] = make(map[string]*columnRule)
	}
	c := strings.ToLower(column)
	if rs[t][c] == nil {
		rs[t][c] = &columnRule{}
	}
	return rs[t][c]
}

func (rs ruleSet) get(table, column string) *columnRule {
	return rs[strings.ToLower(table)][strings.ToLower(column)]
}

// resolver maps a predicate's alias and column to a schema column.
type resolver struct {
	schema *schema.Schema
	model  *query.QueryModel
	// tables are searched for unqualified columns, in order.
	tables []*schema.Table
	lookup func(name string) (*schema.Table, bool)
	// only, when set, limits resolution to the named lower-cased tables.
	only   map[string]bool
	logger *zap.Logger
}

func (r resolver) table(name string) (*schema.Table, bool) {
	if r.lookup != nil {
		return r.lookup(name)
	}
	return r.schema.Table(name)
}

func (r resolver) resolve(alias, column string) (*schema.Table, *schema.Column, bool) {
	t, c, ok := r.find(alias, column)
	if ok && r.only != nil && !r.only[strings.ToLower(t.Name)] {
		return nil, nil, false
	}
	return t, c, ok
}

func (r resolver) find(alias, column string) (*schema.Table, *schema.Column, bool) {
	if column == "" {
		return nil, nil, false
	}
	if alias != "" {
		name, ok := r.model.TableForAlias(alias)
		if !ok {
			name = alias
		}
		t, ok := r.table(name)
		if !ok {
			r.logger.Debug("Predicate alias does not resolve to a known table", zap.String("alias", alias), zap.String("column", column))
			return nil, nil, false
		}
		c, ok := t.Column(column)
		if !ok {
			r.logger.Debug("Predicate column not in table", zap.String("table", t.Name), zap.String("column", column))
			return nil, nil, false
		}
		return t, c, true
	}
	var found *schema.Table
	for _, t := range r.tables {
		if _, ok := t.Column(column); !ok {
			continue
		}
		if found != nil {
			r.logger.Debug("Unqualified column is ambiguous, using first table", zap.String("column", column), zap.String("table", found.Name))
			break
		}
		found = t
	}
	if found == nil {
		return nil, nil, false
	}
	c, _ := found.Column(column)
	return found, c, true
}

// addCondition records cond. Comparison operators are always taken; the
// remaining kinds only when all is set, since the constraint set already
// carries them for the top-level query.
func (rs ruleSet) addCondition(res resolver, cond query.WhereCondition, all bool) {
	t, c, ok := res.resolve(cond.Alias, cond.Column)
	if !ok {
		return
	}
	r := rs.rule(t.Name, c.Name)
	switch cond.Operator {
	case query.OpEQ:
		r.eq = append(r.eq, cond.Value)
		r.mandatory = r.mandatory || cond.FromJoin
	case query.OpNEQ:
		r.neq = append(r.neq, cond.Value)
	case query.OpGT:
		r.lower = append(r.lower, bound{value: cond.Value})
	case query.OpGTE:
		r.lower = append(r.lower, bound{value: cond.Value, inclusive: true})
	case query.OpLT:
		r.upper = append(r.upper, bound{value: cond.Value})
	case query.OpLTE:
		r.upper = append(r.upper, bound{value: cond.Value, inclusive: true})
	}
	if !all {
		return
	}
	switch cond.Operator {
	case query.OpLike:
		r.likes = append(r.likes, constraint.NewLikePattern(cond.Alias, cond.Column, cond.Value, false))
	case query.OpNotLike:
		r.notLikes = append(r.notLikes, cond.Value)
	case query.OpIn:
		if cond.Subquery == "" {
			r.restrictIn(cond.Values)
		}
	case query.OpNotIn:
		r.notIn = append(r.notIn, cond.Values...)
	case query.OpBetween:
		r.lower = append(r.lower, bound{value: cond.Min, inclusive: true})
		r.upper = append(r.upper, bound{value: cond.Max, inclusive: true})
	case query.OpIsNull:
		r.isNull = true
	case query.OpIsNotNull:
		r.notNull = true
	case query.OpYearEquals:
		if y, err := strconv.Atoi(strings.TrimSpace(cond.Value)); err == nil {
			r.year = y
		}
	}
}

// addConstraints records every attributable constraint of cs.
func (rs ruleSet) addConstraints(res resolver, cs *constraint.ConstraintSet) {
	if cs == nil {
		return
	}
	at := func(alias, column string) *columnRule {
		t, c, ok := res.resolve(alias, column)
		if !ok {
			return nil
		}
		return rs.rule(t.Name, c.Name)
	}
	for _, p := range cs.LikePatterns() {
		if r := at(p.Alias, p.Column); r != nil {
			if p.Negated {
				r.notLikes = append(r.notLikes, p.Pattern)
			} else {
				r.likes = append(r.likes, p)
			}
		}
	}
	for _, b := range cs.BooleanConstraints() {
		if r := at(b.Alias, b.Column); r != nil {
			r.eq = append(r.eq, b.Value)
		}
	}
	for _, d := range cs.DateConstraints() {
		if r := at(d.Alias, d.Column); r != nil {
			r.year = d.Year
		}
	}
	for _, j := range cs.JoinConstraints() {
		if r := at(j.Alias, j.Column); r != nil {
			r.eq = append(r.eq, j.Value)
			r.mandatory = true
		}
	}
	for _, in := range cs.InClauseConstraints() {
		if in.Type == constraint.Subquery {
			continue
		}
		if r := at(in.Alias, in.Column); r != nil {
			if in.Negated {
				r.notIn = append(r.notIn, in.Values...)
			} else {
				r.restrictIn(in.Values)
			}
		}
	}
	for _, b := range cs.BetweenConstraints() {
		if r := at(b.Alias, b.Column); r != nil {
			r.lower = append(r.lower, bound{value: b.Min, inclusive: true})
			r.upper = append(r.upper, bound{value: b.Max, inclusive: true})
		}
	}
	for _, n := range cs.NullConstraints() {
		if r := at(n.Alias, n.Column); r != nil {
			if n.Type == constraint.IsNull {
				r.isNull = true
			} else {
				r.notNull = true
			}
		}
	}
}

// empty reports whether r places no restriction on values.
func (r *columnRule) empty() bool {
	return r == nil || (len(r.eq) == 0 && len(r.neq) == 0 && !r.hasIn && len(r.notIn) == 0 &&
		len(r.likes) == 0 && len(r.notLikes) == 0 && len(r.lower) == 0 && len(r.upper) == 0 &&
		r.year == 0 && !r.isNull && !r.notNull)
}

// restrictsValues reports whether r limits a column to particular values or
// a range, the parts of a rule a referenced column can share.
func (r *columnRule) restrictsValues() bool {
	return r != nil && (len(r.eq) > 0 || r.hasIn || len(r.lower) > 0 || len(r.upper) > 0)
}

// narrowedBy returns a copy of r that also carries the value restrictions
// of other. r may be nil.
func (r *columnRule) narrowedBy(other *columnRule) *columnRule {
	out := &columnRule{}
	if r != nil {
		*out = *r
		out.eq = append([]string(nil), r.eq...)
		out.neq = append([]string(nil), r.neq...)
		out.in = append([]string(nil), r.in...)
		out.notIn = append([]string(nil), r.notIn...)
		out.lower = append([]bound(nil), r.lower...)
		out.upper = append([]bound(nil), r.upper...)
	}
	out.eq = append(out.eq, other.eq...)
	if other.hasIn {
		out.restrictIn(other.in)
	}
	out.neq = append(out.neq, other.neq...)
	out.notIn = append(out.notIn, other.notIn...)
	out.lower = append(out.lower, other.lower...)
	out.upper = append(out.upper, other.upper...)
	return out
}
