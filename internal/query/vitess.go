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
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// vitessStrategy walks the AST produced by the vitess SQL grammar.
type vitessStrategy struct{}

func (vitessStrategy) Name() string { return "vitess" }

func (vitessStrategy) Parse(sql string) (*QueryModel, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("vitess parse: %w", err)
	}
	w := &vitessWalker{b: newModelBuilder()}
	if err := w.statement(stmt); err != nil {
		return nil, err
	}
	return w.b.build()
}

type vitessWalker struct {
	b *modelBuilder
}

func (w *vitessWalker) statement(stmt sqlparser.Statement) error {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		w.selectStmt(s)
	case *sqlparser.Union:
		if err := w.statement(s.Left); err != nil {
			return err
		}
		return w.statement(s.Right)
	case *sqlparser.ParenSelect:
		return w.statement(s.Select)
	default:
		return errNotSelect
	}
	return nil
}

func (w *vitessWalker) selectStmt(s *sqlparser.Select) {
	for _, te := range s.From {
		w.tableExpr(te)
	}
	if s.Where != nil {
		w.where(s.Where.Expr)
	}
}

func (w *vitessWalker) tableExpr(te sqlparser.TableExpr) {
	switch t := te.(type) {
	case *sqlparser.AliasedTableExpr:
		switch e := t.Expr.(type) {
		case sqlparser.TableName:
			w.b.addTable(e.Name.String(), t.As.String())
		case *sqlparser.Subquery:
			_ = w.statement(e.Select)
		}
	case *sqlparser.ParenTableExpr:
		for _, inner := range t.Exprs {
			w.tableExpr(inner)
		}
	case *sqlparser.JoinTableExpr:
		w.tableExpr(t.LeftExpr)
		w.tableExpr(t.RightExpr)
		if t.Condition.On != nil {
			w.joinCondition(t.Condition.On, vitessAlias(t.RightExpr))
		}
	}
}

// vitessAlias returns the alias, or failing that the name, of the right-most
// table of a table expression.
func vitessAlias(te sqlparser.TableExpr) string {
	switch t := te.(type) {
	case *sqlparser.AliasedTableExpr:
		if !t.As.IsEmpty() {
			return t.As.String()
		}
		if name, ok := t.Expr.(sqlparser.TableName); ok {
			return name.Name.String()
		}
	case *sqlparser.JoinTableExpr:
		return vitessAlias(t.RightExpr)
	case *sqlparser.ParenTableExpr:
		if len(t.Exprs) > 0 {
			return vitessAlias(t.Exprs[len(t.Exprs)-1])
		}
	}
	return ""
}

func (w *vitessWalker) joinCondition(expr sqlparser.Expr, rightAlias string) {
	for _, e := range vitessConjuncts(expr) {
		if cmp, ok := e.(*sqlparser.ComparisonExpr); ok && cmp.Operator == sqlparser.EqualStr {
			left, lok := cmp.Left.(*sqlparser.ColName)
			right, rok := cmp.Right.(*sqlparser.ColName)
			if lok && rok {
				w.b.addJoin(JoinRequirement{
					LeftAlias:   left.Qualifier.Name.String(),
					LeftColumn:  left.Name.String(),
					RightAlias:  right.Qualifier.Name.String(),
					RightColumn: right.Name.String(),
				})
				continue
			}
		}
		before := len(w.b.model.WhereConditions)
		w.predicate(e, true)
		for i := before; i < len(w.b.model.WhereConditions); i++ {
			if w.b.model.WhereConditions[i].Alias == "" {
				w.b.model.WhereConditions[i].Alias = rightAlias
			}
		}
	}
}

func (w *vitessWalker) where(expr sqlparser.Expr) {
	for _, e := range vitessConjuncts(expr) {
		w.predicate(e, false)
	}
}

// vitessConjuncts flattens AND trees and parentheses. OR branches are kept
// whole and handled by predicate.
func vitessConjuncts(expr sqlparser.Expr) []sqlparser.Expr {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		return append(vitessConjuncts(e.Left), vitessConjuncts(e.Right)...)
	case *sqlparser.ParenExpr:
		return vitessConjuncts(e.Expr)
	case nil:
		return nil
	}
	return []sqlparser.Expr{expr}
}

func (w *vitessWalker) predicate(expr sqlparser.Expr, fromJoin bool) {
	switch e := expr.(type) {
	case *sqlparser.OrExpr:
		w.predicate(e.Left, fromJoin)
		w.predicate(e.Right, fromJoin)
	case *sqlparser.AndExpr, *sqlparser.ParenExpr:
		for _, c := range vitessConjuncts(e) {
			w.predicate(c, fromJoin)
		}
	case *sqlparser.ComparisonExpr:
		w.comparison(e, fromJoin)
	case *sqlparser.RangeCond:
		col, ok := e.Left.(*sqlparser.ColName)
		if !ok || e.Operator != sqlparser.BetweenStr {
			return
		}
		lo, lok := vitessValue(e.From)
		hi, hok := vitessValue(e.To)
		if lok && hok {
			w.b.addCondition(vitessCondition(col, OpBetween, fromJoin, func(c *WhereCondition) {
				c.Min, c.Max = lo, hi
			}))
		}
	case *sqlparser.IsExpr:
		col, ok := e.Expr.(*sqlparser.ColName)
		if !ok {
			return
		}
		switch e.Operator {
		case sqlparser.IsNullStr:
			w.b.addCondition(vitessCondition(col, OpIsNull, fromJoin, nil))
		case sqlparser.IsNotNullStr:
			w.b.addCondition(vitessCondition(col, OpIsNotNull, fromJoin, nil))
		case sqlparser.IsTrueStr, sqlparser.IsNotFalseStr:
			w.b.addCondition(vitessCondition(col, OpEQ, fromJoin, func(c *WhereCondition) { c.Value = "TRUE" }))
		case sqlparser.IsFalseStr, sqlparser.IsNotTrueStr:
			w.b.addCondition(vitessCondition(col, OpEQ, fromJoin, func(c *WhereCondition) { c.Value = "FALSE" }))
		}
	case *sqlparser.ExistsExpr:
		w.b.addCondition(WhereCondition{Operator: OpExists, Subquery: vitessSubquery(e.Subquery), FromJoin: fromJoin})
	case *sqlparser.NotExpr:
		if ex, ok := e.Expr.(*sqlparser.ExistsExpr); ok {
			w.b.addCondition(WhereCondition{Operator: OpNotExists, Subquery: vitessSubquery(ex.Subquery), FromJoin: fromJoin})
		}
	}
}

var vitessOperators = map[string]Operator{
	sqlparser.EqualStr:        OpEQ,
	sqlparser.NotEqualStr:     OpNEQ,
	sqlparser.GreaterThanStr:  OpGT,
	sqlparser.GreaterEqualStr: OpGTE,
	sqlparser.LessThanStr:     OpLT,
	sqlparser.LessEqualStr:    OpLTE,
	sqlparser.LikeStr:         OpLike,
	sqlparser.NotLikeStr:      OpNotLike,
	sqlparser.InStr:           OpIn,
	sqlparser.NotInStr:        OpNotIn,
}

func (w *vitessWalker) comparison(e *sqlparser.ComparisonExpr, fromJoin bool) {
	op, ok := vitessOperators[e.Operator]
	if !ok {
		return
	}
	left, right := e.Left, e.Right
	if _, isCol := left.(*sqlparser.ColName); !isCol {
		if _, rightIsCol := right.(*sqlparser.ColName); rightIsCol && op != OpIn && op != OpNotIn {
			left, right, op = right, left, op.Flip()
		}
	}

	if fn, ok := left.(*sqlparser.FuncExpr); ok && op == OpEQ && strings.EqualFold(fn.Name.String(), "year") && len(fn.Exprs) == 1 {
		arg, ok := fn.Exprs[0].(*sqlparser.AliasedExpr)
		if !ok {
			return
		}
		col, ok := arg.Expr.(*sqlparser.ColName)
		if !ok {
			return
		}
		if v, ok := vitessValue(right); ok {
			w.b.addCondition(vitessCondition(col, OpYearEquals, fromJoin, func(c *WhereCondition) { c.Value = v }))
		}
		return
	}

	col, ok := left.(*sqlparser.ColName)
	if !ok {
		return
	}
	switch r := right.(type) {
	case *sqlparser.ColName:
		if op == OpEQ {
			w.b.addJoin(JoinRequirement{
				LeftAlias:   col.Qualifier.Name.String(),
				LeftColumn:  col.Name.String(),
				RightAlias:  r.Qualifier.Name.String(),
				RightColumn: r.Name.String(),
			})
		}
	case sqlparser.ValTuple:
		var values []string
		for _, item := range r {
			if v, ok := vitessValue(item); ok {
				values = append(values, v)
			}
		}
		w.b.addCondition(vitessCondition(col, op, fromJoin, func(c *WhereCondition) { c.Values = values }))
	case *sqlparser.Subquery:
		w.b.addCondition(vitessCondition(col, op, fromJoin, func(c *WhereCondition) { c.Subquery = vitessSubquery(r) }))
	default:
		if v, ok := vitessValue(right); ok {
			w.b.addCondition(vitessCondition(col, op, fromJoin, func(c *WhereCondition) { c.Value = v }))
		}
	}
}

func vitessCondition(col *sqlparser.ColName, op Operator, fromJoin bool, fill func(*WhereCondition)) WhereCondition {
	c := WhereCondition{
		Alias:    col.Qualifier.Name.String(),
		Column:   col.Name.String(),
		Operator: op,
		FromJoin: fromJoin,
	}
	if fill != nil {
		fill(&c)
	}
	return c
}

func vitessSubquery(sq *sqlparser.Subquery) string {
	if sq == nil {
		return ""
	}
	return sqlparser.String(sq.Select)
}

// vitessValue renders a literal expression in value form.
func vitessValue(expr sqlparser.Expr) (string, bool) {
	switch v := expr.(type) {
	case *sqlparser.SQLVal:
		return string(v.Val), true
	case sqlparser.BoolVal:
		if v {
			return "TRUE", true
		}
		return "FALSE", true
	case *sqlparser.NullVal:
		return "NULL", true
	case *sqlparser.UnaryExpr:
		if inner, ok := vitessValue(v.Expr); ok && v.Operator == sqlparser.UMinusStr {
			return "-" + inner, true
		}
	case *sqlparser.ParenExpr:
		return vitessValue(v.Expr)
	}
	return "", false
}
