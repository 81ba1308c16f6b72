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
	"strconv"
	"strings"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/format"
	"github.com/pingcap/tidb/parser/opcode"
	"github.com/pingcap/tidb/parser/test_driver"
)

// tidbStrategy walks the AST produced by the TiDB MySQL grammar, which accepts
// a wider dialect than the vitess grammar.
type tidbStrategy struct{}

func (tidbStrategy) Name() string { return "tidb" }

func (tidbStrategy) Parse(sql string) (*QueryModel, error) {
	p := parser.New()
	stmts, _, err := p.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("tidb parse: %w", err)
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("tidb parse: empty statement")
	}
	w := &tidbWalker{b: newModelBuilder()}
	switch stmt := stmts[0].(type) {
	case *ast.SelectStmt:
		w.selectStmt(stmt)
	case *ast.SetOprStmt:
		if stmt.SelectList == nil {
			return nil, errNotSelect
		}
		for _, sel := range stmt.SelectList.Selects {
			if s, ok := sel.(*ast.SelectStmt); ok {
				w.selectStmt(s)
			}
		}
	default:
		return nil, errNotSelect
	}
	return w.b.build()
}

type tidbWalker struct {
	b *modelBuilder
}

func (w *tidbWalker) selectStmt(s *ast.SelectStmt) {
	if s.From != nil && s.From.TableRefs != nil {
		w.join(s.From.TableRefs)
	}
	if s.Where != nil {
		for _, e := range tidbConjuncts(s.Where) {
			w.predicate(e, false)
		}
	}
}

func (w *tidbWalker) join(j *ast.Join) {
	if j == nil {
		return
	}
	w.resultSet(j.Left)
	if j.Right == nil {
		return
	}
	w.resultSet(j.Right)
	if j.On != nil {
		w.joinCondition(j.On.Expr, tidbAlias(j.Right))
	}
}

func (w *tidbWalker) resultSet(n ast.ResultSetNode) {
	switch r := n.(type) {
	case *ast.TableSource:
		switch src := r.Source.(type) {
		case *ast.TableName:
			w.b.addTable(src.Name.O, r.AsName.O)
		case *ast.SelectStmt:
			w.selectStmt(src)
		case *ast.Join:
			w.join(src)
		}
	case *ast.Join:
		w.join(r)
	}
}

func tidbAlias(n ast.ResultSetNode) string {
	switch r := n.(type) {
	case *ast.TableSource:
		if r.AsName.O != "" {
			return r.AsName.O
		}
		if tn, ok := r.Source.(*ast.TableName); ok {
			return tn.Name.O
		}
	case *ast.Join:
		if r.Right != nil {
			return tidbAlias(r.Right)
		}
		return tidbAlias(r.Left)
	}
	return ""
}

func (w *tidbWalker) joinCondition(expr ast.ExprNode, rightAlias string) {
	for _, e := range tidbConjuncts(expr) {
		if bin, ok := e.(*ast.BinaryOperationExpr); ok && bin.Op == opcode.EQ {
			left, lok := bin.L.(*ast.ColumnNameExpr)
			right, rok := bin.R.(*ast.ColumnNameExpr)
			if lok && rok {
				w.b.addJoin(tidbJoin(left, right))
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

func tidbJoin(left, right *ast.ColumnNameExpr) JoinRequirement {
	return JoinRequirement{
		LeftAlias:   left.Name.Table.O,
		LeftColumn:  left.Name.Name.O,
		RightAlias:  right.Name.Table.O,
		RightColumn: right.Name.Name.O,
	}
}

func tidbConjuncts(expr ast.ExprNode) []ast.ExprNode {
	switch e := expr.(type) {
	case *ast.BinaryOperationExpr:
		if e.Op == opcode.LogicAnd {
			return append(tidbConjuncts(e.L), tidbConjuncts(e.R)...)
		}
	case *ast.ParenthesesExpr:
		return tidbConjuncts(e.Expr)
	case nil:
		return nil
	}
	return []ast.ExprNode{expr}
}

var tidbOperators = map[opcode.Op]Operator{
	opcode.EQ: OpEQ,
	opcode.NE: OpNEQ,
	opcode.GT: OpGT,
	opcode.GE: OpGTE,
	opcode.LT: OpLT,
	opcode.LE: OpLTE,
}

func (w *tidbWalker) predicate(expr ast.ExprNode, fromJoin bool) {
	switch e := expr.(type) {
	case *ast.BinaryOperationExpr:
		switch e.Op {
		case opcode.LogicAnd, opcode.LogicOr:
			w.predicate(e.L, fromJoin)
			w.predicate(e.R, fromJoin)
			return
		}
		w.comparison(e, fromJoin)
	case *ast.ParenthesesExpr:
		w.predicate(e.Expr, fromJoin)
	case *ast.PatternLikeOrIlikeExpr:
		col, ok := e.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return
		}
		op := OpLike
		if e.Not {
			op = OpNotLike
		}
		if v, ok := tidbValue(e.Pattern); ok {
			w.b.addCondition(tidbCondition(col, op, fromJoin, func(c *WhereCondition) { c.Value = v }))
		}
	case *ast.PatternInExpr:
		col, ok := e.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return
		}
		op := OpIn
		if e.Not {
			op = OpNotIn
		}
		if e.Sel != nil {
			w.b.addCondition(tidbCondition(col, op, fromJoin, func(c *WhereCondition) { c.Subquery = tidbSubquery(e.Sel) }))
			return
		}
		var values []string
		for _, item := range e.List {
			if v, ok := tidbValue(item); ok {
				values = append(values, v)
			}
		}
		w.b.addCondition(tidbCondition(col, op, fromJoin, func(c *WhereCondition) { c.Values = values }))
	case *ast.BetweenExpr:
		col, ok := e.Expr.(*ast.ColumnNameExpr)
		if !ok || e.Not {
			return
		}
		lo, lok := tidbValue(e.Left)
		hi, hok := tidbValue(e.Right)
		if lok && hok {
			w.b.addCondition(tidbCondition(col, OpBetween, fromJoin, func(c *WhereCondition) { c.Min, c.Max = lo, hi }))
		}
	case *ast.IsNullExpr:
		col, ok := e.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return
		}
		op := OpIsNull
		if e.Not {
			op = OpIsNotNull
		}
		w.b.addCondition(tidbCondition(col, op, fromJoin, nil))
	case *ast.IsTruthExpr:
		col, ok := e.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return
		}
		truth := (e.True != 0) != e.Not
		value := "FALSE"
		if truth {
			value = "TRUE"
		}
		w.b.addCondition(tidbCondition(col, OpEQ, fromJoin, func(c *WhereCondition) { c.Value = value }))
	case *ast.ExistsSubqueryExpr:
		op := OpExists
		if e.Not {
			op = OpNotExists
		}
		w.b.addCondition(WhereCondition{Operator: op, Subquery: tidbSubquery(e.Sel), FromJoin: fromJoin})
	case *ast.UnaryOperationExpr:
		if ex, ok := e.V.(*ast.ExistsSubqueryExpr); ok && e.Op == opcode.Not {
			op := OpNotExists
			if ex.Not {
				op = OpExists
			}
			w.b.addCondition(WhereCondition{Operator: op, Subquery: tidbSubquery(ex.Sel), FromJoin: fromJoin})
		}
	}
}

func (w *tidbWalker) comparison(e *ast.BinaryOperationExpr, fromJoin bool) {
	op, ok := tidbOperators[e.Op]
	if !ok {
		return
	}
	left, right := e.L, e.R
	if _, isCol := left.(*ast.ColumnNameExpr); !isCol {
		if _, rightIsCol := right.(*ast.ColumnNameExpr); rightIsCol {
			left, right, op = right, left, op.Flip()
		}
	}

	if fn, ok := left.(*ast.FuncCallExpr); ok && op == OpEQ && fn.FnName.L == "year" && len(fn.Args) == 1 {
		col, ok := fn.Args[0].(*ast.ColumnNameExpr)
		if !ok {
			return
		}
		if v, ok := tidbValue(right); ok {
			w.b.addCondition(tidbCondition(col, OpYearEquals, fromJoin, func(c *WhereCondition) { c.Value = v }))
		}
		return
	}

	col, ok := left.(*ast.ColumnNameExpr)
	if !ok {
		return
	}
	if other, ok := right.(*ast.ColumnNameExpr); ok {
		if op == OpEQ {
			w.b.addJoin(tidbJoin(col, other))
		}
		return
	}
	if v, ok := tidbValue(right); ok {
		w.b.addCondition(tidbCondition(col, op, fromJoin, func(c *WhereCondition) { c.Value = v }))
	}
}

func tidbCondition(col *ast.ColumnNameExpr, op Operator, fromJoin bool, fill func(*WhereCondition)) WhereCondition {
	c := WhereCondition{
		Alias:    col.Name.Table.O,
		Column:   col.Name.Name.O,
		Operator: op,
		FromJoin: fromJoin,
	}
	if fill != nil {
		fill(&c)
	}
	return c
}

// tidbSubquery restores a subquery node to SQL text without the enclosing
// parentheses.
func tidbSubquery(node ast.ExprNode) string {
	target := ast.Node(node)
	if sq, ok := node.(*ast.SubqueryExpr); ok && sq.Query != nil {
		target = sq.Query
	}
	var sb strings.Builder
	if err := target.Restore(format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)); err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(sb.String(), "("), ")")
}

// tidbValue renders a literal in value form. The TiDB grammar folds TRUE and
// FALSE into the integers 1 and 0.
func tidbValue(expr ast.ExprNode) (string, bool) {
	switch v := expr.(type) {
	case *test_driver.ValueExpr:
		d := v.Datum
		switch d.Kind() {
		case test_driver.KindNull:
			return "NULL", true
		case test_driver.KindInt64:
			return strconv.FormatInt(d.GetInt64(), 10), true
		case test_driver.KindUint64:
			return strconv.FormatUint(d.GetUint64(), 10), true
		case test_driver.KindFloat64:
			return strconv.FormatFloat(d.GetFloat64(), 'f', -1, 64), true
		case test_driver.KindString:
			return d.GetString(), true
		case test_driver.KindBytes:
			return string(d.GetBytes()), true
		default:
			return fmt.Sprintf("%v", d.GetValue()), true
		}
	case *ast.UnaryOperationExpr:
		if v.Op == opcode.Minus {
			if inner, ok := tidbValue(v.V); ok {
				return "-" + inner, true
			}
		}
	case *ast.ParenthesesExpr:
		return tidbValue(v.Expr)
	}
	return "", false
}
