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
package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/query"
)

func TestLikeClassification(t *testing.T) {
	tests := []struct {
		pattern   string
		wantType  PatternType
		wantValue string
		ambiguous bool
	}{
		{"%VNEXT%", Contains, "VNEXT", false},
		{"DD_%", StartsWith, "DD", false},
		{"John%", StartsWith, "John", false},
		{"%son", EndsWith, "son", false},
		{"%_son", EndsWith, "son", false},
		{"exact", Exact, "exact", false},
		{"Jo_n", Exact, "Jo_n", true},
		{"%a_b%", Contains, "a_b", true},
		{"%", Contains, "", false},
		{"%%", Contains, "", false},
		{`100\%`, Exact, `100\%`, true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			lp := NewLikePattern("c", "name", tt.pattern, false)
			assert.Equal(t, tt.wantType, lp.Type)
			assert.Equal(t, tt.wantValue, lp.RequiredValue)
			assert.Equal(t, tt.ambiguous, lp.Ambiguous)
		})
	}
}

func TestExtractContainsScenario(t *testing.T) {
	set := ExtractAllConstraints("SELECT * FROM companies WHERE name LIKE '%VNEXT%'")
	require.Equal(t, 1, set.TotalCount())
	likes := set.LikePatterns()
	require.Len(t, likes, 1)
	assert.Equal(t, "name", likes[0].Column)
	assert.Equal(t, "", likes[0].Alias)
	assert.Equal(t, Contains, likes[0].Type)
	assert.Equal(t, "VNEXT", likes[0].RequiredValue)
}

func TestExtractStartsWithScenario(t *testing.T) {
	likes := ExtractAllConstraints("SELECT * FROM c WHERE c.code LIKE 'DD_%'").LikePatterns()
	require.Len(t, likes, 1)
	assert.Equal(t, StartsWith, likes[0].Type)
	assert.Equal(t, "DD", likes[0].RequiredValue)
	assert.Equal(t, "DD_%", likes[0].Pattern)
}

func TestExtractLikeQuoting(t *testing.T) {
	sql := `SELECT * FROM t WHERE t.a LIKE "x%" AND t.b NOT LIKE N'%y' AND t.c LIKE 'it''s%'`
	likes := ExtractAllConstraints(sql).LikePatterns()
	require.Len(t, likes, 3)
	assert.Equal(t, "x%", likes[0].Pattern)
	assert.True(t, likes[1].Negated)
	assert.Equal(t, EndsWith, likes[1].Type)
	assert.Equal(t, "it's", likes[2].RequiredValue)
}

func TestExtractJoinBoolean(t *testing.T) {
	set := ExtractAllConstraints("SELECT * FROM users u JOIN user_roles ur ON ur.user_id = u.id AND ur.is_active = TRUE")

	joins := set.JoinConstraints()
	require.Len(t, joins, 1)
	assert.Equal(t, "ur", joins[0].Alias)
	assert.Equal(t, "is_active", joins[0].Column)
	assert.Equal(t, "TRUE", joins[0].Value)
	assert.Equal(t, "user_roles", joins[0].JoinTable)
	assert.Equal(t, query.WhereCondition{Alias: "ur", Column: "is_active", Operator: query.OpEQ, Value: "TRUE", FromJoin: true}, joins[0].Condition)

	bools := set.BooleanConstraints()
	require.Len(t, bools, 1)
	assert.True(t, bools[0].Bool)
}

func TestExtractJoinLiterals(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []JoinConstraint
	}{
		{
			name: "String literal",
			sql:  "SELECT * FROM users u JOIN roles r ON u.role_id = r.id AND r.code = 'ADMIN'",
			want: []JoinConstraint{{Alias: "r", Column: "code", Value: "ADMIN", JoinTable: "roles",
				Condition: query.WhereCondition{Alias: "r", Column: "code", Operator: query.OpEQ, Value: "ADMIN", FromJoin: true}}},
		},
		{
			name: "Number and unqualified column",
			sql:  "SELECT * FROM users u INNER JOIN plans p ON p.id = u.plan_id AND tier = 3 WHERE u.id > 1",
			want: []JoinConstraint{{Alias: "p", Column: "tier", Value: "3", JoinTable: "plans",
				Condition: query.WhereCondition{Alias: "p", Column: "tier", Operator: query.OpEQ, Value: "3", FromJoin: true}}},
		},
		{
			name: "Only the join key",
			sql:  "SELECT * FROM users u JOIN roles r ON u.role_id = r.id AND r.level > 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := ExtractAllConstraints(tt.sql)
			if len(tt.want) == 0 {
				assert.Empty(t, set.JoinConstraints())
				return
			}
			assert.Equal(t, tt.want, set.JoinConstraints())
			assert.Positive(t, set.TotalCount())
		})
	}
}

func TestExtractInClauses(t *testing.T) {
	sql := "SELECT * FROM u WHERE u.status IN ('a', 'b') AND u.id NOT IN (1, 2, 3) AND u.org IN (SELECT id FROM orgs WHERE x IN (4))"
	ins := ExtractAllConstraints(sql).InClauseConstraints()
	require.Len(t, ins, 3)

	assert.Equal(t, StringList, ins[0].Type)
	assert.Equal(t, []string{"a", "b"}, ins[0].Values)

	assert.Equal(t, NumericList, ins[1].Type)
	assert.True(t, ins[1].Negated)
	assert.Equal(t, []string{"1", "2", "3"}, ins[1].Values)

	assert.Equal(t, Subquery, ins[2].Type)
	assert.Equal(t, "SELECT id FROM orgs WHERE x IN (4)", ins[2].Subquery)
}

func TestExtractBetween(t *testing.T) {
	sql := "SELECT * FROM o WHERE o.total BETWEEN 10 AND 20.5 AND o.placed BETWEEN '2024-01-01' AND '2024-03-31'"
	betweens := ExtractAllConstraints(sql).BetweenConstraints()
	require.Len(t, betweens, 2)
	assert.Equal(t, BetweenConstraint{Alias: "o", Column: "total", Min: "10", Max: "20.5", DataType: Numeric}, betweens[0])
	assert.Equal(t, BetweenConstraint{Alias: "o", Column: "placed", Min: "2024-01-01", Max: "2024-03-31", DataType: Date}, betweens[1])
}

func TestExtractNullChecksWithIrregularWhitespace(t *testing.T) {
	sql := "SELECT * FROM u WHERE u.deleted_at   IS\n\t NOT   NULL AND u.banned_at IS NULL"
	nulls := ExtractAllConstraints(sql).NullConstraints()
	require.Len(t, nulls, 2)
	assert.Equal(t, NullConstraint{Alias: "u", Column: "deleted_at", Type: IsNotNull}, nulls[0])
	assert.Equal(t, NullConstraint{Alias: "u", Column: "banned_at", Type: IsNull}, nulls[1])
}

func TestExtractYear(t *testing.T) {
	dates := ExtractAllConstraints("SELECT * FROM u WHERE YEAR(u.created_at) = '2023'").DateConstraints()
	require.Len(t, dates, 1)
	assert.Equal(t, 2023, dates[0].Year)
	assert.Equal(t, query.OpYearEquals, dates[0].Operator)
	assert.Equal(t, "created_at", dates[0].Column)
}

func TestExtractNestedExists(t *testing.T) {
	sql := `SELECT * FROM users u WHERE EXISTS (SELECT 1 FROM orders o WHERE o.user_id = u.id
		AND EXISTS (SELECT 1 FROM items i WHERE i.order_id = o.id AND i.sku LIKE 'A%')) AND NOT EXISTS (SELECT 1 FROM bans b WHERE b.uid = u.id)`
	set := ExtractAllConstraints(sql)
	exists := set.ExistsConstraints()
	require.Len(t, exists, 3)
	assert.Equal(t, ExistsCheck, exists[0].Type)
	assert.Contains(t, exists[0].Subquery, "i.order_id = o.id AND i.sku LIKE 'A%')")
	assert.Equal(t, "SELECT 1 FROM items i WHERE i.order_id = o.id AND i.sku LIKE 'A%'", exists[1].Subquery)
	assert.Equal(t, NotExistsCheck, exists[2].Type)
	assert.Empty(t, set.LikePatterns(), "subquery bodies stay opaque")
}

func TestExtractNeverFails(t *testing.T) {
	for _, in := range []string{"", "(((", "LIKE LIKE IN (", "SELECT * FROM t WHERE a IN (1, 2"} {
		t.Run(in, func(t *testing.T) {
			set := ExtractAllConstraints(in)
			require.NotNil(t, set)
			assert.Equal(t, 0, set.TotalCount())
			assert.True(t, set.IsEmpty())
		})
	}
}

func TestExtractorsAreIndependent(t *testing.T) {
	// Not valid SQL for any grammar, yet every recognizable predicate is kept.
	sql := "SELEKT FROM WHERE x.name LIKE 'a%' ANDD x.flag = 1 ORR x.gone IS NULL"
	set := ExtractAllConstraints(sql)
	assert.Len(t, set.LikePatterns(), 1)
	assert.Len(t, set.BooleanConstraints(), 1)
	assert.Len(t, set.NullConstraints(), 1)
	assert.Equal(t, 3, set.TotalCount())
}

func TestConstraintSetIsImmutable(t *testing.T) {
	set := ExtractAllConstraints("SELECT * FROM u WHERE u.s IN ('a', 'b') AND u.n LIKE 'x%'")
	likes := set.LikePatterns()
	likes[0].RequiredValue = "changed"
	ins := set.InClauseConstraints()
	ins[0].Values[0] = "changed"

	assert.Equal(t, "x", set.LikePatterns()[0].RequiredValue)
	assert.Equal(t, "a", set.InClauseConstraints()[0].Values[0])
}

func TestBuilderSnapshots(t *testing.T) {
	var b Builder
	b.AddNull(NullConstraint{Column: "a", Type: IsNull})
	first := b.Build()
	b.AddExists(ExistsConstraint{Type: ExistsCheck, Subquery: "SELECT 1"})
	assert.Equal(t, 1, first.TotalCount())
	assert.Equal(t, 2, b.Build().TotalCount())
}
