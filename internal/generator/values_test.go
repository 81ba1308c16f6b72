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
	"testing"
	"time"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/constraint"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/schema"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/sqltext"
	"github.com/stretchr/testify/assert"
)

func TestInstantiateLike(t *testing.T) {
	tests := []struct {
		pattern string
		k       int
		maxLen  int
		want    string
	}{
		{pattern: "%VNEXT%", k: 1, want: "Nova VNEXT 1"},
		{pattern: "DD_%", k: 1, want: "DDB1"},
		{pattern: "John%", k: 3, want: "John 3"},
		{pattern: "%son", k: 1, want: "Nova1 son"},
		{pattern: "exact", k: 1, want: "exact"},
		{pattern: "%@gmail.com", k: 1, want: "Nova1@gmail.com"},
		{pattern: "admin@%", k: 2, want: "admin@2"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p := constraint.NewLikePattern("", "name", tt.pattern, false)
			got := instantiateLike(p, tt.k, "Nova", tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.True(t, sqltext.MatchLike(got, tt.pattern))
		})
	}
}

func TestCombineLikes(t *testing.T) {
	likes := []constraint.LikePattern{
		constraint.NewLikePattern("", "title", "Pro%", false),
		constraint.NewLikePattern("", "title", "%Max%", false),
	}
	got := combineLikes(likes, 2, "Nova", 0)
	for _, l := range likes {
		assert.True(t, sqltext.MatchLike(got, l.Pattern), "%q against %q", got, l.Pattern)
	}
}

func TestCombineLikesSuffix(t *testing.T) {
	likes := []constraint.LikePattern{
		constraint.NewLikePattern("", "email", "Atlas%", false),
		constraint.NewLikePattern("", "email", "%@gmail.com", false),
	}
	got := combineLikes(likes, 2, "Nova", 0)
	assert.Equal(t, "Atlas Nova2@gmail.com", got)
	for _, l := range likes {
		assert.True(t, sqltext.MatchLike(got, l.Pattern), "%q against %q", got, l.Pattern)
	}
}

func TestFitLength(t *testing.T) {
	assert.Equal(t, "Status 1", fitLength("Status 1", 0))
	assert.Equal(t, "Sta12", fitLength("Status 12", 5))
	assert.Equal(t, "45", fitLength("Code 12345", 2))
}

func TestReadableString(t *testing.T) {
	tests := []struct {
		table, column string
		want          string
	}{
		{"users", "email", "user4@example.com"},
		{"users", "name", "User 4"},
		{"products", "sku", "PRO004"},
		{"accounts", "firstName", "First Name 4"},
		{"customers", "phone", "555-0004"},
	}
	for _, tt := range tests {
		t.Run(tt.table+"."+tt.column, func(t *testing.T) {
			assert.Equal(t, tt.want, readableString(tt.table, tt.column, 4))
		})
	}
}

func TestIntRange(t *testing.T) {
	tests := []struct {
		name   string
		rule   *columnRule
		lo, hi int64
	}{
		{"default", nil, 1, 100},
		{"between", &columnRule{lower: []bound{{"5", true}}, upper: []bound{{"9", true}}}, 5, 9},
		{"exclusive", &columnRule{lower: []bound{{"5", false}}, upper: []bound{{"9", false}}}, 6, 8},
		{"lower only", &columnRule{lower: []bound{{"500", false}}}, 501, 600},
		{"negative upper", &columnRule{upper: []bound{{"-10", true}}}, -109, -10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := intRange(tt.rule)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestSatisfies(t *testing.T) {
	day := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		kind schema.Kind
		v    any
		rule *columnRule
		want bool
	}{
		{"no rule", schema.KindString, "x", nil, true},
		{"eq", schema.KindInteger, int64(3), &columnRule{eq: []string{"3"}}, true},
		{"eq mismatch", schema.KindInteger, int64(4), &columnRule{eq: []string{"3"}}, false},
		{"in", schema.KindString, "b", &columnRule{in: []string{"a", "b"}, hasIn: true}, true},
		{"not in", schema.KindString, "b", &columnRule{notIn: []string{"b"}}, false},
		{"like", schema.KindString, "Nova VNEXT 1", &columnRule{likes: []constraint.LikePattern{constraint.NewLikePattern("", "c", "%VNEXT%", false)}}, true},
		{"not like", schema.KindString, "test user", &columnRule{notLikes: []string{"test%"}}, false},
		{"bounds", schema.KindDecimal, 20.5, &columnRule{upper: []bound{{"20", true}}}, false},
		{"year", schema.KindDate, day, &columnRule{year: 2023}, true},
		{"year mismatch", schema.KindDate, day, &columnRule{year: 2024}, false},
		{"date bound", schema.KindDate, day, &columnRule{lower: []bound{{"2023-06-01", false}}}, false},
		{"null allowed", schema.KindString, nil, &columnRule{isNull: true}, true},
		{"null rejected", schema.KindString, nil, &columnRule{notNull: true}, false},
		{"bool literal", schema.KindBoolean, true, &columnRule{eq: []string{"TRUE"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, satisfies(tt.kind, tt.v, tt.rule))
		})
	}
}

func TestColumnCapacity(t *testing.T) {
	intCol := &schema.Column{Name: "n", Type: "INT"}
	boolCol := &schema.Column{Name: "b", Type: "BOOLEAN"}
	strCol := &schema.Column{Name: "s", Type: "VARCHAR(10)"}

	assert.Equal(t, 1, columnCapacity(intCol, &columnRule{eq: []string{"1"}}))
	assert.Equal(t, 5, columnCapacity(intCol, &columnRule{lower: []bound{{"1", true}}, upper: []bound{{"5", true}}}))
	assert.Equal(t, 2, columnCapacity(boolCol, nil))
	assert.Equal(t, 2, columnCapacity(strCol, &columnRule{in: []string{"a", "b", "c"}, hasIn: true, notIn: []string{"c"}}))
}
