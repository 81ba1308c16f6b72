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

import "github.com/GoogleCloudPlatform/db-query-seeder/internal/query"

// PatternType classifies a LIKE pattern by where its wildcards sit.
type PatternType string

const (
	Contains   PatternType = "CONTAINS"
	StartsWith PatternType = "STARTS_WITH"
	EndsWith   PatternType = "ENDS_WITH"
	Exact      PatternType = "EXACT"
)

// LikePattern is a LIKE predicate. RequiredValue is the literal text every
// matching value must carry at the position given by Type.
type LikePattern struct {
	Alias         string
	Column        string
	Pattern       string
	Type          PatternType
	RequiredValue string
	Negated       bool
	// Ambiguous is set when wildcards remain inside RequiredValue. They are
	// reproduced literally by generated values.
	Ambiguous bool
}

// BooleanConstraint pins a column to a boolean literal.
type BooleanConstraint struct {
	Alias  string
	Column string
	Value  string
	Bool   bool
}

// DateConstraint restricts the year of a date column.
type DateConstraint struct {
	Alias    string
	Column   string
	Operator query.Operator
	Value    string
	Year     int
}

// JoinConstraint is a literal predicate inside a JOIN ... ON clause. Every
// row of the joined table must satisfy it for the join to produce output.
type JoinConstraint struct {
	Alias     string
	Column    string
	Value     string
	JoinTable string
	Condition query.WhereCondition
}

// InClauseType tells how the members of an IN list were written.
type InClauseType string

const (
	StringList  InClauseType = "STRING_LIST"
	NumericList InClauseType = "NUMERIC_LIST"
	Subquery    InClauseType = "SUBQUERY"
)

// InClauseConstraint is an IN (...) predicate.
type InClauseConstraint struct {
	Alias    string
	Column   string
	Type     InClauseType
	Values   []string
	Subquery string
	Negated  bool
}

// BetweenDataType tells how BETWEEN bounds compare.
type BetweenDataType string

const (
	Numeric BetweenDataType = "NUMERIC"
	Date    BetweenDataType = "DATE"
)

// BetweenConstraint is an inclusive range predicate.
type BetweenConstraint struct {
	Alias    string
	Column   string
	Min      string
	Max      string
	DataType BetweenDataType
}

// NullCheckType is IS NULL or IS NOT NULL.
type NullCheckType string

const (
	IsNull    NullCheckType = "IS_NULL"
	IsNotNull NullCheckType = "IS_NOT_NULL"
)

// NullConstraint is an IS [NOT] NULL predicate.
type NullConstraint struct {
	Alias  string
	Column string
	Type   NullCheckType
}

// ExistsType is EXISTS or NOT EXISTS.
type ExistsType string

const (
	ExistsCheck    ExistsType = "EXISTS"
	NotExistsCheck ExistsType = "NOT_EXISTS"
)

// ExistsConstraint carries the opaque text of an EXISTS subquery.
type ExistsConstraint struct {
	Type     ExistsType
	Subquery string
}
