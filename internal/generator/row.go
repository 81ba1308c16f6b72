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

import "strings"

// ColumnValue is one cell of a Row. Value is nil, string, int64, float64,
// bool, time.Time or []byte.
type ColumnValue struct {
	Column string
	Value  any
}

// Row is an ordered set of column values for one table.
type Row struct {
	Table  string
	Values []ColumnValue
}

// Get returns the value of column, matched case-insensitively.
func (r Row) Get(column string) (any, bool) {
	for _, v := range r.Values {
		if strings.EqualFold(v.Column, column) {
			return v.Value, true
		}
	}
	return nil, false
}

// Columns lists the column names in order.
func (r Row) Columns() []string {
	cols := make([]string, len(r.Values))
	for i, v := range r.Values {
		cols[i] = v.Column
	}
	return cols
}

// Slice returns the values in column order.
func (r Row) Slice() []any {
	vals := make([]any, len(r.Values))
	for i, v := range r.Values {
		vals[i] = v.Value
	}
	return vals
}
