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
package seeder

import "github.com/GoogleCloudPlatform/db-query-seeder/internal/generator"

// Request asks for rows that make SQL return results.
type Request struct {
	SQL string
	// Rows is the number of rows for each table in the query's FROM and JOIN
	// clauses. Zero means the service default.
	Rows int
}

// OrderedSQL is one INSERT statement. Statements are returned parents first.
type OrderedSQL struct {
	SQL   string `json:"sql"`
	Table string `json:"table"`
}

// Result is the outcome of one request.
type Result struct {
	Statements []OrderedSQL
	// Strategy names the parser strategy that produced the query model.
	Strategy    string
	Constraints int
	Rows        *generator.Result
}

// SQLs returns the statement texts in order.
func (r *Result) SQLs() []string {
	out := make([]string, len(r.Statements))
	for i, s := range r.Statements {
		out[i] = s.SQL
	}
	return out
}
