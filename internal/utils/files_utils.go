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
package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadQueriesFromFile reads semicolon separated queries. A semicolon ends a
// query only at the end of a line.
func ReadQueriesFromFile(filePath string) ([]string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return SplitQueries(string(content)), nil
}

func SplitQueries(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var queries []string
	for _, q := range strings.Split(content, ";\n") {
		q = strings.TrimSuffix(strings.TrimSpace(q), ";")
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	return queries
}

// SQLSection is a group of statements generated for one source query.
type SQLSection struct {
	Query      string
	Statements []string
}

// WriteSQLFile writes one statement per line. Each section starts with a
// header comment naming its source query.
func WriteSQLFile(filePath string, sections []SQLSection) error {
	var b strings.Builder
	for i, sec := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, line := range strings.Split(strings.TrimSpace(sec.Query), "\n") {
			b.WriteString("-- " + line + "\n")
		}
		for _, stmt := range sec.Statements {
			b.WriteString(stmt)
			b.WriteString("\n")
		}
	}
	if err := os.WriteFile(filePath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", filePath, err)
	}
	return nil
}

// ReadSQLStatementsFromFile reads back a file written by WriteSQLFile,
// possibly edited by hand. Comment lines are dropped.
func ReadSQLStatementsFromFile(filePath string) ([]string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SQL file: %w", err)
	}
	var kept []string
	for _, line := range strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return SplitQueries(strings.Join(kept, "\n")), nil
}

func GetDefaultOutputFilePath(dbName, target string) string {
	if dbName == "" {
		dbName = "seed"
	}
	return fmt.Sprintf("%s_%s_seed.sql", dbName, target)
}

// ConfirmAction asks on w and reads the answer from r.
func ConfirmAction(r io.Reader, w io.Writer, actionDescription string) bool {
	reader := bufio.NewReader(r)
	fmt.Fprintf(w, "\n-------------------------------------------------------------\n")
	fmt.Fprintf(w, "Generated %s:\n", actionDescription)
	fmt.Fprint(w, "Do you want to apply these changes to the database? (yes/no): ")
	text, _ := reader.ReadString('\n')
	action := strings.TrimSpace(strings.ToLower(text))
	return action == "yes" || action == "y"
}

// ParseTablesFlag splits a comma separated table list.
func ParseTablesFlag(tablesFlag string) []string {
	var tables []string
	for _, part := range strings.Split(tablesFlag, ",") {
		if part = strings.TrimSpace(part); part != "" {
			tables = append(tables, part)
		}
	}
	return tables
}
