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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoTables is returned when none of the query's tables is in the schema.
	ErrNoTables = errors.New("query references no tables known to the schema")
	// ErrUniqueSpaceExhausted is matched by *UniqueSpaceError.
	ErrUniqueSpaceExhausted = errors.New("unique key space exhausted")
	// ErrMissingParent is matched by *MissingParentError.
	ErrMissingParent = errors.New("no parent row to reference")
	// ErrUnsatisfiable is matched by *UnsatisfiableError.
	ErrUnsatisfiable = errors.New("predicates cannot be satisfied")
)

// UniqueSpaceError reports a request for more rows than a unique key can
// hold distinct values for.
type UniqueSpaceError struct {
	Table     string
	Columns   []string
	Requested int
	Available int
	Msg       string
}

func (e *UniqueSpaceError) Error() string {
	msg := fmt.Sprintf("%s: table %s key (%s): %d rows requested, %d distinct values available",
		ErrUniqueSpaceExhausted, e.Table, strings.Join(e.Columns, ", "), e.Requested, e.Available)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	return msg
}

func (e *UniqueSpaceError) Is(target error) bool {
	return target == ErrUniqueSpaceExhausted
}

// MissingParentError reports a reference with no candidate parent value.
type MissingParentError struct {
	Table        string
	Column       string
	ParentTable  string
	ParentColumn string
	// Msg is set when parent rows exist but none satisfies the column's
	// predicates.
	Msg string
}

func (e *MissingParentError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s.%s references %s.%s: %s",
			ErrMissingParent, e.Table, e.Column, e.ParentTable, e.ParentColumn, e.Msg)
	}
	return fmt.Sprintf("%s: %s.%s references %s.%s, which has no rows",
		ErrMissingParent, e.Table, e.Column, e.ParentTable, e.ParentColumn)
}

func (e *MissingParentError) Is(target error) bool {
	return target == ErrMissingParent
}

// UnsatisfiableError reports a column whose predicates admit no value, such
// as a > 10 AND a < 11 on an integer or IS NULL on a NOT NULL column.
type UnsatisfiableError struct {
	Table  string
	Column string
	Msg    string
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("%s: %s.%s: %s", ErrUnsatisfiable, e.Table, e.Column, e.Msg)
}

func (e *UnsatisfiableError) Is(target error) bool {
	return target == ErrUnsatisfiable
}
