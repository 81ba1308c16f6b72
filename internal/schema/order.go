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
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCircularDependency is matched by errors returned when tables reference
// each other in a cycle.
var ErrCircularDependency = errors.New("circular table dependency")

// CircularDependencyError names the tables left unordered by a cycle.
type CircularDependencyError struct {
	Tables []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("%s among tables %s", ErrCircularDependency, strings.Join(e.Tables, ", "))
}

func (e *CircularDependencyError) Is(target error) bool {
	return target == ErrCircularDependency
}

// Edge states that rows of Child reference rows of Parent.
type Edge struct {
	Child  string
	Parent string
}

// Edges returns the foreign key edges among the named tables, plus extra.
// Self references are left out.
func (s *Schema) Edges(names []string, extra []Edge) []Edge {
	in := make(map[string]bool, len(names))
	for _, n := range names {
		in[strings.ToLower(n)] = true
	}
	var edges []Edge
	add := func(e Edge) {
		if strings.EqualFold(e.Child, e.Parent) || !in[strings.ToLower(e.Child)] || !in[strings.ToLower(e.Parent)] {
			return
		}
		for _, x := range edges {
			if strings.EqualFold(x.Child, e.Child) && strings.EqualFold(x.Parent, e.Parent) {
				return
			}
		}
		edges = append(edges, e)
	}
	for _, n := range names {
		t, ok := s.Table(n)
		if !ok {
			continue
		}
		for _, fk := range t.ForeignKeys {
			add(Edge{Child: t.Name, Parent: fk.ReferencedTable})
		}
	}
	for _, e := range extra {
		add(e)
	}
	return edges
}

// Closure returns names followed by every table they reach through foreign
// keys, each once, in discovery order. Unknown names are dropped.
func (s *Schema) Closure(names []string) []string {
	var out []string
	seen := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		t, ok := s.Table(name)
		if !ok || seen[strings.ToLower(t.Name)] {
			return
		}
		seen[strings.ToLower(t.Name)] = true
		out = append(out, t.Name)
		for _, fk := range t.ForeignKeys {
			visit(fk.ReferencedTable)
		}
	}
	for _, n := range names {
		visit(n)
	}
	return out
}

// DependencyOrder sorts names so that every table comes after the tables it
// references. Ties keep the input order.
func (s *Schema) DependencyOrder(names []string, extra []Edge) ([]string, error) {
	edges := s.Edges(names, extra)
	parents := make(map[string][]string)
	for _, e := range edges {
		k := strings.ToLower(e.Child)
		parents[k] = append(parents[k], strings.ToLower(e.Parent))
	}

	placed := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	remaining := append([]string(nil), names...)
	for len(remaining) > 0 {
		progress := false
		next := remaining[:0:0]
		for _, n := range remaining {
			ready := true
			for _, p := range parents[strings.ToLower(n)] {
				if !placed[p] {
					ready = false
					break
				}
			}
			if ready {
				placed[strings.ToLower(n)] = true
				out = append(out, n)
				progress = true
			} else {
				next = append(next, n)
			}
		}
		if !progress {
			return nil, &CircularDependencyError{Tables: next}
		}
		remaining = next
	}
	return out, nil
}
