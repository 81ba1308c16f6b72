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

import "slices"

// ConstraintSet is the read-only result of an extraction. Accessors return
// copies, so callers cannot change the set.
type ConstraintSet struct {
	likePatterns []LikePattern
	booleans     []BooleanConstraint
	dates        []DateConstraint
	joins        []JoinConstraint
	inClauses    []InClauseConstraint
	betweens     []BetweenConstraint
	nulls        []NullConstraint
	exists       []ExistsConstraint
}

func (s *ConstraintSet) LikePatterns() []LikePattern {
	return slices.Clone(s.likePatterns)
}

func (s *ConstraintSet) BooleanConstraints() []BooleanConstraint {
	return slices.Clone(s.booleans)
}

func (s *ConstraintSet) DateConstraints() []DateConstraint {
	return slices.Clone(s.dates)
}

func (s *ConstraintSet) JoinConstraints() []JoinConstraint {
	return slices.Clone(s.joins)
}

func (s *ConstraintSet) InClauseConstraints() []InClauseConstraint {
	out := slices.Clone(s.inClauses)
	for i := range out {
		out[i].Values = slices.Clone(out[i].Values)
	}
	return out
}

func (s *ConstraintSet) BetweenConstraints() []BetweenConstraint {
	return slices.Clone(s.betweens)
}

func (s *ConstraintSet) NullConstraints() []NullConstraint {
	return slices.Clone(s.nulls)
}

func (s *ConstraintSet) ExistsConstraints() []ExistsConstraint {
	return slices.Clone(s.exists)
}

// TotalCount is the number of constraints of all kinds.
func (s *ConstraintSet) TotalCount() int {
	if s == nil {
		return 0
	}
	return len(s.likePatterns) + len(s.booleans) + len(s.dates) + len(s.joins) +
		len(s.inClauses) + len(s.betweens) + len(s.nulls) + len(s.exists)
}

// IsEmpty reports whether no constraint was found.
func (s *ConstraintSet) IsEmpty() bool {
	return s.TotalCount() == 0
}

// Builder assembles a ConstraintSet. It is used by the extractor and by
// callers that construct constraints directly.
type Builder struct {
	set ConstraintSet
}

func (b *Builder) AddLikePattern(c LikePattern) *Builder {
	b.set.likePatterns = append(b.set.likePatterns, c)
	return b
}

func (b *Builder) AddBoolean(c BooleanConstraint) *Builder {
	b.set.booleans = append(b.set.booleans, c)
	return b
}

func (b *Builder) AddDate(c DateConstraint) *Builder {
	b.set.dates = append(b.set.dates, c)
	return b
}

func (b *Builder) AddJoin(c JoinConstraint) *Builder {
	b.set.joins = append(b.set.joins, c)
	return b
}

func (b *Builder) AddInClause(c InClauseConstraint) *Builder {
	c.Values = slices.Clone(c.Values)
	b.set.inClauses = append(b.set.inClauses, c)
	return b
}

func (b *Builder) AddBetween(c BetweenConstraint) *Builder {
	b.set.betweens = append(b.set.betweens, c)
	return b
}

func (b *Builder) AddNull(c NullConstraint) *Builder {
	b.set.nulls = append(b.set.nulls, c)
	return b
}

func (b *Builder) AddExists(c ExistsConstraint) *Builder {
	b.set.exists = append(b.set.exists, c)
	return b
}

// Build returns a snapshot of the accumulated constraints. Later additions to
// the builder do not affect it.
func (b *Builder) Build() *ConstraintSet {
	return &ConstraintSet{
		likePatterns: slices.Clone(b.set.likePatterns),
		booleans:     slices.Clone(b.set.booleans),
		dates:        slices.Clone(b.set.dates),
		joins:        slices.Clone(b.set.joins),
		inClauses:    slices.Clone(b.set.inClauses),
		betweens:     slices.Clone(b.set.betweens),
		nulls:        slices.Clone(b.set.nulls),
		exists:       slices.Clone(b.set.exists),
	}
}
