// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package index

import "golang.org/x/exp/slices"

// FieldMode is the sort/array discipline a composite index enforces for
// one of its fields (§4.2).
type FieldMode int

const (
	ASC FieldMode = iota
	DESC
	ArrayContainsMode
)

// QueryScope distinguishes a single-collection index from one that
// serves collection-group queries (§3, §4.2).
type QueryScope int

const (
	Collection QueryScope = iota
	CollectionGroup
)

// Field is one column of a composite index, in index-prefix order.
type Field struct {
	Path string
	Mode FieldMode
}

// Index is a composite index over a collection id (§3, §4.2).
type Index struct {
	CollectionID string
	Scope        QueryScope
	Fields       []Field
}

// ConstraintKind classifies a candidate constraint as equality-like
// (==, array-contains) or inequality-like (everything else) for the
// purposes of match scoring (§4.2).
type ConstraintKind int

const (
	EqualityLike ConstraintKind = iota
	InequalityLike
)

// Constraint is the minimal shape Catalog.Match needs from a planner
// Constraint: which field it restricts, and whether it is
// equality-like or inequality-like.
type Constraint struct {
	FieldPath string
	Kind      ConstraintKind
}

// SortKey is the (at most one, per §4.2) requested db-side sort field.
type SortKey struct {
	FieldPath string
	Desc      bool
}

// MatchKind is the three-valued index match classification of §4.2.
type MatchKind int

const (
	NoMatch MatchKind = iota
	Partial
	Exact
)

func (k MatchKind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Partial:
		return "partial"
	default:
		return "none"
	}
}

// Match is the result of scoring one collection's indexes against a
// candidate constraint set and optional sort (§4.2).
type Match struct {
	Kind    MatchKind
	Matched int
	Index   *Index // nil when Kind is NoMatch
}

// Catalog holds composite index definitions per collection id.
type Catalog struct {
	byCollection map[string][]Index
}

// NewCatalog builds a Catalog from a flat list of indexes.
func NewCatalog(indexes []Index) *Catalog {
	c := &Catalog{byCollection: map[string][]Index{}}
	for _, idx := range indexes {
		c.byCollection[idx.CollectionID] = append(c.byCollection[idx.CollectionID], idx)
	}
	return c
}

// Match scores constraints (and, if non-nil, sort) against every index
// registered for collectionID whose scope matches group, returning the
// best one: exact beats partial beats none; within the same class,
// larger Matched wins (§4.2).
func (c *Catalog) Match(collectionID string, group bool, constraints []Constraint, sort *SortKey) Match {
	wantScope := Collection
	if group {
		wantScope = CollectionGroup
	}
	candidates := c.byCollection[collectionID]
	results := make([]Match, 0, len(candidates))
	for i := range candidates {
		idx := &candidates[i]
		if idx.Scope != wantScope {
			continue
		}
		results = append(results, matchOne(idx, constraints, sort))
	}
	if len(results) == 0 {
		return Match{Kind: NoMatch}
	}
	slices.SortFunc(results, func(a, b Match) bool {
		if a.Kind != b.Kind {
			return a.Kind > b.Kind
		}
		return a.Matched > b.Matched
	})
	return results[0]
}

func matchOne(idx *Index, constraints []Constraint, sort *SortKey) Match {
	eqRemaining := map[string]bool{}
	var inequality *Constraint
	for i := range constraints {
		c := &constraints[i]
		switch c.Kind {
		case EqualityLike:
			eqRemaining[c.FieldPath] = true
		case InequalityLike:
			// Legality (§4.4) guarantees at most one inequality field
			// per scan by the time a Constraint set reaches here; if a
			// caller passes more than one, the first wins and later
			// ones are simply never matched (scored as unmatched, same
			// as any other unsatisfiable atom).
			if inequality == nil {
				inequality = c
			}
		}
	}

	pos := 0
	matched := 0
	for pos < len(idx.Fields) && eqRemaining[idx.Fields[pos].Path] {
		delete(eqRemaining, idx.Fields[pos].Path)
		pos++
		matched++
	}

	inequalitySatisfied := inequality == nil
	inequalityPos := pos
	if inequality != nil {
		if pos < len(idx.Fields) && idx.Fields[pos].Path == inequality.FieldPath {
			inequalitySatisfied = true
			matched++
			pos++
		}
	}

	sortSatisfied := sort == nil
	if sort != nil {
		wantMode := ASC
		if sort.Desc {
			wantMode = DESC
		}
		switch {
		case inequality != nil:
			if inequalitySatisfied && sort.FieldPath == inequality.FieldPath {
				field := idx.Fields[inequalityPos]
				sortSatisfied = field.Mode == wantMode
			}
		default:
			if pos < len(idx.Fields) && idx.Fields[pos].Path == sort.FieldPath && idx.Fields[pos].Mode == wantMode {
				sortSatisfied = true
				pos++
				matched++
			}
		}
	}

	allConstraintsSatisfied := len(eqRemaining) == 0 && inequalitySatisfied
	switch {
	case matched == 0 && !sortSatisfied:
		return Match{Kind: NoMatch}
	case allConstraintsSatisfied && sortSatisfied:
		return Match{Kind: Exact, Matched: matched, Index: idx}
	case matched > 0:
		return Match{Kind: Partial, Matched: matched, Index: idx}
	default:
		return Match{Kind: NoMatch}
	}
}
