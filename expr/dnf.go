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

package expr

// DNF rewrites p into disjunctive normal form (§4.1): Simplify, then
// distribute AND over OR wherever an AND has an OR child, recursing
// until no AND contains an OR. The result is either a single leaf
// (COMPARISON/CONSTANT/NOT-of-leaf) or an OR whose children are each a
// leaf or an AND of leaves — no OR ever nests beneath an AND (§8).
func DNF(p Predicate) (Predicate, error) {
	simplified, err := Simplify(p)
	if err != nil {
		return nil, err
	}
	d := distribute(simplified)
	return Simplify(d)
}

func distribute(p Predicate) Predicate {
	switch x := p.(type) {
	case *Logical:
		if x.Op == OpOr {
			conds := make([]Predicate, len(x.Conditions))
			for i, c := range x.Conditions {
				conds[i] = distribute(c)
			}
			return flattenOr(conds)
		}
		// AND: distribute over any OR child.
		conds := make([]Predicate, len(x.Conditions))
		for i, c := range x.Conditions {
			conds[i] = distribute(c)
		}
		return distributeAnd(conds)
	default:
		return p
	}
}

// distributeAnd expands an AND of (possibly-OR) conditions into an OR
// of ANDs via repeated pairwise distribution.
func distributeAnd(conds []Predicate) Predicate {
	// Start with a single empty conjunction and fold each condition in,
	// cross-producing against any OR.
	disjunctsOfConj := [][]Predicate{{}}
	for _, c := range conds {
		var next [][]Predicate
		if or, ok := c.(*Logical); ok && or.Op == OpOr {
			for _, base := range disjunctsOfConj {
				for _, d := range or.Conditions {
					row := append(append([]Predicate{}, base...), conjunctsOf(d)...)
					next = append(next, row)
				}
			}
		} else {
			for _, base := range disjunctsOfConj {
				row := append(append([]Predicate{}, base...), c)
				next = append(next, row)
			}
		}
		disjunctsOfConj = next
	}
	var disjuncts []Predicate
	for _, conj := range disjunctsOfConj {
		disjuncts = append(disjuncts, flattenAnd(conj))
	}
	if len(disjuncts) == 1 {
		return disjuncts[0]
	}
	return flattenOr(disjuncts)
}

func flattenAnd(conds []Predicate) Predicate {
	flat := flatten(OpAnd, conds)
	if len(flat) == 1 {
		return flat[0]
	}
	return &Logical{Op: OpAnd, Conditions: flat}
}

func flattenOr(conds []Predicate) Predicate {
	flat := flatten(OpOr, conds)
	if len(flat) == 1 {
		return flat[0]
	}
	return &Logical{Op: OpOr, Conditions: flat}
}

// Disjuncts returns the top-level OR branches of p (p itself, as a
// single-element slice, if p is not an OR).
func Disjuncts(p Predicate) []Predicate {
	if l, ok := p.(*Logical); ok && l.Op == OpOr {
		return l.Conditions
	}
	return []Predicate{p}
}

// Conjuncts returns the AND-conjuncts of p (p itself, as a
// single-element slice, if p is not an AND).
func Conjuncts(p Predicate) []Predicate {
	return conjunctsOf(p)
}
