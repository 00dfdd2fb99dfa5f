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

package plan

import (
	"sort"

	"github.com/fenwickdata/docql/expr"
)

// JoinKey identifies the unordered pair of aliases a 2-alias conjunct
// mentions (§4.3), normalized so {b,a} and {a,b} collide.
type JoinKey struct {
	Left, Right string
}

// SplitResult is the output of Split (§4.3): a conjunction decomposed
// into per-source filters, 2-alias join predicates, and a residual
// holding the atoms that mention no alias or three or more aliases.
type SplitResult struct {
	PerSource map[string]expr.Predicate
	Joins     map[JoinKey]expr.Predicate
	Residual  expr.Predicate
}

// Split decomposes p (expected already simplified, §4.1) into
// per-source predicates, 2-alias join predicates, and a residual,
// given the declared set of source aliases (§4.3).
func Split(p expr.Predicate, aliases map[string]bool) (*SplitResult, error) {
	res := &SplitResult{
		PerSource: map[string]expr.Predicate{},
		Joins:     map[JoinKey]expr.Predicate{},
	}
	if p == nil {
		return res, nil
	}
	for _, c := range expr.Conjuncts(p) {
		mentioned := expr.AliasesInPredicate(c)
		for a := range mentioned {
			if !aliases[a] {
				return nil, &InvalidInputError{Msg: "predicate references undeclared alias " + a}
			}
		}
		switch len(mentioned) {
		case 0:
			if isTrueConst(c) {
				continue
			}
			res.Residual = andInto(res.Residual, c)
		case 1:
			var alias string
			for a := range mentioned {
				alias = a
			}
			res.PerSource[alias] = andInto(res.PerSource[alias], c)
		case 2:
			names := make([]string, 0, 2)
			for a := range mentioned {
				names = append(names, a)
			}
			sort.Strings(names)
			key := JoinKey{Left: names[0], Right: names[1]}
			res.Joins[key] = andInto(res.Joins[key], c)
		default:
			res.Residual = andInto(res.Residual, c)
		}
	}
	return res, nil
}

func isTrueConst(p expr.Predicate) bool {
	c, ok := p.(*expr.Const)
	return ok && c.Value
}

func andInto(existing, next expr.Predicate) expr.Predicate {
	if existing == nil {
		return next
	}
	return expr.And(existing, next)
}
