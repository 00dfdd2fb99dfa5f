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

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Simplify rewrites p to a semantically-equivalent, smaller predicate
// by repeatedly applying the rules of §4.1 until a fixed point is
// reached. A FunctionExpr whose Fn errors during folding is simply left
// unfolded (§4.1, §7); Simplify returns an error only for an
// array-contains-any list holding a FieldRef element or for a predicate
// type it does not know.
func Simplify(p Predicate) (Predicate, error) {
	for i := 0; i < 64; i++ {
		next, err := simplifyPass(p)
		if err != nil {
			return nil, err
		}
		if EqualPredicate(next, p) {
			return next, nil
		}
		p = next
	}
	return p, nil
}

func simplifyPass(p Predicate) (Predicate, error) {
	switch x := p.(type) {
	case *Const:
		return x, nil
	case *Comparison:
		return simplifyComparison(x)
	case *Negation:
		inner, err := simplifyPass(x.Operand)
		if err != nil {
			return nil, err
		}
		return simplifyNot(inner)
	case *Logical:
		conds := make([]Predicate, len(x.Conditions))
		for i, c := range x.Conditions {
			sc, err := simplifyPass(c)
			if err != nil {
				return nil, err
			}
			conds[i] = sc
		}
		if x.Op == OpAnd {
			return simplifyAnd(conds)
		}
		return simplifyOr(conds)
	case *Custom:
		return x, nil
	default:
		return nil, fmt.Errorf("expr: Simplify: unsupported predicate type %T", p)
	}
}

// simplifyComparison applies normalization, literal folding/short-circuit,
// list-size rules and list expansion to a single COMPARISON (§4.1).
func simplifyComparison(c *Comparison) (Predicate, error) {
	left := FoldExpr(c.Left)
	switch right := c.Right.(type) {
	case Node:
		right = FoldExpr(right)
		op := c.Op
		// Normalize: if left is not a FieldRef and right is, swap and invert.
		_, leftIsField := left.(*FieldRef)
		_, rightIsField := right.(*FieldRef)
		if !leftIsField && rightIsField {
			if inv, ok := op.invert(); ok {
				left, right = right, left
				op = inv
			}
		}
		if lit, ok := left.(*Literal); ok {
			if rlit, ok := right.(*Literal); ok {
				v, err := compareScalar(op, lit.Value, rlit.Value)
				if err != nil {
					return &Comparison{Op: op, Left: left, Right: right}, nil
				}
				return &Const{Value: v}, nil
			}
		}
		return &Comparison{Op: op, Left: left, Right: right}, nil
	case ExpressionList:
		folded := make(ExpressionList, len(right))
		for i, n := range right {
			folded[i] = FoldExpr(n)
		}
		return simplifyListComparison(c.Op, left, folded)
	default:
		return c, nil
	}
}

func simplifyListComparison(op CmpOp, left Node, list ExpressionList) (Predicate, error) {
	if op == CmpArrayContainsAny {
		for _, n := range list {
			if _, ok := n.(*FieldRef); ok {
				return nil, fmt.Errorf("expr: array-contains-any with a field-ref element is unsupported")
			}
		}
	}

	// Empty lists (§4.1).
	if len(list) == 0 {
		switch op {
		case CmpIn:
			return False(), nil
		case CmpNotIn:
			return True(), nil
		case CmpArrayContainsAny:
			return False(), nil
		}
	}

	// Singleton lists (§4.1).
	if len(list) == 1 {
		switch op {
		case CmpIn:
			return simplifyComparison(&Comparison{Op: CmpEq, Left: left, Right: list[0]})
		case CmpNotIn:
			return simplifyComparison(&Comparison{Op: CmpNe, Left: left, Right: list[0]})
		case CmpArrayContainsAny:
			return &Comparison{Op: CmpArrayContains, Left: left, Right: list[0]}, nil
		}
	}

	// List expansion for in/not-in with FieldRef elements (§4.1).
	if op == CmpIn || op == CmpNotIn {
		var fieldElems []Node
		var litElems ExpressionList
		for _, n := range list {
			if _, ok := n.(*FieldRef); ok {
				fieldElems = append(fieldElems, n)
			} else {
				litElems = append(litElems, n)
			}
		}
		if len(fieldElems) > 0 {
			var parts []Predicate
			scalarOp := CmpEq
			if op == CmpNotIn {
				scalarOp = CmpNe
			}
			for _, f := range fieldElems {
				sp, err := simplifyComparison(&Comparison{Op: scalarOp, Left: left, Right: f})
				if err != nil {
					return nil, err
				}
				parts = append(parts, sp)
			}
			if len(litElems) > 0 {
				rest, err := simplifyListComparison(op, left, litElems)
				if err != nil {
					return nil, err
				}
				parts = append(parts, rest)
			}
			if op == CmpIn {
				return simplifyOr(parts)
			}
			return simplifyAnd(parts)
		}
	}

	// List-size caps: chunk oversized lists (§4.1).
	if cap := op.listCap(); cap > 0 && len(list) > cap {
		var parts []Predicate
		for i := 0; i < len(list); i += cap {
			end := i + cap
			if end > len(list) {
				end = len(list)
			}
			parts = append(parts, &Comparison{Op: op, Left: left, Right: append(ExpressionList{}, list[i:end]...)})
		}
		if op == CmpNotIn {
			return simplifyAnd(parts)
		}
		return simplifyOr(parts)
	}

	if list.AllLiterals() {
		// nothing further folds without a concrete row to evaluate
		// against, so leave the (possibly-deduplicated) list comparison.
		list = dedupLiterals(list)
	}
	return &Comparison{Op: op, Left: left, Right: list}, nil
}

func dedupLiterals(list ExpressionList) ExpressionList {
	var out ExpressionList
	for _, n := range list {
		dup := false
		for _, o := range out {
			if n.Equals(o) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, n)
		}
	}
	return sortExprList(out)
}

// sortExprList orders an ExpressionList deterministically so that
// membership-list bucketing/merging (§4.1) produces stable output
// regardless of map iteration order upstream.
func sortExprList(list ExpressionList) ExpressionList {
	out := append(ExpressionList{}, list...)
	slices.SortFunc(out, func(a, b Node) bool { return a.String() < b.String() })
	return out
}

// simplifyNot applies the NOT rules of §4.1: double-negation, !TRUE,
// De Morgan, and pushing NOT to leaf comparisons.
func simplifyNot(inner Predicate) (Predicate, error) {
	switch x := inner.(type) {
	case *Negation:
		return simplifyPass(x.Operand)
	case *Const:
		return &Const{Value: !x.Value}, nil
	case *Logical:
		negated := make([]Predicate, len(x.Conditions))
		for i, c := range x.Conditions {
			n, err := simplifyNot(c)
			if err != nil {
				return nil, err
			}
			negated[i] = n
		}
		if x.Op == OpAnd {
			return simplifyOr(negated)
		}
		return simplifyAnd(negated)
	case *Comparison:
		if negOp, ok := x.Op.negate(); ok {
			return &Comparison{Op: negOp, Left: x.Left, Right: x.Right}, nil
		}
		return &Negation{Operand: x}, nil
	default:
		return &Negation{Operand: inner}, nil
	}
}

// simplifyAnd flattens, drops identities/duplicates, detects
// contradictions and applies per-field bucketing (§4.1).
func simplifyAnd(conds []Predicate) (Predicate, error) {
	flat := flatten(OpAnd, conds)
	var kept []Predicate
	for _, c := range flat {
		if cn, ok := c.(*Const); ok {
			if !cn.Value {
				return False(), nil
			}
			continue // drop AND-identity TRUE
		}
		if !containsPredicate(kept, c) {
			kept = append(kept, c)
		}
	}
	if contradicts(kept) {
		return False(), nil
	}
	bucketed, err := bucketAnd(kept)
	if err != nil {
		return nil, err
	}
	if bucketed == nil {
		return False(), nil
	}
	switch len(bucketed) {
	case 0:
		return True(), nil
	case 1:
		return bucketed[0], nil
	default:
		return &Logical{Op: OpAnd, Conditions: bucketed}, nil
	}
}

// simplifyOr flattens, drops identities/duplicates, detects tautologies
// and applies disjunct absorption plus pairwise OR-grouping (§4.1).
func simplifyOr(conds []Predicate) (Predicate, error) {
	flat := flatten(OpOr, conds)
	var kept []Predicate
	for _, c := range flat {
		if cn, ok := c.(*Const); ok {
			if cn.Value {
				return True(), nil
			}
			continue // drop OR-identity FALSE
		}
		if !containsPredicate(kept, c) {
			kept = append(kept, c)
		}
	}
	if tautology(kept) {
		return True(), nil
	}
	kept = absorbDisjuncts(kept)
	kept = groupOrPairs(kept)
	switch len(kept) {
	case 0:
		return False(), nil
	case 1:
		return kept[0], nil
	default:
		return &Logical{Op: OpOr, Conditions: kept}, nil
	}
}

func flatten(op LogicalOp, conds []Predicate) []Predicate {
	var out []Predicate
	for _, c := range conds {
		if l, ok := c.(*Logical); ok && l.Op == op {
			out = append(out, flatten(op, l.Conditions)...)
		} else {
			out = append(out, c)
		}
	}
	return out
}

func containsPredicate(list []Predicate, p Predicate) bool {
	for _, x := range list {
		if EqualPredicate(x, p) {
			return true
		}
	}
	return false
}

// contradicts reports whether kept contains both p and NOT p (p ∧ ¬p).
func contradicts(kept []Predicate) bool {
	for i, a := range kept {
		na, ok := a.(*Negation)
		for j, b := range kept {
			if i == j {
				continue
			}
			if ok && EqualPredicate(na.Operand, b) {
				return true
			}
			if nb, ok2 := b.(*Negation); ok2 && EqualPredicate(nb.Operand, a) {
				return true
			}
		}
	}
	return false
}

// tautology reports whether kept contains both p and NOT p (p ∨ ¬p).
func tautology(kept []Predicate) bool { return contradicts(kept) }

// absorbDisjuncts drops any AND-disjunct whose conjunct set is a
// superset of another disjunct's (§4.1's OR absorption).
func absorbDisjuncts(disjuncts []Predicate) []Predicate {
	conjSets := make([][]Predicate, len(disjuncts))
	for i, d := range disjuncts {
		conjSets[i] = conjunctsOf(d)
	}
	var out []Predicate
	for i := range disjuncts {
		dominated := false
		for j := range disjuncts {
			if i == j {
				continue
			}
			if isSuperset(conjSets[i], conjSets[j]) && !isSuperset(conjSets[j], conjSets[i]) {
				dominated = true
				break
			}
			// equal sets: keep only the first occurrence
			if i > j && isSuperset(conjSets[i], conjSets[j]) && isSuperset(conjSets[j], conjSets[i]) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, disjuncts[i])
		}
	}
	return out
}

func conjunctsOf(p Predicate) []Predicate {
	if l, ok := p.(*Logical); ok && l.Op == OpAnd {
		return l.Conditions
	}
	return []Predicate{p}
}

func isSuperset(a, b []Predicate) bool {
	for _, bp := range b {
		if !containsPredicate(a, bp) {
			return false
		}
	}
	return true
}

// groupOrPairs applies the pairwise collapsing rules of §4.1: (<v)∨(>v)
// → !=v, (==v)∨(<v) → <=v, (!=v)∨(==v) → TRUE, and merges same-field
// in/array-contains-any lists within their backend caps.
func groupOrPairs(disjuncts []Predicate) []Predicate {
	changed := true
	for changed {
		changed = false
		for i := 0; i < len(disjuncts) && !changed; i++ {
			ci, ok := disjuncts[i].(*Comparison)
			if !ok {
				continue
			}
			for j := i + 1; j < len(disjuncts); j++ {
				cj, ok := disjuncts[j].(*Comparison)
				if !ok {
					continue
				}
				if merged, ok := collapsePair(ci, cj); ok {
					next := make([]Predicate, 0, len(disjuncts)-1)
					for k, d := range disjuncts {
						if k == i || k == j {
							continue
						}
						next = append(next, d)
					}
					next = append(next, merged)
					disjuncts = next
					changed = true
					break
				}
			}
		}
	}
	return disjuncts
}

// collapsePair attempts to merge two leaf comparisons on the same field
// into a single equivalent predicate.
func collapsePair(a, b *Comparison) (Predicate, bool) {
	if !Equal(a.Left, b.Left) {
		return nil, false
	}
	an, aIsNode := a.RightNode()
	bn, bIsNode := b.RightNode()

	if aIsNode && bIsNode && Equal(an, bn) {
		pairs := [][2]CmpOp{{CmpLt, CmpGt}, {CmpGt, CmpLt}}
		for _, p := range pairs {
			if a.Op == p[0] && b.Op == p[1] {
				return &Comparison{Op: CmpNe, Left: a.Left, Right: an}, true
			}
		}
		if (a.Op == CmpEq && b.Op == CmpLt) || (a.Op == CmpLt && b.Op == CmpEq) {
			return &Comparison{Op: CmpLe, Left: a.Left, Right: an}, true
		}
		if (a.Op == CmpEq && b.Op == CmpGt) || (a.Op == CmpGt && b.Op == CmpEq) {
			return &Comparison{Op: CmpGe, Left: a.Left, Right: an}, true
		}
		if (a.Op == CmpEq && b.Op == CmpNe) || (a.Op == CmpNe && b.Op == CmpEq) {
			return &Const{Value: true}, true
		}
	}

	// not-in S ∨ == v → not-in (S\v), or TRUE if v ∈ S.
	if a.Op == CmpNotIn && b.Op == CmpEq && bIsNode {
		return mergeNotInEq(a, bn)
	}
	if b.Op == CmpNotIn && a.Op == CmpEq && aIsNode {
		return mergeNotInEq(b, an)
	}

	// Union same-field in/array-contains-any lists within caps.
	if a.Op == b.Op && (a.Op == CmpIn || a.Op == CmpArrayContainsAny) {
		al, aok := a.RightList()
		bl, bok := b.RightList()
		if aok && bok {
			union := sortExprList(unionLists(al, bl))
			if len(union) <= a.Op.listCap() {
				return &Comparison{Op: a.Op, Left: a.Left, Right: union}, true
			}
		}
	}
	return nil, false
}

func mergeNotInEq(notIn *Comparison, v Node) (Predicate, bool) {
	list, ok := notIn.RightList()
	if !ok {
		return nil, false
	}
	var remaining ExpressionList
	found := false
	for _, n := range list {
		if Equal(n, v) {
			found = true
			continue
		}
		remaining = append(remaining, n)
	}
	if !found {
		return nil, false
	}
	if len(remaining) == 0 {
		return &Const{Value: true}, true
	}
	return &Comparison{Op: CmpNotIn, Left: notIn.Left, Right: remaining}, true
}

func unionLists(a, b ExpressionList) ExpressionList {
	out := append(ExpressionList{}, a...)
	for _, n := range b {
		if !containsExpr(out, n) {
			out = append(out, n)
		}
	}
	return out
}

func containsExpr(list ExpressionList, n Node) bool {
	for _, x := range list {
		if Equal(x, n) {
			return true
		}
	}
	return false
}

// fieldKey is the map key under which per-field AND bucketing groups
// conjuncts that share a single FieldRef operand.
func fieldKey(f *FieldRef) string { return f.String() }

// andBucket accumulates the constraints discovered for one field while
// bucketing an AND's conjuncts (§4.1's "Per-field AND bucketing").
type andBucket struct {
	field      *FieldRef
	eq         Node // the single == value, if any
	eqSet      bool
	eqConflict bool // two different == literals seen for this field
	ne         []Node
	notInSets  []ExpressionList
	inSets     []ExpressionList
	lower      Node
	lowerIncl  bool
	haveLower  bool
	upper      Node
	upperIncl  bool
	haveUpper  bool
}

// addLower folds a new lower bound (>, >=) into the bucket, tightening
// an existing bound if the new one is stricter. Returns false if the
// bound is not a Literal (numeric bound tightening requires comparable
// values); such conjuncts are left as separate predicates.
func (b *andBucket) addLower(n Node, inclusive bool) bool {
	lit, ok := n.(*Literal)
	if !ok {
		return false
	}
	if !b.haveLower {
		b.lower, b.lowerIncl, b.haveLower = lit, inclusive, true
		return true
	}
	cur := b.lower.(*Literal)
	cmp, ok := CompareValues(lit.Value, cur.Value)
	if !ok {
		return false
	}
	switch {
	case cmp > 0:
		b.lower, b.lowerIncl = lit, inclusive
	case cmp == 0:
		b.lowerIncl = b.lowerIncl && inclusive
	}
	return true
}

// addUpper is the symmetric counterpart of addLower for <, <=.
func (b *andBucket) addUpper(n Node, inclusive bool) bool {
	lit, ok := n.(*Literal)
	if !ok {
		return false
	}
	if !b.haveUpper {
		b.upper, b.upperIncl, b.haveUpper = lit, inclusive, true
		return true
	}
	cur := b.upper.(*Literal)
	cmp, ok := CompareValues(lit.Value, cur.Value)
	if !ok {
		return false
	}
	switch {
	case cmp < 0:
		b.upper, b.upperIncl = lit, inclusive
	case cmp == 0:
		b.upperIncl = b.upperIncl && inclusive
	}
	return true
}

// resolve folds the accumulated bucket state into zero or more
// Predicates, reporting ok=false if the bucket is unsatisfiable (FALSE).
func (b *andBucket) resolve() ([]Predicate, bool, error) {
	f := b.field

	// Intersect all `in` lists first (§4.1).
	var inList ExpressionList
	haveIn := false
	if len(b.inSets) > 0 {
		inList = b.inSets[0]
		haveIn = true
		for _, s := range b.inSets[1:] {
			inList = intersectLists(inList, s)
		}
		if len(inList) == 0 {
			return nil, false, nil
		}
	}

	// == dominates everything else in the bucket (§4.1). Multiple
	// distinct == literals on the same field is unsatisfiable.
	if b.eqSet {
		if b.eqConflict {
			return nil, false, nil
		}
		eqLit, isLit := b.eq.(*Literal)
		for _, n := range b.ne {
			if Equal(n, b.eq) {
				return nil, false, nil
			}
		}
		for _, s := range b.notInSets {
			if containsExpr(s, b.eq) {
				return nil, false, nil
			}
		}
		if isLit {
			if b.haveLower {
				cmp, ok := CompareValues(eqLit.Value, b.lower.(*Literal).Value)
				if ok && (cmp < 0 || (cmp == 0 && !b.lowerIncl)) {
					return nil, false, nil
				}
			}
			if b.haveUpper {
				cmp, ok := CompareValues(eqLit.Value, b.upper.(*Literal).Value)
				if ok && (cmp > 0 || (cmp == 0 && !b.upperIncl)) {
					return nil, false, nil
				}
			}
		}
		if haveIn && !containsExpr(inList, b.eq) {
			return nil, false, nil
		}
		return []Predicate{&Comparison{Op: CmpEq, Left: f, Right: b.eq}}, true, nil
	}

	var out []Predicate

	if b.haveLower && b.haveUpper {
		cmp, ok := CompareValues(b.lower.(*Literal).Value, b.upper.(*Literal).Value)
		if ok {
			if cmp > 0 {
				return nil, false, nil
			}
			if cmp == 0 {
				if !b.lowerIncl || !b.upperIncl {
					return nil, false, nil
				}
				out = append(out, &Comparison{Op: CmpEq, Left: f, Right: b.lower})
				b.haveLower, b.haveUpper = false, false
			}
		}
	}
	if b.haveLower {
		op := CmpGt
		if b.lowerIncl {
			op = CmpGe
		}
		out = append(out, &Comparison{Op: op, Left: f, Right: b.lower})
	}
	if b.haveUpper {
		op := CmpLt
		if b.upperIncl {
			op = CmpLe
		}
		out = append(out, &Comparison{Op: op, Left: f, Right: b.upper})
	}

	// Merge negatives: strengthen an inclusive bound to strict if the
	// boundary value is excluded by != / not-in (§4.1).
	out = strengthenBounds(out, f, b.ne, b.notInSets)

	for _, n := range b.ne {
		out = append(out, &Comparison{Op: CmpNe, Left: f, Right: n})
	}
	for _, s := range b.notInSets {
		pruned := pruneList(s, b.lower, b.lowerIncl, b.haveLower, b.upper, b.upperIncl, b.haveUpper)
		if len(pruned) == 0 {
			continue
		}
		out = append(out, &Comparison{Op: CmpNotIn, Left: f, Right: sortExprList(pruned)})
	}
	if haveIn {
		pruned := pruneList(inList, b.lower, b.lowerIncl, b.haveLower, b.upper, b.upperIncl, b.haveUpper)
		for _, s := range b.notInSets {
			pruned = removeFromList(pruned, s)
		}
		if len(pruned) == 0 {
			return nil, false, nil
		}
		out = append(out, &Comparison{Op: CmpIn, Left: f, Right: sortExprList(pruned)})
	}
	return out, true, nil
}

// strengthenBounds converts an inclusive bound to a strict one when its
// boundary literal appears among the field's != values or not-in sets.
func strengthenBounds(out []Predicate, f *FieldRef, ne []Node, notInSets []ExpressionList) []Predicate {
	excluded := func(v Node) bool {
		for _, n := range ne {
			if Equal(n, v) {
				return true
			}
		}
		for _, s := range notInSets {
			if containsExpr(s, v) {
				return true
			}
		}
		return false
	}
	for i, p := range out {
		c, ok := p.(*Comparison)
		if !ok {
			continue
		}
		n, ok := c.RightNode()
		if !ok {
			continue
		}
		switch c.Op {
		case CmpGe:
			if excluded(n) {
				out[i] = &Comparison{Op: CmpGt, Left: f, Right: n}
			}
		case CmpLe:
			if excluded(n) {
				out[i] = &Comparison{Op: CmpLt, Left: f, Right: n}
			}
		}
	}
	return out
}

func pruneList(list ExpressionList, lower Node, lowerIncl, haveLower bool, upper Node, upperIncl, haveUpper bool) ExpressionList {
	var out ExpressionList
	for _, n := range list {
		lit, ok := n.(*Literal)
		if !ok {
			out = append(out, n)
			continue
		}
		if haveLower {
			cmp, ok := CompareValues(lit.Value, lower.(*Literal).Value)
			if ok && (cmp < 0 || (cmp == 0 && !lowerIncl)) {
				continue
			}
		}
		if haveUpper {
			cmp, ok := CompareValues(lit.Value, upper.(*Literal).Value)
			if ok && (cmp > 0 || (cmp == 0 && !upperIncl)) {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

func removeFromList(list ExpressionList, remove ExpressionList) ExpressionList {
	var out ExpressionList
	for _, n := range list {
		if !containsExpr(remove, n) {
			out = append(out, n)
		}
	}
	return out
}

func intersectLists(a, b ExpressionList) ExpressionList {
	var out ExpressionList
	for _, n := range a {
		if containsExpr(b, n) {
			out = append(out, n)
		}
	}
	return out
}

// bucketAnd groups conjuncts by field and folds each bucket to its
// tightest equivalent form, returning nil if any bucket collapses to
// FALSE.
func bucketAnd(conds []Predicate) ([]Predicate, error) {
	buckets := map[string]*andBucket{}
	var order []string
	var other []Predicate
	for _, c := range conds {
		cmp, ok := c.(*Comparison)
		if !ok {
			other = append(other, c)
			continue
		}
		f, ok := cmp.Left.(*FieldRef)
		if !ok {
			other = append(other, c)
			continue
		}
		key := fieldKey(f)
		b, exists := buckets[key]
		if !exists {
			b = &andBucket{field: f}
			buckets[key] = b
			order = append(order, key)
		}
		if !bucketAdd(b, cmp) {
			other = append(other, c)
		}
	}
	var out []Predicate
	for _, key := range order {
		b := buckets[key]
		ps, ok, err := b.resolve()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		out = append(out, ps...)
	}
	out = append(out, other...)
	return out, nil
}

// bucketAdd folds cmp into b, returning false if cmp's shape is not one
// this bucketing pass handles (callers keep such predicates verbatim).
func bucketAdd(b *andBucket, cmp *Comparison) bool {
	switch cmp.Op {
	case CmpEq:
		n, ok := cmp.RightNode()
		if !ok {
			return false
		}
		if b.eqSet && !Equal(b.eq, n) {
			b.eq = nil // sentinel handled in resolve via eqConflict
			b.eqConflict = true
		}
		b.eq = n
		b.eqSet = true
		return true
	case CmpNe:
		n, ok := cmp.RightNode()
		if !ok {
			return false
		}
		b.ne = append(b.ne, n)
		return true
	case CmpIn:
		l, ok := cmp.RightList()
		if !ok {
			return false
		}
		b.inSets = append(b.inSets, l)
		return true
	case CmpNotIn:
		l, ok := cmp.RightList()
		if !ok {
			return false
		}
		b.notInSets = append(b.notInSets, l)
		return true
	case CmpLt, CmpLe:
		n, ok := cmp.RightNode()
		if !ok {
			return false
		}
		return b.addUpper(n, cmp.Op == CmpLe)
	case CmpGt, CmpGe:
		n, ok := cmp.RightNode()
		if !ok {
			return false
		}
		return b.addLower(n, cmp.Op == CmpGe)
	default:
		return false
	}
}
