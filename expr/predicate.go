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
	"strings"
)

// CmpOp is one of the ten comparison operators the store and the
// algebra both understand (§3, §6).
type CmpOp int

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
	CmpIn
	CmpNotIn
	CmpArrayContains
	CmpArrayContainsAny
)

func (op CmpOp) String() string {
	switch op {
	case CmpEq:
		return "=="
	case CmpNe:
		return "!="
	case CmpLt:
		return "<"
	case CmpLe:
		return "<="
	case CmpGt:
		return ">"
	case CmpGe:
		return ">="
	case CmpIn:
		return "in"
	case CmpNotIn:
		return "not-in"
	case CmpArrayContains:
		return "array-contains"
	case CmpArrayContainsAny:
		return "array-contains-any"
	default:
		return "?"
	}
}

// IsMembership reports whether op is one of the three membership
// operators subject to the backend's one-per-query cardinality caps
// (§4.1, §4.6, GLOSSARY).
func (op CmpOp) IsMembership() bool {
	return op == CmpIn || op == CmpNotIn || op == CmpArrayContainsAny
}

// IsEqualityLike reports whether op belongs to the "equality-like" class
// used by index-match scoring (§4.2): == and array-contains.
func (op CmpOp) IsEqualityLike() bool {
	return op == CmpEq || op == CmpArrayContains
}

// listCap returns the backend cardinality cap for membership op, or 0
// if op does not take a list operand.
func (op CmpOp) listCap() int {
	switch op {
	case CmpIn:
		return capIn
	case CmpNotIn:
		return capNotIn
	case CmpArrayContainsAny:
		return capArrayContainsAny
	default:
		return 0
	}
}

// invert returns the operator produced by swapping the operands of a
// comparison (§4.1's "Normalization of comparisons"). in/not-in/
// array-contains* are not swappable and invert returns (op, false).
func (op CmpOp) invert() (CmpOp, bool) {
	switch op {
	case CmpEq, CmpNe:
		return op, true
	case CmpLt:
		return CmpGt, true
	case CmpLe:
		return CmpGe, true
	case CmpGt:
		return CmpLt, true
	case CmpGe:
		return CmpLe, true
	default:
		return op, false
	}
}

// negate returns the operator for !(x op y) on scalar comparisons, used
// by NOT push-down (§4.1). in and not-in negate to each other;
// array-contains and array-contains-any have no negated operator and
// negate's second result is false.
func (op CmpOp) negate() (CmpOp, bool) {
	switch op {
	case CmpEq:
		return CmpNe, true
	case CmpNe:
		return CmpEq, true
	case CmpLt:
		return CmpGe, true
	case CmpLe:
		return CmpGt, true
	case CmpGt:
		return CmpLe, true
	case CmpGe:
		return CmpLt, true
	case CmpIn:
		return CmpNotIn, true
	case CmpNotIn:
		return CmpIn, true
	default:
		return op, false
	}
}

// Predicate is the common interface for boolean-valued expressions.
type Predicate interface {
	fmt.Stringer

	Equals(x Predicate) bool

	walkP(v Visitor)
	rewriteP(r Rewriter) Predicate
}

// WalkPredicate traverses p and its descendant expressions/predicates.
func WalkPredicate(v Visitor, p Predicate) {
	if p == nil {
		return
	}
	p.walkP(v)
}

// RewritePredicate applies r to every Expression reachable from p,
// rebuilding p's tree as necessary.
func RewritePredicate(r Rewriter, p Predicate) Predicate {
	if p == nil {
		return nil
	}
	return p.rewriteP(r)
}

// Comparison is `Left op Right`. Right is an Expression for scalar
// operators and an ExpressionList for in/not-in/array-contains-any.
type Comparison struct {
	Op    CmpOp
	Left  Node
	Right any // Node or ExpressionList
}

// Compare builds a scalar Comparison.
func Compare(op CmpOp, left, right Node) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right}
}

// CompareList builds a membership Comparison against a list right-hand
// side.
func CompareList(op CmpOp, left Node, right ExpressionList) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right}
}

// RightNode returns Right as a Node, or nil if Right holds a list.
func (c *Comparison) RightNode() (Node, bool) {
	n, ok := c.Right.(Node)
	return n, ok
}

// RightList returns Right as an ExpressionList, or nil, false if Right
// holds a single Node.
func (c *Comparison) RightList() (ExpressionList, bool) {
	l, ok := c.Right.(ExpressionList)
	return l, ok
}

func (c *Comparison) String() string {
	switch r := c.Right.(type) {
	case Node:
		return fmt.Sprintf("%s %s %s", c.Left, c.Op, r)
	case ExpressionList:
		return fmt.Sprintf("%s %s %s", c.Left, c.Op, r.String())
	default:
		return fmt.Sprintf("%s %s ?", c.Left, c.Op)
	}
}

func (c *Comparison) Equals(x Predicate) bool {
	o, ok := x.(*Comparison)
	if !ok || o.Op != c.Op || !c.Left.Equals(o.Left) {
		return false
	}
	switch r := c.Right.(type) {
	case Node:
		on, ok := o.Right.(Node)
		return ok && r.Equals(on)
	case ExpressionList:
		ol, ok := o.Right.(ExpressionList)
		return ok && r.Equals(ol)
	}
	return false
}

func (c *Comparison) walkP(v Visitor) {
	Walk(v, c.Left)
	switch r := c.Right.(type) {
	case Node:
		Walk(v, r)
	case ExpressionList:
		for _, n := range r {
			Walk(v, n)
		}
	}
}

func (c *Comparison) rewriteP(r Rewriter) Predicate {
	out := *c
	out.Left = Rewrite(r, c.Left)
	switch right := c.Right.(type) {
	case Node:
		out.Right = Rewrite(r, right)
	case ExpressionList:
		list := make(ExpressionList, len(right))
		for i, n := range right {
			list[i] = Rewrite(r, n)
		}
		out.Right = list
	}
	return &out
}

// LogicalOp discriminates And from Or.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

// Logical is a flattened conjunction or disjunction of Conditions.
type Logical struct {
	Op         LogicalOp
	Conditions []Predicate
}

// And builds (and flattens, one level) a conjunction.
func And(conds ...Predicate) *Logical {
	return &Logical{Op: OpAnd, Conditions: flattenOneLevel(OpAnd, conds)}
}

// Or builds (and flattens, one level) a disjunction.
func Or(conds ...Predicate) *Logical {
	return &Logical{Op: OpOr, Conditions: flattenOneLevel(OpOr, conds)}
}

// flattenOneLevel splices the Conditions of every direct child Logical
// of the same op into the returned list.
func flattenOneLevel(op LogicalOp, conds []Predicate) []Predicate {
	out := make([]Predicate, 0, len(conds))
	for _, c := range conds {
		if l, ok := c.(*Logical); ok && l.Op == op {
			out = append(out, l.Conditions...)
			continue
		}
		out = append(out, c)
	}
	return out
}

func (l *Logical) String() string {
	sep := " AND "
	if l.Op == OpOr {
		sep = " OR "
	}
	parts := make([]string, len(l.Conditions))
	for i, c := range l.Conditions {
		parts[i] = "(" + c.String() + ")"
	}
	return strings.Join(parts, sep)
}

func (l *Logical) Equals(x Predicate) bool {
	o, ok := x.(*Logical)
	if !ok || o.Op != l.Op || len(o.Conditions) != len(l.Conditions) {
		return false
	}
	for i := range l.Conditions {
		if !l.Conditions[i].Equals(o.Conditions[i]) {
			return false
		}
	}
	return true
}

func (l *Logical) walkP(v Visitor) {
	for _, c := range l.Conditions {
		WalkPredicate(v, c)
	}
}

func (l *Logical) rewriteP(r Rewriter) Predicate {
	conds := make([]Predicate, len(l.Conditions))
	for i, c := range l.Conditions {
		conds[i] = RewritePredicate(r, c)
	}
	return &Logical{Op: l.Op, Conditions: conds}
}

// Negation negates Operand. The builder is named Not (§6); the type is
// named Negation so the two identifiers don't collide.
type Negation struct {
	Operand Predicate
}

func (n *Negation) String() string { return "NOT (" + n.Operand.String() + ")" }

func (n *Negation) Equals(x Predicate) bool {
	o, ok := x.(*Negation)
	return ok && n.Operand.Equals(o.Operand)
}

func (n *Negation) walkP(v Visitor) { WalkPredicate(v, n.Operand) }
func (n *Negation) rewriteP(r Rewriter) Predicate {
	return &Negation{Operand: RewritePredicate(r, n.Operand)}
}

// Const is a boolean literal predicate (TRUE/FALSE), the fixed point of
// simplification for tautologies and contradictions.
type Const struct {
	Value bool
}

// True is the constant TRUE predicate.
func True() *Const { return &Const{Value: true} }

// False is the constant FALSE predicate.
func False() *Const { return &Const{Value: false} }

func (c *Const) String() string {
	if c.Value {
		return "TRUE"
	}
	return "FALSE"
}

func (c *Const) Equals(x Predicate) bool {
	o, ok := x.(*Const)
	return ok && o.Value == c.Value
}

func (c *Const) walkP(v Visitor)               {}
func (c *Const) rewriteP(r Rewriter) Predicate { return c }

// Custom is an opaque predicate, e.g. a compiled LIKE pattern match. It
// is never pushed down and never folds; Fn is consulted only by
// evaluation (§3, §4.1).
type Custom struct {
	Input    any // Node or ExpressionList
	Fn       Evaluator
	Metadata map[string]any
}

func (c *Custom) String() string {
	switch in := c.Input.(type) {
	case Node:
		return fmt.Sprintf("CUSTOM(%s)", in)
	case ExpressionList:
		return fmt.Sprintf("CUSTOM(%s)", in.String())
	default:
		return "CUSTOM(?)"
	}
}

// Equals always reports false: Custom wraps an opaque Go closure.
func (c *Custom) Equals(x Predicate) bool { return false }

func (c *Custom) walkP(v Visitor) {
	switch in := c.Input.(type) {
	case Node:
		Walk(v, in)
	case ExpressionList:
		for _, n := range in {
			Walk(v, n)
		}
	}
}

func (c *Custom) rewriteP(r Rewriter) Predicate {
	out := *c
	switch in := c.Input.(type) {
	case Node:
		out.Input = Rewrite(r, in)
	case ExpressionList:
		list := make(ExpressionList, len(in))
		for i, n := range in {
			list[i] = Rewrite(r, n)
		}
		out.Input = list
	}
	return &out
}
