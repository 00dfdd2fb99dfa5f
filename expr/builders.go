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

// This file is the §6 builder surface: the factory functions a caller
// assembling a Projection from parsed query text uses to construct
// Expressions and Predicates. Field, String/Number/Bool/Null/LiteralOf,
// ParamRef, Apply and ApplyList already live in node.go; And, Or, True,
// False, Compare and CompareList already live in predicate.go.
// What remains is the scalar-comparison and membership family.

// Eq builds `left == right`.
func Eq(left, right Node) *Comparison { return Compare(CmpEq, left, right) }

// Ne builds `left != right`.
func Ne(left, right Node) *Comparison { return Compare(CmpNe, left, right) }

// Lt builds `left < right`.
func Lt(left, right Node) *Comparison { return Compare(CmpLt, left, right) }

// Le builds `left <= right`.
func Le(left, right Node) *Comparison { return Compare(CmpLe, left, right) }

// Gt builds `left > right`.
func Gt(left, right Node) *Comparison { return Compare(CmpGt, left, right) }

// Ge builds `left >= right`.
func Ge(left, right Node) *Comparison { return Compare(CmpGe, left, right) }

// InList builds `left IN list`, subject to the CmpIn cardinality cap
// (§4.1, GLOSSARY).
func InList(left Node, list ExpressionList) *Comparison { return CompareList(CmpIn, left, list) }

// NotInList builds `left NOT IN list`, subject to the CmpNotIn
// cardinality cap (§4.1, GLOSSARY).
func NotInList(left Node, list ExpressionList) *Comparison {
	return CompareList(CmpNotIn, left, list)
}

// ArrayContains builds `left ARRAY_CONTAINS right`.
func ArrayContains(left, right Node) *Comparison { return Compare(CmpArrayContains, left, right) }

// ArrayContainsAny builds `left ARRAY_CONTAINS_ANY list`, subject to the
// CmpArrayContainsAny cardinality cap (§4.1, GLOSSARY).
func ArrayContainsAny(left Node, list ExpressionList) *Comparison {
	return CompareList(CmpArrayContainsAny, left, list)
}

// Constant builds a TRUE/FALSE predicate.
func Constant(b bool) *Const {
	if b {
		return True()
	}
	return False()
}

// Not negates p.
func Not(p Predicate) *Negation { return &Negation{Operand: p} }
