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

// FoldLiterals evaluates a FunctionExpr eagerly when every input folds
// (recursively, through nested ExpressionLists) to a Literal, returning
// the folded Literal and true. If Fn returns an error, or any input is
// not a Literal, the original node is returned unchanged and ok is
// false — folding never raises (§4.1, §7).
func FoldLiterals(n Node) (folded Node, ok bool) {
	f, isFn := n.(*FunctionExpr)
	if !isFn {
		return n, false
	}
	args, allLiteral := literalArgs(f.inputNodes())
	if !allLiteral {
		return n, false
	}
	v, err := f.Fn.Apply(args...)
	if err != nil {
		return n, false
	}
	return LiteralOf(v), true
}

func literalArgs(nodes []Node) ([]any, bool) {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		lit, ok := n.(*Literal)
		if !ok {
			return nil, false
		}
		out[i] = lit.Value
	}
	return out, true
}

// foldRewriter is an expr.Rewriter that folds every FunctionExpr whose
// inputs are (or have become, bottom-up) Literals.
type foldRewriter struct{}

func (foldRewriter) Walk(n Node) Rewriter { return foldRewriter{} }

func (foldRewriter) Rewrite(n Node) Node {
	if folded, ok := FoldLiterals(n); ok {
		return folded
	}
	return n
}

// FoldExpr applies FoldLiterals bottom-up across an entire expression
// tree, folding every FunctionExpr that becomes foldable once its
// children have been folded.
func FoldExpr(n Node) Node {
	return Rewrite(foldRewriter{}, n)
}
