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

// Equal reports whether a and b are structurally identical Nodes. It is
// nil-safe in both directions.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equals(b)
}

// EqualPredicate reports whether a and b are structurally identical
// Predicates. It is nil-safe in both directions.
func EqualPredicate(a, b Predicate) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equals(b)
}

// aliasCollector implements Visitor to gather the set of source aliases
// referenced by FieldRefs within an expression tree.
type aliasCollector struct {
	out map[string]bool
}

func (a *aliasCollector) Visit(n Node) Visitor {
	if n == nil {
		return nil
	}
	if f, ok := n.(*FieldRef); ok {
		a.out[f.SourceAlias] = true
	}
	return a
}

// Aliases returns the set of distinct source aliases referenced by any
// FieldRef within n.
func Aliases(n Node) map[string]bool {
	out := map[string]bool{}
	Walk(&aliasCollector{out: out}, n)
	return out
}

// AliasesInPredicate returns the set of distinct source aliases
// referenced anywhere within p (§4.3's "set of aliases it mentions").
func AliasesInPredicate(p Predicate) map[string]bool {
	out := map[string]bool{}
	c := &aliasCollector{out: out}
	WalkPredicate(c, p)
	return out
}

// substituteRewriter replaces FieldRefs whose (alias, path) exactly
// match a key in Repl with the corresponding replacement Node.
type substituteRewriter struct {
	repl map[string]Node
}

func (s *substituteRewriter) Walk(n Node) Rewriter { return s }

func (s *substituteRewriter) Rewrite(n Node) Node {
	f, ok := n.(*FieldRef)
	if !ok {
		return n
	}
	if r, found := s.repl[f.String()]; found {
		return r
	}
	return n
}

// Substitute replaces every FieldRef in n matching a key of repl (keyed
// by "alias.path.to.field", i.e. FieldRef.String()) with its mapped
// replacement expression.
func Substitute(n Node, repl map[string]Node) Node {
	return Rewrite(&substituteRewriter{repl: repl}, n)
}
