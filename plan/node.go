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
	"fmt"
	"sort"
	"strings"

	"github.com/fenwickdata/docql/expr"
)

// Op is one node of the physical plan tree (§3): SCAN, FILTER, PROJECT,
// JOIN, UNION, SORT, LIMIT or AGGREGATE.
type Op interface {
	fmt.Stringer

	// Children returns this node's inputs, in execution order. A SCAN
	// returns nil.
	Children() []Op
}

// Nonterminal is embedded by every single-input node (Filter, Project,
// Sort, Limit, Aggregate), mirroring the teacher's embedding pattern
// for plan nodes with exactly one child.
type Nonterminal struct {
	Source Op
}

// Children implements Op.
func (n *Nonterminal) Children() []Op { return []Op{n.Source} }

// Constraint is a backend-pushable atom on a SCAN (§3): a single
// FieldRef compared against a scalar or list value which may still be
// a Param or FunctionExpr, resolved at execution (§4.6).
type Constraint struct {
	Field *expr.FieldRef
	Op    expr.CmpOp
	Value any // expr.Node or expr.ExpressionList
}

func (c Constraint) String() string {
	switch v := c.Value.(type) {
	case expr.Node:
		return fmt.Sprintf("%s %s %s", c.Field, c.Op, v)
	case expr.ExpressionList:
		return fmt.Sprintf("%s %s %s", c.Field, c.Op, v.String())
	default:
		return fmt.Sprintf("%s %s ?", c.Field, c.Op)
	}
}

// Scan is a leaf node reading a single collection (§3, §4.6).
type Scan struct {
	Collection  Collection
	Alias       string
	Constraints []Constraint
	OrderBy     []OrderSpec
	Limit       *int
	Offset      *int
}

// Children implements Op.
func (s *Scan) Children() []Op { return nil }

func (s *Scan) String() string {
	parts := make([]string, len(s.Constraints))
	for i, c := range s.Constraints {
		parts[i] = c.String()
	}
	desc := fmt.Sprintf("SCAN %s AS %s", s.Collection, s.Alias)
	if len(parts) > 0 {
		desc += " WHERE " + strings.Join(parts, " AND ")
	}
	if len(s.OrderBy) > 0 {
		desc += " " + orderByString(s.OrderBy)
	}
	if s.Limit != nil {
		desc += fmt.Sprintf(" LIMIT %d", *s.Limit)
	}
	if s.Offset != nil {
		desc += fmt.Sprintf(" OFFSET %d", *s.Offset)
	}
	return desc
}

// Filter re-evaluates Predicate on every row of Source (§4.5).
type Filter struct {
	Nonterminal
	Predicate expr.Predicate
}

func (f *Filter) String() string { return "FILTER " + f.Predicate.String() }

// Project evaluates Fields against every row of Source, producing a
// flat row keyed by output name (§4.5).
type Project struct {
	Nonterminal
	Fields map[string]expr.Node
}

func (p *Project) String() string {
	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, p.Fields[k])
	}
	return "PROJECT {" + strings.Join(parts, ", ") + "}"
}

// JoinStrategy selects the physical join operator (§3, §4.4).
type JoinStrategy int

const (
	HashStrategy JoinStrategy = iota
	MergeStrategy
	NestedLoopStrategy
	IndexedNestedLoopStrategy
)

func (s JoinStrategy) String() string {
	switch s {
	case HashStrategy:
		return "Hash"
	case MergeStrategy:
		return "Merge"
	case NestedLoopStrategy:
		return "NestedLoop"
	case IndexedNestedLoopStrategy:
		return "IndexedNestedLoop"
	default:
		return "?"
	}
}

// Join combines Left and Right rows under Condition using Strategy
// (§3, §4.4, §4.5).
type Join struct {
	Left, Right  Op
	Strategy     JoinStrategy
	Condition    expr.Predicate
	CrossProduct bool
}

// Children implements Op.
func (j *Join) Children() []Op { return []Op{j.Left, j.Right} }

func (j *Join) String() string {
	desc := fmt.Sprintf("JOIN[%s] ON %s", j.Strategy, j.Condition)
	if j.CrossProduct {
		desc += " (cross product)"
	}
	return desc
}

// UnionDistinct is Union's dedup strategy (§4.5).
type UnionDistinct int

const (
	NoneDistinct UnionDistinct = iota
	DocPathDistinct
	HashMapDistinct
)

func (d UnionDistinct) String() string {
	switch d {
	case DocPathDistinct:
		return "DocPath"
	case HashMapDistinct:
		return "HashMap"
	default:
		return "None"
	}
}

// UnionOp round-robins its Inputs, optionally deduplicating rows (§3,
// §4.5). Named UnionOp (not Union) to avoid colliding with
// expr.Predicate's logical-OR builder of the same name in spirit.
type UnionOp struct {
	Inputs   []Op
	Distinct UnionDistinct
}

// Children implements Op.
func (u *UnionOp) Children() []Op { return u.Inputs }

func (u *UnionOp) String() string { return fmt.Sprintf("UNION[distinct=%s]", u.Distinct) }

// Sort buffers all of Source and emits it ordered by OrderBy (§3, §4.5).
type Sort struct {
	Nonterminal
	OrderBy []OrderSpec
}

func (s *Sort) String() string { return "SORT " + orderByString(s.OrderBy) }

// Limit skips Offset rows of Source then emits up to Limit rows (§3,
// §4.5).
type Limit struct {
	Nonterminal
	Limit  int
	Offset int
}

func (l *Limit) String() string { return fmt.Sprintf("LIMIT %d OFFSET %d", l.Limit, l.Offset) }

// Aggregate is a stub tagged-union member (§2, §9): present so
// plan node switches are exhaustive, but never emitted by Plan.
type Aggregate struct {
	Nonterminal
}

func (a *Aggregate) String() string { return "AGGREGATE (count)" }

func orderByString(spec []OrderSpec) string {
	parts := make([]string, len(spec))
	for i, o := range spec {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", o.Field, dir)
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}
