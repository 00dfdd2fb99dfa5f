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
	"strings"

	"github.com/fenwickdata/docql/expr"
)

// Segment is one path component of a Collection reference: either a
// literal name or a parameterized FieldRef pulled from an outer alias
// (for correlated sub-scans), per §3.
type Segment struct {
	Literal string
	Ref     *expr.FieldRef
}

func (s Segment) String() string {
	if s.Ref != nil {
		return "{" + s.Ref.String() + "}"
	}
	return s.Literal
}

// Collection is a reference to a collection or collection-group by
// path (§3).
type Collection struct {
	Group bool
	Path  []Segment
}

func (c Collection) String() string {
	parts := make([]string, len(c.Path))
	for i, s := range c.Path {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}

// collection builds a Collection reference from a slash-separated path
// string, e.g. `collection("users/{o.userId}/orders")` (§6). A segment
// wrapped in `{...}` is parsed as a correlated FieldRef pulled from an
// outer alias; every other segment is a literal path component.
func collection(path string) Collection { return Collection{Path: parseSegments(path)} }

// collectionGroup builds a collection-group reference matching every
// collection named collectionID at any depth (§3, §6).
func collectionGroup(collectionID string) Collection {
	return Collection{Group: true, Path: []Segment{{Literal: collectionID}}}
}

func parseSegments(path string) []Segment {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]Segment, len(parts))
	for i, p := range parts {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			out[i] = Segment{Ref: expr.Field(p[1 : len(p)-1])}
		} else {
			out[i] = Segment{Literal: p}
		}
	}
	return out
}

// PredicateMode selects whether the planner respects the where clause's
// logical shape as written or rewrites it to DNF (§3 hints).
type PredicateMode int

const (
	Respect PredicateMode = iota
	AutoPredicate
)

// PredicateOrMode selects the top-level-OR planning strategy (§3 hints,
// §4.4 step 2).
type PredicateOrMode int

const (
	Union PredicateOrMode = iota
	SingleScan
	AutoOrMode
)

// JoinHint overrides join-strategy selection (§3 hints, §4.4 step 5).
type JoinHint int

const (
	AutoJoin JoinHint = iota
	HashJoinHint
	MergeJoinHint
	NestedLoopHint
	IndexedNestedLoopHint
)

// OrderByHint selects where a requested sort is realized (§3 hints,
// §4.4 step 6).
type OrderByHint int

const (
	AutoOrderBy OrderByHint = iota
	DBSide
	PostFetchSort
)

// Hints configures planner behavior; the zero value selects Respect,
// Union, AutoJoin and AutoOrderBy (§3).
type Hints struct {
	PredicateMode   PredicateMode
	PredicateOrMode PredicateOrMode
	Join            JoinHint
	OrderBy         OrderByHint
}

// OrderSpec is one ORDER BY clause entry (§3).
type OrderSpec struct {
	Field *expr.FieldRef
	Desc  bool
}

// Projection is the planner's input: a declarative, SQL-like relational
// query (§3).
type Projection struct {
	ID      string
	From    map[string]Collection
	Select  map[string]expr.Node
	Where   expr.Predicate
	OrderBy []OrderSpec
	Params  map[string]any
	Limit   *int
	Offset  *int
	Hints   Hints
}

// NewProjection builds and validates a Projection (§3's invariants:
// `from` non-empty; every FieldRef in select/where/orderBy references a
// declared alias).
func NewProjection(id string, from map[string]Collection, opts ...func(*Projection)) (*Projection, error) {
	if len(from) == 0 {
		return nil, &InvalidInputError{Msg: "projection `from` must be non-empty"}
	}
	p := &Projection{ID: id, From: from}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// WithSelect sets the projection's output-key expression map.
func WithSelect(sel map[string]expr.Node) func(*Projection) {
	return func(p *Projection) { p.Select = sel }
}

// WithWhere sets the projection's filter predicate.
func WithWhere(where expr.Predicate) func(*Projection) {
	return func(p *Projection) { p.Where = where }
}

// WithOrderBy sets the projection's sort order.
func WithOrderBy(orderBy ...OrderSpec) func(*Projection) {
	return func(p *Projection) { p.OrderBy = orderBy }
}

// WithLimit sets the projection's row limit.
func WithLimit(n int) func(*Projection) {
	return func(p *Projection) { p.Limit = &n }
}

// WithOffset sets the projection's row offset.
func WithOffset(n int) func(*Projection) {
	return func(p *Projection) { p.Offset = &n }
}

// WithParams sets the projection's default parameter bindings.
func WithParams(params map[string]any) func(*Projection) {
	return func(p *Projection) { p.Params = params }
}

// WithHints sets the projection's planner hints.
func WithHints(h Hints) func(*Projection) {
	return func(p *Projection) { p.Hints = h }
}

// Validate re-checks §3's invariants: `from` non-empty and every
// FieldRef in select/where/orderBy (and correlated collection paths)
// names a declared alias.
func (p *Projection) Validate() error {
	if len(p.From) == 0 {
		return &InvalidInputError{Msg: "projection `from` must be non-empty"}
	}
	var unknown string
	check := func(n expr.Node) {
		if unknown != "" {
			return
		}
		if f, ok := n.(*expr.FieldRef); ok {
			if _, ok := p.From[f.SourceAlias]; !ok {
				unknown = f.SourceAlias
			}
		}
	}
	walker := &fieldWalker{fn: check}
	for _, c := range p.From {
		for _, seg := range c.Path {
			if seg.Ref != nil {
				check(seg.Ref)
			}
		}
	}
	for _, e := range p.Select {
		expr.Walk(walker, e)
	}
	if p.Where != nil {
		expr.WalkPredicate(walker, p.Where)
	}
	for _, o := range p.OrderBy {
		check(o.Field)
	}
	if unknown != "" {
		return &InvalidInputError{Msg: "reference to undeclared alias " + unknown}
	}
	return nil
}

// aliases returns the projection's declared aliases in sorted order,
// for deterministic scan/join ordering.
func (p *Projection) aliases() []string {
	out := make([]string, 0, len(p.From))
	for a := range p.From {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

type fieldWalker struct{ fn func(expr.Node) }

func (w *fieldWalker) Visit(n expr.Node) expr.Visitor {
	w.fn(n)
	return w
}
