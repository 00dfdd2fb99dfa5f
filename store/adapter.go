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

// Package store adapts a SCAN (optionally wrapped by FILTER) plan
// subtree to the external Backend query surface of §6, implementing
// the compile-then-stream split of §4.6.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/fenwickdata/docql/expr"
	"github.com/fenwickdata/docql/plan"
)

// PreparedScan is the store adapter's compiled form of a SCAN node
// (§4.6): its collection path, its backend-pushable Constraints (still
// unresolved — they may hold Params or FunctionExprs), and the full
// predicate that must hold post-fetch for correctness.
type PreparedScan struct {
	Alias           string
	Collection      plan.Collection
	BaseConstraints []plan.Constraint
	PostFilter      expr.Predicate
}

// Prepare compiles op into a PreparedScan. Only a bare SCAN or a
// FILTER directly over a SCAN are supported prepared-scan shapes (§7's
// Unsupported: "the adapter currently supports only SCAN or
// FILTER→SCAN subtrees for prepared scans"); anything else is rejected.
func Prepare(op plan.Op) (*PreparedScan, error) {
	switch n := op.(type) {
	case *plan.Scan:
		return &PreparedScan{
			Alias:           n.Alias,
			Collection:      n.Collection,
			BaseConstraints: n.Constraints,
			PostFilter:      constraintsToPredicate(n.Constraints),
		}, nil
	case *plan.Filter:
		scan, ok := n.Source.(*plan.Scan)
		if !ok {
			return nil, &plan.UnsupportedError{
				Msg: fmt.Sprintf("store adapter: FILTER over %T is not a prepared-scan shape (only SCAN or FILTER→SCAN)", n.Source),
			}
		}
		return &PreparedScan{
			Alias:           scan.Alias,
			Collection:      scan.Collection,
			BaseConstraints: scan.Constraints,
			PostFilter:      n.Predicate,
		}, nil
	default:
		return nil, &plan.UnsupportedError{
			Msg: fmt.Sprintf("store adapter: unsupported plan shape %T (only SCAN or FILTER→SCAN)", op),
		}
	}
}

// constraintsToPredicate reconstructs an equivalent predicate from a
// bare SCAN's Constraints, used as PostFilter when there is no
// enclosing FILTER: every pushed constraint is still re-checked
// client-side (§4.6, and the "store adapter correctness" property of
// §8), which is what lets the single-membership rule silently drop
// later membership constraints without losing correctness.
func constraintsToPredicate(constraints []plan.Constraint) expr.Predicate {
	if len(constraints) == 0 {
		return expr.True()
	}
	conds := make([]expr.Predicate, len(constraints))
	for i, c := range constraints {
		conds[i] = constraintToComparison(c)
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return expr.And(conds...)
}

func constraintToComparison(c plan.Constraint) *expr.Comparison {
	switch v := c.Value.(type) {
	case expr.ExpressionList:
		return expr.CompareList(c.Op, c.Field, v)
	case expr.Node:
		return expr.Compare(c.Op, c.Field, v)
	default:
		return expr.Compare(c.Op, c.Field, expr.Null())
	}
}

// resolvedConstraint is a Constraint whose right-hand side has already
// been evaluated to a backend-compatible scalar or []any (§4.6 step 1).
type resolvedConstraint struct {
	fieldPath string
	op        expr.CmpOp
	value     any
}

func resolveConstraint(c plan.Constraint, env expr.Env) (resolvedConstraint, error) {
	fieldPath := strings.Join(c.Field.Path, ".")
	switch v := c.Value.(type) {
	case expr.ExpressionList:
		vals, err := expr.EvalList(v, env)
		if err != nil {
			return resolvedConstraint{}, err
		}
		return resolvedConstraint{fieldPath: fieldPath, op: c.Op, value: vals}, nil
	case expr.Node:
		val, err := expr.Eval(v, env)
		if err != nil {
			return resolvedConstraint{}, err
		}
		return resolvedConstraint{fieldPath: fieldPath, op: c.Op, value: val}, nil
	default:
		return resolvedConstraint{}, fmt.Errorf("store: constraint %s has an unresolved value of type %T", c, c.Value)
	}
}

// resolvePushedConstraints resolves base and extraWhere (§4.6 steps 1-2)
// and enforces the single-membership rule (step 3): the first
// membership constraint (in/not-in/array-contains-any) survives, later
// ones are dropped — the post-filter catches what the backend no
// longer sees.
func resolvePushedConstraints(base, extra []plan.Constraint, env expr.Env) ([]resolvedConstraint, error) {
	all := make([]plan.Constraint, 0, len(base)+len(extra))
	all = append(all, base...)
	all = append(all, extra...)

	resolved := make([]resolvedConstraint, 0, len(all))
	for _, c := range all {
		rc, err := resolveConstraint(c, env)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, rc)
	}

	out := resolved[:0]
	seenMembership := false
	for _, rc := range resolved {
		if rc.op.IsMembership() {
			if seenMembership {
				continue
			}
			seenMembership = true
		}
		out = append(out, rc)
	}
	return out, nil
}

// resolveCollectionPath resolves a Collection's correlated segments
// (§3's `collection("users/{o.userId}/orders")`) against outerRow —
// the driving row of an enclosing join, or nil for a root scan, which
// has none to correlate against.
func resolveCollectionPath(coll plan.Collection, outerRow Row) ([]string, error) {
	segs := make([]string, len(coll.Path))
	env := &bindEnv{row: outerRow}
	for i, s := range coll.Path {
		if s.Ref == nil {
			segs[i] = s.Literal
			continue
		}
		v, err := expr.Eval(s.Ref, env)
		if err != nil {
			return nil, err
		}
		str, ok := v.(string)
		if !ok {
			return nil, &BackendError{
				Collection: coll.String(),
				Err:        fmt.Errorf("correlated collection segment %s resolved to non-string %v", s.Ref, v),
			}
		}
		segs[i] = str
	}
	return segs, nil
}

// Open resolves ps against params (and outerRow, for correlated
// collection segments), combines it with extraWhere (indexed-nested-
// loop's batch/per-row lookups, §4.5), attaches orderBy/limit/offset,
// and issues the streaming query (§4.6 steps 1-5). Pass a nil outerRow
// and extraWhere for a root (non-correlated, non-lookup) scan.
func (ps *PreparedScan) Open(
	ctx context.Context,
	backend Backend,
	outerRow Row,
	params map[string]any,
	extraWhere []plan.Constraint,
	orderBy []plan.OrderSpec,
	limit, offset *int,
) (*Cursor, error) {
	paramEnv := &bindEnv{params: params}

	pushed, err := resolvePushedConstraints(ps.BaseConstraints, extraWhere, paramEnv)
	if err != nil {
		return nil, err
	}

	var q Query
	if ps.Collection.Group {
		q = backend.CollectionGroup(ps.Collection.Path[0].Literal)
	} else {
		path, err := resolveCollectionPath(ps.Collection, outerRow)
		if err != nil {
			return nil, err
		}
		q = backend.Collection(path)
	}

	for _, rc := range pushed {
		q = q.Where(rc.fieldPath, rc.op, rc.value)
	}
	for _, o := range orderBy {
		q = q.OrderBy(strings.Join(o.Field.Path, "."), o.Desc)
	}
	if limit != nil {
		q = q.Limit(*limit)
	}
	if offset != nil {
		q = q.Offset(*offset)
	}

	it, err := q.Stream(ctx)
	if err != nil {
		return nil, &BackendError{Collection: ps.Collection.String(), Constraints: ps.BaseConstraints, Err: err}
	}

	return &Cursor{
		iter:       it,
		postFilter: ps.PostFilter,
		alias:      ps.Alias,
		params:     params,
		collection: ps.Collection.String(),
	}, nil
}

// Cursor streams rows for one open prepared scan, re-applying the
// post-filter client-side (§4.6 step 5).
type Cursor struct {
	iter       DocumentIterator
	postFilter expr.Predicate
	alias      string
	params     map[string]any
	collection string
}

// Next advances the cursor, skipping documents that fail the
// post-filter, until a passing row is produced or the stream is
// exhausted.
func (c *Cursor) Next(ctx context.Context) (Row, bool, error) {
	for {
		doc, ok, err := c.iter.Next(ctx)
		if err != nil {
			return nil, false, &BackendError{Collection: c.collection, Err: err}
		}
		if !ok {
			return nil, false, nil
		}
		row := Row{c.alias: newEntity(doc.Path, doc.Fields)}
		env := &bindEnv{row: row, params: c.params}
		pass, err := expr.EvalPredicate(c.postFilter, env)
		if err != nil {
			return nil, false, err
		}
		if pass {
			return row, true, nil
		}
	}
}

// Close releases the underlying backend cursor (§5's cancellation
// model: dropping the consumer must release store cursors).
func (c *Cursor) Close() error { return c.iter.Close() }
