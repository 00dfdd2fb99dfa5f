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

package exec

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/fenwickdata/docql/expr"
	"github.com/fenwickdata/docql/plan"
	"github.com/fenwickdata/docql/store"
)

// Executor drives one physical plan tree to completion against a
// Backend (§4.7). It is safe for concurrent Execute calls: all
// per-execution state lives on a buildState built fresh each call.
type Executor struct {
	Backend store.Backend
	Logger  *log.Logger

	mu                 sync.Mutex
	warnedCrossProduct bool
}

// NewExecutor binds an Executor to backend, logging to logger (or a
// package-default logger if logger is nil, mirroring the teacher's
// *log.Logger-with-Printf idiom rather than a third-party logging
// library it never pulls in).
func NewExecutor(backend store.Backend, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{Backend: backend, Logger: logger}
}

// buildState carries the one piece of cross-cutting context a single
// build pass needs: the projection Fields extracted from the plan's
// (at most one) *plan.Project node, applied once at the end by
// Execute rather than as an intermediate pull stage (see Operator's
// doc comment and DESIGN.md's "Sort/Limit placement" decision).
type buildState struct {
	params  map[string]any
	fields  map[string]expr.Node
	hasProj bool
}

// Execute builds an operator tree for root bound to params, drives it
// until exhausted, and returns the collected output rows (§4.7). It
// mints a fresh execution id for log/error context, matching the
// teacher's per-request uuid.New() pattern.
func (e *Executor) Execute(ctx context.Context, root plan.Op, params map[string]any) ([]map[string]any, error) {
	execID := uuid.New()
	st := &buildState{params: params}

	op, err := e.build(ctx, root, st)
	if err != nil {
		return nil, err
	}
	defer func() {
		if c, ok := op.(Closer); ok {
			_ = c.Close()
		}
	}()

	var out []map[string]any
	for {
		row, ok, err := op.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		var projected map[string]any
		if st.hasProj {
			projected, err = projectRow(row, st.fields, params)
		} else {
			projected = defaultFlatten(row)
		}
		if err != nil {
			e.Logger.Printf("exec[%s]: projection error: %v", execID, err)
			return nil, err
		}
		out = append(out, projected)
	}
	return out, nil
}

// build recursively compiles op into an Operator, binding params to
// every node that can hold a parameterizable expression (§4.7).
// *plan.Project is the one node build never wraps an Operator around:
// it records Fields on st and recurses into the Project's own Source.
func (e *Executor) build(ctx context.Context, op plan.Op, st *buildState) (Operator, error) {
	switch n := op.(type) {
	case *plan.Project:
		st.fields = n.Fields
		st.hasProj = true
		return e.build(ctx, n.Source, st)

	case *plan.Scan:
		ps, err := store.Prepare(n)
		if err != nil {
			return nil, err
		}
		return newScanOp(ctx, ps, e.Backend, nil, st.params, nil, n.OrderBy, n.Limit, n.Offset)

	case *plan.Filter:
		if scan, ok := n.Source.(*plan.Scan); ok {
			ps, err := store.Prepare(n)
			if err != nil {
				return nil, err
			}
			return newScanOp(ctx, ps, e.Backend, nil, st.params, nil, scan.OrderBy, scan.Limit, scan.Offset)
		}
		src, err := e.build(ctx, n.Source, st)
		if err != nil {
			return nil, err
		}
		return &FilterOp{Source: src, Predicate: n.Predicate, Params: st.params}, nil

	case *plan.Sort:
		src, err := e.build(ctx, n.Source, st)
		if err != nil {
			return nil, err
		}
		return newSortOp(ctx, src, n.OrderBy)

	case *plan.Limit:
		src, err := e.build(ctx, n.Source, st)
		if err != nil {
			return nil, err
		}
		return &LimitOp{Source: src, Limit: n.Limit, Offset: n.Offset}, nil

	case *plan.UnionOp:
		inputs := make([]Operator, len(n.Inputs))
		for i, in := range n.Inputs {
			child, err := e.build(ctx, in, st)
			if err != nil {
				return nil, err
			}
			inputs[i] = child
		}
		return &UnionOp{Inputs: inputs, Distinct: n.Distinct}, nil

	case *plan.Join:
		return e.buildJoin(ctx, n, st)

	case *plan.Aggregate:
		return nil, &plan.UnsupportedError{Msg: "exec: AGGREGATE is a reserved stub never emitted by Plan (§9)"}

	default:
		return nil, &plan.InvalidPlanError{Msg: "exec: unrecognized plan node type"}
	}
}

// buildJoin dispatches on Strategy, logging a one-time warning the
// first time it constructs a cross-product join (§4.7, §9's
// cross-product-is-a-warning-not-an-error decision).
func (e *Executor) buildJoin(ctx context.Context, n *plan.Join, st *buildState) (Operator, error) {
	e.mu.Lock()
	warn := n.CrossProduct && !e.warnedCrossProduct
	if warn {
		e.warnedCrossProduct = true
	}
	e.mu.Unlock()
	if warn {
		e.Logger.Printf("exec: plan contains a cross_product join (%s); this may scan the full right side per left row", n)
	}

	leftAliases := scanAliases(n.Left)

	left, err := e.build(ctx, n.Left, st)
	if err != nil {
		return nil, err
	}

	switch n.Strategy {
	case plan.HashStrategy:
		cmp, ok := n.Condition.(*expr.Comparison)
		if !ok {
			return nil, &plan.InvalidPlanError{Msg: "exec: Hash strategy requires a bare field-vs-field Comparison condition"}
		}
		right, err := e.build(ctx, n.Right, st)
		if err != nil {
			return nil, err
		}
		return newHashJoinOp(ctx, left, right, cmp, leftAliases)

	case plan.MergeStrategy:
		cmp, ok := n.Condition.(*expr.Comparison)
		if !ok {
			return nil, &plan.InvalidPlanError{Msg: "exec: Merge strategy requires a bare field-vs-field Comparison condition"}
		}
		right, err := e.build(ctx, n.Right, st)
		if err != nil {
			return nil, err
		}
		return newMergeJoinOp(ctx, left, right, cmp, leftAliases)

	case plan.IndexedNestedLoopStrategy:
		return newIndexedNestedLoopOp(ctx, left, n.Right, n.Condition, st.params, e.Backend, leftAliases)

	default: // plan.NestedLoopStrategy
		right, err := e.build(ctx, n.Right, st)
		if err != nil {
			return nil, err
		}
		return newNestedLoopOp(ctx, left, right, n.Condition, st.params)
	}
}
