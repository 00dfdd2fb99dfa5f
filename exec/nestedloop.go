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

	"github.com/fenwickdata/docql/expr"
	"github.com/fenwickdata/docql/plan"
	"github.com/fenwickdata/docql/store"
)

// NestedLoopOp buffers the right side and, for each left row, scans
// the buffer evaluating the full join predicate in memory — the only
// strategy that supports an arbitrary AND/OR/NOT condition, and the
// universal fallback when no other strategy applies (§4.4 step 5,
// §4.5). Condition is never nil: the planner sets it to expr.True()
// for a flagged cross-product join.
type NestedLoopOp struct {
	Left      Operator
	Condition expr.Predicate
	Params    map[string]any

	rightRows []store.Row
	leftRow   store.Row
	idx       int
	exhausted bool
}

// newNestedLoopOp drains right into a buffer (§4.5's "right buffer").
func newNestedLoopOp(ctx context.Context, left, right Operator, cond expr.Predicate, params map[string]any) (*NestedLoopOp, error) {
	rightRows, err := drainAll(ctx, right)
	if c, ok := right.(Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return nil, err
	}
	return &NestedLoopOp{Left: left, Condition: cond, Params: params, rightRows: rightRows}, nil
}

// Next implements Operator, emitting in left-stream order and, within
// one left row, in right-buffer order (§5).
func (n *NestedLoopOp) Next(ctx context.Context) (store.Row, bool, error) {
	for {
		for n.idx < len(n.rightRows) {
			candidate := n.rightRows[n.idx]
			n.idx++
			merged := mergeRows(n.leftRow, candidate)
			pass, err := expr.EvalPredicate(n.Condition, &rowEnv{row: merged, params: n.Params})
			if err != nil {
				return nil, false, err
			}
			if pass {
				return merged, true, nil
			}
		}
		if n.exhausted {
			return nil, false, nil
		}
		left, ok, err := n.Left.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			n.exhausted = true
			continue
		}
		n.leftRow = left
		n.idx = 0
	}
}

// SortOrder implements Operator. NestedLoop advertises no ordering of
// its own.
func (n *NestedLoopOp) SortOrder() []plan.OrderSpec { return nil }

// Close releases Left's resources, if any (the right buffer is already
// fully drained and closed by newNestedLoopOp).
func (n *NestedLoopOp) Close() error {
	if c, ok := n.Left.(Closer); ok {
		return c.Close()
	}
	return nil
}
