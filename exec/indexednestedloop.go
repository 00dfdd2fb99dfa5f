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
	"fmt"

	"github.com/fenwickdata/docql/expr"
	"github.com/fenwickdata/docql/plan"
	"github.com/fenwickdata/docql/store"
)

// indexedBatchMax is FIRESTORE_IN_MAX (§4.5, §5): the cap on unique
// left keys per batch query and on array-operand chunk size.
const indexedBatchMax = 10

// IndexedNestedLoopOp drives right-side lookups from left values
// instead of buffering the whole right input (§4.4 step 5's
// eligibility: any field-vs-field comparison among Condition's
// conjuncts). It extracts its right side as a store.PreparedScan via
// store.Prepare directly, rather than building a generic child
// Operator, since it issues its own parameterized queries per left row
// or per left-row batch.
type IndexedNestedLoopOp struct {
	Left      Operator
	Condition expr.Predicate
	Params    map[string]any
	Backend   store.Backend
	RightScan *store.PreparedScan

	drivingLeft, drivingRight *expr.FieldRef
	drivingOp                 expr.CmpOp
	batchMode                 bool

	// per-row mode
	rowCandidates []store.Row
	rowIdx        int
	leftRow       store.Row

	// batch mode
	pendingLeft []store.Row
	pendingKeys []any
	batchOut    []store.Row
	batchIdx    int

	leftDone bool
}

// newIndexedNestedLoopOp picks the driving field-vs-field conjunct out
// of cond, prepares the right side, and selects batch mode when the
// driving operator is `==` and the right collection has no correlated
// path segment (a fixed collection the `in` batch query can target
// uncorrelated); every other shape uses per-row mode, which naturally
// supports correlation and range operators.
func newIndexedNestedLoopOp(
	ctx context.Context,
	left Operator,
	rightOp plan.Op,
	cond expr.Predicate,
	params map[string]any,
	backend store.Backend,
	leftAliases map[string]bool,
) (*IndexedNestedLoopOp, error) {
	drivingCmp, drivingLeft, drivingRight, err := findDrivingComparison(cond, leftAliases)
	if err != nil {
		return nil, err
	}
	rightScan, err := store.Prepare(rightOp)
	if err != nil {
		return nil, err
	}
	batchMode := drivingCmp.Op == expr.CmpEq && !hasCorrelatedSegment(rightScan.Collection)

	return &IndexedNestedLoopOp{
		Left:          left,
		Condition:     cond,
		Params:        params,
		Backend:       backend,
		RightScan:     rightScan,
		drivingLeft:   drivingLeft,
		drivingRight:  drivingRight,
		drivingOp:     drivingCmp.Op,
		batchMode:     batchMode,
	}, nil
}

// findDrivingComparison returns the first top-level conjunct of cond
// that is a field-vs-field comparison separating leftAliases from the
// other side.
func findDrivingComparison(cond expr.Predicate, leftAliases map[string]bool) (*expr.Comparison, *expr.FieldRef, *expr.FieldRef, error) {
	for _, c := range expr.Conjuncts(cond) {
		cmp, ok := c.(*expr.Comparison)
		if !ok {
			continue
		}
		left, right, err := splitJoinFields(cmp, leftAliases)
		if err == nil {
			return cmp, left, right, nil
		}
	}
	return nil, nil, nil, &plan.InvalidPlanError{Msg: fmt.Sprintf("indexed-nested-loop: no field-vs-field comparison found in %s", cond)}
}

func hasCorrelatedSegment(coll plan.Collection) bool {
	for _, s := range coll.Path {
		if s.Ref != nil {
			return true
		}
	}
	return false
}

// Next implements Operator, dispatching to whichever mode the
// constructor selected.
func (n *IndexedNestedLoopOp) Next(ctx context.Context) (store.Row, bool, error) {
	if n.batchMode {
		return n.nextBatch(ctx)
	}
	return n.nextPerRow(ctx)
}

func (n *IndexedNestedLoopOp) evalCondition(row store.Row) (bool, error) {
	return expr.EvalPredicate(n.Condition, &rowEnv{row: row, params: n.Params})
}

// nextPerRow implements §4.5's per-row mode: one lookup per left row,
// chunking an array-valued left key into indexedBatchMax-sized `in`/
// `array-contains-any`/`not-in` queries and deduplicating the combined
// results by right-document path.
func (n *IndexedNestedLoopOp) nextPerRow(ctx context.Context) (store.Row, bool, error) {
	for {
		for n.rowIdx < len(n.rowCandidates) {
			candidate := n.rowCandidates[n.rowIdx]
			n.rowIdx++
			merged := mergeRows(n.leftRow, candidate)
			pass, err := n.evalCondition(merged)
			if err != nil {
				return nil, false, err
			}
			if pass {
				return merged, true, nil
			}
		}
		if n.leftDone {
			return nil, false, nil
		}
		left, ok, err := n.Left.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			n.leftDone = true
			continue
		}
		n.leftRow = left
		n.rowIdx = 0

		lv := fieldValue(left, n.drivingLeft)
		if expr.IsMissing(lv) {
			n.rowCandidates = nil
			continue
		}
		rows, err := n.lookupPerRow(ctx, left, lv)
		if err != nil {
			return nil, false, err
		}
		n.rowCandidates = rows
	}
}

func (n *IndexedNestedLoopOp) lookupPerRow(ctx context.Context, left store.Row, lv any) ([]store.Row, error) {
	chunks := chunkConstraints(n.drivingRight, n.drivingOp, lv)
	seen := map[string]bool{}
	var out []store.Row
	for _, c := range chunks {
		cur, err := n.RightScan.Open(ctx, n.Backend, left, n.Params, []plan.Constraint{c}, nil, nil, nil)
		if err != nil {
			return nil, err
		}
		rows, err := drainAll(ctx, &cursorOperator{cur: cur})
		cur.Close()
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			key := rowIdentity(row)
			if key != "" && seen[key] {
				continue
			}
			if key != "" {
				seen[key] = true
			}
			out = append(out, row)
		}
	}
	return out, nil
}

// chunkConstraints builds the extraWhere constraint(s) for one left
// value: a single scalar constraint, or — when op takes a list operand
// and lv is itself a Go slice — one constraint per indexedBatchMax-
// sized chunk (§4.5, §5).
func chunkConstraints(field *expr.FieldRef, op expr.CmpOp, lv any) []plan.Constraint {
	if op == expr.CmpIn || op == expr.CmpNotIn || op == expr.CmpArrayContainsAny {
		if arr, ok := asSlice(lv); ok {
			var out []plan.Constraint
			for i := 0; i < len(arr); i += indexedBatchMax {
				end := i + indexedBatchMax
				if end > len(arr) {
					end = len(arr)
				}
				lits := make(expr.ExpressionList, end-i)
				for j, v := range arr[i:end] {
					lits[j] = expr.LiteralOf(canonicalScalar(v))
				}
				out = append(out, plan.Constraint{Field: field, Op: op, Value: lits})
			}
			return out
		}
	}
	return []plan.Constraint{{Field: field, Op: op, Value: expr.LiteralOf(canonicalScalar(lv))}}
}

// nextBatch implements §4.5's batch mode: accumulate up to
// indexedBatchMax unique left keys, issue one `in` right-side query,
// bucket the results, and emit every combination passing the full
// predicate.
func (n *IndexedNestedLoopOp) nextBatch(ctx context.Context) (store.Row, bool, error) {
	for {
		if n.batchIdx < len(n.batchOut) {
			row := n.batchOut[n.batchIdx]
			n.batchIdx++
			return row, true, nil
		}
		if n.leftDone && len(n.pendingLeft) == 0 {
			return nil, false, nil
		}
		if len(n.pendingKeys) >= indexedBatchMax || (n.leftDone && len(n.pendingLeft) > 0) {
			out, err := n.flushBatch(ctx)
			if err != nil {
				return nil, false, err
			}
			n.batchOut, n.batchIdx = out, 0
			continue
		}
		left, ok, err := n.Left.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			n.leftDone = true
			continue
		}
		lv := fieldValue(left, n.drivingLeft)
		if expr.IsMissing(lv) {
			continue
		}
		n.pendingLeft = append(n.pendingLeft, left)
		if !containsScalar(n.pendingKeys, lv) {
			n.pendingKeys = append(n.pendingKeys, lv)
		}
	}
}

func (n *IndexedNestedLoopOp) flushBatch(ctx context.Context) ([]store.Row, error) {
	lits := make(expr.ExpressionList, len(n.pendingKeys))
	for i, k := range n.pendingKeys {
		lits[i] = expr.LiteralOf(canonicalScalar(k))
	}
	extra := []plan.Constraint{{Field: n.drivingRight, Op: expr.CmpIn, Value: lits}}

	cur, err := n.RightScan.Open(ctx, n.Backend, nil, n.Params, extra, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	rightRows, err := drainAll(ctx, &cursorOperator{cur: cur})
	cur.Close()
	if err != nil {
		return nil, err
	}

	var out []store.Row
	for _, left := range n.pendingLeft {
		lv := fieldValue(left, n.drivingLeft)
		for _, right := range rightRows {
			if !scalarEqual(fieldValue(right, n.drivingRight), lv) {
				continue
			}
			merged := mergeRows(left, right)
			pass, err := n.evalCondition(merged)
			if err != nil {
				return nil, err
			}
			if pass {
				out = append(out, merged)
			}
		}
	}
	n.pendingLeft = nil
	n.pendingKeys = nil
	return out, nil
}

func containsScalar(keys []any, v any) bool {
	for _, k := range keys {
		if scalarEqual(k, v) {
			return true
		}
	}
	return false
}

// SortOrder implements Operator. Indexed-nested-loop advertises no
// ordering of its own.
func (n *IndexedNestedLoopOp) SortOrder() []plan.OrderSpec { return nil }

// Close releases Left's resources, if any; every right-side lookup
// cursor this operator opens is already closed as soon as it is
// drained (nextPerRow/flushBatch).
func (n *IndexedNestedLoopOp) Close() error {
	if c, ok := n.Left.(Closer); ok {
		return c.Close()
	}
	return nil
}

// cursorOperator adapts a *store.Cursor to Operator so drainAll can
// reuse it for the ad-hoc lookups this operator issues.
type cursorOperator struct{ cur *store.Cursor }

func (c *cursorOperator) Next(ctx context.Context) (store.Row, bool, error) { return c.cur.Next(ctx) }
func (c *cursorOperator) SortOrder() []plan.OrderSpec                      { return nil }
