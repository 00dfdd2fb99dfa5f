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

// bucketEntry pairs a build-side row with its un-hashed key, so a
// siphash bucket collision can be ruled out with an exact comparison
// (§4.5, §8's store/hash-adapter correctness properties).
type bucketEntry struct {
	key any
	row store.Row
}

// HashJoinOp builds a multi-map from the right (build) stream keyed by
// its join-field value, then probes it once per left row (§4.5). The
// planner only ever selects Hash for a bare field-vs-field Comparison
// (chooseStrategy requires `cond.(*expr.Comparison)` to succeed), so
// Condition here is always exactly that: one Comparison, never a
// Logical wrapping it.
type HashJoinOp struct {
	Left Operator

	leftField, rightField *expr.FieldRef
	op                    expr.CmpOp
	buckets               map[uint64][]bucketEntry

	leftRow     store.Row
	leftMatches []store.Row
	matchIdx    int
	exhausted   bool
}

// newHashJoinOp drains right, buckets it by rightField's value (per
// buildKeys' list-expansion rule for in/array-contains-any), and
// returns an operator ready to probe from left.
func newHashJoinOp(ctx context.Context, left, right Operator, cond *expr.Comparison, leftAliases map[string]bool) (*HashJoinOp, error) {
	leftField, rightField, err := splitJoinFields(cond, leftAliases)
	if err != nil {
		return nil, &plan.InvalidPlanError{Msg: err.Error()}
	}
	rightRows, err := drainAll(ctx, right)
	if c, ok := right.(Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return nil, err
	}
	buckets := map[uint64][]bucketEntry{}
	for _, row := range rightRows {
		rv := fieldValue(row, rightField)
		for _, k := range buildKeys(cond.Op, rv) {
			h := hashKey(k)
			buckets[h] = append(buckets[h], bucketEntry{key: k, row: row})
		}
	}
	return &HashJoinOp{
		Left:       left,
		leftField:  leftField,
		rightField: rightField,
		op:         cond.Op,
		buckets:    buckets,
	}, nil
}

// Next implements Operator, emitting {...left, ...right} per match
// (§4.5); within one left row, matches come out in right-build-
// insertion order (§5).
func (h *HashJoinOp) Next(ctx context.Context) (store.Row, bool, error) {
	for {
		if h.matchIdx < len(h.leftMatches) {
			row := h.leftMatches[h.matchIdx]
			h.matchIdx++
			return mergeRows(h.leftRow, row), true, nil
		}
		if h.exhausted {
			return nil, false, nil
		}
		left, ok, err := h.Left.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			h.exhausted = true
			continue
		}
		h.leftRow = left
		h.leftMatches = h.probe(left)
		h.matchIdx = 0
	}
}

// probe collects every build-side row whose key matches left's
// join-field value, deduplicating across buckets (needed for
// array-contains, which can visit the same right row through more
// than one left array element).
func (h *HashJoinOp) probe(left store.Row) []store.Row {
	lv := fieldValue(left, h.leftField)

	var candidates []any
	if h.op == expr.CmpArrayContains {
		if arr, ok := asSlice(lv); ok {
			candidates = arr
		}
	} else {
		candidates = []any{lv}
	}

	seen := map[string]bool{}
	var out []store.Row
	for _, c := range candidates {
		for _, e := range h.buckets[hashKey(c)] {
			if !scalarEqual(e.key, c) {
				continue
			}
			pathKey := rowIdentity(e.row)
			if seen[pathKey] {
				continue
			}
			seen[pathKey] = true
			out = append(out, e.row)
		}
	}
	return out
}

// rowIdentity is a best-effort dedup key for a build-side row: the
// concatenation of its aliased entity paths, falling back to the
// row's HashMap-style serialization when any entity lacks a path.
func rowIdentity(row store.Row) string {
	if key, ok := docPathKey(row); ok {
		return key
	}
	ser, err := hashMapKey(row)
	if err != nil {
		return ""
	}
	return ser
}

// SortOrder implements Operator. HashJoin advertises no ordering of
// its own (§4.5).
func (h *HashJoinOp) SortOrder() []plan.OrderSpec { return nil }

// Close releases Left's resources, if any (the right side is already
// fully drained and closed by newHashJoinOp).
func (h *HashJoinOp) Close() error {
	if c, ok := h.Left.(Closer); ok {
		return c.Close()
	}
	return nil
}
