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
	"reflect"

	"github.com/dchest/siphash"

	"github.com/fenwickdata/docql/expr"
	"github.com/fenwickdata/docql/plan"
	"github.com/fenwickdata/docql/store"
)

// hashK0, hashK1 are fixed siphash keys: the hash only needs to bucket
// consistently within one execution, not resist an adversary, so there
// is no need to seed them randomly (same pattern as the teacher's
// plan/input.go HashSplit).
const (
	hashK0 = 0x5d1ec810febed702
	hashK1 = 0x40fd7fee17262f71
)

// canonicalScalar normalizes the numeric Go types Eval can produce so
// that 2 and 2.0 hash and compare equal, matching expr's own
// valuesEqual/CompareValues numeric coercion.
func canonicalScalar(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// hashKey buckets v for a join/union hash table. It only needs to
// bucket consistently — every lookup re-checks equality exactly
// (scalarEqual for join keys, string comparison for union
// serializations), so a collision only costs a wasted comparison, never
// a wrong answer.
func hashKey(v any) uint64 {
	v = canonicalScalar(v)
	return siphash.Hash(hashK0, hashK1, []byte(fmt.Sprintf("%T|%v", v, v)))
}

// scalarEqual reports whether a and b are the same join/union key,
// honoring Missing and null the way expr.CompareValues does.
func scalarEqual(a, b any) bool {
	if expr.IsMissing(a) || expr.IsMissing(b) {
		return expr.IsMissing(a) && expr.IsMissing(b)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	cmp, ok := expr.CompareValues(a, b)
	return ok && cmp == 0
}

// asSlice reports whether v is a Go slice and returns its elements,
// for array-contains/array-contains-any traversal.
func asSlice(v any) ([]any, bool) {
	if v == nil || expr.IsMissing(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// fieldValue evaluates a FieldRef against row, returning expr.Missing
// (not an error) when the path is absent, matching expr.Eval.
func fieldValue(row store.Row, f *expr.FieldRef) any {
	v, ok := row.Field(f.SourceAlias, f.Path)
	if !ok {
		return expr.Missing
	}
	return v
}

// buildKeys expands one side's join value into the set of hash-table
// keys it contributes: a single key for a scalar value, or one key per
// element when op takes a list operand (in/array-contains-any) and the
// value is itself a Go slice (§4.5's "each element keys a separate
// entry").
func buildKeys(op expr.CmpOp, v any) []any {
	if op == expr.CmpIn || op == expr.CmpArrayContainsAny {
		if arr, ok := asSlice(v); ok {
			return arr
		}
	}
	return []any{v}
}

// scanAliases recursively collects every *plan.Scan alias reachable
// from op's children, used to classify which side of a join condition
// a FieldRef belongs to.
func scanAliases(op plan.Op) map[string]bool {
	out := map[string]bool{}
	var walk func(plan.Op)
	walk = func(n plan.Op) {
		if n == nil {
			return
		}
		if s, ok := n.(*plan.Scan); ok {
			out[s.Alias] = true
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(op)
	return out
}

// splitJoinFields classifies a field-vs-field join Comparison's two
// FieldRef operands against leftAliases, returning the operand that
// belongs to the join's left input and the one that belongs to the
// right. It returns an error if cond's operands aren't both FieldRefs,
// or if they don't put exactly one operand on each side of leftAliases.
func splitJoinFields(cond *expr.Comparison, leftAliases map[string]bool) (left, right *expr.FieldRef, err error) {
	l, lok := cond.Left.(*expr.FieldRef)
	rn, rok := cond.RightNode()
	if !lok || !rok {
		return nil, nil, fmt.Errorf("exec: join condition %s is not a field-vs-field comparison", cond)
	}
	r, rok := rn.(*expr.FieldRef)
	if !rok {
		return nil, nil, fmt.Errorf("exec: join condition %s is not a field-vs-field comparison", cond)
	}
	if leftAliases[l.SourceAlias] && !leftAliases[r.SourceAlias] {
		return l, r, nil
	}
	if leftAliases[r.SourceAlias] && !leftAliases[l.SourceAlias] {
		return r, l, nil
	}
	return nil, nil, fmt.Errorf("exec: join condition %s does not separate left/right aliases", cond)
}

// mergeRows combines a left and a right row into one: both alias sets
// are disjoint by construction (the planner never reuses an alias), so
// a plain union is safe.
func mergeRows(left, right store.Row) store.Row {
	out := make(store.Row, len(left)+len(right))
	for k, v := range left {
		out[k] = v
	}
	for k, v := range right {
		out[k] = v
	}
	return out
}

// drainAll pulls every remaining row from op into a slice, used by the
// buffering operators (Sort, NestedLoopJoin/HashJoin/MergeJoin build
// sides).
func drainAll(ctx context.Context, op Operator) ([]store.Row, error) {
	var out []store.Row
	for {
		row, ok, err := op.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, row)
	}
}
