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
	"sort"
	"testing"

	"github.com/fenwickdata/docql/expr"
	"github.com/fenwickdata/docql/plan"
	"github.com/fenwickdata/docql/store"
)

func orderRow(path string, customerID string) store.Row {
	return store.Row{"o": &store.Entity{Path: path, Fields: map[string]any{"customerId": customerID}}}
}

func customerRow(path, id, name string) store.Row {
	return store.Row{"c": &store.Entity{Path: path, Fields: map[string]any{"id": id, "name": name}}}
}

func joinedNames(t *testing.T, op Operator) map[string]bool {
	t.Helper()
	out := map[string]bool{}
	for {
		row, ok, err := op.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			return out
		}
		out[row["o"].Path+"|"+row["c"].Path] = true
	}
}

// TestHashJoinNestedLoopEquivalence checks that Hash and NestedLoop
// produce the same row multiset for the same equi-join condition
// (§8's join-strategy-equivalence property).
func TestHashJoinNestedLoopEquivalence(t *testing.T) {
	orders := []store.Row{
		orderRow("orders/1", "c1"),
		orderRow("orders/2", "c2"),
		orderRow("orders/3", "c1"),
	}
	customers := []store.Row{
		customerRow("customers/c1", "c1", "Alice"),
		customerRow("customers/c2", "c2", "Bob"),
	}
	cond := expr.Eq(expr.Field("o.customerId"), expr.Field("c.id"))
	leftAliases := map[string]bool{"o": true}

	hash, err := newHashJoinOp(context.Background(), &sliceOp{rows: orders}, &sliceOp{rows: customers}, cond, leftAliases)
	if err != nil {
		t.Fatalf("newHashJoinOp: %v", err)
	}
	nested, err := newNestedLoopOp(context.Background(), &sliceOp{rows: orders}, &sliceOp{rows: customers}, cond, nil)
	if err != nil {
		t.Fatalf("newNestedLoopOp: %v", err)
	}

	gotHash := joinedNames(t, hash)
	gotNested := joinedNames(t, nested)
	if len(gotHash) != 3 {
		t.Fatalf("expected 3 joined rows, got %d (%v)", len(gotHash), gotHash)
	}
	if len(gotHash) != len(gotNested) {
		t.Fatalf("hash/nested-loop row counts differ: %d vs %d", len(gotHash), len(gotNested))
	}
	for k := range gotHash {
		if !gotNested[k] {
			t.Fatalf("nested-loop missing row %s present in hash join", k)
		}
	}
}

// TestMergeJoinAscendingOrder checks that MergeJoin sorts its inputs
// and emits left-key-ascending groups (§4.5, §8).
func TestMergeJoinAscendingOrder(t *testing.T) {
	orders := []store.Row{
		orderRow("orders/3", "c2"),
		orderRow("orders/1", "c1"),
		orderRow("orders/2", "c1"),
	}
	customers := []store.Row{
		customerRow("customers/c2", "c2", "Bob"),
		customerRow("customers/c1", "c1", "Alice"),
	}
	cond := expr.Eq(expr.Field("o.customerId"), expr.Field("c.id"))
	leftAliases := map[string]bool{"o": true}

	mj, err := newMergeJoinOp(context.Background(), &sliceOp{rows: orders}, &sliceOp{rows: customers}, cond, leftAliases)
	if err != nil {
		t.Fatalf("newMergeJoinOp: %v", err)
	}

	var keys []string
	for {
		row, ok, err := mj.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		keys = append(keys, row["o"].Fields["customerId"].(string))
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 joined rows, got %d (%v)", len(keys), keys)
	}
	if !sort.StringsAreSorted(keys) {
		t.Fatalf("expected left-key-ascending emission order, got %v", keys)
	}
}

// TestUnionDocPathDistinctDedup checks the DocPath dedup strategy drops
// a row whose alias+path was already seen.
func TestUnionDocPathDistinctDedup(t *testing.T) {
	a := &sliceOp{rows: []store.Row{orderRow("orders/1", "c1"), orderRow("orders/2", "c2")}}
	b := &sliceOp{rows: []store.Row{orderRow("orders/1", "c1"), orderRow("orders/3", "c3")}}
	u := &UnionOp{Inputs: []Operator{a, b}, Distinct: plan.DocPathDistinct}

	var paths []string
	for {
		row, ok, err := u.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		paths = append(paths, row["o"].Path)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 distinct paths (dup of orders/1 dropped), got %v", paths)
	}
}

// TestSortOpOrdersByMultipleKeys checks multi-key sort: primary key
// ascending, secondary key descending.
func TestSortOpOrdersByMultipleKeys(t *testing.T) {
	rows := []store.Row{
		{"o": &store.Entity{Fields: map[string]any{"status": "open", "n": 2.0}}},
		{"o": &store.Entity{Fields: map[string]any{"status": "closed", "n": 1.0}}},
		{"o": &store.Entity{Fields: map[string]any{"status": "open", "n": 1.0}}},
	}
	src := &sliceOp{rows: rows}
	orderBy := []plan.OrderSpec{
		{Field: expr.Field("o.status"), Desc: false},
		{Field: expr.Field("o.n"), Desc: true},
	}

	s, err := newSortOp(context.Background(), src, orderBy)
	if err != nil {
		t.Fatalf("newSortOp: %v", err)
	}

	var gotStatus []string
	var gotN []float64
	for {
		row, ok, err := s.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		gotStatus = append(gotStatus, row["o"].Fields["status"].(string))
		gotN = append(gotN, row["o"].Fields["n"].(float64))
	}
	wantStatus := []string{"closed", "open", "open"}
	wantN := []float64{1.0, 2.0, 1.0} // within "open", n:2 precedes n:1 (desc secondary key)
	if len(gotStatus) != len(wantStatus) {
		t.Fatalf("expected %v, got %v", wantStatus, gotStatus)
	}
	for i := range wantStatus {
		if gotStatus[i] != wantStatus[i] || gotN[i] != wantN[i] {
			t.Fatalf("expected status=%v n=%v, got status=%v n=%v", wantStatus, wantN, gotStatus, gotN)
		}
	}
}
