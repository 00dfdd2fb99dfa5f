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

package store

import (
	"context"
	"strings"
	"testing"

	"github.com/fenwickdata/docql/expr"
	"github.com/fenwickdata/docql/plan"
)

type fakeIterator struct {
	docs []Document
	i    int
}

func (it *fakeIterator) Next(ctx context.Context) (Document, bool, error) {
	if it.i >= len(it.docs) {
		return Document{}, false, nil
	}
	d := it.docs[it.i]
	it.i++
	return d, true, nil
}

func (it *fakeIterator) Close() error { return nil }

type whereCall struct {
	field string
	op    expr.CmpOp
	value any
}

type fakeQuery struct {
	docs   []Document
	wheres []whereCall
	limit  *int
	offset *int
}

func (q *fakeQuery) Where(field string, op expr.CmpOp, value any) Query {
	q.wheres = append(q.wheres, whereCall{field, op, value})
	return q
}
func (q *fakeQuery) OrderBy(field string, desc bool) Query { return q }
func (q *fakeQuery) Limit(n int) Query                     { q.limit = &n; return q }
func (q *fakeQuery) Offset(n int) Query                    { q.offset = &n; return q }
func (q *fakeQuery) Stream(ctx context.Context) (DocumentIterator, error) {
	return &fakeIterator{docs: q.docs}, nil
}

type fakeBackend struct {
	docs      map[string][]Document
	lastQuery *fakeQuery
}

func (b *fakeBackend) Collection(path []string) Query {
	q := &fakeQuery{docs: b.docs[strings.Join(path, "/")]}
	b.lastQuery = q
	return q
}

func (b *fakeBackend) CollectionGroup(id string) Query {
	q := &fakeQuery{docs: b.docs[id]}
	b.lastQuery = q
	return q
}

func TestPrepareRejectsUnsupportedShape(t *testing.T) {
	join := &plan.Join{Left: &plan.Scan{Alias: "o"}, Right: &plan.Scan{Alias: "c"}}
	if _, err := Prepare(join); err == nil {
		t.Fatalf("expected an error preparing a bare Join")
	}
}

func TestPrepareBareScanReconstructsPostFilter(t *testing.T) {
	scan := &plan.Scan{
		Alias: "o",
		Constraints: []plan.Constraint{
			{Field: expr.Field("o.status"), Op: expr.CmpEq, Value: expr.String("open")},
		},
	}
	ps, err := Prepare(scan)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !strings.Contains(ps.PostFilter.String(), "status") {
		t.Fatalf("expected a reconstructed post-filter mentioning status, got %s", ps.PostFilter)
	}
}

func TestResolvePushedConstraintsDropsLaterMembership(t *testing.T) {
	env := &bindEnv{}
	base := []plan.Constraint{
		{Field: expr.Field("o.status"), Op: expr.CmpIn, Value: expr.ExpressionList{expr.String("open"), expr.String("pending")}},
	}
	extra := []plan.Constraint{
		{Field: expr.Field("o.tag"), Op: expr.CmpIn, Value: expr.ExpressionList{expr.String("a")}},
	}
	pushed, err := resolvePushedConstraints(base, extra, env)
	if err != nil {
		t.Fatalf("resolvePushedConstraints: %v", err)
	}
	if len(pushed) != 1 {
		t.Fatalf("expected the second membership constraint to be dropped, got %+v", pushed)
	}
	if pushed[0].fieldPath != "status" {
		t.Fatalf("expected the first membership constraint (status) to survive, got %s", pushed[0].fieldPath)
	}
}

func TestResolveConstraintMissingParameter(t *testing.T) {
	c := plan.Constraint{Field: expr.Field("o.status"), Op: expr.CmpEq, Value: expr.ParamRef("status")}
	_, err := resolveConstraint(c, &bindEnv{params: nil})
	if _, ok := err.(*expr.MissingParameterError); !ok {
		t.Fatalf("expected a MissingParameterError, got %v (%T)", err, err)
	}
}

func TestCursorAppliesPostFilterAndBuildsMetadata(t *testing.T) {
	backend := &fakeBackend{docs: map[string][]Document{
		"orders": {
			{Path: "orders/doc1", Fields: map[string]any{"status": "open"}},
			{Path: "orders/doc2", Fields: map[string]any{"status": "pending"}},
		},
	}}
	ps := &PreparedScan{
		Alias:      "o",
		Collection: plan.Collection{Path: []plan.Segment{{Literal: "orders"}}},
		BaseConstraints: []plan.Constraint{
			{Field: expr.Field("o.status"), Op: expr.CmpEq, Value: expr.String("open")},
		},
	}
	ps.PostFilter = constraintsToPredicate(ps.BaseConstraints)

	cur, err := ps.Open(context.Background(), backend, nil, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cur.Close()

	row, ok, err := cur.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected one passing row, got ok=%v err=%v", ok, err)
	}
	if row["o"].ID != "doc1" || row["o"].Collection != "orders" {
		t.Fatalf("expected row metadata id=doc1 collection=orders, got %+v", row["o"])
	}
	if row["o"].Parent != nil {
		t.Fatalf("expected no parent for a 2-segment path")
	}

	_, ok, err = cur.Next(context.Background())
	if err != nil || ok {
		t.Fatalf("expected doc2 to be filtered out by the post-filter, got ok=%v err=%v", ok, err)
	}

	if len(backend.lastQuery.wheres) != 1 || backend.lastQuery.wheres[0].field != "status" {
		t.Fatalf("expected the equality constraint to be pushed to the backend, got %+v", backend.lastQuery.wheres)
	}
}

func TestOpenResolvesCorrelatedCollectionSegment(t *testing.T) {
	backend := &fakeBackend{docs: map[string][]Document{
		"customers/cust1/orders": {
			{Path: "customers/cust1/orders/doc1", Fields: map[string]any{"total": 12.0}},
		},
	}}
	ps := &PreparedScan{
		Alias: "o",
		Collection: plan.Collection{Path: []plan.Segment{
			{Literal: "customers"},
			{Ref: expr.Field("c.id")},
			{Literal: "orders"},
		}},
		PostFilter: expr.True(),
	}
	outer := Row{"c": newEntity("customers/cust1", map[string]any{"id": "cust1"})}

	cur, err := ps.Open(context.Background(), backend, outer, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cur.Close()

	row, ok, err := cur.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected one row from the correlated sub-collection, got ok=%v err=%v", ok, err)
	}
	if row["o"].Path != "customers/cust1/orders/doc1" {
		t.Fatalf("expected the correlated path to resolve to cust1, got %s", row["o"].Path)
	}
}
