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
	"strings"

	"github.com/fenwickdata/docql/expr"
	"github.com/fenwickdata/docql/plan"
	"github.com/fenwickdata/docql/store"
)

// fakeIterator/fakeQuery/fakeBackend mirror store's own test fakes
// (store/adapter_test.go), duplicated here since they're unexported
// there and exec needs its own store.Backend to drive Executor
// end-to-end.
type fakeIterator struct {
	docs []store.Document
	i    int
}

func (it *fakeIterator) Next(ctx context.Context) (store.Document, bool, error) {
	if it.i >= len(it.docs) {
		return store.Document{}, false, nil
	}
	d := it.docs[it.i]
	it.i++
	return d, true, nil
}

func (it *fakeIterator) Close() error { return nil }

type fakeQuery struct {
	docs   []store.Document
	limit  *int
	offset *int
}

func (q *fakeQuery) Where(field string, op expr.CmpOp, value any) store.Query { return q }
func (q *fakeQuery) OrderBy(field string, desc bool) store.Query              { return q }
func (q *fakeQuery) Limit(n int) store.Query                                  { q.limit = &n; return q }
func (q *fakeQuery) Offset(n int) store.Query                                 { q.offset = &n; return q }
func (q *fakeQuery) Stream(ctx context.Context) (store.DocumentIterator, error) {
	return &fakeIterator{docs: q.docs}, nil
}

type fakeBackend struct {
	docs map[string][]store.Document
}

func (b *fakeBackend) Collection(path []string) store.Query {
	return &fakeQuery{docs: b.docs[strings.Join(path, "/")]}
}

func (b *fakeBackend) CollectionGroup(id string) store.Query {
	return &fakeQuery{docs: b.docs[id]}
}

// sliceOp is a bare in-memory Operator over a fixed row slice, used to
// unit-test join/sort/union operators without a backend.
type sliceOp struct {
	rows  []store.Row
	order []plan.OrderSpec
	i     int
}

func (s *sliceOp) Next(ctx context.Context) (store.Row, bool, error) {
	if s.i >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.i]
	s.i++
	return row, true, nil
}

func (s *sliceOp) SortOrder() []plan.OrderSpec { return s.order }

func scanCollection(name string) plan.Collection {
	return plan.Collection{Path: []plan.Segment{{Literal: name}}}
}
