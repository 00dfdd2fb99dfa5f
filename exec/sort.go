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

	"github.com/fenwickdata/docql/expr"
	"github.com/fenwickdata/docql/plan"
	"github.com/fenwickdata/docql/store"
)

// SortOp buffers all of Source, then emits it ordered by OrderBy
// (§4.5): Missing/null sorts before every value, `desc` flips the
// comparison. It is one of the operators §5 allows O(input) memory;
// the buffer/sort happens once, eagerly, at construction (newSortOp),
// not lazily inside Next.
type SortOp struct {
	OrderBy []plan.OrderSpec

	rows []store.Row
	i    int
}

// Next implements Operator.
func (s *SortOp) Next(ctx context.Context) (store.Row, bool, error) {
	if s.i >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.i]
	s.i++
	return row, true, nil
}

// SortOrder implements Operator.
func (s *SortOp) SortOrder() []plan.OrderSpec { return s.OrderBy }

// newSortOp drains src eagerly and sorts it by orderBy (§4.5's "buffers
// all input").
func newSortOp(ctx context.Context, src Operator, orderBy []plan.OrderSpec) (*SortOp, error) {
	rows, err := drainAll(ctx, src)
	if c, ok := src.(Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return nil, err
	}
	less := sortLess(orderBy)
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	return &SortOp{OrderBy: orderBy, rows: rows}, nil
}

func sortLess(orderBy []plan.OrderSpec) func(a, b store.Row) bool {
	return func(a, b store.Row) bool {
		for _, o := range orderBy {
			av := fieldValue(a, o.Field)
			bv := fieldValue(b, o.Field)
			cmp, ok := expr.CompareValues(av, bv)
			if !ok {
				// null against a present non-null value: null first.
				an, bn := av == nil, bv == nil
				if an == bn {
					continue
				}
				cmp = 1
				if an {
					cmp = -1
				}
			}
			if cmp == 0 {
				continue
			}
			if o.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	}
}
