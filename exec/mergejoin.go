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

// MergeJoinOp buffers both sides (sorting whichever one doesn't already
// advertise the join key as its sort order) and emits, group by group,
// the cross-product of each maximal run of equal left keys against the
// matching slice of the right buffer (§4.5). Like HashJoin, the
// planner only selects Merge for a bare field-vs-field Comparison, so
// Condition is always exactly one *expr.Comparison.
type MergeJoinOp struct {
	leftField, rightField *expr.FieldRef
	op                    expr.CmpOp
	leftRows, rightRows   []store.Row

	li                   int // start of the next ungrouped left row
	groupStart, groupEnd int
	rangeStart, rangeEnd int
	curLeft, curRight    int
}

// newMergeJoinOp drains and (if needed) sorts both sides, then returns
// an operator ready to stream the group-by-group cross-product.
func newMergeJoinOp(ctx context.Context, left, right Operator, cond *expr.Comparison, leftAliases map[string]bool) (*MergeJoinOp, error) {
	leftField, rightField, err := splitJoinFields(cond, leftAliases)
	if err != nil {
		return nil, &plan.InvalidPlanError{Msg: err.Error()}
	}

	leftRows, err := drainAll(ctx, left)
	if c, ok := left.(Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return nil, err
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
	if !sortOrderMatches(left.SortOrder(), leftField) {
		sortRowsByField(leftRows, leftField)
	}
	if !sortOrderMatches(right.SortOrder(), rightField) {
		sortRowsByField(rightRows, rightField)
	}

	return &MergeJoinOp{
		leftField:  leftField,
		rightField: rightField,
		op:         cond.Op,
		leftRows:   leftRows,
		rightRows:  rightRows,
	}, nil
}

func sortOrderMatches(order []plan.OrderSpec, field *expr.FieldRef) bool {
	return len(order) > 0 && !order[0].Desc && order[0].Field.String() == field.String()
}

func sortRowsByField(rows []store.Row, field *expr.FieldRef) {
	sort.SliceStable(rows, func(i, j int) bool {
		cmp, ok := expr.CompareValues(fieldValue(rows[i], field), fieldValue(rows[j], field))
		return ok && cmp < 0
	})
}

// Next implements Operator: lazily walks the current group's
// cross-product before computing the next group, so no more than one
// group's combinations are ever materialized at once (§4.5's streaming
// philosophy applied within the buffered join).
func (m *MergeJoinOp) Next(ctx context.Context) (store.Row, bool, error) {
	for {
		if m.curLeft < m.groupEnd {
			if m.curRight < m.rangeEnd {
				row := mergeRows(m.leftRows[m.curLeft], m.rightRows[m.curRight])
				m.curRight++
				return row, true, nil
			}
			m.curRight = m.rangeStart
			m.curLeft++
			continue
		}
		if m.li >= len(m.leftRows) {
			return nil, false, nil
		}
		m.startNextGroup()
	}
}

// startNextGroup finds the next maximal run of equal left keys and the
// matching right-buffer range (§4.5's idx_ge/idx_gt table).
func (m *MergeJoinOp) startNextGroup() {
	m.groupStart = m.li
	v := fieldValue(m.leftRows[m.groupStart], m.leftField)
	j := m.groupStart + 1
	for j < len(m.leftRows) && scalarEqual(fieldValue(m.leftRows[j], m.leftField), v) {
		j++
	}
	m.groupEnd = j
	m.li = j

	idxGe := sort.Search(len(m.rightRows), func(i int) bool {
		cmp, ok := expr.CompareValues(fieldValue(m.rightRows[i], m.rightField), v)
		return ok && cmp >= 0
	})
	idxGt := sort.Search(len(m.rightRows), func(i int) bool {
		cmp, ok := expr.CompareValues(fieldValue(m.rightRows[i], m.rightField), v)
		return ok && cmp > 0
	})

	switch m.op {
	case expr.CmpEq:
		m.rangeStart, m.rangeEnd = idxGe, idxGt
	case expr.CmpLt:
		m.rangeStart, m.rangeEnd = idxGt, len(m.rightRows)
	case expr.CmpLe:
		m.rangeStart, m.rangeEnd = idxGe, len(m.rightRows)
	case expr.CmpGt:
		m.rangeStart, m.rangeEnd = 0, idxGe
	default: // expr.CmpGe
		m.rangeStart, m.rangeEnd = 0, idxGt
	}
	m.curLeft = m.groupStart
	m.curRight = m.rangeStart
}

// SortOrder implements Operator: MergeJoin advertises the left join
// field, ASC (§4.5).
func (m *MergeJoinOp) SortOrder() []plan.OrderSpec {
	return []plan.OrderSpec{{Field: m.leftField, Desc: false}}
}
