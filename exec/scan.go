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

	"github.com/fenwickdata/docql/plan"
	"github.com/fenwickdata/docql/store"
)

// ScanOp instantiates a store-adapter cursor at construction time
// (§4.5's "Scan. Instantiates a store-adapter cursor") and streams its
// rows, advertising whatever ordering the underlying Scan node carries.
type ScanOp struct {
	cur     *store.Cursor
	orderBy []plan.OrderSpec
}

// newScanOp prepares and opens ps. outerRow is non-nil only when ps's
// Collection has a correlated segment (a sub-collection path like
// `customers/{c.id}/orders`) driven by an enclosing row; extraWhere
// carries indexed-nested-loop's per-batch/per-row lookup constraints.
func newScanOp(
	ctx context.Context,
	ps *store.PreparedScan,
	backend store.Backend,
	outerRow store.Row,
	params map[string]any,
	extraWhere []plan.Constraint,
	orderBy []plan.OrderSpec,
	limit, offset *int,
) (*ScanOp, error) {
	cur, err := ps.Open(ctx, backend, outerRow, params, extraWhere, orderBy, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ScanOp{cur: cur, orderBy: orderBy}, nil
}

// Next implements Operator.
func (s *ScanOp) Next(ctx context.Context) (store.Row, bool, error) { return s.cur.Next(ctx) }

// SortOrder implements Operator.
func (s *ScanOp) SortOrder() []plan.OrderSpec { return s.orderBy }

// Close implements Closer.
func (s *ScanOp) Close() error { return s.cur.Close() }
