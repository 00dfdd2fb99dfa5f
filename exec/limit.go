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

// LimitOp skips Offset rows of Source then emits up to Limit rows,
// preserving Source's sort order (§4.5).
type LimitOp struct {
	Source Operator
	Limit  int
	Offset int

	skipped bool
	emitted int
}

// Next implements Operator.
func (l *LimitOp) Next(ctx context.Context) (store.Row, bool, error) {
	if !l.skipped {
		for i := 0; i < l.Offset; i++ {
			_, ok, err := l.Source.Next(ctx)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				break
			}
		}
		l.skipped = true
	}
	if l.emitted >= l.Limit {
		return nil, false, nil
	}
	row, ok, err := l.Source.Next(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	l.emitted++
	return row, true, nil
}

// SortOrder implements Operator.
func (l *LimitOp) SortOrder() []plan.OrderSpec { return l.Source.SortOrder() }

// Close releases Source's resources, if any.
func (l *LimitOp) Close() error {
	if c, ok := l.Source.(Closer); ok {
		return c.Close()
	}
	return nil
}
