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

// FilterOp re-evaluates Predicate on every row of Source, discarding
// failures, and preserves Source's advertised sort order (§4.5). A
// FILTER directly over a SCAN never reaches this type — the executor
// routes that shape to store.Prepare as a single leaf (§4.6) — so
// FilterOp only wraps a non-Scan Source (e.g. a residual filter above a
// Join).
type FilterOp struct {
	Source    Operator
	Predicate expr.Predicate
	Params    map[string]any
}

// Next implements Operator.
func (f *FilterOp) Next(ctx context.Context) (store.Row, bool, error) {
	for {
		row, ok, err := f.Source.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		pass, err := expr.EvalPredicate(f.Predicate, &rowEnv{row: row, params: f.Params})
		if err != nil {
			return nil, false, err
		}
		if pass {
			return row, true, nil
		}
	}
}

// SortOrder implements Operator.
func (f *FilterOp) SortOrder() []plan.OrderSpec { return f.Source.SortOrder() }

// Close releases Source's resources, if any.
func (f *FilterOp) Close() error {
	if c, ok := f.Source.(Closer); ok {
		return c.Close()
	}
	return nil
}
