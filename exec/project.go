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
	"github.com/fenwickdata/docql/expr"
	"github.com/fenwickdata/docql/store"
)

// Project never becomes a pull-chain Operator: §4.4's "select/orderBy/
// where may reference any alias" means ORDER BY and LIMIT must still
// see every aliased field, not just the ones named in select, even
// though planner.go nests them as Sort{Source: Project{...}} /
// Limit{Source: Sort{...}} when the sort can't be pushed to a scan.
// build() therefore unwraps a *plan.Project transparently — it records
// Fields and keeps building from Project's own Source, so Sort/Limit
// continue to operate on full store.Row values. Execute applies
// projectRow exactly once, as the final materialization step.

// projectRow evaluates fields against row, producing the flat,
// output-key-named row a Project node describes (§4.5: "Evaluates each
// output-key expression; outputs a flat row keyed by output names, not
// by alias").
func projectRow(row store.Row, fields map[string]expr.Node, params map[string]any) (map[string]any, error) {
	env := &rowEnv{row: row, params: params}
	out := make(map[string]any, len(fields))
	for name, e := range fields {
		v, err := expr.Eval(e, env)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// defaultFlatten builds the fallback output shape for a projection
// with no select map: one entry per alias, holding that entity's
// fields verbatim.
func defaultFlatten(row store.Row) map[string]any {
	out := make(map[string]any, len(row))
	for alias, e := range row {
		if e == nil {
			continue
		}
		out[alias] = e.Fields
	}
	return out
}
