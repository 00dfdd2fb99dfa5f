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

// Package exec is the pull-based operator runtime (§4.5) and the
// executor (§4.7) that drives a plan.Op tree to completion against a
// store.Backend, single-threaded and cooperative (§5).
package exec

import (
	"context"

	"github.com/fenwickdata/docql/plan"
	"github.com/fenwickdata/docql/store"
)

// Operator is the runtime contract every physical-plan node compiles
// to (§4.5): `next()` is a lazy, single-consumer pull with a sticky
// EOF; `sort_order()` advertises the stream's ordering (nil when none
// is known) so MergeJoin eligibility and top-level result ordering can
// be checked without re-deriving it.
//
// Project is the one plan node with no Operator of its own: §4.4
// lets ORDER BY and LIMIT reference any alias, not just the ones a
// select map names, so Sort/Limit must still see full store.Row
// values even when planner.go nests them as Sort{Source: Project{...}}.
// Executor.build unwraps *plan.Project transparently — it records
// Fields and keeps building from Project's Source — and Execute
// applies projectRow exactly once, as the final materialization step
// (DESIGN.md's "Sort/Limit placement relative to Project" decision).
type Operator interface {
	Next(ctx context.Context) (store.Row, bool, error)
	SortOrder() []plan.OrderSpec
}

// Close releases any resources an Operator holds (store cursors,
// buffers). Only operators that hold closeable state implement it;
// Executor.Execute calls it via a type assertion on the root operator it
// built, and each operator's Close releases the inputs it still holds,
// satisfying §5's cancellation contract (dropping the consumer releases
// cursors).
type Closer interface {
	Close() error
}

// rowEnv satisfies expr.Env by pairing one execution row with the
// caller's parameter bindings, mirroring store.bindEnv (unexported
// there) for the operators that evaluate expressions over rows already
// constructed by the store adapter.
type rowEnv struct {
	row    store.Row
	params map[string]any
}

func (e *rowEnv) Field(alias string, path []string) (any, bool) {
	if e.row == nil {
		return nil, false
	}
	return e.row.Field(alias, path)
}

func (e *rowEnv) Param(name string) (any, bool) {
	v, ok := e.params[name]
	return v, ok
}
