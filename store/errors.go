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
	"fmt"

	"github.com/fenwickdata/docql/plan"
)

// BackendError wraps a Backend-raised error with its collection path
// and, for an error raised when the query is issued, the scan's base
// constraints as prepared (before parameter resolution, without extra
// lookup constraints). An error raised while iterating carries no
// constraints.
type BackendError struct {
	Collection  string
	Constraints []plan.Constraint
	Err         error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("store: backend error querying %s (constraints=%v): %v", e.Collection, e.Constraints, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
