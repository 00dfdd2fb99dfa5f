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

package plan

import "fmt"

// InvalidInputError is returned when a Projection itself is malformed:
// an empty `from`, a FieldRef to an undeclared alias, or (from the
// splitter, §4.3) a predicate atom mentioning an unknown alias.
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("plan: invalid input: %s", e.Msg)
}

// InvalidPlanError is returned when a requested plan shape cannot be
// realized against the backend's legality rules (§4.4) — e.g. more
// than one inequality field on a single scan, a user `join` hint
// incompatible with the join condition, or a where clause that
// expr.Simplify rejects (an array-contains-any list holding a FieldRef
// element).
type InvalidPlanError struct {
	Msg string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("plan: invalid plan: %s", e.Msg)
}

// UnsupportedError is returned for constructs that are recognized but
// deliberately not implemented: a plan shape the store adapter cannot
// prepare (anything but SCAN or FILTER→SCAN), or an AGGREGATE node
// reaching the executor.
type UnsupportedError struct {
	Msg string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("plan: unsupported: %s", e.Msg)
}
