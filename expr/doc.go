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

// Package expr implements the expression and predicate algebra that the
// planner and operators compile, split and simplify: field references,
// literals, parameters and opaque function calls as Expressions, and
// boolean combinations of comparisons as Predicates.
//
// Everything in this package is pure and immutable; nodes carry no I/O
// and Equals/Walk/Rewrite/Simplify never touch a backend.
package expr
