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

package expr

// Backend membership-list cardinality caps (§4.1, §6, GLOSSARY). These
// values are Firestore's own limits; Simplify enforces them by splitting
// oversized lists and by merging OR'd lists only while they fit.
const (
	capIn               = 30
	capNotIn            = 30
	capArrayContainsAny = 10
)

// FirestoreInMax is the maximum number of unique keys the
// indexed-nested-loop join operator batches into a single backend
// lookup (§4.5, §5) — a separate, smaller cap than the IN-list
// cardinality caps above.
const FirestoreInMax = 10
