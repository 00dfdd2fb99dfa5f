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
	"context"

	"github.com/fenwickdata/docql/expr"
)

// Document is a single raw document snapshot streamed back by a Backend
// query: its full path (slash-separated, document-id-terminated) and
// its field values (§4.6, §6).
type Document struct {
	Path   string
	Fields map[string]any
}

// DocumentIterator is the async sequence a Query.Stream returns (§6's
// `stream()`). Next reports io.EOF-like exhaustion via ok=false with a
// nil error; any non-nil error aborts the scan with a BackendError.
type DocumentIterator interface {
	Next(ctx context.Context) (doc Document, ok bool, err error)
	Close() error
}

// Query is a single collection (or collection-group) query under
// construction, mirroring the backend query surface of §6: chained
// `where`/`orderBy`/`limit`/`offset`, terminated by `stream()`.
//
// Implementations are expected to be immutable-builder style — each
// method returns a (possibly new) Query — so the adapter can build a
// query incrementally without aliasing a shared mutable builder across
// cursor creations of the same prepared scan.
type Query interface {
	// Where adds a backend-pushed constraint. op is one of the ten
	// CmpOp values (§3); value is a scalar for every op except
	// in/not-in/array-contains-any, which take a []any.
	Where(fieldPath string, op expr.CmpOp, value any) Query

	// OrderBy appends a sort key.
	OrderBy(fieldPath string, desc bool) Query

	// Limit caps the number of documents streamed back.
	Limit(n int) Query

	// Offset skips the first n matching documents.
	Offset(n int) Query

	// Stream executes the query and returns a document iterator.
	Stream(ctx context.Context) (DocumentIterator, error)
}

// Backend is the external collaborator the store adapter compiles
// prepared scans against (§4.6, §6). It is supplied by the caller; the
// core never implements it.
type Backend interface {
	// Collection returns a query rooted at the single collection
	// identified by path (document/collection path segments, already
	// resolved — no correlated refs).
	Collection(path []string) Query

	// CollectionGroup returns a query over every collection named
	// collectionID at any depth (§3, §6).
	CollectionGroup(collectionID string) Query
}
