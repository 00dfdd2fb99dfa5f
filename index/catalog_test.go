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

package index

import "testing"

func ordersCatalog() *Catalog {
	return NewCatalog([]Index{
		{
			CollectionID: "orders",
			Scope:        Collection,
			Fields: []Field{
				{Path: "status", Mode: ASC},
				{Path: "createdAt", Mode: DESC},
			},
		},
		{
			CollectionID: "orders",
			Scope:        Collection,
			Fields: []Field{
				{Path: "status", Mode: ASC},
				{Path: "total", Mode: ASC},
			},
		},
		{
			CollectionID: "orders",
			Scope:        CollectionGroup,
			Fields: []Field{
				{Path: "status", Mode: ASC},
			},
		},
	})
}

func TestMatchExactEqualityPlusSort(t *testing.T) {
	cat := ordersCatalog()
	m := cat.Match("orders", false,
		[]Constraint{{FieldPath: "status", Kind: EqualityLike}},
		&SortKey{FieldPath: "createdAt", Desc: true},
	)
	if m.Kind != Exact {
		t.Fatalf("expected Exact, got %s (matched=%d)", m.Kind, m.Matched)
	}
	if m.Matched != 2 {
		t.Fatalf("expected matched=2, got %d", m.Matched)
	}
}

func TestMatchExactEqualityPlusInequality(t *testing.T) {
	cat := ordersCatalog()
	m := cat.Match("orders", false, []Constraint{
		{FieldPath: "status", Kind: EqualityLike},
		{FieldPath: "total", Kind: InequalityLike},
	}, nil)
	if m.Kind != Exact {
		t.Fatalf("expected Exact, got %s", m.Kind)
	}
}

func TestMatchPartialWhenSortDirectionWrong(t *testing.T) {
	cat := ordersCatalog()
	m := cat.Match("orders", false,
		[]Constraint{{FieldPath: "status", Kind: EqualityLike}},
		&SortKey{FieldPath: "createdAt", Desc: false},
	)
	if m.Kind != Partial {
		t.Fatalf("expected Partial, got %s", m.Kind)
	}
}

func TestMatchNoneForUnindexedField(t *testing.T) {
	cat := ordersCatalog()
	m := cat.Match("orders", false, []Constraint{{FieldPath: "customerId", Kind: EqualityLike}}, nil)
	if m.Kind != NoMatch {
		t.Fatalf("expected NoMatch, got %s", m.Kind)
	}
}

func TestMatchRespectsCollectionGroupScope(t *testing.T) {
	cat := ordersCatalog()
	m := cat.Match("orders", true, []Constraint{{FieldPath: "status", Kind: EqualityLike}}, nil)
	if m.Kind != Exact {
		t.Fatalf("expected the collection-group index to match exactly, got %s", m.Kind)
	}
	m = cat.Match("orders", true, []Constraint{
		{FieldPath: "status", Kind: EqualityLike},
		{FieldPath: "total", Kind: InequalityLike},
	}, nil)
	if m.Kind != Partial {
		t.Fatalf("expected the single-field group index to only partially match, got %s", m.Kind)
	}
}

func TestMatchPrefersExactOverPartial(t *testing.T) {
	cat := NewCatalog([]Index{
		{CollectionID: "c", Scope: Collection, Fields: []Field{{Path: "a", Mode: ASC}}},
		{CollectionID: "c", Scope: Collection, Fields: []Field{
			{Path: "a", Mode: ASC}, {Path: "b", Mode: ASC}, {Path: "z", Mode: ASC},
		}},
	})
	m := cat.Match("c", false, []Constraint{
		{FieldPath: "a", Kind: EqualityLike},
		{FieldPath: "b", Kind: EqualityLike},
	}, nil)
	if m.Kind != Exact || m.Matched != 2 {
		t.Fatalf("expected the 3-field index's exact match to win over the 1-field index's partial match, got %s matched=%d", m.Kind, m.Matched)
	}
}

func TestLoadManifestMapping(t *testing.T) {
	m := Manifest{Indexes: []ManifestIndex{
		{
			CollectionGroup: "orders",
			QueryScope:      "COLLECTION_GROUP",
			Fields: []ManifestField{
				{FieldPath: "status"},
				{FieldPath: "createdAt", Order: "DESCENDING"},
				{FieldPath: "tags", ArrayConfig: "CONTAINS"},
			},
		},
	}}
	cat, err := LoadManifest(m)
	if err != nil {
		t.Fatal(err)
	}
	idxs := cat.byCollection["orders"]
	if len(idxs) != 1 {
		t.Fatalf("expected 1 index, got %d", len(idxs))
	}
	idx := idxs[0]
	if idx.Scope != CollectionGroup {
		t.Fatalf("expected CollectionGroup scope")
	}
	if idx.Fields[0].Mode != ASC || idx.Fields[1].Mode != DESC || idx.Fields[2].Mode != ArrayContainsMode {
		t.Fatalf("got unexpected field modes: %+v", idx.Fields)
	}
}

func TestLoadManifestUnsupportedScope(t *testing.T) {
	m := Manifest{Indexes: []ManifestIndex{{CollectionGroup: "orders", QueryScope: "BOGUS"}}}
	if _, err := LoadManifest(m); err == nil {
		t.Fatalf("expected an UnsupportedManifestError")
	}
}
