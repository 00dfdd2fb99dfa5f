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

import "testing"

func TestNewEntityNoParentUnderThreeSegments(t *testing.T) {
	e := newEntity("orders/doc1", map[string]any{"status": "open"})
	if e.ID != "doc1" || e.Collection != "orders" {
		t.Fatalf("expected id=doc1 collection=orders, got %+v", e)
	}
	if e.Parent != nil {
		t.Fatalf("expected no parent for a 2-segment path, got %+v", e.Parent)
	}
}

func TestNewEntityParentStripsTwoSegments(t *testing.T) {
	e := newEntity("orders/doc1/items/item1", map[string]any{"qty": 2.0})
	if e.ID != "item1" || e.Collection != "items" {
		t.Fatalf("expected id=item1 collection=items, got %+v", e)
	}
	if e.Parent == nil {
		t.Fatalf("expected a parent for a 4-segment path")
	}
	if e.Parent.ID != "doc1" || e.Parent.Collection != "orders" || e.Parent.Path != "orders/doc1" {
		t.Fatalf("expected parent id=doc1 collection=orders path=orders/doc1, got %+v", e.Parent)
	}
	if e.Parent.Fields != nil {
		t.Fatalf("expected a parent entity to carry no fetched fields, got %+v", e.Parent.Fields)
	}
	if e.Parent.Parent != nil {
		t.Fatalf("expected the grandparent's own parent to be nil (only 2 segments left)")
	}
}

func TestRowFieldMetadataAndNested(t *testing.T) {
	row := Row{"o": newEntity("orders/doc1/items/item1", map[string]any{
		"address": map[string]any{"city": "nyc"},
	})}

	cases := []struct {
		path []string
		want any
		ok   bool
	}{
		{[]string{"#id"}, "item1", true},
		{[]string{"#path"}, "orders/doc1/items/item1", true},
		{[]string{"#collection"}, "items", true},
		{[]string{"address", "city"}, "nyc", true},
		{[]string{"missingField"}, nil, false},
	}
	for _, c := range cases {
		got, ok := row.Field("o", c.path)
		if ok != c.ok || got != c.want {
			t.Fatalf("Field(%v) = (%v, %v), want (%v, %v)", c.path, got, ok, c.want, c.ok)
		}
	}

	parentID, ok := row.Field("o", []string{"#parent", "#id"})
	if !ok || parentID != "doc1" {
		t.Fatalf("expected #parent.#id = doc1, got (%v, %v)", parentID, ok)
	}

	topLevelRow := Row{"o": newEntity("orders/doc1", map[string]any{"status": "open"})}
	noParent, ok := topLevelRow.Field("o", []string{"#parent"})
	if !ok || noParent != nil {
		t.Fatalf("expected a present-but-null #parent for a 2-segment path, got (%v, %v)", noParent, ok)
	}
	noParentID, ok := topLevelRow.Field("o", []string{"#parent", "#id"})
	if !ok || noParentID != nil {
		t.Fatalf("expected #parent.#id to short-circuit to null when there is no parent, got (%v, %v)", noParentID, ok)
	}
}

func TestRowFieldUnknownAlias(t *testing.T) {
	row := Row{"o": newEntity("orders/doc1", nil)}
	if _, ok := row.Field("x", []string{"status"}); ok {
		t.Fatalf("expected ok=false for an alias not present in the row")
	}
}
