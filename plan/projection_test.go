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

import (
	"testing"

	"github.com/fenwickdata/docql/expr"
)

func TestNewProjectionRequiresFrom(t *testing.T) {
	if _, err := NewProjection("q", nil); err == nil {
		t.Fatalf("expected an error for an empty `from`")
	}
}

func TestNewProjectionRejectsUndeclaredAliasInSelect(t *testing.T) {
	from := map[string]Collection{"o": collection("orders")}
	_, err := NewProjection("q", from, WithSelect(map[string]expr.Node{
		"status": expr.Field("x.status"),
	}))
	if err == nil {
		t.Fatalf("expected an error for a select referencing an undeclared alias")
	}
}

func TestNewProjectionRejectsUndeclaredAliasInWhere(t *testing.T) {
	from := map[string]Collection{"o": collection("orders")}
	_, err := NewProjection("q", from, WithWhere(expr.Eq(expr.Field("x.status"), expr.String("open"))))
	if err == nil {
		t.Fatalf("expected an error for a where clause referencing an undeclared alias")
	}
}

func TestNewProjectionRejectsUndeclaredAliasInCorrelatedPath(t *testing.T) {
	from := map[string]Collection{
		"o": collection("orders"),
		"i": {Path: parseSegments("orders/{x.id}/items")},
	}
	_, err := NewProjection("q", from)
	if err == nil {
		t.Fatalf("expected an error for a correlated collection path referencing an undeclared alias")
	}
}

func TestNewProjectionAccepts(t *testing.T) {
	from := map[string]Collection{"o": collection("orders")}
	proj, err := NewProjection("q", from,
		WithSelect(map[string]expr.Node{"status": expr.Field("o.status")}),
		WithWhere(expr.Eq(expr.Field("o.status"), expr.String("open"))),
		WithLimit(10),
	)
	if err != nil {
		t.Fatalf("NewProjection: %v", err)
	}
	if proj.aliases()[0] != "o" {
		t.Fatalf("expected alias list [o], got %v", proj.aliases())
	}
}

func TestParseSegmentsCorrelatedRef(t *testing.T) {
	segs := parseSegments("orders/{o.id}/items")
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	if segs[1].Ref == nil || segs[1].Ref.SourceAlias != "o" || segs[1].Ref.String() != "o.id" {
		t.Fatalf("expected segment 1 to be a correlated FieldRef o.id, got %+v", segs[1])
	}
	if segs[0].Literal != "orders" || segs[2].Literal != "items" {
		t.Fatalf("expected literal segments orders/items, got %+v / %+v", segs[0], segs[2])
	}
}
