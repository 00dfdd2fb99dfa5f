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

func TestSplitRoutesByAliasCount(t *testing.T) {
	aliases := map[string]bool{"o": true, "c": true}
	pred := expr.And(
		expr.Eq(expr.Field("o.status"), expr.String("open")),
		expr.Eq(expr.Field("c.region"), expr.String("us")),
		expr.Eq(expr.Field("o.customerId"), expr.Field("c.#id")),
		expr.True(),
	)

	res, err := Split(pred, aliases)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(res.PerSource["o"].(*expr.Comparison).Left.(*expr.FieldRef).Path) == 0 {
		t.Fatalf("expected o's per-source predicate to retain its field path")
	}
	if _, ok := res.PerSource["c"]; !ok {
		t.Fatalf("expected a per-source predicate for alias c")
	}
	if len(res.Joins) != 1 {
		t.Fatalf("expected exactly one join predicate, got %d", len(res.Joins))
	}
	if _, ok := res.Joins[JoinKey{Left: "c", Right: "o"}]; !ok {
		t.Fatalf("expected join keyed by sorted alias pair {c,o}")
	}
	if res.Residual != nil {
		t.Fatalf("expected no residual, got %v", res.Residual)
	}
}

func TestSplitRejectsUndeclaredAlias(t *testing.T) {
	aliases := map[string]bool{"o": true}
	pred := expr.Eq(expr.Field("x.status"), expr.String("open"))
	if _, err := Split(pred, aliases); err == nil {
		t.Fatalf("expected an error for a predicate referencing an undeclared alias")
	}
}

func TestSplitThreeAliasConjunctGoesToResidual(t *testing.T) {
	aliases := map[string]bool{"a": true, "b": true, "c": true}
	sum := expr.ApplyList(expr.ExpressionList{expr.Field("a.x"), expr.Field("b.y")}, nil, "add")
	three := expr.Eq(sum, expr.Field("c.z"))

	res, err := Split(expr.And(three, expr.Eq(expr.Field("c.z"), expr.Number(1))), aliases)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if res.Residual == nil {
		t.Fatalf("expected the 3-alias atom to land in Residual")
	}
	if len(expr.AliasesInPredicate(res.Residual)) != 3 {
		t.Fatalf("expected the residual to still mention all 3 aliases, got %v", res.Residual)
	}
	if _, ok := res.PerSource["c"]; !ok {
		t.Fatalf("expected alias c's standalone equality to be per-source")
	}
}
