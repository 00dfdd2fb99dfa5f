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

	"github.com/fenwickdata/docql/index"
)

// TestScanCostPartialScoreMatchesSpecFormula checks §4.4's stated
// partial-match formula max(1, 10-matched) + 5, including above the
// matched=10 point where a naive max(1, 15-matched) would diverge.
func TestScanCostPartialScoreMatchesSpecFormula(t *testing.T) {
	cases := []struct {
		matched int
		want    int
	}{
		{matched: 0, want: 15},
		{matched: 3, want: 12},
		{matched: 9, want: 6},
		{matched: 10, want: 6},
		{matched: 14, want: 6},
		{matched: 20, want: 6},
	}
	for _, c := range cases {
		got := scanCost{kind: index.Partial, matched: c.matched}.score()
		if got != c.want {
			t.Fatalf("matched=%d: got score %d, want %d", c.matched, got, c.want)
		}
	}
}

func TestScanCostExactAndNoneScores(t *testing.T) {
	if got := (scanCost{kind: index.Exact}).score(); got != 1 {
		t.Fatalf("expected exact-match score 1, got %d", got)
	}
	if got := (scanCost{kind: index.NoMatch}).score(); got != 1000 {
		t.Fatalf("expected no-match score 1000, got %d", got)
	}
	if got := (scanCost{kind: index.NoMatch, nonIndexableAtoms: 2}).score(); got != 1200 {
		t.Fatalf("expected no-match score plus 2*100 residual penalty, got %d", got)
	}
}
