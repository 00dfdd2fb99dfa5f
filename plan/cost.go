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

import "github.com/fenwickdata/docql/index"

// scanCost records the index-match outcome and residual-filter count
// for one SCAN, the unit the §4.4 scoring formula sums over.
type scanCost struct {
	kind              index.MatchKind
	matched           int
	nonIndexableAtoms int
}

// score returns this scan's contribution to a plan's total cost
// (§4.4's "Scoring" paragraph): 1 for an exact index match,
// max(1, 10-matched) + 5 for partial, 1000 for none, plus 100 per
// residual (non-indexable) conjunct.
func (c scanCost) score() int {
	base := 1000
	switch c.kind {
	case index.Exact:
		base = 1
	case index.Partial:
		partial := 10 - c.matched
		if partial < 1 {
			partial = 1
		}
		base = partial + 5
	}
	return base + 100*c.nonIndexableAtoms
}

// totalScore sums per-scan scores across a candidate plan. Lower is
// better; ties prefer fewer scans (§4.4).
func totalScore(costs []scanCost) (score int, numScans int) {
	for _, c := range costs {
		score += c.score()
	}
	return score, len(costs)
}

// cheaper reports whether (scoreA, scansA) beats (scoreB, scansB)
// under §4.4's ordering: lower total score wins; a tie prefers fewer
// scans.
func cheaper(scoreA, scansA, scoreB, scansB int) bool {
	if scoreA != scoreB {
		return scoreA < scoreB
	}
	return scansA < scansB
}
