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
	"sort"
	"strings"

	"github.com/fenwickdata/docql/expr"
	"github.com/fenwickdata/docql/index"
)

// Options configures optional planner passes (§9).
type Options struct {
	// EnableLikePrefixRange turns a LIKE CUSTOM predicate whose pattern
	// has no wildcard before its first `%`/`_` into a pushable
	// `>= prefix AND < prefix-incremented` range pair pushed down as
	// Constraints on the scan, consulted by buildScan. The original LIKE
	// predicate is still kept as a residual post-filter, since the range
	// is a necessary but not always sufficient condition. Disabled by
	// default, matching §9's "optional, not required" framing.
	EnableLikePrefixRange bool
}

// Planner compiles Projections into physical plan trees against a
// fixed index Catalog (§4.4). A Planner is not safe for concurrent use
// by multiple goroutines — Plan uses per-call scratch fields to track
// whether orderBy/limit were already pushed onto a scan; serialize
// calls to Plan, or use one Planner per goroutine.
type Planner struct {
	Catalog *index.Catalog
	Options Options

	orderByPushed bool
	limitPushed   bool
}

// NewPlanner builds a Planner bound to catalog.
func NewPlanner(catalog *index.Catalog, opts Options) *Planner {
	return &Planner{Catalog: catalog, Options: opts}
}

// Plan compiles proj into a physical plan tree per §4.4: a PROJECT over
// the scans/joins when the projection has a select map, wrapped by
// SORT/LIMIT when the projection requests them and they were not pushed
// onto the scan.
func (pl *Planner) Plan(proj *Projection) (Op, error) {
	pl.orderByPushed, pl.limitPushed = false, false
	if err := proj.Validate(); err != nil {
		return nil, err
	}
	aliasSet := map[string]bool{}
	for _, a := range proj.aliases() {
		aliasSet[a] = true
	}

	where := proj.Where
	if where == nil {
		where = expr.True()
	}
	normalized, err := expr.Simplify(where)
	if err != nil {
		return nil, &InvalidPlanError{Msg: err.Error()}
	}
	if proj.Hints.PredicateMode == AutoPredicate {
		normalized, err = expr.DNF(normalized)
		if err != nil {
			return nil, err
		}
	}

	root, costs, err := pl.planPredicate(normalized, proj, aliasSet)
	if err != nil {
		return nil, err
	}
	_ = costs

	if len(aliasSet) == 1 && len(expr.Disjuncts(normalized)) > 1 {
		// Each OR branch was planned as its own lone scan, but the
		// branches are interleaved by a UNION or re-checked by an OR
		// filter above the scan, so an orderBy/limit/offset pushed onto
		// those scans does not hold for the whole result: clear them and
		// let the SORT/LIMIT nodes below realize them.
		var unpush func(Op)
		unpush = func(op Op) {
			if s, ok := op.(*Scan); ok {
				s.OrderBy, s.Limit, s.Offset = nil, nil, nil
			}
			for _, c := range op.Children() {
				unpush(c)
			}
		}
		unpush(root)
		pl.orderByPushed, pl.limitPushed = false, false
	}

	if proj.Select != nil {
		root = &Project{Nonterminal: Nonterminal{Source: root}, Fields: proj.Select}
	}
	if len(proj.OrderBy) > 0 && !pl.orderByPushed {
		root = &Sort{Nonterminal: Nonterminal{Source: root}, OrderBy: proj.OrderBy}
	}
	if (proj.Limit != nil || proj.Offset != nil) && !pl.limitPushed {
		lim := 0
		if proj.Limit != nil {
			lim = *proj.Limit
		}
		off := 0
		if proj.Offset != nil {
			off = *proj.Offset
		}
		root = &Limit{Nonterminal: Nonterminal{Source: root}, Limit: lim, Offset: off}
	}
	pl.orderByPushed = false
	pl.limitPushed = false
	return root, nil
}

// planPredicate implements §4.4 steps 2-6 for one normalized predicate
// (top-level OR handled per predicateOrMode), returning the built plan
// and the per-scan costs that went into it (§4.4 scoring).
func (pl *Planner) planPredicate(normalized expr.Predicate, proj *Projection, aliasSet map[string]bool) (Op, []scanCost, error) {
	disjuncts := expr.Disjuncts(normalized)
	if len(disjuncts) <= 1 {
		return pl.planConjunction(normalized, proj, aliasSet)
	}

	switch proj.Hints.PredicateOrMode {
	case Union:
		return pl.planUnion(disjuncts, proj, aliasSet)
	case SingleScan:
		return pl.planSingleScanOr(normalized, disjuncts, proj, aliasSet)
	default: // AutoOrMode
		unionOp, unionCosts, unionErr := pl.planUnion(disjuncts, proj, aliasSet)
		singleOp, singleCosts, singleErr := pl.planSingleScanOr(normalized, disjuncts, proj, aliasSet)
		switch {
		case unionErr != nil && singleErr != nil:
			return nil, nil, unionErr
		case unionErr != nil:
			return singleOp, singleCosts, nil
		case singleErr != nil:
			return unionOp, unionCosts, nil
		}
		us, un := totalScore(unionCosts)
		ss, sn := totalScore(singleCosts)
		if cheaper(ss, sn, us, un) {
			return singleOp, singleCosts, nil
		}
		return unionOp, unionCosts, nil
	}
}

func (pl *Planner) planUnion(disjuncts []expr.Predicate, proj *Projection, aliasSet map[string]bool) (Op, []scanCost, error) {
	inputs := make([]Op, len(disjuncts))
	var allCosts []scanCost
	for i, d := range disjuncts {
		op, costs, err := pl.planConjunction(d, proj, aliasSet)
		if err != nil {
			return nil, nil, err
		}
		inputs[i] = op
		allCosts = append(allCosts, costs...)
	}
	return &UnionOp{Inputs: inputs, Distinct: DocPathDistinct}, allCosts, nil
}

func (pl *Planner) planSingleScanOr(full expr.Predicate, disjuncts []expr.Predicate, proj *Projection, aliasSet map[string]bool) (Op, []scanCost, error) {
	common := commonConjuncts(disjuncts)
	var commonPred expr.Predicate = expr.True()
	for _, c := range common {
		commonPred = andInto(commonPred, c)
	}
	built, costs, err := pl.planConjunction(commonPred, proj, aliasSet)
	if err != nil {
		return nil, nil, err
	}
	return &Filter{Nonterminal: Nonterminal{Source: built}, Predicate: full}, costs, nil
}

// commonConjuncts returns the conjuncts shared by every disjunct
// (§4.4 step 2's single-scan mode).
func commonConjuncts(disjuncts []expr.Predicate) []expr.Predicate {
	if len(disjuncts) == 0 {
		return nil
	}
	base := expr.Conjuncts(disjuncts[0])
	var common []expr.Predicate
	for _, c := range base {
		inAll := true
		for _, d := range disjuncts[1:] {
			if !containsEqual(expr.Conjuncts(d), c) {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, c)
		}
	}
	return common
}

func containsEqual(list []expr.Predicate, p expr.Predicate) bool {
	for _, x := range list {
		if expr.EqualPredicate(x, p) {
			return true
		}
	}
	return false
}

// planConjunction implements §4.4 steps 3-6 for a single AND-shaped
// predicate: splits it across aliases, builds one SCAN per alias with
// lowered constraints, joins the scans, and pushes orderBy/limit where
// legal.
func (pl *Planner) planConjunction(pred expr.Predicate, proj *Projection, aliasSet map[string]bool) (Op, []scanCost, error) {
	split, err := Split(pred, aliasSet)
	if err != nil {
		return nil, nil, err
	}

	aliases := proj.aliases()
	ops := make(map[string]Op, len(aliases))
	var costs []scanCost
	for _, alias := range aliases {
		op, cost, err := pl.buildScan(alias, proj.From[alias], split.PerSource[alias], proj)
		if err != nil {
			return nil, nil, err
		}
		ops[alias] = op
		costs = append(costs, cost)
	}

	root, err := pl.buildJoins(aliases, ops, split.Joins, proj.Hints.Join)
	if err != nil {
		return nil, nil, err
	}

	if split.Residual != nil && !isTrueConst(split.Residual) {
		root = &Filter{Nonterminal: Nonterminal{Source: root}, Predicate: split.Residual}
	}

	if len(aliases) == 1 {
		pl.tryPushOrderAndLimit(root, alias0(aliases), proj)
	}

	return root, costs, nil
}

func alias0(aliases []string) string { return aliases[0] }

// buildScan builds a SCAN for alias, lowering every pushable COMPARISON
// in perSourcePred into a Constraint and wrapping any leftover atoms in
// a FILTER (§4.4 step 3).
func (pl *Planner) buildScan(alias string, coll Collection, perSourcePred expr.Predicate, proj *Projection) (Op, scanCost, error) {
	var constraints []Constraint
	var leftover expr.Predicate
	if perSourcePred != nil {
		for _, c := range expr.Conjuncts(perSourcePred) {
			if isTrueConst(c) {
				continue
			}
			cmp, ok := c.(*expr.Comparison)
			if ok {
				if fr, ok := cmp.Left.(*expr.FieldRef); ok && fr.SourceAlias == alias && isLowerable(cmp.Right) {
					constraints = append(constraints, Constraint{Field: fr, Op: cmp.Op, Value: cmp.Right})
					continue
				}
			}
			if pl.Options.EnableLikePrefixRange {
				if extra, ok := likePrefixConstraints(c, alias); ok {
					constraints = append(constraints, extra...)
				}
			}
			leftover = andInto(leftover, c)
		}
	}

	if err := checkScanLegality(alias, constraints); err != nil {
		return nil, scanCost{}, err
	}

	scan := &Scan{Collection: coll, Alias: alias, Constraints: constraints}

	matchConstraints := make([]index.Constraint, len(constraints))
	for i, c := range constraints {
		kind := index.InequalityLike
		if c.Op.IsEqualityLike() {
			kind = index.EqualityLike
		}
		matchConstraints[i] = index.Constraint{FieldPath: strings.Join(c.Field.Path, "."), Kind: kind}
	}
	collectionID := collectionIDOf(coll)
	match := pl.Catalog.Match(collectionID, coll.Group, matchConstraints, nil)

	nonIndexable := 0
	if leftover != nil {
		nonIndexable = len(expr.Conjuncts(leftover))
	}
	cost := scanCost{kind: match.Kind, matched: match.Matched, nonIndexableAtoms: nonIndexable}

	var op Op = scan
	if leftover != nil {
		op = &Filter{Nonterminal: Nonterminal{Source: scan}, Predicate: leftover}
	}
	return op, cost, nil
}

// collectionIDOf extracts the final literal path segment as the
// collection id a Catalog is keyed by (§3's path/§4.2's collection_id).
func collectionIDOf(c Collection) string {
	for i := len(c.Path) - 1; i >= 0; i-- {
		if c.Path[i].Ref == nil {
			return c.Path[i].Literal
		}
	}
	return ""
}

// isLowerable reports whether v (an expr.Node or expr.ExpressionList)
// contains no FieldRef — i.e. it resolves to a backend-compatible
// scalar/array without reading any row (§4.4 step 3(b), §4.6 step 1).
func isLowerable(v any) bool {
	switch x := v.(type) {
	case expr.Node:
		return len(expr.Aliases(x)) == 0
	case expr.ExpressionList:
		for _, n := range x {
			if len(expr.Aliases(n)) > 0 {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// likePrefixConstraints implements §9's optional prefix->range pass: a
// LIKE CUSTOM predicate on alias whose pattern has no wildcard before
// its first '%'/'_' can be downgraded into a pushable [prefix, upper)
// range. The range is a necessary but not always sufficient condition
// (e.g. "abc%def" also needs the suffix checked), so c is still added
// to leftover by the caller and re-evaluated as a client-side post-
// filter — this only narrows what the backend has to stream.
func likePrefixConstraints(c expr.Predicate, alias string) ([]Constraint, bool) {
	custom, ok := c.(*expr.Custom)
	if !ok || custom.Metadata["kind"] != "like" {
		return nil, false
	}
	fr, ok := custom.Input.(*expr.FieldRef)
	if !ok || fr.SourceAlias != alias {
		return nil, false
	}
	pattern, ok := custom.Metadata["pattern"].(string)
	if !ok {
		return nil, false
	}
	prefix, upper, ok := expr.LikePrefixRange(pattern)
	if !ok {
		return nil, false
	}
	return []Constraint{
		{Field: fr, Op: expr.CmpGe, Value: expr.String(prefix)},
		{Field: fr, Op: expr.CmpLt, Value: expr.String(upper)},
	}, true
}

// checkScanLegality enforces §4.4 step 4's single-inequality-field
// rule. (The single-membership-operator rule is enforced leniently at
// store-adapter time instead, §4.6 step 3 — dropped constraints are
// caught by the post-filter rather than rejected here.)
func checkScanLegality(alias string, constraints []Constraint) error {
	fields := map[string]bool{}
	for _, c := range constraints {
		switch c.Op {
		case expr.CmpNe, expr.CmpLt, expr.CmpLe, expr.CmpGt, expr.CmpGe:
			fields[c.Field.String()] = true
		}
	}
	if len(fields) > 1 {
		return &InvalidPlanError{Msg: "scan on alias " + alias + " has more than one inequality field"}
	}
	return nil
}

// tryPushOrderAndLimit attempts §4.4 step 6 for a plan that is a
// single bare SCAN (optionally under one FILTER): push orderBy
// db-side if the catalog gives an exact match for it, and push
// limit/offset directly onto the Scan. Anything it cannot push is
// left for Plan to realize as an explicit SORT/LIMIT node.
func (pl *Planner) tryPushOrderAndLimit(root Op, alias string, proj *Projection) {
	scan := soleScan(root)
	if scan == nil {
		return
	}
	if proj.Limit != nil || proj.Offset != nil {
		// A Filter wrapping the Scan here is, by construction (buildScan),
		// exactly the leftover atoms that could not be lowered into a
		// Constraint — i.e. a client-side post-filter. Pushing limit/offset
		// to the backend in that case caps the raw scan before the
		// post-filter runs, which can return fewer rows than actually
		// match (§4.4 step 6 requires in-store-evaluable FILTER). Only a
		// bare Scan (no residual Filter at all) is safe to cap this way.
		if _, bare := root.(*Scan); bare {
			if proj.Limit != nil {
				scan.Limit = proj.Limit
			}
			scan.Offset = proj.Offset
			pl.limitPushed = true
		}
	}
	if len(proj.OrderBy) != 1 {
		return
	}
	o := proj.OrderBy[0]
	if o.Field.SourceAlias != alias {
		return
	}
	for _, c := range scan.Constraints {
		switch c.Op {
		case expr.CmpNe, expr.CmpLt, expr.CmpLe, expr.CmpGt, expr.CmpGe:
			if c.Field.String() != o.Field.String() {
				return // §4.4 step 4: inequality field must equal the sort field
			}
		}
	}
	if proj.Hints.OrderBy == PostFetchSort {
		return
	}
	matchConstraints := make([]index.Constraint, len(scan.Constraints))
	for i, c := range scan.Constraints {
		kind := index.InequalityLike
		if c.Op.IsEqualityLike() {
			kind = index.EqualityLike
		}
		matchConstraints[i] = index.Constraint{FieldPath: strings.Join(c.Field.Path, "."), Kind: kind}
	}
	sortKey := &index.SortKey{FieldPath: strings.Join(o.Field.Path, "."), Desc: o.Desc}
	match := pl.Catalog.Match(collectionIDOf(scan.Collection), scan.Collection.Group, matchConstraints, sortKey)
	if match.Kind != index.Exact {
		return
	}
	scan.OrderBy = proj.OrderBy
	pl.orderByPushed = true
}

// soleScan returns root's underlying *Scan if root is a bare Scan or a
// Filter directly wrapping one, else nil.
func soleScan(root Op) *Scan {
	switch x := root.(type) {
	case *Scan:
		return x
	case *Filter:
		if s, ok := x.Source.(*Scan); ok {
			return s
		}
	}
	return nil
}

// buildJoins assembles a left-deep join tree over ops, pairing aliases
// that share a 2-alias predicate from the splitter (§4.4 step 5);
// aliases with no shared predicate against anything already joined are
// attached as a flagged cross-product.
func (pl *Planner) buildJoins(aliases []string, ops map[string]Op, joins map[JoinKey]expr.Predicate, hint JoinHint) (Op, error) {
	if len(aliases) == 0 {
		return nil, &InvalidInputError{Msg: "projection has no sources"}
	}
	order := append([]string{}, aliases...)
	sort.Strings(order)

	usedOrder := []string{order[0]}
	used := map[string]bool{order[0]: true}
	current := ops[order[0]]
	for _, next := range order[1:] {
		if used[next] {
			continue
		}
		var cond expr.Predicate
		for _, u := range usedOrder {
			if c, ok := lookupJoin(joins, u, next); ok {
				cond = c
				break
			}
		}
		cross := cond == nil
		if cross {
			cond = expr.True()
		}
		strategy, err := pl.chooseStrategy(current, ops[next], cond, hint, cross)
		if err != nil {
			return nil, err
		}
		current = &Join{Left: current, Right: ops[next], Strategy: strategy, Condition: cond, CrossProduct: cross}
		used[next] = true
		usedOrder = append(usedOrder, next)
	}
	return current, nil
}

func lookupJoin(joins map[JoinKey]expr.Predicate, a, b string) (expr.Predicate, bool) {
	x, y := a, b
	if x > y {
		x, y = y, x
	}
	c, ok := joins[JoinKey{Left: x, Right: y}]
	return c, ok
}

// chooseStrategy implements §4.4 step 5's join-strategy rules. hash and
// merge eligibility both accept `==`; merge additionally needs both
// sides sorted (or sortable via the catalog) on the join key, checked
// by mergeSortSupported, which is what actually differentiates them.
func (pl *Planner) chooseStrategy(left, right Op, cond expr.Predicate, hint JoinHint, cross bool) (JoinStrategy, error) {
	if cross {
		if hint != AutoJoin && hint != NestedLoopHint {
			return 0, &InvalidPlanError{Msg: "join hint incompatible with a cross-product condition"}
		}
		return NestedLoopStrategy, nil
	}

	hashable := isFieldVsFieldComparison(cond, func(op expr.CmpOp) bool {
		return op == expr.CmpEq || op == expr.CmpIn || op == expr.CmpArrayContains || op == expr.CmpArrayContainsAny
	})
	mergeableOp := isFieldVsFieldComparison(cond, func(op expr.CmpOp) bool {
		switch op {
		case expr.CmpEq, expr.CmpLt, expr.CmpLe, expr.CmpGt, expr.CmpGe:
			return true
		default:
			return false
		}
	})
	indexed := hasFieldVsFieldComparison(cond)

	mergeSorted := false
	if mergeableOp {
		mergeSorted = pl.mergeSortSupported(left, right, cond.(*expr.Comparison))
	}

	switch hint {
	case HashJoinHint:
		if !hashable {
			return 0, &InvalidPlanError{Msg: "hash join hint incompatible with join condition"}
		}
		return HashStrategy, nil
	case MergeJoinHint:
		if !mergeableOp || !mergeSorted {
			return 0, &InvalidPlanError{Msg: "merge join hint incompatible with join condition or neither side is sortable on the join key"}
		}
		return MergeStrategy, nil
	case IndexedNestedLoopHint:
		if !indexed {
			return 0, &InvalidPlanError{Msg: "indexed-nested-loop hint incompatible with join condition"}
		}
		return IndexedNestedLoopStrategy, nil
	case NestedLoopHint:
		return NestedLoopStrategy, nil
	default: // AutoJoin, per §4.4 step 5's rank: merge (with sort support) > hash > indexed > nested-loop.
		switch {
		case mergeableOp && mergeSorted:
			return MergeStrategy, nil
		case hashable:
			return HashStrategy, nil
		case indexed:
			return IndexedNestedLoopStrategy, nil
		default:
			return NestedLoopStrategy, nil
		}
	}
}

// mergeSortSupported reports whether both sides of a field-vs-field
// comparison are (or can be made, via an exact catalog match) sorted
// ascending on their respective join-key field, and pushes that sort
// onto each side's Scan when the catalog makes it available (§4.4 step
// 5). Only applies when each side is a bare Scan or a Filter directly
// wrapping one — a side that is itself a multi-way Join tree has no
// single Scan to push an order onto, so merge is not offered there.
func (pl *Planner) mergeSortSupported(left, right Op, cmp *expr.Comparison) bool {
	leftField, ok := cmp.Left.(*expr.FieldRef)
	if !ok {
		return false
	}
	rn, ok := cmp.RightNode()
	if !ok {
		return false
	}
	rightField, ok := rn.(*expr.FieldRef)
	if !ok {
		return false
	}

	leftScan := soleScan(left)
	rightScan := soleScan(right)
	if leftScan == nil || rightScan == nil {
		return false
	}
	var lf, rf *expr.FieldRef
	switch {
	case leftScan.Alias == leftField.SourceAlias && rightScan.Alias == rightField.SourceAlias:
		lf, rf = leftField, rightField
	case leftScan.Alias == rightField.SourceAlias && rightScan.Alias == leftField.SourceAlias:
		lf, rf = rightField, leftField
	default:
		return false
	}
	return pl.ensureSortedOnField(leftScan, lf) && pl.ensureSortedOnField(rightScan, rf)
}

// ensureSortedOnField reports whether scan already emits rows sorted
// ascending by field, pushing that sort via the catalog when an exact
// index match makes it free to do so.
func (pl *Planner) ensureSortedOnField(scan *Scan, field *expr.FieldRef) bool {
	for _, o := range scan.OrderBy {
		if o.Field.String() == field.String() {
			return !o.Desc
		}
	}
	if len(scan.OrderBy) > 0 {
		return false // already committed to a different sort
	}
	for _, c := range scan.Constraints {
		switch c.Op {
		case expr.CmpNe, expr.CmpLt, expr.CmpLe, expr.CmpGt, expr.CmpGe:
			if c.Field.String() != field.String() {
				return false // §4.4 step 4: inequality field must equal the sort field
			}
		}
	}
	matchConstraints := make([]index.Constraint, len(scan.Constraints))
	for i, c := range scan.Constraints {
		kind := index.InequalityLike
		if c.Op.IsEqualityLike() {
			kind = index.EqualityLike
		}
		matchConstraints[i] = index.Constraint{FieldPath: strings.Join(c.Field.Path, "."), Kind: kind}
	}
	sortKey := &index.SortKey{FieldPath: strings.Join(field.Path, "."), Desc: false}
	match := pl.Catalog.Match(collectionIDOf(scan.Collection), scan.Collection.Group, matchConstraints, sortKey)
	if match.Kind != index.Exact {
		return false
	}
	scan.OrderBy = []OrderSpec{{Field: field, Desc: false}}
	return true
}

// isFieldVsFieldComparison reports whether cond is a single COMPARISON
// with both operands FieldRefs and an operator accepted by ok.
func isFieldVsFieldComparison(cond expr.Predicate, ok func(expr.CmpOp) bool) bool {
	cmp, isCmp := cond.(*expr.Comparison)
	if !isCmp || !ok(cmp.Op) {
		return false
	}
	_, leftOk := cmp.Left.(*expr.FieldRef)
	right, rightOk := cmp.RightNode()
	if !leftOk || !rightOk {
		return false
	}
	_, rightIsField := right.(*expr.FieldRef)
	return rightIsField
}

// hasFieldVsFieldComparison reports whether cond contains at least one
// field-vs-field COMPARISON among its top-level AND conjuncts (§4.4's
// indexed-nested-loop eligibility).
func hasFieldVsFieldComparison(cond expr.Predicate) bool {
	for _, c := range expr.Conjuncts(cond) {
		if isFieldVsFieldComparison(c, func(expr.CmpOp) bool { return true }) {
			return true
		}
	}
	return false
}
