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

import "testing"

func TestEqualsStructural(t *testing.T) {
	a := Eq(Field("u.age"), Number(30))
	b := Eq(Field("u.age"), Number(30))
	c := Eq(Field("u.age"), Number(31))
	if !EqualPredicate(a, b) {
		t.Fatalf("expected a.Equals(b)")
	}
	if EqualPredicate(a, c) {
		t.Fatalf("expected a != c")
	}
}

func TestFoldLiterals(t *testing.T) {
	add := Apply(Number(2), EvaluatorFunc(func(args ...any) (any, error) {
		return args[0].(float64) + 1, nil
	}), "inc")
	folded, ok := FoldLiterals(add)
	if !ok {
		t.Fatalf("expected fold to succeed")
	}
	lit, ok := folded.(*Literal)
	if !ok || lit.Value != float64(3) {
		t.Fatalf("got %#v", folded)
	}

	notFoldable := Apply(Field("x.y"), EvaluatorFunc(func(args ...any) (any, error) {
		return args[0], nil
	}), "id")
	if _, ok := FoldLiterals(notFoldable); ok {
		t.Fatalf("expected no fold over a FieldRef input")
	}
}

func TestSimplifyAndContradiction(t *testing.T) {
	p := And(Eq(Field("a"), Number(1)), Eq(Field("a"), Number(2)))
	got, err := Simplify(p)
	if err != nil {
		t.Fatal(err)
	}
	if !EqualPredicate(got, False()) {
		t.Fatalf("expected FALSE, got %s", got)
	}
}

func TestSimplifyAndBucketsIntoRange(t *testing.T) {
	p := And(Gt(Field("a"), Number(1)), Lt(Field("a"), Number(10)))
	got, err := Simplify(p)
	if err != nil {
		t.Fatal(err)
	}
	l, ok := got.(*Logical)
	if !ok || l.Op != OpAnd || len(l.Conditions) != 2 {
		t.Fatalf("expected a 2-conjunct range AND, got %s", got)
	}
}

func TestSimplifyEqDominatesBucket(t *testing.T) {
	p := And(Eq(Field("a"), Number(5)), Gt(Field("a"), Number(1)))
	got, err := Simplify(p)
	if err != nil {
		t.Fatal(err)
	}
	want := Eq(Field("a"), Number(5))
	if !EqualPredicate(got, want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestSimplifyNotPushesToLeaf(t *testing.T) {
	p := Not(Eq(Field("a"), Number(1)))
	got, err := Simplify(p)
	if err != nil {
		t.Fatal(err)
	}
	want := Ne(Field("a"), Number(1))
	if !EqualPredicate(got, want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestSimplifyDoubleNegation(t *testing.T) {
	p := Not(Not(Eq(Field("a"), Number(1))))
	got, err := Simplify(p)
	if err != nil {
		t.Fatal(err)
	}
	want := Eq(Field("a"), Number(1))
	if !EqualPredicate(got, want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestSimplifyInSingletonCollapsesToEq(t *testing.T) {
	p := InList(Field("a"), ExpressionList{Number(7)})
	got, err := Simplify(p)
	if err != nil {
		t.Fatal(err)
	}
	want := Eq(Field("a"), Number(7))
	if !EqualPredicate(got, want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestSimplifyInEmptyIsFalse(t *testing.T) {
	p := InList(Field("a"), ExpressionList{})
	got, err := Simplify(p)
	if err != nil {
		t.Fatal(err)
	}
	if !EqualPredicate(got, False()) {
		t.Fatalf("expected FALSE, got %s", got)
	}
}

func TestSimplifyOrAbsorption(t *testing.T) {
	narrow := Eq(Field("a"), Number(1))
	wide := And(Eq(Field("a"), Number(1)), Eq(Field("b"), Number(2)))
	p := Or(narrow, wide)
	got, err := Simplify(p)
	if err != nil {
		t.Fatal(err)
	}
	if !EqualPredicate(got, narrow) {
		t.Fatalf("expected absorption down to %s, got %s", narrow, got)
	}
}

func TestSimplifyOrCollapsesToNe(t *testing.T) {
	p := Or(Lt(Field("a"), Number(5)), Gt(Field("a"), Number(5)))
	got, err := Simplify(p)
	if err != nil {
		t.Fatal(err)
	}
	want := Ne(Field("a"), Number(5))
	if !EqualPredicate(got, want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestSimplifyIdempotent(t *testing.T) {
	p := And(
		Or(Eq(Field("a"), Number(1)), Eq(Field("a"), Number(2))),
		Gt(Field("b"), Number(0)),
	)
	once, err := Simplify(p)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Simplify(once)
	if err != nil {
		t.Fatal(err)
	}
	if !EqualPredicate(once, twice) {
		t.Fatalf("Simplify is not idempotent: %s vs %s", once, twice)
	}
}

func TestDNFNoOrBeneathAnd(t *testing.T) {
	p := And(
		Or(Eq(Field("a"), Number(1)), Eq(Field("a"), Number(2))),
		Eq(Field("b"), Number(3)),
	)
	d, err := DNF(p)
	if err != nil {
		t.Fatal(err)
	}
	var check func(Predicate, bool)
	sawOrBeneathAnd := false
	check = func(p Predicate, beneathAnd bool) {
		switch x := p.(type) {
		case *Logical:
			if x.Op == OpOr && beneathAnd {
				sawOrBeneathAnd = true
			}
			for _, c := range x.Conditions {
				check(c, beneathAnd || x.Op == OpAnd)
			}
		case *Negation:
			check(x.Operand, beneathAnd)
		}
	}
	check(d, false)
	if sawOrBeneathAnd {
		t.Fatalf("DNF result has an OR beneath an AND: %s", d)
	}
}

func TestListCapChunksMembership(t *testing.T) {
	lits := make(ExpressionList, 35)
	for i := range lits {
		lits[i] = Number(float64(i))
	}
	p := InList(Field("a"), lits)
	got, err := Simplify(p)
	if err != nil {
		t.Fatal(err)
	}
	or, ok := got.(*Logical)
	if !ok || or.Op != OpOr {
		t.Fatalf("expected an OR of capped IN-lists, got %s", got)
	}
	total := 0
	for _, c := range or.Conditions {
		cmp, ok := c.(*Comparison)
		if !ok || cmp.Op != CmpIn {
			t.Fatalf("expected every disjunct to be an IN comparison, got %s", c)
		}
		list, ok := cmp.RightList()
		if !ok {
			t.Fatalf("expected a list right-hand side")
		}
		if len(list) > capIn {
			t.Fatalf("chunk of size %d exceeds cap %d", len(list), capIn)
		}
		total += len(list)
	}
	if total != 35 {
		t.Fatalf("expected all 35 literals preserved across chunks, got %d", total)
	}
}

func TestArrayContainsAnyRejectsFieldRefElement(t *testing.T) {
	p := ArrayContainsAny(Field("a"), ExpressionList{Field("b")})
	if _, err := Simplify(p); err == nil {
		t.Fatalf("expected an error for a FieldRef element in an ARRAY_CONTAINS_ANY list")
	}
}

func TestLikeCompilesAndMatches(t *testing.T) {
	pred, err := Like(Field("r.name"), "J%n_s")
	if err != nil {
		t.Fatal(err)
	}
	env := rowEnv{"r": {"name": "Jones"}}
	ok, err := EvalPredicate(pred, env)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected pattern to match Jones")
	}
	ok, err = EvalPredicate(pred, rowEnv{"r": {"name": "Smith"}})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected pattern not to match Smith")
	}
}

func TestLikePrefixRange(t *testing.T) {
	prefix, upper, ok := LikePrefixRange("abc%")
	if !ok || prefix != "abc" || upper != "abd" {
		t.Fatalf("got prefix=%q upper=%q ok=%v", prefix, upper, ok)
	}
	if _, _, ok := LikePrefixRange("%abc"); ok {
		t.Fatalf("expected no prefix range for a leading wildcard")
	}
}

func TestCompareValuesMissingOrdersFirst(t *testing.T) {
	cmp, ok := CompareValues(Missing, float64(1))
	if !ok || cmp >= 0 {
		t.Fatalf("expected Missing < present value, got cmp=%d ok=%v", cmp, ok)
	}
}

func TestCompareValuesNullIncomparable(t *testing.T) {
	if _, ok := CompareValues(nil, float64(1)); ok {
		t.Fatalf("expected null to be incomparable to a present value")
	}
	cmp, ok := CompareValues(nil, nil)
	if !ok || cmp != 0 {
		t.Fatalf("expected null == null")
	}
}

func TestEvalMissingFieldIsMissingNotError(t *testing.T) {
	v, err := Eval(Field("r.missing"), rowEnv{"r": {}})
	if err != nil {
		t.Fatal(err)
	}
	if !IsMissing(v) {
		t.Fatalf("expected Missing sentinel, got %#v", v)
	}
}

func TestEvalUnboundParamErrors(t *testing.T) {
	_, err := Eval(ParamRef("limit"), rowEnv{})
	var mpe *MissingParameterError
	if err == nil {
		t.Fatalf("expected an error")
	}
	if _, ok := err.(interface{ Error() string }); !ok {
		t.Fatalf("expected an error value")
	}
	_ = mpe
}

// rowEnv is a minimal Env for tests: alias -> field name -> value.
type rowEnv map[string]map[string]any

func (r rowEnv) Field(alias string, path []string) (any, bool) {
	fields, ok := r[alias]
	if !ok || len(path) == 0 {
		return nil, false
	}
	v, ok := fields[path[0]]
	return v, ok
}

func (r rowEnv) Param(name string) (any, bool) { return nil, false }
