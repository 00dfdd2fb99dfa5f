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

import (
	"fmt"
	"reflect"
)

// Env resolves the free variables of an Expression during evaluation: a
// Row's per-alias fields (including metadata) and the caller's parameter
// bindings. exec's rowEnv and store's bindEnv (a store.Row plus a
// parameter map) implement Env.
type Env interface {
	// Field looks up a (possibly nested) document field or metadata
	// value for the given source alias. ok is false if the alias or
	// path segment is not present.
	Field(alias string, path []string) (value any, ok bool)

	// Param looks up a bound parameter value by name.
	Param(name string) (value any, ok bool)
}

// emptyEnv is an Env with no bound fields or parameters, used by literal
// folding (§4.1) where only FunctionExprs over Literal inputs are safe
// to evaluate.
type emptyEnv struct{}

func (emptyEnv) Field(alias string, path []string) (any, bool) { return nil, false }
func (emptyEnv) Param(name string) (any, bool)                 { return nil, false }

// missingSentinel is the unique value returned by Eval for a FieldRef
// whose target is not present. Comparisons go through valuesEqual and
// CompareValues, under which Missing equals only Missing and is never
// equal to a present value, per the "collapse null/undefined to one
// absent state" design decision (spec §9).
type missingSentinel struct{}

// Missing is the absent-value sentinel (spec §9's collapsed
// null/undefined state). A present field holding an explicit null
// Literal evaluates to Go nil, which is distinct from Missing.
var Missing any = missingSentinel{}

// IsMissing reports whether v is the Missing sentinel.
func IsMissing(v any) bool {
	_, ok := v.(missingSentinel)
	return ok
}

// MissingParameterError is returned by Eval/EvalPredicate when a Param
// referenced by the expression has no binding in the Env (§7 —
// MissingParameter, an execution-time error).
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("expr: missing parameter %q", e.Name)
}

// UnknownAliasError is returned when an expression references a source
// alias the caller did not declare (§7 — InvalidInput).
type UnknownAliasError struct {
	Alias string
}

func (e *UnknownAliasError) Error() string {
	return fmt.Sprintf("expr: reference to undeclared alias %q", e.Alias)
}

// Eval evaluates n against env, resolving FieldRefs, Params and applying
// FunctionExpr Evaluators. It never pushes down or simplifies; callers
// that need that should Simplify/DNF first.
func Eval(n Node, env Env) (any, error) {
	switch x := n.(type) {
	case *FieldRef:
		v, ok := env.Field(x.SourceAlias, x.Path)
		if !ok {
			return Missing, nil
		}
		return v, nil
	case *Literal:
		return x.Value, nil
	case *Param:
		v, ok := env.Param(x.Name)
		if !ok {
			return nil, &MissingParameterError{Name: x.Name}
		}
		return v, nil
	case *FunctionExpr:
		args, err := evalInputs(x.inputNodes(), env)
		if err != nil {
			return nil, err
		}
		return x.Fn.Apply(args...)
	default:
		return nil, fmt.Errorf("expr: Eval: unsupported node type %T", n)
	}
}

// EvalList evaluates every element of an ExpressionList.
func EvalList(l ExpressionList, env Env) ([]any, error) {
	return evalInputs([]Node(l), env)
}

func evalInputs(nodes []Node, env Env) ([]any, error) {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		v, err := Eval(n, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// EvalPredicate evaluates p against env to a boolean result.
func EvalPredicate(p Predicate, env Env) (bool, error) {
	switch x := p.(type) {
	case *Const:
		return x.Value, nil
	case *Negation:
		v, err := EvalPredicate(x.Operand, env)
		if err != nil {
			return false, err
		}
		return !v, nil
	case *Logical:
		return evalLogical(x, env)
	case *Comparison:
		return evalComparison(x, env)
	case *Custom:
		return evalCustom(x, env)
	default:
		return false, fmt.Errorf("expr: EvalPredicate: unsupported predicate type %T", p)
	}
}

func evalLogical(l *Logical, env Env) (bool, error) {
	switch l.Op {
	case OpAnd:
		for _, c := range l.Conditions {
			v, err := EvalPredicate(c, env)
			if err != nil {
				return false, err
			}
			if !v {
				return false, nil
			}
		}
		return true, nil
	case OpOr:
		for _, c := range l.Conditions {
			v, err := EvalPredicate(c, env)
			if err != nil {
				return false, err
			}
			if v {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("expr: unknown logical op %d", l.Op)
	}
}

func evalCustom(c *Custom, env Env) (bool, error) {
	var args []any
	switch in := c.Input.(type) {
	case Node:
		v, err := Eval(in, env)
		if err != nil {
			return false, err
		}
		args = []any{v}
	case ExpressionList:
		var err error
		args, err = evalInputs([]Node(in), env)
		if err != nil {
			return false, err
		}
	}
	res, err := c.Fn.Apply(args...)
	if err != nil {
		return false, err
	}
	b, _ := res.(bool)
	return b, nil
}

func evalComparison(c *Comparison, env Env) (bool, error) {
	left, err := Eval(c.Left, env)
	if err != nil {
		return false, err
	}
	switch c.Op {
	case CmpIn, CmpNotIn, CmpArrayContainsAny:
		list, ok := c.RightList()
		if !ok {
			return false, fmt.Errorf("expr: %s requires a list right-hand side", c.Op)
		}
		vals, err := EvalList(list, env)
		if err != nil {
			return false, err
		}
		switch c.Op {
		case CmpIn:
			return containsValue(vals, left), nil
		case CmpNotIn:
			return !containsValue(vals, left), nil
		default: // CmpArrayContainsAny
			arr, ok := asSlice(left)
			if !ok {
				return false, nil
			}
			for _, v := range arr {
				if containsValue(vals, v) {
					return true, nil
				}
			}
			return false, nil
		}
	default:
		rightNode, ok := c.RightNode()
		if !ok {
			return false, fmt.Errorf("expr: %s requires a scalar right-hand side", c.Op)
		}
		right, err := Eval(rightNode, env)
		if err != nil {
			return false, err
		}
		return compareScalar(c.Op, left, right)
	}
}

func compareScalar(op CmpOp, left, right any) (bool, error) {
	switch op {
	case CmpEq:
		return valuesEqual(left, right), nil
	case CmpNe:
		return !valuesEqual(left, right), nil
	case CmpArrayContains:
		arr, ok := asSlice(left)
		if !ok {
			return false, nil
		}
		return containsValue(arr, right), nil
	default: // CmpLt, CmpLe, CmpGt, CmpGe
		cmp, ok := CompareValues(left, right)
		if !ok {
			return false, nil
		}
		switch op {
		case CmpLt:
			return cmp < 0, nil
		case CmpLe:
			return cmp <= 0, nil
		case CmpGt:
			return cmp > 0, nil
		case CmpGe:
			return cmp >= 0, nil
		}
		return false, nil
	}
}

func containsValue(list []any, v any) bool {
	for _, x := range list {
		if valuesEqual(x, v) {
			return true
		}
	}
	return false
}

func asSlice(v any) ([]any, bool) {
	if v == nil || IsMissing(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// valuesEqual compares two resolved values for equality, honoring the
// Missing sentinel (Missing equals only Missing) and null (nil equals
// only nil among present values).
func valuesEqual(a, b any) bool {
	am, bm := IsMissing(a), IsMissing(b)
	if am || bm {
		return am && bm
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	an, aok := asNumber(a)
	bn, bok := asNumber(b)
	if aok && bok {
		return an == bn
	}
	return a == b
}

// CompareValues orders two resolved values. Missing sorts before every
// present value; null (nil) is incomparable to anything except another
// null, for which it reports equal ("inequality against absent/null
// yields false" — callers treat ok=false as "no ordering", which makes
// every inequality comparison against it false, per spec §9).
func CompareValues(a, b any) (cmp int, ok bool) {
	am, bm := IsMissing(a), IsMissing(b)
	if am && bm {
		return 0, true
	}
	if am {
		return -1, true
	}
	if bm {
		return 1, true
	}
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0, true
		}
		return 0, false
	}
	if an, aok := asNumber(a); aok {
		if bn, bok := asNumber(b); bok {
			switch {
			case an < bn:
				return -1, true
			case an > bn:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		default:
			return 0, true
		}
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		switch {
		case ab == bb:
			return 0, true
		case !ab:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	default:
		return 0, false
	}
}
