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
	"regexp"
	"strings"
	"sync"
)

// likeCache memoizes the compiled regexp for a given SQL-LIKE pattern so
// that repeated calls to Like with the same literal pattern (e.g. across
// re-planning of the same query text) do not recompile it (§6).
var likeCache sync.Map // map[string]*regexp.Regexp

// compileLike translates a SQL LIKE pattern ('%' → any run, '_' → any
// one character, everything else escaped) into an anchored regexp,
// caching the result.
func compileLike(pattern string) (*regexp.Regexp, error) {
	if v, ok := likeCache.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("expr: compiling LIKE pattern %q: %w", pattern, err)
	}
	likeCache.Store(pattern, re)
	return re, nil
}

// Like builds a CUSTOM predicate matching expr against a SQL-LIKE
// pattern (§6). The compiled regexp is cached by pattern text.
func Like(arg Node, pattern string) (*Custom, error) {
	re, err := compileLike(pattern)
	if err != nil {
		return nil, err
	}
	return &Custom{
		Input: arg,
		Fn: EvaluatorFunc(func(args ...any) (any, error) {
			s, ok := args[0].(string)
			if !ok {
				return false, nil
			}
			return re.MatchString(s), nil
		}),
		Metadata: map[string]any{"kind": "like", "pattern": pattern},
	}, nil
}

// LikePrefixRange reports whether pattern has no wildcard before its
// first '%'/'_' (or has none at all), and if so returns the literal
// prefix and the exclusive upper bound string obtained by incrementing
// its last byte — the range-rewrite optimization noted as optional in
// spec §9 (`[prefix, prefix-with-last-byte-incremented)`). ok is false
// when the pattern starts with a wildcard, so no useful prefix range
// exists.
func LikePrefixRange(pattern string) (prefix string, upper string, ok bool) {
	idx := strings.IndexAny(pattern, "%_")
	if idx == 0 {
		return "", "", false
	}
	if idx < 0 {
		idx = len(pattern)
	}
	prefix = pattern[:idx]
	if prefix == "" {
		return "", "", false
	}
	b := []byte(prefix)
	b[len(b)-1]++
	return prefix, string(b), true
}
