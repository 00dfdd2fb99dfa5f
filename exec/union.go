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

package exec

import (
	"context"
	"encoding/json"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/fenwickdata/docql/plan"
	"github.com/fenwickdata/docql/store"
)

// UnionOp exhausts Inputs left-to-right (§4.5's "round-robins inputs in
// declared order (left-to-right exhaustion)"), optionally deduplicating
// rows by one of three strategies. It preserves the order of each
// row's first occurrence (§5).
type UnionOp struct {
	Inputs   []Operator
	Distinct plan.UnionDistinct

	idx        int
	seenPaths  map[string]bool
	seenHashes map[uint64][]string
}

// Next implements Operator.
func (u *UnionOp) Next(ctx context.Context) (store.Row, bool, error) {
	for u.idx < len(u.Inputs) {
		row, ok, err := u.Inputs[u.idx].Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			u.idx++
			continue
		}
		switch u.Distinct {
		case plan.NoneDistinct:
			return row, true, nil
		case plan.DocPathDistinct:
			key, hasPath := docPathKey(row)
			if !hasPath {
				return row, true, nil
			}
			if u.seenPaths == nil {
				u.seenPaths = map[string]bool{}
			}
			if u.seenPaths[key] {
				continue
			}
			u.seenPaths[key] = true
			return row, true, nil
		case plan.HashMapDistinct:
			ser, err := hashMapKey(row)
			if err != nil {
				return nil, false, err
			}
			if u.seenHash(ser) {
				continue
			}
			return row, true, nil
		default:
			return row, true, nil
		}
	}
	return nil, false, nil
}

// seenHash reports whether ser was already seen, recording it if not.
// The siphash bucket only narrows the candidate set; the stored
// canonical strings in that bucket are compared exactly, so a hash
// collision never causes a false dedup.
func (u *UnionOp) seenHash(ser string) bool {
	if u.seenHashes == nil {
		u.seenHashes = map[uint64][]string{}
	}
	h := hashKey(ser)
	for _, s := range u.seenHashes[h] {
		if s == ser {
			return true
		}
	}
	u.seenHashes[h] = append(u.seenHashes[h], ser)
	return false
}

// SortOrder implements Operator. A union of independently-ordered
// branches advertises no ordering of its own.
func (u *UnionOp) SortOrder() []plan.OrderSpec { return nil }

// Close releases every input's resources, if any, continuing past
// individual errors so one stuck branch doesn't leak the rest (§5's
// cancellation contract).
func (u *UnionOp) Close() error {
	var first error
	for _, in := range u.Inputs {
		if c, ok := in.(Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// docPathKey builds the `alias:doc_path` dedup key of §4.5's DocPath
// strategy. ok is false when any aliased entity in row has no path, in
// which case the row must never be deduped.
func docPathKey(row store.Row) (key string, ok bool) {
	aliases := make([]string, 0, len(row))
	for a := range row {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)

	var b strings.Builder
	for _, a := range aliases {
		e := row[a]
		if e.Path == "" {
			return "", false
		}
		b.WriteString(a)
		b.WriteByte(':')
		b.WriteString(e.Path)
		b.WriteByte('|')
	}
	return b.String(), true
}

// hashMapKey builds the HashMap strategy's deterministic serialization:
// sorted-object-key JSON (encoding/json sorts map[string]any keys),
// with Dates and big integers rewritten to their tagged forms first
// (§4.5).
func hashMapKey(row store.Row) (string, error) {
	aliases := make([]string, 0, len(row))
	for a := range row {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)

	out := make(map[string]any, len(row))
	for _, a := range aliases {
		e := row[a]
		out[a] = canonicalize(map[string]any{
			"#id":         e.ID,
			"#path":       e.Path,
			"#collection": e.Collection,
			"fields":      e.Fields,
		})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func canonicalize(v any) any {
	switch x := v.(type) {
	case time.Time:
		return map[string]any{"__type": "Date", "value": x.UTC().Format(time.RFC3339Nano)}
	case *big.Int:
		return map[string]any{"__type": "BigInt", "value": x.String()}
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = canonicalize(vv)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = canonicalize(vv)
		}
		return out
	default:
		return x
	}
}
