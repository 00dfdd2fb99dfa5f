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

import "strings"

// Entity is one aliased document's worth of data plus its reserved
// metadata (§4.6, §6's Document shape): `#id`, `#path`, `#collection`
// and a recursively-built `#parent` chain. Metadata keys shadow any
// user field of the same name.
type Entity struct {
	Fields     map[string]any
	ID         string
	Path       string
	Collection string
	Parent     *Entity
}

// newEntity derives an Entity's id/path/collection/parent metadata from
// its full document path and attaches fields (nil for a parent entity,
// whose data was never fetched — only its path is known).
func newEntity(path string, fields map[string]any) *Entity {
	segs := pathSegments(path)
	e := &Entity{Fields: fields, Path: path}
	if n := len(segs); n > 0 {
		e.ID = segs[n-1]
	}
	if n := len(segs); n > 1 {
		e.Collection = segs[n-2]
	}
	e.Parent = buildParent(segs)
	return e
}

// buildParent implements §4.6's "`#parent` is null when the document
// path has fewer than three segments; otherwise it is the metadata of
// the grandparent document (two segments stripped)."
func buildParent(segs []string) *Entity {
	if len(segs) < 3 {
		return nil
	}
	parentSegs := segs[:len(segs)-2]
	return newEntity(strings.Join(parentSegs, "/"), nil)
}

func pathSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// lookup resolves a (possibly nested, possibly metadata) field path
// against this entity, for use by expr.Env.
func (e *Entity) lookup(path []string) (any, bool) {
	if len(path) == 0 {
		return e.Fields, true
	}
	switch path[0] {
	case "#id":
		return e.ID, true
	case "#path":
		return e.Path, true
	case "#collection":
		return e.Collection, true
	case "#parent":
		if e.Parent == nil {
			return nil, true // null, not missing: the parent reference is known absent
		}
		return e.Parent.lookup(path[1:])
	default:
		return dig(e.Fields, path)
	}
}

func dig(fields map[string]any, path []string) (any, bool) {
	var cur any = fields
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Row is one execution-time result row: an Entity per source alias
// (§4.6's "construct `{[alias]: {...}}`"). Row answers field lookups;
// bindEnv pairs it with a parameter map to implement expr.Env.
type Row map[string]*Entity

// Field resolves path against the entity under alias; ok is false for
// an unknown alias or an absent field.
func (r Row) Field(alias string, path []string) (any, bool) {
	e, ok := r[alias]
	if !ok {
		return nil, false
	}
	return e.lookup(path)
}

// bindEnv pairs an (optional) Row with a parameter map to satisfy
// expr.Env; row is nil when resolving a Constraint's right-hand side
// against "the empty row" (§4.6 step 1), which relies on the planner
// having guaranteed Constraint values never reference a FieldRef.
type bindEnv struct {
	row    Row
	params map[string]any
}

func (e *bindEnv) Field(alias string, path []string) (any, bool) {
	if e.row == nil {
		return nil, false
	}
	return e.row.Field(alias, path)
}

func (e *bindEnv) Param(name string) (any, bool) {
	v, ok := e.params[name]
	return v, ok
}
