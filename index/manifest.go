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

package index

import "fmt"

// Manifest is the decoded shape of the index-manifest JSON document of
// §6. JSON decoding itself is an external-collaborator concern (§1); a
// caller does `json.Unmarshal(data, &m)` and passes the result to
// LoadManifest.
type Manifest struct {
	Indexes []ManifestIndex `json:"indexes"`
	// FieldOverrides is accepted for forward-compatibility with the
	// manifest format (§6) but carries no single-field index that this
	// planner's composite-index matching needs to consult; Firestore
	// applies field overrides to single-field auto-indexing exemptions,
	// which is orthogonal to composite-index matching (§4.2).
	FieldOverrides []map[string]any `json:"fieldOverrides,omitempty"`
}

// ManifestIndex is one `indexes[]` entry.
type ManifestIndex struct {
	CollectionGroup string          `json:"collectionGroup"`
	QueryScope      string          `json:"queryScope"`
	Fields          []ManifestField `json:"fields"`
}

// ManifestField is one `fields[]` entry of a ManifestIndex.
type ManifestField struct {
	FieldPath   string `json:"fieldPath"`
	Order       string `json:"order,omitempty"`
	ArrayConfig string `json:"arrayConfig,omitempty"`
}

// UnsupportedManifestError is returned by LoadManifest when a manifest
// entry names a queryScope this loader does not recognize.
type UnsupportedManifestError struct {
	CollectionGroup string
	QueryScope      string
}

func (e *UnsupportedManifestError) Error() string {
	return fmt.Sprintf("index: manifest entry for %q has unsupported queryScope %q", e.CollectionGroup, e.QueryScope)
}

// LoadManifest maps a decoded Manifest into a Catalog via the straight
// mapping of §4.2: order:"DESCENDING"→DESC, arrayConfig:"CONTAINS"→
// ArrayContainsMode, else ASC; queryScope "COLLECTION_GROUP"→
// CollectionGroup, "COLLECTION" or empty→Collection. Any other
// queryScope is rejected with an *UnsupportedManifestError.
func LoadManifest(m Manifest) (*Catalog, error) {
	indexes := make([]Index, 0, len(m.Indexes))
	for _, mi := range m.Indexes {
		scope, err := parseScope(mi.CollectionGroup, mi.QueryScope)
		if err != nil {
			return nil, err
		}
		fields := make([]Field, len(mi.Fields))
		for i, mf := range mi.Fields {
			fields[i] = Field{Path: mf.FieldPath, Mode: parseMode(mf)}
		}
		indexes = append(indexes, Index{
			CollectionID: mi.CollectionGroup,
			Scope:        scope,
			Fields:       fields,
		})
	}
	return NewCatalog(indexes), nil
}

func parseScope(collectionGroup, scope string) (QueryScope, error) {
	switch scope {
	case "", "COLLECTION":
		return Collection, nil
	case "COLLECTION_GROUP":
		return CollectionGroup, nil
	default:
		return 0, &UnsupportedManifestError{CollectionGroup: collectionGroup, QueryScope: scope}
	}
}

func parseMode(f ManifestField) FieldMode {
	if f.ArrayConfig == "CONTAINS" {
		return ArrayContainsMode
	}
	if f.Order == "DESCENDING" {
		return DESC
	}
	return ASC
}
