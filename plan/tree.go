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

import "strings"

func tabify(n int, dst *strings.Builder) {
	for n > 0 {
		dst.WriteByte('\t')
		n--
	}
}

func tabline(dst *strings.Builder, indent int, line string) {
	tabify(indent, dst)
	dst.WriteString(line)
	dst.WriteByte('\n')
}

func describe(dst *strings.Builder, indent int, op Op) {
	tabline(dst, indent, op.String())
	for _, c := range op.Children() {
		describe(dst, indent+1, c)
	}
}

// Describe renders op's plan tree as indented, tab-nested lines, each
// node followed by its children, in the style of the teacher's
// plan.Tree.String().
func Describe(op Op) string {
	var out strings.Builder
	describe(&out, 0, op)
	return out.String()
}
