/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package vector

import "testing"

// outlineBounds is the box around every vertex of p.
func outlineBounds(p Path) Rect {
	var pts []Pt
	for _, c := range p.Cmds {
		if c.Op != Close {
			pts = append(pts, Pt{c.X, c.Y})
		}
	}
	return BoundsOf(pts, 0)
}

func TestStrokeOutlineCoversWidth(t *testing.T) {
	out := StrokeOutline([]Pt{{10, 10}, {30, 10}}, 4)
	b := outlineBounds(out)
	// round caps extend the segment by half the width on both ends
	if b.X > 8.01 || b.X < 7.99 || b.W < 23.99 || b.W > 24.01 {
		t.Fatalf("unexpected horizontal extent: %+v", b)
	}
	if b.Y > 8.01 || b.H < 3.99 || b.H > 4.01 {
		t.Fatalf("unexpected vertical extent: %+v", b)
	}
}

func TestStrokeOutlineSinglePointIsDisc(t *testing.T) {
	out := StrokeOutline([]Pt{{5, 5}}, 6)
	if len(out.Cmds) == 0 {
		t.Fatalf("expected a disc for a single point")
	}
	if out.Cmds[0].Op != MoveTo || out.Cmds[len(out.Cmds)-1].Op != Close {
		t.Fatalf("disc must be a closed subpath")
	}
}

func TestStrokeOutlineEmpty(t *testing.T) {
	if out := StrokeOutline(nil, 3); len(out.Cmds) != 0 {
		t.Fatalf("expected empty outline")
	}
	if out := StrokeOutline([]Pt{{1, 1}}, 0); len(out.Cmds) != 0 {
		t.Fatalf("expected empty outline for zero width")
	}
}
