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

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 { // (1*2+10, 1*3+5)
		t.Fatalf("unexpected transform result: %+v", p)
	}
}

func TestUnionIgnoresZeroRect(t *testing.T) {
	var acc Rect
	acc = acc.Union(Rect{X: 10, Y: 10, W: 5, H: 5})
	acc = acc.Union(Rect{X: 0, Y: 20, W: 2, H: 2})
	if acc.X != 0 || acc.Y != 10 || acc.W != 15 || acc.H != 12 {
		t.Fatalf("unexpected union: %+v", acc)
	}
}

func TestBoundsOfPadsAllSides(t *testing.T) {
	b := BoundsOf([]Pt{{5, 5}, {15, 10}}, 2)
	if b.X != 3 || b.Y != 3 || b.W != 14 || b.H != 9 {
		t.Fatalf("unexpected bounds: %+v", b)
	}
	if !BoundsOf(nil, 3).Empty() {
		t.Fatalf("expected empty bounds for no points")
	}
}

func TestFitContainAndCover(t *testing.T) {
	contain := Fit(200, 100, 100, 100, false)
	p := contain.Apply(Pt{200, 100})
	if p.X != 100 || p.Y != 75 {
		t.Fatalf("contain: unexpected corner %+v", p)
	}
	cover := Fit(200, 100, 100, 100, true)
	o := cover.Apply(Pt{0, 0})
	if o.X != -50 || o.Y != 0 {
		t.Fatalf("cover: unexpected origin %+v", o)
	}
}
