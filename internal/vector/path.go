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

import "math"

// Path commands and shapes. Outlines are polygons; curves are flattened
// before they reach a Path.

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	Close
)

type PathCmd struct {
	Op PathOp
	X  float32
	Y  float32
}

type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float32) { p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, X: x, Y: y}) }
func (p *Path) LineTo(x, y float32) { p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, X: x, Y: y}) }
func (p *Path) Close()              { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

// StrokeOutline returns the fill outline of a polyline drawn with the given
// width, round caps and round joins. The outline is a union of one quad per
// segment and one disc per vertex, all wound clockwise so that overlaps add
// up under a non-zero fill instead of cancelling.
func StrokeOutline(pts []Pt, width float32) Path {
	var p Path
	if len(pts) == 0 || width <= 0 {
		return p
	}
	hw := width / 2
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		dx, dy := b.X-a.X, b.Y-a.Y
		l := float32(math.Hypot(float64(dx), float64(dy)))
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*hw, dx/l*hw
		p.MoveTo(a.X+nx, a.Y+ny)
		p.LineTo(b.X+nx, b.Y+ny)
		p.LineTo(b.X-nx, b.Y-ny)
		p.LineTo(a.X-nx, a.Y-ny)
		p.Close()
	}
	for i, c := range pts {
		if i > 0 && pts[i-1] == c {
			continue
		}
		disc(&p, c, hw)
	}
	return p
}

// disc appends a polygonal circle approximation, clockwise.
func disc(p *Path, c Pt, r float32) {
	n := discSegments(r)
	for i := 0; i <= n; i++ {
		th := -2 * math.Pi * float64(i) / float64(n)
		x := c.X + r*float32(math.Cos(th))
		y := c.Y + r*float32(math.Sin(th))
		if i == 0 {
			p.MoveTo(x, y)
			continue
		}
		if i == n {
			break
		}
		p.LineTo(x, y)
	}
	p.Close()
}

func discSegments(r float32) int {
	n := int(math.Ceil(math.Pi * float64(r)))
	if n < 8 {
		n = 8
	}
	if n > 64 {
		n = 64
	}
	return n
}
