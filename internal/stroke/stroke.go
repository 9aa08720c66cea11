/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package stroke holds the freehand drawing model: strokes, the commit/undo/redo
// history over them and the surface abstraction they are rendered onto.
package stroke

import (
	"image"

	"sketchpad/internal/vector"
)

// MaxCanvasSide is the largest canvas width or height accepted anywhere.
const MaxCanvasSide = 16384

// Point is a position in surface-local units.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Stroke is one continuous pointer-down to pointer-up gesture. Once committed
// to a History it is never modified; callers must treat Points as read-only.
type Stroke struct {
	ID     string  `json:"id"`
	Points []Point `json:"points"`
	Width  float32 `json:"width"`
	Color  Color   `json:"color"`
}

// Bounds returns the area covered by the stroke including its width.
func (s Stroke) Bounds() vector.Rect {
	return vector.BoundsOf(s.Pts(), s.Width/2)
}

// Pts converts the stroke points to geometry points.
func (s Stroke) Pts() []vector.Pt {
	out := make([]vector.Pt, len(s.Points))
	for i, p := range s.Points {
		out[i] = vector.Pt{X: p.X, Y: p.Y}
	}
	return out
}

func (s Stroke) clone() Stroke {
	s.Points = append([]Point(nil), s.Points...)
	return s
}

// Background is what a surface is filled with before any stroke is drawn.
// When Image is non-nil it is scaled to cover the surface; Color still fills
// any transparent pixels of the image.
type Background struct {
	Color  Color
	Image  image.Image
	Source string // where Image was loaded from, informational
}

// HasImage reports whether the background carries an image.
func (b Background) HasImage() bool { return b.Image != nil }

// Surface is the drawing target consumed by History.Render.
type Surface interface {
	FillBackground(bg Background)
	StrokePolyline(points []Point, width float32, c Color)
}
