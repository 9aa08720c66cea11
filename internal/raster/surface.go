/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package raster renders stroke histories into RGBA images.
package raster

import (
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	xvector "golang.org/x/image/vector"

	"sketchpad/internal/stroke"
	"sketchpad/internal/vector"
)

// Surface implements stroke.Surface on top of an *image.RGBA.
// Stroke coordinates are mapped to pixels through Transform, which defaults to
// the identity.
type Surface struct {
	img       *image.RGBA
	rast      *xvector.Rasterizer
	Transform vector.Affine2D
}

var _ stroke.Surface = (*Surface)(nil)

// New allocates a w×h surface.
func New(w, h int) *Surface {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return NewFor(image.NewRGBA(image.Rect(0, 0, w, h)))
}

// NewFor draws into an existing image. The image origin must be (0,0).
func NewFor(img *image.RGBA) *Surface {
	b := img.Bounds()
	return &Surface{
		img:       img,
		rast:      xvector.NewRasterizer(b.Dx(), b.Dy()),
		Transform: vector.Identity,
	}
}

// Image returns the backing image.
func (s *Surface) Image() *image.RGBA { return s.img }

// FillBackground paints the background color and, when present, the background
// image scaled to cover the whole surface with its aspect ratio kept.
func (s *Surface) FillBackground(bg stroke.Background) {
	b := s.img.Bounds()
	draw.Draw(s.img, b, image.NewUniform(bg.Color.NRGBA()), image.Point{}, draw.Src)
	if bg.Image == nil {
		return
	}
	sr := bg.Image.Bounds()
	if sr.Empty() {
		return
	}
	fit := vector.Fit(float32(sr.Dx()), float32(sr.Dy()), float32(b.Dx()), float32(b.Dy()), true)
	p0 := fit.Apply(vector.Pt{})
	p1 := fit.Apply(vector.Pt{X: float32(sr.Dx()), Y: float32(sr.Dy())})
	dr := image.Rect(
		int(math.Floor(float64(p0.X))), int(math.Floor(float64(p0.Y))),
		int(math.Ceil(float64(p1.X))), int(math.Ceil(float64(p1.Y))),
	)
	xdraw.CatmullRom.Scale(s.img, dr, bg.Image, sr, xdraw.Over, nil)
}

// StrokePolyline fills the round-capped outline of points.
func (s *Surface) StrokePolyline(points []stroke.Point, width float32, c stroke.Color) {
	if len(points) == 0 || width <= 0 || c.A == 0 {
		return
	}
	pts := make([]vector.Pt, len(points))
	for i, p := range points {
		pts[i] = s.Transform.Apply(vector.Pt{X: p.X, Y: p.Y})
	}
	outline := vector.StrokeOutline(pts, width*s.scale())
	s.fill(outline, c)
}

// scale is the uniform scale factor of Transform, used for stroke widths.
func (s *Surface) scale() float32 {
	m := s.Transform
	det := float64(m.A*m.D - m.B*m.C)
	if det == 0 {
		return 1
	}
	return float32(math.Sqrt(math.Abs(det)))
}

func (s *Surface) fill(p vector.Path, c stroke.Color) {
	b := s.img.Bounds()
	s.rast.Reset(b.Dx(), b.Dy())
	s.rast.DrawOp = draw.Over
	for _, cmd := range p.Cmds {
		switch cmd.Op {
		case vector.MoveTo:
			s.rast.MoveTo(cmd.X, cmd.Y)
		case vector.LineTo:
			s.rast.LineTo(cmd.X, cmd.Y)
		case vector.Close:
			s.rast.ClosePath()
		}
	}
	s.rast.Draw(s.img, b, image.NewUniform(c.NRGBA()), image.Point{})
}

// Render paints h onto a fresh w×h image.
func Render(h *stroke.History, w, hgt int) *image.RGBA {
	s := New(w, hgt)
	h.Render(s)
	return s.Image()
}

// RenderScaled paints h onto a fresh image of the canvas size multiplied by
// factor; stroke widths scale along.
func RenderScaled(h *stroke.History, w, hgt int, factor float32) *image.RGBA {
	if factor <= 0 {
		factor = 1
	}
	s := New(int(math.Round(float64(float32(w)*factor))), int(math.Round(float64(float32(hgt)*factor))))
	s.Transform = vector.Scale(factor, factor)
	h.Render(s)
	return s.Image()
}
