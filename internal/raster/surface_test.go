/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package raster

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"sketchpad/internal/stroke"
)

func line(h *stroke.History, x0, y0, x1, y1, w float32, c stroke.Color) {
	h.BeginStroke(stroke.Point{X: x0, Y: y0}, w, c)
	h.ExtendStroke(stroke.Point{X: x1, Y: y1})
	h.EndStroke()
}

func isRed(c color.RGBA) bool   { return c.R > 250 && c.G < 5 && c.B < 5 }
func isWhite(c color.RGBA) bool { return c.R == 255 && c.G == 255 && c.B == 255 }

func TestSolidBackground(t *testing.T) {
	h := stroke.NewHistory(stroke.WithBackground(stroke.Background{Color: stroke.Blue}))
	img := Render(h, 8, 6)
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
		t.Fatalf("unexpected size: %v", img.Bounds())
	}
	for _, p := range []image.Point{{0, 0}, {7, 5}, {3, 3}} {
		if got := img.RGBAAt(p.X, p.Y); got != (color.RGBA{0, 0, 255, 255}) {
			t.Fatalf("pixel %v = %+v, want blue", p, got)
		}
	}
}

func TestStrokeCoversItsPixels(t *testing.T) {
	h := stroke.NewHistory()
	line(h, 2, 10, 18, 10, 4, stroke.Red)
	img := Render(h, 20, 20)
	if got := img.RGBAAt(10, 10); !isRed(got) {
		t.Fatalf("center pixel = %+v, want red", got)
	}
	if got := img.RGBAAt(10, 2); !isWhite(got) {
		t.Fatalf("pixel far from the stroke = %+v, want white", got)
	}
}

func TestLaterStrokesPaintOver(t *testing.T) {
	h := stroke.NewHistory()
	line(h, 0, 10, 20, 10, 6, stroke.Red)
	line(h, 10, 0, 10, 20, 6, stroke.Green)
	img := Render(h, 20, 20)
	got := img.RGBAAt(10, 10)
	if got.G < 250 || got.R > 5 {
		t.Fatalf("crossing pixel = %+v, want green on top", got)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	h := stroke.NewHistory()
	line(h, 1, 1, 30, 17, 3.5, stroke.Blue)
	line(h, 5, 25, 25, 3, 7, stroke.Color{R: 10, G: 200, B: 30, A: 128})
	s := New(32, 32)
	h.Render(s)
	first := append([]byte(nil), s.Image().Pix...)
	h.Render(s)
	if !bytes.Equal(first, s.Image().Pix) {
		t.Fatalf("second render on the same surface differs")
	}
	if other := Render(h, 32, 32); !bytes.Equal(first, other.Pix) {
		t.Fatalf("render on a fresh surface differs")
	}
}

func TestClearRendersOnlyBackground(t *testing.T) {
	h := stroke.NewHistory()
	line(h, 0, 0, 16, 16, 5, stroke.Black)
	h.Clear()
	got := Render(h, 16, 16)
	want := Render(stroke.NewHistory(), 16, 16)
	if !bytes.Equal(got.Pix, want.Pix) {
		t.Fatalf("cleared render differs from blank background")
	}
}

func TestBackgroundImageCoversSurface(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 7))
	for y := 0; y < 7; y++ {
		for x := 0; x < 3; x++ {
			src.SetNRGBA(x, y, color.NRGBA{G: 255, A: 255})
		}
	}
	h := stroke.NewHistory(stroke.WithBackground(stroke.Background{Color: stroke.White, Image: src}))
	img := Render(h, 20, 10)
	for _, p := range []image.Point{{0, 0}, {19, 9}, {10, 5}} {
		got := img.RGBAAt(p.X, p.Y)
		if got.G < 250 || got.R > 5 {
			t.Fatalf("pixel %v = %+v, want green", p, got)
		}
	}
}

func TestBackgroundImageKeepsAspect(t *testing.T) {
	// left half red, right half blue; covering a square crops the sides
	src := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			c := color.NRGBA{R: 255, A: 255}
			if x >= 2 {
				c = color.NRGBA{B: 255, A: 255}
			}
			src.SetNRGBA(x, y, c)
		}
	}
	h := stroke.NewHistory(stroke.WithBackground(stroke.Background{Image: src}))
	img := Render(h, 20, 20)
	if l := img.RGBAAt(1, 10); l.R < 200 || l.B > 60 {
		t.Fatalf("left pixel = %+v, want mostly red", l)
	}
	if r := img.RGBAAt(18, 10); r.B < 200 || r.R > 60 {
		t.Fatalf("right pixel = %+v, want mostly blue", r)
	}
}

func TestRenderScaled(t *testing.T) {
	h := stroke.NewHistory()
	line(h, 2, 10, 18, 10, 2, stroke.Red)
	img := RenderScaled(h, 20, 20, 2)
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 40 {
		t.Fatalf("unexpected scaled size: %v", img.Bounds())
	}
	if got := img.RGBAAt(20, 20); !isRed(got) {
		t.Fatalf("scaled stroke pixel = %+v, want red", got)
	}
	if got := img.RGBAAt(20, 24); !isWhite(got) {
		t.Fatalf("pixel outside scaled width = %+v, want white", got)
	}
}

func TestTransparentStrokeIsSkipped(t *testing.T) {
	h := stroke.NewHistory()
	line(h, 0, 5, 10, 5, 4, stroke.Color{R: 255})
	img := Render(h, 10, 10)
	if got := img.RGBAAt(5, 5); !isWhite(got) {
		t.Fatalf("transparent stroke changed pixels: %+v", got)
	}
}
