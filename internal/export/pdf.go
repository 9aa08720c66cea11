/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image/png"
	"io"

	"github.com/jung-kurt/gofpdf"

	"sketchpad/internal/stroke"
	"sketchpad/internal/vector"
)

// pdfSurface draws strokes as vector paths on a single PDF page whose size in
// points equals the canvas size.
type pdfSurface struct {
	pdf  *gofpdf.Fpdf
	w, h float64
	imgN int
}

var _ stroke.Surface = (*pdfSurface)(nil)

func (s *pdfSurface) FillBackground(bg stroke.Background) {
	s.pdf.SetAlpha(float64(bg.Color.A)/255, "Normal")
	s.pdf.SetFillColor(int(bg.Color.R), int(bg.Color.G), int(bg.Color.B))
	s.pdf.Rect(0, 0, s.w, s.h, "F")
	s.pdf.SetAlpha(1, "Normal")
	if bg.Image == nil {
		return
	}
	sr := bg.Image.Bounds()
	if sr.Empty() {
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, bg.Image); err != nil {
		s.pdf.SetError(fmt.Errorf("encode background: %w", err))
		return
	}
	s.imgN++
	name := fmt.Sprintf("background-%d", s.imgN)
	opt := gofpdf.ImageOptions{ImageType: "PNG"}
	s.pdf.RegisterImageOptionsReader(name, opt, &buf)
	fit := vector.Fit(float32(sr.Dx()), float32(sr.Dy()), float32(s.w), float32(s.h), true)
	p0 := fit.Apply(vector.Pt{})
	p1 := fit.Apply(vector.Pt{X: float32(sr.Dx()), Y: float32(sr.Dy())})
	s.pdf.ClipRect(0, 0, s.w, s.h, false)
	s.pdf.ImageOptions(name, float64(p0.X), float64(p0.Y), float64(p1.X-p0.X), float64(p1.Y-p0.Y), false, opt, 0, "")
	s.pdf.ClipEnd()
}

func (s *pdfSurface) StrokePolyline(points []stroke.Point, width float32, c stroke.Color) {
	if len(points) == 0 || width <= 0 || c.A == 0 {
		return
	}
	s.pdf.SetAlpha(float64(c.A)/255, "Normal")
	defer s.pdf.SetAlpha(1, "Normal")
	if len(points) == 1 {
		s.pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
		s.pdf.Circle(float64(points[0].X), float64(points[0].Y), float64(width)/2, "F")
		return
	}
	s.pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
	s.pdf.SetLineWidth(float64(width))
	s.pdf.MoveTo(float64(points[0].X), float64(points[0].Y))
	for _, p := range points[1:] {
		s.pdf.LineTo(float64(p.X), float64(p.Y))
	}
	s.pdf.DrawPath("D")
}

// PDF writes a one-page PDF with vector strokes. The background image, if
// any, is embedded as PNG and scaled to cover the page.
func PDF(w io.Writer, h *stroke.History, opt Options) error {
	opt = opt.withDefaults()
	pw, ph := float64(opt.Width), float64(opt.Height)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: pw, Ht: ph},
		OrientationStr: "P",
	})
	pdf.SetTitle(opt.Title, true)
	pdf.SetCreator("Sketchpad", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPage()
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")

	h.Render(&pdfSurface{pdf: pdf, w: pw, h: ph})

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
