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
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"image/png"
	"io"
	"strconv"

	"sketchpad/internal/stroke"
)

// svgSurface collects SVG elements in render order.
type svgSurface struct {
	buf  bytes.Buffer
	w, h int
	err  error
}

var _ stroke.Surface = (*svgSurface)(nil)

func (s *svgSurface) wf(format string, args ...any) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(&s.buf, format, args...)
}

func num(v float32) string { return strconv.FormatFloat(float64(v), 'f', -1, 32) }

// paint returns the color and opacity attributes for c under the given property.
func paint(prop string, c stroke.Color) string {
	out := fmt.Sprintf(`%s="#%02x%02x%02x"`, prop, c.R, c.G, c.B)
	if c.A != 255 {
		out += fmt.Sprintf(` %s-opacity="%s"`, prop, strconv.FormatFloat(float64(c.A)/255, 'f', 3, 64))
	}
	return out
}

func (s *svgSurface) FillBackground(bg stroke.Background) {
	s.wf("  <rect x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" %s/>\n", s.w, s.h, paint("fill", bg.Color))
	if bg.Image == nil || bg.Image.Bounds().Empty() {
		return
	}
	var img bytes.Buffer
	if err := png.Encode(&img, bg.Image); err != nil {
		if s.err == nil {
			s.err = fmt.Errorf("encode background: %w", err)
		}
		return
	}
	// slice scales the image to cover the canvas like the raster renderer
	s.wf("  <image x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" preserveAspectRatio=\"xMidYMid slice\" xlink:href=\"data:image/png;base64,%s\"/>\n",
		s.w, s.h, base64.StdEncoding.EncodeToString(img.Bytes()))
}

func (s *svgSurface) StrokePolyline(points []stroke.Point, width float32, c stroke.Color) {
	if len(points) == 0 || width <= 0 || c.A == 0 {
		return
	}
	if len(points) == 1 {
		s.wf("  <circle cx=\"%s\" cy=\"%s\" r=\"%s\" %s/>\n", num(points[0].X), num(points[0].Y), num(width/2), paint("fill", c))
		return
	}
	var pts bytes.Buffer
	for i, p := range points {
		if i > 0 {
			pts.WriteByte(' ')
		}
		pts.WriteString(num(p.X))
		pts.WriteByte(',')
		pts.WriteString(num(p.Y))
	}
	s.wf("  <polyline points=\"%s\" fill=\"none\" %s stroke-width=\"%s\" stroke-linecap=\"round\" stroke-linejoin=\"round\"/>\n",
		pts.String(), paint("stroke", c), num(width))
}

// SVG writes the drawing as an SVG document in canvas units. Strokes become
// round-capped polylines; the background image is embedded as a PNG data URI.
func SVG(w io.Writer, h *stroke.History, opt Options) error {
	opt = opt.withDefaults()
	s := &svgSurface{w: opt.Width, h: opt.Height}
	s.wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	s.wf("<svg xmlns=\"http://www.w3.org/2000/svg\" xmlns:xlink=\"http://www.w3.org/1999/xlink\" version=\"1.1\" width=\"%d\" height=\"%d\" viewBox=\"0 0 %d %d\">\n",
		opt.Width, opt.Height, opt.Width, opt.Height)
	var title bytes.Buffer
	_ = xml.EscapeText(&title, []byte(opt.Title))
	s.wf("  <title>%s</title>\n", title.String())
	h.Render(s)
	s.wf("</svg>\n")
	if s.err != nil {
		return fmt.Errorf("write svg: %w", s.err)
	}
	if _, err := w.Write(s.buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}
