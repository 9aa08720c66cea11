/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package stroke

import (
	"github.com/google/uuid"

	"sketchpad/internal/undo"
	"sketchpad/internal/vector"
)

// History owns the committed strokes, the undone strokes and the stroke
// currently being drawn. It is a plain single-goroutine structure: all calls
// are expected from the goroutine that owns the drawing surface.
type History struct {
	strokes *undo.Manager[Stroke]
	current *Stroke
	bg      Background
	newID   func() string
}

// Option customizes a History.
type Option func(*History)

// WithIDFunc replaces the stroke ID generator.
func WithIDFunc(fn func() string) Option { return func(h *History) { h.newID = fn } }

// WithMaxUndone caps how many undone strokes are kept for redo.
func WithMaxUndone(n int) Option {
	return func(h *History) { h.strokes = undo.NewManager[Stroke](undo.Config{MaxUndone: n}) }
}

// WithBackground sets the initial background.
func WithBackground(bg Background) Option { return func(h *History) { h.bg = bg } }

func NewHistory(opts ...Option) *History {
	h := &History{
		strokes: undo.NewManager[Stroke](undo.Config{}),
		bg:      Background{Color: White},
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// BeginStroke starts a new in-progress stroke at start. It reports false and
// does nothing when a stroke is already in progress.
func (h *History) BeginStroke(start Point, width float32, c Color) bool {
	if h.current != nil {
		return false
	}
	h.current = &Stroke{ID: h.newID(), Points: []Point{start}, Width: width, Color: c}
	return true
}

// Begin is BeginStroke with the width and color of b.
func (h *History) Begin(start Point, b Brush) bool { return h.BeginStroke(start, b.Width, b.Color) }

// ExtendStroke appends p to the in-progress stroke.
func (h *History) ExtendStroke(p Point) bool {
	if h.current == nil {
		return false
	}
	h.current.Points = append(h.current.Points, p)
	return true
}

// EndStroke commits the in-progress stroke and discards all undone strokes.
func (h *History) EndStroke() bool {
	if h.current == nil {
		return false
	}
	s := h.current.clone()
	h.current = nil
	h.strokes.Push(s)
	return true
}

// CancelStroke drops the in-progress stroke without committing it.
func (h *History) CancelStroke() bool {
	if h.current == nil {
		return false
	}
	h.current = nil
	return true
}

// Undo moves the most recent committed stroke onto the undone stack.
func (h *History) Undo() bool {
	_, ok := h.strokes.Undo()
	return ok
}

// Redo moves the most recently undone stroke back onto the committed strokes.
func (h *History) Redo() bool {
	_, ok := h.strokes.Redo()
	return ok
}

// Clear drops all committed, undone and in-progress strokes. The background
// is kept.
func (h *History) Clear() {
	h.strokes.Clear()
	h.current = nil
}

// Render paints the background and then every committed stroke in commit
// order onto s. It does not touch the history.
func (h *History) Render(s Surface) {
	s.FillBackground(h.bg)
	h.strokes.Each(func(_ int, st Stroke) {
		s.StrokePolyline(st.Points, st.Width, st.Color)
	})
}

// RenderLive is Render followed by the in-progress stroke, for on-screen
// feedback while a gesture is running.
func (h *History) RenderLive(s Surface) {
	h.Render(s)
	if h.current != nil {
		s.StrokePolyline(h.current.Points, h.current.Width, h.current.Color)
	}
}

// Strokes returns a copy of the committed strokes, oldest first.
func (h *History) Strokes() []Stroke { return cloneAll(h.strokes.Done()) }

// Undone returns a copy of the undone strokes, most recently undone last.
func (h *History) Undone() []Stroke { return cloneAll(h.strokes.Undone()) }

// Restore replaces the committed and undone strokes, dropping any stroke in progress.
func (h *History) Restore(committed, undone []Stroke) {
	h.current = nil
	h.strokes.Restore(cloneAll(committed), cloneAll(undone))
}

func (h *History) CanUndo() bool    { return h.strokes.CanUndo() }
func (h *History) CanRedo() bool    { return h.strokes.CanRedo() }
func (h *History) InProgress() bool { return h.current != nil }

// Current returns a copy of the in-progress stroke.
func (h *History) Current() (Stroke, bool) {
	if h.current == nil {
		return Stroke{}, false
	}
	return h.current.clone(), true
}

// Len returns the number of committed strokes.
func (h *History) Len() int {
	n, _ := h.strokes.Stats()
	return n
}

// Background returns the current background.
func (h *History) Background() Background { return h.bg }

// SetBackground replaces the background. Backgrounds are not part of the
// undo history.
func (h *History) SetBackground(bg Background) { h.bg = bg }

// Bounds returns the union of the committed stroke bounds.
func (h *History) Bounds() vector.Rect {
	var r vector.Rect
	h.strokes.Each(func(_ int, st Stroke) {
		r = r.Union(st.Bounds())
	})
	return r
}

func cloneAll(in []Stroke) []Stroke {
	if in == nil {
		return nil
	}
	out := make([]Stroke, len(in))
	for i, s := range in {
		out[i] = s.clone()
	}
	return out
}
