/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo provides a two-stack undo/redo engine over immutable values.
//
// The "done" stack holds applied items oldest first, the "undone" stack holds
// reverted items with the most recently undone on top. Pushing a new item
// invalidates everything that was undone.
package undo

// Config controls retention of the redo side.
type Config struct {
	// MaxUndone limits how many undone items are kept for redo (0 means unlimited).
	// When exceeded, the oldest undone items are dropped first.
	MaxUndone int
}

// Manager is not safe for concurrent use; callers serialize access.
type Manager[T any] struct {
	cfg    Config
	done   []T
	undone []T
}

func NewManager[T any](cfg Config) *Manager[T] {
	if cfg.MaxUndone < 0 {
		cfg.MaxUndone = 0
	}
	return &Manager[T]{cfg: cfg}
}

// Push appends v to the done stack and clears the undone stack.
func (m *Manager[T]) Push(v T) {
	m.done = append(m.done, v)
	clear(m.undone)
	m.undone = m.undone[:0]
}

// Undo moves the top of the done stack onto the undone stack.
func (m *Manager[T]) Undo() (T, bool) {
	var zero T
	n := len(m.done)
	if n == 0 {
		return zero, false
	}
	v := m.done[n-1]
	m.done[n-1] = zero
	m.done = m.done[:n-1]
	m.undone = append(m.undone, v)
	m.enforceCaps()
	return v, true
}

// Redo moves the top of the undone stack back onto the done stack.
func (m *Manager[T]) Redo() (T, bool) {
	var zero T
	n := len(m.undone)
	if n == 0 {
		return zero, false
	}
	v := m.undone[n-1]
	m.undone[n-1] = zero
	m.undone = m.undone[:n-1]
	m.done = append(m.done, v)
	return v, true
}

// Clear empties both stacks.
func (m *Manager[T]) Clear() {
	m.done = nil
	m.undone = nil
}

// Restore replaces both stacks with copies of the given slices.
func (m *Manager[T]) Restore(done, undone []T) {
	m.done = append([]T(nil), done...)
	m.undone = append([]T(nil), undone...)
	m.enforceCaps()
}

// Done returns a copy of the done stack, oldest first.
func (m *Manager[T]) Done() []T { return append([]T(nil), m.done...) }

// Undone returns a copy of the undone stack, most recently undone last.
func (m *Manager[T]) Undone() []T { return append([]T(nil), m.undone...) }

// Each calls fn for every done item in order without copying.
func (m *Manager[T]) Each(fn func(i int, v T)) {
	for i, v := range m.done {
		fn(i, v)
	}
}

func (m *Manager[T]) CanUndo() bool { return len(m.done) > 0 }
func (m *Manager[T]) CanRedo() bool { return len(m.undone) > 0 }

// Stats returns stack depths for diagnostics.
func (m *Manager[T]) Stats() (done int, undone int) { return len(m.done), len(m.undone) }

func (m *Manager[T]) enforceCaps() {
	if m.cfg.MaxUndone > 0 && len(m.undone) > m.cfg.MaxUndone {
		toDrop := len(m.undone) - m.cfg.MaxUndone
		m.undone = append([]T(nil), m.undone[toDrop:]...)
	}
}
