/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import "testing"

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager[string](Config{})
	m.Push("a")
	m.Push("b")
	if done, undone := m.Stats(); done != 2 || undone != 0 {
		t.Fatalf("expected 2 done and 0 undone, got done=%d undone=%d", done, undone)
	}
	s, ok := m.Undo()
	if !ok || s != "b" {
		t.Fatalf("undo expected 'b', got ok=%v v=%q", ok, s)
	}
	s, ok = m.Redo()
	if !ok || s != "b" {
		t.Fatalf("redo expected 'b', got ok=%v v=%q", ok, s)
	}
	if got := m.Done(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected done stack: %v", got)
	}
}

func TestPushInvalidatesRedo(t *testing.T) {
	m := NewManager[int](Config{})
	m.Push(1)
	m.Push(2)
	m.Undo()
	m.Push(3)
	if m.CanRedo() {
		t.Fatalf("expected redo to be invalidated by push")
	}
	if _, ok := m.Redo(); ok {
		t.Fatalf("redo must be a no-op after push")
	}
	if got := m.Done(); len(got) != 2 || got[1] != 3 {
		t.Fatalf("unexpected done stack: %v", got)
	}
}

func TestEmptyStacksAreNoOps(t *testing.T) {
	m := NewManager[int](Config{})
	if _, ok := m.Undo(); ok {
		t.Fatalf("undo on empty manager should report false")
	}
	if _, ok := m.Redo(); ok {
		t.Fatalf("redo on empty manager should report false")
	}
}

func TestClearAndStats(t *testing.T) {
	m := NewManager[int](Config{})
	m.Push(1)
	m.Push(2)
	m.Undo()
	m.Clear()
	if done, undone := m.Stats(); done != 0 || undone != 0 {
		t.Fatalf("expected cleared stats to be zero, got done=%d undone=%d", done, undone)
	}
}

func TestMaxUndoneCap(t *testing.T) {
	m := NewManager[int](Config{MaxUndone: 2})
	for i := 0; i < 5; i++ {
		m.Push(i)
	}
	for i := 0; i < 5; i++ {
		m.Undo()
	}
	u := m.Undone()
	if len(u) != 2 {
		t.Fatalf("expected MaxUndone cap to limit to 2, got %d", len(u))
	}
	// most recently undone (0) stays on top, 1 below it
	if u[0] != 1 || u[1] != 0 {
		t.Fatalf("unexpected undone order: %v", u)
	}
}

func TestRestoreCopiesInput(t *testing.T) {
	done := []int{1, 2}
	m := NewManager[int](Config{})
	m.Restore(done, []int{3})
	done[0] = 99
	if got := m.Done(); got[0] != 1 {
		t.Fatalf("restore must copy input, got %v", got)
	}
	if v, ok := m.Redo(); !ok || v != 3 {
		t.Fatalf("expected redo of restored item, got %v %v", v, ok)
	}
}
