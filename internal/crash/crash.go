/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns panics in entry points into a crash report plus an
// autosave of the open drawing.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "sketchpad/internal/log"
	"sketchpad/internal/storage"
	"sketchpad/internal/telemetry"
	"sketchpad/internal/version"
)

// exitFn is swapped out by tests.
var exitFn = os.Exit

// uploadTimeout bounds how long the exit waits for the crash upload.
const uploadTimeout = 3 * time.Second

// Recover captures a panic, logs it with the stack, writes a crash report and
// autosaves the drawing held by dh (if any), then exits with code 2. It must
// be deferred directly:
//
//	defer crash.Recover(dh)
func Recover(dh *storage.DrawingHandle) {
	if r := recover(); r != nil {
		Handle(r, dh)
	}
}

// Handle reports an already recovered panic value. Callers whose drawing
// changes while running recover themselves and pass the current handle.
func Handle(r any, dh *storage.DrawingHandle) {
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, report, err := writeReport(dh, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err), slog.String("path", reportPath))
	}
	if dh != nil {
		if path, err := storage.AutosaveCrashSnapshot(dh); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", path))
		}
	}

	// stroke coordinates never leave the machine; only the report text does
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	if err := telemetry.UploadCrash(ctx, report); err != nil {
		l.Warn("crash upload failed", slog.Any("err", err))
	}
	cancel()

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	exitFn(2)
}

func reportDir(dh *storage.DrawingHandle) string {
	if dh == nil || dh.Root == "" {
		return os.TempDir()
	}
	dir := filepath.Join(dh.Root, storage.BackupsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.TempDir()
	}
	return dir
}

func writeReport(dh *storage.DrawingHandle, panicVal any, stack []byte) (string, []byte, error) {
	now := time.Now()
	path := filepath.Join(reportDir(dh), fmt.Sprintf("crash-%s.log", now.Format("20060102-150405.000")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Sketchpad Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if dh != nil {
		_, _ = fmt.Fprintf(&buf, "DrawingRoot: %s\n", dh.Root)
		_, _ = fmt.Fprintf(&buf, "Document: %s\n", dh.DocumentPath)
		_, _ = fmt.Fprintf(&buf, "Strokes: %d committed, %d undone\n", len(dh.Doc.Strokes), len(dh.Doc.Undone))
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, buf.Bytes(), err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, buf.Bytes(), err
	}
	_ = f.Sync()
	return path, buf.Bytes(), nil
}
