//go:build fyne && !cgo

package ui

import (
	"fmt"

	"sketchpad/internal/config"
)

// Run reports that the Fyne window needs cgo (OpenGL) and a C toolchain.
func Run(_ config.AppConfig, _ string) error {
	return fmt.Errorf("the Sketchpad window requires cgo (OpenGL). Enable cgo and install a C toolchain, then run: CGO_ENABLED=1 go run -tags fyne ./cmd/sketchpad ui [drawingDir]")
}
