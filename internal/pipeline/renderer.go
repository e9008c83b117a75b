package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Renderer converts a decoded image into a terminal-drawable string for a
// target cell size. Pixel-to-glyph conversion is owned by the renderer; the
// pipeline only hands over image bytes and dimensions.
type Renderer interface {
	Render(ctx context.Context, imageData []byte, cols, rows int) (string, error)
}

// ChafaRenderer shells out to the chafa binary
type ChafaRenderer struct {
	// Binary overrides the executable name; defaults to "chafa".
	Binary string
	// Timeout bounds a single render
	Timeout time.Duration
}

// NewChafaRenderer returns a renderer using the chafa binary from PATH
func NewChafaRenderer() *ChafaRenderer {
	return &ChafaRenderer{Binary: "chafa", Timeout: 15 * time.Second}
}

// Render pipes the image through chafa and returns its ANSI output
func (r *ChafaRenderer) Render(ctx context.Context, imageData []byte, cols, rows int) (string, error) {
	bin := r.Binary
	if bin == "" {
		bin = "chafa"
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, fmt.Sprintf("--size=%dx%d", cols, rows), "-f", "symbols")
	cmd.Stdin = bytes.NewReader(imageData)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("chafa render failed: %s", detail)
	}
	return stdout.String(), nil
}
