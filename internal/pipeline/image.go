package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"time"

	_ "image/jpeg"

	"github.com/driftchat/drift/internal/models"
)

// maxRenderRows caps the vertical size of an image preview in cells
const maxRenderRows = 50

// renderTarget scales source pixel dimensions into a terminal cell box.
// Cells are roughly twice as tall as wide, so the row count is halved to
// keep the aspect ratio.
func renderTarget(srcW, srcH, maxCols int) (cols, rows int) {
	usable := maxCols - 4
	if usable < 1 {
		usable = 1
	}
	wScale := float64(usable) / float64(srcW)
	hScale := float64(maxRenderRows) / float64(srcH)
	scale := wScale
	if hScale < scale {
		scale = hScale
	}
	cols = int(float64(srcW)*scale + 0.5)
	rows = int(float64(srcH)*scale*0.5 + 0.5)
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

func isGIF(data []byte) bool {
	return len(data) >= 6 && (bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")))
}

// decodeImage renders image bytes to terminal cells. Animated GIFs produce
// one rendered frame per source frame with the frame's declared delay;
// everything else produces a single frame.
func decodeImage(ctx context.Context, r Renderer, data []byte, maxCols int) (*models.RenderPayload, error) {
	if isGIF(data) {
		return decodeGIF(ctx, r, data, maxCols)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}
	cols, rows := renderTarget(cfg.Width, cfg.Height, maxCols)
	frame, err := r.Render(ctx, data, cols, rows)
	if err != nil {
		return nil, err
	}
	return &models.RenderPayload{Frames: []string{frame}}, nil
}

func decodeGIF(ctx context.Context, r Renderer, data []byte, maxCols int) (*models.RenderPayload, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gif decode failed: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("gif has no frames")
	}

	bounds := g.Image[0].Bounds()
	cols, rows := renderTarget(bounds.Dx(), bounds.Dy(), maxCols)

	payload := &models.RenderPayload{}
	for i, frame := range g.Image {
		var buf bytes.Buffer
		if err := png.Encode(&buf, frame); err != nil {
			return nil, fmt.Errorf("frame %d encode failed: %w", i, err)
		}
		rendered, err := r.Render(ctx, buf.Bytes(), cols, rows)
		if err != nil {
			return nil, err
		}
		if rendered == "" {
			// A blank frame would flicker; keep the previous one on screen.
			continue
		}
		payload.Frames = append(payload.Frames, rendered)

		// GIF delays are in hundredths of a second.
		delay := 100 * time.Millisecond
		if i < len(g.Delay) && g.Delay[i] > 0 {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		payload.Delays = append(payload.Delays, delay)
	}
	if len(payload.Frames) == 0 {
		return nil, fmt.Errorf("gif rendered no frames")
	}
	return payload, nil
}
