package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRenderer counts calls and returns distinct frames without shelling out
type stubRenderer struct {
	calls int
	fail  error
}

func (s *stubRenderer) Render(_ context.Context, _ []byte, cols, rows int) (string, error) {
	s.calls++
	if s.fail != nil {
		return "", s.fail
	}
	return fmt.Sprintf("frame-%d(%dx%d)", s.calls, cols, rows), nil
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeGIF(t *testing.T, frames int, delays []int) []byte {
	t.Helper()
	g := &gif.GIF{}
	palette := color.Palette{color.Black, color.White}
	for i := 0; i < frames; i++ {
		g.Image = append(g.Image, image.NewPaletted(image.Rect(0, 0, 10, 10), palette))
		g.Delay = append(g.Delay, delays[i])
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func TestRenderTarget(t *testing.T) {
	// 100x100 source into 84 columns: width would allow 0.8x but the row
	// cap wins, and rows are halved for the cell aspect ratio.
	cols, rows := renderTarget(100, 100, 84)
	assert.Equal(t, 50, cols)
	assert.Equal(t, 25, rows)

	// Wide image is limited by columns.
	cols, rows = renderTarget(200, 20, 44)
	assert.Equal(t, 40, cols)
	assert.Equal(t, 2, rows)

	// Degenerate window still yields at least one cell.
	cols, rows = renderTarget(1000, 1000, 2)
	assert.GreaterOrEqual(t, cols, 1)
	assert.GreaterOrEqual(t, rows, 1)
}

func TestIsGIF(t *testing.T) {
	assert.True(t, isGIF([]byte("GIF89a-rest")))
	assert.True(t, isGIF([]byte("GIF87a-rest")))
	assert.False(t, isGIF([]byte("PNG")))
	assert.False(t, isGIF(nil))
}

func TestDecodeStaticImage(t *testing.T) {
	r := &stubRenderer{}
	payload, err := decodeImage(context.Background(), r, encodePNG(t, 40, 20), 80)
	require.NoError(t, err)

	require.Equal(t, 1, payload.FrameCount())
	assert.False(t, payload.Animated())
	assert.Equal(t, 1, r.calls)
}

func TestDecodeAnimatedGIF(t *testing.T) {
	r := &stubRenderer{}
	data := encodeGIF(t, 3, []int{20, 0, 5})

	payload, err := decodeImage(context.Background(), r, data, 80)
	require.NoError(t, err)

	require.Equal(t, 3, payload.FrameCount())
	assert.True(t, payload.Animated())
	// GIF delays are hundredths of a second; zero falls back to 100ms.
	assert.Equal(t, 200*time.Millisecond, payload.Delay(0))
	assert.Equal(t, 100*time.Millisecond, payload.Delay(1))
	assert.Equal(t, 50*time.Millisecond, payload.Delay(2))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	r := &stubRenderer{}
	_, err := decodeImage(context.Background(), r, []byte("not an image"), 80)
	require.Error(t, err)
	assert.Zero(t, r.calls)
}

func TestDecodePropagatesRenderError(t *testing.T) {
	r := &stubRenderer{fail: fmt.Errorf("chafa exploded")}
	_, err := decodeImage(context.Background(), r, encodePNG(t, 10, 10), 80)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chafa exploded")
}
