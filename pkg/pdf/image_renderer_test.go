package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContentPageCount(t *testing.T) {
	usable := 273.0

	require.Equal(t, 1, ContentPageCount(100, usable))
	require.Equal(t, 1, ContentPageCount(usable, usable))
	require.Equal(t, 2, ContentPageCount(usable+1, usable))
	require.Equal(t, 4, ContentPageCount(usable*3+0.5, usable))
	require.Equal(t, 0, ContentPageCount(100, 0))
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.Black)
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestImageRendererProducesPDF(t *testing.T) {
	r := NewImageRenderer()

	out, err := r.Render(testPNG(t, 800, 6000), ImageMeta{
		CourseTitle: "Algorithms",
		CourseCode:  "CS101",
		UpdatedAt:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestImageRendererRejectsGarbage(t *testing.T) {
	r := NewImageRenderer()

	_, err := r.Render([]byte("not a png"), ImageMeta{})
	require.Error(t, err)
}
