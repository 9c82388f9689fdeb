package pdf

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ImageMeta carries the header/footer values drawn on each content page.
type ImageMeta struct {
	CourseTitle string
	CourseCode  string
	UpdatedAt   time.Time
}

const imageMargin = 12.0

// ImageRenderer embeds a single pre-rendered preview image (a 2x-scale
// raster of the on-screen panel) across as many sequential pages as its
// height requires. Page breaks are pure height division; a break may fall
// mid-paragraph. Every content page carries the same margins: the image is
// shifted up by one usable-page-height per page.
type ImageRenderer struct{}

// NewImageRenderer builds the raster pagination renderer.
func NewImageRenderer() *ImageRenderer {
	return &ImageRenderer{}
}

// Render paginates the PNG across A4 pages and draws a repeated header and
// footer onto each page after the image is placed.
func (r *ImageRenderer) Render(png []byte, meta ImageMeta) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("decode preview image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("preview image has no pixels")
	}

	imgWidth := pageWidth - 2*imageMargin
	imgHeight := float64(cfg.Height) * imgWidth / float64(cfg.Width)
	usableHeight := pageHeight - 2*imageMargin
	pages := ContentPageCount(imgHeight, usableHeight)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(meta.CourseTitle, true)
	pdf.SetSubject(meta.CourseCode, true)
	pdf.SetAutoPageBreak(false, 0)

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("preview", opts, bytes.NewReader(png))

	for i := 0; i < pages; i++ {
		pdf.AddPage()
		y := imageMargin - float64(i)*usableHeight
		pdf.ImageOptions("preview", imageMargin, y, imgWidth, imgHeight, false, opts, 0, "")
	}

	updated := meta.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	for i := 1; i <= pages; i++ {
		pdf.SetPage(i)

		pdf.SetFont("Arial", "B", 12)
		if meta.CourseTitle != "" {
			pdf.Text(pageWidth/2-pdf.GetStringWidth(meta.CourseTitle)/2, imageMargin/2+4, meta.CourseTitle)
		}
		pdf.SetFont("Arial", "", 9)
		if meta.CourseCode != "" {
			pdf.Text(pageWidth-imageMargin-pdf.GetStringWidth(meta.CourseCode), imageMargin/2+4, meta.CourseCode)
		}

		footerY := pageHeight - imageMargin/2
		pageLabel := fmt.Sprintf("Page %d of %d", i, pages)
		pdf.Text(pageWidth/2-pdf.GetStringWidth(pageLabel)/2, footerY, pageLabel)
		pdf.Text(imageMargin, footerY, "Last updated: "+updated.Format("2006-01-02"))
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render image pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentPageCount returns how many pages an image of the given height
// occupies when each page exposes usableHeight of it. Computed by iterative
// subtraction, matching the placement loop exactly.
func ContentPageCount(imageHeight, usableHeight float64) int {
	if usableHeight <= 0 {
		return 0
	}
	pages := 0
	for remaining := imageHeight; remaining > 0; remaining -= usableHeight {
		pages++
	}
	return pages
}
