package archive

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// document is the part of a rendering engine the PDF adapter uses. Page
// numbers are zero-based.
type document interface {
	NumPage() int
	ImageDPI(page int, dpi float64) (*image.RGBA, error)
	Close() error
}

// openDocument is swapped out in tests.
var openDocument = func(p string) (document, error) {
	doc, err := fitz.New(p)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// pdfArchive rasterises document pages to JPEG on request.
type pdfArchive struct {
	path    string
	dpi     float64
	quality int
}

func (a *pdfArchive) open() (document, error) {
	doc, err := openDocument(a.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return doc, nil
}

func (a *pdfArchive) ListImages(ctx context.Context) ([]Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := a.open()
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	n := doc.NumPage()
	images := make([]Image, n)
	for i := range n {
		images[i] = Image{Name: fmt.Sprintf("page-%d.jpg", i+1), MediaType: "image/jpeg"}
	}
	return images, nil
}

func (a *pdfArchive) ExtractImage(ctx context.Context, index int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := a.open()
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if err := checkIndex(index, doc.NumPage()); err != nil {
		return nil, err
	}

	img, err := doc.ImageDPI(index, a.dpi)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %w", ErrRender, index+1, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(a.quality)); err != nil {
		return nil, fmt.Errorf("%w: encode page %d: %w", ErrRender, index+1, err)
	}
	return &Page{MediaType: "image/jpeg", Data: buf.Bytes()}, nil
}
