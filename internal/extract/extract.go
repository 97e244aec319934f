// Package extract enumerates the raster images embedded in a PDF, page by page.
package extract

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// ErrDocumentUnreadable means the PDF could not be opened, parsed or
	// decrypted, or has no pages. It is fatal for a run.
	ErrDocumentUnreadable = errors.New("document unreadable")
	// ErrConsumed is yielded when Images is ranged over a second time.
	ErrConsumed = errors.New("document images already consumed")
)

var disableConfigDir sync.Once

// RawImage is one embedded image stream as stored in the document.
type RawImage struct {
	PageIndex  int    // 0-based
	LocalIndex int    // 0-based, restarts on every page
	Data       []byte // encoded image bytes
	Ext        string // file type declared by the PDF layer (png, jpg, tif, ...)
	Name       string // resource name on the page
	// Err is set when the stream could not be read out of the document.
	// Data is then empty and the image counts as undecodable.
	Err error
}

// PageError reports a page whose images could not be read. Enumeration
// continues with the next page.
type PageError struct {
	PageIndex int
	Err       error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.PageIndex, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

type Options struct {
	// Password is tried as both user and owner password for encrypted files.
	Password string
}

// Document is a validated PDF ready for a single pass over its images.
type Document struct {
	path     string
	ctx      *model.Context
	consumed atomic.Bool
}

func newConfiguration(password string) *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.Cmd = model.EXTRACTIMAGES
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}
	return conf
}

// Open reads and validates the PDF at path. Every failure wraps
// ErrDocumentUnreadable.
func Open(path string, opts Options) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentUnreadable, err)
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, newConfiguration(opts.Password))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDocumentUnreadable, path, err)
	}
	if ctx.PageCount == 0 {
		return nil, fmt.Errorf("%w: %s has no pages", ErrDocumentUnreadable, path)
	}
	return &Document{path: path, ctx: ctx}, nil
}

func (d *Document) Path() string { return d.path }

func (d *Document) PageCount() int { return d.ctx.PageCount }

// Images yields the embedded images in page order. Within a page images
// follow the order the content stream draws them; images it never draws come
// last, by object number. An image whose stream cannot be read is yielded
// with RawImage.Err set. A page that fails as a whole yields a *PageError
// and the walk moves on. The sequence can be consumed once.
func (d *Document) Images() iter.Seq2[RawImage, error] {
	return func(yield func(RawImage, error) bool) {
		if d.consumed.Swap(true) {
			yield(RawImage{}, ErrConsumed)
			return
		}
		for pageNr := 1; pageNr <= d.ctx.PageCount; pageNr++ {
			images, err := d.pageImages(pageNr)
			if err != nil {
				if !yield(RawImage{PageIndex: pageNr - 1}, &PageError{PageIndex: pageNr - 1, Err: err}) {
					return
				}
				continue
			}
			for _, img := range images {
				if !yield(img, nil) {
					return
				}
			}
		}
	}
}

func (d *Document) pageImages(pageNr int) ([]RawImage, error) {
	objNrs := pdfcpu.ImageObjNrs(d.ctx, pageNr)
	if len(objNrs) == 0 {
		return nil, nil
	}

	names := make(map[int]string, len(objNrs))
	for _, objNr := range objNrs {
		if obj := d.ctx.Optimize.ImageObjects[objNr]; obj != nil {
			names[objNr] = obj.ResourceNames[pageNr-1]
		}
	}

	drawn, err := d.drawOrder(pageNr)
	if err != nil {
		return nil, err
	}
	sortByDrawOrder(objNrs, names, drawn)

	images := make([]RawImage, 0, len(objNrs))
	for _, objNr := range objNrs {
		raw := RawImage{
			PageIndex:  pageNr - 1,
			LocalIndex: len(images),
			Name:       names[objNr],
		}
		raw.Data, raw.Ext, raw.Err = d.readImage(pageNr, objNr)
		images = append(images, raw)
	}
	return images, nil
}

// readImage returns the stream of one image object. A failure only affects
// that image.
func (d *Document) readImage(pageNr, objNr int) ([]byte, string, error) {
	obj := d.ctx.Optimize.ImageObjects[objNr]
	if obj == nil || obj.ImageDict == nil {
		return nil, "", fmt.Errorf("image object %d not found", objNr)
	}
	img, err := pdfcpu.ExtractImage(d.ctx, obj.ImageDict, false, obj.ResourceNames[pageNr-1], objNr, false)
	if err != nil {
		return nil, "", fmt.Errorf("extract image object %d: %w", objNr, err)
	}
	if img == nil || img.Reader == nil {
		return nil, "", fmt.Errorf("image object %d: unsupported stream", objNr)
	}
	data, err := io.ReadAll(img)
	if err != nil {
		return nil, img.FileType, fmt.Errorf("read image object %d: %w", objNr, err)
	}
	return data, img.FileType, nil
}

// drawOrder maps each XObject name painted by the page content to the
// position of its first "Do".
func (d *Document) drawOrder(pageNr int) (map[string]int, error) {
	r, err := pdfcpu.ExtractPageContent(d.ctx, pageNr)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if r == nil {
		return nil, nil
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return xObjectDraws(content), nil
}

var doOperator = regexp.MustCompile(`/([^\s/\[\]()<>{}%]+)\s+Do\b`)

func xObjectDraws(content []byte) map[string]int {
	order := make(map[string]int)
	for _, m := range doOperator.FindAllSubmatch(content, -1) {
		name := string(m[1])
		if _, ok := order[name]; !ok {
			order[name] = len(order)
		}
	}
	return order
}

// sortByDrawOrder puts drawn images first, in the order the content paints
// them, and the rest after them by object number.
func sortByDrawOrder(objNrs []int, names map[int]string, drawn map[string]int) {
	sort.SliceStable(objNrs, func(i, j int) bool {
		pi, iDrawn := drawn[names[objNrs[i]]]
		pj, jDrawn := drawn[names[objNrs[j]]]
		switch {
		case iDrawn && jDrawn && pi != pj:
			return pi < pj
		case iDrawn != jDrawn:
			return iDrawn
		}
		return objNrs[i] < objNrs[j]
	})
}
