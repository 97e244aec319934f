// Package pdftest writes small PDFs with embedded images for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

// Image is one image XObject placed on a page.
type Image struct {
	// Name is the resource name; empty means "Im<i>".
	Name string
	Data []byte
	// Filter is the stream filter; empty means DCTDecode. For DCTDecode the
	// size is read from Data when Width or Height is zero.
	Filter        string
	Width, Height int
}

// Page lists the images of one page. Images get object numbers in slice
// order. Draw names the resources painted by the content stream, in order;
// nil draws every image in slice order.
type Page struct {
	Images []Image
	Draw   []string
}

// JPEG encodes img at the given quality.
func JPEG(t testing.TB, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// Write stores a PDF in a temp dir and returns its path. pages[i] lists the
// JPEG streams placed on page i, drawn in order.
func Write(t testing.TB, pages [][][]byte) string {
	t.Helper()
	ps := make([]Page, len(pages))
	for i, imgs := range pages {
		for _, data := range imgs {
			ps[i].Images = append(ps[i].Images, Image{Data: data})
		}
	}
	return WritePages(t, ps)
}

// WritePages stores a PDF built from pages in a temp dir and returns its path.
func WritePages(t testing.TB, pages []Page) string {
	t.Helper()

	var objs []string
	add := func(body string) int {
		objs = append(objs, body)
		return len(objs)
	}

	catalog := add("")
	pagesObj := add("")
	var kids []int
	for _, p := range pages {
		xobjects := ""
		var names []string
		for i, img := range p.Images {
			name := img.Name
			if name == "" {
				name = fmt.Sprintf("Im%d", i)
			}
			names = append(names, name)
			ref := add(imageObject(t, img))
			xobjects += fmt.Sprintf("/%s %d 0 R ", name, ref)
		}

		draw := p.Draw
		if draw == nil {
			draw = names
		}
		content := ""
		for i, name := range draw {
			content += fmt.Sprintf("q 100 0 0 100 %d 0 cm /%s Do Q\n", i*110, name)
		}
		contents := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
		page := add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << /XObject << %s>> >> /Contents %d 0 R >>",
			pagesObj, xobjects, contents))
		kids = append(kids, page)
	}
	kidRefs := ""
	for _, k := range kids {
		kidRefs += fmt.Sprintf("%d 0 R ", k)
	}
	objs[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj)
	objs[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kidRefs, len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, catalog, xref)

	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}

func imageObject(t testing.TB, img Image) string {
	t.Helper()
	filter := img.Filter
	if filter == "" {
		filter = "DCTDecode"
	}
	w, h := img.Width, img.Height
	if filter == "DCTDecode" && (w == 0 || h == 0) {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.Data))
		if err != nil {
			t.Fatalf("jpeg config: %v", err)
		}
		w, h = cfg.Width, cfg.Height
	}
	return fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /%s /Length %d >>\nstream\n%s\nendstream",
		w, h, filter, len(img.Data), img.Data)
}
