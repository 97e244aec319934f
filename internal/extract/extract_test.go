package extract

import (
	"bytes"
	"compress/zlib"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"pixf/internal/pdftest"
)

func jpegBytes(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	return pdftest.JPEG(t, img, 90)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.pdf"), Options{})
	if !errors.Is(err, ErrDocumentUnreadable) {
		t.Errorf("Expected ErrDocumentUnreadable, got %v", err)
	}
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf at all"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	_, err := Open(path, Options{})
	if !errors.Is(err, ErrDocumentUnreadable) {
		t.Errorf("Expected ErrDocumentUnreadable, got %v", err)
	}
}

func TestImagesOrder(t *testing.T) {
	red := jpegBytes(t, color.RGBA{255, 0, 0, 255})
	green := jpegBytes(t, color.RGBA{0, 255, 0, 255})
	blue := jpegBytes(t, color.RGBA{0, 0, 255, 255})
	path := pdftest.Write(t, [][][]byte{{red, green}, {}, {blue}})

	doc, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if doc.PageCount() != 3 {
		t.Fatalf("Expected 3 pages, got %d", doc.PageCount())
	}

	type pos struct{ page, local int }
	var got []pos
	for img, err := range doc.Images() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(img.Data) == 0 {
			t.Errorf("image %d_%d has no data", img.PageIndex, img.LocalIndex)
		}
		got = append(got, pos{img.PageIndex, img.LocalIndex})
	}

	want := []pos{{0, 0}, {0, 1}, {2, 0}}
	if len(got) != len(want) {
		t.Fatalf("Expected %d images, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("image %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func collect(t *testing.T, path string) []RawImage {
	t.Helper()
	doc, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	var images []RawImage
	for img, err := range doc.Images() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		images = append(images, img)
	}
	return images
}

func flateRGB(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	for i := 0; i < w*h; i++ {
		zw.Write([]byte{c.R, c.G, c.B})
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib: %v", err)
	}
	return buf.Bytes()
}

func TestImagesCorruptStreamKeepsSiblings(t *testing.T) {
	path := pdftest.WritePages(t, []pdftest.Page{{Images: []pdftest.Image{
		{Name: "Im0", Data: jpegBytes(t, color.RGBA{255, 0, 0, 255})},
		{Name: "Im1", Data: []byte("these bytes are not zlib"), Filter: "FlateDecode", Width: 16, Height: 16},
		{Name: "Im2", Data: flateRGB(t, 16, 16, color.RGBA{0, 0, 255, 255}), Filter: "FlateDecode", Width: 16, Height: 16},
	}}})

	images := collect(t, path)
	if len(images) != 3 {
		t.Fatalf("Expected 3 images, got %d", len(images))
	}
	for i, img := range images {
		if img.PageIndex != 0 || img.LocalIndex != i {
			t.Errorf("image %d: unexpected position %d_%d", i, img.PageIndex, img.LocalIndex)
		}
	}
	if images[0].Err != nil || len(images[0].Data) == 0 {
		t.Errorf("Expected JPEG to be read, got err %v", images[0].Err)
	}
	if images[1].Err == nil {
		t.Error("Expected the corrupt stream to carry an error")
	}
	if images[1].Name != "Im1" {
		t.Errorf("Expected Im1 for the corrupt stream, got %s", images[1].Name)
	}
	if images[2].Err != nil || len(images[2].Data) == 0 {
		t.Errorf("Expected Flate image to be read, got err %v", images[2].Err)
	}
}

func TestImagesFollowDrawOrder(t *testing.T) {
	path := pdftest.WritePages(t, []pdftest.Page{{
		Images: []pdftest.Image{
			{Name: "B", Data: jpegBytes(t, color.RGBA{0, 255, 0, 255})},
			{Name: "A", Data: jpegBytes(t, color.RGBA{255, 0, 0, 255})},
		},
		Draw: []string{"A", "B"},
	}})

	images := collect(t, path)
	if len(images) != 2 {
		t.Fatalf("Expected 2 images, got %d", len(images))
	}
	if images[0].Name != "A" || images[1].Name != "B" {
		t.Errorf("Expected [A B], got [%s %s]", images[0].Name, images[1].Name)
	}
}

func TestXObjectDraws(t *testing.T) {
	content := []byte("q 1 0 0 1 0 0 cm /Fm1 Do Q\nq /Im7 Do Q /Im2\nDo /Fm1 Do BT (/Im9 Tj) ET")
	got := xObjectDraws(content)
	want := map[string]int{"Fm1": 0, "Im7": 1, "Im2": 2}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for name, pos := range want {
		if got[name] != pos {
			t.Errorf("%s: expected position %d, got %d", name, pos, got[name])
		}
	}
}

func TestSortByDrawOrder(t *testing.T) {
	objNrs := []int{9, 4, 12, 6}
	names := map[int]string{4: "Im0", 6: "Im1", 9: "Im2", 12: "Im3"}
	drawn := map[string]int{"Im3": 0, "Im1": 1}

	sortByDrawOrder(objNrs, names, drawn)

	want := []int{12, 6, 4, 9}
	for i := range want {
		if objNrs[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, objNrs)
		}
	}
}

func TestImagesSinglePass(t *testing.T) {
	path := pdftest.Write(t, [][][]byte{{jpegBytes(t, color.RGBA{10, 20, 30, 255})}})
	doc, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for range doc.Images() {
	}

	var errs []error
	for _, err := range doc.Images() {
		errs = append(errs, err)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrConsumed) {
		t.Errorf("Expected a single ErrConsumed, got %v", errs)
	}
}

func TestOpenWithoutPages(t *testing.T) {
	path := pdftest.Write(t, nil)
	_, err := Open(path, Options{})
	if !errors.Is(err, ErrDocumentUnreadable) {
		t.Errorf("Expected ErrDocumentUnreadable, got %v", err)
	}
}

func TestUnlockMissingFile(t *testing.T) {
	dir := t.TempDir()
	err := Unlock(filepath.Join(dir, "nope.pdf"), filepath.Join(dir, "out.pdf"), "")
	if !errors.Is(err, ErrDocumentUnreadable) {
		t.Errorf("Expected ErrDocumentUnreadable, got %v", err)
	}
}

func TestPageErrorUnwrap(t *testing.T) {
	cause := errors.New("broken stream")
	err := error(&PageError{PageIndex: 3, Err: cause})
	if !errors.Is(err, cause) {
		t.Error("PageError should unwrap to its cause")
	}
	if err.Error() != "page 3: broken stream" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}
