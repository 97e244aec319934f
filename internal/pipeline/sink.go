package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"pixf/internal/dedup"
	"pixf/internal/imaging"
)

var (
	// ErrOutputDirUnavailable means the output directory could not be created.
	ErrOutputDirUnavailable = errors.New("output directory unavailable")
	// ErrWrite marks an image that was unique but could not be saved.
	ErrWrite = errors.New("image write failed")
)

// PrepareOutputDir creates dir if it does not exist yet.
func PrepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputDirUnavailable, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOutputDirUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrOutputDirUnavailable, dir)
	}
	return nil
}

// Sink writes images whose fingerprint it can claim and drops the rest.
type Sink struct {
	dir     string
	encoder imaging.Encoder
	set     *dedup.Set
	log     *slog.Logger
}

func NewSink(dir string, encoder imaging.Encoder, set *dedup.Set, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{dir: dir, encoder: encoder, set: set, log: log}
}

// Consume claims and saves img in one call.
func (s *Sink) Consume(img *imaging.NormalizedImage) Result {
	if !s.Claim(img) {
		return s.duplicate(img)
	}
	return s.Save(img)
}

// Claim reports whether img carries a fingerprint not seen before in this run.
func (s *Sink) Claim(img *imaging.NormalizedImage) bool {
	return s.set.Claim(img.Fingerprint)
}

func (s *Sink) duplicate(img *imaging.NormalizedImage) Result {
	s.log.Debug("Duplicate image discarded", "page", img.PageIndex, "index", img.LocalIndex, "name", img.Name, "fingerprint", img.Fingerprint.String())
	return s.result(img, Duplicate, "", nil)
}

// Save encodes img and writes it to <dir>/<name><ext>. Callers must have
// claimed the fingerprint first.
func (s *Sink) Save(img *imaging.NormalizedImage) Result {
	path := filepath.Join(s.dir, img.Name+s.encoder.Extension())
	if err := s.write(img, path); err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
		s.log.Warn("Failed to save image", "page", img.PageIndex, "index", img.LocalIndex, "name", img.Name, "err", err)
		return s.result(img, WriteFailed, "", err)
	}
	s.log.Debug("Image saved", "page", img.PageIndex, "index", img.LocalIndex, "path", path)
	return s.result(img, Saved, path, nil)
}

func (s *Sink) write(img *imaging.NormalizedImage, path string) error {
	buf := imaging.GetBuffer()
	defer imaging.PutBuffer(buf)

	if err := s.encoder.Encode(buf, img.Image); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func (s *Sink) result(img *imaging.NormalizedImage, o Outcome, path string, err error) Result {
	return Result{
		PageIndex:   img.PageIndex,
		LocalIndex:  img.LocalIndex,
		Name:        img.Name,
		Outcome:     o,
		Fingerprint: img.Fingerprint.String(),
		Path:        path,
		Crop:        img.Crop,
		Err:         err,
	}
}
