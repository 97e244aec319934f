// Package pipeline runs extracted images through normalization and
// deduplication and saves the unique ones.
//
// Extraction runs in its own goroutine. Every image then gets its own task,
// bounded by the worker count. By default the first task to claim a
// fingerprint wins, so which of several duplicates is saved depends on
// completion order and may change between runs. With Deterministic set,
// claims are committed in extraction order and the first extracted duplicate
// always wins; decoding, hashing and writing stay parallel.
package pipeline

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"pixf/internal/extract"
	"pixf/internal/imaging"
)

// Source yields raw images in extraction order. *extract.Document is one.
type Source interface {
	Images() iter.Seq2[extract.RawImage, error]
}

type Options struct {
	Workers       int
	Deterministic bool
}

type Pipeline struct {
	normalizer    imaging.Normalizer
	sink          *Sink
	workers       int
	deterministic bool
	log           *slog.Logger
}

func New(normalizer imaging.Normalizer, sink *Sink, opts Options, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		normalizer:    normalizer,
		sink:          sink,
		workers:       workers,
		deterministic: opts.Deterministic,
		log:           log,
	}
}

// Run processes every image of src and waits for all of them. Per-image
// failures are recorded in the summary, not returned. The error is non-nil
// only when the source itself fails or ctx is cancelled; the summary then
// covers the images finished so far.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Summary, error) {
	records := make(chan extract.RawImage, p.workers)
	var pageErrs []error
	var sourceErr error

	go func() {
		defer close(records)
		for raw, err := range src.Images() {
			if err != nil {
				var pe *extract.PageError
				if errors.As(err, &pe) {
					p.log.Warn("Failed to read page images", "page", pe.PageIndex, "err", pe.Err)
					pageErrs = append(pageErrs, err)
					continue
				}
				sourceErr = err
				return
			}
			p.log.Debug("Found image", "page", raw.PageIndex, "index", raw.LocalIndex, "resource", raw.Name, "type", raw.Ext, "bytes", len(raw.Data))
			select {
			case records <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		g       errgroup.Group
		mu      sync.Mutex
		results []Result
		found   int
	)
	g.SetLimit(p.workers)

	prev := make(chan struct{})
	close(prev)
	for raw := range records {
		if ctx.Err() != nil {
			continue
		}
		found++

		var turn <-chan struct{}
		var done chan struct{}
		if p.deterministic {
			turn, done = prev, make(chan struct{})
			prev = done
		}

		g.Go(func() error {
			r := p.process(raw, turn, done)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{
		OutputDir:  p.sink.dir,
		Results:    results,
		PageErrors: pageErrs,
		Unique:     p.sink.set.Len(),
	}
	summary.sort()
	p.log.Info("Pipeline finished", "images", found, "saved", summary.Saved(), "duplicates", summary.Duplicates(), "warnings", summary.Warnings())

	if sourceErr != nil {
		return summary, sourceErr
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// process takes one image to its terminal outcome. In deterministic mode
// turn is closed once the previous image has made its claim, and done must
// be closed once this one has.
func (p *Pipeline) process(raw extract.RawImage, turn <-chan struct{}, done chan struct{}) Result {
	img, err := p.normalizer.Normalize(raw)
	if err != nil {
		if done != nil {
			<-turn
			close(done)
		}
		p.log.Warn("Failed to decode image", "page", raw.PageIndex, "index", raw.LocalIndex, "resource", raw.Name, "type", raw.Ext, "err", err)
		return Result{
			PageIndex:  raw.PageIndex,
			LocalIndex: raw.LocalIndex,
			Name:       imaging.CandidateName(raw.PageIndex, raw.LocalIndex),
			Outcome:    DecodeFailed,
			Err:        err,
		}
	}

	if done == nil {
		return p.sink.Consume(img)
	}
	<-turn
	claimed := p.sink.Claim(img)
	close(done)
	if !claimed {
		return p.sink.duplicate(img)
	}
	return p.sink.Save(img)
}
