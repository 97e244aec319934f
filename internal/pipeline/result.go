package pipeline

import (
	"image"
	"sort"
)

// Outcome is the terminal state of one extracted image.
type Outcome string

const (
	Saved        Outcome = "saved"
	Duplicate    Outcome = "duplicate"
	DecodeFailed Outcome = "decode_failed"
	WriteFailed  Outcome = "write_failed"
)

// Result records what happened to one extracted image.
type Result struct {
	PageIndex   int
	LocalIndex  int
	Name        string
	Outcome     Outcome
	Fingerprint string
	Path        string
	Crop        image.Rectangle
	Err         error
}

// Summary aggregates the results of a run.
type Summary struct {
	OutputDir string
	Results   []Result
	// PageErrors holds pages whose images could not be enumerated.
	PageErrors []error
	// Unique is the number of distinct fingerprints accepted. It exceeds
	// Saved when writes failed.
	Unique int
}

func (s *Summary) count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

func (s *Summary) Saved() int          { return s.count(Saved) }
func (s *Summary) Duplicates() int     { return s.count(Duplicate) }
func (s *Summary) DecodeFailures() int { return s.count(DecodeFailed) }
func (s *Summary) WriteFailures() int  { return s.count(WriteFailed) }

// Warnings counts the per-image and per-page errors of the run.
func (s *Summary) Warnings() int {
	return s.DecodeFailures() + s.WriteFailures() + len(s.PageErrors)
}

func (s *Summary) sort() {
	sort.SliceStable(s.Results, func(i, j int) bool {
		if s.Results[i].PageIndex != s.Results[j].PageIndex {
			return s.Results[i].PageIndex < s.Results[j].PageIndex
		}
		return s.Results[i].LocalIndex < s.Results[j].LocalIndex
	})
}
