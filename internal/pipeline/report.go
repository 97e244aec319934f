package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type reportImage struct {
	Page        int     `yaml:"page"`
	Index       int     `yaml:"index"`
	Name        string  `yaml:"name"`
	Outcome     Outcome `yaml:"outcome"`
	Fingerprint string  `yaml:"fingerprint,omitempty"`
	Path        string  `yaml:"path,omitempty"`
	Crop        string  `yaml:"crop,omitempty"`
	Error       string  `yaml:"error,omitempty"`
}

type report struct {
	Document       string        `yaml:"document"`
	OutputDir      string        `yaml:"output_dir"`
	Saved          int           `yaml:"saved"`
	Unique         int           `yaml:"unique"`
	Duplicates     int           `yaml:"duplicates"`
	DecodeFailures int           `yaml:"decode_failures"`
	WriteFailures  int           `yaml:"write_failures"`
	PageErrors     []string      `yaml:"page_errors,omitempty"`
	Images         []reportImage `yaml:"images"`
}

// WriteReport stores the per-image decisions of a run as YAML at path.
func WriteReport(path, document string, s *Summary) error {
	r := report{
		Document:       document,
		OutputDir:      s.OutputDir,
		Saved:          s.Saved(),
		Unique:         s.Unique,
		Duplicates:     s.Duplicates(),
		DecodeFailures: s.DecodeFailures(),
		WriteFailures:  s.WriteFailures(),
		Images:         make([]reportImage, 0, len(s.Results)),
	}
	for _, err := range s.PageErrors {
		r.PageErrors = append(r.PageErrors, err.Error())
	}
	for _, res := range s.Results {
		img := reportImage{
			Page:        res.PageIndex,
			Index:       res.LocalIndex,
			Name:        res.Name,
			Outcome:     res.Outcome,
			Fingerprint: res.Fingerprint,
			Path:        res.Path,
		}
		if !res.Crop.Empty() {
			img.Crop = res.Crop.String()
		}
		if res.Err != nil {
			img.Error = res.Err.Error()
		}
		r.Images = append(r.Images, img)
	}

	data, err := yaml.Marshal(&r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
