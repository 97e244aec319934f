package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pixf/internal/config"
	"pixf/internal/dedup"
	"pixf/internal/extract"
	"pixf/internal/imaging"
	"pixf/internal/pipeline"
)

// ErrWriteFailures is returned in strict mode when some unique images could
// not be saved.
var ErrWriteFailures = errors.New("some images could not be written")

func NewRootCmd() *cobra.Command {
	var configPath string
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "pixf <pdf-file>",
		Short: "Export the distinct images embedded in a PDF",
		Long: `pixf extracts every raster image embedded in a PDF, trims empty margins,
drops images that look the same as one already exported and saves the rest.

Duplicates are found with an average hash computed after cropping, so the same
picture stored twice with different padding, compression or file format is
exported once. Files are named <page>_<index>.<ext>, both counted from 0.`,
		Example: `  # Export to ./report_export as WebP
  pixf report.pdf

  # Export as PNG into a chosen directory with 8 workers
  pixf report.pdf --format png -o ./images --workers 8

  # Always keep the first occurrence of a duplicate and write a YAML report
  pixf report.pdf --deterministic --report report.yaml`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &loaded, &cfg)
			cfg = loaded

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0], cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&cfg.Password, "password", cfg.Password, "Password for encrypted PDFs")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose logging")

	cmd.Flags().StringVarP(&cfg.OutputDir, "output", "o", cfg.OutputDir, "Output directory (default <pdf dir>/<pdf name>_export)")
	cmd.Flags().StringVar(&cfg.Format, "format", cfg.Format, "Output format (webp or png)")
	cmd.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of images processed concurrently")
	cmd.Flags().IntVar(&cfg.GridSize, "grid-size", cfg.GridSize, "Side of the average-hash grid")
	cmd.Flags().StringVar(&cfg.Background, "background", cfg.Background, "Padding colour trimmed before comparing images (#rrggbb)")
	cmd.Flags().IntVar(&cfg.CropTolerance, "crop-tolerance", cfg.CropTolerance, "Per-channel difference (0-255) still treated as background")
	cmd.Flags().IntVar(&cfg.MaxDistance, "max-distance", cfg.MaxDistance, "Hamming distance under which two images are duplicates (0 = exact hash match)")
	cmd.Flags().BoolVar(&cfg.Deterministic, "deterministic", cfg.Deterministic, "Keep the first extracted image of each duplicate group")
	cmd.Flags().BoolVar(&cfg.Strict, "strict", cfg.Strict, "Exit non-zero when an image could not be written")
	cmd.Flags().StringVar(&cfg.Report, "report", cfg.Report, "Write a YAML report of every image decision to this file")

	cmd.AddCommand(newUnlockCmd(&cfg))

	return cmd
}

// applyFlags copies the flags the user actually set from flagged onto dst,
// so they win over the config file and the environment.
func applyFlags(cmd *cobra.Command, dst, flagged *config.Config) {
	set := func(name string, apply func()) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	set("password", func() { dst.Password = flagged.Password })
	set("verbose", func() { dst.Verbose = flagged.Verbose })
	set("output", func() { dst.OutputDir = flagged.OutputDir })
	set("format", func() { dst.Format = flagged.Format })
	set("workers", func() { dst.Workers = flagged.Workers })
	set("grid-size", func() { dst.GridSize = flagged.GridSize })
	set("background", func() { dst.Background = flagged.Background })
	set("crop-tolerance", func() { dst.CropTolerance = flagged.CropTolerance })
	set("max-distance", func() { dst.MaxDistance = flagged.MaxDistance })
	set("deterministic", func() { dst.Deterministic = flagged.Deterministic })
	set("strict", func() { dst.Strict = flagged.Strict })
	set("report", func() { dst.Report = flagged.Report })
}

// defaultOutputDir is "<dir of pdf>/<pdf name without extension>_export".
func defaultOutputDir(pdfPath string) string {
	base := filepath.Base(pdfPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(pdfPath), stem+"_export")
}

func runExtract(cmd *cobra.Command, pdfPath string, cfg config.Config) error {
	start := time.Now()
	out := cmd.OutOrStdout()

	if err := cfg.Validate(); err != nil {
		return err
	}
	encoder, err := imaging.GetEncoder(cfg.Format)
	if err != nil {
		return err
	}
	background, err := cfg.BackgroundColor()
	if err != nil {
		return err
	}

	// The document is validated before anything is written.
	doc, err := extract.Open(pdfPath, extract.Options{Password: cfg.Password})
	if err != nil {
		return err
	}
	slog.Debug("Document opened", "path", pdfPath, "pages", doc.PageCount())

	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = defaultOutputDir(pdfPath)
	}
	fmt.Fprintln(out, "Saving images in", outputDir)
	if err := pipeline.PrepareOutputDir(outputDir); err != nil {
		return fmt.Errorf("can't create dir %s: %w", outputDir, err)
	}

	logger := slog.Default()
	sink := pipeline.NewSink(outputDir, encoder, dedup.NewSet(cfg.MaxDistance), logger)
	normalizer := imaging.Normalizer{
		Background: background,
		Tolerance:  cfg.CropTolerance,
		Hasher:     imaging.Hasher{GridSize: cfg.GridSize},
	}
	p := pipeline.New(normalizer, sink, pipeline.Options{
		Workers:       cfg.Workers,
		Deterministic: cfg.Deterministic,
	}, logger)

	summary, runErr := p.Run(cmd.Context(), doc)
	if summary != nil {
		printSummary(cmd, summary)
		if cfg.Report != "" {
			if err := pipeline.WriteReport(cfg.Report, pdfPath, summary); err != nil {
				slog.Error("Unable to write report", "path", cfg.Report, "err", err)
			}
		}
	}
	fmt.Fprintf(out, "Took time: %.2f seconds.\n", time.Since(start).Seconds())

	if runErr != nil {
		return runErr
	}
	if cfg.Strict && summary.WriteFailures() > 0 {
		return fmt.Errorf("%w: %d failed", ErrWriteFailures, summary.WriteFailures())
	}
	return nil
}

func printSummary(cmd *cobra.Command, s *pipeline.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d images saved to %s\n", s.Saved(), s.OutputDir)
	if s.Duplicates() > 0 {
		fmt.Fprintf(out, "skipped %d duplicate image(s)\n", s.Duplicates())
	}
	if w := s.Warnings(); w > 0 {
		fmt.Fprintf(out, "warning: %d image(s) could not be exported (%d decode, %d write, %d page errors)\n",
			w, s.DecodeFailures(), s.WriteFailures(), len(s.PageErrors))
	}
	if s.Unique != s.Saved() {
		fmt.Fprintf(out, "warning: %d unique images found but %d saved\n", s.Unique, s.Saved())
	}
}
