package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"goalias/adapters/excel"
	"goalias/adapters/postgres"
	"goalias/adapters/report"
	"goalias/adapters/rng"
	"goalias/app"
	"goalias/domain/lsf"
	"goalias/internal"
	"goalias/internal/config"
	"goalias/internal/continuum"
	"goalias/internal/linesearch"
	"goalias/ports"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "goalias",
		Short: "Injection testing for anomalous emission-line detectors",
	}

	rootCmd.AddCommand(
		newInjectionTestCmd(cfg),
		newNormalizeCmd(),
		newSearchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newInjectionTestCmd(cfg *config.Config) *cobra.Command {
	tc := cfg.TrialConfig()
	var (
		height   float64
		waveBins int
		outPath  string
		rptPath  string
		asHTML   bool
	)

	cmd := &cobra.Command{
		Use:   "injection-test [spectrum files...]",
		Short: "Estimate detector sensitivity and false-positive rate by line injection",
		Long: `Inject synthetic emission lines of random amplitude and position into
the given spectra, run the baseline peak detector over each injected
spectrum, and score detections against the fixed pixel-tolerance window.

Example: goalias injection-test spectra/*.csv --trials 500 --amp-min 0.01 --amp-max 0.1 --seed 42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ds, err := excel.NewDatasetReader().Load(ctx, args)
			if err != nil {
				return err
			}

			var ledger ports.TrialLedger
			if cfg.Database.URL != "" {
				repo, err := postgres.Connect(cfg.Database.URL)
				if err != nil {
					return err
				}
				defer repo.Close()
				ledger = repo
			}

			service := app.NewInjectionTestService(rng.NewStreamFactory(), ledger, internal.DefaultLogger)
			result, err := service.Run(ctx, app.InjectionTestRequest{
				Dataset:  ds,
				Kernel:   lsf.Default(),
				Detector: linesearch.AsDetector(height),
				Config:   tc,
				WaveBins: waveBins,
			})
			if err != nil {
				return err
			}

			md := report.Markdown(result.Manifest, result.Summary, result.WaveBins)
			fmt.Print(md)

			if outPath != "" {
				if err := excel.NewResultsWriter().Write(outPath, result.Table, result.Summary, result.WaveBins); err != nil {
					return err
				}
			}
			if rptPath != "" {
				if err := report.WriteFile(rptPath, md, asHTML); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tc.Trials, "trials", tc.Trials, "Number of injection trials")
	cmd.Flags().Float64Var(&tc.AmpMin, "amp-min", tc.AmpMin, "Minimum injected amplitude")
	cmd.Flags().Float64Var(&tc.AmpMax, "amp-max", tc.AmpMax, "Maximum injected amplitude")
	cmd.Flags().StringVar((*string)(&tc.Scale), "scale", string(tc.Scale), "Amplitude draw: uniform or log-uniform")
	cmd.Flags().Int64Var(&tc.Seed, "seed", tc.Seed, "Random seed for deterministic draws")
	cmd.Flags().IntVar(&tc.Workers, "workers", tc.Workers, "Parallel trial workers (1 = sequential)")
	cmd.Flags().Float64Var(&height, "height", 0.05, "Peak detector height threshold")
	cmd.Flags().IntVar(&waveBins, "wave-bins", 0, "Stratify results into this many wavelength bins")
	cmd.Flags().StringVar(&outPath, "out", cfg.Output.WorkbookPath, "Write results workbook (xlsx)")
	cmd.Flags().StringVar(&rptPath, "report", cfg.Output.ReportPath, "Write run report to file")
	cmd.Flags().BoolVar(&asHTML, "html", cfg.Output.ReportHTML, "Render the report as HTML")

	return cmd
}

func newNormalizeCmd() *cobra.Command {
	var (
		segmentLen int
		degree     int
		suffix     string
	)

	cmd := &cobra.Command{
		Use:   "normalize [spectrum files...]",
		Short: "Continuum-normalize spectra and write them back out as CSV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := excel.NewDatasetReader().Load(cmd.Context(), args)
			if err != nil {
				return err
			}

			ccfg := continuum.DefaultConfig()
			ccfg.SegmentLen = segmentLen
			ccfg.Degree = degree

			normalized, err := continuum.Normalize(ds, ccfg)
			if err != nil {
				return err
			}

			for i := 0; i < normalized.Len(); i++ {
				path := args[i%len(args)] + suffix
				if err := writeSpectrumCSV(path, normalized.At(i).Wave, normalized.At(i).Flux, normalized.At(i).Ivar); err != nil {
					return err
				}
				fmt.Printf("wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&segmentLen, "segment-len", 100, "Continuum segment length in pixels")
	cmd.Flags().IntVar(&degree, "degree", 6, "Continuum polynomial degree")
	cmd.Flags().StringVar(&suffix, "suffix", ".norm.csv", "Output filename suffix")

	return cmd
}

func newSearchCmd() *cobra.Command {
	var height float64

	cmd := &cobra.Command{
		Use:   "search [spectrum files...]",
		Short: "Search residual spectra for candidate lines and characterize them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := excel.NewDatasetReader().Load(cmd.Context(), args)
			if err != nil {
				return err
			}

			residuals, err := continuum.Residuals(ds, 0.05)
			if err != nil {
				return err
			}

			kernel := lsf.Default()
			peaks := linesearch.FindAll(residuals, height)
			fmt.Printf("spectrum\tpixel\twave\tamplitude\tfwhm\n")
			for _, p := range peaks {
				line, err := linesearch.Characterize(residuals.At(p.Spectrum), kernel, p.Pixel)
				if err != nil {
					internal.DefaultLogger.Warn("skipping peak at spectrum %d pixel %d: %v", p.Spectrum, p.Pixel, err)
					continue
				}
				fmt.Printf("%d\t%d\t%.3f\t%.4g\t%.3f\n", p.Spectrum, p.Pixel, line.Wave, line.Amplitude, line.FWHM)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&height, "height", 0.05, "Peak height threshold in residual flux")

	return cmd
}

func writeSpectrumCSV(path string, wave, flux, ivar []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"wave", "flux", "ivar"}); err != nil {
		return err
	}
	for i := range wave {
		rec := []string{
			strconv.FormatFloat(wave[i], 'g', -1, 64),
			strconv.FormatFloat(flux[i], 'g', -1, 64),
			strconv.FormatFloat(ivar[i], 'g', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}
