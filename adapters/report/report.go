// Package report renders a human-readable summary of an injection run.
package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"goalias/domain/trial"
	"goalias/internal/aggregate"
)

// Markdown renders the run summary as a markdown document
func Markdown(manifest trial.Manifest, summary aggregate.Summary, waveBins []aggregate.Bin) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Injection test %s\n\n", manifest.RunID.String())
	fmt.Fprintf(&b, "- Trials: %d over %d spectra (seed %d, %s amplitudes %.4g..%.4g)\n",
		summary.Trials, manifest.Spectra, manifest.Config.Seed,
		manifest.Config.Scale, manifest.Config.AmpMin, manifest.Config.AmpMax)
	fmt.Fprintf(&b, "- Sensitivity: %.2f%% (95%% CI %.2f%%..%.2f%%)\n",
		100*summary.Sensitivity, 100*summary.SensitivityLo, 100*summary.SensitivityHi)
	fmt.Fprintf(&b, "- False positives: %.3f per trial on average, %d at worst\n",
		summary.MeanFalsePos, summary.MaxFalsePos)
	fmt.Fprintf(&b, "- Amplitudes: mean %.4g, median %.4g\n", summary.AmpMean, summary.AmpMedian)
	fmt.Fprintf(&b, "- Edge redraws: %d, runtime: %d ms\n\n", manifest.Redraws, manifest.RuntimeMs)

	if len(waveBins) > 0 {
		b.WriteString("## Sensitivity by wavelength\n\n")
		b.WriteString("| wave lo | wave hi | trials | sensitivity | mean FP |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, bin := range waveBins {
			fmt.Fprintf(&b, "| %.1f | %.1f | %d | %.2f%% | %.3f |\n",
				bin.Lo, bin.Hi, bin.Trials, 100*bin.Sensitivity, bin.MeanFalsePos)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// HTML converts the markdown report to a standalone HTML fragment
func HTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.Render(doc, renderer)
}

// WriteFile writes the report to disk, as HTML when asHTML is set
func WriteFile(path string, md string, asHTML bool) error {
	data := []byte(md)
	if asHTML {
		data = HTML(md)
	}
	return os.WriteFile(path, data, 0o644)
}
