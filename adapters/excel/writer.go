package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"goalias/domain/trial"
	"goalias/internal/aggregate"
	"goalias/internal/errors"
)

// ResultsWriter exports a run to an XLSX workbook: one sheet of raw
// trial rows and one summary sheet for downstream plotting/reporting.
type ResultsWriter struct{}

// NewResultsWriter creates a writer
func NewResultsWriter() *ResultsWriter {
	return &ResultsWriter{}
}

// Write produces the workbook at path
func (w *ResultsWriter) Write(path string, table *trial.Table, summary aggregate.Summary, waveBins []aggregate.Bin) error {
	f := excelize.NewFile()
	defer f.Close()

	const trialsSheet = "Trials"
	f.SetSheetName(f.GetSheetName(0), trialsSheet)

	header := []interface{}{"trial", "spectrum", "wave", "amplitude", "detected", "false_pos"}
	if err := f.SetSheetRow(trialsSheet, "A1", &header); err != nil {
		return errors.StorageError("failed to write workbook header", err)
	}
	for i, r := range table.Results {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{r.Trial, r.Spectrum, r.Wave, r.Amplitude, r.Detected, r.FalsePos}
		if err := f.SetSheetRow(trialsSheet, cell, &row); err != nil {
			return errors.StorageError("failed to write trial row", err)
		}
	}

	const summarySheet = "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return errors.StorageError("failed to create summary sheet", err)
	}
	summaryRows := [][]interface{}{
		{"run_id", table.RunID.String()},
		{"trials", summary.Trials},
		{"successes", summary.Successes},
		{"sensitivity", summary.Sensitivity},
		{"sensitivity_lo", summary.SensitivityLo},
		{"sensitivity_hi", summary.SensitivityHi},
		{"mean_false_pos", summary.MeanFalsePos},
		{"max_false_pos", summary.MaxFalsePos},
		{"amp_mean", summary.AmpMean},
		{"amp_median", summary.AmpMedian},
	}
	for i := range summaryRows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(summarySheet, cell, &summaryRows[i]); err != nil {
			return errors.StorageError("failed to write summary row", err)
		}
	}

	if len(waveBins) > 0 {
		const binsSheet = "WavelengthBins"
		if _, err := f.NewSheet(binsSheet); err != nil {
			return errors.StorageError("failed to create bins sheet", err)
		}
		binHeader := []interface{}{"wave_lo", "wave_hi", "trials", "successes", "sensitivity", "mean_false_pos"}
		if err := f.SetSheetRow(binsSheet, "A1", &binHeader); err != nil {
			return errors.StorageError("failed to write bins header", err)
		}
		for i, b := range waveBins {
			cell := fmt.Sprintf("A%d", i+2)
			row := []interface{}{b.Lo, b.Hi, b.Trials, b.Successes, b.Sensitivity, b.MeanFalsePos}
			if err := f.SetSheetRow(binsSheet, cell, &row); err != nil {
				return errors.StorageError("failed to write bin row", err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.StorageError("failed to save workbook", err)
	}
	return nil
}
