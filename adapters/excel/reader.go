// Package excel reads spectra from CSV/XLSX files and writes result
// workbooks. FITS loading is a deliberate non-goal; exported pipelines
// hand spectra over in these simple tabular forms instead.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"goalias/domain/spectrum"
	"goalias/internal/errors"
)

// DatasetReader loads spectra from files: one spectrum per CSV file or
// per XLSX sheet, three columns (wave, flux, ivar), optional header row.
type DatasetReader struct{}

// NewDatasetReader creates a reader
func NewDatasetReader() *DatasetReader {
	return &DatasetReader{}
}

// Load reads every path and assembles the dataset
func (r *DatasetReader) Load(_ context.Context, paths []string) (*spectrum.Dataset, error) {
	if len(paths) == 0 {
		return nil, errors.DatasetInvalid("no input files given")
	}

	var spectra []spectrum.Spectrum
	for _, path := range paths {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			spec, err := r.readCSV(path)
			if err != nil {
				return nil, errors.Wrapf(err, "reading %s", path)
			}
			spectra = append(spectra, spec)
		case ".xlsx":
			sheets, err := r.readWorkbook(path)
			if err != nil {
				return nil, errors.Wrapf(err, "reading %s", path)
			}
			spectra = append(spectra, sheets...)
		default:
			return nil, errors.New(errors.CodeIOError,
				fmt.Sprintf("unsupported spectrum file type: %s", path))
		}
	}
	return spectrum.NewDataset(spectra...)
}

func (r *DatasetReader) readCSV(path string) (spectrum.Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return spectrum.Spectrum{}, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return spectrum.Spectrum{}, err
	}
	return rowsToSpectrum(records)
}

func (r *DatasetReader) readWorkbook(path string) ([]spectrum.Spectrum, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var spectra []spectrum.Spectrum
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		spec, err := rowsToSpectrum(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "sheet %s", sheet)
		}
		spectra = append(spectra, spec)
	}
	if len(spectra) == 0 {
		return nil, fmt.Errorf("workbook has no spectrum sheets")
	}
	return spectra, nil
}

func rowsToSpectrum(rows [][]string) (spectrum.Spectrum, error) {
	var wave, flux, ivar []float64
	for i, row := range rows {
		if len(row) < 3 {
			return spectrum.Spectrum{}, fmt.Errorf("row %d has %d columns, need wave, flux, ivar", i+1, len(row))
		}
		w, errW := parseCell(row[0])
		if i == 0 && errW != nil {
			continue // header row
		}
		fl, errF := parseCell(row[1])
		iv, errI := parseCell(row[2])
		if errW != nil || errF != nil || errI != nil {
			return spectrum.Spectrum{}, fmt.Errorf("row %d is not numeric", i+1)
		}
		wave = append(wave, w)
		flux = append(flux, fl)
		ivar = append(ivar, iv)
	}
	return spectrum.New(wave, flux, ivar)
}

// parseCell accepts numbers plus the usual NaN spellings for masked pixels
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
