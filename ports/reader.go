package ports

import (
	"context"

	"goalias/domain/spectrum"
)

// SpectrumSource loads a dataset from an external collaborator
// (CSV/XLSX files here; FITS loading is out of scope). The harness
// consumes only the resulting in-memory arrays.
type SpectrumSource interface {
	Load(ctx context.Context, paths []string) (*spectrum.Dataset, error)
}
