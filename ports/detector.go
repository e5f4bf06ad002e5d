package ports

// Detector is the only external boundary of the injection test: a pure
// function mapping equal-length (wave, flux, ivar) arrays to a
// same-length per-pixel "weirdness" score array. Scores above the
// detection threshold are treated as candidate detections.
//
// The harness checks the contract at the call boundary every trial:
// a wrong-length or non-finite return aborts the whole run.
type Detector func(wave, flux, ivar []float64) []float64
