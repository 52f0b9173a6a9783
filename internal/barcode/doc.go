// Package barcode exposes QR decoding of whole images behind a small
// pluggable Backend interface.
//
// The default backend is native: it binarizes the image, tries the pure
// extractor for clean renders when asked to, falls back to the finder
// pattern detector, decodes the sampled grid and turns the segments into
// text. Coordinates in a Result refer to the caller's image, not to the
// downscaled bitmap that was actually searched.
package barcode
