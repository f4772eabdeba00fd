// Package imaging supplies the concrete codecs the asset service is wired
// with: an image decoder that validates JPEG/PNG/GIF payloads and records
// their dimensions, a raw decoder for non-image assets, and the JPEG encoder
// used before uploads.
package imaging
