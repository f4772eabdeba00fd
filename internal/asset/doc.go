// Package asset resolves storage paths to decoded in-memory assets.
//
// Service walks the tiers in order: the memory map answers synchronously, the
// disk directory answers after a decode, and only then does a network fetch
// run through the fetch coordinator so that concurrent callers for one key
// share a single transfer. Successful fetches are written back to disk and
// memory; failures are plain misses and leave nothing behind.
//
// Uploads travel the other way: encode to JPEG, push to the blob store under
// a generated name inside the caller's namespace, then warm both local tiers
// so the uploader sees the asset immediately. Upload failures are returned.
package asset
