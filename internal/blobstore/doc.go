// Package blobstore is the client side of the remote object store that holds
// every asset. It exposes a two-call Store interface (Fetch with a hard size
// bound, Upload with a content type) and an HTTP implementation that talks to
// a bucket-style REST endpoint through a shared, tuned transport.
package blobstore
