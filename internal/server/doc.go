// Package server hosts the Fiber HTTP service that exposes the asset cache to
// local callers: resolve and peek by key, bulk preload, and upload. It owns
// the request middleware chain (request IDs, panic recovery, access logging)
// and maps service outcomes onto HTTP status codes. Diagnostics routes live in
// the routes subpackage so they can be mounted independently. Keep exports
// narrow and accept explicit dependencies.
package server
