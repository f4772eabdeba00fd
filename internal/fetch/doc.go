// Package fetch collapses concurrent requests for the same key into a single
// underlying operation. The in-flight entry lives only for the duration of
// that operation: once it completes, successfully or not, the next caller
// starts a fresh one, so failures are never cached.
package fetch
