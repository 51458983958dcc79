// Package api implements the process's HTTP surface: a thin net/http
// adapter layer over the catalog, ranking, scheduler, and sync packages.
// Handlers never block on an extractor subprocess or filesystem write;
// long operations delegate to the scheduler or run in a detached goroutine.
package api
