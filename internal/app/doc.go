// Package app is the composition root: it wires the catalog, ranker,
// extractor client, tagger, scheduler, and sync ingestor together and
// exposes the entry points each cmd subcommand calls into.
package app
