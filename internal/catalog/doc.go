// Package catalog is the persistent entity store: tracks, identities,
// playlists, search candidates, downloads, and library files, plus the
// credential tables the sync ingestor owns. All invariants from the data
// model are enforced transactionally by the Store implementation.
package catalog
