// Package tagger writes canonical metadata into an acquired audio file
// after extraction, per the post-processing contract: drop source-derived
// metadata first, then write the track's own tags, release date, and
// cover art, and recompute the file's checksum.
package tagger
