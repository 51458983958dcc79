// Package normalize implements the pure, deterministic mapping from raw
// (artists, title) strings to canonical tokens and flags consumed by the
// ranking engine and the catalog's manual-import de-duplication key.
package normalize
