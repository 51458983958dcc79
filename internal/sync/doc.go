// Package sync ingests playlists and tracks from a connected streaming
// account into the catalog. It owns the OAuth PKCE flow (authorize,
// callback, refresh, ensure_account) and the incremental, snapshot-token
// idempotent playlist/track reconciliation described by spec.md §4.8.
package sync
