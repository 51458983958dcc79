// Package fstime sets a downloaded file's modification and (best-effort)
// creation timestamps after acquisition, per the scheduler's worker loop
// step 8. Creation-time support is platform-specific and always
// best-effort: failures are logged, never fatal.
package fstime
