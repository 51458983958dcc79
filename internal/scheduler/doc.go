// Package scheduler is the download scheduler: a persistent, bounded
// worker pool that turns queued Download rows into acquired, tagged,
// timestamped library files. It generalizes the teacher's one-shot batch
// concurrency pattern into a long-lived service with enqueue, cancel, and
// introspection operations.
package scheduler
