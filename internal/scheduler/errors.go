package scheduler

import "errors"

var (
	// ErrNoCandidate is returned by Enqueue when candidateID is omitted
	// and the track has no chosen candidate to fall back to.
	ErrNoCandidate = errors.New("scheduler: no candidate id and no chosen candidate for track")
	// ErrJobNotFound is returned by Cancel for an unknown download id.
	ErrJobNotFound = errors.New("scheduler: job not found")
	// ErrCancelRefused is returned by Cancel when the job is no longer
	// queued; callers should surface this as a conflict (HTTP 409).
	ErrCancelRefused = errors.New("scheduler: cannot cancel a job that is not queued")
	// ErrSchedulerStopped is returned by Enqueue after StopAll.
	ErrSchedulerStopped = errors.New("scheduler: stopped")
	// ErrDownloadInProgress is returned by Enqueue with force set when a
	// non-terminal Download already exists for the track (without force,
	// Enqueue records an "already" Download instead); callers should
	// surface this as a conflict (HTTP 409).
	ErrDownloadInProgress = errors.New("scheduler: a download is already queued or running for this track")
)
