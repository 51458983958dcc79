package scheduler

import (
	"context"
	"sync"

	"github.com/oshokin/trackgrab/internal/catalog"
)

// job is the scheduler's in-memory view of one queued or running Download:
// the persisted row's id plus its track and candidate ids. Its status lives
// only in the catalog row.
type job struct {
	id          int64
	trackID     int64
	candidateID int64
	cancel      context.CancelFunc
}

// jobTable tracks every job the scheduler currently knows about (queued or
// running); finished jobs are dropped once their terminal state is
// persisted, since the catalog is the durable record from then on.
type jobTable struct {
	mu   sync.Mutex
	byID map[int64]*job
}

func newJobTable() *jobTable {
	return &jobTable{byID: make(map[int64]*job)}
}

func (t *jobTable) put(j *job) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byID[j.id] = j
}

func (t *jobTable) get(id int64) (*job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.byID[id]

	return j, ok
}

func (t *jobTable) remove(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.byID, id)
}

func (t *jobTable) all() []*job {
	t.mu.Lock()
	defer t.mu.Unlock()

	jobs := make([]*job, 0, len(t.byID))
	for _, j := range t.byID {
		jobs = append(jobs, j)
	}

	return jobs
}

// StatusEntry is one row of the scheduler's introspection snapshot.
type StatusEntry struct {
	DownloadID  int64
	TrackID     int64
	CandidateID *int64
	Status      catalog.DownloadStatus
}
