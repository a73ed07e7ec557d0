package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// JobQueue is a FIFO priority queue of job IDs ordered by enqueue time
type JobQueue struct {
	jobs    []*QueuedJob
	pending map[string]bool
	seq     uint64
	mu      sync.Mutex
}

// QueuedJob wraps a job ID with its ordering information
type QueuedJob struct {
	JobID      string
	EnqueuedAt time.Time
	seq        uint64 // Breaks ties between equal timestamps
	Index      int    // For heap.Interface
}

// NewJobQueue creates a new job queue
func NewJobQueue() *JobQueue {
	jq := &JobQueue{
		jobs:    make([]*QueuedJob, 0),
		pending: make(map[string]bool),
	}
	heap.Init(jq)
	return jq
}

// Enqueue adds a job to the queue. A job already waiting is not added twice;
// the return value reports whether it was added.
func (jq *JobQueue) Enqueue(jobID string, at time.Time) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if jq.pending[jobID] {
		return false
	}
	jq.pending[jobID] = true
	jq.seq++

	heap.Push(jq, &QueuedJob{
		JobID:      jobID,
		EnqueuedAt: at,
		seq:        jq.seq,
	})
	return true
}

// PopJob removes and returns the oldest job ID, or "" when the queue is empty
func (jq *JobQueue) PopJob() string {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if jq.Len() == 0 {
		return ""
	}

	item := heap.Pop(jq).(*QueuedJob)
	delete(jq.pending, item.JobID)
	return item.JobID
}

// Size returns the number of waiting jobs
func (jq *JobQueue) Size() int {
	jq.mu.Lock()
	defer jq.mu.Unlock()
	return jq.Len()
}

// Len returns the number of jobs in the queue
func (jq *JobQueue) Len() int {
	return len(jq.jobs)
}

// Less orders jobs by enqueue time, then by arrival
func (jq *JobQueue) Less(i, j int) bool {
	a, b := jq.jobs[i], jq.jobs[j]
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.seq < b.seq
}

// Swap swaps two jobs
func (jq *JobQueue) Swap(i, j int) {
	jq.jobs[i], jq.jobs[j] = jq.jobs[j], jq.jobs[i]
	jq.jobs[i].Index = i
	jq.jobs[j].Index = j
}

// Push implements heap.Interface
func (jq *JobQueue) Push(x interface{}) {
	n := len(jq.jobs)
	item := x.(*QueuedJob)
	item.Index = n
	jq.jobs = append(jq.jobs, item)
}

// Pop implements heap.Interface
func (jq *JobQueue) Pop() interface{} {
	old := jq.jobs
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	jq.jobs = old[0 : n-1]
	return item
}
