package queue

import "time"

// Status is a job's lifecycle state. Transitions run strictly
// queued -> processing -> completed | failed; terminal states never
// transition further.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Submission is the payload of one ingestion request.
type Submission struct {
	CorpusID  string
	FileName  string
	MediaType string
	Data      []byte
}

// Result is the outcome attached to a completed job.
type Result struct {
	CorpusID          string  `json:"corpusId"`
	SnapshotCID       string  `json:"snapshotCid"`
	ChunkCount        int     `json:"chunkCount"`
	AverageSimilarity float64 `json:"averageSimilarity"`
}

// Job tracks one asynchronous unit of ingestion work. Only the queue
// worker mutates a job after creation.
type Job struct {
	ID           string
	CorpusTarget string
	FileName     string
	Submission   Submission
	Status       Status
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Progress     int // 0-100
	Error        string
	Result       *Result
}

// Stats counts jobs per lifecycle state.
type Stats struct {
	Queued     int
	Processing int
	Completed  int
	Failed     int
}

// Total is the number of retained jobs across all states.
func (s Stats) Total() int {
	return s.Queued + s.Processing + s.Completed + s.Failed
}
