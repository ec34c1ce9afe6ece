package runstore

import "time"

// Status represents the lifecycle of a pipeline run.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDownloading  Status = "downloading"
	StatusSplitting    Status = "splitting"
	StatusSeparating   Status = "separating"
	StatusReady        Status = "ready"
	StatusStreaming    Status = "streaming"
	StatusFinished     Status = "finished"
	StatusFailed       Status = "failed"
	StatusProducerDied Status = "producer_died"
	StatusTimedOut     Status = "timed_out"
	StatusCancelled    Status = "cancelled"
	StatusInterrupted  Status = "interrupted"
)

// InterruptedReason is recorded on runs left active by an instance that was
// replaced or crashed.
const InterruptedReason = "superseded by a newer instance"

var terminalStatuses = map[Status]struct{}{
	StatusFinished:     {},
	StatusFailed:       {},
	StatusProducerDied: {},
	StatusTimedOut:     {},
	StatusCancelled:    {},
	StatusInterrupted:  {},
}

// IsTerminal reports whether the status ends a run.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Run is the persisted view of one pipeline execution.
type Run struct {
	ID                string
	TrackID           string
	SourceURL         string
	Keep              string
	Status            Status
	SegmentsTotal     int
	SegmentsCompleted int
	SegmentsDegraded  int
	BufferedBytes     int64
	ErrorMessage      string
	BufferPath        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ReadyAt           time.Time
	FinishedAt        time.Time
}

// Progress is a point-in-time counter snapshot written while a run is active.
type Progress struct {
	Status            Status
	SegmentsTotal     int
	SegmentsCompleted int
	BufferedBytes     int64
}

// DegradedSegment records a segment that was skipped.
type DegradedSegment struct {
	Index     int
	Reason    string
	CreatedAt time.Time
}

// Process is a registry row for an external process launched by walker-yt.
type Process struct {
	PID       int
	PGID      int
	Role      string
	RunID     string
	Marker    string
	Command   string
	StartedAt time.Time
}
