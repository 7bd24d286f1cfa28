package jobmodel

import "time"

// ProgressEvent is one append-only row in a job's progress log, keyed
// within the job's partition by timestamp (§3, §4.7).
type ProgressEvent struct {
	JobKind   string
	JobID     string
	Step      string
	Message   string
	Status    ProgressEventStatus
	Timestamp time.Time
}
