package models

import "time"

// JobState is the lifecycle state of a summarization job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Terminal reports whether the state is absorbing.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// JobError describes a failed job: a machine-readable kind (see apperr.Kind)
// plus the preserved error message.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Job is an asynchronous summarization job. Result is set iff the job
// succeeded; Error is set iff it failed. Terminal states never revert.
type Job struct {
	ID        string    `json:"id"`
	Period    Period    `json:"period"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	State     JobState  `json:"state"`
	Result    string    `json:"result,omitempty"`
	Error     *JobError `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy safe to hand to callers while workers keep mutating
// the coordinator's copy.
func (j *Job) Clone() *Job {
	c := *j
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	return &c
}
