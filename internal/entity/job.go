package entity

import "time"

type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateSucceeded JobState = "succeeded"
	StateFailed    JobState = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Job is the persisted record of one submission. Result is set only when the
// job succeeded and Error only when it failed.
type Job struct {
	ID          string     `json:"job_id"`
	ContentHash string     `json:"content_hash"`
	State       JobState   `json:"state"`
	Result      *JobResult `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type JobResult struct {
	SVG          string     `json:"svg"`
	MaskContours ContourSet `json:"mask_contours"`
}

func NewJob(id, contentHash string, now time.Time) *Job {
	return &Job{
		ID:          id,
		ContentHash: contentHash,
		State:       StatePending,
		CreatedAt:   now.UTC(),
	}
}

// Start moves a pending (or redelivered running) job to running.
func (j *Job) Start() error {
	if j.State.Terminal() {
		return ErrJobFinished
	}
	j.State = StateRunning
	return nil
}

func (j *Job) Succeed(result *JobResult, at time.Time) error {
	if j.State != StateRunning {
		return ErrJobFinished
	}
	completed := at.UTC()
	j.State = StateSucceeded
	j.Result = result
	j.Error = ""
	j.CompletedAt = &completed
	return nil
}

func (j *Job) Fail(message string, at time.Time) error {
	if j.State != StateRunning {
		return ErrJobFinished
	}
	if message == "" {
		message = ErrInternalComputation.Error()
	}
	completed := at.UTC()
	j.State = StateFailed
	j.Result = nil
	j.Error = message
	j.CompletedAt = &completed
	return nil
}

// Clone returns a deep enough copy for callers that must not share the record.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.CompletedAt != nil {
		at := *j.CompletedAt
		c.CompletedAt = &at
	}
	if j.Result != nil {
		r := *j.Result
		r.MaskContours = j.Result.MaskContours.Clone()
		c.Result = &r
	}
	return &c
}

// JobInput is a decoded submission.
type JobInput struct {
	Image        []byte
	Landmarks    []Point
	Segmentation []byte
}

// ProcessingTask is the message handed to the dispatch queue.
type ProcessingTask struct {
	JobID        string  `json:"job_id"`
	ContentHash  string  `json:"content_hash"`
	Image        []byte  `json:"image"`
	Landmarks    []Point `json:"landmarks"`
	Segmentation []byte  `json:"segmentation_map"`
}

func (t ProcessingTask) Input() JobInput {
	return JobInput{Image: t.Image, Landmarks: t.Landmarks, Segmentation: t.Segmentation}
}

type JobStatusView struct {
	Status JobState   `json:"status"`
	Result *JobResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

func (j *Job) View() *JobStatusView {
	if j == nil {
		return &JobStatusView{Status: StatePending}
	}
	return &JobStatusView{Status: j.State, Result: j.Result, Error: j.Error}
}

type LandmarkPoint struct {
	X *float64 `json:"x" binding:"required"`
	Y *float64 `json:"y" binding:"required"`
}

type SubmitRequest struct {
	Image           string          `json:"image" binding:"required"`
	Landmarks       []LandmarkPoint `json:"landmarks" binding:"required,dive"`
	SegmentationMap string          `json:"segmentation_map" binding:"required"`
}

type JobResponse struct {
	ID     string   `json:"id"`
	Status JobState `json:"status"`
}

type CropResult struct {
	SVG          string     `json:"svg"`
	MaskContours ContourSet `json:"mask_contours"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
