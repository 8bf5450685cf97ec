package syncer

import (
	"fmt"
	"time"
)

// Stage names the pipeline step a bookmark failed in
type Stage string

const (
	StageRender Stage = "render"
	StageCommit Stage = "commit"
)

// Failure is a bookmark that could not be archived in this run
type Failure struct {
	ID    string
	Stage Stage
	Err   error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s (%s): %v", f.ID, f.Stage, f.Err)
}

// Summary is the outcome of one sync run. Run returns it even on error.
type Summary struct {
	RunID string
	// ResumedFrom is the checkpoint cursor the run started at, if any
	ResumedFrom string

	Pages      int
	Discovered int
	Committed  int
	Skipped    int
	Failed     int

	MediaFetched    int
	MediaMissing    int
	RateLimitPauses int

	// Complete is true when discovery reached the end of the feed
	Complete bool
	Duration time.Duration
	Failures []Failure
}

// HasFailures reports whether any bookmark failed
func (s *Summary) HasFailures() bool {
	return s.Failed > 0
}

func (s *Summary) fail(id string, stage Stage, err error) {
	s.Failed++
	s.Failures = append(s.Failures, Failure{ID: id, Stage: stage, Err: err})
}
