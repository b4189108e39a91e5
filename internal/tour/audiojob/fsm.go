// Package audiojob tracks the audio-rendering lifecycle of a tour.
package audiojob

import (
	"fmt"

	"github.com/wayline/tour-audio-pipeline/api/tour"
)

// TransitionError reports an illegal lifecycle transition. The state is
// left unchanged; callers surface the error rather than ignoring it.
type TransitionError struct {
	TourID string
	From   tour.JobStatus
	To     tour.JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("audio job %s: illegal transition %s -> %s", e.TourID, e.From, e.To)
}

// FSM enforces the audio job lifecycle:
//
//	pending -> processing -> completed
//	                      -> failed -> processing (explicit retry only)
//
// Only the render pipeline advances state; polling clients read it.
type FSM struct {
	tourID string
	state  tour.JobStatus
}

// New returns a lifecycle tracker starting in the given state. An empty
// state starts a fresh job as pending.
func New(tourID string, state tour.JobStatus) (*FSM, error) {
	if state == "" {
		state = tour.StatusPending
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return &FSM{tourID: tourID, state: state}, nil
}

// State returns the current lifecycle state.
func (f *FSM) State() tour.JobStatus {
	return f.state
}

// Start moves pending -> processing.
func (f *FSM) Start() error {
	return f.transition(tour.StatusPending, tour.StatusProcessing)
}

// Complete moves processing -> completed.
func (f *FSM) Complete() error {
	return f.transition(tour.StatusProcessing, tour.StatusCompleted)
}

// Fail moves processing -> failed.
func (f *FSM) Fail() error {
	return f.transition(tour.StatusProcessing, tour.StatusFailed)
}

// Retry moves failed -> processing. This is the only re-entrant
// transition and is triggered only by an explicit caller request.
func (f *FSM) Retry() error {
	return f.transition(tour.StatusFailed, tour.StatusProcessing)
}

func (f *FSM) transition(from, to tour.JobStatus) error {
	if f.state != from {
		return &TransitionError{TourID: f.tourID, From: f.state, To: to}
	}
	f.state = to
	return nil
}
