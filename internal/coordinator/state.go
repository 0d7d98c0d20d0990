// Package coordinator implements the job protocol that carries a record
// identifier from request to published review. All state lives in the
// coordination store; this package names every key and holds the pure
// decision functions each role applies to the evidence it reads.
package coordinator

import (
	"fmt"
	"time"

	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
)

// State is the position of a job in the protocol. Requested and Fetched are
// witnessed only by queue membership, which the store cannot look up by id,
// so StateOf never reports them; from a store read a job between request
// and review shows as Idle or Opened.
type State int

const (
	StateIdle State = iota
	StateRequested
	StateOpened
	StateFetched
	StateReviewed
	StateFailed
	// StateTimedOut is observed only by a waiting caller and never stored.
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequested:
		return "requested"
	case StateOpened:
		return "opened"
	case StateFetched:
		return "fetched"
	case StateReviewed:
		return "reviewed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Evidence is what a role has read from the store about one job.
type Evidence struct {
	Review   *domain.Review
	Opened   bool
	OpenedAt time.Time
}

// StateOf returns the furthest state the evidence witnesses: Idle, Opened,
// Reviewed or Failed.
func StateOf(e Evidence) State {
	switch {
	case e.Review != nil && e.Review.Succeeded():
		return StateReviewed
	case e.Review != nil:
		return StateFailed
	case e.Opened:
		return StateOpened
	default:
		return StateIdle
	}
}

// RetrievalAction is a retrieval worker's decision for a dequeued request.
type RetrievalAction int

const (
	// RetrievalTrigger asks the client to open the record.
	RetrievalTrigger RetrievalAction = iota
	// RetrievalSkipResolved means a review already exists.
	RetrievalSkipResolved
	// RetrievalSkipInProgress means retrieval was already triggered.
	RetrievalSkipInProgress
)

func (a RetrievalAction) String() string {
	switch a {
	case RetrievalTrigger:
		return "trigger"
	case RetrievalSkipResolved:
		return "skip_resolved"
	case RetrievalSkipInProgress:
		return "skip_in_progress"
	default:
		return fmt.Sprintf("retrieval(%d)", int(a))
	}
}

// DecideRetrieval checks the review first, then the fetched marker.
// Two workers may both see a miss and both trigger; the insert-if-absent
// review write makes the duplicate harmless.
func DecideRetrieval(e Evidence) RetrievalAction {
	if e.Review != nil {
		return RetrievalSkipResolved
	}
	if e.Opened {
		return RetrievalSkipInProgress
	}
	return RetrievalTrigger
}

// PollAction is the next step of a bounded poll loop.
type PollAction int

const (
	PollContinue PollAction = iota
	PollDone
	PollExhausted
)

// DecidePoll decides after attempt (1-based) of at most maxAttempts.
func DecidePoll(found bool, attempt, maxAttempts int) PollAction {
	if found {
		return PollDone
	}
	if attempt >= maxAttempts {
		return PollExhausted
	}
	return PollContinue
}

// PublishAction is the outcome of an insert-if-absent review write.
type PublishAction int

const (
	Published PublishAction = iota
	DiscardDuplicate
)

// DecidePublish maps the store's insert result to an action. A lost race
// is not an error: the earlier review stands.
func DecidePublish(inserted bool) PublishAction {
	if inserted {
		return Published
	}
	return DiscardDuplicate
}

// Outcome classifies a review for a waiting caller.
type Outcome int

const (
	OutcomeReviewed Outcome = iota
	OutcomeNotFound
	OutcomeClientError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReviewed:
		return "reviewed"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeClientError:
		return "client_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Classify maps a review's error code to the caller-visible outcome.
func Classify(r *domain.Review) Outcome {
	switch r.ErrorCode {
	case 0:
		return OutcomeReviewed
	case domain.ErrorCodeNoSuchGame:
		return OutcomeNotFound
	default:
		return OutcomeClientError
	}
}
