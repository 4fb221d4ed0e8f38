package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the processing status of a RawArticle.
type Status string

const (
	StatusPreFiltered Status = "pre_filtered"
	StatusGPTFiltered Status = "gpt_filtered"
	StatusPending     Status = "pending"
	StatusProcessed   Status = "processed"
	StatusFailed      Status = "failed"
)

// ReviewStatus is the admin review status gating visibility.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// RejectedByAdmin is the processing error recorded on admin rejection.
const RejectedByAdmin = "Rejected by admin"

// ParseStatus validates a status coming from an outer boundary.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusPreFiltered, StatusGPTFiltered, StatusPending, StatusProcessed, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// State is the (status, review status) pair.
type State struct {
	Status Status
	Review ReviewStatus
}

func (s State) String() string {
	return string(s.Status) + "/" + string(s.Review)
}

// validStates lists every pair an article can be in.
var validStates = map[State]struct{}{
	{StatusPreFiltered, ReviewPending}: {},
	{StatusGPTFiltered, ReviewPending}: {},
	{StatusPending, ReviewPending}:     {},
	{StatusFailed, ReviewPending}:      {},
	{StatusProcessed, ReviewApproved}:  {},
	{StatusFailed, ReviewRejected}:     {},
}

// ValidState reports whether the pair is reachable through the lifecycle.
func ValidState(status Status, review ReviewStatus) bool {
	_, ok := validStates[State{Status: status, Review: review}]
	return ok
}

// Trigger is an event that moves an article through the lifecycle.
type Trigger string

const (
	TriggerIngested     Trigger = "ingested"
	TriggerIngestFailed Trigger = "ingest_failed"
	TriggerFiltered     Trigger = "filtered"
	TriggerApprove      Trigger = "approve"
	TriggerReject       Trigger = "reject"
	TriggerRefilter     Trigger = "refilter"
)

// ParseReviewAction maps the admin action name onto its trigger.
func ParseReviewAction(action string) (Trigger, error) {
	switch t := Trigger(strings.ToLower(strings.TrimSpace(action))); t {
	case TriggerApprove, TriggerReject, TriggerRefilter:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

type transition struct {
	// from nil means any valid state.
	from map[State]struct{}
	to   State
}

var transitions = map[Trigger]transition{
	TriggerFiltered: {
		from: map[State]struct{}{
			{StatusPreFiltered, ReviewPending}: {},
			{StatusPending, ReviewPending}:     {},
		},
		to: State{StatusGPTFiltered, ReviewPending},
	},
	TriggerApprove:  {to: State{StatusProcessed, ReviewApproved}},
	TriggerReject:   {to: State{StatusFailed, ReviewRejected}},
	TriggerRefilter: {to: State{StatusPending, ReviewPending}},
}

// Apply moves the article along the trigger's transition and stamps LastUpdated.
// Creation triggers are not applicable to existing entities; use NewRawArticle / NewFailedArticle.
func Apply(a *RawArticle, trigger Trigger, now time.Time) error {
	t, ok := transitions[trigger]
	if !ok {
		return fmt.Errorf("%w: trigger %q", ErrInvalidTransition, trigger)
	}

	current := State{Status: a.Status, Review: a.ReviewStatus}
	if !ValidState(current.Status, current.Review) {
		return fmt.Errorf("%w: article %s is in unknown state %s", ErrInvalidTransition, a.ID, current)
	}
	if t.from != nil {
		if _, allowed := t.from[current]; !allowed {
			return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, current)
		}
	}

	a.Status = t.to.Status
	a.ReviewStatus = t.to.Review
	switch trigger {
	case TriggerReject:
		a.ProcessingError = RejectedByAdmin
	default:
		a.ProcessingError = ""
	}
	a.LastUpdated = now
	return nil
}
