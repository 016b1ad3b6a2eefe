package app

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a committed ledger change.
type EventType string

const (
	EventVoterRegistered    EventType = "voter_registered"
	EventProposalRegistered EventType = "proposal_registered"
	EventVoteCast           EventType = "vote_cast"
	EventVoterRemoved       EventType = "voter_removed"
)

// Event describes one committed mutation. Rejected votes produce no event.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Revision    uint64    `json:"revision"` // store revision that committed the change
	At          time.Time `json:"at"`
	Voter       string    `json:"voter,omitempty"`
	Name        string    `json:"name,omitempty"`
	ProposalID  uint64    `json:"proposal_id"`
	Description string    `json:"description,omitempty"`
	Votes       uint64    `json:"votes"` // proposal tally after the change
}

// NewEvent returns an event of the given type with a fresh ID and timestamp.
func NewEvent(t EventType) Event {
	return Event{ID: uuid.NewString(), Type: t, At: time.Now().UTC()}
}

// EventPublisher receives committed ledger events.
// Implementations: internal/events (AMQP, Redis mirror, fan-out), internal/dashboard hub.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
