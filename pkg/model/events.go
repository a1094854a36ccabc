package model

import (
	"time"

	"github.com/google/uuid"
)

// Change event types published on the proposal change feed.
const (
	EventProposalCreated  = "proposal.created"
	EventProposalReviewed = "proposal.reviewed"
)

// ProposalChange is one entry in the proposal change feed: a before/after pair
// of snapshots. Old is nil for inserts.
type ProposalChange struct {
	Old *Proposal `json:"old,omitempty"`
	New Proposal  `json:"new"`
}

// ChangeEnvelope wraps a ProposalChange for transport on the event bus.
type ChangeEnvelope struct {
	ID            uuid.UUID      `json:"id"`
	CorrelationID uuid.UUID      `json:"correlation_id"`
	EventType     string         `json:"event_type"`
	Version       string         `json:"version"`
	Timestamp     time.Time      `json:"timestamp"`
	Change        ProposalChange `json:"change"`
}
