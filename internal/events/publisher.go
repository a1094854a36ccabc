// Package events carries the proposal change feed: every insert and review
// decision is published as an {old, new} snapshot pair so consumers (the email
// notifier today) stay decoupled from the store's mechanics.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/pricefleet/repricer/internal/metrics"
	"github.com/pricefleet/repricer/pkg/logger"
	"github.com/pricefleet/repricer/pkg/model"
)

// Subjects for the proposal change feed.
const (
	SubjectProposalCreated  = "evt.proposal.created.v1"
	SubjectProposalReviewed = "evt.proposal.reviewed.v1"

	// StreamSubjects is the wildcard a JetStream stream or consumer binds to.
	StreamSubjects = "evt.proposal.>"
)

// Publisher wraps a NATS connection and publishes proposal change envelopes.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	service string
}

// New creates a new Publisher with JetStream enabled.
func New(nc *nats.Conn, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		service: service,
	}, nil
}

// ProposalCreated publishes an insert event for a newly ingested proposal.
func (p *Publisher) ProposalCreated(ctx context.Context, prop model.Proposal) error {
	return p.publishChange(ctx, SubjectProposalCreated, model.EventProposalCreated,
		model.ProposalChange{New: prop})
}

// ProposalReviewed publishes a status-transition event with before/after snapshots.
func (p *Publisher) ProposalReviewed(ctx context.Context, old, updated model.Proposal) error {
	return p.publishChange(ctx, SubjectProposalReviewed, model.EventProposalReviewed,
		model.ProposalChange{Old: &old, New: updated})
}

func (p *Publisher) publishChange(_ context.Context, subject, eventType string, change model.ProposalChange) error {
	env := model.ChangeEnvelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		EventType:     eventType,
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
		Change:        change,
	}

	data, err := json.Marshal(env)
	if err != nil {
		logger.S().Errorw("events.marshal_failed",
			"subject", subject,
			"event_type", eventType,
			"error", err,
		)
		metrics.IncError("events", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{eventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	if _, err := p.js.PublishMsg(msg); err != nil {
		logger.S().Errorw("events.publish_failed",
			"subject", subject,
			"event_type", eventType,
			"key", change.New.Key().String(),
			"error", err,
		)
		metrics.IncError("events", "publish_failed")
		return err
	}

	logger.S().Debugw("events.publish_success",
		"subject", subject,
		"event_type", eventType,
		"key", change.New.Key().String(),
	)
	return nil
}
