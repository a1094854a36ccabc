// Package notify consumes the proposal change feed and emails reviewers.
// Notification is best-effort: a send failure is logged and counted, never
// surfaced into the proposal lifecycle.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/pricefleet/repricer/internal/events"
	"github.com/pricefleet/repricer/internal/metrics"
	"github.com/pricefleet/repricer/pkg/model"
)

// Sender delivers one notification to a list of recipients.
type Sender interface {
	Send(ctx context.Context, recipients []string, subject, body string) (messageID string, err error)
}

// Notifier filters proposal change events and emails the approval list.
type Notifier struct {
	logger     *zap.Logger
	sender     Sender
	recipients []string
	sendTO     time.Duration

	sub *nats.Subscription
}

func New(logger *zap.Logger, sender Sender, recipients []string) *Notifier {
	return &Notifier{
		logger:     logger,
		sender:     sender,
		recipients: recipients,
		sendTO:     10 * time.Second,
	}
}

// Start subscribes to the proposal change feed.
func (n *Notifier) Start(nc *nats.Conn) error {
	sub, err := nc.Subscribe(events.StreamSubjects, func(msg *nats.Msg) {
		var env model.ChangeEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			n.logger.Warn("notify.decode_failed",
				zap.String("subject", msg.Subject),
				zap.Error(err))
			metrics.IncError("notify", "decode_failed")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), n.sendTO)
		defer cancel()
		n.HandleChange(ctx, env.Change)
	})
	if err != nil {
		return fmt.Errorf("subscribe to change feed: %w", err)
	}
	n.sub = sub
	n.logger.Info("notify.subscribed", zap.String("subject", events.StreamSubjects))
	return nil
}

// Stop unsubscribes from the change feed.
func (n *Notifier) Stop() {
	if n.sub != nil {
		_ = n.sub.Unsubscribe()
	}
}

// HandleChange applies the notification predicate to one change-feed entry.
// Inserts announce a new proposal; Pending → Approved/Rejected announces the
// decision. Everything else, including Approved to Completed, is silent so
// propagation cycles cannot cause a notification storm.
func (n *Notifier) HandleChange(ctx context.Context, change model.ProposalChange) {
	switch {
	case change.Old == nil:
		n.send(ctx, "created", n.newProposalEmail(change.New))
	case change.Old.ApprovalStatus == model.StatusPending &&
		(change.New.ApprovalStatus == model.StatusApproved || change.New.ApprovalStatus == model.StatusRejected):
		n.send(ctx, "reviewed", n.statusChangedEmail(change.New))
	}
}

type email struct {
	subject string
	body    string
}

func (n *Notifier) newProposalEmail(p model.Proposal) email {
	return email{
		subject: fmt.Sprintf("New Pricing Proposal for Product %s", p.ProductID),
		body: fmt.Sprintf(
			"A new pricing proposal has been created:\n"+
				"Product ID: %s\n"+
				"Variant ID: %s\n"+
				"Current Price: %s\n"+
				"Competitor Price: %s\n"+
				"Proposed Price: %s\n"+
				"Approval Status: %s\n"+
				"Please review the proposal in the Pricing Approval Dashboard.",
			p.ProductID, p.VariantID,
			p.CurrentPrice.StringFixed(2),
			p.CompetitorPrice.StringFixed(2),
			p.ProposedPrice.StringFixed(2),
			p.ApprovalStatus,
		),
	}
}

func (n *Notifier) statusChangedEmail(p model.Proposal) email {
	return email{
		subject: fmt.Sprintf("Pricing Proposal Update for Product %s", p.ProductID),
		body: fmt.Sprintf(
			"The pricing proposal for Product %s, Variant %s has been %s.\n"+
				"Proposed Price: %s\n"+
				"Reviewed By: %s\n"+
				"Approval Status: %s\n"+
				"Please review the status in the Pricing Approval Dashboard.",
			p.ProductID, p.VariantID, p.ApprovalStatus,
			p.ProposedPrice.StringFixed(2),
			p.ReviewedBy,
			p.ApprovalStatus,
		),
	}
}

func (n *Notifier) send(ctx context.Context, kind string, e email) {
	if n.sender == nil || len(n.recipients) == 0 {
		return
	}

	msgID, err := n.sender.Send(ctx, n.recipients, e.subject, e.body)
	if err != nil {
		n.logger.Error("notify.send_failed",
			zap.String("kind", kind),
			zap.String("subject", e.subject),
			zap.Error(err))
		metrics.IncNotification(kind, "error")
		return
	}

	n.logger.Info("notify.sent",
		zap.String("kind", kind),
		zap.String("message_id", msgID))
	metrics.IncNotification(kind, "ok")
}
