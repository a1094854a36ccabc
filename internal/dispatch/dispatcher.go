// Package dispatch fans approved proposals out to their platform adapters and
// records completion only on confirmed downstream success.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/alitto/pond"
	"go.uber.org/zap"

	"github.com/pricefleet/repricer/internal/metrics"
	"github.com/pricefleet/repricer/internal/platform"
	"github.com/pricefleet/repricer/pkg/model"
)

// ApprovedSource lists proposals by status. Satisfied by store.Store.
type ApprovedSource interface {
	ListByStatus(ctx context.Context, status model.Status) ([]model.Proposal, error)
}

// Completer applies the Approved → Completed transition. Satisfied by
// proposal.Service, which is the sole writer of ApprovalStatus.
type Completer interface {
	Complete(ctx context.Context, key model.Key) (*model.Proposal, error)
}

// Report aggregates the outcome of one propagation cycle. Per-item adapter
// failures never fail the cycle; only a store outage does.
type Report struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Dispatcher runs propagation cycles: scan Approved, call the matching
// platform adapter per item with bounded parallelism, complete on success.
type Dispatcher struct {
	logger         *zap.Logger
	source         ApprovedSource
	completer      Completer
	registry       *platform.Registry
	pool           *pond.WorkerPool
	adapterTimeout time.Duration

	// cycleMu serializes cycles so one identity is never dispatched twice
	// concurrently, whatever triggered the run.
	cycleMu sync.Mutex

	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New constructs a Dispatcher. interval of 0 disables the background runner;
// cycles then run only via RunCycle (e.g. the HTTP trigger).
func New(
	logger *zap.Logger,
	source ApprovedSource,
	completer Completer,
	registry *platform.Registry,
	workers int,
	adapterTimeout time.Duration,
	interval time.Duration,
) *Dispatcher {
	if workers <= 0 {
		workers = 8
	}
	if adapterTimeout <= 0 {
		adapterTimeout = 15 * time.Second
	}
	return &Dispatcher{
		logger:         logger,
		source:         source,
		completer:      completer,
		registry:       registry,
		pool:           pond.New(workers, workers*4),
		adapterTimeout: adapterTimeout,
		interval:       interval,
		stopCh:         make(chan struct{}),
	}
}

// RunCycle pushes every Approved proposal to its platform adapter. Items whose
// platform has no registered adapter are skipped; items whose adapter call
// fails (or times out) stay Approved for the next cycle. A record reaches
// Completed only after its adapter confirmed success. Returns an error only
// when the scan itself fails.
func (d *Dispatcher) RunCycle(ctx context.Context) (Report, error) {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	approved, err := d.source.ListByStatus(ctx, model.StatusApproved)
	if err != nil {
		d.logger.Error("dispatch.scan_failed", zap.Error(err))
		metrics.IncError("dispatch", "scan_failed")
		return Report{}, err
	}

	// The scan result is a snapshot; drop duplicate identities so no key is
	// handed to two workers in the same cycle.
	seen := make(map[model.Key]struct{}, len(approved))

	var (
		mu     sync.Mutex
		report Report
	)
	group := d.pool.Group()

	for _, item := range approved {
		if ctx.Err() != nil {
			// Cancellation stops issuing further adapter calls; transitions
			// already made stay intact.
			d.logger.Warn("dispatch.cycle_canceled", zap.Error(ctx.Err()))
			break
		}

		key := item.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		adapter, ok := d.registry.Resolve(item.Platform)
		if !ok {
			d.logger.Warn("dispatch.unknown_platform",
				zap.String("key", key.String()),
				zap.String("platform", string(item.Platform)))
			metrics.IncDispatchItem("skipped")
			metrics.IncError("dispatch", "unknown_platform")
			mu.Lock()
			report.Skipped++
			mu.Unlock()
			continue
		}

		item := item
		group.Submit(func() {
			outcome := d.dispatchOne(ctx, adapter, item)
			metrics.IncDispatchItem(outcome)
			mu.Lock()
			report.Attempted++
			if outcome == "succeeded" {
				report.Succeeded++
			} else {
				report.Failed++
			}
			mu.Unlock()
		})
	}

	group.Wait()
	metrics.SetLastCycle(time.Now())

	d.logger.Info("dispatch.cycle_complete",
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped))

	return report, nil
}

// dispatchOne performs a single adapter call and, on success, the completion
// transition. Returns "succeeded" or "failed".
func (d *Dispatcher) dispatchOne(ctx context.Context, adapter platform.Adapter, item model.Proposal) string {
	key := item.Key()

	callCtx, cancel := context.WithTimeout(ctx, d.adapterTimeout)
	defer cancel()

	if err := adapter.UpdatePrice(callCtx, item.ProductID, item.VariantID, item.ProposedPrice); err != nil {
		// The record stays Approved and is eligible for re-dispatch next cycle.
		d.logger.Warn("dispatch.adapter_failed",
			zap.String("key", key.String()),
			zap.String("platform", string(item.Platform)),
			zap.Error(err))
		return "failed"
	}

	if _, err := d.completer.Complete(ctx, key); err != nil {
		// The platform accepted the price but the status write failed; the
		// record will be re-dispatched, so adapter updates must tolerate
		// repeating the same price.
		d.logger.Error("dispatch.complete_failed",
			zap.String("key", key.String()),
			zap.Error(err))
		metrics.IncError("dispatch", "complete_failed")
		return "failed"
	}

	d.logger.Info("dispatch.item_completed",
		zap.String("key", key.String()),
		zap.String("platform", string(item.Platform)),
		zap.String("price", item.ProposedPrice.StringFixed(2)))
	return "succeeded"
}

// Start runs propagation cycles on the configured interval until Stop or ctx
// cancellation. No-op when the interval is 0.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.interval <= 0 {
		d.logger.Info("dispatch.runner_disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stopCh:
				return
			case <-ticker.C:
				if _, err := d.RunCycle(ctx); err != nil {
					d.logger.Error("dispatch.cycle_failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop terminates the background runner and waits for in-flight work.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	d.pool.StopAndWait()
}
