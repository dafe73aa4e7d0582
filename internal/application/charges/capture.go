package charges

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

// ApproveCapture marks an authorised charge capturable and enqueues it for
// the asynchronous capture processor, so gateway slowness never blocks the
// approval call. Delayed-capture charges are only eligible once the minimum
// age since authorisation has elapsed.
func (s *Service) ApproveCapture(ctx context.Context, externalID string) (*domain.Charge, error) {
	charge, err := s.loadCharge(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if charge.Status == domain.StatusAwaitingCaptureRequest {
		authorisedAt, err := s.authorisedAt(ctx, charge)
		if err != nil {
			return nil, err
		}
		if time.Since(authorisedAt) < s.delayedCaptureAge {
			return nil, domain.ErrInvalidStateTransition(charge.ExternalID)
		}
	}

	// A repeat approval loses this compare-and-set with OPERATION_IN_PROGRESS,
	// so the charge is enqueued exactly once.
	err = s.store.CompareAndSetStatus(ctx, charge.ID,
		[]domain.ChargeStatus{domain.StatusAuthorisationSuccess, domain.StatusAwaitingCaptureRequest},
		domain.StatusCaptureApproved)
	if err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, charge.ID); err != nil {
		return nil, domain.ErrInternal("failed to enqueue capture")
	}
	return s.loadCharge(ctx, externalID)
}

// authorisedAt reads the authorisation moment from the event log. The
// delayed-capture minimum age counts from authorisation, not from charge
// creation.
func (s *Service) authorisedAt(ctx context.Context, charge *domain.Charge) (time.Time, error) {
	events, err := s.store.EventsFor(ctx, charge.ID)
	if err != nil {
		return time.Time{}, domain.ErrInternal("failed to load charge events")
	}
	at := charge.CreatedAt
	for _, event := range events {
		if event.Status == domain.StatusAuthorisationSuccess {
			at = event.CreatedAt
		}
	}
	return at, nil
}

// CaptureProcessor drains the durable capture queue with a pool of
// consumers. Delivery is at-least-once: the compare-and-set to
// CAPTURE_SUBMITTED before the PSP call, not the queue, is the idempotency
// guard, so duplicate messages can never submit the same capture twice.
type CaptureProcessor struct {
	service *Service
	queue   domain.CaptureQueue

	workers      int
	pollInterval time.Duration
	lease        time.Duration
	retryBackoff time.Duration
	maxRetries   int

	wg sync.WaitGroup
}

type CaptureProcessorOptions struct {
	Workers      int
	PollInterval time.Duration
	Lease        time.Duration
	RetryBackoff time.Duration
	MaxRetries   int
}

func NewCaptureProcessor(service *Service, queue domain.CaptureQueue, opts CaptureProcessorOptions) *CaptureProcessor {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &CaptureProcessor{
		service:      service,
		queue:        queue,
		workers:      workers,
		pollInterval: opts.PollInterval,
		lease:        opts.Lease,
		retryBackoff: opts.RetryBackoff,
		maxRetries:   opts.MaxRetries,
	}
}

func (p *CaptureProcessor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

func (p *CaptureProcessor) Wait() {
	p.wg.Wait()
}

func (p *CaptureProcessor) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := p.queue.Dequeue(ctx, p.lease)
		if err != nil {
			log.Printf("capture queue dequeue failed: %v", err)
		}
		if item == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.pollInterval):
			}
			continue
		}

		p.process(ctx, item)
	}
}

func (p *CaptureProcessor) process(ctx context.Context, item *domain.CaptureQueueItem) {
	charge, err := p.service.store.FindByID(ctx, item.ChargeID)
	if err != nil {
		log.Printf("capture: failed to load charge %d: %v", item.ChargeID, err)
		p.nack(ctx, item)
		return
	}

	// The charge may have been cancelled or completed between enqueue and
	// dequeue; a stale message is dropped, not an error.
	if charge == nil ||
		(charge.Status != domain.StatusCaptureApproved && charge.Status != domain.StatusCaptureApprovedRetry) {
		p.ack(ctx, item)
		return
	}

	client, credentials, gerr := p.service.gatewayFor(ctx, charge)
	if gerr != nil {
		log.Printf("capture: gateway resolution failed for charge %s: %v", charge.ExternalID, gerr)
		p.retryOrFail(ctx, charge, item, captureClaimable())
		return
	}

	// Claim the charge before talking to the PSP. Of two workers holding
	// duplicate messages for one charge, exactly one wins this transition;
	// the loser drops its message without ever reaching the gateway.
	if err := p.service.store.CompareAndSetStatus(ctx, charge.ID,
		captureClaimable(), domain.StatusCaptureSubmitted); err != nil {
		log.Printf("capture: submit transition lost for charge %s: %v", charge.ExternalID, err)
		p.ack(ctx, item)
		return
	}

	submitted := []domain.ChargeStatus{domain.StatusCaptureSubmitted}

	outcome, cerr := client.Capture(ctx, charge, credentials)
	if cerr != nil {
		// Connection-level failure: retry with backoff up to the cap.
		log.Printf("capture: gateway call failed for charge %s: %v", charge.ExternalID, cerr)
		p.retryOrFail(ctx, charge, item, submitted)
		return
	}
	if !outcome.Succeeded() {
		// The provider explicitly refused; retrying won't change its mind.
		log.Printf("capture: rejected by %s for charge %s: %s", client.ProviderName(), charge.ExternalID, outcome.ProviderStatus)
		p.markFailed(ctx, charge, submitted)
		p.ack(ctx, item)
		return
	}

	if err := p.service.store.CompareAndSetStatus(ctx, charge.ID,
		submitted, domain.StatusCaptured); err != nil {
		log.Printf("capture: captured transition lost for charge %s: %v", charge.ExternalID, err)
	}
	p.ack(ctx, item)
}

func captureClaimable() []domain.ChargeStatus {
	return []domain.ChargeStatus{domain.StatusCaptureApproved, domain.StatusCaptureApprovedRetry}
}

func (p *CaptureProcessor) retryOrFail(ctx context.Context, charge *domain.Charge, item *domain.CaptureQueueItem, expected []domain.ChargeStatus) {
	if item.Attempts+1 >= p.maxRetries {
		p.markFailed(ctx, charge, expected)
		p.ack(ctx, item)
		return
	}

	err := p.service.store.CompareAndSetStatus(ctx, charge.ID,
		expected, domain.StatusCaptureApprovedRetry)
	if err != nil {
		log.Printf("capture: retry transition lost for charge %s: %v", charge.ExternalID, err)
		p.ack(ctx, item)
		return
	}
	p.nack(ctx, item)
}

func (p *CaptureProcessor) markFailed(ctx context.Context, charge *domain.Charge, expected []domain.ChargeStatus) {
	err := p.service.store.CompareAndSetStatus(ctx, charge.ID,
		expected, domain.StatusCaptureError)
	if err != nil {
		log.Printf("capture: failed transition lost for charge %s: %v", charge.ExternalID, err)
	}
}

func (p *CaptureProcessor) ack(ctx context.Context, item *domain.CaptureQueueItem) {
	if err := p.queue.Ack(ctx, item.ID); err != nil {
		log.Printf("capture: ack failed for item %d: %v", item.ID, err)
	}
}

func (p *CaptureProcessor) nack(ctx context.Context, item *domain.CaptureQueueItem) {
	if err := p.queue.Nack(ctx, item.ID, p.retryBackoff); err != nil {
		log.Printf("capture: nack failed for item %d: %v", item.ID, err)
	}
}
