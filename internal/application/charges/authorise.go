package charges

import (
	"context"
	"log"
	"time"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

type authResult struct {
	outcome *domain.GatewayOperationOutcome
	err     error
}

// Authorise drives one authorisation attempt under bounded wall-clock time.
//
// The caller's wait is capped by the synchronous timeout. When it elapses,
// the charge is marked AUTHORISATION_TIMEOUT and the caller gets a timeout
// error — but the in-flight gateway call is never cancelled. The card may
// already have been charged remotely, so the worker keeps running and applies
// whatever outcome eventually arrives through the same compare-and-set
// discipline; whichever write loses that race is a no-op.
func (s *Service) Authorise(ctx context.Context, externalID string, card domain.AuthCardDetails) (*domain.Charge, error) {
	charge, err := s.loadCharge(ctx, externalID)
	if err != nil {
		return nil, err
	}

	client, credentials, err := s.gatewayFor(ctx, charge)
	if err != nil {
		return nil, err
	}

	// Acquire the status lock. Exactly one concurrent authorise wins this
	// transition; everyone else observes the classified conflict.
	err = s.store.CompareAndSetStatus(ctx, charge.ID,
		[]domain.ChargeStatus{domain.StatusEnteringCardDetails}, domain.StatusAuthorisationReady)
	if err != nil {
		return nil, err
	}

	// The synchronous budget covers both the wait for a pool slot and the
	// wait for the outcome; a saturated pool cannot stall the caller past it.
	deadline := time.Now().Add(s.authSyncTimeout)
	slotCtx, cancelSlot := context.WithDeadline(ctx, deadline)
	results := make(chan authResult, 1)
	submitErr := s.authPool.Submit(slotCtx, func() {
		s.runAuthorisation(charge, card, client, credentials, results)
	})
	cancelSlot()
	if submitErr != nil {
		_ = s.store.CompareAndSetStatus(context.Background(), charge.ID,
			[]domain.ChargeStatus{domain.StatusAuthorisationReady}, domain.StatusAuthorisationTimeout)
		return nil, domain.ErrAuthorisationTimeout()
	}

	select {
	case res := <-results:
		return s.finishSynchronously(ctx, charge, res)
	case <-time.After(time.Until(deadline)):
	}

	// Timed out waiting. Try to stamp the timeout; if the worker slipped its
	// outcome in just before us, use that instead.
	err = s.store.CompareAndSetStatus(ctx, charge.ID,
		[]domain.ChargeStatus{domain.StatusAuthorisationReady}, domain.StatusAuthorisationTimeout)
	if err != nil {
		select {
		case res := <-results:
			return s.finishSynchronously(ctx, charge, res)
		default:
		}
	}
	return nil, domain.ErrAuthorisationTimeout()
}

// runAuthorisation executes the gateway call on the worker pool, detached
// from the client's wait, and applies the outcome to the charge.
func (s *Service) runAuthorisation(
	charge *domain.Charge,
	card domain.AuthCardDetails,
	client domain.GatewayClient,
	credentials map[string]string,
	results chan<- authResult,
) {
	bgCtx, cancel := context.WithTimeout(context.Background(), s.authAsyncTimeout)
	defer cancel()

	outcome, err := client.Authorise(bgCtx, domain.AuthorisationRequest{
		Charge:      charge,
		Card:        card,
		Credentials: credentials,
	})

	if bgCtx.Err() != nil {
		// Worker abandoned: the remote call outlived even the asynchronous
		// timeout. Leave the charge in its last-known state for the sweepers.
		log.Printf("authorisation worker abandoned for charge %s after %s", charge.ExternalID, s.authAsyncTimeout)
		results <- authResult{err: domain.ErrAuthorisationTimeout()}
		return
	}

	// The worker deadline bounds the gateway call only; once an outcome is
	// known, recording it must not be lost to that deadline expiring.
	s.applyAuthorisationOutcome(context.Background(), charge, card, outcome, err)
	results <- authResult{outcome: outcome, err: err}
}

// applyAuthorisationOutcome writes the gateway's verdict through the state
// machine. The expected set includes AUTHORISATION_TIMEOUT so a late outcome
// still lands after the synchronous wait was abandoned.
func (s *Service) applyAuthorisationOutcome(
	ctx context.Context,
	charge *domain.Charge,
	card domain.AuthCardDetails,
	outcome *domain.GatewayOperationOutcome,
	callErr error,
) {
	expected := []domain.ChargeStatus{domain.StatusAuthorisationReady, domain.StatusAuthorisationTimeout}

	if callErr != nil {
		if err := s.store.CompareAndSetStatus(ctx, charge.ID, expected, domain.StatusAuthorisationError); err != nil {
			log.Printf("authorisation error for charge %s not recorded: %v", charge.ExternalID, err)
		}
		return
	}

	next := outcome.AuthorisationOutcomeStatus()
	if err := s.store.CompareAndSetStatus(ctx, charge.ID, expected, next); err != nil {
		log.Printf("late authorisation outcome for charge %s discarded: %v", charge.ExternalID, err)
		return
	}

	if outcome.TransactionID != "" {
		if err := s.store.SetGatewayTransactionID(ctx, charge.ID, outcome.TransactionID); err != nil {
			log.Printf("failed to record gateway transaction id for charge %s: %v", charge.ExternalID, err)
		}
	}
	if next == domain.StatusAuthorisationSuccess || next == domain.StatusAuthorisation3DSRequired {
		if err := s.store.UpdateCardDetails(ctx, charge.ID, card.Masked()); err != nil {
			log.Printf("failed to record card details for charge %s: %v", charge.ExternalID, err)
		}
	}

	// Delayed-capture charges wait for an explicit capture request instead of
	// becoming immediately capturable.
	if next == domain.StatusAuthorisationSuccess && charge.DelayedCapture {
		if err := s.store.CompareAndSetStatus(ctx, charge.ID,
			[]domain.ChargeStatus{domain.StatusAuthorisationSuccess}, domain.StatusAwaitingCaptureRequest); err != nil {
			log.Printf("failed to park charge %s for delayed capture: %v", charge.ExternalID, err)
		}
	}
}

// finishSynchronously translates an outcome that arrived before the
// synchronous timeout into the caller-facing result.
func (s *Service) finishSynchronously(ctx context.Context, charge *domain.Charge, res authResult) (*domain.Charge, error) {
	if res.err != nil {
		return nil, res.err
	}

	updated, err := s.loadCharge(ctx, charge.ExternalID)
	if err != nil {
		return nil, err
	}

	switch res.outcome.Result {
	case domain.GatewayResultSuccess, domain.GatewayResult3DSRequired:
		return updated, nil
	case domain.GatewayResultDeclined:
		return updated, domain.ErrAuthorisationRejected(charge.ExternalID)
	default:
		return updated, domain.ErrAuthorisationError(charge.ExternalID)
	}
}
