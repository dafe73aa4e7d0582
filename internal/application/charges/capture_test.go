package charges

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

func newProcessor(f *serviceFixture) *CaptureProcessor {
	return NewCaptureProcessor(f.service, f.queue, CaptureProcessorOptions{
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
		Lease:        time.Minute,
		RetryBackoff: time.Second,
		MaxRetries:   3,
	})
}

func TestApproveCapture_MarksApprovedAndEnqueues(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusAuthorisationSuccess)
	f.store.On("FindByExternalID", mock.Anything, "ext-1").Return(charge, nil)
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusAuthorisationSuccess, domain.StatusAwaitingCaptureRequest},
		domain.StatusCaptureApproved).Return(nil)
	f.queue.On("Enqueue", mock.Anything, int64(1)).Return(nil)

	_, err := f.service.ApproveCapture(context.Background(), "ext-1")

	require.NoError(t, err)
	f.queue.AssertExpectations(t)
}

func TestApproveCapture_DelayedChargeTooYoungSinceAuthorisation(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusAwaitingCaptureRequest)
	f.store.On("FindByExternalID", mock.Anything, "ext-1").Return(charge, nil)

	// The charge itself is old, but it was only just authorised; the minimum
	// age counts from the authorisation event.
	f.store.On("EventsFor", mock.Anything, int64(1)).Return([]domain.ChargeEvent{
		{ChargeID: 1, Status: domain.StatusCreated, CreatedAt: charge.CreatedAt},
		{ChargeID: 1, Status: domain.StatusAuthorisationSuccess, CreatedAt: time.Now()},
		{ChargeID: 1, Status: domain.StatusAwaitingCaptureRequest, CreatedAt: time.Now()},
	}, nil)

	_, err := f.service.ApproveCapture(context.Background(), "ext-1")

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, "INVALID_STATE_TRANSITION"))
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestApproveCapture_DelayedChargeOldEnough(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusAwaitingCaptureRequest)
	f.store.On("FindByExternalID", mock.Anything, "ext-1").Return(charge, nil)
	f.store.On("EventsFor", mock.Anything, int64(1)).Return([]domain.ChargeEvent{
		{ChargeID: 1, Status: domain.StatusAuthorisationSuccess, CreatedAt: time.Now().Add(-10 * time.Minute)},
	}, nil)
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusAuthorisationSuccess, domain.StatusAwaitingCaptureRequest},
		domain.StatusCaptureApproved).Return(nil)
	f.queue.On("Enqueue", mock.Anything, int64(1)).Return(nil)

	_, err := f.service.ApproveCapture(context.Background(), "ext-1")

	require.NoError(t, err)
	f.queue.AssertExpectations(t)
}

func TestApproveCapture_RepeatObservesOperationInProgress(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusCaptureApproved)
	f.store.On("FindByExternalID", mock.Anything, "ext-1").Return(charge, nil)
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusAuthorisationSuccess, domain.StatusAwaitingCaptureRequest},
		domain.StatusCaptureApproved).Return(domain.ErrOperationInProgress("Capture", "ext-1"))

	_, err := f.service.ApproveCapture(context.Background(), "ext-1")

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, "OPERATION_IN_PROGRESS"))
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestApproveCapture_WrongState(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusEnteringCardDetails)
	f.store.On("FindByExternalID", mock.Anything, "ext-1").Return(charge, nil)
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusAuthorisationSuccess, domain.StatusAwaitingCaptureRequest},
		domain.StatusCaptureApproved).Return(domain.ErrInvalidStateTransition("ext-1"))

	_, err := f.service.ApproveCapture(context.Background(), "ext-1")

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, "INVALID_STATE_TRANSITION"))
	f.queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestProcess_SuccessfulCapture(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusCaptureApproved)
	charge.GatewayTransactionID = "txn-1"
	f.store.On("FindByID", mock.Anything, int64(1)).Return(charge, nil)
	f.withGateway(f.sandboxAccount())
	f.client.On("Capture", mock.Anything, charge, mock.Anything).
		Return(&domain.GatewayOperationOutcome{Result: domain.GatewayResultSuccess}, nil)
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusCaptureApproved, domain.StatusCaptureApprovedRetry},
		domain.StatusCaptureSubmitted).Return(nil)
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusCaptureSubmitted}, domain.StatusCaptured).Return(nil)
	f.queue.On("Ack", mock.Anything, int64(10)).Return(nil)

	newProcessor(f).process(context.Background(), &domain.CaptureQueueItem{ID: 10, ChargeID: 1})

	f.store.AssertExpectations(t)
	f.queue.AssertExpectations(t)
}

func TestProcess_ClaimsChargeBeforeCallingGateway(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusCaptureApproved)
	f.store.On("FindByID", mock.Anything, int64(1)).Return(charge, nil)
	f.withGateway(f.sandboxAccount())

	claimed := false
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusCaptureApproved, domain.StatusCaptureApprovedRetry},
		domain.StatusCaptureSubmitted).
		Run(func(mock.Arguments) { claimed = true }).Return(nil)
	f.client.On("Capture", mock.Anything, charge, mock.Anything).
		Run(func(mock.Arguments) {
			assert.True(t, claimed, "gateway must only be called after the charge is claimed")
		}).
		Return(&domain.GatewayOperationOutcome{Result: domain.GatewayResultSuccess}, nil)
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusCaptureSubmitted}, domain.StatusCaptured).Return(nil)
	f.queue.On("Ack", mock.Anything, int64(10)).Return(nil)

	newProcessor(f).process(context.Background(), &domain.CaptureQueueItem{ID: 10, ChargeID: 1})

	f.store.AssertExpectations(t)
	f.client.AssertExpectations(t)
}

func TestProcess_DuplicateMessageLosesClaimAndNeverSubmits(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusCaptureApproved)
	f.store.On("FindByID", mock.Anything, int64(1)).Return(charge, nil)
	f.withGateway(f.sandboxAccount())

	// Another worker holds the claim; this delivery loses the compare-and-set
	// and must drop its message without reaching the gateway.
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusCaptureApproved, domain.StatusCaptureApprovedRetry},
		domain.StatusCaptureSubmitted).
		Return(domain.ErrOperationInProgress("Capture", "ext-1"))
	f.queue.On("Ack", mock.Anything, int64(10)).Return(nil)

	newProcessor(f).process(context.Background(), &domain.CaptureQueueItem{ID: 10, ChargeID: 1})

	f.client.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything, mock.Anything)
	f.queue.AssertExpectations(t)
}

func TestProcess_TransientFailureGoesToRetry(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusCaptureApproved)
	f.store.On("FindByID", mock.Anything, int64(1)).Return(charge, nil)
	f.withGateway(f.sandboxAccount())
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusCaptureApproved, domain.StatusCaptureApprovedRetry},
		domain.StatusCaptureSubmitted).Return(nil)
	f.client.On("Capture", mock.Anything, charge, mock.Anything).
		Return(nil, domain.ErrGatewayConnection("sandbox", assert.AnError))
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusCaptureSubmitted},
		domain.StatusCaptureApprovedRetry).Return(nil)
	f.queue.On("Nack", mock.Anything, int64(10), time.Second).Return(nil)

	newProcessor(f).process(context.Background(), &domain.CaptureQueueItem{ID: 10, ChargeID: 1, Attempts: 0})

	f.store.AssertExpectations(t)
	f.queue.AssertExpectations(t)
	f.queue.AssertNotCalled(t, "Ack", mock.Anything, mock.Anything)
}

func TestProcess_RetryCapMarksCaptureError(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusCaptureApprovedRetry)
	f.store.On("FindByID", mock.Anything, int64(1)).Return(charge, nil)
	f.withGateway(f.sandboxAccount())
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusCaptureApproved, domain.StatusCaptureApprovedRetry},
		domain.StatusCaptureSubmitted).Return(nil)
	f.client.On("Capture", mock.Anything, charge, mock.Anything).
		Return(nil, domain.ErrGatewayConnection("sandbox", assert.AnError))
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusCaptureSubmitted},
		domain.StatusCaptureError).Return(nil)
	f.queue.On("Ack", mock.Anything, int64(10)).Return(nil)

	// Third delivery of a processor configured with MaxRetries 3.
	newProcessor(f).process(context.Background(), &domain.CaptureQueueItem{ID: 10, ChargeID: 1, Attempts: 2})

	f.store.AssertExpectations(t)
	f.queue.AssertExpectations(t)
	f.queue.AssertNotCalled(t, "Nack", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_BusinessRejectionIsNeverRetried(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusCaptureApproved)
	f.store.On("FindByID", mock.Anything, int64(1)).Return(charge, nil)
	f.withGateway(f.sandboxAccount())
	f.client.On("ProviderName").Return("sandbox")
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusCaptureApproved, domain.StatusCaptureApprovedRetry},
		domain.StatusCaptureSubmitted).Return(nil)
	f.client.On("Capture", mock.Anything, charge, mock.Anything).
		Return(&domain.GatewayOperationOutcome{Result: domain.GatewayResultDeclined, ProviderStatus: "REFUSED"}, nil)
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusCaptureSubmitted},
		domain.StatusCaptureError).Return(nil)
	f.queue.On("Ack", mock.Anything, int64(10)).Return(nil)

	newProcessor(f).process(context.Background(), &domain.CaptureQueueItem{ID: 10, ChargeID: 1})

	f.queue.AssertNotCalled(t, "Nack", mock.Anything, mock.Anything, mock.Anything)
	f.store.AssertExpectations(t)
}

func TestProcess_StaleMessageIsDropped(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusCaptured)
	f.store.On("FindByID", mock.Anything, int64(1)).Return(charge, nil)
	f.queue.On("Ack", mock.Anything, int64(10)).Return(nil)

	newProcessor(f).process(context.Background(), &domain.CaptureQueueItem{ID: 10, ChargeID: 1})

	f.client.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything, mock.Anything)
	f.queue.AssertExpectations(t)
}

func TestProcessor_RunDrainsQueue(t *testing.T) {
	f := newFixture(t)
	charge := testCharge(domain.StatusCaptureApproved)
	charge.GatewayTransactionID = "txn-1"

	item := &domain.CaptureQueueItem{ID: 10, ChargeID: 1}
	f.queue.On("Dequeue", mock.Anything, time.Minute).Return(item, nil).Once()
	f.queue.On("Dequeue", mock.Anything, time.Minute).Return(nil, nil)

	f.store.On("FindByID", mock.Anything, int64(1)).Return(charge, nil)
	f.withGateway(f.sandboxAccount())
	f.client.On("Capture", mock.Anything, charge, mock.Anything).
		Return(&domain.GatewayOperationOutcome{Result: domain.GatewayResultSuccess}, nil)
	f.store.On("CompareAndSetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	acked := make(chan struct{})
	f.queue.On("Ack", mock.Anything, int64(10)).
		Run(func(mock.Arguments) { close(acked) }).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	processor := newProcessor(f)
	processor.Start(ctx)

	select {
	case <-acked:
	case <-time.After(2 * time.Second):
		t.Fatal("queued capture was never processed")
	}

	cancel()
	processor.Wait()
}
