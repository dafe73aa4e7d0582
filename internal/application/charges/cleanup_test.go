package charges

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

func TestCleanupGatewayErrors_UnknownProvider(t *testing.T) {
	f := newFixture(t)
	f.resolver.On("Resolve", "barclaycard").Return(nil, domain.ErrUnknownProvider("barclaycard"))

	_, err := f.service.CleanupGatewayErrors(context.Background(), "barclaycard", 10)

	require.Error(t, err)
	assert.True(t, domain.IsCode(err, "UNKNOWN_PROVIDER"))
	f.store.AssertNotCalled(t, "ListByStatusAndProvider",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCleanupGatewayErrors_CancelsAmbiguousCharge(t *testing.T) {
	f := newFixture(t)
	charge := *testCharge(domain.StatusAuthorisationError)
	charge.GatewayTransactionID = "txn-1"

	f.resolver.On("Resolve", "sandbox").Return(f.client, nil)
	f.store.On("ListByStatusAndProvider", mock.Anything, domain.CleanupStatuses(), "sandbox", 10).
		Return([]domain.Charge{charge}, nil)
	f.accounts.On("FindByID", mock.Anything, int64(1)).Return(f.sandboxAccount(), nil)
	f.client.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.GatewayOperationOutcome{Result: domain.GatewayResultSuccess, ProviderStatus: "AUTHORISED"}, nil)
	f.client.On("Cancel", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.GatewayOperationOutcome{Result: domain.GatewayResultSuccess}, nil)
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusAuthorisationError},
		domain.StatusAuthorisationErrCancelled).Return(nil)

	result, err := f.service.CleanupGatewayErrors(context.Background(), "sandbox", 10)

	require.NoError(t, err)
	assert.Equal(t, SweepResult{Success: 1, Failed: 0}, result)
	f.store.AssertExpectations(t)
	f.client.AssertExpectations(t)
}

func TestCleanupGatewayErrors_ChargeGatewayNeverSawSkipsCancel(t *testing.T) {
	f := newFixture(t)
	charge := *testCharge(domain.StatusAuthorisationTimeout)

	f.resolver.On("Resolve", "sandbox").Return(f.client, nil)
	f.store.On("ListByStatusAndProvider", mock.Anything, domain.CleanupStatuses(), "sandbox", 10).
		Return([]domain.Charge{charge}, nil)
	f.accounts.On("FindByID", mock.Anything, int64(1)).Return(f.sandboxAccount(), nil)
	f.client.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.GatewayOperationOutcome{Result: domain.GatewayResultUnknown, ProviderStatus: "NOT_FOUND"}, nil)
	f.store.On("CompareAndSetStatus", mock.Anything, int64(1),
		[]domain.ChargeStatus{domain.StatusAuthorisationTimeout},
		domain.StatusAuthorisationErrCancelled).Return(nil)

	result, err := f.service.CleanupGatewayErrors(context.Background(), "sandbox", 10)

	require.NoError(t, err)
	assert.Equal(t, SweepResult{Success: 1, Failed: 0}, result)
	f.client.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything)
}

func TestCleanupGatewayErrors_QueryFailureCountsAsFailed(t *testing.T) {
	f := newFixture(t)
	charge := *testCharge(domain.StatusAuthorisationError)

	f.resolver.On("Resolve", "sandbox").Return(f.client, nil)
	f.store.On("ListByStatusAndProvider", mock.Anything, domain.CleanupStatuses(), "sandbox", 10).
		Return([]domain.Charge{charge}, nil)
	f.accounts.On("FindByID", mock.Anything, int64(1)).Return(f.sandboxAccount(), nil)
	f.client.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrGatewayConnection("sandbox", assert.AnError))

	result, err := f.service.CleanupGatewayErrors(context.Background(), "sandbox", 10)

	require.NoError(t, err)
	assert.Equal(t, SweepResult{Success: 0, Failed: 1}, result)
	f.store.AssertNotCalled(t, "CompareAndSetStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
