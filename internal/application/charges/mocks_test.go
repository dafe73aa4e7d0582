package charges

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

type MockChargeStore struct {
	mock.Mock
}

func (m *MockChargeStore) Create(ctx context.Context, charge *domain.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockChargeStore) FindByID(ctx context.Context, id int64) (*domain.Charge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Charge), args.Error(1)
}

func (m *MockChargeStore) FindByExternalID(ctx context.Context, externalID string) (*domain.Charge, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Charge), args.Error(1)
}

func (m *MockChargeStore) CompareAndSetStatus(ctx context.Context, id int64, expected []domain.ChargeStatus, next domain.ChargeStatus) error {
	args := m.Called(ctx, id, expected, next)
	return args.Error(0)
}

func (m *MockChargeStore) SetGatewayTransactionID(ctx context.Context, id int64, transactionID string) error {
	args := m.Called(ctx, id, transactionID)
	return args.Error(0)
}

func (m *MockChargeStore) UpdateCardDetails(ctx context.Context, id int64, details *domain.CardDetails) error {
	args := m.Called(ctx, id, details)
	return args.Error(0)
}

func (m *MockChargeStore) ListByStatusOlderThan(ctx context.Context, statuses []domain.ChargeStatus, age time.Duration, limit int) ([]domain.Charge, error) {
	args := m.Called(ctx, statuses, age, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Charge), args.Error(1)
}

func (m *MockChargeStore) ListByStatusAndProvider(ctx context.Context, statuses []domain.ChargeStatus, provider string, limit int) ([]domain.Charge, error) {
	args := m.Called(ctx, statuses, provider, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Charge), args.Error(1)
}

func (m *MockChargeStore) EventsFor(ctx context.Context, chargeID int64) ([]domain.ChargeEvent, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChargeEvent), args.Error(1)
}

type MockCaptureQueue struct {
	mock.Mock
}

func (m *MockCaptureQueue) Enqueue(ctx context.Context, chargeID int64) error {
	args := m.Called(ctx, chargeID)
	return args.Error(0)
}

func (m *MockCaptureQueue) Dequeue(ctx context.Context, lease time.Duration) (*domain.CaptureQueueItem, error) {
	args := m.Called(ctx, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CaptureQueueItem), args.Error(1)
}

func (m *MockCaptureQueue) Ack(ctx context.Context, itemID int64) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

func (m *MockCaptureQueue) Nack(ctx context.Context, itemID int64, backoff time.Duration) error {
	args := m.Called(ctx, itemID, backoff)
	return args.Error(0)
}

type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) FindByID(ctx context.Context, id int64) (*domain.GatewayAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayAccount), args.Error(1)
}

type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) ProviderName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockGatewayClient) Authorise(ctx context.Context, req domain.AuthorisationRequest) (*domain.GatewayOperationOutcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayOperationOutcome), args.Error(1)
}

func (m *MockGatewayClient) Capture(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	args := m.Called(ctx, charge, credentials)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayOperationOutcome), args.Error(1)
}

func (m *MockGatewayClient) Cancel(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	args := m.Called(ctx, charge, credentials)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayOperationOutcome), args.Error(1)
}

func (m *MockGatewayClient) Refund(ctx context.Context, charge *domain.Charge, credentials map[string]string, amount int64) (*domain.GatewayOperationOutcome, error) {
	args := m.Called(ctx, charge, credentials, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayOperationOutcome), args.Error(1)
}

func (m *MockGatewayClient) Query(ctx context.Context, charge *domain.Charge, credentials map[string]string) (*domain.GatewayOperationOutcome, error) {
	args := m.Called(ctx, charge, credentials)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayOperationOutcome), args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(provider string) (domain.GatewayClient, error) {
	args := m.Called(provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.GatewayClient), args.Error(1)
}
