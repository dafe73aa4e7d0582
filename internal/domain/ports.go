package domain

import (
	"context"
	"time"
)

type ChargeStore interface {
	Create(ctx context.Context, charge *Charge) error
	FindByID(ctx context.Context, id int64) (*Charge, error)
	FindByExternalID(ctx context.Context, externalID string) (*Charge, error)

	// CompareAndSetStatus atomically moves the charge to next only if its
	// stored status is one of expected, appending exactly one ChargeEvent.
	// On a lost race it returns an AppError classifying the conflict:
	// OPERATION_IN_PROGRESS, CHARGE_EXPIRED, INVALID_STATE_TRANSITION or
	// CHARGE_NOT_FOUND. Re-requesting a transition the charge already sits
	// in is treated as an idempotent success and appends nothing.
	CompareAndSetStatus(ctx context.Context, id int64, expected []ChargeStatus, next ChargeStatus) error

	// SetGatewayTransactionID records the PSP reference. A transaction id,
	// once set, is never overwritten.
	SetGatewayTransactionID(ctx context.Context, id int64, transactionID string) error
	UpdateCardDetails(ctx context.Context, id int64, details *CardDetails) error

	ListByStatusOlderThan(ctx context.Context, statuses []ChargeStatus, age time.Duration, limit int) ([]Charge, error)
	ListByStatusAndProvider(ctx context.Context, statuses []ChargeStatus, provider string, limit int) ([]Charge, error)
	EventsFor(ctx context.Context, chargeID int64) ([]ChargeEvent, error)
}

// CaptureQueue is a durable at-least-once queue of capture instructions.
type CaptureQueue interface {
	Enqueue(ctx context.Context, chargeID int64) error
	// Dequeue claims at most one due item under a lease; nil means the queue
	// is currently empty.
	Dequeue(ctx context.Context, lease time.Duration) (*CaptureQueueItem, error)
	Ack(ctx context.Context, itemID int64) error
	// Nack releases the item for redelivery after backoff, bumping its
	// attempt counter.
	Nack(ctx context.Context, itemID int64, backoff time.Duration) error
}

type GatewayAccountStore interface {
	FindByID(ctx context.Context, id int64) (*GatewayAccount, error)
}

// AuthorisationRequest carries everything one gateway needs for a single
// authorisation attempt.
type AuthorisationRequest struct {
	Charge      *Charge
	Card        AuthCardDetails
	Credentials map[string]string
}

// GatewayClient is the per-provider capability set. Implementations own their
// wire encoding and their provider-status-to-result-code mapping. Connection
// failures (network, 5xx) and business rejections are reported as distinct
// AppError codes, never swallowed.
type GatewayClient interface {
	ProviderName() string
	Authorise(ctx context.Context, req AuthorisationRequest) (*GatewayOperationOutcome, error)
	Capture(ctx context.Context, charge *Charge, credentials map[string]string) (*GatewayOperationOutcome, error)
	Cancel(ctx context.Context, charge *Charge, credentials map[string]string) (*GatewayOperationOutcome, error)
	Refund(ctx context.Context, charge *Charge, credentials map[string]string, amount int64) (*GatewayOperationOutcome, error)
	Query(ctx context.Context, charge *Charge, credentials map[string]string) (*GatewayOperationOutcome, error)
}

// GatewayResolver picks the client for a gateway account's configured
// provider, resolved once at charge-load time.
type GatewayResolver interface {
	Resolve(provider string) (GatewayClient, error)
}
