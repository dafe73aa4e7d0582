// Package charges implements the charge lifecycle orchestration: creation,
// authorisation, capture, cancellation, expiry and reconciliation. All status
// writes go through the store's compare-and-set, which is the only
// mutual-exclusion mechanism; there are no in-process locks on charges.
package charges

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/halcyonpay/charge-connector/internal/domain"
)

type Service struct {
	store    domain.ChargeStore
	queue    domain.CaptureQueue
	accounts domain.GatewayAccountStore
	gateways domain.GatewayResolver

	authPool          *WorkerPool
	authSyncTimeout   time.Duration
	authAsyncTimeout  time.Duration
	expiryThreshold   time.Duration
	delayedCaptureAge time.Duration
}

type Options struct {
	AuthWorkerPool    int
	AuthSyncTimeout   time.Duration
	AuthAsyncTimeout  time.Duration
	ExpiryThreshold   time.Duration
	DelayedCaptureAge time.Duration
}

func NewService(
	store domain.ChargeStore,
	queue domain.CaptureQueue,
	accounts domain.GatewayAccountStore,
	gateways domain.GatewayResolver,
	opts Options,
) *Service {
	return &Service{
		store:             store,
		queue:             queue,
		accounts:          accounts,
		gateways:          gateways,
		authPool:          NewWorkerPool(opts.AuthWorkerPool),
		authSyncTimeout:   opts.AuthSyncTimeout,
		authAsyncTimeout:  opts.AuthAsyncTimeout,
		expiryThreshold:   opts.ExpiryThreshold,
		delayedCaptureAge: opts.DelayedCaptureAge,
	}
}

func (s *Service) CreateCharge(ctx context.Context, accountID int64, req domain.ChargeRequest) (*domain.Charge, error) {
	if err := validateChargeRequest(req); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load gateway account")
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound(accountID)
	}

	mode := req.AuthorisationMode
	if mode == "" {
		mode = domain.AuthorisationModeWeb
	}
	language := req.Language
	if language == "" {
		language = "en"
	}

	charge := &domain.Charge{
		ExternalID:        uuid.New().String(),
		Amount:            req.Amount,
		Status:            domain.StatusCreated,
		Reference:         req.Reference,
		Description:       req.Description,
		ReturnURL:         req.ReturnURL,
		Email:             req.Email,
		Language:          language,
		AuthorisationMode: mode,
		Source:            req.Source,
		GatewayAccountID:  account.ID,
		DelayedCapture:    req.DelayedCapture,
		AgreementID:       req.AgreementID,
		CreatedAt:         time.Now(),
	}
	if err := s.store.Create(ctx, charge); err != nil {
		return nil, domain.ErrInternal("failed to create charge")
	}
	return charge, nil
}

func (s *Service) GetCharge(ctx context.Context, externalID string) (*domain.Charge, error) {
	return s.loadCharge(ctx, externalID)
}

func (s *Service) GetChargeEvents(ctx context.Context, externalID string) ([]domain.ChargeEvent, error) {
	charge, err := s.loadCharge(ctx, externalID)
	if err != nil {
		return nil, err
	}
	events, err := s.store.EventsFor(ctx, charge.ID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load charge events")
	}
	return events, nil
}

// ProgressToCardDetails moves a freshly created charge to the card-entry
// phase, the precondition for authorisation.
func (s *Service) ProgressToCardDetails(ctx context.Context, externalID string) (*domain.Charge, error) {
	charge, err := s.loadCharge(ctx, externalID)
	if err != nil {
		return nil, err
	}
	err = s.store.CompareAndSetStatus(ctx, charge.ID,
		[]domain.ChargeStatus{domain.StatusCreated}, domain.StatusEnteringCardDetails)
	if err != nil {
		return nil, err
	}
	return s.loadCharge(ctx, externalID)
}

// Cancel ends a pre-capture charge. Charges that already reached the gateway
// go through CANCEL_READY and a gateway-side cancel; earlier charges are
// cancelled directly.
func (s *Service) Cancel(ctx context.Context, externalID string, system bool) (*domain.Charge, error) {
	charge, err := s.loadCharge(ctx, externalID)
	if err != nil {
		return nil, err
	}

	terminal := domain.StatusUserCancelled
	failed := domain.StatusCancelError
	if system {
		terminal = domain.StatusSystemCancelled
		failed = domain.StatusSystemCancelError
	}

	if charge.GatewayTransactionID == "" {
		err = s.store.CompareAndSetStatus(ctx, charge.ID,
			[]domain.ChargeStatus{domain.StatusCreated, domain.StatusEnteringCardDetails, domain.StatusAuthorisation3DSRequired},
			terminal)
		if err != nil {
			return nil, err
		}
		return s.loadCharge(ctx, externalID)
	}

	// A 3DS-required charge already holds a gateway transaction, so its
	// cancel must go through the gateway like a fully authorised one.
	err = s.store.CompareAndSetStatus(ctx, charge.ID,
		[]domain.ChargeStatus{domain.StatusAuthorisationSuccess, domain.StatusAwaitingCaptureRequest, domain.StatusAuthorisation3DSRequired},
		domain.StatusCancelReady)
	if err != nil {
		return nil, err
	}

	client, credentials, gerr := s.gatewayFor(ctx, charge)
	if gerr != nil {
		_ = s.store.CompareAndSetStatus(ctx, charge.ID,
			[]domain.ChargeStatus{domain.StatusCancelReady}, failed)
		return nil, gerr
	}

	outcome, cerr := client.Cancel(ctx, charge, credentials)
	if cerr != nil || !outcome.Succeeded() {
		_ = s.store.CompareAndSetStatus(ctx, charge.ID,
			[]domain.ChargeStatus{domain.StatusCancelReady}, failed)
		if cerr != nil {
			return nil, cerr
		}
		return nil, domain.ErrGatewayBusiness(client.ProviderName(), outcome.ProviderStatus)
	}

	err = s.store.CompareAndSetStatus(ctx, charge.ID,
		[]domain.ChargeStatus{domain.StatusCancelReady}, terminal)
	if err != nil {
		return nil, err
	}
	return s.loadCharge(ctx, externalID)
}

// Refund forwards a refund instruction for a captured charge. Refunds have no
// lifecycle states of their own; the normalized gateway outcome is returned
// to the caller as-is.
func (s *Service) Refund(ctx context.Context, externalID string, amount int64) (*domain.GatewayOperationOutcome, error) {
	charge, err := s.loadCharge(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if charge.Status != domain.StatusCaptured {
		return nil, domain.ErrInvalidStateTransition(charge.ExternalID)
	}
	if amount <= 0 || amount > charge.Amount {
		return nil, domain.ErrInvalidChargeRequest([]string{"refund amount must be between 1 and the charge amount"})
	}

	client, credentials, gerr := s.gatewayFor(ctx, charge)
	if gerr != nil {
		return nil, gerr
	}
	outcome, rerr := client.Refund(ctx, charge, credentials, amount)
	if rerr != nil {
		return nil, rerr
	}
	if !outcome.Succeeded() {
		return nil, domain.ErrGatewayBusiness(client.ProviderName(), outcome.ProviderStatus)
	}
	return outcome, nil
}

func (s *Service) loadCharge(ctx context.Context, externalID string) (*domain.Charge, error) {
	charge, err := s.store.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load charge")
	}
	if charge == nil {
		return nil, domain.ErrChargeNotFound(externalID)
	}
	return charge, nil
}

// gatewayFor resolves the provider client and decodes credentials once per
// charge load.
func (s *Service) gatewayFor(ctx context.Context, charge *domain.Charge) (domain.GatewayClient, map[string]string, error) {
	account, err := s.accounts.FindByID(ctx, charge.GatewayAccountID)
	if err != nil {
		return nil, nil, domain.ErrInternal("failed to load gateway account")
	}
	if account == nil {
		return nil, nil, domain.ErrAccountNotFound(charge.GatewayAccountID)
	}

	client, err := s.gateways.Resolve(account.Provider)
	if err != nil {
		return nil, nil, err
	}

	credentials := map[string]string{}
	if len(account.Credentials) > 0 {
		if err := json.Unmarshal(account.Credentials, &credentials); err != nil {
			return nil, nil, domain.ErrInternal("failed to decode gateway credentials")
		}
	}
	return client, credentials, nil
}

func validateChargeRequest(req domain.ChargeRequest) error {
	var reasons []string

	if req.Amount <= 0 {
		reasons = append(reasons, "amount must be greater than 0")
	}
	if req.Reference == "" {
		reasons = append(reasons, "reference is required")
	}
	if req.AuthorisationMode != "" && !domain.ValidAuthorisationModes[req.AuthorisationMode] {
		reasons = append(reasons, "authorisation_mode must be one of web, moto, moto_api")
	}
	if req.AuthorisationMode == domain.AuthorisationModeWeb || req.AuthorisationMode == "" {
		if req.ReturnURL == "" {
			reasons = append(reasons, "return_url is required for web payments")
		}
	}

	if len(reasons) > 0 {
		return domain.ErrInvalidChargeRequest(reasons)
	}
	return nil
}
