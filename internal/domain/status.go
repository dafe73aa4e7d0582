package domain

type ChargeStatus string

const (
	StatusCreated                    ChargeStatus = "CREATED"
	StatusEnteringCardDetails        ChargeStatus = "ENTERING_CARD_DETAILS"
	StatusAuthorisationReady         ChargeStatus = "AUTHORISATION_READY"
	StatusAuthorisation3DSRequired   ChargeStatus = "AUTHORISATION_3DS_REQUIRED"
	StatusAuthorisationSuccess       ChargeStatus = "AUTHORISATION_SUCCESS"
	StatusAuthorisationRejected      ChargeStatus = "AUTHORISATION_REJECTED"
	StatusAuthorisationError         ChargeStatus = "AUTHORISATION_ERROR"
	StatusAuthorisationUnexpected    ChargeStatus = "AUTHORISATION_UNEXPECTED_ERROR"
	StatusAuthorisationTimeout       ChargeStatus = "AUTHORISATION_TIMEOUT"
	StatusAuthorisationErrCancelled  ChargeStatus = "AUTHORISATION_ERROR_CANCELLED"
	StatusAwaitingCaptureRequest     ChargeStatus = "AWAITING_CAPTURE_REQUEST"
	StatusCaptureApproved            ChargeStatus = "CAPTURE_APPROVED"
	StatusCaptureApprovedRetry       ChargeStatus = "CAPTURE_APPROVED_RETRY"
	StatusCaptureReady               ChargeStatus = "CAPTURE_READY"
	StatusCaptureSubmitted           ChargeStatus = "CAPTURE_SUBMITTED"
	StatusCaptured                   ChargeStatus = "CAPTURED"
	StatusCaptureError               ChargeStatus = "CAPTURE_ERROR"
	StatusCancelReady                ChargeStatus = "CANCEL_READY"
	StatusSystemCancelled            ChargeStatus = "SYSTEM_CANCELLED"
	StatusSystemCancelError          ChargeStatus = "SYSTEM_CANCEL_ERROR"
	StatusUserCancelled              ChargeStatus = "USER_CANCELLED"
	StatusCancelError                ChargeStatus = "CANCEL_ERROR"
	StatusExpired                    ChargeStatus = "EXPIRED"
	StatusExpireCancelFailed         ChargeStatus = "EXPIRE_CANCEL_FAILED"
)

// transitions is the full edge set of the charge lifecycle. Status is only
// ever written through a compare-and-set against this table; nothing else in
// the codebase assigns a charge status directly.
var transitions = map[ChargeStatus][]ChargeStatus{
	StatusCreated: {
		StatusEnteringCardDetails, StatusExpired, StatusSystemCancelled, StatusUserCancelled,
	},
	StatusEnteringCardDetails: {
		StatusAuthorisationReady, StatusExpired, StatusSystemCancelled, StatusUserCancelled,
	},
	StatusAuthorisationReady: {
		StatusAuthorisationSuccess, StatusAuthorisationRejected, StatusAuthorisationError,
		StatusAuthorisationUnexpected, StatusAuthorisationTimeout, StatusAuthorisation3DSRequired,
		StatusExpired,
	},
	StatusAuthorisation3DSRequired: {
		StatusAuthorisationSuccess, StatusAuthorisationRejected, StatusAuthorisationError,
		StatusCancelReady, StatusUserCancelled, StatusSystemCancelled,
		StatusExpired, StatusExpireCancelFailed,
	},
	// A late gateway outcome may still land after the synchronous wait was
	// abandoned; the timeout state therefore keeps the authorisation edges open.
	StatusAuthorisationTimeout: {
		StatusAuthorisationSuccess, StatusAuthorisationRejected, StatusAuthorisationError,
		StatusAuthorisationUnexpected, StatusAuthorisation3DSRequired,
		StatusAuthorisationErrCancelled, StatusExpired, StatusExpireCancelFailed,
	},
	StatusAuthorisationError: {
		StatusAuthorisationErrCancelled, StatusExpired, StatusExpireCancelFailed,
	},
	StatusAuthorisationUnexpected: {
		StatusAuthorisationErrCancelled, StatusExpired, StatusExpireCancelFailed,
	},
	StatusAuthorisationSuccess: {
		StatusCaptureApproved, StatusAwaitingCaptureRequest, StatusCancelReady,
		StatusExpired, StatusExpireCancelFailed,
	},
	StatusAwaitingCaptureRequest: {
		StatusCaptureApproved, StatusCancelReady, StatusExpired, StatusExpireCancelFailed,
	},
	StatusCaptureApproved: {
		StatusCaptureReady, StatusCaptureSubmitted, StatusCaptureApprovedRetry, StatusCaptureError,
	},
	StatusCaptureApprovedRetry: {
		StatusCaptureReady, StatusCaptureSubmitted, StatusCaptureApprovedRetry, StatusCaptureError,
	},
	StatusCaptureReady: {
		StatusCaptureSubmitted, StatusCaptureApprovedRetry, StatusCaptureError,
	},
	// The charge is claimed before the PSP call, so a failed call has to be
	// able to fall back to the retry state from here.
	StatusCaptureSubmitted: {
		StatusCaptured, StatusCaptureApprovedRetry, StatusCaptureError,
	},
	StatusCancelReady: {
		StatusUserCancelled, StatusSystemCancelled, StatusCancelError, StatusSystemCancelError,
	},
}

// inProgress is the status-as-lock set: a charge sitting in one of these has
// a lifecycle operation running against it somewhere, possibly in another
// process.
var inProgress = map[ChargeStatus]bool{
	StatusAuthorisationReady: true,
	StatusCaptureReady:       true,
	StatusCaptureSubmitted:   true,
	StatusCancelReady:        true,
}

// capturePending marks statuses whose capture work is already queued or
// being retried. A repeat approval must observe the pending operation
// rather than succeed idempotently and enqueue a second message.
var capturePending = map[ChargeStatus]bool{
	StatusCaptureApproved:      true,
	StatusCaptureApprovedRetry: true,
}

// expirable is the pre-capture, non-terminal set eligible for the expiry
// sweep once the charge's age crosses the threshold.
var expirable = map[ChargeStatus]bool{
	StatusCreated:                  true,
	StatusEnteringCardDetails:      true,
	StatusAuthorisationReady:       true,
	StatusAuthorisation3DSRequired: true,
	StatusAuthorisationError:       true,
	StatusAuthorisationUnexpected:  true,
	StatusAuthorisationTimeout:     true,
	StatusAuthorisationSuccess:     true,
	StatusAwaitingCaptureRequest:   true,
}

// gatewayMayHoldAuth marks expirable statuses where the PSP might consider an
// authorisation live, so expiry must query (and possibly cancel) gateway-side
// before marking the charge expired.
var gatewayMayHoldAuth = map[ChargeStatus]bool{
	StatusAuthorisation3DSRequired: true,
	StatusAuthorisationError:       true,
	StatusAuthorisationUnexpected:  true,
	StatusAuthorisationTimeout:     true,
	StatusAuthorisationSuccess:     true,
	StatusAwaitingCaptureRequest:   true,
}

func (s ChargeStatus) CanTransitionTo(next ChargeStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

func (s ChargeStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s ChargeStatus) IsInProgress() bool {
	return inProgress[s]
}

func (s ChargeStatus) IsCapturePending() bool {
	return capturePending[s]
}

func (s ChargeStatus) IsExpirable() bool {
	return expirable[s]
}

func (s ChargeStatus) GatewayMayHoldAuthorisation() bool {
	return gatewayMayHoldAuth[s]
}

func ExpirableStatuses() []ChargeStatus {
	out := make([]ChargeStatus, 0, len(expirable))
	for s := range expirable {
		out = append(out, s)
	}
	return out
}

// CleanupStatuses are the ambiguous authorisation-error states targeted by
// the gateway cleanup sweeper.
func CleanupStatuses() []ChargeStatus {
	return []ChargeStatus{
		StatusAuthorisationError,
		StatusAuthorisationUnexpected,
		StatusAuthorisationTimeout,
	}
}

// ExternalStatus is the canonical client-facing vocabulary, used by the API
// and by the discrepancy reconciler when comparing against gateway-reported
// state.
func (s ChargeStatus) ExternalStatus() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusEnteringCardDetails, StatusAuthorisationReady, StatusAuthorisation3DSRequired:
		return "started"
	case StatusAuthorisationSuccess, StatusAwaitingCaptureRequest:
		return "submitted"
	case StatusCaptureApproved, StatusCaptureApprovedRetry, StatusCaptureReady, StatusCaptureSubmitted:
		return "capturable"
	case StatusCaptured:
		return "success"
	case StatusAuthorisationRejected:
		return "declined"
	case StatusAuthorisationTimeout:
		return "timedout"
	case StatusUserCancelled, StatusSystemCancelled, StatusAuthorisationErrCancelled, StatusCancelReady:
		return "cancelled"
	case StatusExpired, StatusExpireCancelFailed:
		return "expired"
	case StatusAuthorisationError, StatusAuthorisationUnexpected,
		StatusCaptureError, StatusCancelError, StatusSystemCancelError:
		return "error"
	default:
		return "error"
	}
}
