package domain

type GatewayResultCode string

const (
	GatewayResultSuccess     GatewayResultCode = "success"
	GatewayResultDeclined    GatewayResultCode = "declined"
	GatewayResultError       GatewayResultCode = "error"
	GatewayResultTimeout     GatewayResultCode = "timeout"
	GatewayResultUnknown     GatewayResultCode = "unknown"
	GatewayResult3DSRequired GatewayResultCode = "3ds_required"
)

// GatewayOperationOutcome is the normalized result of one gateway call. The
// raw provider response is kept verbatim for audit and discrepancy reporting;
// ProviderStatus is the provider's own status word before normalization.
type GatewayOperationOutcome struct {
	Result         GatewayResultCode `json:"result"`
	TransactionID  string            `json:"transaction_id,omitempty"`
	ProviderStatus string            `json:"provider_status,omitempty"`
	RawResponse    string            `json:"raw_response,omitempty"`
}

func (o *GatewayOperationOutcome) Succeeded() bool {
	return o != nil && o.Result == GatewayResultSuccess
}

// AuthorisationOutcomeStatus maps a normalized authorisation result onto the
// charge status the state machine should apply.
func (o *GatewayOperationOutcome) AuthorisationOutcomeStatus() ChargeStatus {
	switch o.Result {
	case GatewayResultSuccess:
		return StatusAuthorisationSuccess
	case GatewayResultDeclined:
		return StatusAuthorisationRejected
	case GatewayResult3DSRequired:
		return StatusAuthorisation3DSRequired
	case GatewayResultTimeout:
		return StatusAuthorisationTimeout
	case GatewayResultUnknown:
		return StatusAuthorisationUnexpected
	default:
		return StatusAuthorisationError
	}
}
