package domain

import (
	"time"

	"gorm.io/datatypes"
)

type AuthorisationMode string

const (
	AuthorisationModeWeb     AuthorisationMode = "web"
	AuthorisationModeMoto    AuthorisationMode = "moto"
	AuthorisationModeMotoAPI AuthorisationMode = "moto_api"
)

var ValidAuthorisationModes = map[AuthorisationMode]bool{
	AuthorisationModeWeb:     true,
	AuthorisationModeMoto:    true,
	AuthorisationModeMotoAPI: true,
}

type Charge struct {
	ID                   int64             `json:"-" gorm:"primaryKey;autoIncrement"`
	ExternalID           string            `json:"charge_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	Amount               int64             `json:"amount" gorm:"not null"`
	Status               ChargeStatus      `json:"-" gorm:"type:varchar(40);index;not null"`
	Reference            string            `json:"reference" gorm:"type:varchar(255);not null"`
	Description          string            `json:"description,omitempty" gorm:"type:text"`
	ReturnURL            string            `json:"return_url,omitempty" gorm:"type:text"`
	Email                string            `json:"email,omitempty" gorm:"type:varchar(254)"`
	Language             string            `json:"language,omitempty" gorm:"type:varchar(10)"`
	AuthorisationMode    AuthorisationMode `json:"authorisation_mode" gorm:"type:varchar(20);not null"`
	Source               string            `json:"source,omitempty" gorm:"type:varchar(40)"`
	GatewayAccountID     int64             `json:"gateway_account_id" gorm:"index;not null"`
	GatewayCredentialID  int64             `json:"-"`
	GatewayTransactionID string            `json:"gateway_transaction_id,omitempty" gorm:"type:varchar(255)"`
	CardDetails          *CardDetails      `json:"card_details,omitempty" gorm:"embedded;embeddedPrefix:card_"`
	PaymentInstrumentID  *int64            `json:"payment_instrument_id,omitempty"`
	AgreementID          string            `json:"agreement_id,omitempty" gorm:"type:varchar(36)"`
	DelayedCapture       bool              `json:"delayed_capture"`
	ExternalMetadata     datatypes.JSON    `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt            time.Time         `json:"created_date" gorm:"autoCreateTime;index"`
}

// CardDetails is captured when authorisation succeeds and never rewritten by
// later operations.
type CardDetails struct {
	MaskedPAN      string `json:"last_digits_card_number" gorm:"type:varchar(19)"`
	Brand          string `json:"card_brand" gorm:"type:varchar(30)"`
	ExpiryDate     string `json:"expiry_date" gorm:"type:varchar(7)"`
	CardholderName string `json:"cardholder_name" gorm:"type:varchar(255)"`
	AddressLine    string `json:"billing_address,omitempty" gorm:"type:text"`
}

// ChargeEvent records one status transition. Rows are append-only: folding a
// charge's events in order reproduces its stored status.
type ChargeEvent struct {
	ID        int64        `json:"-" gorm:"primaryKey;autoIncrement"`
	ChargeID  int64        `json:"-" gorm:"index;not null"`
	Status    ChargeStatus `json:"status" gorm:"type:varchar(40);not null"`
	CreatedAt time.Time    `json:"timestamp" gorm:"autoCreateTime"`
}

// CaptureQueueItem is one durable capture instruction. Delivery is
// at-least-once; the consumer's status re-check is the idempotency guard.
type CaptureQueueItem struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	ChargeID    int64     `gorm:"index;not null"`
	Attempts    int       `gorm:"not null;default:0"`
	AvailableAt time.Time `gorm:"index;not null"`
	LockedUntil time.Time `gorm:"index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

type GatewayAccount struct {
	ID          int64          `json:"gateway_account_id" gorm:"primaryKey;autoIncrement"`
	Provider    string         `json:"payment_provider" gorm:"type:varchar(30);not null"`
	Type        string         `json:"type" gorm:"type:varchar(10);not null"` // test or live
	Credentials datatypes.JSON `json:"-" gorm:"type:jsonb"`
	CreatedAt   time.Time      `json:"-" gorm:"autoCreateTime"`
}

func (Charge) TableName() string {
	return "charges"
}

func (ChargeEvent) TableName() string {
	return "charge_events"
}

func (CaptureQueueItem) TableName() string {
	return "capture_queue"
}

func (GatewayAccount) TableName() string {
	return "gateway_accounts"
}

type ChargeRequest struct {
	Amount            int64             `json:"amount"`
	Reference         string            `json:"reference"`
	Description       string            `json:"description,omitempty"`
	ReturnURL         string            `json:"return_url,omitempty"`
	Email             string            `json:"email,omitempty"`
	Language          string            `json:"language,omitempty"`
	AuthorisationMode AuthorisationMode `json:"authorisation_mode,omitempty"`
	Source            string            `json:"source,omitempty"`
	DelayedCapture    bool              `json:"delayed_capture,omitempty"`
	AgreementID       string            `json:"agreement_id,omitempty"`
}

// AuthCardDetails is the card data presented for a single authorisation
// attempt. The full PAN never touches the charge record; only the masked
// form is persisted.
type AuthCardDetails struct {
	CardNumber     string `json:"card_number"`
	CardholderName string `json:"cardholder_name"`
	CVC            string `json:"cvc"`
	ExpiryDate     string `json:"expiry_date"`
	Brand          string `json:"card_brand,omitempty"`
	AddressLine    string `json:"address_line,omitempty"`
}

func (a AuthCardDetails) Masked() *CardDetails {
	masked := a.CardNumber
	if len(masked) > 4 {
		masked = masked[len(masked)-4:]
	}
	return &CardDetails{
		MaskedPAN:      masked,
		Brand:          a.Brand,
		ExpiryDate:     a.ExpiryDate,
		CardholderName: a.CardholderName,
		AddressLine:    a.AddressLine,
	}
}
