// Package gateway holds one GatewayClient per payment service provider. Each
// client owns its wire encoding and its provider-status vocabulary; the rest
// of the system only sees normalized GatewayOperationOutcome values.
package gateway

import (
	"net/http"
	"time"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

const (
	ProviderSandbox  = "sandbox"
	ProviderWorldpay = "worldpay"
	ProviderSmartpay = "smartpay"
	ProviderEpdq     = "epdq"
	ProviderStripe   = "stripe"
)

type Registry struct {
	clients map[string]domain.GatewayClient
}

// NewRegistry wires every supported provider. All remote clients share one
// http.Client bounded by the provider timeout.
func NewRegistry(timeout time.Duration) *Registry {
	httpClient := &http.Client{Timeout: timeout}

	r := &Registry{clients: map[string]domain.GatewayClient{}}
	r.register(NewSandboxClient())
	r.register(NewWorldpayClient(httpClient))
	r.register(NewSmartpayClient(httpClient))
	r.register(NewEpdqClient(httpClient))
	r.register(NewStripeClient(httpClient))
	return r
}

func (r *Registry) register(c domain.GatewayClient) {
	r.clients[c.ProviderName()] = c
}

func (r *Registry) Resolve(provider string) (domain.GatewayClient, error) {
	client, ok := r.clients[provider]
	if !ok {
		return nil, domain.ErrUnknownProvider(provider)
	}
	return client, nil
}
