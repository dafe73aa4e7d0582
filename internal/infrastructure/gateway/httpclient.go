package gateway

import (
	"io"
	"net/http"

	"github.com/halcyonpay/charge-connector/internal/domain"
)

// send executes one provider request and classifies transport-level failures
// (network errors, 5xx) as GATEWAY_CONNECTION_ERROR. Anything below 500 is
// handed back to the caller for provider-specific interpretation.
func send(client *http.Client, req *http.Request, provider string) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, domain.ErrGatewayConnection(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, domain.ErrGatewayConnection(provider, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, body, domain.ErrGatewayConnection(provider, errStatus(resp.StatusCode))
	}
	return resp.StatusCode, body, nil
}

type errStatus int

func (e errStatus) Error() string {
	return http.StatusText(int(e))
}
