package payment

import (
	"fmt"

	"zarinpal-payment-service/internal/domain/model"
)

// StartPayURL builds the gateway payment-page URL the buyer is redirected to
// after a successful payment request. A ZarinGate variant, when configured,
// is appended as a branded sub-path.
func StartPayURL(sandbox bool, authority string, gate model.ZarinGate) string {
	host := "www"
	if sandbox {
		host = "sandbox"
	}
	url := fmt.Sprintf("https://%s.zarinpal.com/pg/StartPay/%s", host, authority)
	if gate != model.ZarinGateNone {
		url += "/" + string(gate)
	}
	return url
}

func webGateBase(sandbox bool) string {
	if sandbox {
		return "https://sandbox.zarinpal.com/pg"
	}
	return "https://www.zarinpal.com/pg"
}
