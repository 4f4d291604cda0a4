package model

type GatewayMethod string

const (
	MethodREST GatewayMethod = "rest"
	MethodSOAP GatewayMethod = "soap"
)

type ZarinGate string

// Branded checkout sub-paths offered by the gateway. Purely cosmetic; appended
// to the StartPay URL when selected.
const (
	ZarinGateNone ZarinGate = ""
	ZarinGateMain ZarinGate = "ZarinGate"
	ZarinGateSad  ZarinGate = "ZarinGateSad"
	ZarinGateSep  ZarinGate = "ZarinGateSep"
)

// GatewaySettings is the per-store gateway configuration. Scope 0 holds the
// defaults; a positive scope overlays only the fields its store overrides.
type GatewaySettings struct {
	MerchantID      string        `json:"merchant_id"`
	Sandbox         bool          `json:"sandbox"`
	Method          GatewayMethod `json:"method"`
	RialToToman     bool          `json:"rial_to_toman"` // divide totals by 10 before sending (gateway quotes Toman)
	ZarinGate       ZarinGate     `json:"zarin_gate"`
	CallbackBaseURL string        `json:"callback_base_url"` // public base of this service, e.g. https://shop.example.com
	StoreURL        string        `json:"store_url"`         // storefront base for post-payment redirects
}

// Configured reports whether the payment method can be offered at checkout.
// An empty merchant id means the gateway must stay hidden.
func (s *GatewaySettings) Configured() bool {
	return s != nil && s.MerchantID != ""
}

// SettingsOverride flags which fields a non-default scope overrides. Fields
// left false fall through to scope 0 on load.
type SettingsOverride struct {
	MerchantID      bool `json:"merchant_id"`
	Sandbox         bool `json:"sandbox"`
	Method          bool `json:"method"`
	RialToToman     bool `json:"rial_to_toman"`
	ZarinGate       bool `json:"zarin_gate"`
	CallbackBaseURL bool `json:"callback_base_url"`
	StoreURL        bool `json:"store_url"`
}
