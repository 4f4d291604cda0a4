package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"zarinpal-payment-service/internal/domain"
	"zarinpal-payment-service/internal/domain/ports/adapter"
)

// sharedClient is the single process-wide HTTP client both transports reuse.
// Connection pooling lives here; transports must not allocate clients per call.
var sharedClient = &http.Client{Timeout: 30 * time.Second}

var _ adapter.GatewayTransport = (*RESTTransport)(nil)

// RESTTransport speaks the legacy WebGate JSON endpoints
// (PaymentRequest.json / PaymentVerification.json). Field names on the wire
// are Pascal-case per the gateway's documentation.
type RESTTransport struct {
	merchantID string
	baseURL    string
	client     *http.Client
}

func NewRESTTransport(merchantID string, sandbox bool) *RESTTransport {
	return &RESTTransport{
		merchantID: merchantID,
		baseURL:    webGateBase(sandbox) + "/rest/WebGate",
		client:     sharedClient,
	}
}

type restRequestPayload struct {
	MerchantID  string `json:"MerchantID"`
	Amount      int64  `json:"Amount"`
	CallbackURL string `json:"CallbackURL"`
	Mobile      string `json:"Mobile"`
	Email       string `json:"Email"`
	Description string `json:"Description"`
}

type restRequestResponse struct {
	Status    int    `json:"Status"`
	Authority string `json:"Authority"`
}

type restVerifyPayload struct {
	MerchantID string `json:"MerchantID"`
	Authority  string `json:"Authority"`
	Amount     int64  `json:"Amount"`
}

// RefID comes back as a JSON number on the wire.
type restVerifyResponse struct {
	Status int   `json:"Status"`
	RefID  int64 `json:"RefID"`
}

func (t *RESTTransport) RequestPayment(ctx context.Context, req adapter.PaymentRequest) (int, string, error) {
	payload := restRequestPayload{
		MerchantID:  t.merchantID,
		Amount:      req.Amount,
		CallbackURL: req.CallbackURL,
		Mobile:      req.Phone,
		Email:       req.Email,
		Description: req.Description,
	}

	var resp restRequestResponse
	if err := t.post(ctx, "/PaymentRequest.json", payload, &resp); err != nil {
		return 0, "", err
	}
	return resp.Status, resp.Authority, nil
}

func (t *RESTTransport) VerifyPayment(ctx context.Context, req adapter.VerificationRequest) (int, string, error) {
	payload := restVerifyPayload{
		MerchantID: t.merchantID,
		Authority:  req.Authority,
		Amount:     req.Amount,
	}

	var resp restVerifyResponse
	if err := t.post(ctx, "/PaymentVerification.json", payload, &resp); err != nil {
		return 0, "", err
	}
	refID := ""
	if resp.RefID != 0 {
		refID = strconv.FormatInt(resp.RefID, 10)
	}
	return resp.Status, refID, nil
}

func (t *RESTTransport) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrGatewayUnavailable, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: unmarshal body %q: %v", domain.ErrGatewayUnavailable, string(raw), err)
	}
	return nil
}
