package payment

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"zarinpal-payment-service/internal/domain"
	"zarinpal-payment-service/internal/domain/ports/adapter"
)

var _ adapter.GatewayTransport = (*SOAPTransport)(nil)

// SOAPTransport talks to the WSDL-described WebGate service. Same two
// operations as the REST endpoints, carried in SOAP 1.1 envelopes.
type SOAPTransport struct {
	merchantID string
	endpoint   string
	client     *http.Client
}

func NewSOAPTransport(merchantID string, sandbox bool) *SOAPTransport {
	return &SOAPTransport{
		merchantID: merchantID,
		endpoint:   webGateBase(sandbox) + "/services/WebGate/service",
		client:     sharedClient,
	}
}

const soapNS = "http://interface.zarinpal.com/"

type soapPaymentRequest struct {
	XMLName     xml.Name `xml:"zar:PaymentRequest"`
	MerchantID  string   `xml:"zar:MerchantID"`
	Amount      int64    `xml:"zar:Amount"`
	Description string   `xml:"zar:Description"`
	Email       string   `xml:"zar:Email"`
	Mobile      string   `xml:"zar:Mobile"`
	CallbackURL string   `xml:"zar:CallbackURL"`
}

type soapPaymentRequestResponse struct {
	XMLName   xml.Name `xml:"Body"`
	Status    int      `xml:"PaymentRequestResponse>Status"`
	Authority string   `xml:"PaymentRequestResponse>Authority"`
}

type soapVerification struct {
	XMLName    xml.Name `xml:"zar:PaymentVerification"`
	MerchantID string   `xml:"zar:MerchantID"`
	Authority  string   `xml:"zar:Authority"`
	Amount     int64    `xml:"zar:Amount"`
}

type soapVerificationResponse struct {
	XMLName xml.Name `xml:"Body"`
	Status  int      `xml:"PaymentVerificationResponse>Status"`
	RefID   string   `xml:"PaymentVerificationResponse>RefID"`
}

func (t *SOAPTransport) RequestPayment(ctx context.Context, req adapter.PaymentRequest) (int, string, error) {
	body := soapPaymentRequest{
		MerchantID:  t.merchantID,
		Amount:      req.Amount,
		Description: req.Description,
		Email:       req.Email,
		Mobile:      req.Phone,
		CallbackURL: req.CallbackURL,
	}

	var resp soapPaymentRequestResponse
	if err := t.call(ctx, body, &resp); err != nil {
		return 0, "", err
	}
	return resp.Status, resp.Authority, nil
}

func (t *SOAPTransport) VerifyPayment(ctx context.Context, req adapter.VerificationRequest) (int, string, error) {
	body := soapVerification{
		MerchantID: t.merchantID,
		Authority:  req.Authority,
		Amount:     req.Amount,
	}

	var resp soapVerificationResponse
	if err := t.call(ctx, body, &resp); err != nil {
		return 0, "", err
	}
	return resp.Status, resp.RefID, nil
}

// envelope wraps an operation body in a SOAP 1.1 envelope with the WebGate
// namespace bound to the zar prefix.
func envelope(op interface{}) ([]byte, error) {
	inner, err := xml.Marshal(op)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:zar="` + soapNS + `"><soapenv:Body>`)
	buf.Write(inner)
	buf.WriteString(`</soapenv:Body></soapenv:Envelope>`)
	return buf.Bytes(), nil
}

func (t *SOAPTransport) call(ctx context.Context, op, out interface{}) error {
	body, err := envelope(op)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrGatewayUnavailable, err)
	}

	// Strip the response envelope by decoding from the Body element down.
	var env struct {
		Body struct {
			Inner []byte `xml:",innerxml"`
		} `xml:"Body"`
	}
	if err := xml.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: unmarshal envelope %q: %v", domain.ErrGatewayUnavailable, string(raw), err)
	}
	if err := xml.Unmarshal([]byte("<Body>"+string(env.Body.Inner)+"</Body>"), out); err != nil {
		return fmt.Errorf("%w: unmarshal body: %v", domain.ErrGatewayUnavailable, err)
	}
	return nil
}
