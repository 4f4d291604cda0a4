//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"zarinpal-payment-service/internal/domain"
	"zarinpal-payment-service/internal/domain/model"
	"zarinpal-payment-service/internal/domain/ports/adapter"
	"zarinpal-payment-service/internal/usecase"
)

func testSettings() *model.GatewaySettings {
	return &model.GatewaySettings{
		MerchantID:      "merchant-0000-0000-0000-000000000000",
		Sandbox:         true,
		Method:          model.MethodREST,
		RialToToman:     true,
		CallbackBaseURL: "https://shop.example.com",
		StoreURL:        "https://shop.example.com",
	}
}

func seedOrder(t *testing.T, repo *MockOrderRepo, totalRials int64) *model.Order {
	t.Helper()
	o := &model.Order{
		ID:         uuid.NewString(),
		Token:      uuid.NewString(),
		TotalRials: totalRials,
		Currency:   "IRR",
		Status:     model.PaymentStatusPending,
		Email:      "buyer@example.com",
		Phone:      "09120000000",
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := repo.Save(context.Background(), nil, o); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return o
}

// newPaymentUC wires a use case over the in-memory mocks. The returned
// transaction manager counts settlements, and the transport passed in is
// the one the factory hands out, so tests can assert on the calls both
// record.
func newPaymentUC(t *testing.T, orders *MockOrderRepo, s *model.GatewaySettings, tr *MockTransport) (usecase.PaymentUseCase, *MockTxManager) {
	t.Helper()
	log := newTestLogger()
	sr := NewMockSettingsRepo()
	if s != nil {
		if err := sr.Save(context.Background(), 0, s, nil); err != nil {
			t.Fatalf("seed settings: %v", err)
		}
	}
	settings := usecase.NewSettingsUseCase(sr, log)
	factory := func(*model.GatewaySettings) adapter.GatewayTransport { return tr }
	txm := &MockTxManager{}
	return usecase.NewPaymentUseCase(orders, settings, factory, txm, noopLocker{}, 0, "/payment/zarinpal/callback", log), txm
}

func TestGatewayAmountConversion(t *testing.T) {
	tests := []struct {
		name        string
		totalRials  int64
		rialToToman bool
		want        int64
	}{
		{"conversion on floors", 10253, true, 1025},
		{"conversion off passes through", 10253, false, 10253},
		{"round total", 100000, true, 10000},
		{"below ten floors to zero", 7, true, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			orders := NewMockOrderRepo()
			o := seedOrder(t, orders, tc.totalRials)
			tr := &MockTransport{RequestStatus: 100, RequestAuthority: "A000001"}
			s := testSettings()
			s.RialToToman = tc.rialToToman
			uc, _ := newPaymentUC(t, orders, s, tr)

			_, err := uc.Initiate(context.Background(), o.Token)
			if tc.want <= 0 {
				// Gateway would reject a zero amount anyway; we only care
				// about the conversion here, so a request error is fine as
				// long as the amount the transport saw is right.
				_ = err
			} else if err != nil {
				t.Fatalf("Initiate: %v", err)
			}
			if len(tr.RequestCalls) != 1 {
				t.Fatalf("expected 1 payment request, got %d", len(tr.RequestCalls))
			}
			if got := tr.RequestCalls[0].Amount; got != tc.want {
				t.Fatalf("gateway amount = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestInitiateSuccess(t *testing.T) {
	orders := NewMockOrderRepo()
	o := seedOrder(t, orders, 100000)
	tr := &MockTransport{RequestStatus: 100, RequestAuthority: "A000012345"}
	uc, _ := newPaymentUC(t, orders, testSettings(), tr)

	redirectURL, err := uc.Initiate(context.Background(), o.Token)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if want := "https://sandbox.zarinpal.com/pg/StartPay/A000012345"; redirectURL != want {
		t.Fatalf("redirect URL = %q, want %q", redirectURL, want)
	}
	if cb := tr.RequestCalls[0].CallbackURL; !strings.Contains(cb, "token="+o.Token) {
		t.Fatalf("callback URL %q missing order token", cb)
	}
	stored, err := orders.FindByID(context.Background(), nil, o.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Authority != "A000012345" {
		t.Fatalf("authority = %q, want A000012345", stored.Authority)
	}
	if stored.Status != model.PaymentStatusPending {
		t.Fatalf("status after initiate = %q, want pending", stored.Status)
	}
}

func TestInitiateUnconfiguredMerchant(t *testing.T) {
	orders := NewMockOrderRepo()
	o := seedOrder(t, orders, 100000)
	tr := &MockTransport{RequestStatus: 100, RequestAuthority: "A1"}
	s := testSettings()
	s.MerchantID = ""
	uc, _ := newPaymentUC(t, orders, s, tr)

	_, err := uc.Initiate(context.Background(), o.Token)
	if !errors.Is(err, domain.ErrMerchantNotConfigured) {
		t.Fatalf("err = %v, want ErrMerchantNotConfigured", err)
	}
	if len(tr.RequestCalls) != 0 {
		t.Fatalf("remote call made despite missing merchant id")
	}
}

func TestInitiateUnknownToken(t *testing.T) {
	orders := NewMockOrderRepo()
	tr := &MockTransport{RequestStatus: 100, RequestAuthority: "A1"}
	uc, _ := newPaymentUC(t, orders, testSettings(), tr)

	_, err := uc.Initiate(context.Background(), uuid.NewString())
	if !errors.Is(err, domain.ErrInvalidCallbackToken) {
		t.Fatalf("err = %v, want ErrInvalidCallbackToken", err)
	}
}

func TestInitiateAlreadyPaidOrder(t *testing.T) {
	orders := NewMockOrderRepo()
	o := seedOrder(t, orders, 100000)
	if _, err := orders.MarkPaid(context.Background(), nil, o.ID, "REF-0"); err != nil {
		t.Fatalf("seed paid order: %v", err)
	}
	tr := &MockTransport{RequestStatus: 100, RequestAuthority: "A1"}
	uc, _ := newPaymentUC(t, orders, testSettings(), tr)

	_, err := uc.Initiate(context.Background(), o.Token)
	if !errors.Is(err, domain.ErrAlreadyPaid) {
		t.Fatalf("err = %v, want ErrAlreadyPaid", err)
	}
	if len(tr.RequestCalls) != 0 {
		t.Fatalf("remote call made for a paid order")
	}
}

func TestInitiateGatewayRejected(t *testing.T) {
	orders := NewMockOrderRepo()
	o := seedOrder(t, orders, 100000)
	tr := &MockTransport{RequestStatus: -3, RequestAuthority: ""}
	uc, _ := newPaymentUC(t, orders, testSettings(), tr)

	_, err := uc.Initiate(context.Background(), o.Token)
	if !errors.Is(err, domain.ErrGatewayRejected) {
		t.Fatalf("err = %v, want ErrGatewayRejected", err)
	}
	stored, _ := orders.FindByID(context.Background(), nil, o.ID)
	if stored.Authority != "" {
		t.Fatalf("authority persisted on rejected request: %q", stored.Authority)
	}
}

func TestInitiateTransportError(t *testing.T) {
	orders := NewMockOrderRepo()
	o := seedOrder(t, orders, 100000)
	tr := &MockTransport{RequestErr: domain.ErrGatewayUnavailable}
	uc, _ := newPaymentUC(t, orders, testSettings(), tr)

	_, err := uc.Initiate(context.Background(), o.Token)
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}
}

func TestHandleCallbackCancelled(t *testing.T) {
	orders := NewMockOrderRepo()
	o := seedOrder(t, orders, 100000)
	tr := &MockTransport{VerifyStatus: 100, VerifyRefID: "R1"}
	uc, _ := newPaymentUC(t, orders, testSettings(), tr)

	out, err := uc.HandleCallback(context.Background(), "", "", o.Token)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if out.Succeeded {
		t.Fatalf("cancelled callback reported success")
	}
	if len(tr.VerifyCalls) != 0 {
		t.Fatalf("verification called on cancelled callback")
	}
	stored, _ := orders.FindByID(context.Background(), nil, o.ID)
	if stored.Status != model.PaymentStatusPending || stored.RefID != "" {
		t.Fatalf("order mutated on cancelled callback: %+v", stored)
	}
	notes, _ := orders.ListNotes(context.Background(), nil, o.ID)
	if len(notes) != 0 {
		t.Fatalf("note appended on cancelled callback")
	}
}

func TestHandleCallbackSuccess(t *testing.T) {
	orders := NewMockOrderRepo()
	o := seedOrder(t, orders, 100000)
	tr := &MockTransport{VerifyStatus: 100, VerifyRefID: "REF-777"}
	uc, txm := newPaymentUC(t, orders, testSettings(), tr)

	out, err := uc.HandleCallback(context.Background(), "OK", "A000012345", o.Token)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !out.Succeeded || out.RefID != "REF-777" {
		t.Fatalf("outcome = %+v, want success with REF-777", out)
	}
	if len(tr.VerifyCalls) != 1 {
		t.Fatalf("verify calls = %d, want 1", len(tr.VerifyCalls))
	}
	// Same conversion rule the initiation used: 100000 Rials -> 10000 Toman.
	if got := tr.VerifyCalls[0].Amount; got != 10000 {
		t.Fatalf("verify amount = %d, want 10000", got)
	}
	if tr.VerifyCalls[0].Authority != "A000012345" {
		t.Fatalf("verify authority = %q", tr.VerifyCalls[0].Authority)
	}

	stored, _ := orders.FindByID(context.Background(), nil, o.ID)
	if stored.Status != model.PaymentStatusPaid {
		t.Fatalf("order status = %q, want paid", stored.Status)
	}
	if stored.RefID != "REF-777" {
		t.Fatalf("stored ref id = %q", stored.RefID)
	}
	if stored.PaidAt == nil {
		t.Fatalf("paid_at not set")
	}

	notes, _ := orders.ListNotes(context.Background(), nil, o.ID)
	if len(notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(notes))
	}
	if !strings.Contains(notes[0].Note, "REF-777") {
		t.Fatalf("note %q missing tracking code", notes[0].Note)
	}
	if txm.Calls != 1 {
		t.Fatalf("settlement transactions = %d, want 1", txm.Calls)
	}
}

func TestHandleCallbackReplayIsIdempotent(t *testing.T) {
	orders := NewMockOrderRepo()
	o := seedOrder(t, orders, 100000)
	tr := &MockTransport{VerifyStatus: 100, VerifyRefID: "REF-1"}
	uc, txm := newPaymentUC(t, orders, testSettings(), tr)

	first, err := uc.HandleCallback(context.Background(), "OK", "A1", o.Token)
	if err != nil {
		t.Fatalf("first callback: %v", err)
	}
	second, err := uc.HandleCallback(context.Background(), "OK", "A1", o.Token)
	if err != nil {
		t.Fatalf("second callback: %v", err)
	}

	if !first.Succeeded || !second.Succeeded {
		t.Fatalf("both callbacks should succeed: %+v / %+v", first, second)
	}
	if second.RefID != "REF-1" {
		t.Fatalf("replay ref id = %q, want REF-1", second.RefID)
	}
	if len(tr.VerifyCalls) != 1 {
		t.Fatalf("verify calls = %d, want 1 (replay must not hit the gateway)", len(tr.VerifyCalls))
	}
	if orders.MarkPaidCalls != 1 {
		t.Fatalf("mark-paid calls = %d, want 1", orders.MarkPaidCalls)
	}
	if txm.Calls != 1 {
		t.Fatalf("settlement transactions = %d, want 1 (replay must not open one)", txm.Calls)
	}
	notes, _ := orders.ListNotes(context.Background(), nil, o.ID)
	if len(notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(notes))
	}
}

// settlingLocker pays the order while granting the lock, playing a
// concurrent callback that finished first.
type settlingLocker struct {
	orders  *MockOrderRepo
	orderID string
}

func (l *settlingLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	_, _ = l.orders.MarkPaid(ctx, nil, l.orderID, "REF-FIRST")
	return "token", nil
}
func (l *settlingLocker) Unlock(ctx context.Context, key, token string) error { return nil }

func TestHandleCallbackPaidWhileAcquiringLock(t *testing.T) {
	orders := NewMockOrderRepo()
	o := seedOrder(t, orders, 100000)
	tr := &MockTransport{VerifyStatus: 100, VerifyRefID: "REF-SECOND"}
	log := newTestLogger()
	sr := NewMockSettingsRepo()
	if err := sr.Save(context.Background(), 0, testSettings(), nil); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	settings := usecase.NewSettingsUseCase(sr, log)
	factory := func(*model.GatewaySettings) adapter.GatewayTransport { return tr }
	uc := usecase.NewPaymentUseCase(orders, settings, factory, &MockTxManager{},
		&settlingLocker{orders: orders, orderID: o.ID}, 0, "/payment/zarinpal/callback", log)

	out, err := uc.HandleCallback(context.Background(), "OK", "A1", o.Token)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !out.Succeeded || out.RefID != "REF-FIRST" {
		t.Fatalf("outcome = %+v, want replay of REF-FIRST", out)
	}
	if len(tr.VerifyCalls) != 0 {
		t.Fatalf("verify calls = %d, want 0 (order was already settled)", len(tr.VerifyCalls))
	}
	if orders.MarkPaidCalls != 1 {
		t.Fatalf("mark-paid calls = %d, want only the concurrent winner", orders.MarkPaidCalls)
	}
}

func TestHandleCallbackVerificationRejected(t *testing.T) {
	orders := NewMockOrderRepo()
	o := seedOrder(t, orders, 100000)
	tr := &MockTransport{VerifyStatus: -22, VerifyRefID: ""}
	uc, txm := newPaymentUC(t, orders, testSettings(), tr)

	out, err := uc.HandleCallback(context.Background(), "OK", "A1", o.Token)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if out.Succeeded {
		t.Fatalf("rejected verification reported success")
	}
	if out.Message == "" {
		t.Fatalf("rejected outcome carries no message")
	}
	stored, _ := orders.FindByID(context.Background(), nil, o.ID)
	if stored.Status != model.PaymentStatusPending {
		t.Fatalf("order marked %q on rejected verification", stored.Status)
	}
	notes, _ := orders.ListNotes(context.Background(), nil, o.ID)
	if len(notes) != 1 {
		t.Fatalf("rejected verification must still leave an audit note, got %d", len(notes))
	}
	if !strings.Contains(notes[0].Note, "unsuccessful") {
		t.Fatalf("note %q should record the failure", notes[0].Note)
	}
	if txm.Calls != 0 {
		t.Fatalf("settlement transactions = %d, want 0 on rejection", txm.Calls)
	}
}

func TestHandleCallbackTransportError(t *testing.T) {
	orders := NewMockOrderRepo()
	o := seedOrder(t, orders, 100000)
	tr := &MockTransport{VerifyErr: domain.ErrGatewayUnavailable}
	uc, _ := newPaymentUC(t, orders, testSettings(), tr)

	_, err := uc.HandleCallback(context.Background(), "OK", "A1", o.Token)
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}
	stored, _ := orders.FindByID(context.Background(), nil, o.ID)
	if stored.Status != model.PaymentStatusPending {
		t.Fatalf("order mutated on transport failure")
	}
	notes, _ := orders.ListNotes(context.Background(), nil, o.ID)
	if len(notes) != 0 {
		t.Fatalf("note appended although no verdict was reached")
	}
}

func TestHandleCallbackInvalidToken(t *testing.T) {
	orders := NewMockOrderRepo()
	tr := &MockTransport{}
	uc, _ := newPaymentUC(t, orders, testSettings(), tr)

	tests := []struct {
		name  string
		token string
	}{
		{"not a uuid", "not-a-uuid"},
		{"unknown uuid", uuid.NewString()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.HandleCallback(context.Background(), "OK", "A1", tc.token)
			if !errors.Is(err, domain.ErrInvalidCallbackToken) {
				t.Fatalf("err = %v, want ErrInvalidCallbackToken", err)
			}
		})
	}
	if len(tr.VerifyCalls) != 0 {
		t.Fatalf("verification attempted for invalid tokens")
	}
}

func TestHandleCallbackNoteFailureIsSwallowed(t *testing.T) {
	orders := NewMockOrderRepo()
	orders.AppendNoteErr = errors.New("notes table unavailable")
	o := seedOrder(t, orders, 100000)
	tr := &MockTransport{VerifyStatus: 100, VerifyRefID: "REF-9"}
	uc, _ := newPaymentUC(t, orders, testSettings(), tr)

	out, err := uc.HandleCallback(context.Background(), "OK", "A1", o.Token)
	if err != nil {
		t.Fatalf("note failure must not surface: %v", err)
	}
	if !out.Succeeded {
		t.Fatalf("outcome = %+v, want success", out)
	}
	stored, _ := orders.FindByID(context.Background(), nil, o.ID)
	if stored.Status != model.PaymentStatusPaid {
		t.Fatalf("order status = %q, want paid", stored.Status)
	}
}
