package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"zarinpal-payment-service/internal/domain"
	"zarinpal-payment-service/internal/domain/model"
	"zarinpal-payment-service/internal/domain/ports/adapter"
	"zarinpal-payment-service/internal/domain/ports/repository"
	"zarinpal-payment-service/internal/infra/logging"
	"zarinpal-payment-service/internal/infra/metrics"
	"zarinpal-payment-service/internal/infra/payment"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// Initiate opens a payment request with the gateway for the order behind
	// the correlation token and returns the StartPay URL to redirect the
	// buyer to.
	Initiate(ctx context.Context, orderToken string) (redirectURL string, err error)
	// HandleCallback settles the browser redirect coming back from the
	// gateway. Empty status or authority means the buyer abandoned payment.
	HandleCallback(ctx context.Context, status, authority, orderToken string) (*model.VerificationOutcome, error)
}

// TransportFactory builds the REST or SOAP transport matching the settings.
// The variant decision is made once here, not at each call site.
type TransportFactory func(s *model.GatewaySettings) adapter.GatewayTransport

// NewTransportFactory is the production factory.
func NewTransportFactory() TransportFactory {
	return func(s *model.GatewaySettings) adapter.GatewayTransport {
		if s.Method == model.MethodSOAP {
			return payment.NewSOAPTransport(s.MerchantID, s.Sandbox)
		}
		return payment.NewRESTTransport(s.MerchantID, s.Sandbox)
	}
}

type paymentUC struct {
	orders      repository.OrderRepository
	settings    SettingsUseCase
	factory     TransportFactory
	txm         repository.TransactionManager
	locker      adapter.Locker
	scope       int
	cbPath      string
	callTimeout time.Duration
	log         *zerolog.Logger
}

func NewPaymentUseCase(orders repository.OrderRepository, settings SettingsUseCase, factory TransportFactory, txm repository.TransactionManager, locker adapter.Locker, scope int, callbackPath string, logger *zerolog.Logger) *paymentUC {
	if callbackPath == "" {
		callbackPath = "/payment/zarinpal/callback"
	}
	return &paymentUC{
		orders:      orders,
		settings:    settings,
		factory:     factory,
		txm:         txm,
		locker:      locker,
		scope:       scope,
		cbPath:      callbackPath,
		callTimeout: 30 * time.Second,
		log:         logger,
	}
}

// gatewayAmount converts an order total in Rials to the unit the gateway
// quotes. The /10 Toman conversion floors: the last digit is dropped on
// purpose, and the identical rule must be applied at verification time so
// both amounts match bit for bit.
func gatewayAmount(totalRials int64, rialToToman bool) int64 {
	if rialToToman {
		return totalRials / 10
	}
	return totalRials
}

func (u *paymentUC) Initiate(ctx context.Context, orderToken string) (string, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Initiate")()

	s, err := u.settings.Load(ctx, u.scope)
	if err != nil {
		return "", err
	}
	if !s.Configured() {
		return "", domain.ErrMerchantNotConfigured
	}

	o, err := u.orders.FindByToken(ctx, nil, orderToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("%w: order token %q", domain.ErrInvalidCallbackToken, orderToken)
		}
		return "", err
	}
	if o.Status == model.PaymentStatusPaid {
		return "", fmt.Errorf("%w: order %s", domain.ErrAlreadyPaid, o.ID)
	}
	if o.TotalRials <= 0 {
		return "", fmt.Errorf("%w: order %s has non-positive total", domain.ErrInvalidArgument, o.ID)
	}

	amount := gatewayAmount(o.TotalRials, s.RialToToman)
	callbackURL := strings.TrimRight(s.CallbackBaseURL, "/") + u.cbPath + "?token=" + url.QueryEscape(o.Token)

	cctx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()

	tr := u.factory(s)
	code, authority, err := tr.RequestPayment(cctx, adapter.PaymentRequest{
		Amount:      amount,
		Description: fmt.Sprintf("Payment for order %s", o.ID),
		Email:       o.Email,
		Phone:       o.Phone,
		CallbackURL: callbackURL,
	})
	if err != nil {
		metrics.IncPayment("failed")
		return "", err
	}

	ok, msg := payment.MapStatusCode(code)
	if !ok {
		metrics.IncPayment("failed")
		return "", fmt.Errorf("%w: code %d: %s", domain.ErrGatewayRejected, code, msg)
	}

	// The gateway echoes the authority on callback, but persisting it here
	// lets a reconciler match stranded transactions later.
	if err := u.orders.SetAuthority(ctx, nil, o.ID, authority); err != nil {
		return "", err
	}

	metrics.IncPayment("initiated")
	logging.With(logging.WithOrderID(ctx, o.ID), u.log).
		Info().Str("authority", authority).Int64("amount", amount).Msg("payment initiated")
	return payment.StartPayURL(s.Sandbox, authority, s.ZarinGate), nil
}

func (u *paymentUC) HandleCallback(ctx context.Context, status, authority, orderToken string) (*model.VerificationOutcome, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.HandleCallback")()

	if _, err := uuid.Parse(orderToken); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCallbackToken, err)
	}

	o, err := u.orders.FindByToken(ctx, nil, orderToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: order token %q", domain.ErrInvalidCallbackToken, orderToken)
		}
		return nil, err
	}

	log := logging.With(logging.WithOrderID(ctx, o.ID), u.log)

	// Missing status or authority is the abandoned/cancelled path: no
	// verification call, no order mutation.
	if status == "" || authority == "" {
		log.Info().Msg("payment callback without status/authority; treating as cancelled")
		return &model.VerificationOutcome{Succeeded: false, Message: "payment was not completed"}, nil
	}

	if u.locker != nil {
		key := "zp:callback:" + o.ID
		if token, lerr := u.locker.TryLock(ctx, key, 30*time.Second); lerr == nil {
			defer func() { _ = u.locker.Unlock(context.WithoutCancel(ctx), key, token) }()
		} else {
			log.Warn().Err(lerr).Msg("callback lock contended; relying on mark-paid guard")
		}
	}

	// A concurrent callback may have settled the order while we waited for
	// the lock, so decide on a fresh read.
	o, err = u.orders.FindByID(ctx, nil, o.ID)
	if err != nil {
		return nil, err
	}

	// Replayed callback for a settled order: the capture already happened,
	// so answer success without touching the gateway or the order again.
	if o.Status == model.PaymentStatusPaid {
		log.Info().Str("ref_id", o.RefID).Msg("callback replay for paid order")
		_, msg := payment.MapStatusCode(payment.StatusAlreadyVerified)
		return &model.VerificationOutcome{Succeeded: true, Message: msg, RefID: o.RefID}, nil
	}

	s, err := u.settings.Load(ctx, u.scope)
	if err != nil {
		return nil, err
	}

	// Same conversion rule as initiation; the gateway compares amounts.
	amount := gatewayAmount(o.TotalRials, s.RialToToman)

	cctx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()

	tr := u.factory(s)
	code, refID, err := tr.VerifyPayment(cctx, adapter.VerificationRequest{Authority: authority, Amount: amount})
	if err != nil {
		// Transport failure: order left untouched, caller shows a generic
		// gateway-unavailable page.
		return nil, err
	}

	ok, msg := payment.MapStatusCode(code)
	u.appendNote(ctx, o.ID, ok, msg, refID)

	if !ok {
		metrics.IncPayment("failed")
		log.Info().Int("code", code).Msg("payment verification rejected")
		return &model.VerificationOutcome{Succeeded: false, Message: msg}, nil
	}

	// Settle inside a transaction: the FOR UPDATE re-read serializes against
	// any callback that slipped past the advisory lock, and the guarded
	// update keeps mark-paid a single winner.
	var won bool
	err = u.txm.WithTx(ctx, pgx.TxOptions{}, func(txCtx context.Context, tx repository.Tx) error {
		fresh, ferr := u.orders.FindByID(txCtx, tx, o.ID)
		if ferr != nil {
			return ferr
		}
		if fresh.Status == model.PaymentStatusPaid {
			return nil
		}
		won, ferr = u.orders.MarkPaid(txCtx, tx, o.ID, refID)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if !won {
		// Lost the race to a concurrent callback; the order is paid either way.
		log.Info().Msg("mark-paid lost to concurrent callback")
	} else {
		metrics.IncPayment("succeeded")
	}

	return &model.VerificationOutcome{Succeeded: true, Message: msg, RefID: refID}, nil
}

// appendNote writes the audit line for a verification attempt. Best-effort:
// the financial outcome already happened, so a note failure is logged and
// swallowed instead of surfacing to the buyer.
func (u *paymentUC) appendNote(ctx context.Context, orderID string, ok bool, gatewayMsg, refID string) {
	text := "Payment unsuccessful - gateway message: " + gatewayMsg
	if ok {
		text = "Payment successful - gateway message: " + gatewayMsg + " - tracking code: " + refID
	}
	n := &model.OrderNote{
		ID:                ulid.Make().String(),
		OrderID:           orderID,
		Note:              text,
		DisplayToCustomer: true,
		CreatedAt:         time.Now().UTC(),
	}
	if err := u.orders.AppendNote(ctx, nil, n); err != nil {
		u.log.Error().Str("order_id", orderID).Err(err).Msg("failed to append order note")
	}
}
