//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"zarinpal-payment-service/internal/domain"
	"zarinpal-payment-service/internal/domain/model"
	"zarinpal-payment-service/internal/domain/ports/adapter"
	"zarinpal-payment-service/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// MockOrderRepo is a small in-memory implementation used by unit tests.
type MockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order // keyed by order ID
	notes  []*model.OrderNote

	MarkPaidCalls int
	AppendNoteErr error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: make(map[string]*model.Order)}
}

func (m *MockOrderRepo) Save(ctx context.Context, qx repository.Tx, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *MockOrderRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepo) FindByToken(ctx context.Context, qx repository.Tx, token string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Token == token {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockOrderRepo) SetAuthority(ctx context.Context, qx repository.Tx, orderID, authority string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	o.Authority = authority
	return nil
}

func (m *MockOrderRepo) MarkPaid(ctx context.Context, qx repository.Tx, orderID, refID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkPaidCalls++
	o, ok := m.orders[orderID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if o.Status == model.PaymentStatusPaid {
		return false, nil
	}
	now := time.Now()
	o.Status = model.PaymentStatusPaid
	o.RefID = refID
	o.PaidAt = &now
	return true, nil
}

func (m *MockOrderRepo) AppendNote(ctx context.Context, qx repository.Tx, n *model.OrderNote) error {
	if m.AppendNoteErr != nil {
		return m.AppendNoteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.notes = append(m.notes, &cp)
	return nil
}

func (m *MockOrderRepo) ListNotes(ctx context.Context, qx repository.Tx, orderID string) ([]*model.OrderNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.OrderNote
	for _, n := range m.notes {
		if n.OrderID == orderID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MockSettingsRepo keeps one settings value per scope, no merging.
type MockSettingsRepo struct {
	mu    sync.Mutex
	store map[int]*model.GatewaySettings

	SaveCalls int
}

func NewMockSettingsRepo() *MockSettingsRepo {
	return &MockSettingsRepo{store: make(map[int]*model.GatewaySettings)}
}

func (m *MockSettingsRepo) Load(ctx context.Context, scope int) (*model.GatewaySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[scope]
	if !ok {
		return &model.GatewaySettings{Method: model.MethodREST}, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MockSettingsRepo) Save(ctx context.Context, scope int, s *model.GatewaySettings, ov *model.SettingsOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	cp := *s
	m.store[scope] = &cp
	return nil
}

func (m *MockSettingsRepo) Delete(ctx context.Context, scope int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, scope)
	return nil
}

// transportCall records one remote gateway call for assertions.
type transportCall struct {
	Amount      int64
	Authority   string
	CallbackURL string
}

// MockTransport plays the remote gateway.
type MockTransport struct {
	mu sync.Mutex

	RequestStatus    int
	RequestAuthority string
	RequestErr       error
	VerifyStatus     int
	VerifyRefID      string
	VerifyErr        error

	RequestCalls []transportCall
	VerifyCalls  []transportCall
}

func (t *MockTransport) RequestPayment(ctx context.Context, req adapter.PaymentRequest) (int, string, error) {
	t.mu.Lock()
	t.RequestCalls = append(t.RequestCalls, transportCall{Amount: req.Amount, CallbackURL: req.CallbackURL})
	t.mu.Unlock()
	if t.RequestErr != nil {
		return 0, "", t.RequestErr
	}
	return t.RequestStatus, t.RequestAuthority, nil
}

func (t *MockTransport) VerifyPayment(ctx context.Context, req adapter.VerificationRequest) (int, string, error) {
	t.mu.Lock()
	t.VerifyCalls = append(t.VerifyCalls, transportCall{Amount: req.Amount, Authority: req.Authority})
	t.mu.Unlock()
	if t.VerifyErr != nil {
		return 0, "", t.VerifyErr
	}
	return t.VerifyStatus, t.VerifyRefID, nil
}

// MockTxManager runs the callback without a real transaction and counts
// invocations.
type MockTxManager struct {
	mu    sync.Mutex
	Calls int
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	return fn(ctx, nil)
}

// noopLocker always grants the lock.
type noopLocker struct{}

func (noopLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "token", nil
}
func (noopLocker) Unlock(ctx context.Context, key, token string) error { return nil }
