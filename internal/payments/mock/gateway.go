package mock

import (
	context "context"
	reflect "reflect"

	payments "github.com/fastprodman/pulsecards/internal/payments"
	gomock "go.uber.org/mock/gomock"
)

// MockGateway is a mock of Gateway interface.
type MockGateway struct {
	ctrl     *gomock.Controller
	recorder *MockGatewayMockRecorder
	isgomock struct{}
}

// MockGatewayMockRecorder is the mock recorder for MockGateway.
type MockGatewayMockRecorder struct {
	mock *MockGateway
}

// NewMockGateway creates a new mock instance.
func NewMockGateway(ctrl *gomock.Controller) *MockGateway {
	mock := &MockGateway{ctrl: ctrl}
	mock.recorder = &MockGatewayMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockGateway) EXPECT() *MockGatewayMockRecorder {
	return m.recorder
}

// CreatePaymentIntent mocks base method.
func (m *MockGateway) CreatePaymentIntent(ctx context.Context, amountCents int64, metadata map[string]string) (payments.Intent, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreatePaymentIntent", ctx, amountCents, metadata)
	ret0, _ := ret[0].(payments.Intent)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// CreatePaymentIntent indicates an expected call of CreatePaymentIntent.
func (mr *MockGatewayMockRecorder) CreatePaymentIntent(ctx, amountCents, metadata any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreatePaymentIntent", reflect.TypeOf((*MockGateway)(nil).CreatePaymentIntent), ctx, amountCents, metadata)
}

// GetPaymentIntent mocks base method.
func (m *MockGateway) GetPaymentIntent(ctx context.Context, id string) (payments.Intent, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetPaymentIntent", ctx, id)
	ret0, _ := ret[0].(payments.Intent)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetPaymentIntent indicates an expected call of GetPaymentIntent.
func (mr *MockGatewayMockRecorder) GetPaymentIntent(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetPaymentIntent", reflect.TypeOf((*MockGateway)(nil).GetPaymentIntent), ctx, id)
}
