package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nitish987/chatdrop/identity"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyIDToken(ctx context.Context, idToken string) (identity.IDClaims, error) {
	args := m.Called(ctx, idToken)
	return args.Get(0).(identity.IDClaims), args.Error(1)
}

func (m *MockVerifier) ExchangeCode(ctx context.Context, code string, redirectURL string) (identity.IDClaims, error) {
	args := m.Called(ctx, code, redirectURL)
	return args.Get(0).(identity.IDClaims), args.Error(1)
}

func (m *MockVerifier) CustomToken(ctx context.Context, uid string) (string, error) {
	args := m.Called(ctx, uid)
	return args.String(0), args.Error(1)
}
