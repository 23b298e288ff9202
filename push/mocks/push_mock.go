package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, pushToken string, title string, body string) error {
	args := m.Called(ctx, pushToken, title, body)
	return args.Error(0)
}
