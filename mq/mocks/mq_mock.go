package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nitish987/chatdrop/mq"
)

// MockQueue is a testify mock of mq.MessageQueue for delivery worker
// tests.
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Send(ctx context.Context, body string) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

func (m *MockQueue) Receive(ctx context.Context, visibilityTimeout int32) (*mq.Message, error) {
	args := m.Called(ctx, visibilityTimeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mq.Message), args.Error(1)
}

func (m *MockQueue) Delete(ctx context.Context, msg *mq.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
