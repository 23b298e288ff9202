package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nitish987/chatdrop/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(models.Account), args.Error(1)
}

func (m *MockStore) GetAccount(ctx context.Context, uid string) (models.Account, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(models.Account), args.Error(1)
}

func (m *MockStore) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(models.Account), args.Error(1)
}

func (m *MockStore) GetAccountByUsername(ctx context.Context, username string) (models.Account, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(models.Account), args.Error(1)
}

func (m *MockStore) SaveAccount(ctx context.Context, account models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockStore) UpdatePushToken(ctx context.Context, uid string, pushToken string) error {
	args := m.Called(ctx, uid, pushToken)
	return args.Error(0)
}

func (m *MockStore) UpdatePassword(ctx context.Context, uid string, passwordHash string) error {
	args := m.Called(ctx, uid, passwordHash)
	return args.Error(0)
}

func (m *MockStore) DeleteAccount(ctx context.Context, uid string, email string) error {
	args := m.Called(ctx, uid, email)
	return args.Error(0)
}

func (m *MockStore) UpsertPreKeyBundle(ctx context.Context, bundle models.PreKeyBundle) error {
	args := m.Called(ctx, bundle)
	return args.Error(0)
}

func (m *MockStore) ConsumeOnePreKey(ctx context.Context, uid string) (models.ConsumedBundle, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(models.ConsumedBundle), args.Error(1)
}

func (m *MockStore) DeletePreKeyBundle(ctx context.Context, uid string) error {
	args := m.Called(ctx, uid)
	return args.Error(0)
}

func (m *MockStore) CreateDeviceSession(ctx context.Context, session models.DeviceSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockStore) GetDeviceSession(ctx context.Context, uid string, token string) (models.DeviceSession, error) {
	args := m.Called(ctx, uid, token)
	return args.Get(0).(models.DeviceSession), args.Error(1)
}

func (m *MockStore) ListDeviceSessions(ctx context.Context, uid string) ([]models.DeviceSession, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DeviceSession), args.Error(1)
}

func (m *MockStore) DeleteDeviceSession(ctx context.Context, uid string, token string) error {
	args := m.Called(ctx, uid, token)
	return args.Error(0)
}
