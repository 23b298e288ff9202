package store

import (
	"context"
	"errors"

	"github.com/nitish987/chatdrop/models"
)

// AccountStore persists accounts, their X3DH prekey bundles, and browser
// device sessions.
type AccountStore interface {
	CreateAccount(ctx context.Context, account models.Account) (models.Account, error)
	GetAccount(ctx context.Context, uid string) (models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (models.Account, error)
	SaveAccount(ctx context.Context, account models.Account) error
	UpdatePushToken(ctx context.Context, uid string, pushToken string) error
	UpdatePassword(ctx context.Context, uid string, passwordHash string) error
	DeleteAccount(ctx context.Context, uid string, email string) error

	UpsertPreKeyBundle(ctx context.Context, bundle models.PreKeyBundle) error
	// ConsumeOnePreKey atomically removes and returns one one-time prekey.
	// Returns ErrItemNotFound when the account has no bundle and
	// ErrNoPreKeys when the bundle is empty.
	ConsumeOnePreKey(ctx context.Context, uid string) (models.ConsumedBundle, error)
	DeletePreKeyBundle(ctx context.Context, uid string) error

	// CreateDeviceSession persists a browser session, evicting the oldest
	// one when the account already holds MaxDeviceSessions.
	CreateDeviceSession(ctx context.Context, session models.DeviceSession) error
	GetDeviceSession(ctx context.Context, uid string, token string) (models.DeviceSession, error)
	ListDeviceSessions(ctx context.Context, uid string) ([]models.DeviceSession, error)
	DeleteDeviceSession(ctx context.Context, uid string, token string) error
}

// MaxDeviceSessions caps concurrent browser logins per account.
const MaxDeviceSessions = 5

var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrConditionFailed = errors.New("condition not met")
	ErrNoPreKeys       = errors.New("no one-time prekeys left")
	ErrEmailTaken      = errors.New("email already registered")
)
