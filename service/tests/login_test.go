package service_test

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	cachemocks "github.com/nitish987/chatdrop/cache/mocks"
	"github.com/nitish987/chatdrop/config"
	identitymocks "github.com/nitish987/chatdrop/identity/mocks"
	mailermocks "github.com/nitish987/chatdrop/mailer/mocks"
	"github.com/nitish987/chatdrop/models"
	pushmocks "github.com/nitish987/chatdrop/push/mocks"
	"github.com/nitish987/chatdrop/security"
	"github.com/nitish987/chatdrop/service"
	"github.com/nitish987/chatdrop/store"
	storemocks "github.com/nitish987/chatdrop/store/mocks"
	"github.com/nitish987/chatdrop/token"
)

var testDevice = service.DeviceInfo{Device: "desktop", OS: "Linux", Browser: "Firefox"}

func setupService(t *testing.T) (*service.Service, *storemocks.MemoryStore, *cachemocks.MemoryCache, *mailermocks.MockMailer, *identitymocks.MockVerifier, *pushmocks.MockDispatcher) {
	cfg := config.Config{
		JWTSecret:      []byte("test-jwt-secret"),
		TokenEncKey:    []byte("0123456789abcdef0123456789abcdef"),
		ServerEncKey:   []byte("fedcba9876543210fedcba9876543210"),
		OTPWindow:      config.DefaultOTPWindow,
		ResendWindow:   config.DefaultResendWindow,
		SignupWindow:   config.DefaultSignupWindow,
		RecoveryWindow: config.DefaultRecoveryWindow,
		PasswordWindow: config.DefaultPasswordWindow,
		AuthWindow:     config.DefaultAuthWindow,
	}

	memStore := storemocks.NewMemoryStore()
	memCache := cachemocks.NewMemoryCache()
	mockMailer := new(mailermocks.MockMailer)
	mockVerifier := new(identitymocks.MockVerifier)
	mockPusher := new(pushmocks.MockDispatcher)

	// Every successful session mints a realtime token
	mockVerifier.On("CustomToken", mock.Anything, mock.Anything).Return("realtime-token", nil)

	sealer, err := security.NewSealer(cfg.ServerEncKey)
	assert.NoError(t, err)
	webCodec, err := token.NewEncryptedCodec(cfg.JWTSecret, cfg.TokenEncKey)
	assert.NoError(t, err)

	svc := service.NewService(
		cfg,
		memStore,
		memCache,
		token.NewSignedCodec(cfg.JWTSecret),
		webCodec,
		sealer,
		mockMailer,
		mockPusher,
		mockVerifier,
	)

	return svc, memStore, memCache, mockMailer, mockVerifier, mockPusher
}

var otpPattern = regexp.MustCompile(`[0-9]{6}`)

// captureOTP stubs the mailer and keeps the last emailed code so flow tests
// can submit it.
func captureOTP(mockMailer *mailermocks.MockMailer) *string {
	otp := new(string)
	mockMailer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		if m := otpPattern.FindString(args.String(3)); m != "" {
			*otp = m
		}
	})
	return otp
}

// registerAccount drives a full mobile signup and returns the resulting
// session grant. The otp pointer must come from the test's single
// captureOTP call; registering a second catch-all Send expectation would
// shadow the first.
func registerAccount(t *testing.T, svc *service.Service, otp *string, email, password string) service.SessionGrant {
	ctx := context.Background()

	tokens, err := svc.Signup(ctx, models.PlatformMobile, service.SignupRequest{
		Email:       email,
		Password:    password,
		FirstName:   "Asha",
		LastName:    "Rao",
		Gender:      "female",
		DateOfBirth: "1999-04-12",
	})
	assert.NoError(t, err)

	grant, err := svc.VerifySignup(ctx, models.PlatformMobile, tokens, *otp, testDevice, "", nil)
	assert.NoError(t, err)
	return grant
}

func TestLogin_Success(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")

	grant, err := svc.Login(ctx, models.PlatformMobile, "asha@example.com", "passw0rd1", "", testDevice)
	assert.NoError(t, err)
	assert.NotEmpty(t, grant.AuthToken)
	assert.NotEmpty(t, grant.WebsocketToken)
	assert.NotEmpty(t, grant.LoginStateToken)
	assert.NotEmpty(t, grant.MessageKey)
	assert.Equal(t, "realtime-token", grant.RealtimeToken)

	loggedIn, err := svc.LoginCheck(ctx, models.PlatformMobile, grant.AuthToken, grant.LoginStateToken)
	assert.NoError(t, err)
	assert.True(t, loggedIn)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")

	_, err := svc.Login(ctx, models.PlatformMobile, "asha@example.com", "wrongpass1", "", testDevice)
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)
	ctx := context.Background()

	// Unknown emails and wrong passwords must be indistinguishable
	_, err := svc.Login(ctx, models.PlatformMobile, "nobody@example.com", "passw0rd1", "", testDevice)
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestLogin_Browser_EvictsOldestSession(t *testing.T) {
	svc, memStore, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")
	uid := grant.Account.Uid

	grants := make([]service.SessionGrant, 0, 6)
	for i := 0; i < 6; i++ {
		g, err := svc.Login(ctx, models.PlatformWeb, "asha@example.com", "passw0rd1", "", testDevice)
		assert.NoError(t, err)
		grants = append(grants, g)
	}

	sessions, err := memStore.ListDeviceSessions(ctx, uid)
	assert.NoError(t, err)
	assert.Len(t, sessions, 5)

	// The first login lost its row to the cap; the later five still hold
	loggedIn, err := svc.LoginCheck(ctx, models.PlatformWeb, grants[0].AuthToken, grants[0].LoginStateToken)
	assert.NoError(t, err)
	assert.False(t, loggedIn)

	for _, g := range grants[1:] {
		loggedIn, err := svc.LoginCheck(ctx, models.PlatformWeb, g.AuthToken, g.LoginStateToken)
		assert.NoError(t, err)
		assert.True(t, loggedIn)
	}
}

func TestLogin_Browser_ConcurrentLoginsHoldCap(t *testing.T) {
	svc, memStore, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")
	uid := grant.Account.Uid

	// A burst of simultaneous browser logins must never leave the account
	// above the session cap, not even transiently observed afterwards
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Login(ctx, models.PlatformWeb, "asha@example.com", "passw0rd1", "", testDevice)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sessions, err := memStore.ListDeviceSessions(ctx, uid)
	assert.NoError(t, err)
	assert.LessOrEqual(t, len(sessions), store.MaxDeviceSessions)
}

func TestLogin_Browser_AlertsExistingDevice(t *testing.T) {
	svc, _, _, mockMailer, _, mockPusher := setupService(t)
	ctx := context.Background()

	registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")

	// Mobile login registers the push token, the browser login then alerts it
	_, err := svc.Login(ctx, models.PlatformMobile, "asha@example.com", "passw0rd1", "fcm-token-1", testDevice)
	assert.NoError(t, err)

	mockPusher.On("Dispatch", mock.Anything, "fcm-token-1", mock.Anything, mock.Anything).Return(nil)
	_, err = svc.Login(ctx, models.PlatformWeb, "asha@example.com", "passw0rd1", "", testDevice)
	assert.NoError(t, err)

	mockPusher.AssertCalled(t, "Dispatch", mock.Anything, "fcm-token-1", mock.Anything, mock.Anything)
}

func TestLogout_Mobile(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")

	err := svc.Logout(ctx, models.PlatformMobile, grant.AuthToken, grant.LoginStateToken)
	assert.NoError(t, err)

	loggedIn, err := svc.LoginCheck(ctx, models.PlatformMobile, grant.AuthToken, grant.LoginStateToken)
	assert.NoError(t, err)
	assert.False(t, loggedIn)

	// Logout is idempotent
	err = svc.Logout(ctx, models.PlatformMobile, grant.AuthToken, grant.LoginStateToken)
	assert.NoError(t, err)
}

func TestLogout_Browser_OnlyDropsOwnSession(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")

	first, err := svc.Login(ctx, models.PlatformWeb, "asha@example.com", "passw0rd1", "", testDevice)
	assert.NoError(t, err)
	second, err := svc.Login(ctx, models.PlatformWeb, "asha@example.com", "passw0rd1", "", testDevice)
	assert.NoError(t, err)

	err = svc.Logout(ctx, models.PlatformWeb, first.AuthToken, first.LoginStateToken)
	assert.NoError(t, err)

	loggedIn, err := svc.LoginCheck(ctx, models.PlatformWeb, first.AuthToken, first.LoginStateToken)
	assert.NoError(t, err)
	assert.False(t, loggedIn)

	loggedIn, err = svc.LoginCheck(ctx, models.PlatformWeb, second.AuthToken, second.LoginStateToken)
	assert.NoError(t, err)
	assert.True(t, loggedIn)
}

func TestAuthenticate_TamperedToken(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")

	_, err := svc.Authenticate(ctx, models.PlatformMobile, grant.AuthToken+"x", grant.LoginStateToken)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}

func TestAuthenticate_PlatformMismatch(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	// A mobile token presented through the browser transport must fail:
	// browser tokens carry an extra encryption layer
	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")

	_, err := svc.Authenticate(ctx, models.PlatformWeb, grant.AuthToken, grant.LoginStateToken)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}

func TestAuthenticateWebsocket(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")

	uid, err := svc.AuthenticateWebsocket(ctx, models.PlatformMobile, grant.WebsocketToken)
	assert.NoError(t, err)
	assert.Equal(t, grant.Account.Uid, uid)

	// The auth token is not interchangeable with the websocket token
	_, err = svc.AuthenticateWebsocket(ctx, models.PlatformMobile, grant.AuthToken)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}
