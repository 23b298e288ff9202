package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nitish987/chatdrop/identity"
	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/service"
)

func googleClaims(email string) identity.IDClaims {
	return identity.IDClaims{
		Subject:       "google-sub-123",
		Email:         email,
		EmailVerified: true,
		FirstName:     "Asha",
		LastName:      "Rao",
	}
}

func TestGoogleSignIn_NewAccount(t *testing.T) {
	svc, _, _, _, mockVerifier, _ := setupService(t)
	ctx := context.Background()

	mockVerifier.On("VerifyIDToken", ctx, "id-token").Return(googleClaims("asha@example.com"), nil)

	result, err := svc.GoogleSignIn(ctx, models.PlatformMobile, "id-token", "", testDevice)
	assert.NoError(t, err)
	assert.True(t, result.NewAccount)
	assert.NotEmpty(t, result.SignupToken)
	assert.Nil(t, result.Grant)
}

func TestGoogleSignIn_ExistingAccount(t *testing.T) {
	svc, _, _, mockMailer, mockVerifier, _ := setupService(t)
	ctx := context.Background()

	registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")
	mockVerifier.On("VerifyIDToken", ctx, "id-token").Return(googleClaims("asha@example.com"), nil)

	result, err := svc.GoogleSignIn(ctx, models.PlatformMobile, "id-token", "", testDevice)
	assert.NoError(t, err)
	assert.False(t, result.NewAccount)
	assert.NotNil(t, result.Grant)
	assert.Equal(t, "asha@example.com", result.Grant.Account.Email)

	loggedIn, err := svc.LoginCheck(ctx, models.PlatformMobile, result.Grant.AuthToken, result.Grant.LoginStateToken)
	assert.NoError(t, err)
	assert.True(t, loggedIn)
}

func TestGoogleSignIn_UnverifiedEmail(t *testing.T) {
	svc, _, _, _, mockVerifier, _ := setupService(t)
	ctx := context.Background()

	claims := googleClaims("asha@example.com")
	claims.EmailVerified = false
	mockVerifier.On("VerifyIDToken", ctx, "id-token").Return(claims, nil)

	_, err := svc.GoogleSignIn(ctx, models.PlatformMobile, "id-token", "", testDevice)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}

func TestGoogleSignIn_BadIDToken(t *testing.T) {
	svc, _, _, _, mockVerifier, _ := setupService(t)
	ctx := context.Background()

	mockVerifier.On("VerifyIDToken", ctx, "forged").Return(identity.IDClaims{}, identity.ErrInvalidIDToken)

	_, err := svc.GoogleSignIn(ctx, models.PlatformMobile, "forged", "", testDevice)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}

func TestGoogleSignInWithCode(t *testing.T) {
	svc, _, _, _, mockVerifier, _ := setupService(t)
	ctx := context.Background()

	mockVerifier.On("ExchangeCode", ctx, "auth-code", "https://app.example.com/cb").Return(googleClaims("asha@example.com"), nil)

	result, err := svc.GoogleSignInWithCode(ctx, models.PlatformWeb, "auth-code", "https://app.example.com/cb", "", testDevice)
	assert.NoError(t, err)
	assert.True(t, result.NewAccount)
}

func TestCompleteOAuthSignup_Success(t *testing.T) {
	svc, _, _, _, mockVerifier, _ := setupService(t)
	ctx := context.Background()

	mockVerifier.On("VerifyIDToken", ctx, "id-token").Return(googleClaims("asha@example.com"), nil)
	result, err := svc.GoogleSignIn(ctx, models.PlatformMobile, "id-token", "", testDevice)
	assert.NoError(t, err)

	grant, err := svc.CompleteOAuthSignup(ctx, models.PlatformMobile, result.SignupToken, service.OAuthSignupRequest{
		Email:       "asha@example.com",
		Gender:      "female",
		DateOfBirth: "1999-04-12",
	}, testDevice, "", nil)
	assert.NoError(t, err)
	assert.Equal(t, "asha@example.com", grant.Account.Email)
	assert.Equal(t, "Asha", grant.Account.FirstName)
	assert.NotEmpty(t, grant.AuthToken)
}

func TestCompleteOAuthSignup_ProviderNamesYieldValidHandle(t *testing.T) {
	svc, _, _, _, mockVerifier, _ := setupService(t)
	ctx := context.Background()

	// Google profiles carry names the handle charset does not allow
	claims := googleClaims("zoe@example.com")
	claims.FirstName = "Zoë"
	claims.LastName = "O'Brien-Smith"
	mockVerifier.On("VerifyIDToken", ctx, "id-token").Return(claims, nil)

	result, err := svc.GoogleSignIn(ctx, models.PlatformMobile, "id-token", "", testDevice)
	assert.NoError(t, err)

	grant, err := svc.CompleteOAuthSignup(ctx, models.PlatformMobile, result.SignupToken, service.OAuthSignupRequest{
		Email:       "zoe@example.com",
		Gender:      "female",
		DateOfBirth: "1999-04-12",
	}, testDevice, "", nil)
	assert.NoError(t, err)
	assert.Regexp(t, `^zobriensmith[0-9]{8}$`, grant.Account.Username)

	// The generated handle passes the same validation a rename would
	available, err := svc.CheckUsernameAvailability(ctx, grant.Account.Username)
	assert.NoError(t, err)
	assert.False(t, available)
}

func TestCompleteOAuthSignup_EmailSubstitutionRejected(t *testing.T) {
	svc, _, _, _, mockVerifier, _ := setupService(t)
	ctx := context.Background()

	mockVerifier.On("VerifyIDToken", ctx, "id-token").Return(googleClaims("asha@example.com"), nil)
	result, err := svc.GoogleSignIn(ctx, models.PlatformMobile, "id-token", "", testDevice)
	assert.NoError(t, err)

	// The completion payload cannot swap in an email the provider never
	// verified
	_, err = svc.CompleteOAuthSignup(ctx, models.PlatformMobile, result.SignupToken, service.OAuthSignupRequest{
		Email:       "victim@example.com",
		Gender:      "female",
		DateOfBirth: "1999-04-12",
	}, testDevice, "", nil)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}

func TestCompleteOAuthSignup_WrongTokenType(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")

	_, err := svc.CompleteOAuthSignup(ctx, models.PlatformMobile, grant.AuthToken, service.OAuthSignupRequest{
		Email:       "asha@example.com",
		Gender:      "female",
		DateOfBirth: "1999-04-12",
	}, testDevice, "", nil)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}

func TestFederatedSignIn_UpdatesPushToken(t *testing.T) {
	svc, memStore, _, mockMailer, mockVerifier, _ := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")
	mockVerifier.On("VerifyIDToken", ctx, "id-token").Return(googleClaims("asha@example.com"), nil)

	_, err := svc.GoogleSignIn(ctx, models.PlatformMobile, "id-token", "fcm-new", testDevice)
	assert.NoError(t, err)

	account, err := memStore.GetAccount(ctx, grant.Account.Uid)
	assert.NoError(t, err)
	assert.Equal(t, "fcm-new", account.PushToken)
}
