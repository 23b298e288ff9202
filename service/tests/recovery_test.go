package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/service"
)

func TestRecovery_FullFlow(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	otp := captureOTP(mockMailer)
	registerAccount(t, svc, otp, "asha@example.com", "passw0rd1")

	tokens, err := svc.StartRecovery(ctx, models.PlatformMobile, "asha@example.com")
	assert.NoError(t, err)
	assert.NotEmpty(t, tokens.OTPToken)
	assert.NotEmpty(t, tokens.RequestToken)

	newPasswordToken, err := svc.VerifyRecovery(ctx, models.PlatformMobile, tokens, *otp)
	assert.NoError(t, err)
	assert.NotEmpty(t, newPasswordToken)

	err = svc.ResetPassword(ctx, models.PlatformMobile, newPasswordToken, "freshpass2")
	assert.NoError(t, err)

	_, err = svc.Login(ctx, models.PlatformMobile, "asha@example.com", "passw0rd1", "", testDevice)
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	grant, err := svc.Login(ctx, models.PlatformMobile, "asha@example.com", "freshpass2", "", testDevice)
	assert.NoError(t, err)
	assert.NotEmpty(t, grant.AuthToken)
}

func TestStartRecovery_UnknownEmail(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.StartRecovery(ctx, models.PlatformMobile, "nobody@example.com")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestVerifyRecovery_SingleUse(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	otp := captureOTP(mockMailer)
	registerAccount(t, svc, otp, "asha@example.com", "passw0rd1")

	tokens, err := svc.StartRecovery(ctx, models.PlatformMobile, "asha@example.com")
	assert.NoError(t, err)

	_, err = svc.VerifyRecovery(ctx, models.PlatformMobile, tokens, *otp)
	assert.NoError(t, err)

	_, err = svc.VerifyRecovery(ctx, models.PlatformMobile, tokens, *otp)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}

func TestResetPassword_RevokesAllSessions(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	otp := captureOTP(mockMailer)
	registerAccount(t, svc, otp, "asha@example.com", "passw0rd1")

	mobile, err := svc.Login(ctx, models.PlatformMobile, "asha@example.com", "passw0rd1", "", testDevice)
	assert.NoError(t, err)
	browser, err := svc.Login(ctx, models.PlatformWeb, "asha@example.com", "passw0rd1", "", testDevice)
	assert.NoError(t, err)

	tokens, err := svc.StartRecovery(ctx, models.PlatformMobile, "asha@example.com")
	assert.NoError(t, err)
	newPasswordToken, err := svc.VerifyRecovery(ctx, models.PlatformMobile, tokens, *otp)
	assert.NoError(t, err)
	err = svc.ResetPassword(ctx, models.PlatformMobile, newPasswordToken, "freshpass2")
	assert.NoError(t, err)

	loggedIn, err := svc.LoginCheck(ctx, models.PlatformMobile, mobile.AuthToken, mobile.LoginStateToken)
	assert.NoError(t, err)
	assert.False(t, loggedIn)

	loggedIn, err = svc.LoginCheck(ctx, models.PlatformWeb, browser.AuthToken, browser.LoginStateToken)
	assert.NoError(t, err)
	assert.False(t, loggedIn)
}

func TestResetPassword_Invalid(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")

	// A weak password is rejected before the token is even looked at
	err := svc.ResetPassword(ctx, models.PlatformMobile, "whatever", "short")
	assert.ErrorIs(t, err, service.ErrValidationFailed)

	// An auth token is not a new-password token
	err = svc.ResetPassword(ctx, models.PlatformMobile, grant.AuthToken, "freshpass2")
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}

func TestResendRecoveryOTP_InvalidatesOldCode(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	otp := captureOTP(mockMailer)
	registerAccount(t, svc, otp, "asha@example.com", "passw0rd1")

	tokens, err := svc.StartRecovery(ctx, models.PlatformMobile, "asha@example.com")
	assert.NoError(t, err)
	firstOTP := *otp

	newOTPToken, err := svc.ResendRecoveryOTP(ctx, models.PlatformMobile, tokens.RequestToken)
	assert.NoError(t, err)
	tokens.OTPToken = newOTPToken

	if firstOTP != *otp {
		_, err = svc.VerifyRecovery(ctx, models.PlatformMobile, tokens, firstOTP)
		assert.ErrorIs(t, err, service.ErrSessionExpired)
	}

	newPasswordToken, err := svc.VerifyRecovery(ctx, models.PlatformMobile, tokens, *otp)
	assert.NoError(t, err)
	assert.NotEmpty(t, newPasswordToken)
}
