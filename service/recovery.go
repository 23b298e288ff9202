package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nitish987/chatdrop/cache"
	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/security"
	"github.com/nitish987/chatdrop/store"
	"github.com/nitish987/chatdrop/token"
)

// recoveryStaging is the in-flight password recovery held in the session
// cache between the request and its OTP verification.
type recoveryStaging struct {
	Email   string `json:"email"`
	OTPHash string `json:"otpHash"`
}

// StartRecovery opens a password recovery window for the account behind the
// given email and mails it an OTP.
func (s *Service) StartRecovery(ctx context.Context, platform models.Platform, email string) (FlowTokens, error) {
	if err := validateEmail(email); err != nil {
		return FlowTokens{}, err
	}

	account, err := s.accountStore.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return FlowTokens{}, fmt.Errorf("%w: no account for this email", ErrNotFound)
		}
		log.Printf("recovery account lookup error: %v", err)
		return FlowTokens{}, ErrInternal
	}

	otp, otpHash, err := security.GenerateOTP()
	if err != nil {
		return FlowTokens{}, ErrInternal
	}

	staging := recoveryStaging{Email: account.Email, OTPHash: otpHash}
	if err := s.stageRecovery(ctx, account.Uid, staging, s.cfg.RecoveryWindow); err != nil {
		return FlowTokens{}, err
	}

	tokens, err := s.mintFlowTokens(platform, token.TypeRecoveryOTP, token.TypeRecoveryRequest,
		map[string]string{"uid": account.Uid}, s.cfg.RecoveryWindow)
	if err != nil {
		return FlowTokens{}, err
	}

	s.sendOTPMail(ctx, account.Email, otp)
	return tokens, nil
}

// VerifyRecovery checks the recovery OTP and, on success, mints the
// short-lived new-password token. It does not log the account in.
func (s *Service) VerifyRecovery(ctx context.Context, platform models.Platform, tokens FlowTokens, otp string) (string, error) {
	if err := validateOTP(otp); err != nil {
		return "", err
	}

	uid, ok := s.matchFlowTokens(platform, tokens, token.TypeRecoveryOTP, token.TypeRecoveryRequest, "uid")
	if !ok {
		return "", ErrSessionExpired
	}

	staging, ok, err := s.loadRecoveryStaging(ctx, uid)
	if err != nil {
		return "", ErrInternal
	}
	if !ok || !security.CheckOTP(otp, staging.OTPHash) {
		return "", ErrSessionExpired
	}

	// Single use
	if err := s.sessionCache.Delete(ctx, cache.RecoveryKey(uid)); err != nil {
		log.Printf("recovery staging delete error: %v", err)
		return "", ErrInternal
	}

	newPasswordToken, err := s.codecFor(platform).Issue(token.TypeNewPassword,
		map[string]string{"uid": uid}, s.cfg.PasswordWindow)
	if err != nil {
		log.Printf("token issue error: %v", err)
		return "", ErrInternal
	}
	return newPasswordToken, nil
}

// ResendRecoveryOTP re-issues the recovery code, invalidating the previous
// one and shortening the staging window to the resend window.
func (s *Service) ResendRecoveryOTP(ctx context.Context, platform models.Platform, requestToken string) (string, error) {
	claims, ok := s.codecFor(platform).Validate(requestToken)
	if !ok || claims.Type != token.TypeRecoveryRequest {
		return "", ErrSessionExpired
	}
	uid := claims.Data["uid"]

	staging, ok, err := s.loadRecoveryStaging(ctx, uid)
	if err != nil {
		return "", ErrInternal
	}
	if !ok {
		return "", ErrSessionExpired
	}

	otp, otpHash, err := security.GenerateOTP()
	if err != nil {
		return "", ErrInternal
	}
	staging.OTPHash = otpHash
	if err := s.stageRecovery(ctx, uid, staging, s.cfg.ResendWindow); err != nil {
		return "", err
	}

	otpToken, err := s.codecFor(platform).Issue(token.TypeRecoveryOTP,
		map[string]string{"uid": uid}, s.cfg.OTPWindow)
	if err != nil {
		log.Printf("recovery resend token error: %v", err)
		return "", ErrInternal
	}

	s.sendOTPMail(ctx, staging.Email, otp)
	return otpToken, nil
}

// ResetPassword finishes recovery: it validates the new-password token,
// writes the new hash, and kills every live session of the account.
func (s *Service) ResetPassword(ctx context.Context, platform models.Platform, newPasswordToken string, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	claims, ok := s.codecFor(platform).Validate(newPasswordToken)
	if !ok || claims.Type != token.TypeNewPassword || claims.Data["uid"] == "" {
		return ErrSessionExpired
	}
	uid := claims.Data["uid"]

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return ErrInternal
	}
	if err := s.accountStore.UpdatePassword(ctx, uid, passwordHash); err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return ErrSessionExpired
		}
		log.Printf("password update error: %v", err)
		return ErrInternal
	}

	s.revokeAllSessions(ctx, uid)

	if account, err := s.accountStore.GetAccount(ctx, uid); err == nil {
		body := "Your ChatDrop password was changed just now. If this was not you, recover your account immediately."
		if err := s.mail.Send(ctx, account.Email, "ChatDrop password changed", body); err != nil {
			log.Printf("password alert mail error: %v", err)
		}
	}
	return nil
}

// revokeAllSessions drops the mobile liveness markers and every persisted
// browser session for the account.
func (s *Service) revokeAllSessions(ctx context.Context, uid string) {
	if err := s.sessionCache.Delete(ctx, cache.LivenessKey(uid), cache.LoginStateKey(uid)); err != nil {
		log.Printf("session revoke cache error: %v", err)
	}
	sessions, err := s.accountStore.ListDeviceSessions(ctx, uid)
	if err != nil {
		log.Printf("session revoke list error: %v", err)
		return
	}
	for _, session := range sessions {
		if err := s.accountStore.DeleteDeviceSession(ctx, uid, session.Token); err != nil {
			log.Printf("session revoke delete error: %v", err)
		}
	}
}

func (s *Service) stageRecovery(ctx context.Context, uid string, staging recoveryStaging, ttl time.Duration) error {
	raw, err := json.Marshal(staging)
	if err != nil {
		return ErrInternal
	}
	if err := s.sessionCache.Set(ctx, cache.RecoveryKey(uid), raw, ttl); err != nil {
		log.Printf("recovery staging set error: %v", err)
		return ErrInternal
	}
	return nil
}

func (s *Service) loadRecoveryStaging(ctx context.Context, uid string) (recoveryStaging, bool, error) {
	var staging recoveryStaging
	if uid == "" {
		return staging, false, nil
	}
	raw, ok, err := s.sessionCache.Get(ctx, cache.RecoveryKey(uid))
	if err != nil {
		log.Printf("recovery staging get error: %v", err)
		return staging, false, err
	}
	if !ok {
		return staging, false, nil
	}
	if err := json.Unmarshal(raw, &staging); err != nil {
		return staging, false, err
	}
	return staging, true, nil
}
