package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/security"
	"github.com/nitish987/chatdrop/store"
)

// ChangePassword rotates an authenticated account's password after
// re-checking the current one.
func (s *Service) ChangePassword(ctx context.Context, account models.Account, currentPassword, newPassword string) error {
	if !security.CheckPassword(currentPassword, account.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return ErrInternal
	}
	if err := s.accountStore.UpdatePassword(ctx, account.Uid, passwordHash); err != nil {
		log.Printf("password update error: %v", err)
		return ErrInternal
	}

	body := "Your ChatDrop password was changed just now. If this was not you, recover your account immediately."
	if err := s.mail.Send(ctx, account.Email, "ChatDrop password changed", body); err != nil {
		log.Printf("password alert mail error: %v", err)
	}
	return nil
}

// ChangeNames updates the display names and, optionally, the handle. The
// username availability check is advisory; two racing claims resolve to the
// last writer.
func (s *Service) ChangeNames(ctx context.Context, account models.Account, firstName, lastName, username string) error {
	if err := validateName(firstName); err != nil {
		return err
	}
	if err := validateName(lastName); err != nil {
		return err
	}

	if username != "" && username != account.Username {
		if err := validateUsername(username); err != nil {
			return err
		}
		available, err := s.CheckUsernameAvailability(ctx, username)
		if err != nil {
			return err
		}
		if !available {
			return fmt.Errorf("%w: username taken", ErrConflict)
		}
		account.Username = username
	}

	account.FirstName = firstName
	account.LastName = lastName
	if err := s.accountStore.SaveAccount(ctx, account); err != nil {
		log.Printf("account save error: %v", err)
		return ErrInternal
	}
	return nil
}

func (s *Service) CheckUsernameAvailability(ctx context.Context, username string) (bool, error) {
	if err := validateUsername(username); err != nil {
		return false, err
	}
	_, err := s.accountStore.GetAccountByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, store.ErrItemNotFound) {
		return true, nil
	}
	log.Printf("username lookup error: %v", err)
	return false, ErrInternal
}

func (s *Service) UpdatePushToken(ctx context.Context, uid string, pushToken string) error {
	if err := s.accountStore.UpdatePushToken(ctx, uid, pushToken); err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return ErrNotFound
		}
		log.Printf("push token update error: %v", err)
		return ErrInternal
	}
	return nil
}

// UpdateSettings stores the account's visibility preferences, returned with
// every login response.
func (s *Service) UpdateSettings(ctx context.Context, account models.Account, settings models.AccountSettings) error {
	switch settings.DefaultPostVisibility {
	case "public", "friends", "private":
	default:
		return fmt.Errorf("%w: invalid post visibility", ErrValidationFailed)
	}
	switch settings.DefaultReelVisibility {
	case "public", "friends", "private":
	default:
		return fmt.Errorf("%w: invalid reel visibility", ErrValidationFailed)
	}

	account.Settings = settings
	if err := s.accountStore.SaveAccount(ctx, account); err != nil {
		log.Printf("account save error: %v", err)
		return ErrInternal
	}
	return nil
}

// DeleteAccount permanently removes the account and every session artifact
// after re-checking the password.
func (s *Service) DeleteAccount(ctx context.Context, account models.Account, password string) error {
	if !security.CheckPassword(password, account.PasswordHash) {
		return ErrInvalidCredentials
	}

	s.revokeAllSessions(ctx, account.Uid)

	if err := s.accountStore.DeleteAccount(ctx, account.Uid, account.Email); err != nil {
		log.Printf("account delete error: %v", err)
		return ErrInternal
	}
	return nil
}
