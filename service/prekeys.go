package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/store"
)

// lowPreKeyThreshold is where the owning device gets nudged to upload a
// fresh batch of one-time prekeys.
const lowPreKeyThreshold = 5

// UploadPreKeyBundle publishes (or replaces) the account's X3DH bundle.
func (s *Service) UploadPreKeyBundle(ctx context.Context, uid string, bundle models.PreKeyBundle) error {
	if len(bundle.PreKeys) == 0 || bundle.SignedPreKey.Key == "" || bundle.IdentityKey == "" {
		return fmt.Errorf("%w: incomplete prekey bundle", ErrValidationFailed)
	}

	bundle.AccountUid = uid
	if err := s.accountStore.UpsertPreKeyBundle(ctx, bundle); err != nil {
		log.Printf("bundle upsert error: %v", err)
		return ErrInternal
	}
	return nil
}

// ClaimPreKeyBundle hands the caller one-time key material for starting an
// encrypted session with the target account. Each claim consumes exactly
// one prekey; concurrent claimers never receive the same one.
func (s *Service) ClaimPreKeyBundle(ctx context.Context, targetUid string) (models.ConsumedBundle, error) {
	consumed, err := s.accountStore.ConsumeOnePreKey(ctx, targetUid)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) || errors.Is(err, store.ErrNoPreKeys) {
			return models.ConsumedBundle{}, ErrNotFound
		}
		log.Printf("prekey consume error: %v", err)
		return models.ConsumedBundle{}, ErrInternal
	}

	if consumed.Remaining <= lowPreKeyThreshold {
		s.nudgePreKeyReplenish(ctx, targetUid, consumed.Remaining)
	}
	return consumed, nil
}

func (s *Service) nudgePreKeyReplenish(ctx context.Context, uid string, remaining int) {
	account, err := s.accountStore.GetAccount(ctx, uid)
	if err != nil || account.PushToken == "" {
		return
	}
	body := fmt.Sprintf("You have %d one-time keys left. Open the app to refresh them.", remaining)
	if err := s.pusher.Dispatch(ctx, account.PushToken, "Refresh your security keys", body); err != nil {
		log.Printf("prekey replenish push error: %v", err)
	}
}
