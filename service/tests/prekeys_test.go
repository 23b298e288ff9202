package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/service"
)

func testBundle(n int) models.PreKeyBundle {
	keys := make([]models.PreKey, 0, n)
	for i := 1; i <= n; i++ {
		keys = append(keys, models.PreKey{Id: i, Key: "pk"})
	}
	return models.PreKeyBundle{
		RegId:        7,
		DeviceId:     1,
		PreKeys:      keys,
		SignedPreKey: models.SignedPreKey{Id: 100, Key: "spk", Sign: "sig"},
		IdentityKey:  "ik",
	}
}

func TestUploadAndClaimPreKeyBundle(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")

	err := svc.UploadPreKeyBundle(ctx, grant.Account.Uid, testBundle(10))
	assert.NoError(t, err)

	consumed, err := svc.ClaimPreKeyBundle(ctx, grant.Account.Uid)
	assert.NoError(t, err)
	assert.Equal(t, 7, consumed.RegId)
	assert.Equal(t, "ik", consumed.IdentityKey)
	assert.Equal(t, "spk", consumed.SignedPreKey.Key)
	assert.Equal(t, 9, consumed.Remaining)
}

func TestUploadPreKeyBundle_Incomplete(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")

	bundle := testBundle(10)
	bundle.IdentityKey = ""
	err := svc.UploadPreKeyBundle(ctx, grant.Account.Uid, bundle)
	assert.ErrorIs(t, err, service.ErrValidationFailed)

	bundle = testBundle(0)
	err = svc.UploadPreKeyBundle(ctx, grant.Account.Uid, bundle)
	assert.ErrorIs(t, err, service.ErrValidationFailed)
}

func TestClaimPreKeyBundle_NoBundle(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.ClaimPreKeyBundle(ctx, "nobody")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestClaimPreKeyBundle_EachKeyHandedOutOnce(t *testing.T) {
	svc, _, _, mockMailer, _, mockPusher := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")
	mockPusher.On("Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	const n = 10
	err := svc.UploadPreKeyBundle(ctx, grant.Account.Uid, testBundle(n))
	assert.NoError(t, err)

	var mu sync.Mutex
	var wg sync.WaitGroup
	seen := make(map[int]int)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumed, err := svc.ClaimPreKeyBundle(ctx, grant.Account.Uid)
			assert.NoError(t, err)
			mu.Lock()
			seen[consumed.PreKey.Id]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for id, count := range seen {
		assert.Equal(t, 1, count, "prekey %d handed out more than once", id)
	}

	// The batch is spent
	_, err = svc.ClaimPreKeyBundle(ctx, grant.Account.Uid)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestClaimPreKeyBundle_LowWaterNudge(t *testing.T) {
	svc, memStore, _, mockMailer, _, mockPusher := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")
	err := memStore.UpdatePushToken(ctx, grant.Account.Uid, "fcm-token-1")
	assert.NoError(t, err)

	err = svc.UploadPreKeyBundle(ctx, grant.Account.Uid, testBundle(5))
	assert.NoError(t, err)

	mockPusher.On("Dispatch", mock.Anything, "fcm-token-1", mock.Anything, mock.Anything).Return(nil)

	_, err = svc.ClaimPreKeyBundle(ctx, grant.Account.Uid)
	assert.NoError(t, err)

	mockPusher.AssertCalled(t, "Dispatch", mock.Anything, "fcm-token-1", mock.Anything, mock.Anything)
}

func TestLogout_Mobile_RetiresBundle(t *testing.T) {
	svc, _, _, mockMailer, _, _ := setupService(t)
	ctx := context.Background()

	grant := registerAccount(t, svc, captureOTP(mockMailer), "asha@example.com", "passw0rd1")
	err := svc.UploadPreKeyBundle(ctx, grant.Account.Uid, testBundle(10))
	assert.NoError(t, err)

	err = svc.Logout(ctx, models.PlatformMobile, grant.AuthToken, grant.LoginStateToken)
	assert.NoError(t, err)

	// The logged-out device's key material is gone with it
	_, err = svc.ClaimPreKeyBundle(ctx, grant.Account.Uid)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
