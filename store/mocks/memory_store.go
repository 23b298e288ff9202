package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/store"
)

// MemoryStore is an in-memory AccountStore for multi-step flow tests where
// expectation-style mocks get unwieldy.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	byEmail  map[string]string
	byName   map[string]string
	bundles  map[string]models.PreKeyBundle
	sessions map[string][]models.DeviceSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]models.Account),
		byEmail:  make(map[string]string),
		byName:   make(map[string]string),
		bundles:  make(map[string]models.PreKeyBundle),
		sessions: make(map[string][]models.DeviceSession),
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[account.Email]; taken {
		return models.Account{}, store.ErrEmailTaken
	}
	account.Created = time.Now().Unix()
	s.accounts[account.Uid] = account
	s.byEmail[account.Email] = account.Uid
	s.byName[account.Username] = account.Uid
	return account, nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, uid string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[uid]
	if !ok {
		return models.Account{}, store.ErrItemNotFound
	}
	return account, nil
}

func (s *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	s.mu.Lock()
	uid, ok := s.byEmail[email]
	s.mu.Unlock()
	if !ok {
		return models.Account{}, store.ErrItemNotFound
	}
	return s.GetAccount(ctx, uid)
}

func (s *MemoryStore) GetAccountByUsername(ctx context.Context, username string) (models.Account, error) {
	s.mu.Lock()
	uid, ok := s.byName[username]
	s.mu.Unlock()
	if !ok {
		return models.Account{}, store.ErrItemNotFound
	}
	return s.GetAccount(ctx, uid)
}

func (s *MemoryStore) SaveAccount(ctx context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Uid] = account
	s.byEmail[account.Email] = account.Uid
	s.byName[account.Username] = account.Uid
	return nil
}

func (s *MemoryStore) UpdatePushToken(ctx context.Context, uid string, pushToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[uid]
	if !ok {
		return store.ErrItemNotFound
	}
	account.PushToken = pushToken
	s.accounts[uid] = account
	return nil
}

func (s *MemoryStore) UpdatePassword(ctx context.Context, uid string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[uid]
	if !ok {
		return store.ErrItemNotFound
	}
	account.PasswordHash = passwordHash
	s.accounts[uid] = account
	return nil
}

func (s *MemoryStore) DeleteAccount(ctx context.Context, uid string, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account, ok := s.accounts[uid]; ok {
		delete(s.byName, account.Username)
	}
	delete(s.accounts, uid)
	delete(s.byEmail, email)
	delete(s.bundles, uid)
	delete(s.sessions, uid)
	return nil
}

func (s *MemoryStore) UpsertPreKeyBundle(ctx context.Context, bundle models.PreKeyBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bundle.Version = 1
	s.bundles[bundle.AccountUid] = bundle
	return nil
}

func (s *MemoryStore) ConsumeOnePreKey(ctx context.Context, uid string) (models.ConsumedBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bundle, ok := s.bundles[uid]
	if !ok {
		return models.ConsumedBundle{}, store.ErrItemNotFound
	}
	if len(bundle.PreKeys) == 0 {
		return models.ConsumedBundle{}, store.ErrNoPreKeys
	}
	picked := bundle.PreKeys[len(bundle.PreKeys)-1]
	bundle.PreKeys = bundle.PreKeys[:len(bundle.PreKeys)-1]
	bundle.Version++
	s.bundles[uid] = bundle
	return models.ConsumedBundle{
		RegId:        bundle.RegId,
		DeviceId:     bundle.DeviceId,
		PreKey:       picked,
		SignedPreKey: bundle.SignedPreKey,
		IdentityKey:  bundle.IdentityKey,
		Remaining:    len(bundle.PreKeys),
	}, nil
}

func (s *MemoryStore) DeletePreKeyBundle(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bundles, uid)
	return nil
}

func (s *MemoryStore) CreateDeviceSession(ctx context.Context, session models.DeviceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := s.sessions[session.AccountUid]
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Created < sessions[j].Created })
	// Evict oldest down to cap-1 so the insert never leaves the account
	// above the cap, even if it somehow got there
	for len(sessions) >= store.MaxDeviceSessions {
		sessions = sessions[1:]
	}
	s.sessions[session.AccountUid] = append(sessions, session)
	return nil
}

func (s *MemoryStore) GetDeviceSession(ctx context.Context, uid string, token string) (models.DeviceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions[uid] {
		if session.Token == token {
			return session, nil
		}
	}
	return models.DeviceSession{}, store.ErrItemNotFound
}

func (s *MemoryStore) ListDeviceSessions(ctx context.Context, uid string) ([]models.DeviceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]models.DeviceSession, len(s.sessions[uid]))
	copy(sessions, s.sessions[uid])
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Created < sessions[j].Created })
	return sessions, nil
}

func (s *MemoryStore) DeleteDeviceSession(ctx context.Context, uid string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := s.sessions[uid]
	for i, session := range sessions {
		if session.Token == token {
			s.sessions[uid] = append(sessions[:i], sessions[i+1:]...)
			return nil
		}
	}
	return nil
}
