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

// loginState is the mobile login-state cache entry, keyed by the account
// and holding the opaque login-state token plus the device fingerprint.
type loginState struct {
	LoginToken string `json:"loginToken"`
	Uid        string `json:"uid"`
	Device     string `json:"device"`
	OS         string `json:"os"`
	Browser    string `json:"browser"`
}

// Login authenticates an email/password pair and issues a session. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, platform models.Platform, email, password, pushToken string, device DeviceInfo) (SessionGrant, error) {
	if err := validateEmail(email); err != nil {
		return SessionGrant{}, ErrInvalidCredentials
	}

	account, err := s.accountStore.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return SessionGrant{}, ErrInvalidCredentials
		}
		log.Printf("login account lookup error: %v", err)
		return SessionGrant{}, ErrInternal
	}

	if !account.IsActive || !security.CheckPassword(password, account.PasswordHash) {
		return SessionGrant{}, ErrInvalidCredentials
	}

	return s.IssueSession(ctx, account, platform, device, pushToken)
}

// IssueSession establishes a session for an already-authenticated account.
// Mobile sessions live in the ephemeral cache as a liveness marker plus a
// login-state entry; browser sessions are persisted rows capped per
// account. Both platforms receive an auth token, a websocket token, an
// opaque login-state token, a realtime token, and the account message key.
func (s *Service) IssueSession(ctx context.Context, account models.Account, platform models.Platform, device DeviceInfo, pushToken string) (SessionGrant, error) {
	if pushToken != "" && pushToken != account.PushToken {
		if err := s.accountStore.UpdatePushToken(ctx, account.Uid, pushToken); err != nil {
			log.Printf("push token update error: %v", err)
		} else {
			account.PushToken = pushToken
		}
	}

	var loginStateToken string
	var err error
	if platform == models.PlatformWeb {
		loginStateToken, err = s.createBrowserLoginState(ctx, account, device)
	} else {
		loginStateToken, err = s.createMobileLoginState(ctx, account, device)
	}
	if err != nil {
		return SessionGrant{}, err
	}

	codec := s.codecFor(platform)
	data := map[string]string{"uid": account.Uid}
	authToken, err := codec.Issue(token.TypeAuth, data, s.cfg.AuthWindow)
	if err != nil {
		log.Printf("auth token issue error: %v", err)
		return SessionGrant{}, ErrInternal
	}
	wsToken, err := codec.Issue(token.TypeWebsocketAuth, data, s.cfg.AuthWindow)
	if err != nil {
		log.Printf("ws token issue error: %v", err)
		return SessionGrant{}, ErrInternal
	}

	realtimeToken, err := s.verifier.CustomToken(ctx, account.Uid)
	if err != nil {
		log.Printf("realtime token error: %v", err)
		return SessionGrant{}, ErrInternal
	}

	messageKey, err := s.sealer.Open(account.EncKey)
	if err != nil {
		log.Printf("message key open error: %v", err)
		return SessionGrant{}, ErrInternal
	}

	return SessionGrant{
		Account:         account,
		AuthToken:       authToken,
		WebsocketToken:  wsToken,
		LoginStateToken: loginStateToken,
		RealtimeToken:   realtimeToken,
		MessageKey:      messageKey,
	}, nil
}

// createMobileLoginState writes the liveness marker and the login-state
// entry. Only one mobile session exists per account; a new login replaces
// the previous state.
func (s *Service) createMobileLoginState(ctx context.Context, account models.Account, device DeviceInfo) (string, error) {
	loginToken, err := security.GenerateToken(32)
	if err != nil {
		return "", ErrInternal
	}

	state, err := json.Marshal(loginState{
		LoginToken: loginToken,
		Uid:        account.Uid,
		Device:     device.Device,
		OS:         device.OS,
		Browser:    device.Browser,
	})
	if err != nil {
		return "", ErrInternal
	}
	if err := s.sessionCache.Set(ctx, cache.LoginStateKey(account.Uid), state, s.cfg.AuthWindow); err != nil {
		log.Printf("login state set error: %v", err)
		return "", ErrInternal
	}

	if err := s.sessionCache.Set(ctx, cache.LivenessKey(account.Uid), []byte(account.Uid), s.cfg.AuthWindow); err != nil {
		log.Printf("liveness set error: %v", err)
		return "", ErrInternal
	}
	return loginToken, nil
}

// createBrowserLoginState persists a capped device-session row and returns
// its opaque token.
func (s *Service) createBrowserLoginState(ctx context.Context, account models.Account, device DeviceInfo) (string, error) {
	now := time.Now()

	sessionToken, err := security.GenerateToken(32)
	if err != nil {
		return "", ErrInternal
	}

	session := models.DeviceSession{
		AccountUid:  account.Uid,
		Token:       sessionToken,
		Device:      device.Device,
		OS:          device.OS,
		Browser:     device.Browser,
		Created:     now.Unix(),
		ActiveUntil: now.Add(s.cfg.AuthWindow).Unix(),
	}

	err = s.accountStore.CreateDeviceSession(ctx, session)
	if errors.Is(err, store.ErrConditionFailed) {
		// Lost an eviction race with a concurrent login; one retry settles it
		err = s.accountStore.CreateDeviceSession(ctx, session)
	}
	if err != nil {
		log.Printf("device session create error: %v", err)
		return "", ErrInternal
	}

	if account.PushToken != "" {
		title := "New browser login"
		body := fmt.Sprintf("Your account was just used to sign in from %s on %s.", session.Browser, session.OS)
		if err := s.pusher.Dispatch(ctx, account.PushToken, title, body); err != nil {
			log.Printf("login alert push error: %v", err)
		}
	}
	return sessionToken, nil
}

// Authenticate resolves an auth token to its live account. Browser callers
// also present their login-state token, which must match a live session
// row. A valid token whose backing session artifact is gone reports
// ErrSessionExpired.
func (s *Service) Authenticate(ctx context.Context, platform models.Platform, authToken string, loginStateToken string) (models.Account, error) {
	claims, ok := s.codecFor(platform).Validate(authToken)
	if !ok || claims.Type != token.TypeAuth || claims.Data["uid"] == "" {
		return models.Account{}, ErrSessionExpired
	}
	uid := claims.Data["uid"]

	if platform == models.PlatformWeb {
		session, err := s.accountStore.GetDeviceSession(ctx, uid, loginStateToken)
		if err != nil {
			if errors.Is(err, store.ErrItemNotFound) {
				return models.Account{}, ErrSessionExpired
			}
			log.Printf("device session get error: %v", err)
			return models.Account{}, ErrInternal
		}
		if session.ActiveUntil < time.Now().Unix() {
			return models.Account{}, ErrSessionExpired
		}
	} else {
		_, alive, err := s.sessionCache.Get(ctx, cache.LivenessKey(uid))
		if err != nil {
			log.Printf("liveness get error: %v", err)
			return models.Account{}, ErrInternal
		}
		if !alive {
			return models.Account{}, ErrSessionExpired
		}
	}

	account, err := s.accountStore.GetAccount(ctx, uid)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return models.Account{}, ErrSessionExpired
		}
		log.Printf("account get error: %v", err)
		return models.Account{}, ErrInternal
	}
	return account, nil
}

// LoginCheck reports whether the token still backs a live session.
func (s *Service) LoginCheck(ctx context.Context, platform models.Platform, authToken string, loginStateToken string) (bool, error) {
	_, err := s.Authenticate(ctx, platform, authToken, loginStateToken)
	if errors.Is(err, ErrSessionExpired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Logout tears the session down. Mobile logout also retires the device's
// key material: the prekey bundle belongs to the logged-out device, so it
// is deleted along with the push token and login state. Idempotent.
func (s *Service) Logout(ctx context.Context, platform models.Platform, authToken string, loginStateToken string) error {
	claims, ok := s.codecFor(platform).Validate(authToken)
	if !ok || claims.Type != token.TypeAuth || claims.Data["uid"] == "" {
		return ErrSessionExpired
	}
	uid := claims.Data["uid"]

	if platform == models.PlatformWeb {
		if err := s.accountStore.DeleteDeviceSession(ctx, uid, loginStateToken); err != nil {
			log.Printf("device session delete error: %v", err)
			return ErrInternal
		}
	} else {
		if err := s.sessionCache.Delete(ctx, cache.LivenessKey(uid), cache.LoginStateKey(uid)); err != nil {
			log.Printf("logout cache delete error: %v", err)
			return ErrInternal
		}
		if err := s.accountStore.DeletePreKeyBundle(ctx, uid); err != nil {
			log.Printf("logout bundle delete error: %v", err)
			return ErrInternal
		}
	}

	if err := s.accountStore.UpdatePushToken(ctx, uid, ""); err != nil && !errors.Is(err, store.ErrItemNotFound) {
		log.Printf("logout push token clear error: %v", err)
	}
	return nil
}

// AuthenticateWebsocket checks a WSLI token and returns the account uid it
// grants a socket for.
func (s *Service) AuthenticateWebsocket(ctx context.Context, platform models.Platform, wsToken string) (string, error) {
	claims, ok := s.codecFor(platform).Validate(wsToken)
	if !ok || claims.Type != token.TypeWebsocketAuth || claims.Data["uid"] == "" {
		return "", ErrSessionExpired
	}
	return claims.Data["uid"], nil
}
