package service

import (
	"github.com/nitish987/chatdrop/cache"
	"github.com/nitish987/chatdrop/config"
	"github.com/nitish987/chatdrop/identity"
	"github.com/nitish987/chatdrop/mailer"
	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/push"
	"github.com/nitish987/chatdrop/security"
	"github.com/nitish987/chatdrop/store"
	"github.com/nitish987/chatdrop/token"
)

// Service implements the auth core: signup and recovery verification flows,
// federated sign-in, login/session issuance for both platforms, prekey
// bundle management, and account maintenance.
type Service struct {
	cfg config.Config

	accountStore store.AccountStore
	sessionCache cache.SessionCache

	// mobileCodec signs tokens for header transport; webCodec additionally
	// seals them for cookie transport.
	mobileCodec token.Codec
	webCodec    token.Codec

	sealer   *security.Sealer
	mail     mailer.Mailer
	pusher   push.Dispatcher
	verifier identity.Verifier
}

func NewService(
	cfg config.Config,
	accountStore store.AccountStore,
	sessionCache cache.SessionCache,
	mobileCodec token.Codec,
	webCodec token.Codec,
	sealer *security.Sealer,
	mail mailer.Mailer,
	pusher push.Dispatcher,
	verifier identity.Verifier,
) *Service {
	return &Service{
		cfg:          cfg,
		accountStore: accountStore,
		sessionCache: sessionCache,
		mobileCodec:  mobileCodec,
		webCodec:     webCodec,
		sealer:       sealer,
		mail:         mail,
		pusher:       pusher,
		verifier:     verifier,
	}
}

func (s *Service) codecFor(platform models.Platform) token.Codec {
	if platform == models.PlatformWeb {
		return s.webCodec
	}
	return s.mobileCodec
}

// DeviceInfo describes the client device at login time, parsed from the
// user agent by the transport layer.
type DeviceInfo struct {
	Device  string
	OS      string
	Browser string
}

// SessionGrant is everything a successful login or verified signup hands
// back to the client.
type SessionGrant struct {
	Account        models.Account
	AuthToken      string
	WebsocketToken string
	// LoginStateToken is an opaque token naming the session artifact: the
	// cached login state on mobile, the persisted session row on browser.
	LoginStateToken string
	// RealtimeToken authenticates the client against the realtime backend.
	RealtimeToken string
	// MessageKey is the account's messaging key, unsealed for this response
	// only.
	MessageKey string
}
