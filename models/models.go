package models

type Account struct {
	Uid          string
	Email        string
	Username     string
	FirstName    string
	LastName     string
	Gender       string
	DateOfBirth  string
	PasswordHash string
	// EncKey is the per-account messaging key, stored sealed under the
	// server master key. Never persisted in plaintext.
	EncKey    string
	PushToken string
	IsSigned  bool
	IsActive  bool
	IsAdmin   bool
	Created   int64
	Settings  AccountSettings
}

type AccountSettings struct {
	IsProfilePrivate      bool   `json:"isProfilePrivate"`
	DefaultPostVisibility string `json:"defaultPostVisibility"`
	DefaultReelVisibility string `json:"defaultReelVisibility"`
}

type PreKey struct {
	Id  int    `json:"id"`
	Key string `json:"key"`
}

type SignedPreKey struct {
	Id   int    `json:"id"`
	Key  string `json:"key"`
	Sign string `json:"sign"`
}

// PreKeyBundle is the X3DH key material an account publishes so peers can
// start an encrypted session while it is offline. At most one per account;
// one-time prekeys are consumed destructively.
type PreKeyBundle struct {
	AccountUid   string
	RegId        int
	DeviceId     int
	PreKeys      []PreKey
	SignedPreKey SignedPreKey
	IdentityKey  string
	// Version guards concurrent prekey consumption.
	Version int64
}

// ConsumedBundle is what a handshake initiator receives: exactly one
// one-time prekey plus the static bundle parts.
type ConsumedBundle struct {
	RegId        int
	DeviceId     int
	PreKey       PreKey
	SignedPreKey SignedPreKey
	IdentityKey  string
	Remaining    int
}

// DeviceSession is a persisted browser login. Mobile logins live in the
// ephemeral cache instead.
type DeviceSession struct {
	AccountUid  string
	Token       string
	Device      string
	OS          string
	Browser     string
	Created     int64
	ActiveUntil int64
}

type Platform int

const (
	PlatformMobile Platform = iota
	PlatformWeb
)

func (p Platform) String() string {
	if p == PlatformWeb {
		return "web"
	}
	return "mobile"
}
