package cache

import (
	"context"
	"time"
)

// SessionCache is the shared ephemeral store behind every multi-step auth
// flow: signup/recovery staging data, login-liveness markers, and the mobile
// login-state entry. Expiry is a normal outcome — Get reports absence via
// ok=false, never an error.
type SessionCache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Delete(ctx context.Context, keys ...string) error

	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error
}

// Cache key builders. Suffixes distinguish the flow a staged entry belongs
// to, so signup staging can never be replayed into recovery.
func SignupKey(stagingId string) string   { return stagingId + ":signup" }
func RecoveryKey(uid string) string       { return uid + ":pr" }
func LivenessKey(uid string) string       { return uid + ":login" }
func LoginStateKey(uid string) string     { return uid + ":lst" }
func NotifyChannel(uid string) string     { return "notify:" + uid }
