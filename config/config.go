package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"
)

// Config carries every tunable the auth core depends on. All windows are
// domain parameters, injected so tests never rely on the production values.
type Config struct {
	// JWTSecret signs both mobile and browser tokens.
	JWTSecret []byte
	// TokenEncKey seals browser-platform token payloads (32 bytes).
	TokenEncKey []byte
	// ServerEncKey is the master key under which per-account messaging
	// keys are stored at rest (32 bytes).
	ServerEncKey []byte

	OTPWindow      time.Duration
	ResendWindow   time.Duration
	SignupWindow   time.Duration
	RecoveryWindow time.Duration
	PasswordWindow time.Duration
	AuthWindow     time.Duration

	// OAuthClientIDs is the allowlist of Google client ids whose ID tokens
	// are accepted for federated sign-in.
	OAuthClientIDs []string
}

// Defaults mirror the windows the product was designed around.
const (
	DefaultOTPWindow      = 3 * time.Minute
	DefaultResendWindow   = 5 * time.Minute
	DefaultSignupWindow   = 10 * time.Minute
	DefaultRecoveryWindow = 10 * time.Minute
	DefaultPasswordWindow = 5 * time.Minute
	DefaultAuthWindow     = 30 * 24 * time.Hour
)

// FromEnv builds a Config from environment variables. Secrets are base64
// encoded; missing secrets are an error, missing windows fall back to the
// defaults above.
func FromEnv() (Config, error) {
	cfg := Config{
		OTPWindow:      DefaultOTPWindow,
		ResendWindow:   DefaultResendWindow,
		SignupWindow:   DefaultSignupWindow,
		RecoveryWindow: DefaultRecoveryWindow,
		PasswordWindow: DefaultPasswordWindow,
		AuthWindow:     DefaultAuthWindow,
	}

	var err error
	if cfg.JWTSecret, err = secretFromEnv("JWT_SECRET"); err != nil {
		return Config{}, err
	}
	if cfg.TokenEncKey, err = secretFromEnv("TOKEN_ENC_KEY"); err != nil {
		return Config{}, err
	}
	if cfg.ServerEncKey, err = secretFromEnv("SERVER_ENC_KEY"); err != nil {
		return Config{}, err
	}
	if len(cfg.TokenEncKey) != 32 {
		return Config{}, errors.New("TOKEN_ENC_KEY must decode to 32 bytes")
	}
	if len(cfg.ServerEncKey) != 32 {
		return Config{}, errors.New("SERVER_ENC_KEY must decode to 32 bytes")
	}

	for _, w := range []struct {
		env string
		dst *time.Duration
	}{
		{"OTP_WINDOW", &cfg.OTPWindow},
		{"RESEND_WINDOW", &cfg.ResendWindow},
		{"SIGNUP_WINDOW", &cfg.SignupWindow},
		{"RECOVERY_WINDOW", &cfg.RecoveryWindow},
		{"PASSWORD_WINDOW", &cfg.PasswordWindow},
		{"AUTH_WINDOW", &cfg.AuthWindow},
	} {
		if v := os.Getenv(w.env); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", w.env, err)
			}
			*w.dst = d
		}
	}

	return cfg, nil
}

func secretFromEnv(name string) ([]byte, error) {
	v := os.Getenv(name)
	if v == "" {
		return nil, fmt.Errorf("missing required env var %s", name)
	}
	decoded, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 %s: %w", name, err)
	}
	return decoded, nil
}
