package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var ErrInvalidIDToken = errors.New("invalid identity token")

// IDClaims is the verified identity asserted by the OAuth provider.
type IDClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
}

// Verifier validates third-party identity assertions for OAuth login.
type Verifier interface {
	// VerifyIDToken validates an ID token and returns the identity it
	// asserts. Tokens issued for unknown client ids are rejected.
	VerifyIDToken(ctx context.Context, idToken string) (IDClaims, error)
	// ExchangeCode trades an authorization code for a verified identity.
	ExchangeCode(ctx context.Context, code string, redirectURL string) (IDClaims, error)
	// CustomToken mints a short-lived token the mobile client uses to
	// authenticate against the realtime backend.
	CustomToken(ctx context.Context, uid string) (string, error)
}

const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleVerifier verifies Google ID tokens through the tokeninfo endpoint
// and exchanges authorization codes through the standard OAuth2 flow.
type GoogleVerifier struct {
	clientID     string
	clientSecret string
	allowedAuds  map[string]bool
	httpClient   *http.Client
}

func NewGoogleVerifier(clientID string, clientSecret string, allowedClientIDs []string) *GoogleVerifier {
	allowed := make(map[string]bool, len(allowedClientIDs)+1)
	allowed[clientID] = true
	for _, id := range allowedClientIDs {
		allowed[id] = true
	}
	return &GoogleVerifier{
		clientID:     clientID,
		clientSecret: clientSecret,
		allowedAuds:  allowed,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenInfo struct {
	Aud           string `json:"aud"`
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Exp           string `json:"exp"`
}

func (v *GoogleVerifier) VerifyIDToken(ctx context.Context, idToken string) (IDClaims, error) {
	endpoint := googleTokenInfoURL + "?id_token=" + url.QueryEscape(idToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return IDClaims{}, err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return IDClaims{}, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return IDClaims{}, ErrInvalidIDToken
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return IDClaims{}, fmt.Errorf("tokeninfo decode failed: %w", err)
	}

	if !v.allowedAuds[info.Aud] {
		return IDClaims{}, ErrInvalidIDToken
	}
	if info.Email == "" {
		return IDClaims{}, ErrInvalidIDToken
	}

	return IDClaims{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified == "true",
		FirstName:     info.GivenName,
		LastName:      info.FamilyName,
	}, nil
}

func (v *GoogleVerifier) ExchangeCode(ctx context.Context, code string, redirectURL string) (IDClaims, error) {
	conf := &oauth2.Config{
		ClientID:     v.clientID,
		ClientSecret: v.clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return IDClaims{}, fmt.Errorf("code exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return IDClaims{}, ErrInvalidIDToken
	}

	return v.VerifyIDToken(ctx, rawIDToken)
}

func (v *GoogleVerifier) CustomToken(ctx context.Context, uid string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    v.clientID,
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(v.clientSecret))
}
