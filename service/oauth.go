package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/nitish987/chatdrop/identity"
	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/security"
	"github.com/nitish987/chatdrop/store"
	"github.com/nitish987/chatdrop/token"
)

func randomOAuthPassword() (string, error) {
	return security.GenerateToken(24)
}

// OAuthResult is the outcome of a federated sign-in attempt. Exactly one of
// Grant and SignupToken is set: a known email logs straight in, an unknown
// one gets a signup-completion token carrying the verified identity.
type OAuthResult struct {
	Grant       *SessionGrant
	SignupToken string
	// NewAccount reports that signup completion is required.
	NewAccount bool
}

type OAuthSignupRequest struct {
	Email       string `json:"email"`
	Gender      string `json:"gender"`
	DateOfBirth string `json:"dateOfBirth"`
}

// GoogleSignIn verifies a Google ID token and either logs the matching
// account in or opens the signup-completion window for a new one.
func (s *Service) GoogleSignIn(ctx context.Context, platform models.Platform, idToken string, pushToken string, device DeviceInfo) (OAuthResult, error) {
	claims, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidIDToken) {
			return OAuthResult{}, ErrSessionExpired
		}
		log.Printf("google id token verify error: %v", err)
		return OAuthResult{}, ErrInternal
	}
	return s.federatedSignIn(ctx, platform, claims, pushToken, device)
}

// GoogleSignInWithCode is the browser variant: it exchanges an
// authorization code first, then proceeds as GoogleSignIn.
func (s *Service) GoogleSignInWithCode(ctx context.Context, platform models.Platform, code string, redirectURL string, pushToken string, device DeviceInfo) (OAuthResult, error) {
	claims, err := s.verifier.ExchangeCode(ctx, code, redirectURL)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidIDToken) {
			return OAuthResult{}, ErrSessionExpired
		}
		log.Printf("google code exchange error: %v", err)
		return OAuthResult{}, ErrInternal
	}
	return s.federatedSignIn(ctx, platform, claims, pushToken, device)
}

func (s *Service) federatedSignIn(ctx context.Context, platform models.Platform, claims identity.IDClaims, pushToken string, device DeviceInfo) (OAuthResult, error) {
	if !claims.EmailVerified {
		return OAuthResult{}, ErrSessionExpired
	}

	account, err := s.accountStore.GetAccountByEmail(ctx, claims.Email)
	if err == nil {
		if !account.IsActive {
			return OAuthResult{}, ErrInvalidCredentials
		}
		grant, err := s.IssueSession(ctx, account, platform, device, pushToken)
		if err != nil {
			return OAuthResult{}, err
		}
		return OAuthResult{Grant: &grant}, nil
	}
	if !errors.Is(err, store.ErrItemNotFound) {
		log.Printf("oauth account lookup error: %v", err)
		return OAuthResult{}, ErrInternal
	}

	// Unknown email: the provider already verified it, so signup skips the
	// OTP leg. The token pins the identity the completion step must match.
	signupToken, err := s.codecFor(platform).Issue(token.TypeOAuthSignup, map[string]string{
		"email": claims.Email,
		"first": claims.FirstName,
		"last":  claims.LastName,
	}, s.cfg.SignupWindow)
	if err != nil {
		log.Printf("oauth signup token issue error: %v", err)
		return OAuthResult{}, ErrInternal
	}

	return OAuthResult{SignupToken: signupToken, NewAccount: true}, nil
}

// CompleteOAuthSignup creates the account a federated sign-in opened a
// window for. The payload email must match the one pinned in the token, so
// a client cannot register an address the provider never verified.
func (s *Service) CompleteOAuthSignup(ctx context.Context, platform models.Platform, signupToken string, req OAuthSignupRequest, device DeviceInfo, pushToken string, bundle *models.PreKeyBundle) (SessionGrant, error) {
	claims, ok := s.codecFor(platform).Validate(signupToken)
	if !ok || claims.Type != token.TypeOAuthSignup || claims.Data["email"] == "" {
		return SessionGrant{}, ErrSessionExpired
	}
	if req.Email != claims.Data["email"] {
		return SessionGrant{}, ErrSessionExpired
	}

	if err := validateGender(req.Gender); err != nil {
		return SessionGrant{}, err
	}
	if err := validateDateOfBirth(req.DateOfBirth, time.Now()); err != nil {
		return SessionGrant{}, err
	}

	firstName, lastName := claims.Data["first"], claims.Data["last"]
	if firstName == "" {
		firstName = "user"
	}

	// Federated accounts get a random local password; the provider remains
	// the login path until the user runs recovery to set one.
	randomPassword, err := randomOAuthPassword()
	if err != nil {
		return SessionGrant{}, ErrInternal
	}

	account, err := s.materializeAccount(ctx, req.Email, randomPassword, firstName, lastName, req.Gender, req.DateOfBirth)
	if err != nil {
		return SessionGrant{}, err
	}

	if bundle != nil {
		bundle.AccountUid = account.Uid
		if err := s.accountStore.UpsertPreKeyBundle(ctx, *bundle); err != nil {
			log.Printf("oauth signup bundle upsert error: %v", err)
		}
	}

	return s.IssueSession(ctx, account, platform, device, pushToken)
}
