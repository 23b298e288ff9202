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

type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Gender      string `json:"gender"`
	DateOfBirth string `json:"dateOfBirth"`
}

// FlowTokens pairs the short-lived OTP token with the longer-lived request
// token a multi-step flow rides on.
type FlowTokens struct {
	OTPToken     string
	RequestToken string
}

// signupStaging is the draft account held in the session cache between the
// signup request and its OTP verification. The password is sealed under the
// server master key, never staged in plaintext.
type signupStaging struct {
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Gender         string `json:"gender"`
	DateOfBirth    string `json:"dateOfBirth"`
	SealedPassword string `json:"sealedPassword"`
	OTPHash        string `json:"otpHash"`
}

func (s *Service) validateSignupRequest(req SignupRequest) error {
	if err := validateEmail(req.Email); err != nil {
		return err
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}
	if err := validateName(req.FirstName); err != nil {
		return err
	}
	if err := validateName(req.LastName); err != nil {
		return err
	}
	if err := validateGender(req.Gender); err != nil {
		return err
	}
	return validateDateOfBirth(req.DateOfBirth, time.Now())
}

// Signup stages a draft account and opens the email verification window.
// Nothing is persisted until the OTP is verified.
func (s *Service) Signup(ctx context.Context, platform models.Platform, req SignupRequest) (FlowTokens, error) {
	if err := s.validateSignupRequest(req); err != nil {
		return FlowTokens{}, err
	}

	if _, err := s.accountStore.GetAccountByEmail(ctx, req.Email); err == nil {
		return FlowTokens{}, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, store.ErrItemNotFound) {
		log.Printf("signup email lookup error: %v", err)
		return FlowTokens{}, ErrInternal
	}

	stagingId, err := security.GenerateIdentity()
	if err != nil {
		return FlowTokens{}, ErrInternal
	}

	sealedPassword, err := s.sealer.Seal(req.Password)
	if err != nil {
		log.Printf("signup seal error: %v", err)
		return FlowTokens{}, ErrInternal
	}

	otp, otpHash, err := security.GenerateOTP()
	if err != nil {
		return FlowTokens{}, ErrInternal
	}

	staging := signupStaging{
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Gender:         req.Gender,
		DateOfBirth:    req.DateOfBirth,
		SealedPassword: sealedPassword,
		OTPHash:        otpHash,
	}
	if err := s.stageSignup(ctx, stagingId, staging, s.cfg.SignupWindow); err != nil {
		return FlowTokens{}, err
	}

	tokens, err := s.mintFlowTokens(platform, token.TypeSignupOTP, token.TypeSignupRequest,
		map[string]string{"id": stagingId}, s.cfg.SignupWindow)
	if err != nil {
		return FlowTokens{}, err
	}

	s.sendOTPMail(ctx, req.Email, otp)
	return tokens, nil
}

// VerifySignup checks the OTP against the staged draft, materializes the
// account, and logs the new account in. The staging entry is deleted before
// account creation so a verification can never succeed twice.
func (s *Service) VerifySignup(ctx context.Context, platform models.Platform, tokens FlowTokens, otp string, device DeviceInfo, pushToken string, bundle *models.PreKeyBundle) (SessionGrant, error) {
	if err := validateOTP(otp); err != nil {
		return SessionGrant{}, err
	}

	stagingId, ok := s.matchFlowTokens(platform, tokens, token.TypeSignupOTP, token.TypeSignupRequest, "id")
	if !ok {
		return SessionGrant{}, ErrSessionExpired
	}

	staging, ok, err := s.loadSignupStaging(ctx, stagingId)
	if err != nil {
		return SessionGrant{}, ErrInternal
	}
	if !ok || !security.CheckOTP(otp, staging.OTPHash) {
		return SessionGrant{}, ErrSessionExpired
	}

	// Single use: burn the staging entry before creating anything
	if err := s.sessionCache.Delete(ctx, cache.SignupKey(stagingId)); err != nil {
		log.Printf("signup staging delete error: %v", err)
		return SessionGrant{}, ErrInternal
	}

	password, err := s.sealer.Open(staging.SealedPassword)
	if err != nil {
		log.Printf("signup staged password open error: %v", err)
		return SessionGrant{}, ErrInternal
	}

	account, err := s.materializeAccount(ctx, staging.Email, password, staging.FirstName, staging.LastName, staging.Gender, staging.DateOfBirth)
	if err != nil {
		return SessionGrant{}, err
	}

	if bundle != nil {
		bundle.AccountUid = account.Uid
		if err := s.accountStore.UpsertPreKeyBundle(ctx, *bundle); err != nil {
			log.Printf("signup bundle upsert error: %v", err)
		}
	}

	return s.IssueSession(ctx, account, platform, device, pushToken)
}

// ResendSignupOTP re-issues the emailed code for an in-flight signup. The
// old OTP is invalidated by overwriting the staged hash, and the staging
// window is shortened to the resend window.
func (s *Service) ResendSignupOTP(ctx context.Context, platform models.Platform, requestToken string) (string, error) {
	claims, ok := s.codecFor(platform).Validate(requestToken)
	if !ok || claims.Type != token.TypeSignupRequest {
		return "", ErrSessionExpired
	}
	stagingId := claims.Data["id"]

	staging, ok, err := s.loadSignupStaging(ctx, stagingId)
	if err != nil {
		return "", ErrInternal
	}
	if !ok {
		return "", ErrSessionExpired
	}

	otp, otpHash, err := security.GenerateOTP()
	if err != nil {
		return "", ErrInternal
	}
	staging.OTPHash = otpHash
	if err := s.stageSignup(ctx, stagingId, staging, s.cfg.ResendWindow); err != nil {
		return "", err
	}

	otpToken, err := s.codecFor(platform).Issue(token.TypeSignupOTP,
		map[string]string{"id": stagingId}, s.cfg.OTPWindow)
	if err != nil {
		log.Printf("signup resend token error: %v", err)
		return "", ErrInternal
	}

	s.sendOTPMail(ctx, staging.Email, otp)
	return otpToken, nil
}

func (s *Service) stageSignup(ctx context.Context, stagingId string, staging signupStaging, ttl time.Duration) error {
	raw, err := json.Marshal(staging)
	if err != nil {
		return ErrInternal
	}
	if err := s.sessionCache.Set(ctx, cache.SignupKey(stagingId), raw, ttl); err != nil {
		log.Printf("signup staging set error: %v", err)
		return ErrInternal
	}
	return nil
}

func (s *Service) loadSignupStaging(ctx context.Context, stagingId string) (signupStaging, bool, error) {
	var staging signupStaging
	if stagingId == "" {
		return staging, false, nil
	}
	raw, ok, err := s.sessionCache.Get(ctx, cache.SignupKey(stagingId))
	if err != nil {
		log.Printf("signup staging get error: %v", err)
		return staging, false, err
	}
	if !ok {
		return staging, false, nil
	}
	if err := json.Unmarshal(raw, &staging); err != nil {
		return staging, false, err
	}
	return staging, true, nil
}

// materializeAccount creates the persistent account record with a fresh
// uid, a generated handle, and a sealed per-account messaging key.
func (s *Service) materializeAccount(ctx context.Context, email, password, firstName, lastName, gender, dateOfBirth string) (models.Account, error) {
	uid, err := security.GenerateUid()
	if err != nil {
		return models.Account{}, ErrInternal
	}
	username, err := security.GenerateUsername(firstName, lastName)
	if err != nil {
		return models.Account{}, ErrInternal
	}
	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return models.Account{}, ErrInternal
	}

	messageKey, err := security.GenerateToken(32)
	if err != nil {
		return models.Account{}, ErrInternal
	}
	sealedKey, err := s.sealer.Seal(messageKey)
	if err != nil {
		log.Printf("account key seal error: %v", err)
		return models.Account{}, ErrInternal
	}

	account := models.Account{
		Uid:          uid,
		Email:        email,
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		Gender:       gender,
		DateOfBirth:  dateOfBirth,
		PasswordHash: passwordHash,
		EncKey:       sealedKey,
		IsSigned:     true,
		IsActive:     true,
		Settings: models.AccountSettings{
			DefaultPostVisibility: "public",
			DefaultReelVisibility: "public",
		},
	}

	created, err := s.accountStore.CreateAccount(ctx, account)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return models.Account{}, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		log.Printf("account create error: %v", err)
		return models.Account{}, ErrInternal
	}
	return created, nil
}

// mintFlowTokens issues the OTP/request token pair for a flow stage. The
// OTP token always uses the short OTP window; the request token rides the
// flow's own window.
func (s *Service) mintFlowTokens(platform models.Platform, otpType, requestType string, data map[string]string, requestTTL time.Duration) (FlowTokens, error) {
	codec := s.codecFor(platform)
	otpToken, err := codec.Issue(otpType, data, s.cfg.OTPWindow)
	if err != nil {
		log.Printf("token issue error: %v", err)
		return FlowTokens{}, ErrInternal
	}
	requestToken, err := codec.Issue(requestType, data, requestTTL)
	if err != nil {
		log.Printf("token issue error: %v", err)
		return FlowTokens{}, ErrInternal
	}
	return FlowTokens{OTPToken: otpToken, RequestToken: requestToken}, nil
}

// matchFlowTokens validates both flow tokens, their type tags, and that
// they belong to the same flow instance. Returns the shared data value.
func (s *Service) matchFlowTokens(platform models.Platform, tokens FlowTokens, otpType, requestType, dataKey string) (string, bool) {
	codec := s.codecFor(platform)
	otpClaims, ok := codec.Validate(tokens.OTPToken)
	if !ok || otpClaims.Type != otpType {
		return "", false
	}
	requestClaims, ok := codec.Validate(tokens.RequestToken)
	if !ok || requestClaims.Type != requestType {
		return "", false
	}
	id := otpClaims.Data[dataKey]
	if id == "" || id != requestClaims.Data[dataKey] {
		return "", false
	}
	return id, true
}

func (s *Service) sendOTPMail(ctx context.Context, email, otp string) {
	body := fmt.Sprintf("Your ChatDrop verification code is %s. It expires in %d minutes. If you did not request this, ignore this mail.", otp, int(s.cfg.OTPWindow.Minutes()))
	if err := s.mail.Send(ctx, email, "ChatDrop verification code", body); err != nil {
		log.Printf("otp mail enqueue error: %v", err)
	}
}
