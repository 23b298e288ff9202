package rest

import (
	"encoding/json"
	"net/http"

	"github.com/nitish987/chatdrop/config"
	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/security"
	"github.com/nitish987/chatdrop/service"
)

type Handler struct {
	Service *service.Service
	cfg     config.Config

	// authLimiter throttles credential and OTP endpoints per client ip
	authLimiter   *ipRateLimiter
	secureCookies bool
}

func NewHandler(svc *service.Service, cfg config.Config, secureCookies bool) *Handler {
	return &Handler{
		Service:       svc,
		cfg:           cfg,
		authLimiter:   newIPRateLimiter(1, 10),
		secureCookies: secureCookies,
	}
}

func (h *Handler) throttled(w http.ResponseWriter, r *http.Request) bool {
	if h.authLimiter.allow(clientIP(r)) {
		return false
	}
	http.Error(w, "Too many requests", http.StatusTooManyRequests)
	return true
}

// preKeyBundleRequest is the wire shape of an uploaded X3DH bundle.
type preKeyBundleRequest struct {
	RegId        int                 `json:"regId"`
	DeviceId     int                 `json:"deviceId"`
	PreKeys      []models.PreKey     `json:"preKeys"`
	SignedPreKey models.SignedPreKey `json:"signedPreKey"`
	IdentityKey  string              `json:"identityKey"`
}

func (p *preKeyBundleRequest) toBundle() *models.PreKeyBundle {
	if p == nil {
		return nil
	}
	return &models.PreKeyBundle{
		RegId:        p.RegId,
		DeviceId:     p.DeviceId,
		PreKeys:      p.PreKeys,
		SignedPreKey: p.SignedPreKey,
		IdentityKey:  p.IdentityKey,
	}
}

type sessionResponse struct {
	Message  string                 `json:"message"`
	Uid      string                 `json:"uid"`
	At       string                 `json:"at,omitempty"`
	Lst      string                 `json:"lst,omitempty"`
	Wat      string                 `json:"wat,omitempty"`
	Fat      string                 `json:"fat,omitempty"`
	EncKey   string                 `json:"enc_key,omitempty"`
	Settings models.AccountSettings `json:"settings"`
}

// sendGrant delivers a session to the client. Mobile receives every token in
// the body for header transport on later calls; browser receives the auth
// and websocket tokens as httponly cookies plus a fresh csrf token.
func (h *Handler) sendGrant(w http.ResponseWriter, platform models.Platform, grant service.SessionGrant, message string) {
	resp := sessionResponse{
		Message:  message,
		Uid:      grant.Account.Uid,
		Fat:      grant.RealtimeToken,
		EncKey:   grant.MessageKey,
		Settings: grant.Account.Settings,
	}

	if platform == models.PlatformWeb {
		maxAge := int(h.cfg.AuthWindow.Seconds())
		h.setCookie(w, cookieAuth, grant.AuthToken, maxAge, true)
		h.setCookie(w, cookieWebsocketAuth, grant.WebsocketToken, maxAge, true)
		// Client JS reads lst to detect login state
		h.setCookie(w, cookieLoginState, grant.LoginStateToken, maxAge, false)

		csrf, err := security.GenerateToken(16)
		if err != nil {
			h.sendError(w, service.ErrInternal)
			return
		}
		h.setCookie(w, cookieCSRF, csrf, maxAge, false)
	} else {
		resp.At = grant.AuthToken
		resp.Lst = grant.LoginStateToken
		resp.Wat = grant.WebsocketToken
	}

	h.sendResponse(w, resp)
}

// authenticate resolves the calling account from the request's platform
// transport, enforcing CSRF on browser calls that change state.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, enforceCSRF bool) (models.Account, models.Platform, bool) {
	platform := platformOf(r)
	if enforceCSRF && !checkCSRF(r, platform) {
		http.Error(w, "CSRF token missing or invalid", http.StatusForbidden)
		return models.Account{}, platform, false
	}

	account, err := h.Service.Authenticate(r.Context(), platform, authTokenFrom(r, platform), loginStateFrom(r, platform))
	if err != nil {
		h.sendError(w, err)
		return models.Account{}, platform, false
	}
	return account, platform, true
}

type signupRequest struct {
	service.SignupRequest
}

type flowTokenResponse struct {
	Message string `json:"message"`
	Sot     string `json:"sot,omitempty"`
	Srt     string `json:"srt,omitempty"`
}

func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.throttled(w, r) {
		return
	}

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	platform := platformOf(r)
	tokens, err := h.Service.Signup(r.Context(), platform, req.SignupRequest)
	if err != nil {
		h.sendError(w, err)
		return
	}

	resp := flowTokenResponse{Message: "OTP has been sent to your email."}
	if platform == models.PlatformWeb {
		h.setCookie(w, cookieSignupOTP, tokens.OTPToken, int(h.cfg.OTPWindow.Seconds()), true)
		h.setCookie(w, cookieSignupRequest, tokens.RequestToken, int(h.cfg.SignupWindow.Seconds()), true)
	} else {
		resp.Sot = tokens.OTPToken
		resp.Srt = tokens.RequestToken
	}
	h.sendResponse(w, resp)
}

type verifySignupRequest struct {
	OTP          string               `json:"otp"`
	PushToken    string               `json:"pushToken"`
	PreKeyBundle *preKeyBundleRequest `json:"preKeyBundle"`
}

func (h *Handler) HandleSignupVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.throttled(w, r) {
		return
	}

	var req verifySignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	platform := platformOf(r)
	tokens := service.FlowTokens{
		OTPToken:     tokenFrom(r, platform, headerSignupOTP, cookieSignupOTP),
		RequestToken: tokenFrom(r, platform, headerSignupRequest, cookieSignupRequest),
	}

	grant, err := h.Service.VerifySignup(r.Context(), platform, tokens, req.OTP, deviceInfoFrom(r), req.PushToken, req.PreKeyBundle.toBundle())
	if err != nil {
		h.sendError(w, err)
		return
	}

	if platform == models.PlatformWeb {
		h.clearCookie(w, cookieSignupOTP)
		h.clearCookie(w, cookieSignupRequest)
	}
	h.sendGrant(w, platform, grant, "Account created successfully.")
}

func (h *Handler) HandleSignupResend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.throttled(w, r) {
		return
	}

	platform := platformOf(r)
	requestToken := tokenFrom(r, platform, headerSignupRequest, cookieSignupRequest)

	otpToken, err := h.Service.ResendSignupOTP(r.Context(), platform, requestToken)
	if err != nil {
		h.sendError(w, err)
		return
	}

	resp := flowTokenResponse{Message: "A new OTP has been sent to your email."}
	if platform == models.PlatformWeb {
		h.setCookie(w, cookieSignupOTP, otpToken, int(h.cfg.OTPWindow.Seconds()), true)
	} else {
		resp.Sot = otpToken
	}
	h.sendResponse(w, resp)
}

type loginRequest struct {
	Email        string               `json:"email"`
	Password     string               `json:"password"`
	PushToken    string               `json:"pushToken"`
	PreKeyBundle *preKeyBundleRequest `json:"preKeyBundle"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.throttled(w, r) {
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	platform := platformOf(r)
	grant, err := h.Service.Login(r.Context(), platform, req.Email, req.Password, req.PushToken, deviceInfoFrom(r))
	if err != nil {
		h.sendError(w, err)
		return
	}

	// Mobile re-uploads its key material with every login
	if bundle := req.PreKeyBundle.toBundle(); bundle != nil {
		if err := h.Service.UploadPreKeyBundle(r.Context(), grant.Account.Uid, *bundle); err != nil {
			h.sendError(w, err)
			return
		}
	}

	h.sendGrant(w, platform, grant, "Login successful.")
}

type googleSignInRequest struct {
	Code         string               `json:"code"`
	RedirectURL  string               `json:"redirectUrl"`
	PushToken    string               `json:"pushToken"`
	PreKeyBundle *preKeyBundleRequest `json:"preKeyBundle"`
}

type googleSignInResponse struct {
	Message    string `json:"message"`
	NewAccount bool   `json:"newAccount"`
	Gsact      string `json:"gsact,omitempty"`
}

// HandleGoogleSignIn verifies a federated identity and either logs the
// account in or opens the account-creation window. Mobile sends the provider
// ID token in the GIT header; browser sends an authorization code to
// exchange.
func (h *Handler) HandleGoogleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.throttled(w, r) {
		return
	}

	var req googleSignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	platform := platformOf(r)
	device := deviceInfoFrom(r)

	var result service.OAuthResult
	var err error
	if idToken := r.Header.Get(headerGoogleIDToken); idToken != "" {
		result, err = h.Service.GoogleSignIn(r.Context(), platform, idToken, req.PushToken, device)
	} else {
		result, err = h.Service.GoogleSignInWithCode(r.Context(), platform, req.Code, req.RedirectURL, req.PushToken, device)
	}
	if err != nil {
		h.sendError(w, err)
		return
	}

	if result.NewAccount {
		resp := googleSignInResponse{
			Message:    "Google Sign in - Account Creation",
			NewAccount: true,
		}
		if platform == models.PlatformWeb {
			h.setCookie(w, cookieOAuthSignup, result.SignupToken, int(h.cfg.SignupWindow.Seconds()), true)
		} else {
			resp.Gsact = result.SignupToken
		}
		h.sendResponse(w, resp)
		return
	}

	if bundle := req.PreKeyBundle.toBundle(); bundle != nil {
		if err := h.Service.UploadPreKeyBundle(r.Context(), result.Grant.Account.Uid, *bundle); err != nil {
			h.sendError(w, err)
			return
		}
	}
	h.sendGrant(w, platform, *result.Grant, "Login successful.")
}

type completeOAuthSignupRequest struct {
	service.OAuthSignupRequest
	PushToken    string               `json:"pushToken"`
	PreKeyBundle *preKeyBundleRequest `json:"preKeyBundle"`
}

func (h *Handler) HandleGoogleSignupComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.throttled(w, r) {
		return
	}

	var req completeOAuthSignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	platform := platformOf(r)
	signupToken := tokenFrom(r, platform, headerOAuthSignup, cookieOAuthSignup)

	grant, err := h.Service.CompleteOAuthSignup(r.Context(), platform, signupToken, req.OAuthSignupRequest, deviceInfoFrom(r), req.PushToken, req.PreKeyBundle.toBundle())
	if err != nil {
		h.sendError(w, err)
		return
	}

	if platform == models.PlatformWeb {
		h.clearCookie(w, cookieOAuthSignup)
	}
	h.sendGrant(w, platform, grant, "Account created successfully.")
}

type recoveryRequest struct {
	Email string `json:"email"`
}

type recoveryTokenResponse struct {
	Message string `json:"message"`
	Prot    string `json:"prot,omitempty"`
	Prrt    string `json:"prrt,omitempty"`
}

func (h *Handler) HandleRecovery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.throttled(w, r) {
		return
	}

	var req recoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	platform := platformOf(r)
	tokens, err := h.Service.StartRecovery(r.Context(), platform, req.Email)
	if err != nil {
		h.sendError(w, err)
		return
	}

	resp := recoveryTokenResponse{Message: "OTP has been sent to your email."}
	if platform == models.PlatformWeb {
		h.setCookie(w, cookieRecoveryOTP, tokens.OTPToken, int(h.cfg.OTPWindow.Seconds()), true)
		h.setCookie(w, cookieRecoveryRequest, tokens.RequestToken, int(h.cfg.RecoveryWindow.Seconds()), true)
	} else {
		resp.Prot = tokens.OTPToken
		resp.Prrt = tokens.RequestToken
	}
	h.sendResponse(w, resp)
}

type verifyRecoveryRequest struct {
	OTP string `json:"otp"`
}

type newPasswordTokenResponse struct {
	Message string `json:"message"`
	Prnpt   string `json:"prnpt,omitempty"`
}

func (h *Handler) HandleRecoveryVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.throttled(w, r) {
		return
	}

	var req verifyRecoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	platform := platformOf(r)
	tokens := service.FlowTokens{
		OTPToken:     tokenFrom(r, platform, headerRecoveryOTP, cookieRecoveryOTP),
		RequestToken: tokenFrom(r, platform, headerRecoveryRequest, cookieRecoveryRequest),
	}

	newPasswordToken, err := h.Service.VerifyRecovery(r.Context(), platform, tokens, req.OTP)
	if err != nil {
		h.sendError(w, err)
		return
	}

	resp := newPasswordTokenResponse{Message: "OTP verified. Set your new password."}
	if platform == models.PlatformWeb {
		h.clearCookie(w, cookieRecoveryOTP)
		h.clearCookie(w, cookieRecoveryRequest)
		h.setCookie(w, cookieNewPassword, newPasswordToken, int(h.cfg.PasswordWindow.Seconds()), true)
	} else {
		resp.Prnpt = newPasswordToken
	}
	h.sendResponse(w, resp)
}

func (h *Handler) HandleRecoveryResend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.throttled(w, r) {
		return
	}

	platform := platformOf(r)
	requestToken := tokenFrom(r, platform, headerRecoveryRequest, cookieRecoveryRequest)

	otpToken, err := h.Service.ResendRecoveryOTP(r.Context(), platform, requestToken)
	if err != nil {
		h.sendError(w, err)
		return
	}

	resp := recoveryTokenResponse{Message: "A new OTP has been sent to your email."}
	if platform == models.PlatformWeb {
		h.setCookie(w, cookieRecoveryOTP, otpToken, int(h.cfg.OTPWindow.Seconds()), true)
	} else {
		resp.Prot = otpToken
	}
	h.sendResponse(w, resp)
}

type newPasswordRequest struct {
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) HandleRecoveryNewPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.throttled(w, r) {
		return
	}

	var req newPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	platform := platformOf(r)
	newPasswordToken := tokenFrom(r, platform, headerNewPassword, cookieNewPassword)

	if err := h.Service.ResetPassword(r.Context(), platform, newPasswordToken, req.Password); err != nil {
		h.sendError(w, err)
		return
	}

	if platform == models.PlatformWeb {
		h.clearCookie(w, cookieNewPassword)
	}
	h.sendResponse(w, messageResponse{Message: "Password changed successfully."})
}

type loginCheckResponse struct {
	Message  string `json:"message"`
	LoggedIn bool   `json:"loggedIn"`
}

func (h *Handler) HandleLoginCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	platform := platformOf(r)
	loggedIn, err := h.Service.LoginCheck(r.Context(), platform, authTokenFrom(r, platform), loginStateFrom(r, platform))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendResponse(w, loginCheckResponse{Message: "Login Check", LoggedIn: loggedIn})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	platform := platformOf(r)
	if !checkCSRF(r, platform) {
		http.Error(w, "CSRF token missing or invalid", http.StatusForbidden)
		return
	}

	err := h.Service.Logout(r.Context(), platform, authTokenFrom(r, platform), loginStateFrom(r, platform))
	if err != nil {
		h.sendError(w, err)
		return
	}

	if platform == models.PlatformWeb {
		h.clearCookie(w, cookieAuth)
		h.clearCookie(w, cookieLoginState)
		h.clearCookie(w, cookieWebsocketAuth)
		h.clearCookie(w, cookieCSRF)
	}
	h.sendResponse(w, messageResponse{Message: "Logged out."})
}

type consumedBundleResponse struct {
	Message      string              `json:"message"`
	RegId        int                 `json:"regId"`
	DeviceId     int                 `json:"deviceId"`
	PreKey       models.PreKey       `json:"preKey"`
	SignedPreKey models.SignedPreKey `json:"signedPreKey"`
	IdentityKey  string              `json:"identityKey"`
	Remaining    int                 `json:"remaining"`
}

// HandlePreKeyBundle serves the X3DH key exchange: GET consumes one prekey
// of the target account, POST replaces the caller's own bundle.
func (h *Handler) HandlePreKeyBundle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		_, _, ok := h.authenticate(w, r, false)
		if !ok {
			return
		}

		targetUid := r.URL.Query().Get("uid")
		if targetUid == "" {
			http.Error(w, "uid required", http.StatusBadRequest)
			return
		}

		consumed, err := h.Service.ClaimPreKeyBundle(r.Context(), targetUid)
		if err != nil {
			h.sendError(w, err)
			return
		}

		h.sendResponse(w, consumedBundleResponse{
			Message:      "prekeybundle",
			RegId:        consumed.RegId,
			DeviceId:     consumed.DeviceId,
			PreKey:       consumed.PreKey,
			SignedPreKey: consumed.SignedPreKey,
			IdentityKey:  consumed.IdentityKey,
			Remaining:    consumed.Remaining,
		})

	case http.MethodPost:
		account, _, ok := h.authenticate(w, r, true)
		if !ok {
			return
		}

		var req preKeyBundleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := h.Service.UploadPreKeyBundle(r.Context(), account.Uid, *req.toBundle()); err != nil {
			h.sendError(w, err)
			return
		}
		h.sendResponse(w, messageResponse{Message: "Bundle saved successfully."})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	account, _, ok := h.authenticate(w, r, true)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.ChangePassword(r.Context(), account, req.CurrentPassword, req.NewPassword); err != nil {
		h.sendError(w, err)
		return
	}
	h.sendResponse(w, messageResponse{Message: "Password changed successfully."})
}

type changeNamesRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
}

func (h *Handler) HandleChangeNames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	account, _, ok := h.authenticate(w, r, true)
	if !ok {
		return
	}

	var req changeNamesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.ChangeNames(r.Context(), account, req.FirstName, req.LastName, req.Username); err != nil {
		h.sendError(w, err)
		return
	}
	h.sendResponse(w, messageResponse{Message: "Names changed"})
}

type usernameCheckResponse struct {
	Message   string `json:"message"`
	Available bool   `json:"available"`
}

func (h *Handler) HandleUsernameCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, _, ok := h.authenticate(w, r, false)
	if !ok {
		return
	}

	available, err := h.Service.CheckUsernameAvailability(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendResponse(w, usernameCheckResponse{Message: "username check", Available: available})
}

type pushTokenRequest struct {
	PushToken string `json:"pushToken"`
}

func (h *Handler) HandlePushToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	account, _, ok := h.authenticate(w, r, true)
	if !ok {
		return
	}

	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.UpdatePushToken(r.Context(), account.Uid, req.PushToken); err != nil {
		h.sendError(w, err)
		return
	}
	h.sendResponse(w, messageResponse{Message: "FCM Token updated."})
}

func (h *Handler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	account, _, ok := h.authenticate(w, r, true)
	if !ok {
		return
	}

	var settings models.AccountSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.UpdateSettings(r.Context(), account, settings); err != nil {
		h.sendError(w, err)
		return
	}
	h.sendResponse(w, messageResponse{Message: "profile settings updated"})
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	account, platform, ok := h.authenticate(w, r, true)
	if !ok {
		return
	}

	var req deleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.DeleteAccount(r.Context(), account, req.Password); err != nil {
		h.sendError(w, err)
		return
	}

	if platform == models.PlatformWeb {
		h.clearCookie(w, cookieAuth)
		h.clearCookie(w, cookieLoginState)
		h.clearCookie(w, cookieWebsocketAuth)
		h.clearCookie(w, cookieCSRF)
	}
	h.sendResponse(w, messageResponse{Message: "Account deleted."})
}
