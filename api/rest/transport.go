package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nitish987/chatdrop/models"
	"github.com/nitish987/chatdrop/service"
)

// Token transport names. Mobile clients send each token role in its own
// request header; browser clients carry the same roles as cookies.
const (
	headerSignupOTP       = "SOT"
	headerSignupRequest   = "SRT"
	headerRecoveryOTP     = "PROT"
	headerRecoveryRequest = "PRRT"
	headerNewPassword     = "PRNPT"
	headerOAuthSignup     = "GSACT"
	headerGoogleIDToken   = "GIT"
	headerLoginState      = "LST"
	headerCSRF            = "X-CSRF-Token"

	cookieSignupOTP       = "sot"
	cookieSignupRequest   = "srt"
	cookieRecoveryOTP     = "prot"
	cookieRecoveryRequest = "prrt"
	cookieNewPassword     = "prnpt"
	cookieOAuthSignup     = "gsact"
	cookieAuth            = "at"
	cookieLoginState      = "lst"
	cookieWebsocketAuth   = "wat"
	cookieCSRF            = "csrftoken"
)

func platformOf(r *http.Request) models.Platform {
	if strings.EqualFold(r.Header.Get("X-Platform"), "web") {
		return models.PlatformWeb
	}
	return models.PlatformMobile
}

// tokenFrom reads a token role from its mobile header or its browser cookie,
// depending on the request platform.
func tokenFrom(r *http.Request, platform models.Platform, header string, cookie string) string {
	if platform == models.PlatformWeb {
		c, err := r.Cookie(cookie)
		if err != nil {
			return ""
		}
		return c.Value
	}
	return r.Header.Get(header)
}

// authTokenFrom reads the session auth token: "Token <at>" authorization
// header on mobile, the at cookie on browser.
func authTokenFrom(r *http.Request, platform models.Platform) string {
	if platform == models.PlatformWeb {
		c, err := r.Cookie(cookieAuth)
		if err != nil {
			return ""
		}
		return c.Value
	}

	authHeader := r.Header.Get("Authorization")
	const prefix = "Token "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}

func loginStateFrom(r *http.Request, platform models.Platform) string {
	return tokenFrom(r, platform, headerLoginState, cookieLoginState)
}

func (h *Handler) setCookie(w http.ResponseWriter, name string, value string, maxAge int, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	h.setCookie(w, name, "", -1, true)
}

// checkCSRF enforces double-submit protection on state-changing browser
// calls: the csrf cookie must match the X-CSRF-Token header. Mobile requests
// carry no cookies, so there is nothing a cross-site page can ride on.
func checkCSRF(r *http.Request, platform models.Platform) bool {
	if platform != models.PlatformWeb {
		return true
	}
	c, err := r.Cookie(cookieCSRF)
	if err != nil || c.Value == "" {
		return false
	}
	return c.Value == r.Header.Get(headerCSRF)
}

// deviceInfoFrom derives a coarse device fingerprint from the user agent.
// Session rows only need enough to tell the user "Chrome on Windows".
func deviceInfoFrom(r *http.Request) service.DeviceInfo {
	ua := r.Header.Get("User-Agent")

	info := service.DeviceInfo{Device: "desktop", OS: "Unknown", Browser: "Unknown"}
	switch {
	case strings.Contains(ua, "Android"):
		info.Device, info.OS = "mobile", "Android"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"):
		info.Device, info.OS = "mobile", "iOS"
	case strings.Contains(ua, "Windows"):
		info.OS = "Windows"
	case strings.Contains(ua, "Mac OS"):
		info.OS = "macOS"
	case strings.Contains(ua, "Linux"):
		info.OS = "Linux"
	}
	switch {
	case strings.Contains(ua, "Edg/"):
		info.Browser = "Edge"
	case strings.Contains(ua, "Chrome/"):
		info.Browser = "Chrome"
	case strings.Contains(ua, "Firefox/"):
		info.Browser = "Firefox"
	case strings.Contains(ua, "Safari/"):
		info.Browser = "Safari"
	}
	return info
}

func clientIP(r *http.Request) string {
	// Trust the left-most forwarded address when behind the load balancer
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ipRateLimiter hands out a token bucket per client address.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

type errorResponse struct {
	Message string `json:"message"`
}

// sendError maps a service error onto an HTTP status and a client-safe
// message. Every broken session artifact collapses to the same text so a
// probing client learns nothing about which check failed.
func (h *Handler) sendError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "Something went wrong."

	switch {
	case errors.Is(err, service.ErrValidationFailed):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Invalid email or password."
	case errors.Is(err, service.ErrSessionExpired):
		status, message = http.StatusUnauthorized, service.SessionOutMessage
	case errors.Is(err, service.ErrNotFound):
		status, message = http.StatusNotFound, service.SessionOutMessage
	case errors.Is(err, service.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	default:
		log.Printf("internal error: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Message: message}); err != nil {
		log.Printf("failed to encode error response: %v", err)
	}
}
