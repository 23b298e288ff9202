package api

import (
	"context"
	"net/http"

	"github.com/nitish987/chatdrop/api/rest"
	"github.com/nitish987/chatdrop/api/ws"
	"github.com/nitish987/chatdrop/cache"
	"github.com/nitish987/chatdrop/config"
	"github.com/nitish987/chatdrop/identity"
	"github.com/nitish987/chatdrop/mailer"
	"github.com/nitish987/chatdrop/mq"
	"github.com/nitish987/chatdrop/push"
	"github.com/nitish987/chatdrop/security"
	"github.com/nitish987/chatdrop/service"
	"github.com/nitish987/chatdrop/store"
	"github.com/nitish987/chatdrop/token"
	"github.com/nitish987/chatdrop/worker"
)

type ChatDropAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	shutdownCtx context.Context
}

func NewChatDropAPI(
	cfg config.Config,
	accountStore store.AccountStore,
	sessionCache cache.SessionCache,
	deliveryQueue mq.MessageQueue,
	verifier identity.Verifier,
	deliveryMailer mailer.Mailer,
	deliveryPusher push.Dispatcher,
	secureCookies bool,
	shutdownCtx context.Context,
) (*ChatDropAPI, error) {
	wsHub := ws.NewHub(sessionCache)
	go wsHub.Run()

	deliveryConsumer := worker.NewDeliveryConsumer(deliveryQueue, deliveryMailer, deliveryPusher)
	go deliveryConsumer.Run(shutdownCtx)

	sealer, err := security.NewSealer(cfg.ServerEncKey)
	if err != nil {
		return &ChatDropAPI{}, err
	}

	// Mobile tokens ride plain headers, browser tokens live in cookies and
	// get an extra encryption layer over the signed payload.
	mobileCodec := token.NewSignedCodec(cfg.JWTSecret)
	webCodec, err := token.NewEncryptedCodec(cfg.JWTSecret, cfg.TokenEncKey)
	if err != nil {
		return &ChatDropAPI{}, err
	}

	svc := service.NewService(
		cfg,
		accountStore,
		sessionCache,
		mobileCodec,
		webCodec,
		sealer,
		mailer.NewQueueMailer(deliveryQueue),
		push.NewQueueDispatcher(deliveryQueue),
		verifier,
	)

	return &ChatDropAPI{
		restHandler: rest.NewHandler(svc, cfg, secureCookies),
		wsHandler:   ws.NewHandler(svc, wsHub),
		shutdownCtx: shutdownCtx,
	}, nil
}

func (chatdropAPI *ChatDropAPI) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	h := chatdropAPI.restHandler
	mux.HandleFunc("/auth/signup", h.HandleSignup)
	mux.HandleFunc("/auth/signup/verify", h.HandleSignupVerify)
	mux.HandleFunc("/auth/signup/resend", h.HandleSignupResend)
	mux.HandleFunc("/auth/login", h.HandleLogin)
	mux.HandleFunc("/auth/login/check", h.HandleLoginCheck)
	mux.HandleFunc("/auth/logout", h.HandleLogout)
	mux.HandleFunc("/auth/signin/google", h.HandleGoogleSignIn)
	mux.HandleFunc("/auth/signin/google/complete", h.HandleGoogleSignupComplete)
	mux.HandleFunc("/auth/recovery", h.HandleRecovery)
	mux.HandleFunc("/auth/recovery/verify", h.HandleRecoveryVerify)
	mux.HandleFunc("/auth/recovery/resend", h.HandleRecoveryResend)
	mux.HandleFunc("/auth/recovery/new-password", h.HandleRecoveryNewPassword)

	mux.HandleFunc("/account/prekeybundle", h.HandlePreKeyBundle)
	mux.HandleFunc("/account/password", h.HandleChangePassword)
	mux.HandleFunc("/account/names", h.HandleChangeNames)
	mux.HandleFunc("/account/username/check", h.HandleUsernameCheck)
	mux.HandleFunc("/account/push-token", h.HandlePushToken)
	mux.HandleFunc("/account/settings", h.HandleSettings)
	mux.HandleFunc("/account", h.HandleDeleteAccount)

	wsUpgrader := chatdropAPI.wsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		chatdropAPI.wsHandler.ServeWS(wsUpgrader, w, r, chatdropAPI.shutdownCtx)
	})
}
