package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nitish987/chatdrop/api"
	"github.com/nitish987/chatdrop/cache/redis"
	"github.com/nitish987/chatdrop/config"
	"github.com/nitish987/chatdrop/identity"
	"github.com/nitish987/chatdrop/mailer"
	"github.com/nitish987/chatdrop/mq/sqsmq"
	"github.com/nitish987/chatdrop/push"
	"github.com/nitish987/chatdrop/store/dynamo"
)

const (
	DynamoDBTable    = "ChatDrop"
	SQSDeliveryQueue = "DeliveryQueue"
)

func main() {
	ctx := context.Background()
	devMode := os.Getenv("DEV_MODE") == "true"

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.OAuthClientIDs = strings.Split(os.Getenv("GOOGLE_ALLOWED_CLIENT_IDS"), ",")

	accountStore, err := dynamo.NewDynamoAccountStore(ctx, devMode, os.Getenv("DYNAMODB_ENDPOINT"), DynamoDBTable)
	if err != nil {
		log.Fatalf("Failed to create dynamodb store: %v", err)
	}

	deliveryQueue, err := sqsmq.NewSQSMessageQueue(ctx, devMode, os.Getenv("SQS_ENDPOINT"), SQSDeliveryQueue)
	if err != nil {
		log.Fatalf("Failed to create SQS MQ: %v", err)
	}

	sessionCache, err := redis.NewRedisSessionCache(ctx, devMode, os.Getenv("REDIS_ENDPOINT"))
	if err != nil {
		log.Fatalf("Failed to create redis cache: %v", err)
	}

	verifier := identity.NewGoogleVerifier(
		os.Getenv("GOOGLE_CLIENT_ID"),
		os.Getenv("GOOGLE_CLIENT_SECRET"),
		cfg.OAuthClientIDs,
	)

	// The delivery worker sends the mail the auth flows enqueue. Dev mode
	// logs pushes instead of delivering them.
	deliveryMailer := mailer.NewSMTPMailer(
		os.Getenv("SMTP_HOST"),
		os.Getenv("SMTP_PORT"),
		os.Getenv("SMTP_FROM"),
		os.Getenv("SMTP_PASSWORD"),
	)
	var deliveryPusher push.Dispatcher = push.LogDispatcher{}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	chatdropApi, err := api.NewChatDropAPI(
		cfg,
		accountStore,
		sessionCache,
		deliveryQueue,
		verifier,
		deliveryMailer,
		deliveryPusher,
		!devMode,
		shutdownCtx,
	)
	if err != nil {
		log.Fatalf("Failed to create chatdrop api: %v", err)
	}

	mux := http.NewServeMux()
	chatdropApi.RegisterRoutes(mux, os.Getenv("WEB_ORIGIN"))

	hostPort := "8080"
	if p := os.Getenv("HOST_PORT"); p != "" {
		hostPort = p
	}
	log.Printf("Starting server on host port: %s\n", hostPort)
	log.Fatal(http.ListenAndServe(":"+hostPort, mux))
}
