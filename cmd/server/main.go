package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/acceptevm/acceptevm.go/db"
	"github.com/acceptevm/acceptevm.go/eth"
	"github.com/acceptevm/acceptevm.go/lib/logging"
	"github.com/acceptevm/acceptevm.go/lib/service"
	"github.com/acceptevm/acceptevm.go/lib/transport"
	"github.com/acceptevm/acceptevm.go/rabbitmq"
)

func main() {

	c := &service.Config{}

	// Load configruation from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configured log file
	logger := logging.Logger(c.LogFilePath)

	// Setup exception tracking with Sentry if configured
	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn: c.SentryDSN,
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
	}

	// Open the invoice store based on the configured DATABASE_URI
	store, err := db.Open(c.DatabaseUri)
	if err != nil {
		logger.Fatalf("Error initializing invoice store: %v", err)
	}
	defer store.Close()

	startupCtx := context.Background()
	ledgerClient, err := eth.Dial(startupCtx, c.RPCUrl, logger)
	if err != nil {
		logger.Fatalf("Error connecting to the EVM node: %v", err)
	}

	chainID, err := ledgerClient.ChainID(startupCtx)
	if err != nil {
		logger.Fatalf("Error reading chain id from %s: %v", c.RPCUrl, err)
	}
	logger.Infof("[%s] Connected to chain %s", c.GatewayName, chainID)

	// If no RABBITMQ_URI was provided we fall back to the in-process
	// pubsub: settled invoices are then only visible to subscribers
	// inside this process.
	var reflector service.Reflector
	pubsub := service.NewPubsub()
	reflector = pubsub
	if c.RabbitMQUri != "" {
		rabbitmqClient, err := rabbitmq.Dial(c.RabbitMQUri,
			rabbitmq.WithLogger(logger),
			rabbitmq.WithSettledInvoiceExchange(c.RabbitMQSettledInvoiceExchange),
		)
		if err != nil {
			logger.Fatal(err)
		}

		// close the connection gently at the end of the runtime
		defer rabbitmqClient.Close()
		reflector = rabbitmqClient
	}

	svc, err := service.NewGatewayService(c, store, ledgerClient, logger, reflector)
	if err != nil {
		logger.Fatalf("Error creating gateway service: %v", err)
	}

	//init echo server
	e := transport.InitEcho(c, logger)

	logMw := transport.CreateLoggingMiddleware(logger)
	// strict rate limit for requests that mint keypairs
	strictRateLimitMiddleware := transport.CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit)
	transport.RegisterEndpoints(svc, e, strictRateLimitMiddleware, logMw)

	var backgroundWg sync.WaitGroup
	backGroundCtx, _ := signal.NotifyContext(context.Background(), os.Interrupt)

	// Reconcile pending invoices in the background
	backgroundWg.Add(1)
	go func() {
		err = svc.StartPollingLoop(backGroundCtx)
		if err != nil {
			sentry.CaptureException(err)
			svc.Logger.Error(err)
		}
		svc.Logger.Info("Reconciliation loop done")
		backgroundWg.Done()
	}()

	// Start server
	go func() {
		if err := e.Start(fmt.Sprintf(":%v", c.Port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-backGroundCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
	//Wait for graceful shutdown of background routines
	backgroundWg.Wait()
	svc.Logger.Infof("[%s] exiting gracefully. Goodbye.", c.GatewayName)
}
