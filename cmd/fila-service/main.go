package main

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/c4ts0up/Fasti-Client/internal/config"
	"github.com/c4ts0up/Fasti-Client/internal/fila"
	"github.com/c4ts0up/Fasti-Client/internal/httpapi"
	"github.com/c4ts0up/Fasti-Client/internal/hub"
	"github.com/c4ts0up/Fasti-Client/internal/store"
	"github.com/c4ts0up/Fasti-Client/internal/store/postgres"
	"github.com/c4ts0up/Fasti-Client/internal/store/supabase"
	"github.com/c4ts0up/Fasti-Client/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup(telemetry.Config{
		ServiceName: "fila-service",
		Version:     version,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	var recordStore store.RecordStore
	switch strings.ToLower(cfg.StoreBackend) {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer pool.Close()
		recordStore = postgres.NewStore(pool)
	case "", "supabase":
		recordStore = supabase.NewStore(supabase.Config{
			BaseURL: cfg.SupabaseURL,
			APIKey:  cfg.SupabaseAPIKey,
			Timeout: cfg.StoreTimeout,
		})
	default:
		log.Fatalf("unknown store backend %q", cfg.StoreBackend)
	}

	h := hub.New()
	service := fila.NewService(recordStore, fila.Options{
		JoinRetryAttempts: cfg.JoinRetryAttempts,
		Publisher:         h,
	})
	handler := httpapi.NewHandler(service)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:    cfg.RateLimitPerMinute,
		IPBurst:        cfg.RateLimitBurst,
		PhonePerMinute: cfg.PhoneRateLimitPerMinute,
		PhoneBurst:     cfg.PhoneRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/", handler.Routes())

	sockjsHandler := sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, hub.Subscription{})
				continue
			}
			h.UpdateSubscription(client, hub.Subscription{QueueID: parsed.QueueID})
		}
	})
	mux.Handle("/realtime/", sockjsHandler)

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "fila-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("fila-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
