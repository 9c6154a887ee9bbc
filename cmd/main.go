package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/fjod/go_cart/storefront/internal/bulkupload"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"github.com/fjod/go_cart/storefront/internal/search"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	zlog.Logger = log
	zerolog.DefaultContextLogger = &log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("store", string(cfg.Store)).Str("bus", string(cfg.Bus)).Msg("failed to open backends")
	}
	defer b.close(log)
	log.Info().Str("store", string(cfg.Store)).Str("bus", string(cfg.Bus)).Str("namespace", cfg.Namespace).Msg("backends ready")

	// writes of this process reach the others through the bus
	shared := notify.NewNotifyingStore(b.store, b.bus, log)

	client := apiclient.New(cfg.APIBaseURL,
		apiclient.WithTimeout(cfg.BackendTimeout),
		apiclient.WithLogger(log),
	)
	sessions := session.NewStore(ctx, shared, client,
		session.WithLogger(log),
		session.WithRefreshTimeout(cfg.RefreshTimeout),
	)
	client.SetTokenSource(sessions)
	client.SetUnauthorizedHandler(sessions.Logout)

	cartStore := cart.NewStore(ctx, shared, log)
	searches := search.NewStore(ctx, shared, log)
	orders := checkout.NewService(cartStore, sessions, client, log)
	uploader := bulkupload.NewUploader(sessions, client, log)

	stopCartListener := cart.Listen(b.bus, cartStore, cfg.RequestTimeout)
	defer stopCartListener()
	sessionListener := session.Listen(b.bus, sessions, cfg.RequestTimeout)
	defer sessionListener.Stop()

	if sessions.IsAuthenticated() {
		verifyCtx, cancel := context.WithTimeout(ctx, cfg.BackendTimeout)
		if err := sessions.Verify(verifyCtx); err != nil {
			log.Warn().Err(err).Msg("stored session could not be verified")
		}
		cancel()
	}

	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(cartStore, sessions, log, cfg.Namespace, cfg.KafkaBrokers...)
		defer p.Close()
		go p.Run(ctx)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", poller.Topic).Msg("checkout poller started")
	}

	router := h.NewRouter(h.Handlers{
		Cart:     h.NewCartHandler(cartStore, cfg.RequestTimeout),
		Session:  h.NewSessionHandler(sessions, cfg.RequestTimeout),
		Search:   h.NewSearchHandler(searches, cfg.RequestTimeout),
		Checkout: h.NewCheckoutHandler(orders, cfg.RequestTimeout),
		Bulk:     h.NewBulkUploadHandler(uploader, cfg.RequestTimeout),
	}, log, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
