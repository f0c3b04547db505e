package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"custodia/internal/audit"
	auditmetrics "custodia/internal/audit/metrics"
	"custodia/internal/blob"
	consentmetrics "custodia/internal/consent/metrics"
	consentservice "custodia/internal/consent/service"
	consentstore "custodia/internal/consent/store"
	"custodia/internal/crypto/fieldcipher"
	"custodia/internal/keys"
	"custodia/internal/platform/config"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/logger"
	recordmetrics "custodia/internal/record/metrics"
	recordservice "custodia/internal/record/service"
	recordstore "custodia/internal/record/store"
	"custodia/internal/record/tracer"
	"custodia/internal/record/workers/retention"
	httptransport "custodia/internal/transport/http"
	"custodia/pkg/platform/middleware/auth"
	"custodia/pkg/platform/middleware/metadata"
	"custodia/pkg/platform/middleware/request"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log.Info("initializing custodia", "addr", cfg.Addr, "data_dir", cfg.DataDir)

	db, err := badger.Open(badger.DefaultOptions(cfg.DataDir).WithLogger(nil))
	if err != nil {
		return err
	}
	defer db.Close()

	auditStore, err := audit.NewBadgerStore(db)
	if err != nil {
		return err
	}
	recorder := audit.NewRecorder(auditStore,
		audit.WithMetrics(auditmetrics.New()),
		audit.WithLogger(log),
	)

	consents, closeConsents, err := buildConsentLedger(db, auditStore, cfg, log)
	if err != nil {
		return err
	}
	defer closeConsents()

	keyProvider, err := buildKeyProvider(cfg, log)
	if err != nil {
		return err
	}

	records := recordservice.New(
		recordservice.NewShardedTx(recordstore.NewBadger(db), cfg.RequestTimeout),
		recorder,
		consents,
		keyProvider,
		recordservice.WithMetrics(recordmetrics.New()),
		recordservice.WithLogger(log),
		recordservice.WithTracer(tracer.NewOTel()),
		recordservice.WithBlobStore(blob.NewBadger(db)),
		recordservice.WithRetentionPeriod(cfg.RetentionPeriod),
	)

	validator, err := auth.NewHMACValidator(
		[]byte(cfg.JWTSigningKey),
		auth.WithIssuer(cfg.JWTIssuer),
	)
	if err != nil {
		return err
	}

	trustedProxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(
		httptransport.NewRecordHandler(records, log),
		httptransport.NewConsentHandler(consents, log),
		httptransport.RouterConfig{
			Logger:         log,
			Validator:      validator,
			Metadata:       metadata.NewMiddleware(&metadata.Config{TrustedProxies: trustedProxies}),
			RequestMetrics: request.NewMetrics(),
			RequestTimeout: cfg.RequestTimeout,
		},
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	sweeper, err := retention.New(records,
		retention.WithInterval(cfg.PurgeInterval),
		retention.WithLogger(log),
	)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.Addr, mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func buildConsentLedger(db *badger.DB, auditStore *audit.BadgerStore, cfg config.Config, log *slog.Logger) (*consentservice.Ledger, func(), error) {
	store, err := consentstore.NewBadger(db, auditStore)
	if err != nil {
		return nil, nil, err
	}
	ledger := consentservice.NewLedger(store,
		consentservice.WithMetrics(consentmetrics.New()),
		consentservice.WithLogger(log),
		consentservice.WithFreshnessWindow(cfg.ConsentFreshFor),
	)
	closer := func() {
		if err := store.Close(); err != nil {
			log.Warn("consent store close failed", "error", err)
		}
	}
	return ledger, closer, nil
}

// buildKeyProvider derives field keys from the configured master key. With no
// key configured the server generates an ephemeral one, which makes stored
// records unreadable after restart; acceptable for development only.
func buildKeyProvider(cfg config.Config, log *slog.Logger) (keys.Provider, error) {
	var master []byte
	if cfg.MasterKeyHex != "" {
		decoded, err := hex.DecodeString(cfg.MasterKeyHex)
		if err != nil {
			return nil, err
		}
		master = decoded
	} else {
		master = make([]byte, fieldcipher.KeySize)
		if _, err := rand.Read(master); err != nil {
			return nil, err
		}
		log.Warn("no master key configured, using ephemeral key")
	}
	static, err := keys.NewStaticProvider(master)
	if err != nil {
		return nil, err
	}
	return keys.NewResilientProvider(static, log), nil
}
