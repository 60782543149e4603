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

	"slot-swapper/internal/adapters/identity"
	"slot-swapper/internal/adapters/mail/relay"
	pg "slot-swapper/internal/adapters/storage/postgres"
	"slot-swapper/internal/config"
	"slot-swapper/internal/fanout"
	"slot-swapper/internal/platform/logger"
	"slot-swapper/internal/ports/auth"
	"slot-swapper/internal/ports/mail"
	"slot-swapper/internal/router"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "correr migraciones al arrancar (solo Postgres)")
	return cmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	return config.LoadFrom(path, os.LookupEnv)
}

func newLogger(cfg config.Config) logger.Logger {
	return logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.Log.App,
		File:   cfg.Log.File,
	})
}

func serve(parent context.Context, cfg config.Config, migrate bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger(cfg)

	var db *sqlx.DB
	if cfg.DBDSN != "" {
		opened, err := pg.Open(cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer opened.Close()
		db = opened

		if migrate {
			if err := pg.RunMigrations(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		log.Info("using postgres store", nil)
	} else {
		log.Warn("DB_DSN not set, using in-memory store", nil)
	}

	var (
		verifier auth.AuthVerifier
		idClient *identity.Client
	)
	if cfg.Identity.BaseURL != "" {
		c, err := identity.NewClient(identity.Config{
			BaseURL: cfg.Identity.BaseURL,
			APIKey:  cfg.Identity.APIKey,
			Timeout: cfg.Identity.Timeout,
		})
		if err != nil {
			return fmt.Errorf("identity client: %w", err)
		}
		idClient = c
		verifier = identity.NewVerifier(c)
	} else {
		log.Warn("identity not configured, dev mode (X-Debug-User-ID)", nil)
	}

	var mailer mail.Sender = relay.LogSender{Log: log}
	if cfg.Mail.RelayURL != "" {
		s, err := relay.NewSender(relay.Config{
			BaseURL: cfg.Mail.RelayURL,
			APIKey:  cfg.Mail.APIKey,
			From:    cfg.Mail.From,
			Timeout: cfg.Mail.Timeout,
			Retries: cfg.Mail.Retries,
		})
		if err != nil {
			return fmt.Errorf("mail relay: %w", err)
		}
		mailer = s
	}

	hub := fanout.NewRegistry(log.With(map[string]any{"module": "fanout"}))
	sweeper, err := fanout.NewSweeper(hub, cfg.SweepSchedule, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: router.NewRouter(router.Options{
			AuthVerifier: verifier,
			Identity:     idClient,
			DB:           db,
			Logger:       log,
			Fanout:       hub,
			Mailer:       mailer,
			StoreTimeout: cfg.StoreTimeout,
			FrontendURL:  cfg.Mail.FrontendURL,

			WSIdleTimeout: cfg.WSIdleTimeout,
		}),
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", map[string]any{"addr": cfg.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	sweeper.Start()

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", nil)

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(sctx)
		// Shutdown no espera conexiones hijackeadas (websockets).
		hub.CloseAll()
		if serr := sweeper.Stop(sctx); serr != nil && err == nil {
			err = serr
		}
		return err
	})

	return g.Wait()
}
