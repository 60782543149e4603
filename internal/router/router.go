package router

import (
	"net/http"
	"time"

	"slot-swapper/internal/adapters/identity"
	"slot-swapper/internal/adapters/mail/relay"
	"slot-swapper/internal/adapters/realtime/ws"
	mem "slot-swapper/internal/adapters/storage/memory"
	pg "slot-swapper/internal/adapters/storage/postgres"
	"slot-swapper/internal/domain/account"
	"slot-swapper/internal/domain/events"
	"slot-swapper/internal/domain/history"
	"slot-swapper/internal/domain/marketplace"
	"slot-swapper/internal/domain/swaps"
	"slot-swapper/internal/fanout"
	"slot-swapper/internal/middleware"
	"slot-swapper/internal/platform/logger"
	"slot-swapper/internal/ports/auth"
	"slot-swapper/internal/ports/mail"
	"slot-swapper/internal/ports/txn"

	_ "slot-swapper/docs"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Identity completa perfiles que no vinieron en claims. Opcional.
	Identity *identity.Client

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sqlx.DB

	Logger logger.Logger

	// Fanout es el registry de conexiones realtime. Si es nil se crea uno.
	Fanout *fanout.Registry

	// Mailer por defecto solo loguea.
	Mailer mail.Sender

	StoreTimeout time.Duration
	FrontendURL  string

	// WSIdleTimeout: sin frames del cliente por este tiempo, la conexión se da por muerta.
	// 0 usa el default del handler.
	WSIdleTimeout time.Duration
}

type stores struct {
	tx      txn.Manager
	events  events.Repository
	swaps   swaps.Repository
	history history.Repository
	dir     identity.LocalDirectory
}

func newStores(db *sqlx.DB) stores {
	if db != nil {
		return stores{
			tx:      pg.NewTxManager(db),
			events:  pg.NewEventsRepo(db),
			swaps:   pg.NewSwapsRepo(db),
			history: pg.NewHistoryRepo(db),
			dir:     pg.NewDirectory(db),
		}
	}

	s := mem.NewStore()
	return stores{
		tx:      s,
		events:  mem.NewEventRepo(s),
		swaps:   mem.NewSwapRepo(s),
		history: mem.NewHistoryRepo(s),
		dir:     mem.NewDirectory(),
	}
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	hub := opts.Fanout
	if hub == nil {
		hub = fanout.NewRegistry(log)
	}
	mailer := opts.Mailer
	if mailer == nil {
		mailer = relay.LogSender{Log: log}
	}

	st := newStores(opts.DB)

	var dir identity.LocalDirectory = st.dir
	if opts.Identity != nil {
		dir = identity.NewDirectory(opts.Identity, st.dir, log)
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(log))
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))
	r.Use(middleware.RecordProfiles(dir, log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Method(http.MethodGet, "/ws", ws.NewHandler(hub, opts.AuthVerifier, log, ws.WithIdleTimeout(opts.WSIdleTimeout)))

	// Services por módulo
	eventsSvc := events.NewService(st.events, events.Options{
		Tx:        st.tx,
		Pending:   st.swaps,
		Publisher: hub,
		Logger:    log.With(map[string]any{"module": "events"}),
		Timeout:   opts.StoreTimeout,
	})
	historySvc := history.NewService(st.history, opts.StoreTimeout)
	swapsSvc := swaps.NewService(st.swaps, eventsSvc, swaps.Options{
		Tx:          st.tx,
		Ledger:      historySvc,
		Directory:   dir,
		Publisher:   hub,
		Mailer:      mailer,
		Logger:      log.With(map[string]any{"module": "swaps"}),
		Timeout:     opts.StoreTimeout,
		FrontendURL: opts.FrontendURL,
	})
	marketSvc := marketplace.NewService(st.events, dir, opts.StoreTimeout)
	accountSvc := account.NewService(st.events, st.swaps, st.history, dir, opts.StoreTimeout)

	// Rutas por módulo
	events.RegisterRoutes(r, eventsSvc)
	swaps.RegisterRoutes(r, swapsSvc)
	marketplace.RegisterRoutes(r, marketSvc)
	history.RegisterRoutes(r, historySvc)
	account.RegisterRoutes(r, accountSvc)

	return r
}
