// Package app wires the listen party backend together and runs its HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/api"
	"github.com/Vasu1712/listenparty-backend/internal/api/account"
	"github.com/Vasu1712/listenparty-backend/internal/api/actions"
	"github.com/Vasu1712/listenparty-backend/internal/api/realtime"
	"github.com/Vasu1712/listenparty-backend/internal/api/streams"
	"github.com/Vasu1712/listenparty-backend/internal/auth"
	"github.com/Vasu1712/listenparty-backend/internal/cache"
	"github.com/Vasu1712/listenparty-backend/internal/catalog"
	"github.com/Vasu1712/listenparty-backend/internal/chatlog"
	"github.com/Vasu1712/listenparty-backend/internal/config"
	"github.com/Vasu1712/listenparty-backend/internal/dispatch"
	"github.com/Vasu1712/listenparty-backend/internal/metrics"
	"github.com/Vasu1712/listenparty-backend/internal/middleware"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/Vasu1712/listenparty-backend/internal/presence"
	"github.com/Vasu1712/listenparty-backend/internal/rooms"
	"github.com/Vasu1712/listenparty-backend/internal/session"
	"github.com/Vasu1712/listenparty-backend/internal/storage"
	"github.com/Vasu1712/listenparty-backend/internal/storage/memory"
	"github.com/Vasu1712/listenparty-backend/internal/storage/postgres"
	"github.com/Vasu1712/listenparty-backend/internal/ws"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options replace collaborators that talk to the outside world.
type Options struct {
	Catalog dispatch.TrackVerifier
}

// App is the assembled backend.
type App struct {
	cfg      *config.Config
	log      *zap.Logger
	store    storage.Store
	cache    cache.Cache
	hub      *ws.Hub
	sessions *auth.Sessions
	handler  http.Handler
	srv      *http.Server
}

// New opens the configured backends and builds the router.
func New(cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	presenceCache, err := openCache(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := ws.NewHub(log, m)
	registry := presence.NewRegistry(presenceCache, hub, cfg.CacheKeyPrefix, cfg.EvictTimeout, log)
	tracker := rooms.NewTracker(hub, registry)
	machine := session.NewMachine(store, store, tracker, registry, hub, log)

	sessions := auth.NewSessions(cfg.SecretKey, cfg.SessionTTL)
	provider := auth.NewProvider(auth.ProviderConfig{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		AuthURL:      cfg.SpotifyAuthURL,
		TokenURL:     cfg.SpotifyTokenURL,
		RedirectURL:  cfg.SpotifyRedirectURL,
		APIBase:      cfg.SpotifyAPIBase,
		Scopes:       cfg.Scopes(),
	})
	tokens := auth.NewTokenStore(store, auth.NewSealer(cfg.SecretKey), provider, log)

	var verifier dispatch.TrackVerifier = catalog.NewSpotify(cfg.SpotifyAPIBase, tokens)
	if opts.Catalog != nil {
		verifier = opts.Catalog
	}
	chat := chatlog.New(store)

	dispatcher := dispatch.New(dispatch.Deps{
		Machine:  machine,
		Presence: registry,
		Chat:     chat,
		Users:    store,
		Streams:  store,
		Catalog:  verifier,
		Out:      hub,
		Metrics:  m,
		Log:      log,
	})

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		api.JSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"service":     "listenparty",
			"connections": hub.Count(),
			"time":        time.Now().Unix(),
		})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	realtime.RegisterRealtimeRoutes(r, &realtime.Handler{
		Hub:        hub,
		Dispatcher: dispatcher,
		Identity:   sessions,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WSReadBufferSize,
			WriteBufferSize: cfg.WSWriteBufferSize,
			CheckOrigin:     realtime.OriginChecker(cfg.CORSAllowOrigin),
		},
		MaxMessageSize: cfg.WSMaxMessageSize,
		SendBuffer:     256,
		Log:            log.Named("realtime"),
	})
	streams.RegisterStreamRoutes(r, &streams.StreamHandler{
		Store:       store,
		Machine:     machine,
		MaxPageSize: cfg.MaxPageSize,
		Log:         log.Named("streams"),
	})
	actions.RegisterActionRoutes(r, &actions.ActionHandler{
		Chat:     chat,
		Streams:  store,
		MaxLimit: cfg.MaxPageSize,
		Log:      log.Named("actions"),
	})
	account.RegisterAccountRoutes(r, &account.AccountHandler{
		Tokens:       tokens,
		Provider:     provider,
		Users:        store,
		Sessions:     sessions,
		SessionTTL:   cfg.SessionTTL,
		AfterLogin:   cfg.FrontendURL,
		SecureCookie: cfg.IsProduction(),
		Log:          log.Named("account"),
	})

	var handler http.Handler = r
	handler = middleware.Identity(sessions)(handler)
	handler = middleware.CORS(cfg.CORSAllowOrigin)(handler)
	handler = middleware.Logging(log)(handler)

	return &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		cache:    presenceCache,
		hub:      hub,
		sessions: sessions,
		handler:  handler,
		srv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

func openStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.StoreBackend != "postgres" {
		return memory.NewStore(), nil
	}
	applied, err := postgres.MigrateUp(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if applied {
		log.Info("database migrated")
	}
	store, err := postgres.NewStore(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return store, nil
}

func openCache(cfg *config.Config) (cache.Cache, error) {
	if cfg.CacheBackend != "valkey" {
		return cache.NewMemory(), nil
	}
	c, err := cache.NewValkey(cfg.ValkeyAddr)
	if err != nil {
		return nil, fmt.Errorf("valkey: %w", err)
	}
	return c, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// IssueToken creates username if needed and returns a session token for it.
func (a *App) IssueToken(ctx context.Context, username string) (string, error) {
	if err := a.store.UpsertUser(ctx, &models.User{Username: username}); err != nil {
		return "", fmt.Errorf("upsert %s: %w", username, err)
	}
	return a.sessions.Issue(username)
}

// Run starts the HTTP server and blocks until ctx is cancelled; then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("http server listening", zap.String("addr", a.srv.Addr),
		zap.String("store", a.cfg.StoreBackend), zap.String("cache", a.cfg.CacheBackend))

	errc := make(chan error, 1)
	go func() {
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases the store and the cache.
func (a *App) Close() error {
	a.cache.Close()
	return a.store.Close()
}
