package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/acme/autocert"

	"github.com/serisow/smartdoc/handlers"
)

type Config struct {
	Domains      []string
	CertCacheDir string
	HTTPPort     string
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Handlers groups the endpoint handlers mounted by SetupRoutes.
type Handlers struct {
	Documents     *handlers.DocumentHandler
	Query         *handlers.QueryHandler
	Conversations *handlers.ConversationHandler
	Health        *handlers.HealthHandler
}

const apiPrefix = "/api/v1"

func SetupRoutes(h Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", h.Health.Root).Methods("GET")

	// Full paths on the root router so a method mismatch answers 405.
	r.HandleFunc(apiPrefix+"/upload", h.Documents.Upload).Methods("POST")
	r.HandleFunc(apiPrefix+"/documents", h.Documents.List).Methods("GET")
	r.HandleFunc(apiPrefix+"/document/{id}", h.Documents.Get).Methods("GET")
	r.HandleFunc(apiPrefix+"/document/{id}", h.Documents.Delete).Methods("DELETE")
	r.Handle(apiPrefix+"/query", h.Query).Methods("POST")
	r.HandleFunc(apiPrefix+"/conversation/{id}", h.Conversations.Get).Methods("GET")
	r.HandleFunc(apiPrefix+"/health", h.Health.Health).Methods("GET")

	return r
}

// SetupNegroni wraps the router with panic recovery and access logging.
func SetupNegroni(r http.Handler) *negroni.Negroni {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	n.UseHandler(r)
	return n
}

// ServeProduction serves HTTPS with certificates from Let's Encrypt and
// answers ACME challenges on port 80. It returns when ctx is done.
func ServeProduction(ctx context.Context, cfg Config, handler http.Handler, logger *slog.Logger) error {
	autocertManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}

	challenge := &http.Server{
		Addr:         ":80",
		Handler:      autocertManager.HTTPHandler(nil),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := challenge.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ACME challenge server stopped", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:    ":443",
		Handler: handler,
		TLSConfig: &tls.Config{
			GetCertificate:   autocertManager.GetCertificate,
			MinVersion:       tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
		},
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Starting production server", slog.Any("domains", cfg.Domains))
	return serve(ctx, logger, func() error {
		// Key and cert provided automatically by autocert.
		return srv.ListenAndServeTLS("", "")
	}, srv, challenge)
}

func ServeDevelopment(ctx context.Context, cfg Config, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		IdleTimeout:  cfg.IdleTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Starting development server", slog.String("addr", srv.Addr))
	return serve(ctx, logger, srv.ListenAndServe, srv)
}

func serve(ctx context.Context, logger *slog.Logger, listen func() error, servers ...*http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- listen()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var errs []error
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
