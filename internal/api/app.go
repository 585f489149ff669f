package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/alireza-hadizadeh/socket-app/internal/audit"
	"github.com/alireza-hadizadeh/socket-app/internal/auth"
	"github.com/alireza-hadizadeh/socket-app/internal/config"
	"github.com/alireza-hadizadeh/socket-app/internal/gateway"
)

// SocketApp is the HTTP surface: the collaborator REST endpoints plus
// the websocket handshake endpoint at /ws.
type SocketApp struct {
	log            *log.Logger
	auth           *auth.Service
	audit          *audit.Store
	gw             *gateway.Gateway
	srv            *http.Server
	allowedOrigins []string
	production     bool
}

func NewSocketApp(mux *http.ServeMux, logger *log.Logger, authService *auth.Service,
	auditStore *audit.Store, gw *gateway.Gateway, cfg *config.Config) *SocketApp {

	s := &SocketApp{
		log:            logger,
		auth:           authService,
		audit:          auditStore,
		gw:             gw,
		allowedOrigins: cfg.AllowedOrigins,
		production:     cfg.IsProduction(),
	}

	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/logout", s.logout)
	mux.HandleFunc("GET /api/auth/me", s.sessionMiddleware(s.me))
	mux.HandleFunc("GET /api/api-keys", s.sessionMiddleware(s.listApiKeys))
	mux.HandleFunc("POST /api/api-keys", s.sessionMiddleware(s.createApiKey))
	mux.HandleFunc("DELETE /api/api-keys/{id}", s.sessionMiddleware(s.revokeApiKey))
	mux.HandleFunc("GET /api/users", s.adminOnly(s.listUsers))
	mux.HandleFunc("POST /api/users", s.adminOnly(s.createUser))
	mux.HandleFunc("PATCH /api/users/{id}/active", s.adminOnly(s.setUserActive))
	mux.HandleFunc("GET /api/stats", s.adminOnly(s.stats))
	mux.HandleFunc("GET /api/connections", s.adminOnly(s.listConnections))
	mux.HandleFunc("GET /api/messages", s.adminOnly(s.listMessages))
	mux.HandleFunc("DELETE /api/admin/records", s.adminOnly(s.purgeRecords))
	mux.HandleFunc("GET /ws", s.serveWs)

	corsOrigins := cfg.AllowedOrigins
	if !cfg.IsProduction() {
		corsOrigins = []string{"*"}
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.requestLogger(h)
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *SocketApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *SocketApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
