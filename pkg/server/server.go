package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/adfharrison1/mongochange/pkg/api"
	"github.com/adfharrison1/mongochange/pkg/audit"
	"github.com/adfharrison1/mongochange/pkg/connections"
	"github.com/adfharrison1/mongochange/pkg/engine"
	"github.com/adfharrison1/mongochange/pkg/notify"
)

// Server wires the connection manager, audit store, engine, and HTTP
// surface together with a process-scoped lifecycle
type Server struct {
	router      *mux.Router
	connections *connections.Manager
	auditClient *mongo.Client
	engine      *engine.Engine
}

// NewServer creates a server from a validated config
func NewServer(cfg Config, integrations ...notify.Integration) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pattern, err := cfg.CompileAllowPattern()
	if err != nil {
		return nil, err
	}

	var managerOpts []connections.ManagerOption
	if pattern != nil {
		managerOpts = append(managerOpts, connections.WithAllowPattern(pattern))
	}
	manager := connections.NewManager(managerOpts...)

	auditClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.AuditURI))
	if err != nil {
		return nil, err
	}
	store := audit.NewStore(auditClient, cfg.AuditDatabase, cfg.AuditCollection)

	eng := engine.New(manager, store)

	dispatcher := notify.NewDispatcher(append([]notify.Integration{notify.LogIntegration{}}, integrations...)...)
	handler := api.NewHandler(eng, store, dispatcher, api.WithArchiveExporter(store))

	s := &Server{
		router:      mux.NewRouter(),
		connections: manager,
		auditClient: auditClient,
		engine:      eng,
	}
	handler.RegisterRoutes(s.router)

	// Use the logging middleware for all routes
	s.router.Use(requestLoggerMiddleware)

	// Customize NotFoundHandler to log 404s
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("WARN: No route found for %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	})

	return s, nil
}

// requestLoggerMiddleware logs the method, URL path, and duration for each request.
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)
		log.Printf("INFO: Request %s %s took %s", r.Method, r.URL.Path, elapsed)
	})
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close disconnects every cached target client and the audit client
func (s *Server) Close(ctx context.Context) {
	s.connections.Close(ctx)
	if err := s.auditClient.Disconnect(ctx); err != nil {
		log.Printf("WARN: Failed to disconnect audit client: %v", err)
	}
}
