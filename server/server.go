package server

import (
	"context"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-agent-chat/chat"
	"github.com/jrsteele09/go-agent-chat/credstore"
	"github.com/jrsteele09/go-agent-chat/identity"
	"github.com/jrsteele09/go-agent-chat/internal/config"
	"github.com/jrsteele09/go-agent-chat/internal/metrics"
	"github.com/jrsteele09/go-agent-chat/server/clientregistry"
	"github.com/jrsteele09/go-agent-chat/server/loginsession"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Dependencies are the shared services every client instance is built from.
type Dependencies struct {
	Provider      identity.Provider
	LoginSessions loginsession.Repo
	Credentials   *credstore.Store
	ChatBackend   chat.Backend
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer // nil disables /metrics
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	deps      Dependencies
	metrics   metrics.MetricsCollector
	clients   *clientregistry.Registry
	templates *template.Template
}

func New(cfg config.Config, deps Dependencies) (*Server, error) {
	if deps.Provider == nil {
		return nil, errors.New("[Server New] an identity provider is required")
	}
	if deps.LoginSessions == nil {
		deps.LoginSessions = loginsession.NewInMemoryRepo()
	}
	if deps.Credentials == nil {
		deps.Credentials = credstore.NewStore(credstore.NewMemoryBackend(), cfg.GetPendingSSOTTL())
	}
	if deps.ChatBackend == nil {
		deps.ChatBackend = chat.NewSimulated(cfg.GetChatReplyDelay())
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}

	tmpl, err := ParseTemplates()
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to parse templates")
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		deps:      deps,
		metrics:   deps.Metrics,
		templates: tmpl,
	}
	s.clients = clientregistry.New(s.newInstance,
		clientregistry.WithIdleTimeout(cfg.GetClientIdleTimeout()),
		clientregistry.WithSizeObserver(s.metrics.SetLiveClients),
	)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run evicts idle clients until ctx is done.
func (s *Server) Run(ctx context.Context) {
	interval := s.config.GetClientIdleTimeout() / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	s.clients.Run(ctx, interval)
}

// Close releases every client instance.
func (s *Server) Close() {
	s.clients.Close()
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colouredMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colouredMethod(method), path, Red+error+ResetColor)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
